package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewAreaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "area",
		Short: "Manage the areas templates can file instances under",
	}

	var color string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			area, err := a.engine.CreateArea(cmd.Context(), args[0], color)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), area)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", area.ID)
			return nil
		},
	}
	create.Flags().StringVar(&color, "color", "", "display color")

	list := &cobra.Command{
		Use:   "list",
		Short: "List areas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			areas, err := a.engine.ListAreas(cmd.Context())
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), areas)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOLOR")
			for _, ar := range areas {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", ar.ID, ar.Name, ar.Color)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}
