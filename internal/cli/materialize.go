package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dukerupert/cadence/internal/model"
)

type materializeOptions struct {
	*RootOptions
	Kind string
	Date string
	To   string
}

func NewMaterializeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &materializeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Ensure instances exist for a date or date range",
		Long: `Create any missing instances for the active rules of one kind.

Calling it again for the same dates creates nothing new and prints the same
instance ids.

Example:
  cadence materialize --kind task --date 2025-03-01
  cadence materialize --kind time_block --date 2025-03-01 --to 2025-03-07`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := model.Kind(opts.Kind)
			if !kind.Valid() {
				return fmt.Errorf("invalid kind %q: must be task or time_block", opts.Kind)
			}

			a, err := openApp(opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			from := opts.Date
			if from == "" {
				from = a.engine.Today()
			}
			to := opts.To
			if to == "" {
				to = from
			}

			byDate, err := a.engine.MaterializeRange(cmd.Context(), kind, from, to)
			if byDate == nil {
				return err
			}
			if err != nil {
				a.logger.Warn("some rules failed to materialize", "error", err)
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), byDate)
			}
			dates := make([]string, 0, len(byDate))
			for d := range byDate {
				dates = append(dates, d)
			}
			sort.Strings(dates)
			return writeMaterialized(cmd.OutOrStdout(), byDate, dates)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", string(model.KindTask), "instance kind (task|time_block)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "first date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last date, inclusive (default --date)")

	return cmd
}
