package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/cadence/internal/ics"
)

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write time blocks for a date range as an iCalendar file",
		Long: `Materialize time-block rules over a date range and export the visible
blocks as iCalendar VEVENTs.

Example:
  cadence export --from 2025-03-01 --to 2025-03-31 --out march.ics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if from == "" {
				from = a.engine.Today()
			}
			if to == "" {
				to = from
			}
			blocks, err := a.engine.TimeBlocks(cmd.Context(), from, to)
			if blocks == nil && err != nil {
				return err
			}
			if err != nil {
				a.logger.Warn("some rules failed to materialize", "error", err)
			}

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return ics.Write(w, blocks, loc, time.Now())
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&to, "to", "", "last date, inclusive (default --from)")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}
