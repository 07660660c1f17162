package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func NewAgendaCommand(rootOpts *RootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Show the tasks and time blocks for a date",
		Long: `Materialize both kinds for a date and list what is visible on it.

Instances of EXPIRE rules dated before today are hidden.

Example:
  cadence agenda --date 2025-03-01 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if date == "" {
				date = a.engine.Today()
			}
			agenda, err := a.engine.Agenda(cmd.Context(), date)
			if agenda == nil {
				return err
			}
			if err != nil {
				a.logger.Warn("some rules failed to materialize", "error", err)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, agenda)
			}

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "%s (today %s)\n", agenda.Date, agenda.Today)
			for _, b := range agenda.TimeBlocks {
				span := "all day"
				if !b.IsAllDay {
					span = b.StartTime.In(loc).Format(time.Kitchen) + "-" + b.EndTime.In(loc).Format(time.Kitchen)
				}
				fmt.Fprintf(tw, "block\t%s\t%s\t%s\n", b.ID, span, deref(b.Title))
			}
			for _, t := range agenda.Tasks {
				state := "open"
				if t.IsCompleted() {
					state = "done"
				}
				fmt.Fprintf(tw, "task\t%s\t%s\t%s\n", t.ID, state, t.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date to show, YYYY-MM-DD (default today)")
	return cmd
}
