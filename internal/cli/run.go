package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/cadence/internal/scheduler"
)

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Materialize upcoming dates on a schedule until interrupted",
		Long: `Run the materialization scheduler.

Every tick of materialize_cron ensures both tasks and time blocks exist for
today through horizon_days ahead. A tick also runs at startup.

Example:
  cadence run --config ./cadence.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			sched, err := scheduler.New(a.engine, a.cfg.MaterializeCron, a.cfg.HorizonDays, loc, a.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			a.logger.Info("shutting down")
			sched.Stop()
			return nil
		},
	}
}
