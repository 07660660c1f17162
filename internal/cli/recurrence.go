package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dukerupert/cadence/internal/engine"
	"github.com/dukerupert/cadence/internal/model"
)

func NewRecurrenceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recurrence",
		Aliases: []string{"rec"},
		Short:   "Create and manage recurrence rules",
	}

	cmd.AddCommand(newRecurrenceCreateCommand(rootOpts))
	cmd.AddCommand(newRecurrenceListCommand(rootOpts))
	cmd.AddCommand(newRecurrenceShowCommand(rootOpts))
	cmd.AddCommand(newRecurrenceDeleteCommand(rootOpts))
	cmd.AddCommand(newRecurrenceDeactivateCommand(rootOpts))
	cmd.AddCommand(newRecurrenceReactivateCommand(rootOpts))
	cmd.AddCommand(newRecurrenceResumeCommand(rootOpts))
	cmd.AddCommand(newRecurrenceStopCommand(rootOpts))
	cmd.AddCommand(newRecurrenceExpiryCommand(rootOpts))
	cmd.AddCommand(newRecurrenceTemplateCommand(rootOpts))
	cmd.AddCommand(newRecurrenceDetachCommand(rootOpts))

	return cmd
}

// optional returns a pointer to the flag's value when it was set.
func optional(flags *pflag.FlagSet, name, value string) *string {
	if !flags.Changed(name) {
		return nil
	}
	return &value
}

func optionalInt(flags *pflag.FlagSet, name string, value int) *int {
	if !flags.Changed(name) {
		return nil
	}
	return &value
}

type templateFlags struct {
	title      string
	glance     string
	detail     string
	estimated  int
	duration   int
	startLocal string
	allDay     bool
	area       string
}

func (f *templateFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.title, "title", "", "instance title; {{date}} style placeholders are expanded")
	flags.StringVar(&f.glance, "glance", "", "short note shown at a glance")
	flags.StringVar(&f.detail, "detail", "", "long note")
	flags.IntVar(&f.estimated, "estimate", 0, "estimated minutes (tasks)")
	flags.IntVar(&f.duration, "duration", 0, "block length in minutes (time blocks)")
	flags.StringVar(&f.startLocal, "start-time", "", "wall-clock start, HH:MM:SS (time blocks)")
	flags.BoolVar(&f.allDay, "all-day", false, "all-day time block")
	flags.StringVar(&f.area, "area", "", "area id")
}

func (f *templateFlags) fields(flags *pflag.FlagSet) engine.TemplateFields {
	return engine.TemplateFields{
		Title:             f.title,
		GlanceNote:        optional(flags, "glance", f.glance),
		DetailNote:        optional(flags, "detail", f.detail),
		EstimatedDuration: optionalInt(flags, "estimate", f.estimated),
		DurationMinutes:   optionalInt(flags, "duration", f.duration),
		StartTimeLocal:    f.startLocal,
		IsAllDay:          f.allDay,
		AreaID:            optional(flags, "area", f.area),
	}
}

func printRule(cmd *cobra.Command, opts *RootOptions, rule *model.RecurrenceRule) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), rule)
	}
	return writeRules(cmd.OutOrStdout(), []model.RecurrenceRule{*rule})
}

func newRecurrenceCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		kind, rule, timeType, start, end, tz, expiry, seed string
		tpl                                                templateFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recurrence rule and its template",
		Long: `Create a recurrence rule.

Example:
  cadence recurrence create --kind task --rule "FREQ=WEEKLY;BYDAY=MO" --title "Water plants"
  cadence recurrence create --kind time_block --rule FREQ=DAILY --start-date 2025-03-01 \
      --time-type FIXED --timezone Europe/Paris --start-time 07:30:00 --duration 45 --title Run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			flags := cmd.Flags()
			created, err := a.engine.CreateRecurrence(cmd.Context(), engine.CreateRecurrenceInput{
				Kind:           model.Kind(kind),
				Rule:           rule,
				TimeType:       model.TimeType(timeType),
				StartDate:      optional(flags, "start-date", start),
				EndDate:        optional(flags, "end-date", end),
				Timezone:       optional(flags, "timezone", tz),
				ExpiryBehavior: model.ExpiryBehavior(expiry),
				Template:       tpl.fields(flags),
				SeedInstanceID: optional(flags, "seed", seed),
			})
			if err != nil {
				return err
			}
			return printRule(cmd, rootOpts, created)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&kind, "kind", string(model.KindTask), "instance kind (task|time_block)")
	flags.StringVar(&rule, "rule", "", "RRULE expression, e.g. FREQ=WEEKLY;BYDAY=MO,WE")
	flags.StringVar(&timeType, "time-type", "", "FLOATING or FIXED (default FLOATING)")
	flags.StringVar(&start, "start-date", "", "first date the rule applies, YYYY-MM-DD")
	flags.StringVar(&end, "end-date", "", "last date the rule applies, YYYY-MM-DD")
	flags.StringVar(&tz, "timezone", "", "IANA zone for FIXED rules")
	flags.StringVar(&expiry, "expiry", "", "CARRYOVER_TO_STAGING or EXPIRE (default CARRYOVER_TO_STAGING)")
	flags.StringVar(&seed, "seed", "", "existing instance id to adopt as the first occurrence")
	tpl.register(flags)
	_ = cmd.MarkFlagRequired("rule")

	return cmd
}

func newRecurrenceListCommand(rootOpts *RootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurrence rules of one kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			rules, err := a.engine.ListRecurrences(cmd.Context(), model.Kind(kind))
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), rules)
			}
			return writeRules(cmd.OutOrStdout(), rules)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(model.KindTask), "instance kind (task|time_block)")
	return cmd
}

func newRecurrenceShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recurrence rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			rule, err := a.engine.GetRecurrence(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRule(cmd, rootOpts, rule)
		},
	}
}

// idCommand builds a subcommand that applies one engine call to an id.
func idCommand(rootOpts *RootOptions, use, short, done string, fn func(cmd *cobra.Command, e *engine.Engine, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := fn(cmd, a.engine, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, args[0])
			return nil
		},
	}
}

func newRecurrenceDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "delete", "Delete a rule, its template and its live instances", "deleted",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.DeleteRecurrence(cmd.Context(), id)
		})
}

func newRecurrenceDeactivateCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "deactivate", "Pause a rule without touching existing instances", "deactivated",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.DeactivateRecurrence(cmd.Context(), id)
		})
}

func newRecurrenceReactivateCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "reactivate", "Unpause a deactivated rule; its dates are left as they are", "reactivated",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.ReactivateRecurrence(cmd.Context(), id)
		})
}

func newRecurrenceResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "resume", "Undo a stop and restore the rule's previous end date", "resumed",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.ResumeRecurrence(cmd.Context(), id)
		})
}

func newRecurrenceStopCommand(rootOpts *RootOptions) *cobra.Command {
	var date string
	cmd := idCommand(rootOpts, "stop", "End a rule on a date and retire instances after it", "stopped",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			if date == "" {
				date = e.Today()
			}
			return e.StopRecurrence(cmd.Context(), id, date)
		})
	cmd.Flags().StringVar(&date, "date", "", "stop date, YYYY-MM-DD (default today)")
	return cmd
}

func newRecurrenceExpiryCommand(rootOpts *RootOptions) *cobra.Command {
	var behavior string
	cmd := idCommand(rootOpts, "expiry", "Change what happens to past-due instances", "updated",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.SetExpiryBehavior(cmd.Context(), id, model.ExpiryBehavior(behavior))
		})
	cmd.Flags().StringVar(&behavior, "behavior", "", "CARRYOVER_TO_STAGING or EXPIRE")
	_ = cmd.MarkFlagRequired("behavior")
	return cmd
}

func newRecurrenceTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	var tpl templateFlags

	cmd := &cobra.Command{
		Use:   "template <template-id>",
		Short: "Replace a rule's template; only future instances change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.engine.UpdateTemplate(cmd.Context(), args[0], tpl.fields(cmd.Flags()))
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), updated)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", updated.ID)
			return nil
		},
	}
	tpl.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newRecurrenceDetachCommand(rootOpts *RootOptions) *cobra.Command {
	var kind string
	cmd := idCommand(rootOpts, "detach", "Turn one instance into an ordinary item", "detached",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.DetachInstance(cmd.Context(), model.Kind(kind), id)
		})
	cmd.Flags().StringVar(&kind, "kind", string(model.KindTask), "instance kind (task|time_block)")
	return cmd
}

func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Complete, archive or delete tasks",
	}

	cmd.AddCommand(idCommand(rootOpts, "complete", "Mark a task completed", "completed",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.CompleteTask(cmd.Context(), id)
		}))
	cmd.AddCommand(idCommand(rootOpts, "archive", "Archive a task and clean up blocks it leaves orphaned", "archived",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.ArchiveTask(cmd.Context(), id)
		}))
	cmd.AddCommand(idCommand(rootOpts, "delete", "Delete a task and clean up blocks it leaves orphaned", "deleted",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.DeleteTask(cmd.Context(), id)
		}))

	var blockID string
	link := idCommand(rootOpts, "link", "Link a task to a time block", "linked",
		func(cmd *cobra.Command, e *engine.Engine, id string) error {
			return e.LinkTaskBlock(cmd.Context(), id, blockID)
		})
	link.Flags().StringVar(&blockID, "block", "", "time block id")
	_ = link.MarkFlagRequired("block")
	cmd.AddCommand(link)

	return cmd
}
