package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/compliance"
	"github.com/ezachrisen/dataguard/config"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "dataguard",
		Short:         "Data validation rules and compliance checks for a source of truth",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./dataguard.yaml)")

	// withApp loads the configuration, wires the components and runs fn.
	withApp := func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			slog.SetDefault(a.logger)
			return fn(cmd, a, args)
		}
	}

	root.AddCommand(
		newRunCmd(withApp),
		newCleanupCmd(withApp),
		newChecksCmd(withApp),
		newRulesCmd(withApp),
		newValidateCmd(withApp),
		newImportCmd(withApp),
		newScheduleCmd(withApp),
	)
	return root
}

type appFunc func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error

func newRunCmd(withApp appFunc) *cobra.Command {
	var opts compliance.JobOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run compliance checks against every object of their entity types",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			sum, err := a.runner.Run(cmd.Context(), opts)
			if sum != nil {
				fmt.Fprintln(cmd.OutOrStdout(), sum)
			}
			return errors.Wrap(err, "compliance run")
		}),
	}
	cmd.Flags().StringSliceVar(&opts.Checks, "check", nil, "name of a check to run (repeatable; default all)")
	cmd.Flags().BoolVar(&opts.OverrideEnforce, "override-enforce", false, "never treat enforced failures as blocking")
	return cmd
}

func newCleanupCmd(withApp appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete results whose object no longer exists",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			n, err := a.runner.CleanupOrphans(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "cleanup")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d orphaned results\n", n)
			return nil
		}),
	}
}

func newChecksCmd(withApp appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "List the discovered compliance checks",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			tw := table.NewWriter()
			tw.SetTitle("\nCOMPLIANCE CHECKS\n")
			tw.AppendHeader(table.Row{"Check", "Entity Type", "Enforce"})
			for _, c := range a.discovery.AllRules(cmd.Context()) {
				enforce := ""
				if c.Enforce() {
					enforce = "yes"
				}
				tw.AppendRow(table.Row{c.Name(), c.EntityType(), enforce})
			}
			style := table.StyleLight
			style.Format.Header = text.FormatDefault
			tw.SetStyle(style)
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return nil
		}),
	}
}

func newRulesCmd(withApp appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the declarative data validation rules",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.rules)
			return nil
		}),
	}
}

func newValidateCmd(withApp appFunc) *cobra.Command {
	var entityType, id string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the save-path validation on a stored object",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			obj, err := a.objects.Get(cmd.Context(), entityType, id)
			if err != nil {
				return errors.Wrap(err, "validate")
			}
			err = a.hook.Clean(cmd.Context(), obj)
			var fe *dataguard.FieldError
			if errors.As(err, &fe) {
				tw := table.NewWriter()
				tw.SetTitle(fmt.Sprintf("\n%s FAILED VALIDATION\n", obj))
				tw.AppendHeader(table.Row{"Field", "Message"})
				for field, msgs := range fe.Fields {
					for _, m := range msgs {
						tw.AppendRow(table.Row{field, m})
					}
				}
				tw.SortBy([]table.SortBy{{Name: "Field", Mode: table.Asc}})
				style := table.StyleLight
				style.Format.Header = text.FormatDefault
				tw.SetStyle(style)
				fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
				return fmt.Errorf("%s failed validation", obj)
			}
			if err != nil {
				return errors.Wrap(err, "validate")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", obj)
			return nil
		}),
	}
	cmd.Flags().StringVar(&entityType, "type", "", "entity type (app_label.model)")
	cmd.Flags().StringVar(&id, "id", "", "object id")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newImportCmd(withApp appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load objects from a JSON array into the object store",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "import")
			}
			var objs []*dataguard.Object
			if err := json.Unmarshal(data, &objs); err != nil {
				return errors.Wrapf(err, "decoding %s", args[0])
			}
			for _, o := range objs {
				if _, err := a.schemas.Lookup(o.Type); err != nil {
					return errors.Wrapf(err, "object %s", o)
				}
			}
			if err := a.objects.Put(cmd.Context(), objs...); err != nil {
				return errors.Wrap(err, "import")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d objects\n", len(objs))
			return nil
		}),
	}
}

func newScheduleCmd(withApp appFunc) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run compliance checks on the configured interval until interrupted",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			sc := a.cfg.Schedule
			if sc.Interval <= 0 {
				return errors.New("schedule.interval must be set to run the scheduler")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server failed", "error", err)
					}
				}()
				defer srv.Shutdown(context.Background())
			}

			s := compliance.NewScheduler(a.runner,
				sc.Interval,
				compliance.JobOptions{Checks: sc.Checks, OverrideEnforce: sc.OverrideEnforce},
				a.logger)
			s.Start(ctx)
			<-ctx.Done()
			s.Stop()
			return nil
		}),
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}
