package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"edu-etl/pkg/config"
	"edu-etl/pkg/dag"
	"edu-etl/pkg/db"
	"edu-etl/pkg/httpclient"
	"edu-etl/pkg/logger"
	"edu-etl/pkg/replication"
	"edu-etl/pkg/tasks"
)

// app is everything a subcommand needs, built once per invocation
type app struct {
	settings config.Settings
	graph    *dag.Graph
	runner   *dag.Runner
	open     db.Opener
	pg       *db.PostgresClient
}

func (a *app) close() {
	if a.pg != nil {
		_ = a.pg.Close()
	}
}

func bootstrap(ctx context.Context, envFiles []string) (*app, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	logger.Init(logger.FromEnv())

	s := config.Load()
	if err := s.Validate(); err != nil {
		return nil, err
	}

	a := &app{settings: s, open: db.MongoOpener(s.Mongo)}
	deps := tasks.Deps{
		HTTP:    httpclient.NewClient(httpclient.ClientType(s.HTTPProfile), s.HTTPWait),
		Sources: s.Sources,
	}
	if s.PGDSN != "" {
		a.pg = db.NewPostgresClient(db.PostgresConfig{DSN: s.PGDSN})
		if err := a.pg.Connect(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		r, err := replication.NewReplicator(replication.Config{Postgres: a.pg})
		if err != nil {
			a.close()
			return nil, err
		}
		deps.Replicator = r
	}

	spec := tasks.DefaultSpec(deps.Replicator != nil)
	if s.DAGFile != "" {
		loaded, err := dag.LoadSpec(s.DAGFile)
		if err != nil {
			a.close()
			return nil, err
		}
		spec = loaded
	}
	g, err := dag.Build(spec)
	if err != nil {
		a.close()
		return nil, err
	}
	a.graph = g

	a.runner, err = dag.NewRunner(g, tasks.Registry(deps), a.open, dag.Options{
		Retries:     s.Runner.Retries,
		RetryDelay:  s.Runner.RetryDelay,
		MaxParallel: s.Runner.MaxParallel,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	if a.settings.ReportPretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func main() {
	var envFiles []string

	withApp := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, envFiles)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(ctx, a, args)
		}
	}

	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Education ETL: ingest, transform and load country, university and enrollment data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading settings (missing files are skipped)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the whole graph once",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			report, err := a.runner.Run(ctx)
			if perr := a.printJSON(report); perr != nil {
				return perr
			}
			return err
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "task <name>",
		Short: "Run a single task, ignoring its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			report, err := a.runner.RunTask(ctx, args[0])
			if perr := a.printJSON(report); perr != nil {
				return perr
			}
			return err
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "graph",
		Short: "Print the execution levels of the graph",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ context.Context, a *app, _ []string) error {
			for i, level := range a.graph.Levels() {
				fmt.Printf("level %d:\n", i)
				for _, name := range level {
					if deps := a.graph.DependsOn(name); len(deps) > 0 {
						fmt.Printf("  %s <- %s\n", name, strings.Join(deps, ", "))
					} else {
						fmt.Printf("  %s\n", name)
					}
				}
			}
			return nil
		}),
	})

	var field string
	var values []string
	clean := &cobra.Command{
		Use:   "clean <collection>",
		Short: "Delete documents whose field matches any of the given values",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			vals := make([]any, 0, len(values))
			for _, v := range values {
				vals = append(vals, v)
			}
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close(context.WithoutCancel(ctx))

			n, err := db.CleanCollection(ctx, s, args[0], map[string][]any{field: vals})
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d documents from %s\n", n, args[0])
			return nil
		}),
	}
	clean.Flags().StringVar(&field, "field", "", "field to match (dotted paths allowed)")
	clean.Flags().StringSliceVar(&values, "values", nil, "comma separated values to delete")
	_ = clean.MarkFlagRequired("field")
	_ = clean.MarkFlagRequired("values")
	root.AddCommand(clean)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Get().Error().Err(err).Msg("pipeline failed")
		stop()
		os.Exit(1)
	}
}
