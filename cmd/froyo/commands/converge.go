package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/config"
	"github.com/openfroyo/actiontracker/pkg/engine"
	"github.com/openfroyo/actiontracker/pkg/errormapper"
	"github.com/openfroyo/actiontracker/pkg/events"
	"github.com/openfroyo/actiontracker/pkg/policy"
	"github.com/openfroyo/actiontracker/pkg/providers"
	"github.com/openfroyo/actiontracker/pkg/reporters"
	"github.com/openfroyo/actiontracker/pkg/resources"
	"github.com/openfroyo/actiontracker/pkg/stores"
	"github.com/openfroyo/actiontracker/pkg/telemetry"
)

type convergeOptions struct {
	files     []string
	node      string
	whyRun    bool
	statePath string
	output    string
	policies  []string
}

func newConvergeCommand() *cobra.Command {
	opts := &convergeOptions{}

	cmd := &cobra.Command{
		Use:   "converge -f <declaration>...",
		Short: "Converge declared resources",
		Long: `Converge the resources of one or more declaration files, in order.

Every resource action is recorded. At the end of the run a summary is
written and, unless state_path is empty, the run is saved for "froyo report".
Interrupting the run records in-flight and unreached resources as
unprocessed.`,
		Example: `  # Converge a declaration
  froyo converge -f site.yaml

  # Preview changes without making them
  froyo converge -f site.cue --why-run

  # Enforce site policies on top of the built-in ones
  froyo converge -f site.yaml --policy ./policies

  # Use a run config and write a JSON summary to a file
  froyo converge -c run.yaml -f site.yaml --json --output last-run.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig()
			if err != nil {
				return err
			}
			if opts.node != "" {
				cfg.Node = opts.node
			}
			if opts.whyRun {
				cfg.WhyRun = true
			}
			if cmd.Flags().Changed("state") {
				cfg.StatePath = opts.statePath
			}
			if opts.output != "" {
				cfg.Report.Output = opts.output
			}
			cfg.PolicyPaths = append(cfg.PolicyPaths, opts.policies...)
			return runConverge(cmd.Context(), cmd.OutOrStdout(), cfg, opts.files)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "declaration file (.yaml, .yml, .json, .cue)")
	cmd.Flags().StringVar(&opts.node, "node", "", "node name (defaults to the hostname)")
	cmd.Flags().BoolVar(&opts.whyRun, "why-run", false, "report what would change without changing it")
	cmd.Flags().StringVar(&opts.statePath, "state", "", "SQLite database runs are saved in (empty disables)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `summary destination ("-" for stdout)`)
	cmd.Flags().StringSliceVar(&opts.policies, "policy", nil, "Rego policy file or directory to enforce")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// runConverge wires the collection, its reporters and the engine, then
// converges the declarations in files.
func runConverge(ctx context.Context, stdout io.Writer, cfg *config.RunConfig, files []string) error {
	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := tel.Shutdown(shutdownCtx); serr != nil {
			tel.Logger.WithError(serr).Warn("telemetry shutdown failed")
		}
	}()
	run := engine.NewRun(cfg.Node)
	logger := tel.Logger.WithField("node", cfg.Node).Zerolog()

	collection := actions.New(
		actions.WithLogger(logger),
		actions.WithErrorMapper(errormapper.New()),
	)
	bus := events.NewDispatcher(collection).WithLogger(logger)
	collection.SetAnnouncer(bus)

	if out, closeOut, err := summaryOutput(stdout, cfg.Report.Output); err != nil {
		return err
	} else if out != nil {
		defer closeOut()
		bus.Register(reporters.NewSummaryReporter(out,
			reporters.WithFormat(cfg.Report.Format),
			reporters.WithFilter(cfg.Report.MaxNesting, cfg.Report.StatusFilter()...),
			reporters.WithSummaryLogger(logger),
		))
	}

	bus.Register(reporters.NewMetricsReporter(tel.Metrics))
	if cfg.Telemetry.Events.Enabled {
		tel.Events.Subscribe(func(e telemetry.Event) {
			logger.Debug().Str("event", e.Type).Str("resource", e.Resource).Msg(e.Message)
		}, telemetry.FilterByLevel(telemetry.EventLevelInfo))
		bus.Register(reporters.NewEventReporter(tel.Events, logger))
	}

	if cfg.StatePath != "" {
		store, err := openStore(ctx, cfg.StatePath)
		if err != nil {
			return err
		}
		defer store.Close()
		bus.Register(reporters.NewAuditReporter(store, logger))
	}

	tel.Metrics.Serve(ctx, tel.Logger.NewComponentLogger("metrics").Zerolog())

	registry := providers.Default(logger)
	eng := engine.New(registry, bus,
		engine.WithLogger(logger),
		engine.WithTracer(tel.Tracer),
		engine.WithWhyRun(cfg.WhyRun),
		engine.WithGuardTimeout(cfg.GuardTimeout),
	)

	declared, err := loadDeclarations(files, logger)
	if err == nil {
		err = registry.Validate(declared)
	}
	if err == nil {
		err = checkPolicies(ctx, tel.Logger.WithRunID(run.ID).Zerolog(), registry, cfg.PolicyPaths, policy.Context{
			Node:   cfg.Node,
			WhyRun: cfg.WhyRun,
		}, declared)
	}
	if err != nil {
		eng.FailRun(run, err)
		return fmt.Errorf("declarations rejected: %w", err)
	}

	if err := eng.Converge(ctx, run, declared); err != nil {
		return fmt.Errorf("run %s failed: %w", run.ID, err)
	}
	return nil
}

func loadDeclarations(files []string, logger zerolog.Logger) ([]*resources.Declared, error) {
	loader := config.NewLoader()
	var declared []*resources.Declared
	for _, path := range files {
		decl, err := loader.LoadDeclaration(path)
		if err != nil {
			return nil, err
		}
		logger.Debug().
			Str("file", path).
			Int("resources", decl.Count()).
			Msg("declaration loaded")
		declared = append(declared, decl.Build()...)
	}
	return declared, nil
}

// checkPolicies evaluates the built-in policies and those under paths.
func checkPolicies(ctx context.Context, logger zerolog.Logger, registry *engine.Registry, paths []string, rc policy.Context, declared []*resources.Declared) error {
	pe, err := policy.NewEngine(logger, policy.WithActionResolver(registry.ActionFor))
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		if err := pe.LoadPolicies(ctx, paths); err != nil {
			return err
		}
	}
	result, err := pe.Evaluate(ctx, declared, rc)
	if err != nil {
		return err
	}
	return result.Err()
}

// summaryOutput resolves the summary destination. A nil writer disables
// the summary.
func summaryOutput(stdout io.Writer, output string) (io.Writer, func(), error) {
	switch output {
	case "":
		return nil, func() {}, nil
	case "-":
		return stdout, func() {}, nil
	default:
		f, err := os.Create(output)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create summary file: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	}
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return store, nil
}
