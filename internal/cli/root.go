// Package cli wires the care log façade to a cobra command tree. Every
// command prints one JSON envelope {success, data, error} on stdout and
// logs to stderr.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
	"github.com/WailSalutem-Health-Care/carelog/internal/config"
	"github.com/WailSalutem-Health-Care/carelog/internal/logger"
	"github.com/WailSalutem-Health-Care/carelog/internal/messaging"
	"github.com/WailSalutem-Health-Care/carelog/internal/telemetry"
	"github.com/WailSalutem-Health-Care/carelog/internal/viewcache"
)

// ErrFailed is returned by Execute when a command reported success=false.
// The envelope has already been printed.
var ErrFailed = errors.New("command failed")

type runtime struct {
	out io.Writer
	now func() time.Time

	configPath string
	dbPath     string
	logLevel   string

	cfg       config.Config
	logger    *zap.Logger
	telemetry *telemetry.Provider
	app       *app.App
}

// Run executes the command line args, writing envelopes to out.
func Run(ctx context.Context, out io.Writer, args []string) error {
	rt := &runtime{out: out, now: time.Now}
	defer rt.teardown(ctx)

	root := newRootCommand(rt)
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

// Execute runs the command line in os.Args.
func Execute(ctx context.Context) error {
	err := Run(ctx, os.Stdout, os.Args[1:])
	if err != nil && !errors.Is(err, ErrFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func newRootCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "carelog",
		Short: "Long-term care record keeping",
		Long: `carelog keeps daily care records (meals, water intake, vital signs, sleep)
and the patient roster of a long-term care facility in a local store.

Every command prints a JSON envelope {"success", "data", "error"} on stdout.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rt.setup,
	}
	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "config file (default "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&rt.dbPath, "db", "", "sqlite database file, overrides storage.path")
	root.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newPatientCommand(rt),
		newRecordCommand(rt),
		newChartCommand(rt),
		newBackupCommand(rt),
		newRestoreCommand(rt),
		newExportCommand(rt),
		newDBCommand(rt),
		newViewsCommand(rt),
	)
	return root
}

func (rt *runtime) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	if rt.dbPath != "" {
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.Path = rt.dbPath
	}
	if rt.logLevel != "" {
		cfg.Logging.Level = rt.logLevel
	}
	rt.cfg = cfg

	rt.logger, err = logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := cmd.Context()
	if cfg.Telemetry.Enabled {
		rt.telemetry, err = telemetry.InitProvider(ctx, telemetry.ConfigFrom(cfg.Telemetry), rt.logger)
		if err != nil {
			rt.logger.Warn("Continuing without telemetry", zap.Error(err))
		}
	}
	metrics, err := telemetry.InitMetrics(nil)
	if err != nil {
		rt.logger.Warn("Failed to initialize metrics", zap.Error(err))
	}

	var publisher messaging.PublisherInterface
	if cfg.Messaging.RabbitMQURL != "" {
		p, err := messaging.NewPublisher(cfg.Messaging.RabbitMQURL, cfg.Messaging.Exchange, rt.logger)
		if err != nil {
			rt.logger.Warn("Continuing without event publishing", zap.Error(err))
		} else {
			publisher = p
		}
	}

	rt.app = app.New(app.Options{
		Config:    cfg,
		Logger:    rt.logger,
		Publisher: publisher,
		Metrics:   metrics,
		ViewStore: viewcache.New(cfg.ViewCache),
		Now:       rt.now,
	})
	return nil
}

func (rt *runtime) teardown(ctx context.Context) {
	if rt.app != nil {
		if err := rt.app.Close(); err != nil {
			rt.logger.Warn("Failed to close application", zap.Error(err))
		}
	}
	if rt.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = rt.telemetry.Shutdown(shutdownCtx)
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}

// open initializes the store on first use.
func (rt *runtime) open(ctx context.Context) (*app.App, error) {
	if !rt.app.Initialize(ctx) {
		return nil, rt.app.Err()
	}
	return rt.app, nil
}
