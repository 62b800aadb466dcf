// Command backup is the scheduled backup job. It snapshots every care
// record into the configured backup directory and prunes old snapshots.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
	"github.com/WailSalutem-Health-Care/carelog/internal/cli"
	"github.com/WailSalutem-Health-Care/carelog/internal/config"
	"github.com/WailSalutem-Health-Care/carelog/internal/logger"
)

const filePrefix = "backup-"

func main() {
	var (
		configPath string
		keep       int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:          "backup",
		Short:        "Write a care record backup and prune old ones",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runJob(ctx, configPath, keep)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath+")")
	cmd.Flags().IntVar(&keep, "keep", 30, "number of backups to retain; 0 keeps all")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "job timeout")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func runJob(ctx context.Context, configPath string, keep int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Backup job starting",
		zap.String("dir", cfg.Backup.Dir),
		zap.Int("keep", keep),
	)

	a := app.New(app.Options{Config: cfg, Logger: log})
	defer a.Close()
	if !a.Initialize(ctx) {
		log.Error("Failed to open store", zap.Error(a.Err()))
		return a.Err()
	}

	b, err := a.Backup(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	name := fmt.Sprintf("%s%s-%s.json", filePrefix, now.Format("20060102T150405Z"), uuid.NewString())
	path := filepath.Join(cfg.Backup.Dir, name)
	if err := cli.WriteBackup(path, b); err != nil {
		log.Error("Failed to write backup", zap.String("path", path), zap.Error(err))
		return err
	}
	log.Info("Backup written", zap.String("path", path), zap.Int("records", b.TotalRecords))

	removed, err := prune(cfg.Backup.Dir, keep)
	if err != nil {
		log.Warn("Failed to prune old backups", zap.Error(err))
		return nil
	}
	log.Info("Backup job finished", zap.Int("pruned", removed))
	return nil
}

// prune deletes all but the newest keep backup files in dir. File names
// start with a UTC timestamp, so name order is age order.
func prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return 0, nil
	}
	sort.Strings(names)

	removed := 0
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
