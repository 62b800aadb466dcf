package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

type backupResult struct {
	Path         string `json:"path"`
	TotalRecords int    `json:"totalRecords"`
}

type restoreResult struct {
	Restored int `json:"restored"`
}

// WriteBackup writes b as indented JSON to path, creating the directory.
func WriteBackup(path string, b *record.Backup) error {
	body, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

func newBackupCommand(rt *runtime) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot every care record to JSON",
		Long: `backup prints the snapshot {version, exportDate, totalRecords, records}
as the envelope data, or writes it to --out and reports the path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return run(cmd.Context(), rt, func(a *app.App) (*record.Backup, error) {
					return a.Backup(cmd.Context())
				})
			}
			return run(cmd.Context(), rt, func(a *app.App) (*backupResult, error) {
				b, err := a.Backup(cmd.Context())
				if err != nil {
					return nil, err
				}
				if err := WriteBackup(out, b); err != nil {
					return nil, err
				}
				return &backupResult{Path: out, TotalRecords: b.TotalRecords}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the backup to this file")
	return cmd
}

func newRestoreCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace every care record with a backup",
		Long: `restore replaces the whole record collection with the records of a backup
file, - for stdin. Nothing changes unless every record is accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*restoreResult, error) {
				data, err := readInput(cmd.InOrStdin(), args[0])
				if err != nil {
					return nil, err
				}
				n, err := a.Restore(cmd.Context(), data)
				if err != nil {
					return nil, err
				}
				return &restoreResult{Restored: n}, nil
			})
		},
	}
}
