package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
	"github.com/WailSalutem-Health-Care/carelog/internal/export"
	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

type exportResult struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
}

type exportFlags struct {
	out         string
	patientName string
}

func (f *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (default <export.dir>/<export.prefix>_<date>.<ext>)")
	cmd.Flags().StringVar(&f.patientName, "patient", "", "only this patient's records")
}

func (f *exportFlags) path(rt *runtime, ext string) string {
	if f.out != "" {
		return f.out
	}
	return filepath.Join(rt.cfg.Export.Dir, export.FileName(rt.cfg.Export.Prefix, ext, rt.now()))
}

func (f *exportFlags) records(cmd *cobra.Command, a *app.App) ([]record.Record, error) {
	if f.patientName != "" {
		return a.RecordsByPatient(cmd.Context(), f.patientName)
	}
	return a.Records()
}

func writeFile(path string, render func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func newExportCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export care records as a spreadsheet or printable report",
	}

	var excel exportFlags
	excelCmd := &cobra.Command{
		Use:   "excel",
		Short: "Write an .xlsx spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*exportResult, error) {
				records, err := excel.records(cmd, a)
				if err != nil {
					return nil, err
				}
				path := excel.path(rt, "xlsx")
				err = writeFile(path, func(buf *bytes.Buffer) error {
					return export.WriteExcel(buf, records)
				})
				if err != nil {
					return nil, err
				}
				return &exportResult{Path: path, Records: len(records)}, nil
			})
		},
	}
	excel.register(excelCmd)

	var (
		report   exportFlags
		detailed bool
	)
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Write a printable HTML report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*exportResult, error) {
				if detailed && report.patientName == "" {
					return nil, fmt.Errorf("--detailed needs --patient")
				}
				records, err := report.records(cmd, a)
				if err != nil {
					return nil, err
				}
				path := report.path(rt, "html")
				err = writeFile(path, func(buf *bytes.Buffer) error {
					return export.WriteReport(buf, records, export.ReportOptions{
						Detailed:    detailed,
						PatientName: report.patientName,
						GeneratedAt: rt.now(),
					})
				})
				if err != nil {
					return nil, err
				}
				return &exportResult{Path: path, Records: len(records)}, nil
			})
		},
	}
	report.register(reportCmd)
	reportCmd.Flags().BoolVar(&detailed, "detailed", false, "one block per record for a single patient")

	cmd.AddCommand(excelCmd, reportCmd)
	return cmd
}
