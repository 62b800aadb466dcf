package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
	"github.com/WailSalutem-Health-Care/carelog/internal/pagination"
	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

// recordFields maps flag names to record JSON fields. Readings go through
// the record's own decoders so "", "abc" and "0" behave exactly as they do
// in stored documents.
var recordFields = []struct {
	flag, field, usage string
}{
	{"name", "name", "patient name"},
	{"room", "room", "room number"},
	{"age", "age", "age"},
	{"date", "date", "record date; blank stamps the current time"},
	{"breakfast", "breakfast", "吃完, 吃一半 or 未進食"},
	{"lunch", "lunch", "吃完, 吃一半 or 未進食"},
	{"dinner", "dinner", "吃完, 吃一半 or 未進食"},
	{"water", "water", "water intake in ml"},
	{"systolic", "systolic", "systolic blood pressure"},
	{"diastolic", "diastolic", "diastolic blood pressure"},
	{"pulse", "pulse", "pulse per minute"},
	{"temperature", "temperature", "body temperature in °C"},
	{"sleep", "sleep", "好, 中 or 差"},
	{"note", "note", "free-text note"},
}

type recordFlags struct {
	values    map[string]*string
	patientID int64
	fromJSON  string
}

func (f *recordFlags) register(cmd *cobra.Command) {
	f.values = make(map[string]*string, len(recordFields))
	for _, rf := range recordFields {
		f.values[rf.flag] = cmd.Flags().String(rf.flag, "", rf.usage)
	}
	cmd.Flags().Int64Var(&f.patientID, "patient-id", 0, "link the record to a patient and copy name, room and age from it")
	cmd.Flags().StringVar(&f.fromJSON, "from-json", "", "read the record from a JSON file, - for stdin")
}

// overlay applies the flags given on the command line to base.
func (f *recordFlags) overlay(cmd *cobra.Command, base record.Record) (record.Record, error) {
	doc := map[string]any{}
	raw, err := json.Marshal(base)
	if err != nil {
		return base, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return base, err
	}
	for _, rf := range recordFields {
		if cmd.Flags().Changed(rf.flag) {
			doc[rf.field] = *f.values[rf.flag]
		}
	}
	if cmd.Flags().Changed("patient-id") {
		doc["patientId"] = f.patientID
	}

	raw, err = json.Marshal(doc)
	if err != nil {
		return base, err
	}
	var out record.Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return base, fmt.Errorf("invalid record: %w", err)
	}
	return out, nil
}

// build assembles the record for add and update. A --from-json document
// is the starting point when given; flags override it.
func (f *recordFlags) build(cmd *cobra.Command, a *app.App, base record.Record) (record.Record, error) {
	if f.fromJSON != "" {
		data, err := readInput(cmd.InOrStdin(), f.fromJSON)
		if err != nil {
			return base, err
		}
		var fromFile record.Record
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return base, fmt.Errorf("invalid record JSON: %w", err)
		}
		fromFile.ID = base.ID
		if fromFile.CreatedAt == "" {
			fromFile.CreatedAt = base.CreatedAt
		}
		base = fromFile
	}

	rec, err := f.overlay(cmd, base)
	if err != nil {
		return rec, err
	}
	if rec.PatientID.Has() {
		if err := fillFromPatient(cmd.Context(), a, &rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func fillFromPatient(ctx context.Context, a *app.App, rec *record.Record) error {
	p, err := a.GetPatient(ctx, rec.PatientID.Value)
	if err != nil {
		return err
	}
	if rec.Name == "" {
		rec.Name = p.Name
	}
	if rec.Room == "" {
		rec.Room = p.Room
	}
	if rec.Age == "" {
		rec.Age = record.Text(p.Age)
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func newRecordCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "record",
		Aliases: []string{"records"},
		Short:   "Manage daily care records",
	}

	var add recordFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Enter a care record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*record.Record, error) {
				rec, err := add.build(cmd, a, record.Record{})
				if err != nil {
					return nil, err
				}
				return a.CreateRecord(cmd.Context(), rec)
			})
		},
	}
	add.register(addCmd)

	var upd recordFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a care record",
		Long: `update loads the stored record, applies the given flags and saves the
result. With --from-json the file replaces the record; flags still apply
on top of it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*record.Record, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				existing, err := a.GetRecord(cmd.Context(), id)
				if err != nil {
					return nil, err
				}
				rec, err := upd.build(cmd, a, *existing)
				if err != nil {
					return nil, err
				}
				return a.UpdateRecord(cmd.Context(), id, rec)
			})
		},
	}
	upd.register(updateCmd)

	var (
		patientName string
		patientID   int64
		page, limit int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			load := func(a *app.App) ([]record.Record, error) {
				switch {
				case patientID != 0:
					return a.RecordsByPatientID(cmd.Context(), patientID)
				case patientName != "":
					return a.RecordsByPatient(cmd.Context(), patientName)
				default:
					return a.Records()
				}
			}
			if page > 0 {
				return run(cmd.Context(), rt, func(a *app.App) (pagination.Page[record.Record], error) {
					records, err := load(a)
					return pagination.Paginate(records, pagination.NewParams(page, limit)), err
				})
			}
			return run(cmd.Context(), rt, load)
		},
	}
	listCmd.Flags().StringVar(&patientName, "patient", "", "only records with this patient name")
	listCmd.Flags().Int64Var(&patientID, "patient-id", 0, "only records linked to this patient")
	listCmd.Flags().IntVar(&page, "page", 0, "page number; 0 lists everything")
	listCmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "records per page")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*record.Record, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				return a.GetRecord(cmd.Context(), id)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				return nil, a.DeleteRecord(cmd.Context(), id)
			})
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Find records by name, room or note",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			return run(cmd.Context(), rt, func(a *app.App) ([]record.Record, error) {
				return a.SearchRecords(cmd.Context(), term)
			})
		},
	}

	namesCmd := &cobra.Command{
		Use:   "names",
		Short: "List the patient names that have records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) ([]string, error) {
				return a.PatientNames()
			})
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (record.Statistics, error) {
				return a.Statistics()
			})
		},
	}

	cmd.AddCommand(addCmd, updateCmd, listCmd, getCmd, deleteCmd, searchCmd, namesCmd, statsCmd)
	return cmd
}
