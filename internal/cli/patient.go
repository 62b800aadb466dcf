package cli

import (
	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
	"github.com/WailSalutem-Health-Care/carelog/internal/pagination"
	"github.com/WailSalutem-Health-Care/carelog/internal/patient"
)

type patientFlags struct {
	name, age, room                  string
	gender, diagnosis, notes         string
	emergencyContact, emergencyPhone string
	status                           string
}

func (f *patientFlags) register(cmd *cobra.Command, withStatus bool) {
	cmd.Flags().StringVar(&f.name, "name", "", "patient name")
	cmd.Flags().StringVar(&f.age, "age", "", "age in years")
	cmd.Flags().StringVar(&f.room, "room", "", "room number")
	cmd.Flags().StringVar(&f.gender, "gender", "", "gender")
	cmd.Flags().StringVar(&f.diagnosis, "diagnosis", "", "diagnosis")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes")
	cmd.Flags().StringVar(&f.emergencyContact, "emergency-contact", "", "emergency contact")
	cmd.Flags().StringVar(&f.emergencyPhone, "emergency-phone", "", "emergency phone")
	if withStatus {
		cmd.Flags().StringVar(&f.status, "status", "", "active or inactive")
	}
}

// update builds a request carrying only the flags given on the command
// line.
func (f *patientFlags) update(cmd *cobra.Command) patient.UpdatePatientRequest {
	var req patient.UpdatePatientRequest
	str := func(flag string, v string) *string {
		if !cmd.Flags().Changed(flag) {
			return nil
		}
		return &v
	}
	req.Name = str("name", f.name)
	req.Room = str("room", f.room)
	req.Gender = str("gender", f.gender)
	req.Diagnosis = str("diagnosis", f.diagnosis)
	req.Notes = str("notes", f.notes)
	req.EmergencyContact = str("emergency-contact", f.emergencyContact)
	req.EmergencyPhone = str("emergency-phone", f.emergencyPhone)
	if cmd.Flags().Changed("age") {
		age := patient.Age(f.age)
		req.Age = &age
	}
	if cmd.Flags().Changed("status") {
		status := patient.Status(f.status)
		req.Status = &status
	}
	return req
}

func newPatientCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Manage the patient roster",
	}

	var add patientFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*patient.Patient, error) {
				return a.CreatePatient(cmd.Context(), patient.CreatePatientRequest{
					Name:             add.name,
					Age:              patient.Age(add.age),
					Room:             add.room,
					Gender:           add.gender,
					Diagnosis:        add.diagnosis,
					Notes:            add.notes,
					EmergencyContact: add.emergencyContact,
					EmergencyPhone:   add.emergencyPhone,
				})
			})
		},
	}
	add.register(addCmd, false)

	var activeOnly bool
	var page, limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page > 0 {
				return run(cmd.Context(), rt, func(a *app.App) (pagination.Page[patient.Patient], error) {
					patients, err := a.Patients(cmd.Context(), activeOnly)
					return pagination.Paginate(patients, pagination.NewParams(page, limit)), err
				})
			}
			return run(cmd.Context(), rt, func(a *app.App) ([]patient.Patient, error) {
				return a.Patients(cmd.Context(), activeOnly)
			})
		},
	}
	listCmd.Flags().BoolVar(&activeOnly, "active", false, "only active patients")
	listCmd.Flags().IntVar(&page, "page", 0, "page number; 0 lists everything")
	listCmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "patients per page")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*patient.Patient, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				return a.GetPatient(cmd.Context(), id)
			})
		},
	}

	var upd patientFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*patient.Patient, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				return a.UpdatePatient(cmd.Context(), id, upd.update(cmd))
			})
		},
	}
	upd.register(updateCmd, true)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Mark a patient inactive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*patient.Patient, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				return a.DeactivatePatient(cmd.Context(), id)
			})
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Find patients by name, room, diagnosis or notes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			return run(cmd.Context(), rt, func(a *app.App) ([]patient.Patient, error) {
				return a.SearchPatients(cmd.Context(), term)
			})
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (patient.Statistics, error) {
				return a.PatientStatistics()
			})
		},
	}

	cmd.AddCommand(addCmd, listCmd, getCmd, updateCmd, deleteCmd, searchCmd, statsCmd)
	return cmd
}
