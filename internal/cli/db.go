package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
	"github.com/WailSalutem-Health-Care/carelog/internal/db"
)

var errResetNotConfirmed = errors.New("reset deletes every patient and record; pass --yes to confirm")

func newDBCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect or reset the store",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report store availability, version and collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// an unavailable store is reported in the status, not as a failure
			rt.app.Initialize(cmd.Context())
			return emit(rt, rt.app.Status(cmd.Context()), nil)
		},
	}

	var yes bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data and reinstall the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return emit[any](rt, nil, errResetNotConfirmed)
			}
			return run(cmd.Context(), rt, func(a *app.App) (db.Status, error) {
				if err := a.Reset(cmd.Context()); err != nil {
					return db.Status{}, err
				}
				return a.Status(cmd.Context()), nil
			})
		},
	}
	resetCmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")

	cmd.AddCommand(statusCmd, resetCmd)
	return cmd
}
