package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
	"github.com/WailSalutem-Health-Care/carelog/internal/chart"
)

func newChartCommand(rt *runtime) *cobra.Command {
	var (
		days        int
		patientName string
	)

	kinds := make([]string, 0, len(chart.Kinds()))
	for _, k := range chart.Kinds() {
		kinds = append(kinds, string(k))
	}

	cmd := &cobra.Command{
		Use:       "chart <kind>",
		Short:     "Build a trend chart series",
		Long:      "chart builds the series for one of: " + strings.Join(kinds, ", ") + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), rt, func(a *app.App) (*chart.Series, error) {
				kind, err := chart.ParseKind(args[0])
				if err != nil {
					return nil, err
				}
				return a.Chart(kind, days, patientName)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", chart.DefaultDays, "window size in days ending today")
	cmd.Flags().StringVar(&patientName, "patient", "", "only this patient's records")
	return cmd
}
