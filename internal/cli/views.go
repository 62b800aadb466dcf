package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
	"github.com/WailSalutem-Health-Care/carelog/internal/viewcache"
)

func newViewsCommand(rt *runtime) *cobra.Command {
	var shared bool
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Print the cached views",
		Long: `views refreshes and prints the cached views. With --shared it reads the
copy mirrored to the view cache instead and does not open the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if shared {
				v, err := readSharedViews(cmd, rt)
				return emit(rt, v, err)
			}
			return run(cmd.Context(), rt, func(a *app.App) (app.Views, error) {
				return a.Views(), nil
			})
		},
	}
	cmd.Flags().BoolVar(&shared, "shared", false, "read the mirrored copy from the view cache")
	return cmd
}

func readSharedViews(cmd *cobra.Command, rt *runtime) (*app.Views, error) {
	store := viewcache.New(rt.cfg.ViewCache)
	if store == nil {
		return nil, viewcache.ErrNotConfigured
	}
	defer store.Close()

	body, err := store.Get(cmd.Context(), rt.cfg.ViewCache.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rt.cfg.ViewCache.Key, err)
	}
	var v app.Views
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to decode views: %w", err)
	}
	return &v, nil
}
