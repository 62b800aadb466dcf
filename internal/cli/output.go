package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/WailSalutem-Health-Care/carelog/internal/app"
)

// emit writes the envelope for an outcome and turns a failure into
// ErrFailed.
func emit[T any](rt *runtime, data T, err error) error {
	enc := json.NewEncoder(rt.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(app.ResultOf(data, err)); encErr != nil {
		return encErr
	}
	if err != nil {
		return ErrFailed
	}
	return nil
}

// run opens the store, calls fn and prints its outcome.
func run[T any](ctx context.Context, rt *runtime, fn func(a *app.App) (T, error)) error {
	a, err := rt.open(ctx)
	if err != nil {
		var zero T
		return emit(rt, zero, err)
	}
	data, err := fn(a)
	return emit(rt, data, err)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
