//go:build integration

package patient

import (
	"context"
	"testing"

	"github.com/WailSalutem-Health-Care/carelog/internal/testutil"
)

// TestRepository_Postgres_Integration runs the patient lifecycle on PostgreSQL
func TestRepository_Postgres_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.SetupPostgresStore(t), nil)

	p, err := repo.Add(ctx, CreatePatientRequest{Name: "張三", Age: "80", Room: "101"})
	if err != nil {
		t.Fatalf("Failed to add patient: %v", err)
	}

	if _, err := repo.Add(ctx, CreatePatientRequest{Name: "張三", Age: "81", Room: "102"}); err == nil {
		t.Fatal("Expected duplicate name to fail")
	}

	if _, err := repo.SoftDelete(ctx, p.ID); err != nil {
		t.Fatalf("Failed to soft delete: %v", err)
	}

	active, err := repo.GetActive(ctx)
	if err != nil {
		t.Fatalf("Failed to list active patients: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected no active patients, got %d", len(active))
	}
}
