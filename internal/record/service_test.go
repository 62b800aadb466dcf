package record

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockRepository struct {
	RepositoryInterface

	addFunc     func(ctx context.Context, rec Record) (*Record, error)
	updateFunc  func(ctx context.Context, id int64, rec Record) (*Record, error)
	getAllFunc  func(ctx context.Context) ([]Record, error)
	searchFunc  func(ctx context.Context, term string) ([]Record, error)
	restoreFunc func(ctx context.Context, snap *Snapshot) (int, error)
}

func (m *mockRepository) Add(ctx context.Context, rec Record) (*Record, error) {
	return m.addFunc(ctx, rec)
}

func (m *mockRepository) Update(ctx context.Context, id int64, rec Record) (*Record, error) {
	return m.updateFunc(ctx, id, rec)
}

func (m *mockRepository) GetAll(ctx context.Context) ([]Record, error) {
	return m.getAllFunc(ctx)
}

func (m *mockRepository) Search(ctx context.Context, term string) ([]Record, error) {
	return m.searchFunc(ctx, term)
}

func (m *mockRepository) Restore(ctx context.Context, snap *Snapshot) (int, error) {
	return m.restoreFunc(ctx, snap)
}

func TestCreateRecord_StampsLocaleDate(t *testing.T) {
	var stored Record
	mockRepo := &mockRepository{
		addFunc: func(ctx context.Context, rec Record) (*Record, error) {
			stored = rec
			rec.ID = 1
			return &rec, nil
		},
	}
	service := NewService(mockRepo)
	service.now = func() time.Time { return time.Date(2024, 9, 26, 15, 4, 5, 0, time.Local) }

	_, err := service.CreateRecord(context.Background(), Record{Name: "王小明", Age: "82", Room: "101", Breakfast: MealHalf})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stored.Date != "2024/9/26 下午3:04:05" {
		t.Errorf("Expected locale date, got %q", stored.Date)
	}

	_, err = service.CreateRecord(context.Background(), Record{Name: "a", Age: "1", Room: "1", Date: "2024/1/1 上午8:00:00"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stored.Date != "2024/1/1 上午8:00:00" {
		t.Errorf("Expected given date to be kept, got %q", stored.Date)
	}
}

func TestCreateRecord_ValidationError(t *testing.T) {
	service := NewService(&mockRepository{})

	testCases := []struct {
		name    string
		rec     Record
		wantErr error
	}{
		{"Missing name", Record{Age: "80", Room: "1"}, ErrMissingName},
		{"Missing age", Record{Name: "a", Room: "1"}, ErrMissingAge},
		{"Missing room", Record{Name: "a", Age: "80"}, ErrMissingRoom},
		{"Bad meal", Record{Name: "a", Age: "80", Room: "1", Lunch: "吃很多"}, ErrInvalidMeal},
		{"Bad sleep", Record{Name: "a", Age: "80", Room: "1", Sleep: "普通"}, ErrInvalidSleep},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateRecord(context.Background(), tc.rec)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestUpdateRecord_NotFound(t *testing.T) {
	mockRepo := &mockRepository{
		updateFunc: func(ctx context.Context, id int64, rec Record) (*Record, error) {
			return nil, ErrRecordNotFound
		},
	}
	service := NewService(mockRepo)

	_, err := service.UpdateRecord(context.Background(), 5, Record{Name: "a", Age: "1", Room: "1"})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("Expected ErrRecordNotFound, got %v", err)
	}
}

func TestSearchRecords_BlankTerm(t *testing.T) {
	mockRepo := &mockRepository{
		getAllFunc: func(ctx context.Context) ([]Record, error) {
			return []Record{{Name: "a"}}, nil
		},
		searchFunc: func(ctx context.Context, term string) ([]Record, error) {
			t.Fatal("Search must not be called for a blank term")
			return nil, nil
		},
	}
	service := NewService(mockRepo)

	records, err := service.SearchRecords(context.Background(), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 record, got %d", len(records))
	}
}

func TestRestore_RejectsMalformedWithoutTouchingStore(t *testing.T) {
	mockRepo := &mockRepository{
		restoreFunc: func(ctx context.Context, snap *Snapshot) (int, error) {
			t.Fatal("Repository restore must not run for malformed input")
			return 0, nil
		},
	}
	service := NewService(mockRepo)

	if _, err := service.Restore(context.Background(), []byte(`{}`)); !errors.Is(err, ErrInvalidBackup) {
		t.Fatalf("Expected ErrInvalidBackup, got %v", err)
	}
}
