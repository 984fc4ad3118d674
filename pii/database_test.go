package pii

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/hannes/kiji-autolabel/pii/align"
	"github.com/hannes/kiji-autolabel/pii/dataset"
)

// newTestStore creates a temporary SQLite store for testing.
// The database file is automatically cleaned up when the test finishes.
func newTestStore(t *testing.T) *SQLiteExampleStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteExampleStore(context.Background(), DatabaseConfig{Driver: DriverSQLite, Path: dbPath})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testExamples() []dataset.Example {
	return []dataset.Example{
		dataset.NewExample("Call 555-1234 now", []align.Span{{Start: 5, End: 13, Label: "phone"}}, dataset.SourceAuto),
		dataset.NewExample("Jan Nowak, 600 100 200", []align.Span{
			{Start: 0, End: 3, Label: "name"},
			{Start: 4, End: 9, Label: "surname"},
			{Start: 11, End: 22, Label: "phone"},
		}, dataset.SourceAuto),
	}
}

func TestNewSQLiteExampleStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "dir", "test.db")
	store, err := NewSQLiteExampleStore(context.Background(), DatabaseConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected database file to be created in nested directory")
	}
}

func TestNewRun(t *testing.T) {
	run := NewRun("label", "rendered.txt")
	if _, err := uuid.Parse(run.ID); err != nil {
		t.Errorf("run id %q is not a uuid: %v", run.ID, err)
	}
	if run.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if other := NewRun("label", "rendered.txt"); other.ID == run.ID {
		t.Error("expected distinct run ids")
	}
}

func TestSaveExamplesAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := NewRun("label", "rendered.txt")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := store.SaveExamples(ctx, run.ID, testExamples(), []int{3, 7}); err != nil {
		t.Fatalf("SaveExamples failed: %v", err)
	}

	count, err := store.CountExamples(ctx, run.ID)
	if err != nil {
		t.Fatalf("CountExamples failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 examples, got %d", count)
	}

	counts, err := store.LabelCounts(ctx, run.ID)
	if err != nil {
		t.Fatalf("LabelCounts failed: %v", err)
	}
	want := map[string]int{"phone": 2, "name": 1, "surname": 1}
	if len(counts) != len(want) {
		t.Fatalf("expected %v, got %v", want, counts)
	}
	for label, n := range want {
		if counts[label] != n {
			t.Errorf("label %s: expected %d, got %d", label, n, counts[label])
		}
	}

	var line int
	if err := store.db.QueryRowContext(ctx, `SELECT line FROM examples WHERE run_id = ? ORDER BY id DESC LIMIT 1`, run.ID).Scan(&line); err != nil {
		t.Fatalf("failed to read line: %v", err)
	}
	if line != 7 {
		t.Errorf("expected line 7, got %d", line)
	}
}

func TestSaveExamples_DefaultLinesAndIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := NewRun("label", "a.txt")
	second := NewRun("synth", "b.txt")
	for _, run := range []Run{first, second} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}
	if err := store.SaveExamples(ctx, first.ID, testExamples(), nil); err != nil {
		t.Fatalf("SaveExamples failed: %v", err)
	}

	var line int
	if err := store.db.QueryRowContext(ctx, `SELECT MAX(line) FROM examples WHERE run_id = ?`, first.ID).Scan(&line); err != nil {
		t.Fatalf("failed to read line: %v", err)
	}
	if line != 2 {
		t.Errorf("expected positional line 2, got %d", line)
	}

	count, err := store.CountExamples(ctx, second.ID)
	if err != nil {
		t.Fatalf("CountExamples failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no examples for second run, got %d", count)
	}
}

func TestSaveExamples_UnknownRunFails(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveExamples(context.Background(), uuid.NewString(), testExamples(), nil)
	if err == nil {
		t.Fatal("expected foreign key error for unknown run")
	}

	count, err := store.CountExamples(context.Background(), "")
	if err != nil {
		t.Fatalf("CountExamples failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected rollback to leave no rows, got %d", count)
	}
}

func TestSaveRun_UpdatesCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := NewRun("label", "rendered.txt")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	run.Pairs, run.Examples = 10, 8
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun update failed: %v", err)
	}

	var pairs, examples int
	err := store.db.QueryRowContext(ctx, `SELECT pairs, examples FROM runs WHERE id = ?`, run.ID).Scan(&pairs, &examples)
	if err != nil {
		t.Fatalf("failed to read run: %v", err)
	}
	if pairs != 10 || examples != 8 {
		t.Errorf("expected 10/8, got %d/%d", pairs, examples)
	}
}

func TestNewExampleStore(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		config  DatabaseConfig
		wantErr error
		wantNop bool
	}{
		{name: "none", config: DatabaseConfig{Driver: DriverNone}, wantNop: true},
		{name: "empty", config: DatabaseConfig{}, wantNop: true},
		{name: "sqlite", config: DatabaseConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "x.db")}},
		{name: "unknown", config: DatabaseConfig{Driver: "mysql"}, wantErr: ErrUnknownDriver},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewExampleStore(ctx, tc.config)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer store.Close()

			_, isNop := store.(NopExampleStore)
			if isNop != tc.wantNop {
				t.Errorf("expected nop=%v, got %T", tc.wantNop, store)
			}
		})
	}
}

func TestNopExampleStore(t *testing.T) {
	var store ExampleStore = NopExampleStore{}
	ctx := context.Background()

	if err := store.SaveExamples(ctx, "run", testExamples(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts, err := store.LabelCounts(ctx, "run")
	if err != nil || len(counts) != 0 {
		t.Errorf("expected empty counts, got %v, %v", counts, err)
	}
}
