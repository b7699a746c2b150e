package dataset_test

import (
	"testing"

	"github.com/revela-app/revela/backend/internal/dataset"
)

func openTestStore(t *testing.T) *dataset.Store {
	t.Helper()
	store, err := dataset.Open(
		[]string{"city", "population"},
		[][]string{{"Oslo", "709000"}, {"Bergen", "291000"}, {"Tromso", "77000"}},
	)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreShape(t *testing.T) {
	store := openTestStore(t)

	if got := store.RowCount(); got != 3 {
		t.Fatalf("RowCount: got %d want 3", got)
	}
	cols := store.Columns()
	if len(cols) != 2 || cols[0] != "city" || cols[1] != "population" {
		t.Fatalf("unexpected columns: %v", cols)
	}
}

func TestStoreSampleRowsOrder(t *testing.T) {
	store := openTestStore(t)

	samples, err := store.SampleRows(2)
	if err != nil {
		t.Fatalf("SampleRows err: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0][0] != "Oslo" || samples[1][0] != "Bergen" {
		t.Fatalf("samples not in insertion order: %v", samples)
	}
}

func TestStoreForEachRow(t *testing.T) {
	store := openTestStore(t)

	var cities []string
	err := store.ForEachRow(func(cells []string) error {
		cities = append(cities, cells[0])
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachRow err: %v", err)
	}
	if len(cities) != 3 || cities[2] != "Tromso" {
		t.Fatalf("unexpected iteration: %v", cities)
	}
}

func TestStoreCloseIdempotent(t *testing.T) {
	store := openTestStore(t)

	if err := store.Close(); err != nil {
		t.Fatalf("first Close err: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close err: %v", err)
	}
}

func TestStoreEmpty(t *testing.T) {
	store, err := dataset.Open(nil, nil)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	defer store.Close()

	if store.RowCount() != 0 || len(store.Columns()) != 0 {
		t.Fatalf("expected empty store")
	}
	samples, err := store.SampleRows(5)
	if err != nil || len(samples) != 0 {
		t.Fatalf("expected no samples, got %v (err %v)", samples, err)
	}
	if err := store.ForEachRow(func([]string) error { t.Fatal("unexpected row"); return nil }); err != nil {
		t.Fatalf("ForEachRow err: %v", err)
	}
}
