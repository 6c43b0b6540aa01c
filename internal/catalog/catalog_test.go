package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/rows"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

// mockStore records the batches it is asked to apply and can fail the first
// N calls with a configurable error.
type mockStore struct {
	mu       sync.Mutex
	batches  [][]rows.Valid
	failures int
	failWith error
}

func (s *mockStore) ApplyBatch(ctx context.Context, batch []rows.Valid) ([]RowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]rows.Valid, len(batch))
	copy(copied, batch)
	s.batches = append(s.batches, copied)

	if s.failures > 0 {
		s.failures--
		return nil, s.failWith
	}

	results := make([]RowResult, len(batch))
	for i, row := range batch {
		results[i] = RowResult{
			Outcome: OutcomeCreated,
			Product: domain.Product{
				ID:            int64(i + 1),
				SKU:           row.SKU,
				NormalizedSKU: row.NormalizedSKU,
				Name:          row.Name,
			},
		}
	}
	return results, nil
}

func (s *mockStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *mockStore) lastBatch() []rows.Valid {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

func row(sku, name string) rows.Valid {
	return rows.Valid{
		SKU:           sku,
		NormalizedSKU: rows.NormalizeKey(sku),
		Name:          name,
		Active:        true,
	}
}

func TestApplyResolvesDuplicatesLastRowWins(t *testing.T) {
	ms := &mockStore{}
	eng := New(ms)

	batch := []rows.Valid{
		row("abc", "first"),
		row("xyz", "other"),
		row("ABC", "second"),
		row("abc", "third"),
	}

	result, err := eng.Apply(context.Background(), batch)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if result.Superseded != 2 {
		t.Errorf("superseded = %d, want 2", result.Superseded)
	}

	applied := ms.lastBatch()
	if len(applied) != 2 {
		t.Fatalf("store saw %d rows, want 2", len(applied))
	}
	// The surviving row keeps the first appearance's position with the last
	// occurrence's value.
	if applied[0].NormalizedSKU != "ABC" || applied[0].Name != "third" {
		t.Errorf("deduped[0] = %+v, want ABC/third", applied[0])
	}
	if applied[1].NormalizedSKU != "XYZ" {
		t.Errorf("deduped[1] = %+v, want XYZ", applied[1])
	}
}

func TestApplyEmptyBatch(t *testing.T) {
	ms := &mockStore{}
	eng := New(ms)

	result, err := eng.Apply(context.Background(), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result.Results) != 0 || result.Superseded != 0 {
		t.Errorf("unexpected result for empty batch: %+v", result)
	}
	if ms.callCount() != 0 {
		t.Errorf("store called %d times for empty batch", ms.callCount())
	}
}

func TestApplyRetriesOnConflict(t *testing.T) {
	ms := &mockStore{
		failures: 2,
		failWith: fmt.Errorf("upsert products: %w", store.ErrConflict),
	}
	eng := New(ms)

	result, err := eng.Apply(context.Background(), []rows.Valid{row("abc", "n")})
	if err != nil {
		t.Fatalf("Apply should succeed after retries: %v", err)
	}
	if ms.callCount() != 3 {
		t.Errorf("store calls = %d, want 3", ms.callCount())
	}
	if len(result.Results) != 1 {
		t.Errorf("results = %d, want 1", len(result.Results))
	}
}

func TestApplyConflictAttemptsBounded(t *testing.T) {
	ms := &mockStore{
		failures: maxApplyAttempts + 1,
		failWith: fmt.Errorf("upsert products: %w", store.ErrConflict),
	}
	eng := New(ms)

	_, err := eng.Apply(context.Background(), []rows.Valid{row("abc", "n")})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("error should wrap store.ErrConflict, got %v", err)
	}
	if ms.callCount() != maxApplyAttempts {
		t.Errorf("store calls = %d, want %d", ms.callCount(), maxApplyAttempts)
	}
}

func TestApplyFatalErrorNotRetried(t *testing.T) {
	fatal := errors.New("connection lost")
	ms := &mockStore{failures: 5, failWith: fatal}
	eng := New(ms)

	_, err := eng.Apply(context.Background(), []rows.Valid{row("abc", "n")})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, fatal) {
		t.Errorf("error should wrap the store error, got %v", err)
	}
	if ms.callCount() != 1 {
		t.Errorf("fatal error retried: %d calls", ms.callCount())
	}
}

func TestApplyCancelledBetweenAttempts(t *testing.T) {
	ms := &mockStore{
		failures: 5,
		failWith: fmt.Errorf("lock wait: %w", store.ErrConflict),
	}
	eng := New(ms)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Apply(ctx, []rows.Valid{row("abc", "n")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if ms.callCount() != 1 {
		t.Errorf("store calls = %d, want 1 before cancellation", ms.callCount())
	}
}
