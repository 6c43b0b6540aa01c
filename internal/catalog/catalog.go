// Package catalog applies validated rows to the product catalog. The engine
// owns batch policy: in-batch duplicate resolution, atomic application through
// the store, and bounded retry on transient storage conflicts.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/rows"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

// applyBackoff paces attempts after a storage conflict, indexed by the
// attempt about to run. Entry 0 belongs to the initial attempt and is never
// waited on; later entries give the competing writer room to commit.
var applyBackoff = []time.Duration{
	0,
	50 * time.Millisecond,
	250 * time.Millisecond,
}

const maxApplyAttempts = 3

// Outcome classifies what applying one row did to the catalog.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeNoOp    Outcome = "no_op"
)

// RowResult pairs an applied row with its outcome. Product holds the
// committed record for created and updated outcomes; for no_op only the key
// fields are meaningful.
type RowResult struct {
	Outcome Outcome
	Product domain.Product
}

// BatchResult reports one atomic batch application. Superseded counts rows
// that shared a normalized key with a later row in the same batch and were
// replaced before the store saw them.
type BatchResult struct {
	Results    []RowResult
	Superseded int
}

// Store is the keyed read-modify-write surface the engine drives. ApplyBatch
// must be atomic: either every row's effect commits or none do. Transient
// contention is reported by wrapping store.ErrConflict.
type Store interface {
	ApplyBatch(ctx context.Context, batch []rows.Valid) ([]RowResult, error)
}

type MetricsSink interface {
	BatchCommitted(duration time.Duration)
	BatchRetried()
}

type Engine struct {
	store   Store
	metrics MetricsSink // optional, nil = disabled
}

func New(store Store) *Engine {
	return &Engine{store: store}
}

// WithMetrics attaches a metrics sink to the engine.
func (e *Engine) WithMetrics(sink MetricsSink) *Engine {
	e.metrics = sink
	return e
}

// Apply commits one batch to the catalog. Duplicate normalized keys within
// the batch resolve last-row-wins before the store is touched, so the store
// never sees the same key twice in one call.
func (e *Engine) Apply(ctx context.Context, batch []rows.Valid) (BatchResult, error) {
	if len(batch) == 0 {
		return BatchResult{}, nil
	}

	deduped, superseded := dedupe(batch)

	var lastErr error
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		if attempt > 1 {
			if e.metrics != nil {
				e.metrics.BatchRetried()
			}
			idx := attempt - 1
			if idx >= len(applyBackoff) {
				idx = len(applyBackoff) - 1
			}
			log.Printf("catalog: batch conflict, attempt=%d backoff=%s", attempt, applyBackoff[idx])

			timer := time.NewTimer(applyBackoff[idx])
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return BatchResult{}, ctx.Err()
			case <-timer.C:
			}
		}

		start := time.Now()
		results, err := e.store.ApplyBatch(ctx, deduped)
		if err == nil {
			if e.metrics != nil {
				e.metrics.BatchCommitted(time.Since(start))
			}
			return BatchResult{Results: results, Superseded: superseded}, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return BatchResult{}, fmt.Errorf("apply batch: %w", err)
		}
		lastErr = err
	}

	return BatchResult{}, fmt.Errorf("apply batch: %d attempts exhausted: %w", maxApplyAttempts, lastErr)
}

// dedupe resolves repeated normalized keys last-row-wins. The surviving row
// keeps the position of the key's first appearance so batch order stays
// stable.
func dedupe(batch []rows.Valid) ([]rows.Valid, int) {
	seen := make(map[string]int, len(batch))
	out := make([]rows.Valid, 0, len(batch))
	superseded := 0
	for _, row := range batch {
		if i, ok := seen[row.NormalizedSKU]; ok {
			out[i] = row
			superseded++
			continue
		}
		seen[row.NormalizedSKU] = len(out)
		out = append(out, row)
	}
	return out, superseded
}
