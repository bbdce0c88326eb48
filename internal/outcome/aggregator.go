// Package outcome keeps the books of a run: the applied and skipped
// counters and the ordered per-listing log.
package outcome

import (
	"slices"
	"sync"
	"time"

	"github.com/jakopako/goapply/internal/types"
)

// Aggregator is the only place run-level counters are mutated.
type Aggregator struct {
	mu        sync.Mutex
	runID     string
	startedAt time.Time
	applied   int
	skipped   int
	log       []types.ListingRecord
	now       func() time.Time
}

func NewAggregator(runID string) *Aggregator {
	return &Aggregator{
		runID:     runID,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

func (a *Aggregator) RunID() string {
	return a.runID
}

// Record appends the outcome of one listing to the log and bumps the
// matching counter. Failed counts as skipped. info carries whatever was
// learned about the listing while processing it and may be empty.
func (a *Aggregator) Record(listingID string, o types.Outcome, info types.ListingInfo) types.ListingRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	if o.Kind == types.OutcomeApplied {
		a.applied++
	} else {
		a.skipped++
	}
	r := types.ListingRecord{
		RunID:      a.runID,
		Seq:        len(a.log) + 1,
		ListingID:  listingID,
		Page:       info.Page,
		Title:      info.Title,
		Company:    info.Company,
		Outcome:    o,
		RecordedAt: a.now(),
	}
	a.log = append(a.log, r)
	return r
}

// Summary returns a snapshot that later Record calls do not affect.
func (a *Aggregator) Summary() types.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.RunSummary{
		RunID:      a.runID,
		Applied:    a.applied,
		Skipped:    a.skipped,
		StartedAt:  a.startedAt,
		FinishedAt: a.now(),
		Log:        slices.Clone(a.log),
	}
}
