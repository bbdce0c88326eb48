// Package types defines shared types used across the application.
package types

import (
	"fmt"
	"time"
)

// OutcomeKind is the variant of a terminal Outcome.
type OutcomeKind string

const (
	OutcomeApplied OutcomeKind = "applied"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is the terminal result of processing one listing.
// Reason is empty for applied listings.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

func Applied() Outcome {
	return Outcome{Kind: OutcomeApplied}
}

func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
}

// Reasons used by the wizard when a listing does not end in Applied.
const (
	ReasonApplyEntryUnavailable = "apply-entry-unavailable"
	ReasonNoActionableControl   = "no-actionable-control"
	ReasonCouldNotClose         = "could-not-close"
	ReasonWizardStalled         = "wizard-stalled"
	ReasonStepLimitExceeded     = "step-limit-exceeded"
	ReasonCouldNotOpenListing   = "could-not-open-listing"
)

// ListingInfo describes a listing as far as it could be read.
type ListingInfo struct {
	Page    int
	Title   string
	Company string
}

// ListingRecord is one entry of the per-listing audit log.
type ListingRecord struct {
	RunID      string    `json:"runId"`
	Seq        int       `json:"seq"`
	ListingID  string    `json:"listingId"`
	Page       int       `json:"page,omitempty"`
	Title      string    `json:"title,omitempty"`
	Company    string    `json:"company,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	RecordedAt time.Time `json:"recordedAt"`
}

// RunSummary is a snapshot of the run-level counters and the ordered
// audit log. Failed listings count as skipped.
type RunSummary struct {
	RunID      string          `json:"runId"`
	Applied    int             `json:"applied"`
	Skipped    int             `json:"skipped"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt,omitempty"`
	Log        []ListingRecord `json:"log"`
}

// Failed returns how many of the skipped listings ended in Failed.
func (s RunSummary) Failed() int {
	n := 0
	for _, r := range s.Log {
		if r.Outcome.Kind == OutcomeFailed {
			n++
		}
	}
	return n
}

// Processed is the number of listings that produced an Outcome.
func (s RunSummary) Processed() int {
	return s.Applied + s.Skipped
}
