package models

import "time"

// WorkUnit identifies one fetchable target: a catalog page, a category
// listing, a single product. Units are immutable once enqueued.
type WorkUnit struct {
	ID       string            `json:"id"`
	Group    string            `json:"group"`
	URL      string            `json:"url"`
	Method   string            `json:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutcomeKind classifies the terminal state of a fetch.
type OutcomeKind int

const (
	// OutcomeSuccess means a usable payload was retrieved.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeTransient means the attempt failed with a retryable condition
	// (timeout, connection error, 429, 5xx). Only visible between attempts.
	OutcomeTransient
	// OutcomePermanent means the unit cannot be fetched: a non-retryable
	// condition, or retries were exhausted.
	OutcomePermanent
)

// FetchOutcome is the result of fetching one WorkUnit. Only OutcomeSuccess
// and OutcomePermanent escape the fetch client; transient failures are
// retried internally.
type FetchOutcome struct {
	Kind         OutcomeKind
	Payload      []byte
	StatusCode   int
	Attempts     int
	ResponseTime time.Duration
	Err          error
}

// Record is one structured row extracted from a fetched payload, tagged with
// the unit and group it came from.
type Record struct {
	Fields     map[string]string `json:"fields"`
	SourceUnit string            `json:"source_unit"`
	Group      string            `json:"group"`
}

// UnitStatus is the terminal status of one WorkUnit.
type UnitStatus string

const (
	StatusSucceeded       UnitStatus = "succeeded"
	StatusPartiallyFailed UnitStatus = "partially_failed"
	StatusFailed          UnitStatus = "failed"
)

// UnitResult is produced exactly once per WorkUnit.
type UnitResult struct {
	Unit     WorkUnit   `json:"unit"`
	Records  []Record   `json:"records,omitempty"`
	Status   UnitStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`
	Attempts int        `json:"attempts,omitempty"`
}

// FailedUnit carries enough of a failed unit to re-drive it as a fresh run.
type FailedUnit struct {
	Unit   WorkUnit `json:"unit"`
	Reason string   `json:"reason"`
}

// RunSummary is the terminal report of a harvesting run.
type RunSummary struct {
	StartedAt       time.Time     `json:"started_at"`
	Elapsed         time.Duration `json:"elapsed"`
	TotalUnits      int           `json:"total_units"`
	Succeeded       int           `json:"succeeded"`
	PartiallyFailed int           `json:"partially_failed"`
	Failed          int           `json:"failed"`
	TotalRecords    int           `json:"total_records"`
	FailedUnits     []FailedUnit  `json:"failed_units,omitempty"`
}

// FailedIDs returns the ids of all failed units, for logging and re-drives.
func (s RunSummary) FailedIDs() []string {
	ids := make([]string, 0, len(s.FailedUnits))
	for _, f := range s.FailedUnits {
		ids = append(ids, f.Unit.ID)
	}
	return ids
}
