// Package batch holds the result type shared by the periodic jobs (late sweep,
// lease expiry, monthly schedule top-up). Jobs log and continue per row.
package batch

import "fmt"

// Failure records one row the job could not process.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Report summarises a batch run.
type Report struct {
	Scanned  int       `json:"scanned"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}

// Fail counts a failed row and keeps its error.
func (r *Report) Fail(id string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{ID: id, Error: err.Error()})
}

// Merge adds other's counters to r.
func (r *Report) Merge(other Report) {
	r.Scanned += other.Scanned
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Failures = append(r.Failures, other.Failures...)
}

func (r Report) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d failed=%d", r.Scanned, r.Updated, r.Skipped, r.Failed)
}
