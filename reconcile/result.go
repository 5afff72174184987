package reconcile

import (
	"errors"
	"time"
)

// CourseResult summarises one course's reconciliation.
type CourseResult struct {
	Course       string   `json:"course"`
	CourseID     int64    `json:"courseID,omitempty"`
	Records      int      `json:"records"`
	Dropped      int      `json:"dropped"`
	DataQuality  int      `json:"dataQuality"`
	CoveredDates []string `json:"coveredDates,omitempty"`

	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Expired    int `json:"expired"`
	Tombstoned int `json:"tombstoned"`
	Unchanged  int `json:"unchanged"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (cr CourseResult) fail(err error) CourseResult {
	cr.Err = err
	cr.Error = err.Error()
	return cr
}

func (cr *CourseResult) record(p *Plan) {
	cr.Inserted = len(p.Inserts)
	cr.Updated = p.Refreshed
	cr.Expired = p.Expired
	cr.Tombstoned = p.Tombstoned
	cr.Unchanged = p.Unchanged
}

// Result is the outcome of one Reconcile or Expire call.
type Result struct {
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Courses  []CourseResult `json:"courses"`
	// Unassigned counts records that named no course.
	Unassigned int `json:"unassigned,omitempty"`
}

// Err joins the errors of every failed course.
func (r *Result) Err() error {
	var errs []error
	for _, c := range r.Courses {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	return errors.Join(errs...)
}

// Total sums the per-course counters.
func (r *Result) Total() CourseResult {
	var t CourseResult
	for _, c := range r.Courses {
		t.Records += c.Records
		t.Dropped += c.Dropped
		t.DataQuality += c.DataQuality
		t.Inserted += c.Inserted
		t.Updated += c.Updated
		t.Expired += c.Expired
		t.Tombstoned += c.Tombstoned
		t.Unchanged += c.Unchanged
	}
	return t
}
