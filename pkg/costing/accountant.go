// Package costing converts elapsed wall-clock time into GPU spend.
package costing

import "time"

// Accountant computes the running cost of a training run.
//
// Cost is recomputed from the run start time on every call rather than
// accumulated incrementally, so missed updates cannot introduce drift.
type Accountant struct {
	ratePerHour float64
	start       time.Time
	now         func() time.Time
}

// New creates an accountant for a run that started at the given time.
func New(ratePerHour float64, start time.Time) *Accountant {
	return &Accountant{
		ratePerHour: ratePerHour,
		start:       start,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock. Used by tests and by resumed runs
// that replay a historical start time against the real clock.
func (a *Accountant) WithClock(now func() time.Time) *Accountant {
	if now != nil {
		a.now = now
	}
	return a
}

// Start returns the run start time the accountant bills from.
func (a *Accountant) Start() time.Time {
	return a.start
}

// ElapsedHours returns wall-clock hours since the run started.
func (a *Accountant) ElapsedHours() float64 {
	return a.now().Sub(a.start).Hours()
}

// ElapsedDays returns wall-clock days since the run started.
func (a *Accountant) ElapsedDays() float64 {
	return a.ElapsedHours() / 24
}

// CostSoFar returns elapsed hours multiplied by the hourly rate.
func (a *Accountant) CostSoFar() float64 {
	return a.ElapsedHours() * a.ratePerHour
}
