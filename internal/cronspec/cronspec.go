// Package cronspec parses the 5-field cron expressions spec.md §4.G and §6
// use to describe a schedule, and exposes a pure NextFire operation. Parsing
// and next-fire computation are delegated to robfig/cron/v3's Schedule
// type, which already implements the OR semantics spec.md requires when
// both day-of-month and day-of-week are restricted (its "standard" parser
// matches traditional cron(8) field semantics); this package only adapts
// that to the model.ConfigError taxonomy and pins everything to UTC, since
// spec.md's Non-goals exclude timezone-aware scheduling.
package cronspec

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/distr1/backupd/internal/model"
)

// Schedule is a parsed cron expression, ready to answer NextFire queries.
type Schedule struct {
	sched cron.Schedule
	expr  string
}

// Parse parses a standard 5-field cron expression (minute hour
// day-of-month month day-of-week). An invalid expression is a
// *model.ConfigError, matching spec.md §7's startup-validation taxonomy.
func Parse(expr string) (*Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, &model.ConfigError{Reason: fmt.Sprintf("invalid cron expression %q: %v", expr, err)}
	}
	return &Schedule{sched: sched, expr: expr}, nil
}

// String returns the original expression text.
func (s *Schedule) String() string { return s.expr }

// NextFire returns the next UTC instant strictly after `after` at which the
// schedule fires. Satisfies spec.md §8's scheduler monotonicity invariant:
// for all t, NextFire(NextFire(t)) > NextFire(t).
func (s *Schedule) NextFire(after time.Time) time.Time {
	return s.sched.Next(after.UTC()).UTC()
}

// NextFire is a one-shot convenience wrapper over Parse+Schedule.NextFire,
// used by callers (and tests, e.g. spec.md's S6 scenario) that don't need
// to retain the parsed Schedule across calls.
func NextFire(expr string, after time.Time) (time.Time, error) {
	s, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.NextFire(after), nil
}
