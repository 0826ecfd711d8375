package cronspec

import (
	"testing"
	"time"

	"github.com/distr1/backupd/internal/model"
)

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("time.Parse(%q): %v", s, err)
	}
	return ts.UTC()
}

// TestNextFireEveryFifteenMinutes reproduces spec.md's S6 scenario.
func TestNextFireEveryFifteenMinutes(t *testing.T) {
	t.Parallel()
	got, err := NextFire("*/15 * * * *", mustUTC(t, "2025-01-01T00:07:00Z"))
	if err != nil {
		t.Fatalf("NextFire: %v", err)
	}
	want := mustUTC(t, "2025-01-01T00:15:00Z")
	if !got.Equal(want) {
		t.Fatalf("NextFire = %v, want %v", got, want)
	}
}

func TestNextFireMonotonicity(t *testing.T) {
	t.Parallel()
	sched, err := Parse("7,22 */4 * * 1-5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	t0 := mustUTC(t, "2025-03-10T00:00:00Z")
	prev := t0
	for i := 0; i < 50; i++ {
		next := sched.NextFire(prev)
		if !next.After(prev) {
			t.Fatalf("iteration %d: NextFire(%v) = %v, not strictly after", i, prev, next)
		}
		prev = next
	}
}

func TestParseInvalidExpressionIsConfigError(t *testing.T) {
	t.Parallel()
	_, err := Parse("not a cron expression")
	if err == nil {
		t.Fatal("expected an error for a malformed cron expression")
	}
	if _, ok := err.(*model.ConfigError); !ok {
		t.Fatalf("expected *model.ConfigError, got %T: %v", err, err)
	}
}

func TestParseRejectsSixFieldExpression(t *testing.T) {
	t.Parallel()
	// The standard parser is 5-field only; a 6-field (seconds-first)
	// expression should be rejected rather than silently misinterpreted.
	_, err := Parse("*/5 * * * * *")
	if err == nil {
		t.Fatal("expected an error for a 6-field expression under the standard parser")
	}
}
