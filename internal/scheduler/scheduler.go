// Package scheduler implements the G component's serve loop: parse once,
// then repeatedly sleep until the next fire time and run the backup plus
// retention synchronously. The cooperative-shutdown shape (block on a
// timer or a context, exit cleanly between units of work rather than
// cancel mid-flight) follows cmd/distri/distri.go's funcmain() dispatch
// loop combined with the package-level InterruptibleContext helper
// (context.go, kept from the teacher).
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/distr1/backupd/internal/cronspec"
)

// RunFunc executes one backup run. It returns nothing; the caller (Serve)
// only needs to know it completed.
type RunFunc func(ctx context.Context)

// RetentionFunc executes one retention sweep.
type RetentionFunc func(ctx context.Context)

// Clock abstracts wall-clock reads and sleeping so tests can drive the loop
// without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

// realClock sleeps for real, honoring ctx cancellation.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Serve parses cronExpr once and then loops: sleep until the next fire,
// run runFn synchronously, then retentionFn, then compute the next fire
// from the post-retention clock reading and loop again. A run plus
// retention that overruns the following fire time causes that fire to be
// skipped, never coalesced (spec.md §4.G). Serve returns when ctx is
// canceled, after any in-flight run and retention sweep complete; it never
// cancels runFn or retentionFn mid-flight (spec.md §5).
func Serve(ctx context.Context, cronExpr string, runFn RunFunc, retentionFn RetentionFunc) error {
	return serveWithClock(ctx, cronExpr, runFn, retentionFn, realClock{})
}

func serveWithClock(ctx context.Context, cronExpr string, runFn RunFunc, retentionFn RetentionFunc, clock Clock) error {
	sched, err := cronspec.Parse(cronExpr)
	if err != nil {
		return err
	}

	for {
		now := clock.Now()
		fire := sched.NextFire(now)
		clock.Sleep(ctx, fire.Sub(now))
		if ctx.Err() != nil {
			return nil
		}

		log.Printf("scheduler: firing run at %s", clock.Now().Format(time.RFC3339))
		runFn(ctx)
		retentionFn(ctx)

		if ctx.Err() != nil {
			return nil
		}
	}
}
