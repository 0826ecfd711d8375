// Package retention implements the F component: it lists the
// BackupArtifacts already present in an output directory, computes the GFS
// (grandfather-father-son) keep set against a RetentionPolicy, and deletes
// everything outside it.
//
// The selection shape (glob candidates, sort, keep-or-delete loop with
// non-fatal error collection) is grounded on cmd/distri/gc.go's package
// garbage collector, generalized from distri's single "most recent wins"
// rule to the daily/monthly/yearly bucket rules spec.md §4.F requires.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/distr1/backupd/internal/model"
)

// filenameLayout matches internal/pipeline's output filename grammar:
// {base}.{YYYY-MM-DDTHHhMMmSSs}_{NNNN}.tar.xz.age
const filenameLayout = "2006-01-02T15h04m05s"

// ListArtifacts globs {base}.*.tar.xz.age in dir and parses each match's
// embedded timestamp. A match whose timestamp segment does not parse is
// skipped entirely (spec.md §4.F: "not ours to manage"), not treated as an
// error.
func ListArtifacts(dir, base string) ([]model.BackupArtifact, error) {
	matches, err := filepath.Glob(filepath.Join(dir, base+".*.tar.xz.age"))
	if err != nil {
		return nil, err
	}
	var artifacts []model.BackupArtifact
	for _, m := range matches {
		name := filepath.Base(m)
		ts, ok := parseTimestamp(base, name)
		if !ok {
			continue
		}
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		artifacts = append(artifacts, model.BackupArtifact{
			Filename:  name,
			CreatedAt: ts,
			SizeBytes: info.Size(),
		})
	}
	return artifacts, nil
}

// parseTimestamp extracts and parses the {YYYY-MM-DDTHHhMMmSSs} segment from
// a filename of the form base+"."+ts+"_"+counter+".tar.xz.age".
func parseTimestamp(base, name string) (time.Time, bool) {
	rest := name
	prefix := base + "."
	if len(rest) <= len(prefix) || rest[:len(prefix)] != prefix {
		return time.Time{}, false
	}
	rest = rest[len(prefix):]

	const suffix = ".tar.xz.age"
	if len(rest) <= len(suffix) || rest[len(rest)-len(suffix):] != suffix {
		return time.Time{}, false
	}
	rest = rest[:len(rest)-len(suffix)]

	// rest is now "{ts}_{NNNN}"; the timestamp layout itself contains no
	// underscores, so split on the last one.
	idx := -1
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == '_' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return time.Time{}, false
	}
	ts, err := time.Parse(filenameLayout, rest[:idx])
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// Sweep lists the artifacts in dir, computes the keep set under policy as of
// now, and unlinks everything outside it. Deletion failures are collected as
// non-fatal errors rather than aborting the sweep, matching spec.md §4.F.
func Sweep(dir, base string, policy model.RetentionPolicy, now time.Time) (deleted []string, nonFatal []error, err error) {
	artifacts, err := ListArtifacts(dir, base)
	if err != nil {
		return nil, nil, err
	}
	keep := ComputeKeepSet(artifacts, policy, now)
	for _, a := range artifacts {
		if keep[a.Filename] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, a.Filename)); err != nil {
			nonFatal = append(nonFatal, &model.RetentionError{Filename: a.Filename, Err: err})
			continue
		}
		deleted = append(deleted, a.Filename)
	}
	return deleted, nonFatal, nil
}

// ComputeKeepSet returns the set of filenames (by BackupArtifact.Filename)
// that survive the sweep, per spec.md §4.F's set-union-of-keep-rules
// algorithm:
//
//  1. Safety floor: the min_keep most recent artifacts are always kept.
//  2. Default rule: every artifact newer than DefaultTTL is kept.
//  3. Bucket rules: for each of daily/monthly/yearly with a configured TTL,
//     partition by calendar bucket, keep each bucket's latest artifact
//     (ties broken by the lexicographically greatest filename) if that
//     representative is within the bucket's TTL.
//
// The result is the union of 1-3; everything else is deleted by Sweep.
func ComputeKeepSet(artifacts []model.BackupArtifact, policy model.RetentionPolicy, now time.Time) map[string]bool {
	keep := make(map[string]bool)
	if len(artifacts) == 0 {
		return keep
	}

	sorted := make([]model.BackupArtifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	// 1. Safety floor.
	for i := 0; i < policy.MinKeep && i < len(sorted); i++ {
		keep[sorted[i].Filename] = true
	}

	// 2. Default rule.
	for _, a := range sorted {
		if now.Sub(a.CreatedAt) <= policy.DefaultTTL {
			keep[a.Filename] = true
		}
	}

	// 3. Bucket rules.
	applyBucketRule(keep, sorted, policy.DailyTTL, now, truncateDay)
	applyBucketRule(keep, sorted, policy.MonthlyTTL, now, truncateMonth)
	applyBucketRule(keep, sorted, policy.YearlyTTL, now, truncateYear)

	return keep
}

type truncateFunc func(time.Time) time.Time

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func truncateMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func truncateYear(t time.Time) time.Time {
	y, _, _ := t.UTC().Date()
	return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func applyBucketRule(keep map[string]bool, sorted []model.BackupArtifact, ttl *time.Duration, now time.Time, trunc truncateFunc) {
	if ttl == nil {
		return
	}
	buckets := make(map[time.Time]model.BackupArtifact)
	for _, a := range sorted {
		key := trunc(a.CreatedAt)
		cur, ok := buckets[key]
		if !ok || a.CreatedAt.After(cur.CreatedAt) || (a.CreatedAt.Equal(cur.CreatedAt) && a.Filename > cur.Filename) {
			buckets[key] = a
		}
	}
	for _, rep := range buckets {
		if now.Sub(rep.CreatedAt) <= *ttl {
			keep[rep.Filename] = true
		}
	}
}

// FormatFilename builds the canonical archive filename for ts/counter,
// matching internal/pipeline's naming exactly. Exposed for tests that need
// to synthesize BackupArtifact fixtures without depending on the pipeline
// package's unexported runCounter.
func FormatFilename(base string, ts time.Time, counter int) string {
	return fmt.Sprintf("%s.%s_%04d.tar.xz.age", base, ts.UTC().Format(filenameLayout), counter)
}
