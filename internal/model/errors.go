package model

import "fmt"

// ConfigError marks a fatal startup-time configuration problem: a missing
// key, an invalid cron expression, invalid base64, an unknown source
// variant tag, or an unwritable output directory.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// SourceUnavailable means a source's underlying data could not be opened at
// all (e.g. the SQLite file does not exist). The
// source contributes no entries; the run is reported as partial.
type SourceUnavailable struct {
	Source string
	Err    error
}

func (e *SourceUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailable) Unwrap() error { return e.Err }

// SnapshotFailed means a source's online-copy facility aborted mid-snapshot.
type SnapshotFailed struct {
	Source string
	Err    error
}

func (e *SnapshotFailed) Error() string {
	return fmt.Sprintf("snapshot of %s failed: %v", e.Source, e.Err)
}

func (e *SnapshotFailed) Unwrap() error { return e.Err }

// EntrySkipped is a non-fatal, per-entry error: one file within a source
// could not be read, and is omitted from the archive.
type EntrySkipped struct {
	Path   string
	Reason error
}

func (e *EntrySkipped) Error() string {
	return fmt.Sprintf("skipped %s: %v", e.Path, e.Reason)
}

func (e *EntrySkipped) Unwrap() error { return e.Reason }

// DuplicatePath means two entries in the same run share a LogicalPath. The
// archive writer rejects the second write; the pipeline treats this as
// fatal to the run.
type DuplicatePath struct {
	Path string
}

func (e *DuplicatePath) Error() string {
	return fmt.Sprintf("duplicate archive path: %s", e.Path)
}

// RetentionError wraps a non-fatal failure to delete one artifact during a
// sweep.
type RetentionError struct {
	Filename string
	Err      error
}

func (e *RetentionError) Error() string {
	return fmt.Sprintf("retention: deleting %s: %v", e.Filename, e.Err)
}

func (e *RetentionError) Unwrap() error { return e.Err }
