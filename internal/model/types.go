// Package model holds the data types shared across the backup pipeline:
// source descriptors, archive entries, retention policy, and run reports.
package model

import (
	"io"
	"time"
)

// SourceDescriptor is the tagged-variant configuration for one configured
// input. Exactly one of Sqlite, Glob, or InlineBlob is non-nil.
type SourceDescriptor struct {
	Sqlite     *SqliteSource
	Glob       *GlobSource
	InlineBlob *InlineBlobSource
}

// SqliteSource snapshots a live SQLite database file via its online-backup
// facility.
type SqliteSource struct {
	SrcPath string
	DstPath string
}

// GlobSource walks SrcDir and emits every regular file matching at least one
// of Patterns, relative to SrcDir, prefixed by DstPrefix in the archive.
type GlobSource struct {
	SrcDir    string
	DstPrefix string
	Patterns  []string
}

// InlineBlobSource emits a single entry decoded from base64 content at build
// time.
type InlineBlobSource struct {
	ContentB64 string
	DstPath    string
}

// ArchiveEntry is one file emitted by a source reader and consumed exactly
// once by the archive writer.
//
// Invariants: LogicalPath is non-empty, relative, uses forward slashes, and
// contains no ".." segments. A duplicate LogicalPath within one run is a
// DuplicatePath error (see internal/tarstream).
type ArchiveEntry struct {
	LogicalPath string
	Size        int64 // exact byte length of Data; the archive writer rejects a negative size
	Mtime       time.Time
	Mode        uint32 // unix permission bits
	Data        io.Reader
}

// ArchivePipelineConfig parametrizes one run of the pipeline driver.
type ArchivePipelineConfig struct {
	Sources            []SourceDescriptor
	CompressionLevel   int // 0..9
	CompressionThreads int // >= 1
	EncryptionSecret   string // passphrase
	BaseName           string
	OutDir             string
	Now                func() time.Time // timestamp source, overridable in tests
}

// BackupArtifact describes one archive file already present in OutDir.
// CreatedAt is parsed from the filename; filesystem mtime is never trusted.
type BackupArtifact struct {
	Filename  string
	CreatedAt time.Time
	SizeBytes int64
}

// RetentionPolicy is the GFS policy the retention engine enforces.
type RetentionPolicy struct {
	DefaultTTL time.Duration
	DailyTTL   *time.Duration
	MonthlyTTL *time.Duration
	YearlyTTL  *time.Duration
	MinKeep    int
}

// RunReport summarizes one pipeline run for the notifier.
type RunReport struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	BytesWritten     int64
	EntriesWritten   int
	NonFatalErrors   []error
	FatalError       error
	DeletedArtifacts []string
}

// Partial reports whether the run should be treated as a partial success:
// it completed (no FatalError) but accumulated non-fatal errors.
func (r RunReport) Partial() bool {
	return r.FatalError == nil && len(r.NonFatalErrors) > 0
}

// Failed reports whether the run aborted with a fatal error.
func (r RunReport) Failed() bool {
	return r.FatalError != nil
}
