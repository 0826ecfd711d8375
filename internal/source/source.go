// Package source implements the A component of the backup pipeline: each
// configured SourceDescriptor becomes a Reader producing a lazy, finite,
// non-restartable sequence of model.ArchiveEntry values, drained exactly
// once by the archive writer.
package source

import (
	"context"

	"github.com/distr1/backupd/internal/model"
)

// Reader streams one source's entries in lexicographic order of
// LogicalPath, calling emit for each. Non-fatal per-entry problems are
// reported through onSkip and do not stop the walk; a non-nil return from
// Read (or from emit, which the caller may use to signal a fatal downstream
// failure such as a duplicate path) aborts this source.
type Reader interface {
	Read(ctx context.Context, emit func(model.ArchiveEntry) error, onSkip func(error)) error
}

// New builds the Reader for desc. scratchDir is where the Sqlite reader
// stages its online-backup snapshot; it must be on the same filesystem as
// the pipeline's output directory so the final rename (owned by
// internal/pipeline) stays atomic.
//
// Invalid base64 for an InlineBlob descriptor is rejected here with a
// ConfigError, at construction time; config.Validate runs the same check
// at startup, before the first run.
func New(desc model.SourceDescriptor, scratchDir string) (Reader, error) {
	switch {
	case desc.Sqlite != nil:
		return newSqliteReader(desc.Sqlite, scratchDir), nil
	case desc.Glob != nil:
		return newGlobReader(desc.Glob)
	case desc.InlineBlob != nil:
		return newInlineReader(desc.InlineBlob)
	default:
		return nil, &model.ConfigError{Reason: "source descriptor has no variant set"}
	}
}
