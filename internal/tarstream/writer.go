// Package tarstream frames a sequence of model.ArchiveEntry values into a
// single streaming POSIX tape archive (ustar, upgrading to pax extensions
// when a field overflows ustar's limits), without buffering file bodies.
//
// The streaming discipline mirrors internal/squashfs's writer in the
// teacher repository: Writer owns its sink exclusively for the run, and
// Finish closes out the format before the caller moves on to the next
// pipeline stage.
package tarstream

import (
	"archive/tar"
	"io"

	"github.com/distr1/backupd/internal/model"
)

// Writer streams ArchiveEntry values into a tar-formatted sink. It rejects
// duplicate logical paths within the same archive.
type Writer struct {
	tw   *tar.Writer
	seen map[string]bool
}

// New wraps sink with a tar stream writer.
func New(sink io.Writer) *Writer {
	return &Writer{
		tw:   tar.NewWriter(sink),
		seen: make(map[string]bool),
	}
}

// WriteEntry streams one entry's header and body into the archive. The
// entry's Data is read to completion and not buffered; callers must not
// reuse entry.Data afterwards.
//
// Format is left as tar.FormatUnknown so archive/tar promotes individual
// headers to PAX extensions automatically whenever a path exceeds the
// ustar 100-byte limit, a size exceeds 8 GiB, or a name is non-ASCII —
// exactly the pax-upgrade triggers spec.md §4.B names.
func (w *Writer) WriteEntry(entry model.ArchiveEntry) error {
	if entry.LogicalPath == "" {
		return &model.ConfigError{Reason: "empty archive entry path"}
	}
	if w.seen[entry.LogicalPath] {
		return &model.DuplicatePath{Path: entry.LogicalPath}
	}
	w.seen[entry.LogicalPath] = true

	hdr := &tar.Header{
		Name:     entry.LogicalPath,
		Size:     entry.Size,
		Mode:     int64(entry.Mode),
		ModTime:  entry.Mtime,
		Typeflag: tar.TypeReg,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return err
	}
	if entry.Data == nil {
		return nil
	}
	if _, err := io.Copy(w.tw, entry.Data); err != nil {
		return err
	}
	return nil
}

// Finish writes the archive's two trailing zero blocks. The underlying sink
// is not closed; the caller owns it.
func (w *Writer) Finish() error {
	return w.tw.Close()
}
