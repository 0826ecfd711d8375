// Package pipeline implements the E component: it composes the A (source),
// B (archive), C (compression), and D (encryption) stages into one run,
// owns the temp-file → fsync → atomic-rename lifecycle, and produces a
// model.RunReport.
//
// The temp-file lifecycle follows internal/install/install.go's use of
// renameio.PendingFile: open a temp file in the destination directory,
// write through it, and either CloseAtomicallyReplace on success or
// Cleanup on any fatal error so no partial file is ever visible under the
// final name. Unlike the teacher's TAR→COMPRESS→ENCRYPT pipeline (which
// pipes bytes between stages over io.Pipe plus an errgroup.Group because
// each stage there is backed by an external process or a pull-based
// io.Reader), every stage here is a plain io.Writer wrapper
// (internal/tarstream, internal/xzstream, internal/agecrypt) composed
// directly in push order — matching spec.md §5's "no application-level
// asynchrony" within a run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/renameio"

	"github.com/distr1/backupd/internal/agecrypt"
	"github.com/distr1/backupd/internal/model"
	"github.com/distr1/backupd/internal/source"
	"github.com/distr1/backupd/internal/tarstream"
	"github.com/distr1/backupd/internal/xzstream"
)

// runCounter disambiguates archives created within the same wall-clock
// second; it is monotonic within a process and resets on restart, matching
// spec.md §4.E's NNNN counter.
var runCounter uint32

// timestampLayout matches spec.md §6's filename grammar:
// <YYYY>-<MM>-<DD>T<HH>h<MM>m<SS>s
const timestampLayout = "2006-01-02T15h04m05s"

// Run executes one backup: A→B→C→D into a freshly named, temp-then-rename
// output file in cfg.OutDir.
func Run(ctx context.Context, cfg model.ArchivePipelineConfig) model.RunReport {
	report := model.RunReport{StartedAt: now(cfg)}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	ts := nowFn().Format(timestampLayout)
	counter := atomic.AddUint32(&runCounter, 1) - 1
	filename := fmt.Sprintf("%s.%s_%04d.tar.xz.age", cfg.BaseName, ts, counter)
	finalPath := filepath.Join(cfg.OutDir, filename)

	pending, err := renameio.TempFile(cfg.OutDir, finalPath)
	if err != nil {
		report.FatalError = &model.ConfigError{Reason: fmt.Sprintf("creating temp output: %v", err)}
		report.FinishedAt = nowFn()
		return report
	}
	defer pending.Cleanup()

	written, entries, nonFatal, fatal := runStages(ctx, cfg, pending)
	report.BytesWritten = written
	report.EntriesWritten = entries
	report.NonFatalErrors = nonFatal

	if fatal != nil {
		report.FatalError = fatal
		report.FinishedAt = nowFn()
		return report
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		report.FatalError = fmt.Errorf("finalizing archive: %w", err)
		report.FinishedAt = nowFn()
		return report
	}

	report.FinishedAt = nowFn()
	return report
}

// countingWriter tracks the number of bytes written to the final (ciphertext)
// sink, used for RunReport.BytesWritten.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// runStages wires B(archive) → C(compress) → D(encrypt) → sink and drains
// every configured source, in order, into the archive writer.
func runStages(ctx context.Context, cfg model.ArchivePipelineConfig, sink io.Writer) (written int64, entries int, nonFatal []error, fatal error) {
	cw := &countingWriter{w: sink}

	enc := agecrypt.New(cfg.EncryptionSecret)
	encWriter, err := enc.NewWriter(cw)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("opening encryption stage: %w", err)
	}

	comp := xzstream.New(cfg.CompressionLevel, cfg.CompressionThreads)
	compWriter, err := comp.NewWriter(encWriter)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("opening compression stage: %w", err)
	}

	archive := tarstream.New(compWriter)

	for _, desc := range cfg.Sources {
		if ctx.Err() != nil {
			return cw.n, entries, nonFatal, ctx.Err()
		}
		reader, err := source.New(desc, cfg.OutDir)
		if err != nil {
			// A ConfigError from a malformed descriptor should have been
			// caught at startup validation; treat it as fatal here too.
			return cw.n, entries, nonFatal, err
		}

		writeErr := reader.Read(ctx, func(e model.ArchiveEntry) error {
			if err := archive.WriteEntry(e); err != nil {
				return err
			}
			entries++
			return nil
		}, func(skip error) {
			nonFatal = append(nonFatal, skip)
		})
		if writeErr != nil {
			switch writeErr.(type) {
			case *model.SourceUnavailable, *model.SnapshotFailed:
				// The source contributes no entries; the run continues but
				// is reported as partial (spec.md §7).
				nonFatal = append(nonFatal, writeErr)
				continue
			default:
				// DuplicatePath and any other propagated error (disk full,
				// encryption failure surfacing through Write) is fatal to
				// the run.
				return cw.n, entries, nonFatal, writeErr
			}
		}
	}

	if err := archive.Finish(); err != nil {
		return cw.n, entries, nonFatal, fmt.Errorf("finishing archive: %w", err)
	}
	if err := compWriter.Finish(); err != nil {
		return cw.n, entries, nonFatal, fmt.Errorf("finishing compression: %w", err)
	}
	if err := encWriter.Finish(); err != nil {
		return cw.n, entries, nonFatal, fmt.Errorf("finishing encryption: %w", err)
	}
	return cw.n, entries, nonFatal, nil
}

func now(cfg model.ArchivePipelineConfig) time.Time {
	if cfg.Now != nil {
		return cfg.Now()
	}
	return time.Now().UTC()
}

// ReapStalePartials removes leftover temp files from a run that crashed
// before it could atomically rename its output. renameio.TempFile names
// its temp files "."+<destination base name>+<random suffix> in the
// destination directory, so every leftover temp file for this archive
// family starts with "."+base — see spec.md §4.E and SPEC_FULL.md's
// "Startup reaper" section.
func ReapStalePartials(dir, base string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "."+base+".*"))
	if err != nil {
		return err
	}
	var firstErr error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
