package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"time"

	"github.com/distr1/backupd/internal/model"
)

type inlineReader struct {
	decoded []byte
	dstPath string
}

func newInlineReader(src *model.InlineBlobSource) (*inlineReader, error) {
	decoded, err := base64.StdEncoding.DecodeString(src.ContentB64)
	if err != nil {
		return nil, &model.ConfigError{Reason: "invalid base64 for " + src.DstPath + ": " + err.Error()}
	}
	return &inlineReader{decoded: decoded, dstPath: src.DstPath}, nil
}

func (r *inlineReader) Read(ctx context.Context, emit func(model.ArchiveEntry) error, onSkip func(error)) error {
	entry := model.ArchiveEntry{
		LogicalPath: r.dstPath,
		Size:        int64(len(r.decoded)),
		Mtime:       time.Now().UTC(),
		Mode:        0o644,
		Data:        bytes.NewReader(r.decoded),
	}
	return emit(entry)
}
