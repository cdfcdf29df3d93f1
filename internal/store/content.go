package store

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/trove"
)

// contentCompressThreshold mirrors the changeset archive's threshold:
// blobs at or below this size are stored raw, larger ones zstd-compressed.
const contentCompressThreshold = 256

const (
	contentRawMarker        byte = 0
	contentCompressedMarker byte = 1
)

// contentPath shards fileId's hex encoding two levels deep, the
// reference filesystem layout named in §4.
func (s *Store) contentPath(id trove.FileID) (string, error) {
	if s.contentRoot == "" {
		return "", errs.New(errs.KindUnknown, "content store not configured")
	}
	hexID := hex.EncodeToString(id[:])
	return filepath.Join(s.contentRoot, hexID[:2], hexID[2:4], hexID), nil
}

// PutFileContents writes blob under fileId, creating its shard
// directories as needed and compressing large blobs with zstd.
func (s *Store) PutFileContents(ctx context.Context, id trove.FileID, blob []byte) error {
	path, err := s.contentPath(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindUnknown, err, "create content shard directory")
	}

	var out []byte
	if len(blob) <= contentCompressThreshold {
		out = append([]byte{contentRawMarker}, blob...)
	} else {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return errs.Wrap(errs.KindUnknown, err, "create zstd encoder")
		}
		defer enc.Close()
		out = append([]byte{contentCompressedMarker}, enc.EncodeAll(blob, nil)...)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errs.Wrap(errs.KindUnknown, err, "write content blob")
	}
	return nil
}

// GetFileContents reads back the blob stored under fileId.
func (s *Store) GetFileContents(ctx context.Context, id trove.FileID) ([]byte, error) {
	path, err := s.contentPath(id)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.KindNotFound, "content for file %x not found", id[:])
		}
		return nil, errs.Wrap(errs.KindUnknown, err, "read content blob")
	}
	if len(raw) == 0 {
		return nil, errs.New(errs.KindIntegrity, "empty content blob")
	}

	marker, body := raw[0], raw[1:]
	switch marker {
	case contentRawMarker:
		return body, nil
	case contentCompressedMarker:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errs.Wrap(errs.KindUnknown, err, "create zstd decoder")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, errs.Wrap(errs.KindIntegrity, err, "decompress content blob")
		}
		return out, nil
	default:
		return nil, errs.Newf(errs.KindIntegrity, "unknown content marker %d", marker)
	}
}

// HasFileContents reports whether a blob is present for fileId, without
// reading or decompressing it.
func (s *Store) HasFileContents(id trove.FileID) bool {
	path, err := s.contentPath(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
