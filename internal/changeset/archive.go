package changeset

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/CourtJesterG/conary/internal/errs"
)

// compressThreshold is the blob size above which archive entries are
// stored zstd-compressed; small entries aren't worth the frame overhead.
const compressThreshold = 256

const compressedMarker = 0x01
const rawMarker = 0x00

// PutContent stores blob under key in the archive, compressing it with
// zstd when it is large enough to be worth it.
func (cs *ChangeSet) PutContent(key ContentKey, blob []byte) error {
	if len(blob) < compressThreshold {
		cs.Archive[key] = append([]byte{rawMarker}, blob...)
		return nil
	}
	var buf bytes.Buffer
	buf.WriteByte(compressedMarker)
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return errs.Wrap(errs.KindIntegrity, err, "create zstd encoder")
	}
	if _, err := enc.Write(blob); err != nil {
		enc.Close()
		return errs.Wrap(errs.KindIntegrity, err, "compress archive entry")
	}
	if err := enc.Close(); err != nil {
		return errs.Wrap(errs.KindIntegrity, err, "finalize archive entry")
	}
	cs.Archive[key] = buf.Bytes()
	return nil
}

// GetContent retrieves and decompresses (if needed) the blob for key.
func (cs *ChangeSet) GetContent(key ContentKey) ([]byte, bool, error) {
	raw, ok := cs.Archive[key]
	if !ok {
		return nil, false, nil
	}
	if len(raw) == 0 {
		return nil, false, errs.New(errs.KindIntegrity, "empty archive entry")
	}
	marker, payload := raw[0], raw[1:]
	if marker == rawMarker {
		return payload, true, nil
	}
	dec, err := zstd.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, false, errs.Wrap(errs.KindIntegrity, err, "create zstd decoder")
	}
	defer dec.Close()
	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, false, errs.Wrap(errs.KindIntegrity, err, "decompress archive entry")
	}
	return out, true, nil
}
