// Package changeset implements the diff/patch layer between two trove
// states: the in-memory TroveChangeSet, its byte-exact wire framing, and
// the content archive that carries file-stream blobs alongside it.
package changeset

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"io"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/trove"
)

// streamTag identifies a typed sub-stream within a frozen file-stream.
type streamTag byte

const (
	tagInode streamTag = iota + 1
	tagTags
	tagProvides
	tagRequires
	tagContentsInfo
	// tagDiff marks a file-stream that is itself a diff against a basis
	// stream rather than an absolute snapshot; fileStreamIsDiff inspects
	// this tag on the first sub-stream.
	tagDiff
)

// FileStream is the frozen representation of a single file's metadata:
// inode bits, tag list, provides/requires, and content-addressing info.
// Freeze produces the length-prefixed concatenation of typed sub-streams
// described in §6 of the file-format notes.
type FileStream struct {
	Inode        []byte
	Tags         []string
	Provides     []byte
	Requires     []byte
	ContentsInfo []byte
}

// Freeze serializes s as a length-prefixed concatenation of typed
// sub-streams: each sub-stream is (tag byte, uint32 length, payload).
func (s FileStream) Freeze() []byte {
	var buf bytes.Buffer
	writeSub(&buf, tagInode, s.Inode)
	var tagsBuf bytes.Buffer
	for i, t := range s.Tags {
		if i > 0 {
			tagsBuf.WriteByte(' ')
		}
		tagsBuf.WriteString(t)
	}
	writeSub(&buf, tagTags, tagsBuf.Bytes())
	writeSub(&buf, tagProvides, s.Provides)
	writeSub(&buf, tagRequires, s.Requires)
	writeSub(&buf, tagContentsInfo, s.ContentsInfo)
	return buf.Bytes()
}

func writeSub(buf *bytes.Buffer, tag streamTag, payload []byte) {
	buf.WriteByte(byte(tag))
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(payload)))
	buf.Write(lenBytes[:])
	buf.Write(payload)
}

// ThawFileStream parses the Freeze format back into a FileStream.
func ThawFileStream(b []byte) (FileStream, error) {
	r := bytes.NewReader(b)
	var s FileStream
	for r.Len() > 0 {
		tag, payload, err := readSub(r)
		if err != nil {
			return FileStream{}, errs.Wrap(errs.KindParse, err, "thaw file stream")
		}
		switch streamTag(tag) {
		case tagInode:
			s.Inode = payload
		case tagTags:
			if len(payload) > 0 {
				s.Tags = splitSpace(string(payload))
			}
		case tagProvides:
			s.Provides = payload
		case tagRequires:
			s.Requires = payload
		case tagContentsInfo:
			s.ContentsInfo = payload
		default:
			return FileStream{}, errs.Newf(errs.KindParse, "unknown file-stream sub-tag %d", tag)
		}
	}
	return s, nil
}

func readSub(r *bytes.Reader) (byte, []byte, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(lenBytes[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return tag, payload, nil
}

func splitSpace(s string) []string {
	var out []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ' ' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, s[start:i])
			start = -1
		}
	}
	return out
}

// ID computes the fileId §3 defines as "SHA-1 of canonical freeze": the
// stable content-addressing key a FileStream is stored and looked up
// under, independent of which path(s) in which troves reference it.
func (s FileStream) ID() trove.FileID {
	return trove.FileID(sha1.Sum(s.Freeze()))
}

// fileStreamIsDiff inspects the type tag of the first sub-stream of a
// frozen file-stream to tell whether it is a diff against a basis stream
// or an absolute snapshot.
func fileStreamIsDiff(frozen []byte) bool {
	return len(frozen) > 0 && streamTag(frozen[0]) == tagDiff
}
