package changeset

import (
	"encoding/binary"

	"github.com/CourtJesterG/conary/internal/errs"
)

// FileType classifies what kind of filesystem object an Inode describes.
type FileType byte

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
	TypeDevice
	TypeSocket
	TypeFIFO
)

// Inode is the structured form of a file-stream's inode sub-stream:
// the filesystem metadata conary tracks independently of content. A
// FileStream's Inode field stores the Freeze of one of these; callers
// that only need to move bytes around (Freeze/Thaw, content storage)
// never need to parse it, but diff's per-file report does.
type Inode struct {
	Perm  uint16
	Owner string
	Group string
	MTime int64
	Size  int64
	Type  FileType
}

// Freeze encodes an Inode as a fixed-header, variable-trailer byte
// string: perm, type, mtime, size as big-endian fields, followed by
// length-prefixed owner and group strings.
func (n Inode) Freeze() []byte {
	buf := make([]byte, 0, 32+len(n.Owner)+len(n.Group))
	var hdr [19]byte
	binary.BigEndian.PutUint16(hdr[0:2], n.Perm)
	hdr[2] = byte(n.Type)
	binary.BigEndian.PutUint64(hdr[3:11], uint64(n.MTime))
	binary.BigEndian.PutUint64(hdr[11:19], uint64(n.Size))
	buf = append(buf, hdr[:]...)
	buf = appendLenPrefixed(buf, n.Owner)
	buf = appendLenPrefixed(buf, n.Group)
	return buf
}

func appendLenPrefixed(buf []byte, s string) []byte {
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	buf = append(buf, n[:]...)
	return append(buf, s...)
}

// ParseInode decodes the byte form Freeze produces. It returns an error
// for anything too short to hold the fixed header — the caller treats
// that as "not a structured inode" (e.g. a stream predating this
// encoding) rather than a hard failure.
func ParseInode(b []byte) (Inode, error) {
	if len(b) < 19 {
		return Inode{}, errs.New(errs.KindParse, "inode blob shorter than the fixed header")
	}
	n := Inode{
		Perm:  binary.BigEndian.Uint16(b[0:2]),
		Type:  FileType(b[2]),
		MTime: int64(binary.BigEndian.Uint64(b[3:11])),
		Size:  int64(binary.BigEndian.Uint64(b[11:19])),
	}
	rest := b[19:]
	owner, rest, err := readLenPrefixed(rest)
	if err != nil {
		return Inode{}, err
	}
	group, _, err := readLenPrefixed(rest)
	if err != nil {
		return Inode{}, err
	}
	n.Owner, n.Group = owner, group
	return n, nil
}

func readLenPrefixed(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errs.New(errs.KindParse, "inode blob truncated before a length-prefixed field")
	}
	n := int(binary.BigEndian.Uint16(b[0:2]))
	b = b[2:]
	if len(b) < n {
		return "", nil, errs.New(errs.KindParse, "inode blob truncated inside a length-prefixed field")
	}
	return string(b[:n]), b[n:], nil
}
