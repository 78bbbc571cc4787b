package object

import (
	"fmt"
	"strconv"
)

// Hash is a 64-character hex-encoded SHA-256 digest. The empty Hash is the
// null object id: it names nothing and is used for absent merge stages.
type Hash string

// IsNull reports whether h is the null object id.
func (h Hash) IsNull() bool { return h == "" }

// Short returns the first eight characters of h, for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob ObjectType = "blob"
	TypeTree ObjectType = "tree"
)

// FileMode is a Git-compatible entry mode. The high bits (ModeTypeMask)
// carry the object type; the low bits carry permissions for regular files.
type FileMode uint32

const (
	ModeDir     FileMode = 0o040000
	ModeFile    FileMode = 0o100644
	ModeExec    FileMode = 0o100755
	ModeSymlink FileMode = 0o120000
	ModeGitlink FileMode = 0o160000

	ModeTypeMask FileMode = 0o170000
	modeRegular  FileMode = 0o100000
)

// Type returns the object-type bits of m.
func (m FileMode) Type() FileMode { return m & ModeTypeMask }

// IsDir reports whether m names a subtree.
func (m FileMode) IsDir() bool { return m.Type() == ModeDir }

// IsRegular reports whether m names a regular (possibly executable) file.
func (m FileMode) IsRegular() bool { return m.Type() == modeRegular }

// String renders m the way it appears in a tree object (octal, no leading
// zero).
func (m FileMode) String() string { return strconv.FormatUint(uint64(m), 8) }

// ParseFileMode parses an octal tree-entry mode and rejects modes that are
// not one of the five canonical entry kinds.
func ParseFileMode(s string) (FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("parse mode %q: %w", s, err)
	}
	m := FileMode(v)
	switch m {
	case ModeDir, ModeFile, ModeExec, ModeSymlink, ModeGitlink:
		return m, nil
	}
	return 0, fmt.Errorf("parse mode %q: unknown mode", s)
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name string
	Mode FileMode
	Hash Hash
}

// IsDir reports whether the entry names a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode.IsDir() }

// TreeObj holds a list of tree entries in canonical order.
type TreeObj struct {
	Entries []TreeEntry
}
