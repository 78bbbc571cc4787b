package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// CompareEntries orders tree entries the way they are serialized: bytewise
// by name, except that a directory name compares as if it were followed by
// a '/'. That keeps "foo.c" before the directory "foo" and after a file
// named "foo".
func CompareEntries(a, b TreeEntry) int {
	return compareNames(a.Name, a.IsDir(), b.Name, b.IsDir())
}

func compareNames(a string, aDir bool, b string, bDir bool) int {
	n := min(len(a), len(b))
	if c := strings.Compare(a[:n], b[:n]); c != 0 {
		return c
	}
	c1, c2 := nextNameByte(a, n, aDir), nextNameByte(b, n, bDir)
	switch {
	case c1 < c2:
		return -1
	case c1 > c2:
		return 1
	}
	return 0
}

func nextNameByte(name string, i int, isDir bool) byte {
	if i < len(name) {
		return name[i]
	}
	if isDir {
		return '/'
	}
	return 0
}

// SortEntries sorts entries in place into canonical tree order.
func SortEntries(entries []TreeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return CompareEntries(entries[i], entries[j]) < 0
	})
}

// MarshalTree serializes a TreeObj. Entries are sorted into canonical order
// first, so the same set of entries always produces the same bytes. Each
// entry is
//
//	<octal mode> SP <name> NUL <32-byte raw hash>
func MarshalTree(tr *TreeObj) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	SortEntries(sorted)

	var buf bytes.Buffer
	buf.Grow(len(sorted) * (HashSize + 16))
	for i, e := range sorted {
		if err := validEntryName(e.Name); err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}
		if i > 0 && sorted[i-1].Name == e.Name {
			return nil, fmt.Errorf("marshal tree: duplicate entry %q", e.Name)
		}
		raw, err := RawHash(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("marshal tree: entry %q: %w", e.Name, err)
		}
		buf.WriteString(e.Mode.String())
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("unmarshal tree: entry %d: missing mode separator", len(tr.Entries))
		}
		mode, err := ParseFileMode(string(data[:sp]))
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: entry %d: missing name terminator", len(tr.Entries))
		}
		name := string(data[:nul])
		if err := validEntryName(name); err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		data = data[nul+1:]

		if len(data) < HashSize {
			return nil, fmt.Errorf("unmarshal tree: entry %q: truncated hash", name)
		}
		entry := TreeEntry{
			Name: name,
			Mode: mode,
			Hash: Hash(hex.EncodeToString(data[:HashSize])),
		}
		data = data[HashSize:]

		if n := len(tr.Entries); n > 0 && CompareEntries(tr.Entries[n-1], entry) >= 0 {
			return nil, fmt.Errorf("unmarshal tree: entry %q out of order", name)
		}
		tr.Entries = append(tr.Entries, entry)
	}
	return tr, nil
}

func validEntryName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty entry name")
	case name == "." || name == "..":
		return fmt.Errorf("invalid entry name %q", name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}
