package object

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ErrNotFound is returned (wrapped) when an object is not in a database.
var ErrNotFound = errors.New("object not found")

// Database is a content-addressed object database.
type Database interface {
	// Has reports whether the database contains an object with the given hash.
	Has(h Hash) bool
	// Write stores an object and returns its content hash.
	Write(objType ObjectType, data []byte) (Hash, error)
	// Read retrieves an object by hash, returning its type and raw content.
	Read(h Hash) (ObjectType, []byte, error)
}

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123... Each file holds the
// zstd-compressed envelope "type len\0content".
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if len(h) < 3 {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Writes are atomic:
// data is written to a temp file and then renamed into place.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	raw, err := compressZstd(envelope(objType, data))
	if err != nil {
		return "", fmt.Errorf("object write compress: %w", err)
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if len(h) < 3 {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}
	compressed, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	raw, err := decompressZstd(compressed)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}
	return parseEnvelope(h, raw)
}

func envelope(objType ObjectType, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	raw := make([]byte, 0, len(header)+len(data))
	raw = append(raw, header...)
	return append(raw, data...)
}

// parseEnvelope splits "type len\0content" and validates the length.
func parseEnvelope(h Hash, raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: invalid format (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("object read %s: invalid header %q", h, header)
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: invalid length %q: %w", h, parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}

	return objType, content, nil
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// ---------------------------------------------------------------------------
// Typed convenience functions
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func WriteBlob(db Database, b *Blob) (Hash, error) {
	return db.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func ReadBlob(db Database, h Hash) (*Blob, error) {
	objType, data, err := db.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeBlob {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeBlob)
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func WriteTree(db Database, tr *TreeObj) (Hash, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return "", err
	}
	return db.Write(TypeTree, data)
}

// ReadTree reads and deserializes a TreeObj.
func ReadTree(db Database, h Hash) (*TreeObj, error) {
	objType, data, err := db.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeTree {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeTree)
	}
	tr, err := UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return tr, nil
}
