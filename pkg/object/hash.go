package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of a raw object id.
const HashSize = sha256.Size

// EmptyTreeHash is the id of the tree object with no entries.
var EmptyTreeHash = HashObject(TypeTree, nil)

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-256 of the envelope "type len\0content",
// mirroring Git's object hashing but with SHA-256.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// RawHash decodes h into its HashSize-byte binary form.
func RawHash(h Hash) ([]byte, error) {
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("decode hash %q: %w", h, err)
	}
	if len(raw) != HashSize {
		return nil, fmt.Errorf("decode hash %q: got %d bytes, want %d", h, len(raw), HashSize)
	}
	return raw, nil
}

// ValidHash reports whether h is a well-formed, non-null object id.
func ValidHash(h Hash) bool {
	_, err := RawHash(h)
	return err == nil
}
