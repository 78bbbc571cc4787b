package object

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TreeStore reads and writes tree objects. It is the only view of the
// object database the merge engine needs.
type TreeStore interface {
	ReadTree(h Hash) (*TreeObj, error)
	WriteTree(tr *TreeObj) (Hash, error)
}

// Trees adapts a Database to a TreeStore.
type Trees struct {
	DB Database
}

// ReadTree reads h from the database. The empty tree is always readable,
// whether or not it was ever written.
func (t Trees) ReadTree(h Hash) (*TreeObj, error) {
	if h == EmptyTreeHash {
		return &TreeObj{}, nil
	}
	return ReadTree(t.DB, h)
}

// WriteTree serializes tr into the database.
func (t Trees) WriteTree(tr *TreeObj) (Hash, error) {
	return WriteTree(t.DB, tr)
}

// CachedTrees memoizes decoded trees in front of another TreeStore.
// Returned trees are shared between callers and must not be modified.
type CachedTrees struct {
	next  TreeStore
	cache *lru.Cache[Hash, *TreeObj]
}

// NewCachedTrees wraps next with an LRU cache holding up to size trees.
func NewCachedTrees(next TreeStore, size int) (*CachedTrees, error) {
	cache, err := lru.New[Hash, *TreeObj](size)
	if err != nil {
		return nil, fmt.Errorf("tree cache: %w", err)
	}
	return &CachedTrees{next: next, cache: cache}, nil
}

func (c *CachedTrees) ReadTree(h Hash) (*TreeObj, error) {
	if tr, ok := c.cache.Get(h); ok {
		return tr, nil
	}
	tr, err := c.next.ReadTree(h)
	if err != nil {
		return nil, err
	}
	c.cache.Add(h, tr)
	return tr, nil
}

func (c *CachedTrees) WriteTree(tr *TreeObj) (Hash, error) {
	h, err := c.next.WriteTree(tr)
	if err != nil {
		return "", err
	}
	canon := &TreeObj{Entries: make([]TreeEntry, len(tr.Entries))}
	copy(canon.Entries, tr.Entries)
	SortEntries(canon.Entries)
	c.cache.Add(h, canon)
	return h, nil
}

// Len returns the number of cached trees.
func (c *CachedTrees) Len() int { return c.cache.Len() }
