package merge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/treemerge/pkg/object"
)

type file struct {
	mode object.FileMode
	data string
}

// mustTree writes regular files at the given slash paths and returns the
// root tree id.
func mustTree(t *testing.T, db object.Database, files map[string]string) object.Hash {
	t.Helper()
	withModes := make(map[string]file, len(files))
	for p, data := range files {
		withModes[p] = file{mode: object.ModeFile, data: data}
	}
	return mustTreeModes(t, db, withModes)
}

func mustTreeModes(t *testing.T, db object.Database, files map[string]file) object.Hash {
	t.Helper()
	h, err := buildTree(db, files)
	require.NoError(t, err)
	return h
}

func buildTree(db object.Database, files map[string]file) (object.Hash, error) {
	direct := make(map[string]file)
	nested := make(map[string]map[string]file)
	for p, f := range files {
		head, rest, ok := strings.Cut(p, "/")
		if !ok {
			direct[p] = f
			continue
		}
		if nested[head] == nil {
			nested[head] = make(map[string]file)
		}
		nested[head][rest] = f
	}

	var tr object.TreeObj
	for name, f := range direct {
		h, err := object.WriteBlob(db, &object.Blob{Data: []byte(f.data)})
		if err != nil {
			return "", err
		}
		tr.Entries = append(tr.Entries, object.TreeEntry{Name: name, Mode: f.mode, Hash: h})
	}
	for name, sub := range nested {
		h, err := buildTree(db, sub)
		if err != nil {
			return "", err
		}
		tr.Entries = append(tr.Entries, object.TreeEntry{Name: name, Mode: object.ModeDir, Hash: h})
	}
	return object.WriteTree(db, &tr)
}

// readFiles flattens tree h back into path => content.
func readFiles(t *testing.T, db object.Database, h object.Hash) map[string]string {
	t.Helper()
	out := make(map[string]string)
	var walk func(h object.Hash, prefix string)
	walk = func(h object.Hash, prefix string) {
		tr, err := object.Trees{DB: db}.ReadTree(h)
		require.NoError(t, err)
		for _, e := range tr.Entries {
			p := prefix + e.Name
			if e.IsDir() {
				walk(e.Hash, p+"/")
				continue
			}
			b, err := object.ReadBlob(db, e.Hash)
			require.NoError(t, err)
			out[p] = string(b.Data)
		}
	}
	walk(h, "")
	return out
}

// entryHash returns the id of the entry at slash path p inside tree h.
func entryHash(t *testing.T, db object.Database, h object.Hash, p string) object.Hash {
	t.Helper()
	cur := h
	for _, name := range strings.Split(p, "/") {
		tr, err := object.ReadTree(db, cur)
		require.NoError(t, err)
		found := false
		for _, e := range tr.Entries {
			if e.Name == name {
				cur, found = e.Hash, true
				break
			}
		}
		require.True(t, found, "no entry %q in %s", name, p)
	}
	return cur
}

func newOptions(db object.Database) *Options {
	return &Options{Trees: object.Trees{DB: db}}
}
