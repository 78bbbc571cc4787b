package index

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/treemerge/pkg/object"
)

func sample() *Index {
	h := object.HashBytes([]byte("x"))
	ix := New()
	for _, p := range []string{"a.txt", "dir/b.txt", "dir/c.txt", "z"} {
		ix.Append(&Entry{Path: p, Mode: object.ModeFile, Hash: h})
	}
	ix.Sort()
	ix.SetTree("", object.HashBytes([]byte("root")))
	ix.SetTree("dir", object.HashBytes([]byte("dir")))
	return ix
}

func TestPosRespectsLimit(t *testing.T) {
	ix := sample()
	assert.Equal(t, 1, ix.Pos("dir/b.txt", ix.Len()))
	assert.Equal(t, -1, ix.Pos("dir/b.txt", 1))
	assert.Equal(t, -1, ix.Pos("missing", ix.Len()))
	assert.Equal(t, 3, ix.Pos("z", 100))
}

func TestMarkAppendRemoveSort(t *testing.T) {
	ix := sample()
	n := ix.Len()
	pos := ix.Pos("dir/b.txt", n)
	require.GreaterOrEqual(t, pos, 0)
	ix.MarkRemove(pos)
	ix.Append(&Entry{Path: "dir/b.txt", Stage: 3, Mode: object.ModeFile, Hash: "t"})
	ix.Append(&Entry{Path: "dir/b.txt", Stage: 2, Mode: object.ModeFile, Hash: "o"})

	assert.Equal(t, 1, ix.RemoveMarked())
	ix.Sort()

	var got []string
	for _, e := range ix.Entries {
		got = append(got, e.Path+":"+string(rune('0'+e.Stage)))
	}
	assert.Equal(t, []string{"a.txt:0", "dir/b.txt:2", "dir/b.txt:3", "dir/c.txt:0", "z:0"}, got)
	assert.Equal(t, []string{"dir/b.txt"}, ix.Unmerged())

	_, ok := ix.Tree("dir")
	assert.False(t, ok, "dir summary should be invalidated")
	_, ok = ix.Tree("")
	assert.False(t, ok, "root summary should be invalidated")
}

func TestInvalidatePathKeepsUnrelatedDirs(t *testing.T) {
	ix := sample()
	ix.SetTree("other", object.HashBytes([]byte("o")))
	ix.InvalidatePath("dir/b.txt")
	_, ok := ix.Tree("other")
	assert.True(t, ok)
	_, ok = ix.Tree("dir")
	assert.False(t, ok)
}

func TestFind(t *testing.T) {
	ix := sample()
	e, ok := ix.Find("dir/c.txt", 0)
	require.True(t, ok)
	assert.Equal(t, "dir/c.txt", e.Path)
	_, ok = ix.Find("dir/c.txt", 2)
	assert.False(t, ok)
}

func TestSaveLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "index")

	empty, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	ix := sample()
	require.NoError(t, ix.Save(p))

	got, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, ix.Len(), got.Len())
	for i := range ix.Entries {
		assert.Equal(t, ix.Entries[i].Path, got.Entries[i].Path)
		assert.Equal(t, ix.Entries[i].Hash, got.Entries[i].Hash)
	}
	h, ok := got.Tree("dir")
	assert.True(t, ok)
	assert.Equal(t, ix.Trees["dir"], h)
	assert.NoFileExists(t, p+".lock")
}

func TestSaveFailsWhenLocked(t *testing.T) {
	p := filepath.Join(t.TempDir(), "index")
	lk := flock.New(p + ".lock")
	locked, err := lk.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer lk.Unlock()

	err = sample().Save(p)
	assert.True(t, errors.Is(err, ErrLocked), "got %v", err)
}
