package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/treemerge/pkg/object"
)

func mergeTrees(t *testing.T, db object.Database, base, side1, side2 object.Hash) *Result {
	t.Helper()
	res, err := newOptions(db).MergeNonRecursive(base, side1, side2)
	require.NoError(t, err)
	return res
}

func TestMergeIdenticalTreesIsIdempotent(t *testing.T) {
	db := object.NewMemStore()
	tree := mustTree(t, db, map[string]string{
		"README":        "hello\n",
		"src/a.go":      "package a\n",
		"src/deep/b.go": "package deep\n",
	})

	res := mergeTrees(t, db, tree, tree, tree)
	assert.Equal(t, tree, res.Tree)
	assert.Equal(t, Clean, res.Verdict)
	assert.Empty(t, res.Conflicts())
	// Unchanged subtrees are never descended into.
	assert.Equal(t, 2, res.state.paths.Len())
}

func TestMergeOneSideModified(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"a/x": "1", "b": "keep"})
	changed := mustTree(t, db, map[string]string{"a/x": "2", "b": "keep"})

	for name, sides := range map[string][2]object.Hash{
		"side1": {changed, base},
		"side2": {base, changed},
	} {
		t.Run(name, func(t *testing.T) {
			res := mergeTrees(t, db, base, sides[0], sides[1])
			assert.Equal(t, Clean, res.Verdict)
			assert.Equal(t, changed, res.Tree)
			assert.Equal(t, map[string]string{"a/x": "2", "b": "keep"}, readFiles(t, db, res.Tree))
		})
	}
}

func TestMergeAdditions(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"f": "1"})
	side1 := mustTree(t, db, map[string]string{"f": "1", "new/one.txt": "one"})
	side2 := mustTree(t, db, map[string]string{"f": "1", "two.txt": "two"})

	res := mergeTrees(t, db, base, side1, side2)
	assert.Equal(t, Clean, res.Verdict)
	assert.Equal(t, map[string]string{
		"f":           "1",
		"new/one.txt": "one",
		"two.txt":     "two",
	}, readFiles(t, db, res.Tree))
}

func TestMergeDeletedOnBothSides(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"f": "1", "g": "2"})
	side := mustTree(t, db, map[string]string{"g": "2"})

	res := mergeTrees(t, db, base, side, side)
	assert.Equal(t, Clean, res.Verdict)
	assert.Equal(t, map[string]string{"g": "2"}, readFiles(t, db, res.Tree))
}

func TestMergeDeletedOnOneSideUnchangedOnOther(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"d/x": "1", "d/y": "2", "keep": "k"})
	side1 := mustTree(t, db, map[string]string{"keep": "k"})

	res := mergeTrees(t, db, base, side1, base)
	assert.Equal(t, Clean, res.Verdict)
	assert.Equal(t, side1, res.Tree)

	info, ok := res.Entry("d")
	require.True(t, ok)
	assert.True(t, info.IsNull, "emptied directory should be dropped")
}

func TestMergeEverythingDeleted(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"a/b/c": "1"})

	res := mergeTrees(t, db, base, "", base)
	assert.Equal(t, Clean, res.Verdict)
	assert.Equal(t, object.EmptyTreeHash, res.Tree)
}

func TestMergeEmptyInputs(t *testing.T) {
	res := mergeTrees(t, object.NewMemStore(), "", "", "")
	assert.Equal(t, Clean, res.Verdict)
	assert.Equal(t, object.EmptyTreeHash, res.Tree)
}

func TestMergeSameChangeOnBothSides(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"f": "1"})
	both := mustTree(t, db, map[string]string{"f": "2", "added": "same"})

	res := mergeTrees(t, db, base, both, both)
	assert.Equal(t, Clean, res.Verdict)
	assert.Equal(t, both, res.Tree)
}

func TestMergeWithoutBase(t *testing.T) {
	db := object.NewMemStore()
	side1 := mustTree(t, db, map[string]string{"same": "x", "only1": "1", "clash": "a"})
	side2 := mustTree(t, db, map[string]string{"same": "x", "only2": "2", "clash": "b"})

	res := mergeTrees(t, db, "", side1, side2)
	assert.Equal(t, Conflicted, res.Verdict)
	assert.Equal(t, map[string]string{
		"same":  "x",
		"only1": "1",
		"only2": "2",
		"clash": "a",
	}, readFiles(t, db, res.Tree))

	conflicts := res.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "clash", conflicts[0].Path)
	assert.False(t, conflicts[0].FileMask.Has(Base))
}

func TestMergeIsDeterministic(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"a/x": "1", "b/y": "1", "c": "1"})
	side1 := mustTree(t, db, map[string]string{"a/x": "2", "b/y": "1", "c": "1", "z/new": "n"})
	side2 := mustTree(t, db, map[string]string{"a/x": "1", "b/y": "3"})

	first := mergeTrees(t, db, base, side1, side2)

	cached, err := object.NewCachedTrees(object.Trees{DB: db}, 16)
	require.NoError(t, err)
	opts := &Options{Trees: cached}
	second, err := opts.MergeNonRecursive(base, side1, side2)
	require.NoError(t, err)

	assert.Equal(t, first.Tree, second.Tree)
	assert.Equal(t, first.Verdict, second.Verdict)
	assert.Equal(t, map[string]string{"a/x": "2", "b/y": "3", "z/new": "n"}, readFiles(t, db, first.Tree))
}

func TestMergeRewritesOnlyChangedAncestors(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{
		"top/mid/leaf/file": "1",
		"top/mid/sibling":   "s",
		"top/other/x":       "o",
		"untouched/y":       "u",
	})
	side1 := mustTree(t, db, map[string]string{
		"top/mid/leaf/file": "2",
		"top/mid/sibling":   "s",
		"top/other/x":       "o",
		"untouched/y":       "u",
	})
	side2 := mustTree(t, db, map[string]string{
		"top/mid/leaf/file": "1",
		"top/mid/sibling":   "s",
		"top/other/x":       "o",
		"untouched/y":       "u",
		"extra":             "e",
	})

	res := mergeTrees(t, db, base, side1, side2)
	require.Equal(t, Clean, res.Verdict)

	for _, p := range []string{"top", "top/mid", "top/mid/leaf"} {
		assert.NotEqual(t, entryHash(t, db, base, p), entryHash(t, db, res.Tree, p), "%s should be rewritten", p)
		assert.Equal(t, entryHash(t, db, side1, p), entryHash(t, db, res.Tree, p), "%s should match side1", p)
	}
	for _, p := range []string{"top/other", "untouched"} {
		assert.Equal(t, entryHash(t, db, base, p), entryHash(t, db, res.Tree, p), "%s should keep its id", p)
	}
	assert.NotEqual(t, base, res.Tree)
}

func TestScenarioNestedModify(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"a/x": "1"})
	side1 := mustTree(t, db, map[string]string{"a/x": "2"})

	res := mergeTrees(t, db, base, side1, base)
	assert.Equal(t, Clean, res.Verdict)
	assert.Equal(t, map[string]string{"a/x": "2"}, readFiles(t, db, res.Tree))
}

func TestScenarioDeleteDelete(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"f": "1", "g": "g"})
	side := mustTree(t, db, map[string]string{"g": "g"})

	res := mergeTrees(t, db, base, side, side)
	assert.Equal(t, Clean, res.Verdict)
	assert.NotContains(t, readFiles(t, db, res.Tree), "f")
}

func TestScenarioBothModifiedDifferently(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"f": "1", "dir/g": "1"})
	side1 := mustTree(t, db, map[string]string{"f": "2", "dir/g": "2"})
	side2 := mustTree(t, db, map[string]string{"f": "3", "dir/g": "3"})

	res := mergeTrees(t, db, base, side1, side2)
	assert.Equal(t, Conflicted, res.Verdict)
	assert.False(t, res.Clean())
	assert.Equal(t, map[string]string{"f": "2", "dir/g": "2"}, readFiles(t, db, res.Tree))

	conflicts := res.Conflicts()
	require.Len(t, conflicts, 2)
	assert.Equal(t, "dir/g", conflicts[0].Path)
	assert.Equal(t, "f", conflicts[1].Path)

	c := conflicts[1]
	assert.Equal(t, Mask(7), c.FileMask)
	assert.Equal(t, entryHash(t, db, base, "f"), c.Stages[Base].Hash)
	assert.Equal(t, entryHash(t, db, side1, "f"), c.Stages[Side1].Hash)
	assert.Equal(t, entryHash(t, db, side2, "f"), c.Stages[Side2].Hash)

	info, ok := res.Entry("f")
	require.True(t, ok)
	assert.False(t, info.Clean)
	require.NotNil(t, info.Conflict)
	assert.Equal(t, MatchNone, info.Conflict.Match)
}

func TestScenarioFileReplacedByDirectory(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"p": "file"})
	side2 := mustTree(t, db, map[string]string{"p/inner": "x", "p/more/y": "y"})

	res, err := newOptions(db).MergeNonRecursive(base, base, side2)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrUnimplemented))

	var ue *UnimplementedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, DirectoryFileConflict, ue.Kind)
	assert.Equal(t, "p", ue.Path)
}

func TestMergeTypeMismatch(t *testing.T) {
	db := object.NewMemStore()
	base := mustTreeModes(t, db, map[string]file{"l": {object.ModeFile, "target"}})
	side1 := mustTreeModes(t, db, map[string]file{"l": {object.ModeSymlink, "elsewhere"}})
	side2 := mustTreeModes(t, db, map[string]file{"l": {object.ModeFile, "edited"}})

	_, err := newOptions(db).MergeNonRecursive(base, side1, side2)
	var ue *UnimplementedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, TypeMismatch, ue.Kind)
}

func TestMergeExecBitChangeIsNotTypeMismatch(t *testing.T) {
	db := object.NewMemStore()
	base := mustTreeModes(t, db, map[string]file{"s": {object.ModeFile, "1"}})
	side1 := mustTreeModes(t, db, map[string]file{"s": {object.ModeExec, "1"}})
	side2 := mustTreeModes(t, db, map[string]file{"s": {object.ModeFile, "2"}})

	res := mergeTrees(t, db, base, side1, side2)
	assert.Equal(t, Conflicted, res.Verdict)
	info, ok := res.Entry("s")
	require.True(t, ok)
	assert.Equal(t, object.ModeExec, info.Result.Mode)
}

func TestMergeModifyDelete(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"f": "1", "g": "g"})
	side1 := mustTree(t, db, map[string]string{"f": "2", "g": "g"})
	side2 := mustTree(t, db, map[string]string{"g": "g"})

	_, err := newOptions(db).MergeNonRecursive(base, side1, side2)
	var ue *UnimplementedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ModifyDelete, ue.Kind)
	assert.Equal(t, "f", ue.Path)
}

func TestMergeRecursiveIsUnimplemented(t *testing.T) {
	opts := newOptions(object.NewMemStore())
	_, err := opts.MergeRecursive([]object.Hash{"", ""}, "", "")
	var ue *UnimplementedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, RecursiveMerge, ue.Kind)
}

func TestMergeUnreadableTreeFails(t *testing.T) {
	db := object.NewMemStore()
	base := mustTree(t, db, map[string]string{"f": "1"})
	missing := object.HashBytes([]byte("no such tree"))

	res, err := newOptions(db).MergeNonRecursive(base, missing, base)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, Failed, res.Verdict)
	assert.Empty(t, res.Conflicts())

	var tre *TreeReadError
	require.ErrorAs(t, err, &tre)
	assert.Equal(t, missing, tre.Hash)
	assert.True(t, errors.Is(err, object.ErrNotFound))
}

func TestMergeUnreadableSubtreeNamesPath(t *testing.T) {
	db := object.NewMemStore()
	bad := object.HashBytes([]byte("dangling"))
	base := mustTree(t, db, map[string]string{"d/x": "1"})
	side1, err := object.WriteTree(db, &object.TreeObj{Entries: []object.TreeEntry{
		{Name: "d", Mode: object.ModeDir, Hash: bad},
	}})
	require.NoError(t, err)

	_, err = newOptions(db).MergeNonRecursive(base, side1, base)
	var tre *TreeReadError
	require.ErrorAs(t, err, &tre)
	assert.Equal(t, "d", tre.Path)
}

func TestOptionsRejectMergeInFlight(t *testing.T) {
	opts := newOptions(object.NewMemStore())
	opts.state = &mergeState{paths: newPathTable()}

	_, err := opts.MergeNonRecursive("", "", "")
	assert.True(t, errors.Is(err, ErrInvariant), "got %v", err)
	assert.True(t, errors.Is(opts.Finalize(&Result{}), ErrInvariant))
}

func TestOptionsReusableAfterMerge(t *testing.T) {
	db := object.NewMemStore()
	tree := mustTree(t, db, map[string]string{"f": "1"})
	opts := newOptions(db)

	first, err := opts.MergeNonRecursive(tree, tree, tree)
	require.NoError(t, err)
	require.NoError(t, opts.Finalize(first))
	require.NoError(t, opts.Finalize(first))

	second, err := opts.MergeNonRecursive(tree, tree, tree)
	require.NoError(t, err)
	assert.Equal(t, first.Tree, second.Tree)
	assert.Equal(t, "base", opts.Ancestor)
}

func TestRenameDetectorByName(t *testing.T) {
	d, err := RenameDetectorByName("none")
	require.NoError(t, err)
	assert.IsType(t, IdentityRenames{}, d)

	_, err = RenameDetectorByName("similarity")
	assert.True(t, errors.Is(err, ErrUnimplemented))
}

type dirtyRenames struct{}

func (dirtyRenames) DetectRenames(*PathTable, object.Hash, object.Hash, object.Hash) (bool, error) {
	return false, nil
}

func TestUncleanRenamesMakeMergeConflicted(t *testing.T) {
	db := object.NewMemStore()
	tree := mustTree(t, db, map[string]string{"f": "1"})
	opts := &Options{Trees: object.Trees{DB: db}, Renames: dirtyRenames{}}

	res, err := opts.MergeNonRecursive(tree, tree, tree)
	require.NoError(t, err)
	assert.Equal(t, Conflicted, res.Verdict)
	assert.Empty(t, res.Conflicts())
}
