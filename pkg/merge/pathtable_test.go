package merge

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDFPathCompareKeepsDirectoriesNextToChildren(t *testing.T) {
	paths := []string{"foo/bar", "foo", "foo.c", "a", "foo/bar/baz", "foo0", "foo/a"}
	sort.Slice(paths, func(i, j int) bool { return dfPathCompare(paths[i], paths[j]) < 0 })
	assert.Equal(t, []string{"a", "foo.c", "foo", "foo/a", "foo/bar", "foo/bar/baz", "foo0"}, paths)
	assert.Equal(t, 0, dfPathCompare("same", "same"))
}

func TestDirTable(t *testing.T) {
	d := newDirTable()
	a := d.intern("a")
	ab := d.intern("a/b")
	abc := d.intern("abc")

	assert.Equal(t, a, d.intern("a"))
	assert.Equal(t, "a/b", d.name(ab))
	assert.True(t, d.within(ab, a))
	assert.True(t, d.within(a, RootDir))
	assert.True(t, d.within(a, a))
	assert.False(t, d.within(abc, a), "prefix match must stop at a path boundary")
	assert.False(t, d.within(a, ab))
}

func TestPathTableRejectsDuplicates(t *testing.T) {
	tbl := newPathTable()
	_, err := tbl.add(PathInfo{Path: "x"})
	require.NoError(t, err)
	_, err = tbl.add(PathInfo{Path: "x"})
	assert.True(t, errors.Is(err, ErrInvariant))
}

func TestMatchMask(t *testing.T) {
	assert.Equal(t, Mask(0), MatchNone.Mask())
	assert.Equal(t, Mask(3), MatchBaseSide1.Mask())
	assert.Equal(t, Mask(5), MatchBaseSide2.Mask())
	assert.Equal(t, Mask(6), MatchSides.Mask())
	assert.Equal(t, Mask(7), MatchAll.Mask())
	assert.True(t, Mask(5).Has(Side2))
	assert.False(t, Mask(5).Has(Side1))
	assert.Equal(t, "Match(9)", Match(9).String())
}

func TestProcessEntryPriority(t *testing.T) {
	tests := []struct {
		name    string
		ci      ConflictInfo
		wantErr UnimplementedKind
		clean   bool
		isNull  bool
		side    Stage
	}{
		{
			name:    "directory/file conflict wins over a match",
			ci:      ConflictInfo{FileMask: 3, DirMask: 4, Match: MatchBaseSide1, DFConflict: true},
			wantErr: DirectoryFileConflict,
		},
		{
			name:  "side2 changed",
			ci:    ConflictInfo{FileMask: 7, Match: MatchBaseSide1},
			clean: true, side: Side2,
		},
		{
			name:  "side1 deleted",
			ci:    ConflictInfo{FileMask: 5, Match: MatchBaseSide2},
			clean: true, isNull: true, side: Side1,
		},
		{
			name:  "added on side2",
			ci:    ConflictInfo{FileMask: 4},
			clean: true, side: Side2,
		},
		{
			name:  "deleted on both sides",
			ci:    ConflictInfo{FileMask: 1},
			clean: true, isNull: true,
		},
		{
			name:  "path conflict keeps a one-sided add unclean",
			ci:    ConflictInfo{FileMask: 2, PathConflict: true},
			clean: false, side: Side1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ci := tc.ci
			ci.Stages = [3]VersionInfo{
				{Mode: 0o100644, Hash: "b"},
				{Mode: 0o100644, Hash: "1"},
				{Mode: 0o100644, Hash: "2"},
			}
			for s := Base; s <= Side2; s++ {
				if !ci.FileMask.Has(s) {
					ci.Stages[s] = VersionInfo{}
				}
			}
			tbl := newPathTable()
			info := &PathInfo{Path: "p", Conflict: &ci}
			err := tbl.processEntry(info)
			if tc.name == "directory/file conflict wins over a match" {
				var ue *UnimplementedError
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, tc.wantErr, ue.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.clean, info.Clean)
			assert.Equal(t, tc.isNull, info.IsNull)
			if !tc.isNull {
				assert.Equal(t, ci.Stages[tc.side], info.Result)
			}
			assert.Equal(t, !tc.clean, tbl.IsUnmerged("p"))
		})
	}
}
