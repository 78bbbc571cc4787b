package merge

import (
	"fmt"
	"testing"

	"github.com/odvcencio/treemerge/pkg/object"
)

// benchTrees builds a base with dirs*files paths plus two sides that each
// modify a disjoint handful of files in separate directories.
func benchTrees(b *testing.B, db object.Database, dirs, files int) (base, side1, side2 object.Hash) {
	b.Helper()
	build := func(edit func(d, f int) string) object.Hash {
		all := make(map[string]file, dirs*files)
		for d := 0; d < dirs; d++ {
			for f := 0; f < files; f++ {
				p := fmt.Sprintf("pkg%03d/sub/file%03d.go", d, f)
				all[p] = file{mode: object.ModeFile, data: edit(d, f)}
			}
		}
		h, err := buildTree(db, all)
		if err != nil {
			b.Fatalf("buildTree: %v", err)
		}
		return h
	}
	orig := func(d, f int) string { return fmt.Sprintf("package p%d // %d\n", d, f) }
	base = build(orig)
	side1 = build(func(d, f int) string {
		if d == 1 && f < 5 {
			return "side1\n"
		}
		return orig(d, f)
	})
	side2 = build(func(d, f int) string {
		if d == dirs-1 && f < 5 {
			return "side2\n"
		}
		return orig(d, f)
	})
	return base, side1, side2
}

func BenchmarkMergeNonRecursive(b *testing.B) {
	db := object.NewMemStore()
	base, side1, side2 := benchTrees(b, db, 50, 40)
	cached, err := object.NewCachedTrees(object.Trees{DB: db}, 256)
	if err != nil {
		b.Fatalf("NewCachedTrees: %v", err)
	}

	for _, tc := range []struct {
		name  string
		trees object.TreeStore
	}{
		{"uncached", object.Trees{DB: db}},
		{"cached", cached},
	} {
		b.Run(tc.name, func(b *testing.B) {
			opt := &Options{Trees: tc.trees}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				res, err := opt.MergeNonRecursive(base, side1, side2)
				if err != nil {
					b.Fatalf("MergeNonRecursive: %v", err)
				}
				if !res.Clean() {
					b.Fatal("expected clean merge")
				}
				res.Finalize()
			}
		})
	}
}

func BenchmarkMergeIdenticalTrees(b *testing.B) {
	db := object.NewMemStore()
	base, _, _ := benchTrees(b, db, 50, 40)
	opt := newOptions(db)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := opt.MergeNonRecursive(base, base, base)
		if err != nil {
			b.Fatalf("MergeNonRecursive: %v", err)
		}
		if res.Tree != base {
			b.Fatalf("Tree = %s, want %s", res.Tree, base)
		}
		res.Finalize()
	}
}
