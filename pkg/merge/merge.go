// Package merge implements a non-recursive three-way merge of tree objects.
//
// A merge runs in three passes. The collector walks the base and both sides
// in lockstep and records every path that differs, skipping subtrees that
// are identical everywhere. An optional rename detector may then rewrite
// records. Finally each record is resolved in reverse path order, children
// before parents, and the accumulator writes one tree per directory,
// bottom-up, ending with the root.
//
// Only tree-level merging is performed: when both sides change the same
// file differently the result keeps side1's version and reports the path as
// conflicted.
package merge

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/odvcencio/treemerge/pkg/object"
)

// Verdict summarizes the outcome of a merge.
type Verdict int

const (
	Clean Verdict = iota
	Conflicted
	Failed
)

func (v Verdict) String() string {
	switch v {
	case Clean:
		return "clean"
	case Conflicted:
		return "conflicted"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Options configures a merge and carries its in-flight state between
// MergeNonRecursive and SwitchToResult. An Options value runs one merge at
// a time.
type Options struct {
	Trees   object.TreeStore
	Renames RenameDetector // nil means IdentityRenames

	// Labels used when reporting conflicts.
	Ancestor string
	Branch1  string
	Branch2  string

	Logger *slog.Logger

	state     *mergeState
	callDepth int
}

type mergeState struct {
	paths *PathTable
}

// Result is the outcome of a merge. The path table stays attached until
// Finalize so callers can inspect conflicts.
type Result struct {
	Tree    object.Hash
	Verdict Verdict
	// ApplyErr holds the failure that downgraded the verdict to Failed
	// while the result was being applied to a workspace.
	ApplyErr error

	state *mergeState
}

// ConflictEntry describes one unmerged path.
type ConflictEntry struct {
	Path     string
	Stages   [3]VersionInfo
	FileMask Mask
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Options) start() error {
	if o.Trees == nil {
		return errors.New("merge: no tree store configured")
	}
	if o.state != nil {
		return invariantf("merge started while a previous merge on the same options is still in flight")
	}
	if o.Renames == nil {
		o.Renames = IdentityRenames{}
	}
	if o.Ancestor == "" {
		o.Ancestor = "base"
	}
	if o.Branch1 == "" {
		o.Branch1 = "side1"
	}
	if o.Branch2 == "" {
		o.Branch2 = "side2"
	}
	return nil
}

// MergeNonRecursive merges side1 and side2 using base as their common
// ancestor. A null hash stands for an empty tree.
//
// Unreadable trees produce a Result with verdict Failed together with a
// *TreeReadError. Unsupported conflict shapes and internal failures return
// a nil Result and an error matching ErrUnimplemented or ErrInvariant.
func (o *Options) MergeNonRecursive(base, side1, side2 object.Hash) (*Result, error) {
	if err := o.start(); err != nil {
		return nil, err
	}
	o.state = &mergeState{paths: newPathTable()}

	res := &Result{}
	if err := o.mergeTrees(base, side1, side2, res); err != nil {
		o.state = nil
		var tre *TreeReadError
		if errors.As(err, &tre) {
			res.Verdict = Failed
			return res, err
		}
		return nil, err
	}
	if o.callDepth == 0 {
		res.state = o.state
		o.state = nil
	}
	return res, nil
}

// MergeRecursive would merge with several merge bases by first merging the
// bases themselves. It is not supported.
func (o *Options) MergeRecursive(bases []object.Hash, side1, side2 object.Hash) (*Result, error) {
	return nil, &UnimplementedError{Kind: RecursiveMerge}
}

func (o *Options) mergeTrees(base, side1, side2 object.Hash, res *Result) error {
	log := o.logger()
	paths := o.state.paths

	c := &collector{trees: o.Trees, table: paths}
	if err := c.collect(base, side1, side2); err != nil {
		return fmt.Errorf("collecting merge info for trees %s, %s, %s: %w",
			base.Short(), side1.Short(), side2.Short(), err)
	}
	log.Debug("merge collected", "paths", paths.Len(), "dirs", len(paths.dirs.names))

	renamesClean, err := o.Renames.DetectRenames(paths, base, side1, side2)
	if err != nil {
		return fmt.Errorf("detect renames: %w", err)
	}

	tree, written, err := o.processEntries(paths)
	if err != nil {
		return err
	}

	res.Tree = tree
	res.Verdict = Clean
	if !renamesClean || paths.unmerged.Cardinality() > 0 {
		res.Verdict = Conflicted
	}
	for _, p := range paths.Unmerged() {
		log.Debug("merge conflict", "path", p, "base", o.Ancestor, "side1", o.Branch1, "side2", o.Branch2)
	}
	log.Debug("merge processed",
		"tree", tree.Short(),
		"verdict", res.Verdict,
		"unmerged", paths.unmerged.Cardinality(),
		"trees_written", written)
	return nil
}

func (o *Options) processEntries(paths *PathTable) (object.Hash, int, error) {
	if paths.Len() == 0 {
		h, err := o.Trees.WriteTree(&object.TreeObj{})
		if err != nil {
			return "", 0, fmt.Errorf("write empty tree: %w", err)
		}
		return h, 1, nil
	}

	acc := newAccumulator(paths, o.Trees)
	order := paths.processingOrder()
	for i := len(order) - 1; i >= 0; i-- {
		idx := order[i]
		info := paths.at(idx)
		if err := acc.enter(info.Dir); err != nil {
			return "", 0, fmt.Errorf("write tree for %s: %w", paths.dirs.name(acc.last), err)
		}
		if info.Conflict != nil && !info.Clean {
			if err := paths.processEntry(info); err != nil {
				return "", 0, err
			}
		}
		acc.record(idx)
	}

	tree, err := acc.finish()
	if err != nil {
		return "", 0, fmt.Errorf("write root tree: %w", err)
	}
	return tree, acc.written, nil
}

// Finalize releases the state attached to res. It is safe to call more
// than once.
func (o *Options) Finalize(res *Result) error {
	if o.state != nil {
		return invariantf("finalize while a merge is still in flight")
	}
	res.Finalize()
	return nil
}

// Finalize releases the path table attached to r.
func (r *Result) Finalize() {
	r.state = nil
}

// Clean reports whether the merge produced no conflicts.
func (r *Result) Clean() bool { return r.Verdict == Clean }

// Conflicts returns the unmerged paths in byte order with their input
// versions. It returns nil once the result has been finalized.
func (r *Result) Conflicts() []ConflictEntry {
	if r.state == nil {
		return nil
	}
	paths := r.state.paths
	var out []ConflictEntry
	for _, p := range paths.Unmerged() {
		info, ok := paths.Lookup(p)
		if !ok || info.Conflict == nil {
			continue
		}
		out = append(out, ConflictEntry{
			Path:     p,
			Stages:   info.Conflict.Stages,
			FileMask: info.Conflict.FileMask,
		})
	}
	return out
}

// Entry returns a copy of the record for path.
func (r *Result) Entry(path string) (PathInfo, bool) {
	if r.state == nil {
		return PathInfo{}, false
	}
	info, ok := r.state.paths.Lookup(path)
	if !ok {
		return PathInfo{}, false
	}
	out := *info
	if info.Conflict != nil {
		ci := *info.Conflict
		out.Conflict = &ci
	}
	return out, true
}

func (r *Result) fail(err error) {
	r.Verdict = Failed
	r.ApplyErr = err
}
