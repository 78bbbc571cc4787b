package repo

import (
	"context"
	"fmt"
	"io"

	"github.com/odvcencio/treemerge/pkg/merge"
	"github.com/odvcencio/treemerge/pkg/object"
)

// PostMergeEvent is the hook event run after a merge is written to the
// worktree.
const PostMergeEvent = "post-merge"

// MergeTreesOptions controls MergeTrees.
type MergeTreesOptions struct {
	// Write checks the result out into the worktree, records conflicts in
	// the index, moves HEAD and runs the post-merge hook.
	Write bool

	// Labels for the three inputs; empty uses the engine defaults.
	Ancestor, Branch1, Branch2 string

	// Hook prompt input and output.
	Stdin  io.Reader
	Stderr io.Writer
}

// MergeOutcome reports what MergeTrees did.
type MergeOutcome struct {
	Tree       object.Hash
	Verdict    merge.Verdict
	Conflicts  []merge.ConflictEntry
	ApplyErr   error
	HookStatus int
}

// MergeOptions returns engine options wired to the repository's tree store
// and configured rename detector.
func (r *Repo) MergeOptions() (*merge.Options, error) {
	renames, err := merge.RenameDetectorByName(r.Config.Merge.Renames)
	if err != nil {
		return nil, err
	}
	return &merge.Options{Trees: r.Trees, Renames: renames, Logger: r.Logger}, nil
}

// MergeTrees merges side1 and side2 against base. Conflicts are not an
// error; they are reported in the outcome. When a tree cannot be read the
// outcome has verdict Failed and the error is returned alongside it.
func (r *Repo) MergeTrees(ctx context.Context, base, side1, side2 object.Hash, opts MergeTreesOptions) (*MergeOutcome, error) {
	mo, err := r.MergeOptions()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	mo.Ancestor, mo.Branch1, mo.Branch2 = opts.Ancestor, opts.Branch1, opts.Branch2

	res, err := mo.MergeNonRecursive(base, side1, side2)
	if err != nil {
		if res != nil {
			return &MergeOutcome{Verdict: res.Verdict}, err
		}
		return nil, err
	}
	out := &MergeOutcome{Tree: res.Tree, Verdict: res.Verdict, Conflicts: res.Conflicts()}

	if !opts.Write {
		return out, mo.Finalize(res)
	}

	head, err := r.Head()
	if err != nil {
		mo.Finalize(res)
		return nil, err
	}
	wt, err := r.Worktree()
	if err != nil {
		mo.Finalize(res)
		return nil, err
	}
	if err := mo.SwitchToResult(head, res, wt, true); err != nil {
		return nil, err
	}
	out.Verdict, out.ApplyErr = res.Verdict, res.ApplyErr
	if res.Verdict == merge.Failed {
		return out, nil
	}
	if err := r.SetHead(res.Tree); err != nil {
		return out, err
	}

	arg := "0"
	if res.Verdict == merge.Conflicted {
		arg = "1"
	}
	rc, err := r.Hooks(opts.Stdin, opts.Stderr).Run(ctx, PostMergeEvent, []string{arg}, r.HookPolicy())
	out.HookStatus = rc
	if err != nil {
		return out, fmt.Errorf("merge: %s hook: %w", PostMergeEvent, err)
	}
	return out, nil
}
