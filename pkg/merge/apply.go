package merge

import (
	"errors"
	"fmt"

	"github.com/odvcencio/treemerge/pkg/index"
	"github.com/odvcencio/treemerge/pkg/object"
)

// Workspace is the working copy a merge result is applied to.
type Workspace interface {
	// Checkout moves the working files and the index from prev to next.
	Checkout(prev, next object.Hash) error
	// Index returns the in-memory index updated by Checkout.
	Index() *index.Index
	// FlushIndex persists the index.
	FlushIndex() error
}

// SwitchToResult applies res to ws when update is set: the working copy is
// checked out from head to the merged tree and every unmerged path is
// recorded in the index as stage 1..3 entries. The result is finalized in
// every case.
//
// Checkout and index failures do not return an error; they mark res as
// Failed and keep the cause in res.ApplyErr.
func (o *Options) SwitchToResult(head object.Hash, res *Result, ws Workspace, update bool) error {
	if o.state != nil {
		return invariantf("switch to result while a merge is still in flight")
	}
	defer res.Finalize()

	if res.Verdict == Failed || !update {
		return nil
	}
	if res.state == nil {
		return invariantf("switch to result after finalize")
	}
	log := o.logger()

	if err := ws.Checkout(head, res.Tree); err != nil {
		log.Debug("merge checkout failed", "err", err)
		res.fail(fmt.Errorf("checkout %s: %w", res.Tree.Short(), err))
		return nil
	}
	if err := recordUnmerged(ws.Index(), res.state.paths); err != nil {
		if errors.Is(err, ErrInvariant) {
			return err
		}
		res.fail(fmt.Errorf("record unmerged entries: %w", err))
		return nil
	}
	if err := ws.FlushIndex(); err != nil {
		log.Debug("merge index flush failed", "err", err)
		res.fail(fmt.Errorf("write index: %w", err))
		return nil
	}
	return nil
}

// recordUnmerged replaces the stage-0 entry of every unmerged path with one
// entry per stage present. New entries are appended and the index is sorted
// once at the end.
func recordUnmerged(ix *index.Index, paths *PathTable) error {
	unmerged := paths.Unmerged()
	if len(unmerged) == 0 {
		return nil
	}

	original := ix.Len()
	for _, path := range unmerged {
		info, ok := paths.Lookup(path)
		if !ok || info.Conflict == nil {
			return invariantf("unmerged path %q has no conflict record", path)
		}
		ci := info.Conflict

		if pos := ix.Pos(path, original); pos >= 0 {
			ix.MarkRemove(pos)
		} else if ci.FileMask == maskOf(Base) {
			// Deleted on both sides: nothing to replace, but any cached
			// summary covering the path is stale.
			ix.InvalidatePath(path)
		} else {
			return invariantf("conflicted path %q missing from index", path)
		}

		for s := Base; s <= Side2; s++ {
			if !ci.FileMask.Has(s) {
				continue
			}
			ix.Append(&index.Entry{
				Path:  path,
				Stage: int(s) + 1,
				Mode:  ci.Stages[s].Mode,
				Hash:  ci.Stages[s].Hash,
			})
		}
	}
	ix.RemoveMarked()
	ix.Sort()
	return nil
}
