package merge

// processEntry resolves a single conflict record in place. Cases the engine
// cannot resolve yet abort the merge with an UnimplementedError.
func (t *PathTable) processEntry(info *PathInfo) error {
	ci := info.Conflict
	if ci.FileMask == 0 {
		// Directory on every side that has the path; its children carry
		// the content and the accumulator writes the tree.
		return nil
	}
	if ci.DFConflict {
		return &UnimplementedError{Kind: DirectoryFileConflict, Path: info.Path}
	}

	both := maskOf(Side1) | maskOf(Side2)
	switch {
	case ci.Match != MatchNone:
		info.Clean = true
		if ci.Match == MatchSides {
			info.Result = ci.Stages[Side1]
			break
		}
		matched := ci.Match.Mask()
		side := Side1
		switch (maskOf(Base) | both) &^ matched {
		case maskOf(Side1):
		case maskOf(Side2):
			side = Side2
		default:
			return invariantf("%s: match %s leaves no single changed side", info.Path, ci.Match)
		}
		// Unchanged on one side: whatever the other side did wins, deletion
		// included.
		info.IsNull = ci.FileMask == matched
		info.Result = ci.Stages[side]
		if info.IsNull != (info.Result.Mode == 0) {
			return invariantf("%s: null result disagrees with mode %s", info.Path, info.Result.Mode)
		}

	case ci.FileMask&both == both && ci.Stages[Side1].Mode.Type() != ci.Stages[Side2].Mode.Type():
		return &UnimplementedError{Kind: TypeMismatch, Path: info.Path}

	case ci.FileMask&both == both:
		// Both sides changed the file differently. Side1 stands in the
		// result; content merging is not attempted.
		info.Clean = false
		info.Result = ci.Stages[Side1]

	case ci.FileMask == maskOf(Base)|maskOf(Side1), ci.FileMask == maskOf(Base)|maskOf(Side2):
		return &UnimplementedError{Kind: ModifyDelete, Path: info.Path}

	case ci.FileMask == maskOf(Side1), ci.FileMask == maskOf(Side2):
		side := Side1
		if ci.FileMask == maskOf(Side2) {
			side = Side2
		}
		info.Result = ci.Stages[side]
		info.Clean = !ci.DFConflict && !ci.PathConflict

	case ci.FileMask == maskOf(Base):
		// Deleted on both sides.
		info.IsNull = true
		info.Result = VersionInfo{}
		info.Clean = !ci.PathConflict

	default:
		return invariantf("%s: unhandled file mask %03b", info.Path, ci.FileMask)
	}

	if !info.Clean {
		t.markUnmerged(info.Path)
	}
	return nil
}
