package merge

import (
	"errors"
	"fmt"

	"github.com/odvcencio/treemerge/pkg/object"
)

var (
	// ErrUnimplemented marks inputs the engine recognizes but cannot merge yet.
	ErrUnimplemented = errors.New("not yet implemented")
	// ErrInvariant marks an internal consistency failure. It always indicates
	// a bug in the engine or misuse of Options.
	ErrInvariant = errors.New("merge invariant violated")
)

// UnimplementedKind names the case an UnimplementedError refused.
type UnimplementedKind int

const (
	DirectoryFileConflict UnimplementedKind = iota // file on one side, directory on another
	TypeMismatch                                   // both sides changed, to different object types
	ModifyDelete                                   // one side modified, the other deleted
	RecursiveMerge                                 // more than one merge base
)

func (k UnimplementedKind) String() string {
	switch k {
	case DirectoryFileConflict:
		return "directory/file conflict"
	case TypeMismatch:
		return "type mismatch"
	case ModifyDelete:
		return "modify/delete"
	case RecursiveMerge:
		return "recursive merge"
	}
	return fmt.Sprintf("UnimplementedKind(%d)", int(k))
}

// UnimplementedError aborts a merge that reached a case with no resolution
// strategy. No Result is produced.
type UnimplementedError struct {
	Kind UnimplementedKind
	Path string
}

func (e *UnimplementedError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("merge: %s: %s", e.Kind, ErrUnimplemented)
	}
	return fmt.Sprintf("merge %s: %s: %s", e.Path, e.Kind, ErrUnimplemented)
}

func (e *UnimplementedError) Is(target error) bool {
	return target == ErrUnimplemented
}

// InvariantError reports a broken internal invariant.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "merge: BUG: " + e.Msg
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

func invariantf(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}

// TreeReadError reports a tree that could not be read or decoded during
// collection. The merge result is marked Failed.
type TreeReadError struct {
	Hash object.Hash
	Path string
	Err  error
}

func (e *TreeReadError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("read tree %s at %s: %v", e.Hash.Short(), path, e.Err)
}

func (e *TreeReadError) Unwrap() error {
	return e.Err
}
