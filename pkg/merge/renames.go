package merge

import (
	"fmt"

	"github.com/odvcencio/treemerge/pkg/object"
)

// RenameDetector may rewrite path table records to pair up renamed paths
// before entries are resolved. It reports whether renames were handled
// cleanly.
type RenameDetector interface {
	DetectRenames(paths *PathTable, base, side1, side2 object.Hash) (clean bool, err error)
}

// IdentityRenames detects no renames and leaves the table untouched.
type IdentityRenames struct{}

func (IdentityRenames) DetectRenames(*PathTable, object.Hash, object.Hash, object.Hash) (bool, error) {
	return true, nil
}

// RenameDetectorByName returns the detector configured by name. The empty
// name selects the identity detector.
func RenameDetectorByName(name string) (RenameDetector, error) {
	switch name {
	case "", "none":
		return IdentityRenames{}, nil
	}
	return nil, fmt.Errorf("rename detector %q: %w", name, ErrUnimplemented)
}
