package main

import (
	"fmt"

	"github.com/odvcencio/treemerge/pkg/object"
	"github.com/odvcencio/treemerge/pkg/repo"
)

// resolveTree turns a command-line tree argument into a tree id. "HEAD"
// names the checked-out tree, which is the empty tree before the first
// read-tree.
func resolveTree(r *repo.Repo, arg string) (object.Hash, error) {
	if arg == "HEAD" {
		h, err := r.Head()
		if err != nil {
			return "", err
		}
		if h.IsNull() {
			return object.EmptyTreeHash, nil
		}
		return h, nil
	}
	h := object.Hash(arg)
	if !object.ValidHash(h) {
		return "", fmt.Errorf("not a valid tree id: %q", arg)
	}
	return h, nil
}
