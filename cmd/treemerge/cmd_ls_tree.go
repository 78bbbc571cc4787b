package main

import (
	"fmt"
	"io"
	"path"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/odvcencio/treemerge/pkg/object"
	"github.com/odvcencio/treemerge/pkg/repo"
)

type lsTreeOptions struct {
	recursive bool
	long      bool
	match     string
}

func newLsTreeCmd(a *app) *cobra.Command {
	var opts lsTreeOptions

	cmd := &cobra.Command{
		Use:   "ls-tree <tree>",
		Short: "List the entries of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.match != "" && !doublestar.ValidatePattern(opts.match) {
				return fmt.Errorf("invalid --match pattern %q", opts.match)
			}
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := resolveTree(r, args[0])
			if err != nil {
				return err
			}
			return listTree(cmd.OutOrStdout(), r, h, "", opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "recurse into subtrees")
	cmd.Flags().BoolVarP(&opts.long, "long", "l", false, "show blob sizes")
	cmd.Flags().StringVar(&opts.match, "match", "", "only list paths matching `glob`")
	return cmd
}

func listTree(w io.Writer, r *repo.Repo, h object.Hash, prefix string, opts lsTreeOptions) error {
	tree, err := r.Trees.ReadTree(h)
	if err != nil {
		return fmt.Errorf("ls-tree: read tree %s: %w", h.Short(), err)
	}
	for _, e := range tree.Entries {
		p := e.Name
		if prefix != "" {
			p = path.Join(prefix, e.Name)
		}
		if e.IsDir() && opts.recursive {
			if err := listTree(w, r, e.Hash, p, opts); err != nil {
				return err
			}
			continue
		}
		if opts.match != "" {
			if ok, _ := doublestar.Match(opts.match, p); !ok {
				continue
			}
		}

		kind := object.TypeBlob
		switch e.Mode.Type() {
		case object.ModeDir:
			kind = object.TypeTree
		case object.ModeGitlink:
			kind = "commit"
		}
		if !opts.long {
			fmt.Fprintf(w, "%06o %s %s\t%s\n", uint32(e.Mode), kind, e.Hash, p)
			continue
		}
		size := "-"
		if kind == object.TypeBlob {
			b, err := object.ReadBlob(r.Store, e.Hash)
			if err != nil {
				return fmt.Errorf("ls-tree: read blob %s: %w", p, err)
			}
			size = humanize.Bytes(uint64(len(b.Data)))
		}
		fmt.Fprintf(w, "%06o %s %s %8s\t%s\n", uint32(e.Mode), kind, e.Hash, size, p)
	}
	return nil
}
