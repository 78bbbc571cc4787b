package main

import (
	"github.com/spf13/cobra"
)

func newReadTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read-tree <tree>",
		Short: "Check a tree out into the working directory and index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			next, err := resolveTree(r, args[0])
			if err != nil {
				return err
			}
			head, err := r.Head()
			if err != nil {
				return err
			}
			wt, err := r.Worktree()
			if err != nil {
				return err
			}
			if err := wt.Checkout(head, next); err != nil {
				return err
			}
			if err := wt.FlushIndex(); err != nil {
				return err
			}
			a.logger.Debug("read-tree", "from", head.Short(), "to", next.Short())
			return r.SetHead(next)
		},
	}
}
