package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWriteTreeCmd(a *app) *cobra.Command {
	var excludes []string

	cmd := &cobra.Command{
		Use:   "write-tree",
		Short: "Store the working directory as a tree and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			wt, err := r.Worktree()
			if err != nil {
				return err
			}
			h, err := wt.Snapshot(excludes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&excludes, "exclude", nil, "skip paths matching `glob` (repeatable)")
	return cmd
}
