package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLsFilesCmd(a *app) *cobra.Command {
	var stage bool

	cmd := &cobra.Command{
		Use:   "ls-files",
		Short: "Show the paths recorded in the index",
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
			out := cmd.OutOrStdout()
			last := ""
			for i, e := range wt.Index().Entries {
				if stage {
					fmt.Fprintf(out, "%06o %s %d\t%s\n", uint32(e.Mode), e.Hash, e.Stage, e.Path)
					continue
				}
				// Conflicted paths have up to three entries; list them once.
				if i > 0 && e.Path == last {
					continue
				}
				last = e.Path
				fmt.Fprintln(out, e.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&stage, "stage", "s", false, "show mode, object id and stage number")
	return cmd
}
