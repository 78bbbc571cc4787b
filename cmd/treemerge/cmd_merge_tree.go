package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odvcencio/treemerge/pkg/merge"
	"github.com/odvcencio/treemerge/pkg/object"
	"github.com/odvcencio/treemerge/pkg/repo"
)

func newMergeTreeCmd(a *app) *cobra.Command {
	var (
		write    bool
		nameOnly bool
		labels   [3]string
	)

	cmd := &cobra.Command{
		Use:   "merge-tree <base> <side1> <side2>",
		Short: "Three-way merge two trees against a common base",
		Long: `Merge side1 and side2 against base and print the result tree id,
followed by the conflicted paths and a message for each conflict.

With --write the result is checked out into the working directory, the
conflicted paths are recorded in the index at stages 1-3, HEAD is moved to
the result and the post-merge hook runs.

Exits with status 1 when the merge has conflicts.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			var trees [3]object.Hash
			for i, arg := range args {
				if trees[i], err = resolveTree(r, arg); err != nil {
					return err
				}
			}

			out, err := r.MergeTrees(cmd.Context(), trees[0], trees[1], trees[2], repo.MergeTreesOptions{
				Write:    write,
				Ancestor: labels[0],
				Branch1:  labels[1],
				Branch2:  labels[2],
				Stdin:    cmd.InOrStdin(),
				Stderr:   cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			if out.Verdict == merge.Failed {
				return fmt.Errorf("merge-tree: could not apply merge result: %w", out.ApplyErr)
			}

			printMergeResult(cmd.OutOrStdout(), out, nameOnly)
			if out.HookStatus != 0 {
				a.logger.Warn("post-merge hook failed", "status", out.HookStatus)
			}
			if out.Verdict == merge.Conflicted {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "check the result out and record conflicts in the index")
	cmd.Flags().BoolVar(&nameOnly, "name-only", false, "list conflicted paths without modes and object ids")
	cmd.Flags().StringVar(&labels[0], "base-label", "", "label for the merge base")
	cmd.Flags().StringVar(&labels[1], "side1-label", "", "label for side1")
	cmd.Flags().StringVar(&labels[2], "side2-label", "", "label for side2")
	return cmd
}

func printMergeResult(w io.Writer, out *repo.MergeOutcome, nameOnly bool) {
	fmt.Fprintln(w, out.Tree)
	if len(out.Conflicts) == 0 {
		return
	}
	for _, c := range out.Conflicts {
		if nameOnly {
			fmt.Fprintln(w, c.Path)
			continue
		}
		for i, v := range c.Stages {
			if v.IsNull() {
				continue
			}
			fmt.Fprintf(w, "%06o %s %d\t%s\n", uint32(v.Mode), v.Hash, i+1, c.Path)
		}
	}
	fmt.Fprintln(w)
	conflict := color.New(color.FgRed, color.Bold).SprintFunc()
	for _, c := range out.Conflicts {
		fmt.Fprintf(w, "%s (content): Merge conflict in %s\n", conflict("CONFLICT"), c.Path)
	}
}
