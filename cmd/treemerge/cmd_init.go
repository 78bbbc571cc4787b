package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/treemerge/pkg/config"
	"github.com/odvcencio/treemerge/pkg/repo"
	"github.com/odvcencio/treemerge/pkg/worktree"
)

func newInitCmd(a *app) *cobra.Command {
	var objects string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty treemerge repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.v.GetString("dir")
			if len(args) > 0 {
				path = args[0]
				if !filepath.IsAbs(path) {
					path = filepath.Join(a.v.GetString("dir"), path)
				}
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			cfg := config.Default()
			cfg.Core.Objects = objects
			r, err := repo.Init(abs, cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty treemerge repository in %s\n",
				filepath.Join(r.RootDir, worktree.MetaDirName)+string(filepath.Separator))
			return nil
		},
	}
	cmd.Flags().StringVar(&objects, "objects", "loose", "object store backend (loose or sqlite)")
	return cmd
}
