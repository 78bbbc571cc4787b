package repo

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/treemerge/pkg/config"
	"github.com/odvcencio/treemerge/pkg/hook"
	"github.com/odvcencio/treemerge/pkg/object"
	"github.com/odvcencio/treemerge/pkg/worktree"
)

// Repo represents an opened treemerge repository.
type Repo struct {
	RootDir string           // working directory root
	MetaDir string           // .treemerge/ directory
	Config  *config.Config   // decoded .treemerge/config.toml
	Store   object.Database  // content-addressed object store
	Trees   object.TreeStore // tree view of Store, cached when configured
	Logger  *slog.Logger

	closer io.Closer
}

func openAt(root, metaDir string) (*Repo, error) {
	cfg, err := config.Load(filepath.Join(metaDir, config.FileName))
	if err != nil {
		return nil, err
	}

	r := &Repo{RootDir: root, MetaDir: metaDir, Config: cfg, Logger: slog.Default()}
	switch cfg.Core.Objects {
	case "sqlite":
		s, err := object.OpenSQLStore(filepath.Join(metaDir, "objects.db"))
		if err != nil {
			return nil, err
		}
		r.Store, r.closer = s, s
	default:
		r.Store = object.NewStore(metaDir)
	}

	r.Trees = object.Trees{DB: r.Store}
	if cfg.Core.TreeCache > 0 {
		cached, err := object.NewCachedTrees(r.Trees, cfg.Core.TreeCache)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Trees = cached
	}
	return r, nil
}

// Close releases the object store.
func (r *Repo) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Repo) headPath() string  { return filepath.Join(r.MetaDir, "HEAD") }
func (r *Repo) IndexPath() string { return filepath.Join(r.MetaDir, "index") }
func (r *Repo) HookDir() string   { return filepath.Join(r.MetaDir, "hooks") }

// Head returns the tree id recorded in HEAD, or the null hash when nothing
// has been checked out yet.
func (r *Repo) Head() (object.Hash, error) {
	data, err := os.ReadFile(r.headPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	h := object.Hash(strings.TrimSpace(string(data)))
	if !h.IsNull() && !object.ValidHash(h) {
		return "", fmt.Errorf("read HEAD: malformed tree id %q", h)
	}
	return h, nil
}

// SetHead records h as the checked-out tree.
func (r *Repo) SetHead(h object.Hash) error {
	content := ""
	if !h.IsNull() {
		content = string(h) + "\n"
	}
	if err := os.WriteFile(r.headPath(), []byte(content), 0o644); err != nil {
		return fmt.Errorf("update HEAD: %w", err)
	}
	return nil
}

// Worktree opens the working copy with its index.
func (r *Repo) Worktree() (*worktree.Worktree, error) {
	wt, err := worktree.Open(r.RootDir, r.Store, r.IndexPath())
	if err != nil {
		return nil, err
	}
	wt.Trees = r.Trees
	wt.Logger = r.Logger
	return wt, nil
}

// Hooks returns a runner for the configured hooks. Prompts read from stdin;
// hook output goes to stderr.
func (r *Repo) Hooks(stdin io.Reader, stderr io.Writer) *hook.Runner {
	return &hook.Runner{
		Config:  r.Config.Hooks,
		HookDir: r.HookDir(),
		Dir:     r.RootDir,
		Stdin:   stdin,
		Stderr:  stderr,
		Logger:  r.Logger,
	}
}

// HookPolicy is the configured policy for legacy hooks.
func (r *Repo) HookPolicy() hook.Policy {
	return hook.ParsePolicy(r.Config.Hooks.RunHookDir)
}
