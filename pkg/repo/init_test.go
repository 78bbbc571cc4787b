package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/treemerge/pkg/config"
	"github.com/odvcencio/treemerge/pkg/object"
)

func assertDir(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected directory %s: %v", path, err)
	}
	if !info.IsDir() {
		t.Fatalf("%s is not a directory", path)
	}
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file %s: %v", path, err)
	}
	if info.IsDir() {
		t.Fatalf("%s is a directory, want file", path)
	}
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir, nil)
	if err != nil {
		t.Fatalf("Init(%q): %v", dir, err)
	}
	defer r.Close()
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}

	metaDir := filepath.Join(dir, ".treemerge")
	if r.MetaDir != metaDir {
		t.Errorf("MetaDir = %q, want %q", r.MetaDir, metaDir)
	}
	assertDir(t, metaDir)
	assertFile(t, filepath.Join(metaDir, "HEAD"))
	assertFile(t, filepath.Join(metaDir, config.FileName))
	assertDir(t, filepath.Join(metaDir, "objects"))
	assertDir(t, filepath.Join(metaDir, "hooks"))

	if r.Store == nil || r.Trees == nil {
		t.Fatal("Store or Trees is nil after Init")
	}
	if _, ok := r.Trees.(*object.CachedTrees); !ok {
		t.Errorf("Trees = %T, want *object.CachedTrees with the default tree_cache", r.Trees)
	}

	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if !head.IsNull() {
		t.Errorf("Head of a new repository = %q, want null", head)
	}
}

func TestInit_ExistingRepo_Error(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir, nil)
	if err != nil {
		t.Fatalf("first Init: %v", err)
	}
	r.Close()

	if _, err := Init(dir, nil); err == nil {
		t.Fatal("second Init should fail on existing repo, got nil error")
	}
}

func TestInit_SQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Core.Objects = "sqlite"
	cfg.Core.TreeCache = 0

	r, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	h, err := object.WriteBlob(r.Store, &object.Blob{Data: []byte("stored in sqlite")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if _, ok := r.Store.(*object.SQLStore); !ok {
		t.Fatalf("Store = %T, want *object.SQLStore", r.Store)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err = Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	if !r.Store.Has(h) {
		t.Error("blob missing after reopening the sqlite store")
	}
	assertFile(t, filepath.Join(dir, ".treemerge", "objects.db"))
}

func TestOpen_FromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	r.Close()

	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	r, err = Open(sub)
	if err != nil {
		t.Fatalf("Open(%q): %v", sub, err)
	}
	defer r.Close()
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}
}

func TestOpen_NotARepo(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("Open outside a repository should fail")
	}
}

func TestHead_RoundTrip(t *testing.T) {
	r, err := Init(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	h := object.EmptyTreeHash
	if err := r.SetHead(h); err != nil {
		t.Fatalf("SetHead: %v", err)
	}
	got, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if got != h {
		t.Errorf("Head = %q, want %q", got, h)
	}

	if err := os.WriteFile(filepath.Join(r.MetaDir, "HEAD"), []byte("garbage\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := r.Head(); err == nil {
		t.Error("Head should reject a malformed tree id")
	}
}
