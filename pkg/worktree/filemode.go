package worktree

import (
	"os"

	"github.com/odvcencio/treemerge/pkg/object"
)

func modeFromFileInfo(info os.FileInfo) (object.FileMode, bool) {
	switch m := info.Mode(); {
	case m&os.ModeSymlink != 0:
		return object.ModeSymlink, true
	case m.IsRegular() && m&0o111 != 0:
		return object.ModeExec, true
	case m.IsRegular():
		return object.ModeFile, true
	}
	return 0, false
}

func filePermFromMode(mode object.FileMode) os.FileMode {
	if mode == object.ModeExec {
		return 0o755
	}
	return 0o644
}
