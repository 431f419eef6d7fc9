package ext2

import (
	"fmt"
	"strings"

	"github.com/ext2go/ext2go/internal/shellutil"
)

// splitPathComponents splits p on "/", discarding empty components produced
// by repeated slashes, per spec.md §4.9. It delegates to shellutil so the
// resolver and the shell's displayed path share one canonicalization
// primitive instead of keeping parallel copies.
func splitPathComponents(p string) []string {
	return shellutil.Components(p)
}

// resolvePath translates a slash-separated path to an inode number,
// starting from inode start. An absolute path (leading "/") restarts at
// the root regardless of start, per the centralized rule spec.md §9 settles
// on. Returns ErrNotFound if any component is missing, ErrNotDirectory if
// an intermediate component is not a directory.
func (v *Volume) resolvePath(start uint32, p string) (uint32, error) {
	cur := start
	if strings.HasPrefix(p, "/") {
		cur = v.RootInode()
		if p == "/" {
			return cur, nil
		}
	}

	for _, comp := range splitPathComponents(p) {
		ino, err := v.readInode(cur)
		if err != nil {
			return 0, err
		}
		if !ino.isDir() {
			return 0, fmt.Errorf("%w: %q", ErrNotDirectory, comp)
		}
		next, err := v.lookupInDir(ino, comp)
		if err != nil {
			return 0, err
		}
		if next == 0 {
			return 0, fmt.Errorf("%w: %q", ErrNotFound, comp)
		}
		cur = next
	}
	return cur, nil
}

// splitParentBase splits a path into its parent directory path and final
// component, using standard directory/basename semantics (spec.md §4.10).
// It delegates to shellutil for the same reason splitPathComponents does.
func splitParentBase(p string) (parent string, base string) {
	return shellutil.SplitParentBase(p)
}
