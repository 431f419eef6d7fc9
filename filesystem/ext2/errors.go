package ext2

import "errors"

// Sentinel errors returned by the core. High-level operations wrap these
// with path/name context via fmt.Errorf("...: %w", err); callers compare
// with errors.Is.
var (
	ErrNotFound          = errors.New("no such file or directory")
	ErrNotDirectory      = errors.New("not a directory")
	ErrIsDirectory       = errors.New("is a directory")
	ErrNotRegularFile    = errors.New("not a regular file")
	ErrExists            = errors.New("file exists")
	ErrNameTooLong       = errors.New("name too long")
	ErrNoSpace           = errors.New("no space left on device")
	ErrNoFit             = errors.New("no room for entry")
	ErrInvalidSuperblock = errors.New("invalid superblock")
	ErrCorrupt           = errors.New("corrupt filesystem structure")
	ErrNotEmpty          = errors.New("directory not empty")
	ErrInvalidPath       = errors.New("invalid or protected path")
	ErrReadOnly          = errors.New("filesystem is read-only")
)
