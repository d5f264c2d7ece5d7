// Package vfs defines the underlying-filesystem contract the hook layer
// consumes, plus two implementations: Mem, an in-memory tree for unit
// tests, and OSFile, a real directory-rooted filesystem backed by os.File.
package vfs

import "errors"

// ErrNotExist is returned by operations that require a path to exist when
// it does not.
var ErrNotExist = errors.New("vfs: path does not exist")

// ErrExist is returned by create_dir when the target already exists.
var ErrExist = errors.New("vfs: path already exists")

// FS is the trait-like contract the hook layer relies on: existence,
// whole-file read/write, create/remove of files and directories, and
// rename. The hook layer only inspects success/failure and byte content,
// never VFS internals, so a single whole-file Read/Write is enough even
// though a production VFS would offer open-by-path and offset I/O.
type FS interface {
	// Exists reports whether path names a file or directory.
	Exists(path string) (bool, error)
	// ReadFile returns the complete contents of the file at path.
	ReadFile(path string) ([]byte, error)
	// WriteFile replaces the complete contents of the file at path,
	// creating it if absent. OSFile also creates any missing parent
	// directory; Mem records only the file itself.
	WriteFile(path string, data []byte) error
	// RemoveFile deletes the file at path.
	RemoveFile(path string) error
	// CreateDir creates a directory at path.
	CreateDir(path string) error
	// RemoveDir removes the (empty) directory at path.
	RemoveDir(path string) error
	// Rename moves oldPath to newPath.
	Rename(oldPath, newPath string) error
}
