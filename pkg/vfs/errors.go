package vfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the target does not exist inside the sandbox.
	ErrNotFound = errors.New("path not found")
	// ErrEscape indicates the target resolves outside the sandbox root.
	ErrEscape = errors.New("path escapes sandbox")
	// ErrNotDirectory indicates a directory was required.
	ErrNotDirectory = errors.New("not a directory")
	// ErrIsDirectory indicates a regular file was required.
	ErrIsDirectory = errors.New("is a directory")
	// ErrSandboxSetup wraps every failure to materialize or open a sandbox.
	ErrSandboxSetup = errors.New("sandbox setup failed")
)

// PathError records the operation and user-supplied path that failed.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
