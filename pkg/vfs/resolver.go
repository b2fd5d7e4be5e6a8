package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps user-supplied path fragments onto the sandbox tree. Every
// path it returns is the sandbox root or one of its descendants.
type Resolver struct {
	root string
}

// NewResolver opens an existing sandbox directory. The root is made absolute
// and symlink-evaluated so containment checks compare like with like.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSandboxSetup, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSandboxSetup, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSandboxSetup, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: sandbox root is not a directory: %s", ErrSandboxSetup, real)
	}
	return &Resolver{root: real}, nil
}

func (r *Resolver) Root() string {
	return r.root
}

// Contains reports whether p is the root or lies beneath it.
func (r *Resolver) Contains(p string) bool {
	p = filepath.Clean(p)
	if p == r.root {
		return true
	}
	rel, err := filepath.Rel(r.root, p)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Resolve joins raw onto current. ".." at the root stays at the root; a
// leading slash is anchored at the sandbox root rather than the host root.
// The target must exist.
func (r *Resolver) Resolve(current, raw string) (string, error) {
	current = filepath.Clean(current)
	if !r.Contains(current) {
		return "", &PathError{Op: "resolve", Path: current, Err: ErrEscape}
	}
	if raw == ".." {
		if current == r.root {
			return r.root, nil
		}
		return filepath.Dir(current), nil
	}

	base := current
	if strings.HasPrefix(raw, "/") || filepath.IsAbs(raw) {
		base = r.root
		raw = strings.TrimLeft(filepath.ToSlash(raw), "/")
	}
	target := filepath.Join(base, raw)
	if !r.Contains(target) {
		return "", &PathError{Op: "resolve", Path: raw, Err: ErrEscape}
	}

	real, err := filepath.EvalSymlinks(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &PathError{Op: "resolve", Path: raw, Err: ErrNotFound}
		}
		return "", &PathError{Op: "resolve", Path: raw, Err: err}
	}
	if !r.Contains(real) {
		return "", &PathError{Op: "resolve", Path: raw, Err: ErrEscape}
	}
	return target, nil
}

// ResolveDir resolves raw and requires the result to be a directory.
func (r *Resolver) ResolveDir(current, raw string) (string, error) {
	target, err := r.Resolve(current, raw)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", &PathError{Op: "stat", Path: raw, Err: err}
	}
	if !info.IsDir() {
		return "", &PathError{Op: "resolve", Path: raw, Err: ErrNotDirectory}
	}
	return target, nil
}

// ResolveFile resolves raw and requires the result to be something other
// than a directory.
func (r *Resolver) ResolveFile(current, raw string) (string, error) {
	target, err := r.Resolve(current, raw)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", &PathError{Op: "stat", Path: raw, Err: err}
	}
	if info.IsDir() {
		return "", &PathError{Op: "open", Path: raw, Err: ErrIsDirectory}
	}
	return target, nil
}

// Display renders p as a sandbox-relative path such as "/a/b".
func (r *Resolver) Display(p string) string {
	rel, err := filepath.Rel(r.root, filepath.Clean(p))
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}
