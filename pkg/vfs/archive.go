package vfs

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compression wrapped around a tar archive.
type Codec string

const (
	CodecNone Codec = "none"
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// DetectCodec picks a codec from the archive file name.
func DetectCodec(name string) Codec {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return CodecGzip
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return CodecZstd
	case strings.HasSuffix(lower, ".tar.lz4"):
		return CodecLZ4
	default:
		return CodecNone
	}
}

// Extract replaces dest with the contents of the tar archive at archivePath
// and returns the absolute sandbox root. Every failure wraps ErrSandboxSetup.
func Extract(archivePath, dest string) (string, error) {
	if archivePath == "" {
		return "", fmt.Errorf("%w: archive path is empty", ErrSandboxSetup)
	}
	if dest == "" {
		return "", fmt.Errorf("%w: sandbox directory is empty", ErrSandboxSetup)
	}

	absDest, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSandboxSetup, err)
	}
	if err := os.RemoveAll(absDest); err != nil {
		return "", fmt.Errorf("%w: remove old sandbox: %v", ErrSandboxSetup, err)
	}
	if err := os.MkdirAll(absDest, 0o755); err != nil {
		return "", fmt.Errorf("%w: create sandbox: %v", ErrSandboxSetup, err)
	}

	rc, err := openArchive(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: open archive: %v", ErrSandboxSetup, err)
	}
	defer rc.Close()

	if err := untar(rc, absDest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSandboxSetup, err)
	}

	root, err := filepath.EvalSymlinks(absDest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSandboxSetup, err)
	}
	return root, nil
}

type archiveReader struct {
	io.Reader
	closers []func() error
}

func (a *archiveReader) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openArchive(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	ar := &archiveReader{Reader: f, closers: []func() error{f.Close}}

	switch DetectCodec(path) {
	case CodecGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("gzip: %w", err)
		}
		ar.Reader = gz
		ar.closers = append(ar.closers, gz.Close)
	case CodecZstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("zstd: %w", err)
		}
		ar.Reader = dec
		ar.closers = append(ar.closers, func() error {
			dec.Close()
			return nil
		})
	case CodecLZ4:
		ar.Reader = lz4.NewReader(f)
	}
	return ar, nil
}

func untar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		target, err := entryPath(dest, hdr.Name)
		if err != nil {
			return err
		}
		if target == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			// links and device nodes never enter the sandbox
		}
	}
}

// entryPath maps an archive member name into dest, rejecting names that
// would land outside it.
func entryPath(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return "", nil
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("unsafe archive entry: %s", name)
	}
	target := filepath.Join(dest, clean)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe archive entry: %s", name)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	mode := 0o644 | (perm & 0o111)
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return f.Close()
}

// Manager owns one materialized sandbox directory.
type Manager struct {
	archive string
	dir     string

	mu   sync.Mutex
	root string
}

func NewManager(archive, dir string) *Manager {
	return &Manager{archive: archive, dir: dir}
}

// Ensure extracts the archive on first use and returns the cached root
// afterwards.
func (m *Manager) Ensure() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root != "" {
		return m.root, nil
	}
	root, err := Extract(m.archive, m.dir)
	if err != nil {
		return "", err
	}
	m.root = root
	return root, nil
}

// Remove deletes the materialized tree.
func (m *Manager) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root == "" {
		return nil
	}
	root := m.root
	m.root = ""
	return os.RemoveAll(root)
}
