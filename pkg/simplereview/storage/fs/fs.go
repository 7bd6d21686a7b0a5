package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/objectkey"
)

const backendName = "fs"

// Backend is a filesystem implementation of the simplereview.ContentStore
// interface. Every key is resolved and checked against the root before use.
type Backend struct {
	baseDir string
	keys    objectkey.Generator
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string              // Base directory for storing files
	Generator objectkey.Generator // Optional key strategy (default: git-like sharding)
}

var _ simplereview.ContentStore = (*Backend)(nil)

// New creates a new filesystem content store
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	abs, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	// The root itself may be a symlink; confinement is checked against its target.
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	keys := config.Generator
	if keys == nil {
		keys = objectkey.NewRecommendedGenerator()
	}
	return &Backend{baseDir: root, keys: keys}, nil
}

// Resolve maps a store-relative key to its location on disk. The key must
// be canonical, and the location, after following symlinks, must lie inside
// the root. Anything else, including a missing file, is ErrObjectNotFound.
func (b *Backend) Resolve(key string) (string, error) {
	if err := objectkey.Validate(key); err != nil {
		return "", simplereview.ErrObjectNotFound
	}
	full := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if !b.contains(full) {
		return "", simplereview.ErrObjectNotFound
	}
	real, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", simplereview.ErrObjectNotFound
	}
	if !b.contains(real) {
		return "", simplereview.ErrObjectNotFound
	}
	return real, nil
}

func (b *Backend) contains(path string) bool {
	rel, err := filepath.Rel(b.baseDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Save writes data under its content-derived key. Identical bytes land on the
// same key; a second save finds the file and writes nothing.
func (b *Backend) Save(ctx context.Context, data []byte, nameHint, mimeType string) (*simplereview.ContentRef, error) {
	sum := objectkey.Sum(data)
	key := b.keys.GenerateKey(sum, &objectkey.KeyMetadata{FileName: nameHint, ContentType: mimeType})
	ref := &simplereview.ContentRef{Path: key, MimeType: mimeType, Size: int64(len(data)), SHA256: sum}

	if err := objectkey.Validate(key); err != nil {
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "save", Err: err}
	}
	full := filepath.Join(b.baseDir, filepath.FromSlash(key))
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "save", Err: err}
	}
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil || !b.contains(realDir) {
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "save", Err: errors.New("directory escapes storage root")}
	}

	if info, err := os.Lstat(full); err == nil {
		if info.Mode().IsRegular() && info.Size() == int64(len(data)) {
			return ref, nil
		}
		if !info.Mode().IsRegular() {
			return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "save", Err: errors.New("existing entry is not a regular file")}
		}
	}

	// Write to a temp file and rename so concurrent saves of the same bytes
	// never expose a partial file.
	tmp, err := os.CreateTemp(realDir, ".upload-*")
	if err != nil {
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "save", Err: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "save", Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "save", Err: err}
	}
	if err := os.Rename(tmp.Name(), filepath.Join(realDir, filepath.Base(full))); err != nil {
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "save", Err: err}
	}
	return ref, nil
}

// Open opens the file behind key
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := b.Resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, simplereview.ErrObjectNotFound
	} else if err != nil {
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "open", Err: err}
	}
	return file, nil
}

// Stat retrieves metadata for the file behind key
func (b *Backend) Stat(ctx context.Context, key string) (*simplereview.ObjectMeta, error) {
	full, err := b.Resolve(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return nil, simplereview.ErrObjectNotFound
	} else if err != nil {
		return nil, &simplereview.StorageError{Backend: backendName, Key: key, Op: "stat", Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, simplereview.ErrObjectNotFound
	}

	// Detect content type
	contentType := "application/octet-stream"
	if file, err := os.Open(full); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := io.ReadFull(file, buffer); err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			contentType = detectContentType(key, buffer[:n])
		}
	}

	return &simplereview.ObjectMeta{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}, nil
}

// Delete removes the file behind key and prunes empty shard directories
func (b *Backend) Delete(ctx context.Context, key string) error {
	full, err := b.Resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return simplereview.ErrObjectNotFound
		}
		return &simplereview.StorageError{Backend: backendName, Key: key, Op: "delete", Err: err}
	}

	b.cleanupEmptyDirectories(filepath.Dir(full))
	return nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !b.contains(dir) {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

func detectContentType(key string, head []byte) string {
	if strings.HasSuffix(key, ".json") && looksLikeJSON(head) {
		return "application/json"
	}
	return http.DetectContentType(head)
}

func looksLikeJSON(head []byte) bool {
	head = bytes.TrimLeft(head, " \t\r\n")
	return len(head) > 0 && (head[0] == '{' || head[0] == '[')
}
