package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/objectkey"
)

type object struct {
	data      []byte
	mimeType  string
	updatedAt time.Time
}

// Backend is an in-memory implementation of the simplereview.ContentStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	keys    objectkey.Generator
	writes  int
}

var _ simplereview.ContentStore = (*Backend)(nil)

// New creates a new in-memory content store
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
		keys:    objectkey.NewRecommendedGenerator(),
	}
}

// Save stores a copy of data under its content-derived key
func (b *Backend) Save(ctx context.Context, data []byte, nameHint, mimeType string) (*simplereview.ContentRef, error) {
	sum := objectkey.Sum(data)
	key := b.keys.GenerateKey(sum, &objectkey.KeyMetadata{FileName: nameHint, ContentType: mimeType})

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.objects[key]; !exists {
		b.objects[key] = object{data: bytes.Clone(data), mimeType: mimeType, updatedAt: time.Now()}
		b.writes++
	}
	return &simplereview.ContentRef{Path: key, MimeType: mimeType, Size: int64(len(data)), SHA256: sum}, nil
}

func (b *Backend) get(key string) (object, error) {
	if err := objectkey.Validate(key); err != nil {
		return object{}, simplereview.ErrObjectNotFound
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, exists := b.objects[key]
	if !exists {
		return object{}, simplereview.ErrObjectNotFound
	}
	return obj, nil
}

// Open returns a reader over the stored bytes
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.get(key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Stat retrieves metadata for a stored object
func (b *Backend) Stat(ctx context.Context, key string) (*simplereview.ObjectMeta, error) {
	obj, err := b.get(key)
	if err != nil {
		return nil, err
	}
	return &simplereview.ObjectMeta{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.mimeType,
		UpdatedAt:   obj.updatedAt,
	}, nil
}

// Delete removes a stored object
func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.get(key); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// Len returns the number of distinct objects held
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Writes returns how many saves actually stored new bytes
func (b *Backend) Writes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.writes
}
