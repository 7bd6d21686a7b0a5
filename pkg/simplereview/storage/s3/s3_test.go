package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-review/pkg/simplereview"
)

type fakeObject struct {
	data        []byte
	contentType string
}

// fakeS3 keeps objects in memory. Multipart calls are left to the embedded
// nil interface; payloads in these tests are far below the part size.
type fakeS3 struct {
	API

	mu      sync.Mutex
	objects map[string]fakeObject
	puts    int
	headErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, contentType: aws.ToString(in.ContentType)}
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		LastModified:  aws.Time(time.Unix(1700000000, 0)),
	}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name is required")
}

func TestBackend_SaveDeduplicates(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	backend := NewWithClient(client, Config{Bucket: "media", Prefix: "/review/"})
	data := []byte(`{"name":"s","actions":[]}`)

	first, err := backend.Save(ctx, data, "one.json", "application/json")
	require.NoError(t, err)
	second, err := backend.Save(ctx, data, "two.json", "application/json")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.puts)
	_, stored := client.objects["review/"+first.Path]
	assert.True(t, stored, "objects are written under the configured prefix")
}

func TestBackend_OpenAndStat(t *testing.T) {
	ctx := context.Background()
	backend := NewWithClient(newFakeS3(), Config{Bucket: "media"})

	ref, err := backend.Save(ctx, []byte("image bytes"), "a.png", "image/png")
	require.NoError(t, err)

	rc, err := backend.Open(ctx, ref.Path)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(got))

	meta, err := backend.Stat(ctx, ref.Path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", meta.ContentType)
	assert.Equal(t, int64(11), meta.Size)

	require.NoError(t, backend.Delete(ctx, ref.Path))
	_, err = backend.Open(ctx, ref.Path)
	assert.ErrorIs(t, err, simplereview.ErrObjectNotFound)
	_, err = backend.Stat(ctx, ref.Path)
	assert.ErrorIs(t, err, simplereview.ErrObjectNotFound)
}

func TestBackend_RejectsNonCanonicalKeys(t *testing.T) {
	ctx := context.Background()
	backend := NewWithClient(newFakeS3(), Config{Bucket: "media"})

	for _, key := range []string{"../other-bucket/x", "/abs", "images//x", ""} {
		_, err := backend.Open(ctx, key)
		assert.ErrorIs(t, err, simplereview.ErrObjectNotFound, key)
		_, err = backend.Stat(ctx, key)
		assert.ErrorIs(t, err, simplereview.ErrObjectNotFound, key)
		assert.ErrorIs(t, backend.Delete(ctx, key), simplereview.ErrObjectNotFound, key)
	}
}

func TestBackend_SaveSurfacesStorageErrors(t *testing.T) {
	client := newFakeS3()
	client.headErr = errors.New("connection reset")
	backend := NewWithClient(client, Config{Bucket: "media"})

	_, err := backend.Save(context.Background(), []byte("x"), "x", "text/plain")
	var storageErr *simplereview.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "s3", storageErr.Backend)
	assert.Equal(t, simplereview.CodeInternal, simplereview.CodeOf(err))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}
