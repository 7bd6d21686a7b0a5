package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/objectkey"
)

const backendName = "s3"

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	Prefix          string // Optional key prefix inside the bucket
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// API is the subset of the S3 client the backend uses
type API interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Backend is an S3-compatible implementation of the simplereview.ContentStore interface
type Backend struct {
	client   API
	uploader *manager.Uploader
	keys     objectkey.Generator
	config   Config
}

var _ simplereview.ContentStore = (*Backend)(nil)

// New creates a new S3-compatible content store
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	backend := NewWithClient(s3.NewFromConfig(awsCfg, s3Options...), config)
	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(ctx); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return backend, nil
}

// NewWithClient creates a backend around an existing client
func NewWithClient(client API, config Config) *Backend {
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	config.Prefix = strings.Trim(config.Prefix, "/")
	return &Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		keys:     objectkey.NewRecommendedGenerator(),
		config:   config,
	}
}

func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.config.Bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) && !hasCode(err, "NoSuchBucket", "BadRequest") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(b.config.Bucket)}
	if b.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		if hasCode(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
			return nil
		}
		return err
	}
	return nil
}

// objectKey maps a store-relative path to the bucket key
func (b *Backend) objectKey(path string) string {
	if b.config.Prefix == "" {
		return path
	}
	return b.config.Prefix + "/" + path
}

// Save uploads data under its content-derived key unless an object with
// that key already exists.
func (b *Backend) Save(ctx context.Context, data []byte, nameHint, mimeType string) (*simplereview.ContentRef, error) {
	sum := objectkey.Sum(data)
	path := b.keys.GenerateKey(sum, &objectkey.KeyMetadata{FileName: nameHint, ContentType: mimeType})
	ref := &simplereview.ContentRef{Path: path, MimeType: mimeType, Size: int64(len(data)), SHA256: sum}
	key := b.objectKey(path)

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return ref, nil
	}
	if !isNotFound(err) {
		return nil, &simplereview.StorageError{Backend: backendName, Key: path, Op: "save", Err: err}
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
		Metadata:    map[string]string{"sha256": sum},
	}
	if b.config.EnableSSE {
		switch b.config.SSEAlgorithm {
		case "AES256":
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		case "aws:kms":
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			if b.config.SSEKMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
			}
		}
	}
	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return nil, &simplereview.StorageError{Backend: backendName, Key: path, Op: "save", Err: err}
	}
	return ref, nil
}

// Open downloads the object behind path
func (b *Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := objectkey.Validate(path); err != nil {
		return nil, simplereview.ErrObjectNotFound
	}
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.objectKey(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, simplereview.ErrObjectNotFound
		}
		return nil, &simplereview.StorageError{Backend: backendName, Key: path, Op: "open", Err: err}
	}
	return result.Body, nil
}

// Stat retrieves metadata for the object behind path
func (b *Backend) Stat(ctx context.Context, path string) (*simplereview.ObjectMeta, error) {
	if err := objectkey.Validate(path); err != nil {
		return nil, simplereview.ErrObjectNotFound
	}
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.objectKey(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, simplereview.ErrObjectNotFound
		}
		return nil, &simplereview.StorageError{Backend: backendName, Key: path, Op: "stat", Err: err}
	}

	meta := &simplereview.ObjectMeta{
		Key:         path,
		Size:        aws.ToInt64(result.ContentLength),
		ContentType: "application/octet-stream",
		UpdatedAt:   aws.ToTime(result.LastModified),
	}
	if result.ContentType != nil {
		meta.ContentType = *result.ContentType
	}
	return meta, nil
}

// Delete removes the object behind path
func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := objectkey.Validate(path); err != nil {
		return simplereview.ErrObjectNotFound
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.objectKey(path)),
	})
	if err != nil {
		return &simplereview.StorageError{Backend: backendName, Key: path, Op: "delete", Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	// MinIO and other S3-compatible services don't always map to typed errors.
	return hasCode(err, "NotFound", "NoSuchKey")
}

func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
