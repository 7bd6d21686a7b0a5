package objectkey

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidKey is returned by Validate for keys that could address
// something outside a store.
var ErrInvalidKey = errors.New("invalid object key")

// Generator defines the interface for content-addressed key strategies
type Generator interface {
	// GenerateKey creates a storage key from the hex SHA-256 of the content.
	// The same sum and metadata always produce the same key.
	GenerateKey(sum string, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName    string
	ContentType string
}

// Sum returns the hex-encoded SHA-256 of data
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// GitLikeGenerator provides Git-style sharded storage grouped by media class
// Images:    images/ab/cd1234ef...9f.png
// Documents: documents/ab/cd1234ef...9f.json
//
// The file name only contributes an extension, and only when the content
// type has no known one, so renaming a file never changes its key.
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *GitLikeGenerator) GenerateKey(sum string, metadata *KeyMetadata) string {
	shardLength := g.ShardLength
	if shardLength <= 0 || shardLength >= len(sum) {
		shardLength = 2
	}

	shardDir := sum[:shardLength]
	remaining := sum[shardLength:]
	return fmt.Sprintf("%s/%s/%s%s", mediaClass(metadata), shardDir, remaining, extension(metadata))
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(sum string, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(sum string, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(sum string, metadata *KeyMetadata) string {
	return g.GenerateFunc(sum, metadata)
}

// NewRecommendedGenerator returns the recommended generator for new installations
func NewRecommendedGenerator() Generator {
	return NewGitLikeGenerator()
}

// Validate rejects keys that are empty, absolute, contain parent or empty
// segments, backslashes or control characters. A valid key is already in
// canonical form.
func Validate(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, "\\\x00") {
		return ErrInvalidKey
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidKey
		}
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return ErrInvalidKey
		}
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	return nil
}

var knownExtensions = map[string]string{
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/webp":       ".webp",
	"application/json": ".json",
}

func mediaClass(metadata *KeyMetadata) string {
	if metadata == nil {
		return "objects"
	}
	switch {
	case strings.HasPrefix(metadata.ContentType, "image/"):
		return "images"
	case metadata.ContentType == "application/json":
		return "documents"
	default:
		return "objects"
	}
}

func extension(metadata *KeyMetadata) string {
	if metadata == nil {
		return ""
	}
	if ext, ok := knownExtensions[metadata.ContentType]; ok {
		return ext
	}
	ext := strings.ToLower(path.Ext(sanitizeFilename(metadata.FileName)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	// Replace problematic characters for filesystem compatibility
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}
