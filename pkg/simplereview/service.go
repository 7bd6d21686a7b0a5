package simplereview

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-review engine
type Service interface {
	// Lifecycle operations
	CreateScript(ctx context.Context, actor *Actor, req CreateScriptRequest) (*Script, error)
	AddVersion(ctx context.Context, actor *Actor, scriptID uuid.UUID, content []byte) (*Version, error)
	SubmitForReview(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*Script, error)
	Approve(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*Script, error)
	Reject(ctx context.Context, actor *Actor, scriptID uuid.UUID, reason string) (*Script, error)
	Resubmit(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*Script, error)
	SoftDelete(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*Script, error)
	Restore(ctx context.Context, actor *Actor, scriptID uuid.UUID, req RestoreRequest) (*Script, error)
	HardDelete(ctx context.Context, actor *Actor, scriptID uuid.UUID) error
	ApproveAll(ctx context.Context, actor *Actor) ([]*Script, error)

	// Read views, served through the cache. Callers get their own copies.
	GetScript(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*ScriptDetail, error)
	ListScripts(ctx context.Context, actor *Actor, req ListScriptsRequest) ([]*Script, error)
	ListVersions(ctx context.Context, actor *Actor, scriptID uuid.UUID) ([]*Version, error)
	ListReviews(ctx context.Context, actor *Actor, scriptID uuid.UUID) ([]*Review, error)
	Leaderboard(ctx context.Context, kind LeaderboardKind, limit int) ([]*LeaderboardEntry, error)
	StateCounts(ctx context.Context, actor *Actor) (map[State]int64, error)

	// Engagement operations
	ToggleLike(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*ToggleResult, error)
	ToggleFavorite(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*ToggleResult, error)
	SetLike(ctx context.Context, actor *Actor, scriptID uuid.UUID, active bool) (*ToggleResult, error)
	SetFavorite(ctx context.Context, actor *Actor, scriptID uuid.UUID, active bool) (*ToggleResult, error)
	RecordDownload(ctx context.Context, event *DownloadEvent) error
	DownloadVersion(ctx context.Context, actor *Actor, req DownloadRequest) (*Version, error)
	BatchStats(ctx context.Context, actor *Actor, scriptIDs []uuid.UUID) (map[uuid.UUID]EngagementStats, error)

	// Upload and media operations
	UploadImage(ctx context.Context, actor *Actor, scriptID uuid.UUID, req ImageUpload) (*ImageAsset, error)
	RemoveImage(ctx context.Context, actor *Actor, imageID uuid.UUID) error
	OpenMedia(ctx context.Context, path string) (io.ReadCloser, *ObjectMeta, error)
	MediaURL(path string) (string, error)

	// Diagnostics
	CacheStats() CacheStats
	ResetCache(ctx context.Context, actor *Actor) error

	// Close drains background work and releases the engine's collaborators.
	Close() error
}

// CreateScriptRequest contains parameters for submitting a new script
type CreateScriptRequest struct {
	Title       string
	Description string
	AuthorName  string
	Content     []byte
}

// RestoreRequest contains parameters for restoring an abandoned script
type RestoreRequest struct {
	State             State
	TransferOwnership bool
}

// ListScriptsRequest contains parameters for listing scripts. An empty State
// lists every state.
type ListScriptsRequest struct {
	State  State
	Limit  int
	Offset int
}

// DownloadRequest identifies the version being downloaded. Version 0 selects
// the latest version.
type DownloadRequest struct {
	ScriptID  uuid.UUID
	Version   int
	IP        string
	UserAgent string
}

// ImageUpload carries an uploaded image
type ImageUpload struct {
	FileName string
	MimeType string
	Data     []byte
}
