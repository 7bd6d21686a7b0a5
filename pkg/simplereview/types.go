package simplereview

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a script.
type State string

// Script state constants (typed).
const (
	StatePending   State = "pending"
	StatePublished State = "published"
	StateRejected  State = "rejected"
	StateAbandoned State = "abandoned"
)

// AllStates lists every lifecycle state in display order.
var AllStates = []State{StatePending, StatePublished, StateRejected, StateAbandoned}

// IsValid reports whether s is a known lifecycle state.
func (s State) IsValid() bool {
	switch s {
	case StatePending, StatePublished, StateRejected, StateAbandoned:
		return true
	}
	return false
}

// Role is the resolved privilege level of an actor.
type Role string

// Role constants, ordered from least to most privileged.
const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

func (r Role) rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperuser:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank()
}

// Actor is the fully resolved identity performing an operation.
// A nil *Actor is treated as anonymous.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// IsAuthenticated reports whether the actor carries a user identity.
func (a *Actor) IsAuthenticated() bool {
	return a != nil && a.UserID != uuid.Nil && a.Role.AtLeast(RoleUser)
}

// Decision is the outcome recorded on a review.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Script is a user-submitted artifact subject to review.
//
// PublishedAt is set if and only if State is StatePublished.
type Script struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	AuthorName      string     `json:"author_name,omitempty"`
	State           State      `json:"state"`
	OwnerID         *uuid.UUID `json:"owner_id,omitempty"`
	SystemOwned     bool       `json:"system_owned"`
	OriginalOwnerID *uuid.UUID `json:"original_owner_id,omitempty"`
	TransferredAt   *time.Time `json:"transferred_at,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Clone returns a copy that shares no pointers with s.
func (s *Script) Clone() *Script {
	c := *s
	c.OwnerID = clonePtr(s.OwnerID)
	c.OriginalOwnerID = clonePtr(s.OriginalOwnerID)
	c.TransferredAt = clonePtr(s.TransferredAt)
	c.PublishedAt = clonePtr(s.PublishedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// OwnedBy reports whether userID is the current (non-system) owner.
func (s *Script) OwnedBy(userID uuid.UUID) bool {
	return !s.SystemOwned && s.OwnerID != nil && *s.OwnerID == userID
}

// Version is an immutable snapshot of a script document. Identical bytes
// share a ContentHash but are still distinct versions.
type Version struct {
	ID          uuid.UUID `json:"id"`
	ScriptID    uuid.UUID `json:"script_id"`
	Number      int       `json:"version"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	Path        string    `json:"path,omitempty"`
	SchemaValid bool      `json:"schema_valid"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImageAsset is an uploaded image owned by exactly one script.
type ImageAsset struct {
	ID        uuid.UUID `json:"id"`
	ScriptID  uuid.UUID `json:"script_id"`
	Path      string    `json:"path"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	SortOrder int       `json:"sort_order"`
	IsCover   bool      `json:"is_cover"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Review is an append-only decision record.
type Review struct {
	ID         uuid.UUID `json:"id"`
	ScriptID   uuid.UUID `json:"script_id"`
	ReviewerID uuid.UUID `json:"reviewer_id"`
	Decision   Decision  `json:"decision"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DownloadEvent is one row of the append-only download ledger.
type DownloadEvent struct {
	ID        uuid.UUID  `json:"id"`
	ScriptID  uuid.UUID  `json:"script_id"`
	VersionID uuid.UUID  `json:"version_id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	IP        string     `json:"ip,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToggleResult is returned by like/favorite toggles. Count is recomputed
// from the ledger on every call.
type ToggleResult struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// EngagementStats aggregates engagement facts for one script.
type EngagementStats struct {
	Likes             int64 `json:"likes"`
	Favorites         int64 `json:"favorites"`
	Downloads         int64 `json:"downloads"`
	LikedByCaller     bool  `json:"liked_by_caller"`
	FavoritedByCaller bool  `json:"favorited_by_caller"`
}

// ScriptDetail is the derived per-script composite served from the cache.
type ScriptDetail struct {
	Script        *Script         `json:"script"`
	LatestVersion *Version        `json:"latest_version,omitempty"`
	Images        []*ImageAsset   `json:"images"`
	Stats         EngagementStats `json:"stats"`
}

// LeaderboardKind names an engagement ledger used for ranking.
type LeaderboardKind string

const (
	LeaderboardLikes     LeaderboardKind = "likes"
	LeaderboardFavorites LeaderboardKind = "favorites"
	LeaderboardDownloads LeaderboardKind = "downloads"
)

// IsValid reports whether k is a known leaderboard.
func (k LeaderboardKind) IsValid() bool {
	switch k {
	case LeaderboardLikes, LeaderboardFavorites, LeaderboardDownloads:
		return true
	}
	return false
}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
	ScriptID uuid.UUID `json:"script_id"`
	Title    string    `json:"title"`
	Count    int64     `json:"count"`
}

// ContentRef describes bytes persisted in a ContentStore. Path is
// store-relative and identical for identical bytes with the same hint.
type ContentRef struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
}

// ObjectMeta contains metadata about an object in a content store.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// ScriptFilter narrows ListScripts queries at the repository level.
type ScriptFilter struct {
	State   *State
	OwnerID *uuid.UUID
	Limit   int
	Offset  int
}

// CacheStats is the observability surface of the derived-data cache.
type CacheStats struct {
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	EntryCount int     `json:"entry_count"`
}
