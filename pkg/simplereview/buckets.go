package simplereview

import (
	"fmt"

	"github.com/google/uuid"
)

// Cache buckets are hierarchical key prefixes terminated by "/", so that
// invalidating a bucket never matches a sibling whose name merely starts
// with the same letters.
const (
	bucketAllScripts  = "scripts/all/"
	bucketScript      = "script/"
	bucketLeaderboard = "leaderboard/"
	bucketStateCounts = "stats/states/"
	bucketSiteConfig  = "config/site/"
)

// StateBucket is the list bucket for one lifecycle state.
func StateBucket(state State) string {
	return "scripts/" + string(state) + "/"
}

// AllBucket is the list bucket spanning every state.
func AllBucket() string {
	return bucketAllScripts
}

// ScriptBucket holds every derived view of a single script.
func ScriptBucket(id uuid.UUID) string {
	return bucketScript + id.String() + "/"
}

// LeaderboardBucket holds the rankings of one ledger.
func LeaderboardBucket(kind LeaderboardKind) string {
	return bucketLeaderboard + string(kind) + "/"
}

// StateCountsBucket holds the per-state counters shown on the moderation dashboard.
func StateCountsBucket() string {
	return bucketStateCounts
}

// SiteConfigBucket holds site configuration views.
func SiteConfigBucket() string {
	return bucketSiteConfig
}

func listKey(state State, limit, offset int) string {
	bucket := AllBucket()
	if state != "" {
		bucket = StateBucket(state)
	}
	return fmt.Sprintf("%slimit=%d&offset=%d", bucket, limit, offset)
}

func detailKey(id uuid.UUID) string   { return ScriptBucket(id) + "detail" }
func versionsKey(id uuid.UUID) string { return ScriptBucket(id) + "versions" }
func reviewsKey(id uuid.UUID) string  { return ScriptBucket(id) + "reviews" }

func leaderboardKey(kind LeaderboardKind, limit int) string {
	return fmt.Sprintf("%slimit=%d", LeaderboardBucket(kind), limit)
}

// transitionBuckets returns the list buckets touched by moving a script
// between the given states, plus the all bucket, the per-script bucket and
// the dashboard counters.
func transitionBuckets(id uuid.UUID, states ...State) []string {
	buckets := make([]string, 0, len(states)+4)
	for _, st := range states {
		buckets = append(buckets, StateBucket(st))
	}
	buckets = append(buckets, AllBucket(), StateCountsBucket())
	if id != uuid.Nil {
		buckets = append(buckets, ScriptBucket(id))
	}
	return buckets
}

// fullBuckets is the bucket set for transitions that may remove a script
// from any list it was in. Leaderboards rank published scripts only, so
// they are included as well.
func fullBuckets(id uuid.UUID) []string {
	buckets := transitionBuckets(id, AllStates...)
	return append(buckets, bucketLeaderboard)
}
