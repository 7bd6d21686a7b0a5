package simplereview_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/presets"
	"github.com/tendant/simple-review/pkg/simplereview/repo/memory"
	memorystorage "github.com/tendant/simple-review/pkg/simplereview/storage/memory"
)

var validDoc = []byte(`{"name":"wake up","actions":[{"type":"tap","x":1,"y":2}]}`)

func user() *simplereview.Actor {
	return &simplereview.Actor{UserID: uuid.New(), Role: simplereview.RoleUser}
}

func admin() *simplereview.Actor {
	return &simplereview.Actor{UserID: uuid.New(), Role: simplereview.RoleAdmin}
}

func superuser() *simplereview.Actor {
	return &simplereview.Actor{UserID: uuid.New(), Role: simplereview.RoleSuperuser}
}

func createScript(t *testing.T, svc simplereview.Service, owner *simplereview.Actor, title string) *simplereview.Script {
	t.Helper()
	script, err := svc.CreateScript(context.Background(), owner, simplereview.CreateScriptRequest{Title: title, Content: validDoc})
	require.NoError(t, err)
	return script
}

// moveTo drives a fresh script into the requested state.
func moveTo(t *testing.T, svc simplereview.Service, owner, reviewer *simplereview.Actor, state simplereview.State) *simplereview.Script {
	t.Helper()
	ctx := context.Background()
	script := createScript(t, svc, owner, "script in "+string(state))
	var err error
	switch state {
	case simplereview.StatePending:
	case simplereview.StatePublished:
		script, err = svc.Approve(ctx, reviewer, script.ID)
	case simplereview.StateRejected:
		script, err = svc.Reject(ctx, reviewer, script.ID, "needs work")
	case simplereview.StateAbandoned:
		script, err = svc.SoftDelete(ctx, owner, script.ID)
	}
	require.NoError(t, err)
	require.Equal(t, state, script.State)
	return script
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[uuid.UUID][]string
}

func (n *recordingNotifier) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = make(map[uuid.UUID][]string)
	}
	n.messages[userID] = append(n.messages[userID], message)
	return nil
}

type recordingPages struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPages) InvalidatePages(ctx context.Context, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, keys...)
	return nil
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []simplereview.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []simplereview.Option{},
			expectError: true,
		},
		{
			name:        "store without content store should fail",
			options:     []simplereview.Option{simplereview.WithStore(memory.New())},
			expectError: true,
		},
		{
			name: "invalid upload policy should fail",
			options: []simplereview.Option{
				simplereview.WithStore(memory.New()),
				simplereview.WithContentStore(memorystorage.New()),
				simplereview.WithUploadPolicy(simplereview.UploadPolicy{}),
			},
			expectError: true,
		},
		{
			name: "with store and content store should succeed",
			options: []simplereview.Option{
				simplereview.WithStore(memory.New()),
				simplereview.WithContentStore(memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simplereview.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, svc)
				assert.NoError(t, svc.Close())
			}
		})
	}
}

func TestTransitionMatrix(t *testing.T) {
	type op func(ctx context.Context, svc simplereview.Service, owner, reviewer *simplereview.Actor, id uuid.UUID) (*simplereview.Script, error)

	ops := map[string]op{
		"approve": func(ctx context.Context, svc simplereview.Service, owner, reviewer *simplereview.Actor, id uuid.UUID) (*simplereview.Script, error) {
			return svc.Approve(ctx, reviewer, id)
		},
		"reject": func(ctx context.Context, svc simplereview.Service, owner, reviewer *simplereview.Actor, id uuid.UUID) (*simplereview.Script, error) {
			return svc.Reject(ctx, reviewer, id, "reason")
		},
		"resubmit": func(ctx context.Context, svc simplereview.Service, owner, reviewer *simplereview.Actor, id uuid.UUID) (*simplereview.Script, error) {
			return svc.Resubmit(ctx, owner, id)
		},
		"soft_delete": func(ctx context.Context, svc simplereview.Service, owner, reviewer *simplereview.Actor, id uuid.UUID) (*simplereview.Script, error) {
			return svc.SoftDelete(ctx, owner, id)
		},
		"restore": func(ctx context.Context, svc simplereview.Service, owner, reviewer *simplereview.Actor, id uuid.UUID) (*simplereview.Script, error) {
			return svc.Restore(ctx, reviewer, id, simplereview.RestoreRequest{State: simplereview.StatePublished})
		},
	}

	// Expected resulting state, or "" when the edge does not exist.
	expected := map[simplereview.State]map[string]simplereview.State{
		simplereview.StatePending: {
			"approve": simplereview.StatePublished, "reject": simplereview.StateRejected,
			"resubmit": "", "soft_delete": simplereview.StateAbandoned, "restore": "",
		},
		simplereview.StatePublished: {
			"approve": "", "reject": "",
			"resubmit": "", "soft_delete": simplereview.StateAbandoned, "restore": "",
		},
		simplereview.StateRejected: {
			"approve": "", "reject": "",
			"resubmit": simplereview.StatePending, "soft_delete": simplereview.StateAbandoned, "restore": "",
		},
		simplereview.StateAbandoned: {
			"approve": "", "reject": "",
			"resubmit": "", "soft_delete": "", "restore": simplereview.StatePublished,
		},
	}

	for from, row := range expected {
		for name, to := range row {
			t.Run(string(from)+"/"+name, func(t *testing.T) {
				ctx := context.Background()
				pages := &recordingPages{}
				engine := presets.NewTesting(t, presets.WithServiceOptions(simplereview.WithPageInvalidator(pages)))
				owner, reviewer := user(), admin()
				script := moveTo(t, engine, owner, reviewer, from)

				reviewsBefore, err := engine.Store.Reviews().ListReviews(ctx, script.ID)
				require.NoError(t, err)
				_, err = engine.GetScript(ctx, reviewer, script.ID)
				require.NoError(t, err)
				pages.mu.Lock()
				pages.keys = nil
				pages.mu.Unlock()

				got, err := ops[name](ctx, engine, owner, reviewer, script.ID)
				if to == "" {
					assert.ErrorIs(t, err, simplereview.ErrInvalidState)
					assert.Equal(t, simplereview.CodeInvalidState, simplereview.CodeOf(err))
					stored, err := engine.Store.Scripts().GetScript(ctx, script.ID)
					require.NoError(t, err)
					assert.Equal(t, from, stored.State)

					reviews, err := engine.Store.Reviews().ListReviews(ctx, script.ID)
					require.NoError(t, err)
					assert.Len(t, reviews, len(reviewsBefore), "no review row for a refused edge")

					pages.mu.Lock()
					assert.Empty(t, pages.keys, "nothing invalidated for a refused edge")
					pages.mu.Unlock()

					hits := engine.CacheStats().Hits
					_, err = engine.GetScript(ctx, reviewer, script.ID)
					require.NoError(t, err)
					assert.Equal(t, hits+1, engine.CacheStats().Hits, "warmed detail survives")
					return
				}
				require.NoError(t, err)
				assert.Equal(t, to, got.State)
				assert.Equal(t, to == simplereview.StatePublished, got.PublishedAt != nil)
			})
		}
	}
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	pages := &recordingPages{}
	engine := presets.NewTesting(t, presets.WithServiceOptions(simplereview.WithNotifier(notifier), simplereview.WithPageInvalidator(pages)))
	owner, reviewer := user(), admin()
	script := createScript(t, engine, owner, "draft")
	_, err := engine.GetScript(ctx, owner, script.ID)
	require.NoError(t, err)
	pages.mu.Lock()
	pages.keys = nil
	pages.mu.Unlock()

	_, err = engine.Reject(ctx, reviewer, script.ID, "   ")
	assert.ErrorIs(t, err, simplereview.ErrReasonRequired)
	assert.Equal(t, simplereview.CodeReasonRequired, simplereview.CodeOf(err))
	stored, err := engine.Store.Scripts().GetScript(ctx, script.ID)
	require.NoError(t, err)
	assert.Equal(t, simplereview.StatePending, stored.State)
	trail, err := engine.Store.Reviews().ListReviews(ctx, script.ID)
	require.NoError(t, err)
	assert.Empty(t, trail)
	pages.mu.Lock()
	assert.Empty(t, pages.keys)
	pages.mu.Unlock()
	hits := engine.CacheStats().Hits
	_, err = engine.GetScript(ctx, owner, script.ID)
	require.NoError(t, err)
	assert.Equal(t, hits+1, engine.CacheStats().Hits)

	_, err = engine.Reject(ctx, owner, script.ID, "self review")
	assert.ErrorIs(t, err, simplereview.ErrForbidden)

	rejected, err := engine.Reject(ctx, reviewer, script.ID, "missing steps")
	require.NoError(t, err)
	assert.Equal(t, simplereview.StateRejected, rejected.State)

	reviews, err := engine.ListReviews(ctx, owner, script.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, simplereview.DecisionRejected, reviews[0].Decision)
	assert.Equal(t, "missing steps", reviews[0].Reason)
	assert.Equal(t, reviewer.UserID, reviews[0].ReviewerID)

	require.Len(t, notifier.messages[owner.UserID], 1)
	assert.Contains(t, notifier.messages[owner.UserID][0], "missing steps")
}

func TestSubmitForReview(t *testing.T) {
	ctx := context.Background()
	engine := presets.NewTesting(t)
	owner, reviewer := user(), admin()

	pending := createScript(t, engine, owner, "pending")
	got, err := engine.SubmitForReview(ctx, owner, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, simplereview.StatePending, got.State)

	rejected := moveTo(t, engine, owner, reviewer, simplereview.StateRejected)
	got, err = engine.SubmitForReview(ctx, owner, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, simplereview.StatePending, got.State)

	published := moveTo(t, engine, owner, reviewer, simplereview.StatePublished)
	_, err = engine.SubmitForReview(ctx, owner, published.ID)
	assert.ErrorIs(t, err, simplereview.ErrInvalidState)
}

func TestOwnership(t *testing.T) {
	ctx := context.Background()
	engine := presets.NewTesting(t)
	owner, stranger, reviewer := user(), user(), admin()

	pending := createScript(t, engine, owner, "mine")
	_, err := engine.SoftDelete(ctx, stranger, pending.ID)
	assert.ErrorIs(t, err, simplereview.ErrScriptNotFound, "unpublished scripts are invisible to strangers")

	published := moveTo(t, engine, owner, reviewer, simplereview.StatePublished)
	_, err = engine.SoftDelete(ctx, stranger, published.ID)
	assert.ErrorIs(t, err, simplereview.ErrForbidden)

	_, err = engine.SoftDelete(ctx, nil, published.ID)
	assert.ErrorIs(t, err, simplereview.ErrUnauthorized)

	_, err = engine.Approve(ctx, nil, pending.ID)
	assert.ErrorIs(t, err, simplereview.ErrUnauthorized)
}

func TestCreateScript(t *testing.T) {
	ctx := context.Background()
	engine := presets.NewTesting(t)

	t.Run("anonymous submission has no owner", func(t *testing.T) {
		script, err := engine.CreateScript(ctx, nil, simplereview.CreateScriptRequest{Title: "anon", Content: validDoc})
		require.NoError(t, err)
		assert.Nil(t, script.OwnerID)
		assert.Equal(t, simplereview.StatePending, script.State)
	})

	t.Run("schema mismatch is stored but flagged", func(t *testing.T) {
		script, err := engine.CreateScript(ctx, user(), simplereview.CreateScriptRequest{Title: "loose", Content: []byte(`{"steps":[]}`)})
		require.NoError(t, err)
		versions, err := engine.Store.Versions().ListVersions(ctx, script.ID)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.False(t, versions[0].SchemaValid)
	})

	tests := []struct {
		name string
		req  simplereview.CreateScriptRequest
		code simplereview.Code
	}{
		{"missing title", simplereview.CreateScriptRequest{Title: " ", Content: validDoc}, simplereview.CodeInvalidArgument},
		{"empty document", simplereview.CreateScriptRequest{Title: "x"}, simplereview.CodeInvalidArgument},
		{"not an object", simplereview.CreateScriptRequest{Title: "x", Content: []byte(`[1,2]`)}, simplereview.CodeInvalidArgument},
		{"oversized document", simplereview.CreateScriptRequest{Title: "x", Content: make([]byte, 2<<20)}, simplereview.CodePayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.CreateScript(ctx, user(), tt.req)
			assert.Equal(t, tt.code, simplereview.CodeOf(err))
		})
	}
}

func TestAddVersion(t *testing.T) {
	ctx := context.Background()
	engine := presets.NewTesting(t)
	owner, reviewer := user(), admin()
	script := createScript(t, engine, owner, "versioned")

	v2, err := engine.AddVersion(ctx, owner, script.ID, []byte(`{"name":"v2","actions":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)

	_, err = engine.AddVersion(ctx, user(), script.ID, validDoc)
	assert.ErrorIs(t, err, simplereview.ErrScriptNotFound)

	versions, err := engine.ListVersions(ctx, owner, script.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	_, err = engine.Approve(ctx, reviewer, script.ID)
	require.NoError(t, err)
	_, err = engine.AddVersion(ctx, owner, script.ID, validDoc)
	assert.ErrorIs(t, err, simplereview.ErrInvalidState)

	detail, err := engine.GetScript(ctx, nil, script.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.LatestVersion.Number)
}

func TestAddVersion_RefreshesLists(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	tick := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	pages := &recordingPages{}
	engine := presets.NewTesting(t, presets.WithServiceOptions(simplereview.WithClock(clock), simplereview.WithPageInvalidator(pages)))
	owner, reviewer := user(), admin()
	script := createScript(t, engine, owner, "edited")

	for _, state := range []simplereview.State{simplereview.StatePending, ""} {
		list, err := engine.ListScripts(ctx, reviewer, simplereview.ListScriptsRequest{State: state})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, script.UpdatedAt, list[0].UpdatedAt)
	}

	pages.mu.Lock()
	pages.keys = nil
	pages.mu.Unlock()

	version, err := engine.AddVersion(ctx, owner, script.ID, []byte(`{"name":"v2","actions":[]}`))
	require.NoError(t, err)

	for _, state := range []simplereview.State{simplereview.StatePending, ""} {
		list, err := engine.ListScripts(ctx, reviewer, simplereview.ListScriptsRequest{State: state})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, version.CreatedAt, list[0].UpdatedAt, "state %q", state)
	}

	pages.mu.Lock()
	defer pages.mu.Unlock()
	assert.Contains(t, pages.keys, simplereview.ScriptBucket(script.ID))
	assert.Contains(t, pages.keys, simplereview.StateBucket(simplereview.StatePending))
	assert.Contains(t, pages.keys, simplereview.AllBucket())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	engine := presets.NewTesting(t)
	owner, reviewer := user(), admin()

	t.Run("invalid target", func(t *testing.T) {
		script := moveTo(t, engine, owner, reviewer, simplereview.StateAbandoned)
		_, err := engine.Restore(ctx, reviewer, script.ID, simplereview.RestoreRequest{State: simplereview.StateAbandoned})
		assert.ErrorIs(t, err, simplereview.ErrInvalidArgument)
	})

	t.Run("owner cannot restore", func(t *testing.T) {
		script := moveTo(t, engine, owner, reviewer, simplereview.StateAbandoned)
		_, err := engine.Restore(ctx, owner, script.ID, simplereview.RestoreRequest{State: simplereview.StatePending})
		assert.ErrorIs(t, err, simplereview.ErrForbidden)
	})

	t.Run("transfer ownership", func(t *testing.T) {
		script := moveTo(t, engine, owner, reviewer, simplereview.StateAbandoned)
		restored, err := engine.Restore(ctx, reviewer, script.ID, simplereview.RestoreRequest{
			State:             simplereview.StatePublished,
			TransferOwnership: true,
		})
		require.NoError(t, err)
		assert.Equal(t, simplereview.StatePublished, restored.State)
		assert.Nil(t, restored.OwnerID)
		assert.True(t, restored.SystemOwned)
		require.NotNil(t, restored.OriginalOwnerID)
		assert.Equal(t, owner.UserID, *restored.OriginalOwnerID)
		require.NotNil(t, restored.TransferredAt)

		// The former owner no longer controls it.
		_, err = engine.SoftDelete(ctx, owner, script.ID)
		assert.ErrorIs(t, err, simplereview.ErrForbidden)
	})

	t.Run("anonymous script", func(t *testing.T) {
		script, err := engine.CreateScript(ctx, nil, simplereview.CreateScriptRequest{Title: "anon", Content: validDoc})
		require.NoError(t, err)
		_, err = engine.Approve(ctx, reviewer, script.ID)
		require.NoError(t, err)
		// No owner can soft delete it, so abandon it directly in the store.
		require.NoError(t, engine.Store.WithTx(ctx, func(tx simplereview.Repositories) error {
			s, err := tx.Scripts().GetScriptForUpdate(ctx, script.ID)
			if err != nil {
				return err
			}
			s.State = simplereview.StateAbandoned
			s.PublishedAt = nil
			return tx.Scripts().UpdateScript(ctx, s)
		}))

		restored, err := engine.Restore(ctx, reviewer, script.ID, simplereview.RestoreRequest{
			State:             simplereview.StatePending,
			TransferOwnership: true,
		})
		require.NoError(t, err)
		assert.True(t, restored.SystemOwned)
		assert.Nil(t, restored.OriginalOwnerID)
	})
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()
	engine := presets.NewTesting(t)
	owner, reviewer, fan := user(), admin(), user()
	script := moveTo(t, engine, owner, reviewer, simplereview.StatePublished)

	_, err := engine.ToggleLike(ctx, fan, script.ID)
	require.NoError(t, err)
	_, err = engine.DownloadVersion(ctx, fan, simplereview.DownloadRequest{ScriptID: script.ID})
	require.NoError(t, err)
	_, err = engine.UploadImage(ctx, owner, script.ID, simplereview.ImageUpload{FileName: "a.png", MimeType: "image/png", Data: pngData})
	require.NoError(t, err)

	err = engine.HardDelete(ctx, reviewer, script.ID)
	assert.ErrorIs(t, err, simplereview.ErrForbidden)

	require.NoError(t, engine.HardDelete(ctx, superuser(), script.ID))

	_, err = engine.Store.Scripts().GetScript(ctx, script.ID)
	assert.ErrorIs(t, err, simplereview.ErrScriptNotFound)
	versions, err := engine.Store.Versions().ListVersions(ctx, script.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
	images, err := engine.Store.Images().ListImages(ctx, script.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
	reviews, err := engine.Store.Reviews().ListReviews(ctx, script.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	board, err := engine.Leaderboard(ctx, simplereview.LeaderboardLikes, 0)
	require.NoError(t, err)
	assert.Empty(t, board)

	err = engine.HardDelete(ctx, superuser(), script.ID)
	assert.ErrorIs(t, err, simplereview.ErrNotFound)
}

func TestApproveAll(t *testing.T) {
	ctx := context.Background()
	pages := &recordingPages{}
	engine := presets.NewTesting(t, presets.WithServiceOptions(simplereview.WithPageInvalidator(pages)))
	owner, reviewer := user(), admin()

	for i := 0; i < 3; i++ {
		createScript(t, engine, owner, "bulk")
	}
	rejected := moveTo(t, engine, owner, reviewer, simplereview.StateRejected)

	// Warm the published list so the bulk approval must invalidate it.
	before, err := engine.ListScripts(ctx, nil, simplereview.ListScriptsRequest{State: simplereview.StatePublished})
	require.NoError(t, err)
	assert.Empty(t, before)

	_, err = engine.ApproveAll(ctx, owner)
	assert.ErrorIs(t, err, simplereview.ErrForbidden)

	approved, err := engine.ApproveAll(ctx, reviewer)
	require.NoError(t, err)
	assert.Len(t, approved, 3)

	after, err := engine.ListScripts(ctx, nil, simplereview.ListScriptsRequest{State: simplereview.StatePublished})
	require.NoError(t, err)
	assert.Len(t, after, 3)

	stored, err := engine.Store.Scripts().GetScript(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, simplereview.StateRejected, stored.State)

	for _, s := range approved {
		reviews, err := engine.Store.Reviews().ListReviews(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		assert.Equal(t, simplereview.DecisionApproved, reviews[0].Decision)
	}

	again, err := engine.ApproveAll(ctx, reviewer)
	require.NoError(t, err)
	assert.Empty(t, again)

	pages.mu.Lock()
	defer pages.mu.Unlock()
	assert.Contains(t, pages.keys, simplereview.StateBucket(simplereview.StatePublished))
}

// staleListing adds rows to transactional listings that a concurrent writer
// has already moved on or removed.
type staleListing struct {
	simplereview.Store
	extra []*simplereview.Script
}

func (s *staleListing) WithTx(ctx context.Context, fn func(tx simplereview.Repositories) error) error {
	return s.Store.WithTx(ctx, func(tx simplereview.Repositories) error {
		return fn(staleRepos{Repositories: tx, extra: s.extra})
	})
}

type staleRepos struct {
	simplereview.Repositories
	extra []*simplereview.Script
}

func (r staleRepos) Scripts() simplereview.ScriptRepository {
	return staleScripts{ScriptRepository: r.Repositories.Scripts(), extra: r.extra}
}

type staleScripts struct {
	simplereview.ScriptRepository
	extra []*simplereview.Script
}

func (r staleScripts) ListScripts(ctx context.Context, filter simplereview.ScriptFilter) ([]*simplereview.Script, error) {
	list, err := r.ScriptRepository.ListScripts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return append(list, r.extra...), nil
}

func TestApproveAll_SkipsRowsThatMovedOn(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	listing := &staleListing{Store: store}
	engine := presets.NewTesting(t, presets.WithServiceOptions(simplereview.WithStore(listing)))
	owner, reviewer := user(), admin()

	pending := createScript(t, engine, owner, "still pending")
	published := moveTo(t, engine, owner, reviewer, simplereview.StatePublished)
	abandoned := moveTo(t, engine, owner, reviewer, simplereview.StateAbandoned)
	listing.extra = []*simplereview.Script{published, abandoned, {ID: uuid.New(), State: simplereview.StatePending}}

	approved, err := engine.ApproveAll(ctx, reviewer)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, pending.ID, approved[0].ID)

	for id, want := range map[uuid.UUID]simplereview.State{
		pending.ID:   simplereview.StatePublished,
		published.ID: simplereview.StatePublished,
		abandoned.ID: simplereview.StateAbandoned,
	} {
		stored, err := store.Scripts().GetScript(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, stored.State)
	}
	reviews, err := store.Reviews().ListReviews(ctx, published.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1, "a skipped row gets no second review")
}

func TestStaleSession(t *testing.T) {
	ctx := context.Background()
	engine := presets.NewTesting(t, presets.WithAccountChecks())
	owner := user()
	engine.Accounts.Add(owner.UserID)
	script := createScript(t, engine, owner, "soon orphaned")

	engine.Accounts.Remove(owner.UserID)

	_, err := engine.SoftDelete(ctx, owner, script.ID)
	assert.ErrorIs(t, err, simplereview.ErrStaleSession)
	assert.Equal(t, simplereview.CodeStaleSession, simplereview.CodeOf(err))

	_, err = engine.ToggleLike(ctx, owner, script.ID)
	assert.ErrorIs(t, err, simplereview.ErrStaleSession)

	// Reads keep working for a stale identity.
	_, err = engine.GetScript(ctx, owner, script.ID)
	assert.NoError(t, err)
}

func TestStateCounts(t *testing.T) {
	ctx := context.Background()
	engine := presets.NewTesting(t)
	owner, reviewer := user(), admin()
	moveTo(t, engine, owner, reviewer, simplereview.StatePublished)
	moveTo(t, engine, owner, reviewer, simplereview.StateRejected)
	createScript(t, engine, owner, "pending")

	_, err := engine.StateCounts(ctx, owner)
	assert.ErrorIs(t, err, simplereview.ErrForbidden)

	counts, err := engine.StateCounts(ctx, reviewer)
	require.NoError(t, err)
	assert.Equal(t, map[simplereview.State]int64{
		simplereview.StatePending:   1,
		simplereview.StatePublished: 1,
		simplereview.StateRejected:  1,
		simplereview.StateAbandoned: 0,
	}, counts)
}
