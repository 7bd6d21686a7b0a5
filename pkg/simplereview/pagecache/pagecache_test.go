package pagecache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	payload string
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.sent = append(f.sent, published{channel: channel, payload: string(message.([]byte))})
	return redis.NewIntResult(1, nil)
}

func TestRedisInvalidator_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	inv := NewRedisInvalidator(pub, "")
	inv.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, inv.InvalidatePages(context.Background(), "scripts/published/", "leaderboard/"))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, DefaultChannel, pub.sent[0].channel)

	msg, err := DecodeMessage(pub.sent[0].payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"scripts/published/", "leaderboard/"}, msg.Keys)
	assert.Equal(t, int64(1700000000), msg.At.Unix())
}

func TestRedisInvalidator_NoKeysIsNoop(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewRedisInvalidator(pub, "pages").InvalidatePages(context.Background()))
	assert.Empty(t, pub.sent)
}

func TestRedisInvalidator_SurfacesPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	err := NewRedisInvalidator(pub, "pages").InvalidatePages(context.Background(), "scripts/all/")
	assert.ErrorContains(t, err, "connection refused")
}

func TestMulti(t *testing.T) {
	var logs bytes.Buffer
	ok := &fakePublisher{}
	failing := &fakePublisher{err: errors.New("down")}
	m := Multi{
		NewLogInvalidator(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		NewRedisInvalidator(failing, "a"),
		NewRedisInvalidator(ok, "b"),
	}

	err := m.InvalidatePages(context.Background(), "script/x/")
	assert.ErrorContains(t, err, "down")
	assert.Len(t, ok.sent, 1, "one failing target does not stop the others")
	assert.Contains(t, logs.String(), "pages invalidated")
}

func TestDecodeMessage_Invalid(t *testing.T) {
	_, err := DecodeMessage("not json")
	assert.Error(t, err)
}
