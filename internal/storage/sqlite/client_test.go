package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws-agent/console/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSessionLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.LoadSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	token, err := c.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, c.SaveSession(ctx, &models.Session{Username: "alice", Token: "t-1"}))
	require.NoError(t, c.SaveSession(ctx, &models.Session{Username: "bob", Token: "t-2"}))

	session, err := c.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", session.Username)
	assert.Equal(t, "t-2", session.Token)
	assert.WithinDuration(t, time.Now(), session.CreatedAt, time.Minute)

	token, err = c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t-2", token)

	require.NoError(t, c.DeleteSession(ctx))
	_, err = c.LoadSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	require.NoError(t, c.DeleteSession(ctx))
}

func TestSessionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.db")
	ctx := context.Background()

	first, err := NewClient(path)
	require.NoError(t, err)
	require.NoError(t, first.InitSchema())
	require.NoError(t, first.SaveSession(ctx, &models.Session{Username: "alice", Token: "t-1"}))
	require.NoError(t, first.Close())

	second, err := NewClient(path)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.InitSchema())

	token, err := second.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t-1", token)
}

func TestMutationHistoryNewestFirst(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"40", "41", "42"} {
		require.NoError(t, c.RecordMutation(ctx, &models.MutationRecord{
			ID:               "m-" + id,
			RecommendationID: id,
			Action:           "archive",
			Success:          i != 1,
			Message:          map[bool]string{true: "", false: "Server error (Status: 500)"}[i != 1],
			LatencyMS:        int64(10 * (i + 1)),
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := c.RecentMutations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "42", records[0].RecommendationID)
	assert.True(t, records[0].Success)
	assert.Equal(t, "41", records[1].RecommendationID)
	assert.False(t, records[1].Success)
	assert.Equal(t, "Server error (Status: 500)", records[1].Message)
	assert.Equal(t, int64(20), records[1].LatencyMS)
}
