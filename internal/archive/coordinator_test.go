package archive

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws-agent/console/internal/gateway"
	"github.com/aws-agent/console/internal/listing"
	"github.com/aws-agent/console/internal/query"
	"github.com/aws-agent/console/internal/storage/models"
)

type call struct {
	action string
	id     string
}

// blockingMutator holds every call until the test answers on results.
type blockingMutator struct {
	mu      sync.Mutex
	calls   []call
	started chan call
	results chan error
}

func newBlockingMutator() *blockingMutator {
	return &blockingMutator{started: make(chan call, 4), results: make(chan error, 4)}
}

func (m *blockingMutator) Archive(ctx context.Context, id string) (*models.MutationResult, error) {
	return m.do(ctx, "archive", id)
}

func (m *blockingMutator) Unarchive(ctx context.Context, id string) (*models.MutationResult, error) {
	return m.do(ctx, "unarchive", id)
}

func (m *blockingMutator) do(ctx context.Context, action, id string) (*models.MutationResult, error) {
	c := call{action, id}
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()

	m.started <- c
	select {
	case err := <-m.results:
		if err != nil {
			return nil, err
		}
		return &models.MutationResult{Message: "ok"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type notification struct {
	level   string
	title   string
	message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Success(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{"success", title, message})
}

func (n *recordingNotifier) Error(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{"error", title, message})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification{}, n.sent...)
}

type stubPanel struct {
	mu   sync.Mutex
	open string
}

func (p *stubPanel) CloseIf(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open != id {
		return false
	}
	p.open = ""
	return true
}

type fixedKey query.Key

func (k fixedKey) Key() query.Key { return query.Key(k) }

var (
	activeKey   = query.ListKey(query.RootRecommendations, "", nil, nil, nil, nil)
	archivedKey = query.ListKey(query.RootArchivedRecommendations, "", nil, nil, nil, nil)
)

type fixture struct {
	cache    *query.Cache
	mutator  *blockingMutator
	notifier *recordingNotifier
	panel    *stubPanel
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cache:    query.NewCache(),
		mutator:  newBlockingMutator(),
		notifier: &recordingNotifier{},
		panel:    &stubPanel{},
	}
	f.coord = NewCoordinator(f.cache, f.mutator, f.notifier, f.panel, fixedKey(activeKey), fixedKey(archivedKey))

	f.seed(activeKey, "40", "41", "42", "43")
	f.seed(archivedKey, "7")
	f.seed(query.VocabularyKey(""), "")
	return f
}

func (f *fixture) seed(key query.Key, ids ...string) {
	data := make([]models.Recommendation, 0, len(ids))
	for _, id := range ids {
		data = append(data, models.Recommendation{RecommendationID: id})
	}
	pages := listing.NewPages(models.Page{Data: data, Pagination: models.Pagination{TotalItems: len(ids)}})
	_, err := f.cache.Fetch(context.Background(), key, func(context.Context, any) (any, error) { return pages, nil })
	if err != nil {
		panic(err)
	}
}

func (f *fixture) ids(key query.Key) []string {
	pages, ok := query.Value[listing.Pages](f.cache, key)
	if !ok {
		return nil
	}
	out := []string{}
	for _, rec := range pages.Items() {
		out = append(out, rec.RecommendationID)
	}
	return out
}

type outcome struct {
	res *models.MutationResult
	err error
}

func (f *fixture) archiveAsync(id string) <-chan outcome {
	done := make(chan outcome, 1)
	go func() {
		res, err := f.coord.Archive(context.Background(), id)
		done <- outcome{res, err}
	}()
	<-f.mutator.started
	return done
}

func TestArchiveRemovesOptimisticallyThenKeepsOnSuccess(t *testing.T) {
	f := newFixture(t)
	f.panel.open = "42"

	done := f.archiveAsync("42")

	assert.Equal(t, []string{"40", "41", "43"}, f.ids(activeKey), "removed before the server answers")
	assert.True(t, f.coord.Pending("42"))
	assert.False(t, f.cache.IsStale(archivedKey, 0), "invalidation waits for settle")

	f.mutator.results <- nil
	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, "ok", out.res.Message)

	assert.Equal(t, []string{"40", "41", "43"}, f.ids(activeKey))
	assert.True(t, f.cache.IsStale(activeKey, 0))
	assert.True(t, f.cache.IsStale(archivedKey, 0))
	assert.True(t, f.cache.IsStale(query.VocabularyKey(""), 0))
	assert.False(t, f.coord.Pending("42"))
	assert.Empty(t, f.panel.open)
	assert.Equal(t, []notification{{"success", "Archived successfully", ""}}, f.notifier.all())
}

func TestArchiveFailureRestoresOriginalPosition(t *testing.T) {
	f := newFixture(t)
	f.panel.open = "42"

	done := f.archiveAsync("42")
	assert.NotContains(t, f.ids(activeKey), "42")

	f.mutator.results <- &gateway.APIError{StatusCode: 409, Message: "Recommendation already archived"}
	out := <-done
	require.Error(t, out.err)

	assert.Equal(t, []string{"40", "41", "42", "43"}, f.ids(activeKey))
	assert.True(t, f.cache.IsStale(activeKey, 0), "invalidated on failure too")
	assert.True(t, f.cache.IsStale(archivedKey, 0))
	assert.Equal(t, "42", f.panel.open, "panel stays open on failure")
	assert.Equal(t, []notification{{"error", "Failed to archive", "Recommendation already archived"}}, f.notifier.all())
}

func TestRollbackKeepsOtherMutationsRemovals(t *testing.T) {
	f := newFixture(t)

	first := f.archiveAsync("41")
	second := f.archiveAsync("43")
	assert.Equal(t, []string{"40", "42"}, f.ids(activeKey))

	f.mutator.results <- fmt.Errorf("%w: connection reset", gateway.ErrTransport)
	f.mutator.results <- nil
	outs := []outcome{<-first, <-second}

	failures := 0
	for _, o := range outs {
		if o.err != nil {
			failures++
		}
	}
	require.Equal(t, 1, failures)

	remaining := f.ids(activeKey)
	assert.Len(t, remaining, 3)
	assert.Contains(t, remaining, "40")
	assert.Contains(t, remaining, "42")
}

func TestUnarchiveUsesArchivedList(t *testing.T) {
	f := newFixture(t)

	done := make(chan outcome, 1)
	go func() {
		res, err := f.coord.Unarchive(context.Background(), "7")
		done <- outcome{res, err}
	}()
	c := <-f.mutator.started

	assert.Equal(t, call{"unarchive", "7"}, c)
	assert.Empty(t, f.ids(archivedKey))
	assert.Equal(t, []string{"40", "41", "42", "43"}, f.ids(activeKey))

	f.mutator.results <- nil
	require.NoError(t, (<-done).err)
	assert.Equal(t, []notification{{"success", "Unarchived successfully", ""}}, f.notifier.all())
}

func TestDuplicateMutationIsRejected(t *testing.T) {
	f := newFixture(t)

	done := f.archiveAsync("42")
	_, err := f.coord.Archive(context.Background(), "42")
	assert.ErrorIs(t, err, ErrMutationPending)
	assert.Equal(t, []string{"42"}, f.coord.PendingIDs())

	f.mutator.results <- nil
	require.NoError(t, (<-done).err)
	assert.Len(t, f.mutator.calls, 1)
}

func TestArchiveCancelsInFlightRefetch(t *testing.T) {
	f := newFixture(t)
	f.cache.Invalidate(query.Key{query.RootRecommendations})

	refetchStarted := make(chan struct{})
	refetchDone := make(chan error, 1)
	go func() {
		_, err := f.cache.Fetch(context.Background(), activeKey, func(ctx context.Context, _ any) (any, error) {
			close(refetchStarted)
			<-ctx.Done()
			return listing.NewPages(models.Page{Data: []models.Recommendation{{RecommendationID: "42"}}}), nil
		})
		refetchDone <- err
	}()
	<-refetchStarted

	done := f.archiveAsync("42")
	assert.ErrorIs(t, <-refetchDone, query.ErrFetchDiscarded)
	assert.NotContains(t, f.ids(activeKey), "42")

	f.mutator.results <- nil
	require.NoError(t, (<-done).err)
	assert.NotContains(t, f.ids(activeKey), "42")
}

func TestArchiveWithoutCachedListStillSettles(t *testing.T) {
	f := newFixture(t)
	f.cache.Remove(query.Key{query.RootRecommendations})

	done := f.archiveAsync("42")
	f.mutator.results <- nil

	select {
	case out := <-done:
		require.NoError(t, out.err)
	case <-time.After(time.Second):
		t.Fatal("mutation did not settle")
	}
	assert.True(t, f.cache.IsStale(archivedKey, 0))
}

func TestEmptyIDIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Archive(context.Background(), "")
	assert.Error(t, err)
}
