package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/filters"
	"github.com/aws-agent/console/internal/gateway"
	"github.com/aws-agent/console/internal/metrics"
	"github.com/aws-agent/console/internal/query"
	"github.com/aws-agent/console/internal/storage/models"
	"github.com/aws-agent/console/pkg/logger"
)

type ViewKind string

const (
	ViewActive   ViewKind = query.RootRecommendations
	ViewArchived ViewKind = query.RootArchivedRecommendations
)

func ParseView(s string) (ViewKind, error) {
	switch s {
	case "", "active", string(ViewActive):
		return ViewActive, nil
	case "archive", "archived", string(ViewArchived):
		return ViewArchived, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

func (v ViewKind) Root() string {
	return string(v)
}

// PageFetcher is the part of the backend gateway the controller needs.
type PageFetcher interface {
	ListActive(ctx context.Context, params gateway.ListParams) (*models.Page, error)
	ListArchived(ctx context.Context, params gateway.ListParams) (*models.Page, error)
}

// SelectionSource provides the filters the list is keyed by.
type SelectionSource interface {
	Selection() filters.Selection
}

type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseInitialLoading Phase = "initialLoading"
	PhaseRefreshing     Phase = "refreshing"
	PhaseFetchingNext   Phase = "fetchingNextPage"
	PhaseReady          Phase = "ready"
	PhaseError          Phase = "error"
)

type State struct {
	View          ViewKind                `json:"view"`
	Key           string                  `json:"key"`
	Items         []models.Recommendation `json:"items"`
	TotalItems    int                     `json:"totalItems"`
	Shown         int                     `json:"shown"`
	HasNextPage   bool                    `json:"hasNextPage"`
	Exhausted     bool                    `json:"exhausted"`
	Phase         Phase                   `json:"phase"`
	Error         string                  `json:"error,omitempty"`
	AvailableTags *models.AvailableTags   `json:"availableTags,omitempty"`

	err error
}

// Err is the last fetch error for the key, if any.
func (s State) Err() error {
	return s.err
}

type Config struct {
	PageSize  int
	StaleTime time.Duration
}

type fetchKind int

const (
	fetchFirst fetchKind = iota + 1
	fetchNext
)

// Controller accumulates one list under cursor pagination, keyed by view and selection.
type Controller struct {
	view      ViewKind
	cache     *query.Cache
	fetcher   PageFetcher
	selection SelectionSource
	pageSize  int
	staleTime time.Duration
	sentinel  Sentinel
	log       *zap.Logger

	mu      sync.Mutex
	pending map[string]fetchKind
}

func NewController(view ViewKind, cfg Config, cache *query.Cache, fetcher PageFetcher, selection SelectionSource) *Controller {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Controller{
		view:      view,
		cache:     cache,
		fetcher:   fetcher,
		selection: selection,
		pageSize:  pageSize,
		staleTime: cfg.StaleTime,
		log:       logger.Named("listing").With(zap.String("view", string(view))),
		pending:   make(map[string]fetchKind),
	}
}

func (c *Controller) View() ViewKind {
	return c.view
}

// Key is the cache key for the current selection.
func (c *Controller) Key() query.Key {
	return c.selection.Selection().ListKey(c.view.Root())
}

// Load fetches the first page when the current key has no fresh entry, replacing
// any pages accumulated before an invalidation.
func (c *Controller) Load(ctx context.Context) State {
	sel := c.selection.Selection()
	key := sel.ListKey(c.view.Root())

	if c.cache.IsStale(key, c.staleTime) {
		metrics.CacheMisses.WithLabelValues(c.view.Root()).Inc()
		c.loadFirst(ctx, sel, key)
	} else {
		metrics.CacheHits.WithLabelValues(c.view.Root()).Inc()
	}

	return c.render(key)
}

func (c *Controller) loadFirst(ctx context.Context, sel filters.Selection, key query.Key) bool {
	return c.fetch(ctx, key, fetchFirst, func(ctx context.Context, _ any) (any, error) {
		page, err := c.fetchPage(ctx, sel, "")
		if err != nil {
			return nil, err
		}
		return NewPages(*page), nil
	})
}

// RequestMore fetches the page after the last one. It is a no-op while a fetch for
// the key is in flight or when the last page reported no next cursor. An invalidated
// list is reloaded from the first page instead of being extended.
func (c *Controller) RequestMore(ctx context.Context) (State, bool) {
	sel := c.selection.Selection()
	key := sel.ListKey(c.view.Root())

	st, ok := c.cache.Get(key)
	if !ok || !st.HasValue || st.Fetching {
		return c.render(key), false
	}
	if st.Invalidated {
		fetched := c.loadFirst(ctx, sel, key)
		return c.render(key), fetched
	}
	pages, ok := st.Value.(Pages)
	if !ok || !pages.HasNextPage() {
		return c.render(key), false
	}
	cursor := pages.NextCursor()

	fetched := c.fetch(ctx, key, fetchNext, func(ctx context.Context, prev any) (any, error) {
		current, ok := prev.(Pages)
		if !ok || current.NextCursor() != cursor {
			return prev, nil
		}
		page, err := c.fetchPage(ctx, sel, cursor)
		if err != nil {
			return nil, err
		}
		return current.Append(*page), nil
	})
	if fetched {
		// The last item may not change when a page comes back empty.
		c.sentinel.Rearm()
	}

	return c.render(key), fetched
}

// Intersect handles a visibility change of a rendered item and requests the next
// page when the attached last item enters the viewport.
func (c *Controller) Intersect(ctx context.Context, id string, visible bool) (State, bool) {
	if !c.sentinel.Observe(id, visible) {
		return c.render(c.Key()), false
	}
	return c.RequestMore(ctx)
}

// State renders the current key without fetching.
func (c *Controller) State() State {
	return c.render(c.Key())
}

// Find looks up an accumulated item by id under the current key.
func (c *Controller) Find(id string) (models.Recommendation, bool) {
	pages, ok := query.Value[Pages](c.cache, c.Key())
	if !ok {
		return models.Recommendation{}, false
	}
	return pages.Find(id)
}

func (c *Controller) fetch(ctx context.Context, key query.Key, kind fetchKind, fn query.FetchFunc) bool {
	id := key.String()

	c.mu.Lock()
	if _, busy := c.pending[id]; busy {
		c.mu.Unlock()
		return false
	}
	c.pending[id] = kind
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	_, err := c.cache.Fetch(ctx, key, fn)
	switch {
	case err == nil:
		return true
	case errors.Is(err, query.ErrFetchInFlight), errors.Is(err, query.ErrFetchDiscarded):
		c.log.Debug("List fetch skipped", zap.String("query_key", id), zap.Error(err))
		return false
	default:
		c.log.Warn("List fetch failed", zap.String("query_key", id), zap.Error(err))
		return false
	}
}

func (c *Controller) fetchPage(ctx context.Context, sel filters.Selection, cursor string) (*models.Page, error) {
	params := gateway.ListParams{
		Cursor: cursor,
		Limit:  c.pageSize,
		Search: sel.SearchTerm,
		Tags:   sel.Tags(),
	}

	var (
		page *models.Page
		err  error
	)
	if c.view == ViewArchived {
		page, err = c.fetcher.ListArchived(ctx, params)
	} else {
		page, err = c.fetcher.ListActive(ctx, params)
	}
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = &models.Page{}
	}

	metrics.PagesFetched.WithLabelValues(c.view.Root()).Inc()
	return page, nil
}

func (c *Controller) render(key query.Key) State {
	id := key.String()
	state := State{View: c.view, Key: id, Items: []models.Recommendation{}, Phase: PhaseIdle}

	entry, ok := c.cache.Get(key)
	if ok {
		if pages, isPages := entry.Value.(Pages); entry.HasValue && isPages {
			state.Items = pages.Items()
			state.TotalItems = pages.TotalItems()
			state.HasNextPage = pages.HasNextPage()
			state.AvailableTags = pages.AvailableTags()
		}
		state.err = entry.Err
		if entry.Err != nil {
			state.Error = gateway.Message(entry.Err)
		}
	}

	c.mu.Lock()
	kind, fetching := c.pending[id]
	c.mu.Unlock()
	if ok && entry.Fetching && !fetching {
		fetching = true
		kind = fetchFirst
	}

	switch {
	case fetching && len(state.Items) == 0 && kind == fetchFirst:
		state.Phase = PhaseInitialLoading
	case fetching && kind == fetchFirst:
		state.Phase = PhaseRefreshing
	case fetching:
		state.Phase = PhaseFetchingNext
	case state.err != nil:
		state.Phase = PhaseError
	case ok && entry.HasValue:
		state.Phase = PhaseReady
	}

	state.Shown = min(len(state.Items), state.TotalItems)
	state.Exhausted = !state.HasNextPage && !fetching && len(state.Items) > 0

	if n := len(state.Items); n > 0 {
		c.sentinel.Attach(state.Items[n-1].RecommendationID)
	} else {
		c.sentinel.Attach("")
	}
	return state
}
