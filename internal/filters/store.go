package filters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aws-agent/console/internal/metrics"
	"github.com/aws-agent/console/internal/query"
	"github.com/aws-agent/console/internal/storage/models"
	"github.com/aws-agent/console/pkg/logger"
)

// Counter fetches every record matching a search term for aggregation.
type Counter interface {
	ListAllForCounting(ctx context.Context, searchTerm string) ([]models.Recommendation, error)
}

// SharedCache is an optional second-level vocabulary store.
type SharedCache interface {
	GetVocabulary(ctx context.Context, searchTerm string, dst any) (bool, error)
	SetVocabulary(ctx context.Context, searchTerm string, vocabulary any) error
	InvalidateVocabulary(ctx context.Context) error
}

type Config struct {
	// StaleTime bounds how long a vocabulary is served before it is refetched. Zero means until invalidated.
	StaleTime time.Duration
	Debounce  time.Duration
	// LoadTimeout bounds a shared vocabulary load. Defaults to 30s.
	LoadTimeout time.Duration
}

// Store owns the filter selection and derives the tag vocabulary for the current search term.
type Store struct {
	mu               sync.RWMutex
	searchTerm       string
	filterSearchTerm string
	debouncedTerm    string
	providers        tagSet
	frameworks       tagSet
	riskClasses      tagSet
	reasons          tagSet

	cache       *query.Cache
	counter     Counter
	shared      SharedCache
	staleTime   time.Duration
	loadTimeout time.Duration
	debouncer   *Debouncer
	group       singleflight.Group
	unsubscribe func()
	log         *zap.Logger
}

func NewStore(cfg Config, cache *query.Cache, counter Counter, shared SharedCache) *Store {
	loadTimeout := cfg.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = 30 * time.Second
	}
	s := &Store{
		cache:       cache,
		counter:     counter,
		shared:      shared,
		staleTime:   cfg.StaleTime,
		loadTimeout: loadTimeout,
		log:         logger.Named("filters"),
	}
	s.debouncer = NewDebouncer(cfg.Debounce, s.commitFilterSearchTerm)
	s.unsubscribe = cache.Subscribe(s.onCacheEvent)
	return s
}

// Close stops the dropdown debouncer and detaches from the cache.
func (s *Store) Close() {
	s.debouncer.Stop()
	s.unsubscribe()
}

func (s *Store) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Selection{
		SearchTerm:       s.searchTerm,
		FilterSearchTerm: s.filterSearchTerm,
		Providers:        s.providers.values(),
		Frameworks:       s.frameworks.values(),
		RiskClasses:      s.riskClasses.values(),
		Reasons:          s.reasons.values(),
	}
}

func (s *Store) SearchTerm() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchTerm
}

// SetSearchTerm changes the term driving both the list query and the vocabulary.
// Both are keyed by the term, so the next read lands on a fresh entry.
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	s.searchTerm = term
	s.mu.Unlock()

	s.log.Debug("Search term changed", zap.String("search_term", term))
}

// SetFilterSearchTerm records the dropdown text. It is applied to the vocabulary
// only after the debounce period passes without another change.
func (s *Store) SetFilterSearchTerm(term string) {
	s.mu.Lock()
	s.filterSearchTerm = term
	s.mu.Unlock()

	s.debouncer.Push(term)
}

func (s *Store) commitFilterSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debouncedTerm = term
}

// DebouncedFilterSearchTerm is the dropdown text currently applied to the vocabulary.
func (s *Store) DebouncedFilterSearchTerm() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debouncedTerm
}

// Toggle adds name to the dimension's selection, or removes it if already selected.
// It reports whether name is selected afterwards.
func (s *Store) Toggle(dim Dimension, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.setFor(dim)
	if err != nil {
		return false, err
	}
	return set.toggle(name), nil
}

func (s *Store) ToggleProvider(name string) bool  { return s.mustToggle(DimensionProvider, name) }
func (s *Store) ToggleFramework(name string) bool { return s.mustToggle(DimensionFramework, name) }
func (s *Store) ToggleRiskClass(name string) bool { return s.mustToggle(DimensionRiskClass, name) }
func (s *Store) ToggleReason(name string) bool    { return s.mustToggle(DimensionReason, name) }

func (s *Store) mustToggle(dim Dimension, name string) bool {
	selected, _ := s.Toggle(dim, name)
	return selected
}

func (s *Store) setFor(dim Dimension) (*tagSet, error) {
	switch dim {
	case DimensionProvider:
		return &s.providers, nil
	case DimensionFramework:
		return &s.frameworks, nil
	case DimensionRiskClass:
		return &s.riskClasses, nil
	case DimensionReason:
		return &s.reasons, nil
	default:
		return nil, fmt.Errorf("unknown filter dimension %q", dim)
	}
}

// ClearAllFilters empties the four tag selections and the dropdown text. The search term is kept.
func (s *Store) ClearAllFilters() {
	s.debouncer.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.providers.clear()
	s.frameworks.clear()
	s.riskClasses.clear()
	s.reasons.clear()
	s.filterSearchTerm = ""
	s.debouncedTerm = ""
}

// Reset clears everything including the search term. Used on logout.
func (s *Store) Reset() {
	s.ClearAllFilters()

	s.mu.Lock()
	s.searchTerm = ""
	s.mu.Unlock()
}

func (s *Store) ActiveFilterCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providers.len() + s.frameworks.len() + s.riskClasses.len() + s.reasons.len()
}

// Vocabulary returns the tags and counts for the current search term, fetching them if
// missing or stale. On failure it returns an empty vocabulary together with the error.
func (s *Store) Vocabulary(ctx context.Context) (Vocabulary, error) {
	term := s.SearchTerm()
	key := query.VocabularyKey(term)

	if !s.cache.IsStale(key, s.staleTime) {
		if v, ok := query.Value[Vocabulary](s.cache, key); ok {
			metrics.CacheHits.WithLabelValues("vocabulary").Inc()
			return v, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("vocabulary").Inc()

	// The load is shared by every waiter, so it must outlive the caller that started it.
	ch := s.group.DoChan(key.String(), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		return s.cache.Fetch(loadCtx, key, func(ctx context.Context, _ any) (any, error) {
			return s.load(ctx, term)
		})
	})

	var (
		result any
		err    error
	)
	select {
	case res := <-ch:
		result, err = res.Val, res.Err
	case <-ctx.Done():
		return emptyVocabulary(), ctx.Err()
	}

	switch {
	case err == nil:
		return result.(Vocabulary), nil
	case errors.Is(err, query.ErrFetchInFlight), errors.Is(err, query.ErrFetchDiscarded):
		if v, ok := query.Value[Vocabulary](s.cache, key); ok {
			return v, nil
		}
		return emptyVocabulary(), nil
	default:
		s.log.Warn("Failed to load tag vocabulary", zap.String("search_term", term), zap.Error(err))
		return emptyVocabulary(), err
	}
}

// DropdownVocabulary is the vocabulary narrowed by the debounced dropdown text.
func (s *Store) DropdownVocabulary(ctx context.Context) (Vocabulary, error) {
	v, err := s.Vocabulary(ctx)
	return v.Filter(s.DebouncedFilterSearchTerm()), err
}

func (s *Store) load(ctx context.Context, term string) (Vocabulary, error) {
	if s.shared != nil {
		var cached Vocabulary
		found, err := s.shared.GetVocabulary(ctx, term, &cached)
		if err != nil {
			s.log.Warn("Shared vocabulary cache read failed", zap.Error(err))
		} else if found {
			return normalize(cached), nil
		}
	}

	records, err := s.counter.ListAllForCounting(ctx, term)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("failed to fetch records for counting: %w", err)
	}

	v := Aggregate(records)
	s.log.Debug("Aggregated tag vocabulary",
		zap.String("search_term", term),
		zap.Int("records", len(records)),
		zap.Int("tags", v.Len()),
	)

	if s.shared != nil {
		if err := s.shared.SetVocabulary(ctx, term, v); err != nil {
			s.log.Warn("Shared vocabulary cache write failed", zap.Error(err))
		}
	}
	return v, nil
}

func (s *Store) onCacheEvent(ev query.Event) {
	if s.shared == nil {
		return
	}
	affected := ev.Type == query.EventCleared ||
		(ev.Type == query.EventInvalidated && (len(ev.Key) == 0 || ev.Key.Root() == query.RootTagCounts))
	if !affected {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.shared.InvalidateVocabulary(ctx); err != nil {
		s.log.Warn("Failed to invalidate shared vocabulary cache", zap.Error(err))
	}
}

func normalize(v Vocabulary) Vocabulary {
	if v.Providers == nil {
		v.Providers = []string{}
	}
	if v.Frameworks == nil {
		v.Frameworks = []string{}
	}
	if v.RiskClasses == nil {
		v.RiskClasses = []string{}
	}
	if v.Reasons == nil {
		v.Reasons = []string{}
	}
	if v.TagCounts == nil {
		v.TagCounts = map[string]int{}
	}
	return v
}
