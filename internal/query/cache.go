package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/metrics"
	"github.com/aws-agent/console/pkg/logger"
)

var (
	// ErrFetchInFlight is returned when a fetch for the key is already running.
	ErrFetchInFlight = errors.New("fetch already in flight for key")
	// ErrFetchDiscarded is returned when a fetch completed after its entry was
	// cancelled, invalidated, removed or written to, so its result was dropped.
	ErrFetchDiscarded = errors.New("fetch result discarded")
)

type EventType string

const (
	EventUpdated     EventType = "updated"
	EventInvalidated EventType = "invalidated"
	EventRemoved     EventType = "removed"
	EventCleared     EventType = "cleared"
)

type Event struct {
	Type EventType `json:"type"`
	Key  Key       `json:"key"`
}

// FetchFunc loads a fresh value. prev is the currently cached value, nil when there is none.
type FetchFunc func(ctx context.Context, prev any) (any, error)

// State is a read-only view of an entry.
type State struct {
	Value       any
	HasValue    bool
	Err         error
	UpdatedAt   time.Time
	Invalidated bool
	Fetching    bool
}

// Snapshot captures an entry's value so it can be put back with Restore.
type Snapshot struct {
	key      Key
	value    any
	hasValue bool
}

func (s Snapshot) Key() Key       { return s.key }
func (s Snapshot) HasValue() bool { return s.hasValue }
func (s Snapshot) Value() any     { return s.value }

type inflight struct {
	token  uint64
	cancel context.CancelFunc
}

type entry struct {
	key         Key
	value       any
	hasValue    bool
	err         error
	updatedAt   time.Time
	invalidated bool
	version     uint64
	fetch       *inflight
}

// Cache maps query keys to fetched values. Values are treated as immutable:
// Update must return a new value rather than modify the one it is given.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]*entry
	nextToken   uint64
	subscribers map[int]func(Event)
	nextSub     int
	now         func() time.Time
	log         *zap.Logger
}

func NewCache() *Cache {
	return &Cache{
		entries:     make(map[string]*entry),
		subscribers: make(map[int]func(Event)),
		now:         time.Now,
		log:         logger.Named("query_cache"),
	}
}

func (c *Cache) Get(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return State{}, false
	}
	return e.state(), true
}

// IsStale reports whether key needs a refetch: it is missing, has no value,
// was invalidated, or is older than staleTime. A zero staleTime never expires.
func (c *Cache) IsStale(key Key, staleTime time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || !e.hasValue || e.invalidated {
		return true
	}
	return staleTime > 0 && c.now().Sub(e.updatedAt) > staleTime
}

// Fetch runs fn for key unless a fetch is already in flight. The result is only
// stored if nothing cancelled, invalidated or wrote to the entry meanwhile. On
// error the previous value is kept.
func (c *Cache) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	c.mu.Lock()
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[id] = e
	}
	if e.fetch != nil {
		c.mu.Unlock()
		return nil, ErrFetchInFlight
	}

	c.nextToken++
	fetchCtx, cancel := context.WithCancel(ctx)
	fetch := &inflight{token: c.nextToken, cancel: cancel}
	e.fetch = fetch
	prev := e.value
	startVersion := e.version
	c.mu.Unlock()

	value, err := fn(fetchCtx, prev)
	cancel()

	c.mu.Lock()
	current, ok := c.entries[id]
	if !ok || current != e || e.fetch != fetch || e.version != startVersion {
		if e.fetch == fetch {
			e.fetch = nil
		}
		c.mu.Unlock()

		metrics.FetchesDiscarded.WithLabelValues(key.Root()).Inc()
		c.log.Debug("Discarded fetch result", zap.String("query_key", id))
		return nil, ErrFetchDiscarded
	}
	e.fetch = nil

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			e.err = err
		}
		c.mu.Unlock()
		return nil, err
	}

	e.value = value
	e.hasValue = true
	e.err = nil
	e.invalidated = false
	e.updatedAt = c.now()
	e.version++
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.emit(subs, Event{Type: EventUpdated, Key: e.key})
	return value, nil
}

// Cancel aborts the in-flight fetch for key, if any. Its result will be discarded.
func (c *Cache) Cancel(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || e.fetch == nil {
		return false
	}
	e.fetch.cancel()
	e.fetch = nil
	return true
}

// Update replaces the cached value with fn(value). It does nothing when the key holds no value.
func (c *Cache) Update(key Key, fn func(prev any) any) bool {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok || !e.hasValue {
		c.mu.Unlock()
		return false
	}
	e.value = fn(e.value)
	e.version++
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.emit(subs, Event{Type: EventUpdated, Key: e.key})
	return true
}

func (c *Cache) Snapshot(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{key: append(Key(nil), key...)}
	if e, ok := c.entries[key.String()]; ok {
		snap.value = e.value
		snap.hasValue = e.hasValue
	}
	return snap
}

func (c *Cache) Restore(snap Snapshot) {
	c.mu.Lock()
	id := snap.key.String()
	e, ok := c.entries[id]
	if !ok {
		if !snap.hasValue {
			c.mu.Unlock()
			return
		}
		e = &entry{key: snap.key, updatedAt: c.now()}
		c.entries[id] = e
	}
	e.value = snap.value
	e.hasValue = snap.hasValue
	e.version++
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.emit(subs, Event{Type: EventUpdated, Key: snap.key})
}

// Invalidate marks every entry under prefix stale and cancels their in-flight
// fetches. Values are kept so readers can still render them until the refetch lands.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	n := 0
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.invalidated = true
		if e.fetch != nil {
			e.fetch.cancel()
			e.fetch = nil
		}
		n++
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	metrics.Invalidations.WithLabelValues(prefix.Root()).Inc()
	c.log.Debug("Invalidated cache entries",
		zap.String("query_key", prefix.String()),
		zap.Int("entries", n),
	)
	c.emit(subs, Event{Type: EventInvalidated, Key: prefix})
	return n
}

func (c *Cache) Remove(prefix Key) int {
	c.mu.Lock()
	n := 0
	for id, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		if e.fetch != nil {
			e.fetch.cancel()
		}
		delete(c.entries, id)
		n++
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.emit(subs, Event{Type: EventRemoved, Key: prefix})
	return n
}

// Clear drops every entry. Used on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	for _, e := range c.entries {
		if e.fetch != nil {
			e.fetch.cancel()
		}
	}
	c.entries = make(map[string]*entry)
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.log.Info("Query cache cleared")
	c.emit(subs, Event{Type: EventCleared})
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Subscribe registers fn for cache events and returns a function that removes it.
// fn runs on the goroutine that changed the cache, after the cache lock is released.
func (c *Cache) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Cache) subscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func (c *Cache) emit(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

func (e *entry) state() State {
	return State{
		Value:       e.value,
		HasValue:    e.hasValue,
		Err:         e.err,
		UpdatedAt:   e.updatedAt,
		Invalidated: e.invalidated,
		Fetching:    e.fetch != nil,
	}
}

// Value returns the cached value for key as T.
func Value[T any](c *Cache, key Key) (T, bool) {
	var zero T
	st, ok := c.Get(key)
	if !ok || !st.HasValue {
		return zero, false
	}
	v, ok := st.Value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
