package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/gateway"
	"github.com/aws-agent/console/internal/listing"
	"github.com/aws-agent/console/internal/metrics"
	"github.com/aws-agent/console/internal/query"
	"github.com/aws-agent/console/internal/storage/models"
	"github.com/aws-agent/console/pkg/logger"
)

// ErrMutationPending is returned when the recommendation already has an unsettled mutation.
var ErrMutationPending = errors.New("a mutation for this recommendation is already pending")

type Action string

const (
	ActionArchive   Action = "archive"
	ActionUnarchive Action = "unarchive"
)

type Mutator interface {
	Archive(ctx context.Context, id string) (*models.MutationResult, error)
	Unarchive(ctx context.Context, id string) (*models.MutationResult, error)
}

type Notifier interface {
	Success(title, message string)
	Error(title, message string)
}

// Panel is the detail panel; CloseIf closes it when it shows id.
type Panel interface {
	CloseIf(id string) bool
}

// KeySource reports the cache key of the list currently displayed for a view.
type KeySource interface {
	Key() query.Key
}

// Coordinator archives and unarchives with optimistic removal from the displayed
// list, rollback on failure and invalidation of every affected list on settle.
type Coordinator struct {
	cache    *query.Cache
	mutator  Mutator
	notifier Notifier
	panel    Panel
	active   KeySource
	archived KeySource
	log      *zap.Logger

	mu      sync.Mutex
	pending map[string]string
}

func NewCoordinator(cache *query.Cache, mutator Mutator, notifier Notifier, panel Panel, active, archived KeySource) *Coordinator {
	return &Coordinator{
		cache:    cache,
		mutator:  mutator,
		notifier: notifier,
		panel:    panel,
		active:   active,
		archived: archived,
		log:      logger.Named("archive"),
		pending:  make(map[string]string),
	}
}

// mutation carries one call through beforeSend, apply, send and onResolve.
type mutation struct {
	id       string
	action   Action
	key      query.Key
	snapshot query.Snapshot
	applied  bool
	log      *zap.Logger
}

// Archive moves id from the active list to the archive.
func (c *Coordinator) Archive(ctx context.Context, id string) (*models.MutationResult, error) {
	return c.run(ctx, ActionArchive, id)
}

// Unarchive moves id from the archive back to the active list.
func (c *Coordinator) Unarchive(ctx context.Context, id string) (*models.MutationResult, error) {
	return c.run(ctx, ActionUnarchive, id)
}

func (c *Coordinator) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// PendingIDs lists recommendations with an unsettled mutation.
func (c *Coordinator) PendingIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	return ids
}

func (c *Coordinator) run(ctx context.Context, action Action, id string) (*models.MutationResult, error) {
	if id == "" {
		return nil, fmt.Errorf("recommendation id is required")
	}

	mutationID := uuid.New().String()
	if !c.begin(id, mutationID) {
		return nil, ErrMutationPending
	}
	defer c.end(id)

	m := &mutation{
		id:     id,
		action: action,
		key:    c.sourceFor(action).Key(),
		log: c.log.With(
			zap.String("mutation_id", mutationID),
			zap.String("action", string(action)),
			zap.String("recommendation_id", id),
		),
	}

	c.beforeSend(m)
	c.apply(m)
	result, err := c.send(ctx, m)
	c.onResolve(m, err)

	return result, err
}

func (c *Coordinator) begin(id, mutationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.pending[id]; busy {
		return false
	}
	c.pending[id] = mutationID
	return true
}

func (c *Coordinator) end(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Coordinator) sourceFor(action Action) KeySource {
	if action == ActionUnarchive {
		return c.archived
	}
	return c.active
}

// beforeSend stops any refetch of the displayed list so it cannot overwrite the
// optimistic removal, then captures the value to roll back to.
func (c *Coordinator) beforeSend(m *mutation) {
	if c.cache.Cancel(m.key) {
		m.log.Debug("Cancelled in-flight list fetch", zap.String("query_key", m.key.String()))
	}
	m.snapshot = c.cache.Snapshot(m.key)
}

func (c *Coordinator) apply(m *mutation) {
	m.applied = c.cache.Update(m.key, func(prev any) any {
		pages, ok := prev.(listing.Pages)
		if !ok {
			return prev
		}
		return pages.Without(m.id)
	})
}

func (c *Coordinator) send(ctx context.Context, m *mutation) (*models.MutationResult, error) {
	m.log.Info("Sending mutation")
	if m.action == ActionUnarchive {
		return c.mutator.Unarchive(ctx, m.id)
	}
	return c.mutator.Archive(ctx, m.id)
}

func (c *Coordinator) onResolve(m *mutation, err error) {
	defer c.settle(m)

	if err != nil {
		c.rollback(m)
		metrics.MutationsTotal.WithLabelValues(string(m.action), "error").Inc()
		m.log.Warn("Mutation failed", zap.Error(err))
		c.notifier.Error(failureTitle(m.action), gateway.Message(err))
		return
	}

	metrics.MutationsTotal.WithLabelValues(string(m.action), "success").Inc()
	m.log.Info("Mutation succeeded")
	c.notifier.Success(successTitle(m.action), "")
	if c.panel != nil && c.panel.CloseIf(m.id) {
		m.log.Debug("Closed detail panel for mutated recommendation")
	}
}

// rollback puts the item back where the snapshot had it. Only this item is restored,
// so removals made by other mutations since the snapshot stay in place.
func (c *Coordinator) rollback(m *mutation) {
	if !m.applied || !m.snapshot.HasValue() {
		return
	}

	snap, ok := m.snapshot.Value().(listing.Pages)
	if !ok {
		c.cache.Restore(m.snapshot)
		return
	}
	pageIdx, index, found := snap.Position(m.id)
	if !found {
		return
	}
	rec, _ := snap.Find(m.id)

	c.cache.Update(m.key, func(prev any) any {
		pages, ok := prev.(listing.Pages)
		if !ok || pages.Contains(m.id) {
			return prev
		}
		return pages.Insert(pageIdx, index, rec)
	})
	metrics.MutationRollbacks.WithLabelValues(string(m.action)).Inc()
	m.log.Info("Rolled back optimistic update")
}

// settle runs on success and failure alike so a write whose response was lost still shows up.
func (c *Coordinator) settle(m *mutation) {
	c.cache.Invalidate(query.Key{query.RootRecommendations})
	c.cache.Invalidate(query.Key{query.RootArchivedRecommendations})
	c.cache.Invalidate(query.Key{query.RootTagCounts})
	m.log.Debug("Mutation settled")
}

func successTitle(action Action) string {
	if action == ActionUnarchive {
		return "Unarchived successfully"
	}
	return "Archived successfully"
}

func failureTitle(action Action) string {
	if action == ActionUnarchive {
		return "Failed to unarchive"
	}
	return "Failed to archive"
}
