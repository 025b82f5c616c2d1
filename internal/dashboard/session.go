package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/archive"
	"github.com/aws-agent/console/internal/filters"
	"github.com/aws-agent/console/internal/gateway"
	"github.com/aws-agent/console/internal/listing"
	"github.com/aws-agent/console/internal/query"
	"github.com/aws-agent/console/internal/storage/models"
	"github.com/aws-agent/console/internal/storage/sqlite"
	"github.com/aws-agent/console/pkg/logger"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotFound is returned when a recommendation is not among the loaded items of the current view.
	ErrNotFound = errors.New("recommendation not found in the current list")
)

type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type SessionStore interface {
	SaveSession(ctx context.Context, session *models.Session) error
	LoadSession(ctx context.Context) (*models.Session, error)
	DeleteSession(ctx context.Context) error
}

// History keeps settled mutations. Optional.
type History interface {
	RecordMutation(ctx context.Context, record *models.MutationRecord) error
	RecentMutations(ctx context.Context, limit int) ([]models.MutationRecord, error)
}

type Deps struct {
	Cache       *query.Cache
	Filters     *filters.Store
	Active      *listing.Controller
	Archived    *listing.Controller
	Coordinator *archive.Coordinator
	Panel       *Panel
	Auth        Authenticator
	Sessions    SessionStore
	History     History
}

type Info struct {
	Authenticated bool             `json:"authenticated"`
	Username      string           `json:"username,omitempty"`
	View          listing.ViewKind `json:"view"`
}

// Session is the single dashboard session of the process: the route being shown,
// the login, and every component that lives as long as the login does.
type Session struct {
	cache       *query.Cache
	filters     *filters.Store
	active      *listing.Controller
	archived    *listing.Controller
	coordinator *archive.Coordinator
	panel       *Panel
	auth        Authenticator
	sessions    SessionStore
	history     History
	log         *zap.Logger

	mu            sync.RWMutex
	view          listing.ViewKind
	authenticated bool
	username      string
}

func New(deps Deps) *Session {
	panel := deps.Panel
	if panel == nil {
		panel = NewPanel()
	}
	return &Session{
		cache:       deps.Cache,
		filters:     deps.Filters,
		active:      deps.Active,
		archived:    deps.Archived,
		coordinator: deps.Coordinator,
		panel:       panel,
		auth:        deps.Auth,
		sessions:    deps.Sessions,
		history:     deps.History,
		log:         logger.Named("dashboard"),
		view:        listing.ViewActive,
	}
}

// Restore picks up a login persisted by an earlier run.
func (s *Session) Restore(ctx context.Context) error {
	stored, err := s.sessions.LoadSession(ctx)
	if errors.Is(err, sqlite.ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	s.mu.Lock()
	s.authenticated = stored.Token != ""
	s.username = stored.Username
	s.mu.Unlock()

	s.log.Info("Restored session", zap.String("username", stored.Username))
	return nil
}

func (s *Session) Login(ctx context.Context, username, password string) error {
	token, err := s.auth.Login(ctx, username, password)
	if err != nil {
		s.log.Warn("Login failed", zap.String("username", username), zap.Error(err))
		return err
	}

	err = s.sessions.SaveSession(ctx, &models.Session{Username: username, Token: token, CreatedAt: time.Now()})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.authenticated = true
	s.username = username
	s.mu.Unlock()

	s.log.Info("Logged in", zap.String("username", username))
	return nil
}

// Logout forgets the token and every piece of state derived under it.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.sessions.DeleteSession(ctx); err != nil {
		return err
	}

	s.cache.Clear()
	s.filters.Reset()
	s.panel.Close()

	s.mu.Lock()
	username := s.username
	s.authenticated = false
	s.username = ""
	s.view = listing.ViewActive
	s.mu.Unlock()

	s.log.Info("Logged out", zap.String("username", username))
	return nil
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{Authenticated: s.authenticated, Username: s.username, View: s.view}
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) View() listing.ViewKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// SetView switches route. Leaving a route clears the tag selection and closes the
// detail panel; the search term is kept.
func (s *Session) SetView(view listing.ViewKind) {
	s.mu.Lock()
	changed := s.view != view
	s.view = view
	s.mu.Unlock()

	if !changed {
		return
	}
	s.filters.ClearAllFilters()
	s.panel.Close()
	s.log.Debug("View changed", zap.String("view", string(view)))
}

// Controller returns the list controller for view.
func (s *Session) Controller(view listing.ViewKind) *listing.Controller {
	if view == listing.ViewArchived {
		return s.archived
	}
	return s.active
}

func (s *Session) Filters() *filters.Store {
	return s.filters
}

func (s *Session) Coordinator() *archive.Coordinator {
	return s.coordinator
}

// OpenDetail shows id from the items loaded for the current view.
func (s *Session) OpenDetail(id string) (models.Recommendation, error) {
	rec, ok := s.Controller(s.View()).Find(id)
	if !ok {
		return models.Recommendation{}, ErrNotFound
	}
	s.panel.Show(rec)
	return rec, nil
}

func (s *Session) CloseDetail() {
	s.panel.Close()
}

func (s *Session) Detail() (models.Recommendation, bool) {
	return s.panel.Current()
}

func (s *Session) Archive(ctx context.Context, id string) (*models.MutationResult, error) {
	return s.mutate(ctx, archive.ActionArchive, id)
}

func (s *Session) Unarchive(ctx context.Context, id string) (*models.MutationResult, error) {
	return s.mutate(ctx, archive.ActionUnarchive, id)
}

func (s *Session) mutate(ctx context.Context, action archive.Action, id string) (*models.MutationResult, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	start := time.Now()
	var (
		result *models.MutationResult
		err    error
	)
	if action == archive.ActionUnarchive {
		result, err = s.coordinator.Unarchive(ctx, id)
	} else {
		result, err = s.coordinator.Archive(ctx, id)
	}

	if errors.Is(err, archive.ErrMutationPending) {
		return nil, err
	}
	s.record(action, id, time.Since(start), err)
	return result, err
}

func (s *Session) record(action archive.Action, id string, latency time.Duration, err error) {
	if s.history == nil {
		return
	}

	record := &models.MutationRecord{
		ID:               uuid.New().String(),
		RecommendationID: id,
		Action:           string(action),
		Success:          err == nil,
		LatencyMS:        latency.Milliseconds(),
		CreatedAt:        time.Now(),
	}
	if err != nil {
		record.Message = gateway.Message(err)
	}

	// The request context may already be cancelled once the mutation settles.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if recErr := s.history.RecordMutation(ctx, record); recErr != nil {
		s.log.Warn("Failed to record mutation", zap.String("recommendation_id", id), zap.Error(recErr))
	}
}

// RecentMutations lists settled mutations, newest first.
func (s *Session) RecentMutations(ctx context.Context, limit int) ([]models.MutationRecord, error) {
	if s.history == nil {
		return []models.MutationRecord{}, nil
	}
	return s.history.RecentMutations(ctx, limit)
}
