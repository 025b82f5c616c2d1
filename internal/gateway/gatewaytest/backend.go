// Package gatewaytest provides an in-memory recommendations backend for tests.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws-agent/console/internal/storage/models"
)

// Backend serves the list, mutation and login endpoints over records held in memory.
// Cursors are offsets into the filtered list.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	records   []models.Recommendation
	users     map[string]string
	token     string
	failures  map[string]int
	requests  []string
	mutations chan struct{}
}

func NewBackend(t testing.TB, records ...models.Recommendation) *Backend {
	b := &Backend{
		records:  append([]models.Recommendation{}, records...),
		users:    map[string]string{"alice": "secret"},
		token:    "token-alice",
		failures: map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", b.login)
	mux.HandleFunc("/api/recommendations", b.list)
	mux.HandleFunc("/api/recommendations/", b.recommendation)
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the base URL to configure the gateway with.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

func (b *Backend) Token() string {
	return b.token
}

// FailWith makes the next request to path answer with status.
func (b *Backend) FailWith(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = status
}

// HoldMutations blocks archive and unarchive until the returned function is called.
func (b *Backend) HoldMutations() func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.mutations = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.mutations == ch {
				b.mutations = nil
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.requests...)
}

func (b *Backend) Status(id string) models.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range b.records {
		if rec.RecommendationID == id {
			return rec.Status
		}
	}
	return ""
}

func (b *Backend) failure(r *http.Request) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, r.Method+" "+r.URL.RequestURI())
	status, ok := b.failures[r.URL.Path]
	if ok {
		delete(b.failures, r.URL.Path)
	}
	return status, ok
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	if status, ok := b.failure(r); ok {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}
	if b.users[creds.Username] != creds.Password || creds.Password == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": b.token})
}

func (b *Backend) list(w http.ResponseWriter, r *http.Request) {
	if status, ok := b.failure(r); ok {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}
	b.serveList(w, r, models.StatusOpen)
}

func (b *Backend) recommendation(w http.ResponseWriter, r *http.Request) {
	if status, ok := b.failure(r); ok {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/recommendations/")
	if rest == "archive" && r.Method == http.MethodGet {
		b.serveList(w, r, models.StatusArchived)
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || r.Method != http.MethodPost {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+b.token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}

	b.mu.Lock()
	hold := b.mutations
	b.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	id, action := parts[0], parts[1]
	target := models.StatusArchived
	if action == "unarchive" {
		target = models.StatusOpen
	} else if action != "archive" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.records {
		if b.records[i].RecommendationID != id {
			continue
		}
		b.records[i].Status = target
		rec := b.records[i]
		writeJSON(w, http.StatusOK, models.MutationResult{Message: "Recommendation " + action + "d", Recommendation: &rec})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Recommendation not found"})
}

func (b *Backend) serveList(w http.ResponseWriter, r *http.Request, status models.Status) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	var tags []string
	if raw := q.Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	b.mu.Lock()
	matched := []models.Recommendation{}
	for _, rec := range b.records {
		if rec.Status != status && !(status == models.StatusOpen && rec.Status == "") {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.Title), search) {
			continue
		}
		if !hasAll(rec, tags) {
			continue
		}
		matched = append(matched, rec)
	}
	b.mu.Unlock()

	offset, _ := strconv.Atoi(q.Get("cursor"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset = min(offset, len(matched))
	end := min(offset+limit, len(matched))

	page := models.Page{
		Data:          matched[offset:end],
		Pagination:    models.Pagination{TotalItems: len(matched)},
		AvailableTags: availableTags(matched),
	}
	if end < len(matched) {
		next := strconv.Itoa(end)
		page.Pagination.Cursor.Next = &next
	}
	writeJSON(w, http.StatusOK, page)
}

func hasAll(rec models.Recommendation, tags []string) bool {
	have := map[string]bool{}
	for _, p := range rec.Provider {
		have[p.Name()] = true
	}
	for _, f := range rec.Frameworks {
		have[f.Name] = true
	}
	for _, reason := range rec.Reasons {
		have[reason] = true
	}
	if label := rec.Class.Label(); label != "" {
		have[label] = true
	}
	for _, tag := range tags {
		if !have[tag] {
			return false
		}
	}
	return true
}

func availableTags(records []models.Recommendation) *models.AvailableTags {
	tags := &models.AvailableTags{}
	seen := map[string]bool{}
	add := func(dst *[]string, dim, v string) {
		if v == "" || seen[dim+v] {
			return
		}
		seen[dim+v] = true
		*dst = append(*dst, v)
	}
	for _, rec := range records {
		for _, p := range rec.Provider {
			add(&tags.Providers, "p", p.Name())
		}
		for _, f := range rec.Frameworks {
			add(&tags.Frameworks, "f", f.Name)
		}
		add(&tags.Classes, "c", rec.Class.Label())
		for _, reason := range rec.Reasons {
			add(&tags.Reasons, "r", reason)
		}
	}
	return tags
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
