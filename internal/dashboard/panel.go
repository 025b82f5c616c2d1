package dashboard

import (
	"sync"

	"github.com/aws-agent/console/internal/storage/models"
)

// Panel is the detail view of one recommendation.
type Panel struct {
	mu      sync.RWMutex
	current *models.Recommendation
}

func NewPanel() *Panel {
	return &Panel{}
}

func (p *Panel) Show(rec models.Recommendation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &rec
}

func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
}

// CloseIf closes the panel when it shows id.
func (p *Panel) CloseIf(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.RecommendationID != id {
		return false
	}
	p.current = nil
	return true
}

// Current returns a copy of the shown recommendation.
func (p *Panel) Current() (models.Recommendation, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return models.Recommendation{}, false
	}
	return *p.current, true
}
