package listing

import "sync"

// Sentinel watches the last rendered item. Only the currently attached item can
// trigger, and it triggers once each time it goes from hidden to visible.
type Sentinel struct {
	mu       sync.Mutex
	attached string
	visible  bool
}

// Attach moves the sentinel to id. Re-attaching the same id keeps its visibility.
func (s *Sentinel) Attach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached == id {
		return
	}
	s.attached = id
	s.visible = false
}

// Rearm forgets the attached item's visibility so its next visible report counts as an entry.
func (s *Sentinel) Rearm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
}

func (s *Sentinel) Attached() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// Observe records a visibility change for id and reports whether it is an entry event.
func (s *Sentinel) Observe(id string, visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" || id != s.attached {
		return false
	}
	entered := visible && !s.visible
	s.visible = visible
	return entered
}
