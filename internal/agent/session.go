package agent

import (
	"sync"

	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/urlutil"
)

// Session is the explicit per-page cache of already-collected images:
// normalized image URL -> {file_hash, r2_path}. It is populated once when
// the session opens and kept current by completed capture/delete
// workflows; it is never re-synced, so staleness after external changes is
// an accepted limitation.
//
// The local lookup is the only dedup enforcement point. It is page-scoped
// by design: perfect cross-page dedup is traded for one cheap lookup per
// page load.
type Session struct {
	pageURL string

	mu        sync.RWMutex
	collected map[string]domain.CollectedImage
}

// NewSession creates an empty session bound to a normalized page URL. Use
// Agent.OpenSession to get one warmed from the metadata store.
func NewSession(pageURL string) *Session {
	return &Session{
		pageURL:   urlutil.Normalize(pageURL),
		collected: make(map[string]domain.CollectedImage),
	}
}

// PageURL returns the normalized page URL this session is bound to.
func (s *Session) PageURL() string {
	return s.pageURL
}

// Lookup reports whether the normalized image URL is already collected.
func (s *Session) Lookup(imageURL string) (domain.CollectedImage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ci, ok := s.collected[urlutil.Normalize(imageURL)]
	return ci, ok
}

// Remember records a successful capture.
func (s *Session) Remember(imageURL string, ci domain.CollectedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collected[urlutil.Normalize(imageURL)] = ci
}

// Forget evicts an image after a successful delete.
func (s *Session) Forget(imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collected, urlutil.Normalize(imageURL))
}

// Len returns the number of collected entries.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collected)
}

// replace swaps the whole collected set, used when warming the session.
func (s *Session) replace(images []domain.CollectedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collected = make(map[string]domain.CollectedImage, len(images))
	for _, img := range images {
		s.collected[urlutil.Normalize(img.OriginalURL)] = img
	}
}
