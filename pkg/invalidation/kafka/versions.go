package kafka

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultTrackedScopes = 8192

// scopeVersions remembers the highest applied event version per scope. The
// least recently touched scopes are forgotten first, so a very old scope may
// accept a replayed event once; invalidation is idempotent so that is safe.
type scopeVersions struct {
	mu   sync.Mutex
	seen *lru.Cache[string, uint64]
}

func newScopeVersions(size int) *scopeVersions {
	if size <= 0 {
		size = defaultTrackedScopes
	}
	c, _ := lru.New[string, uint64](size)
	return &scopeVersions{seen: c}
}

// advance records v for scope and reports whether it is newer than anything
// applied before.
func (s *scopeVersions) advance(scope string, v uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.seen.Get(scope); ok && v <= last {
		return false
	}
	s.seen.Add(scope, v)
	return true
}
