package session

import "sync"

// Chrome is page furniture hidden while a quiz is being taken, such as the navigation bar.
type Chrome interface {
	Hide()
	Restore()
}

// Scope owns the resources a session acquires on entry and releases them exactly once, in reverse order,
// whichever exit path closes it first.
type Scope struct {
	mu       sync.Mutex
	closed   bool
	releases []func()
}

// Acquire runs acquire and registers release. Nothing is acquired on a closed scope.
func (s *Scope) Acquire(acquire, release func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if acquire != nil {
		acquire()
	}
	if release != nil {
		s.releases = append(s.releases, release)
	}
	return true
}

// Defer registers release only.
func (s *Scope) Defer(release func()) bool {
	return s.Acquire(nil, release)
}

func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}

func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type noopChrome struct{}

func (noopChrome) Hide()    {}
func (noopChrome) Restore() {}
