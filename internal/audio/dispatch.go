// SPDX-License-Identifier: MIT
package audio

import (
	"sync"
	"sync/atomic"

	"spectrum/internal/analysis"
)

// listenerSet is the copy-on-write listener list shared by the sources.
// deliver runs on the audio goroutine and never takes the mutex, so
// listeners may add or remove themselves (or detach an analyser) without
// deadlocking against an in-flight block.
type listenerSet struct {
	mu   sync.Mutex
	list atomic.Pointer[[]analysis.SampleListener]
}

func (s *listenerSet) add(l analysis.SampleListener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	for _, existing := range current {
		if existing == l {
			return
		}
	}
	next := make([]analysis.SampleListener, len(current), len(current)+1)
	copy(next, current)
	next = append(next, l)
	s.list.Store(&next)
}

func (s *listenerSet) remove(l analysis.SampleListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	for i, existing := range current {
		if existing == l {
			next := make([]analysis.SampleListener, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			s.list.Store(&next)
			return
		}
	}
}

// removeAll empties the set and tells every removed listener that
// implements analysis.SourceRemovedListener, outside the mutex.
func (s *listenerSet) removeAll() {
	s.mu.Lock()
	removed := s.load()
	empty := []analysis.SampleListener{}
	s.list.Store(&empty)
	s.mu.Unlock()

	for _, l := range removed {
		if r, ok := l.(analysis.SourceRemovedListener); ok {
			r.SourceRemoved()
		}
	}
}

func (s *listenerSet) load() []analysis.SampleListener {
	if p := s.list.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *listenerSet) len() int {
	return len(s.load())
}

func (s *listenerSet) deliver(left, right []float32) {
	for _, l := range s.load() {
		l.Samples(left, right)
	}
}
