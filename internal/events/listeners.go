package events

import "sync"

type entry[L any] struct {
	id       uint64
	listener L
}

// listenerSet keeps listeners in registration order together with the last
// notified value, shared by CallbackEvent and ChannelEvent.
type listenerSet[T any, L any] struct {
	mu                    sync.RWMutex
	entries               []entry[L]
	nextID                uint64
	sendLastEventOnListen bool
	lastEvent             T
	hasNotified           bool
}

// add registers a listener and returns its id plus the last event, if one
// should be replayed to the new listener
func (s *listenerSet[T, L]) add(listener L) (uint64, T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.entries = append(s.entries, entry[L]{id: id, listener: listener})
	return id, s.lastEvent, s.sendLastEventOnListen && s.hasNotified
}

func (s *listenerSet[T, L]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

// record stores value as the last event and returns a snapshot of the
// listeners to call outside the lock
func (s *listenerSet[T, L]) record(value T) []L {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendLastEventOnListen {
		s.lastEvent = value
		s.hasNotified = true
	}
	snapshot := make([]L, len(s.entries))
	for i, e := range s.entries {
		snapshot[i] = e.listener
	}
	return snapshot
}

func (s *listenerSet[T, L]) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
