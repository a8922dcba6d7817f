package core

import "sync"

// Observer is an in-process subscriber to relay events, such as a spectator connection.
type Observer struct {
	ID     string
	Events chan *Event
}

// NewObserver constructs an observer with a buffered event channel.
func NewObserver(id string, buffer int) *Observer {
	if buffer <= 0 {
		buffer = 32
	}
	return &Observer{
		ID:     id,
		Events: make(chan *Event, buffer),
	}
}

// Observers fans events out to every subscribed observer.
type Observers struct {
	mu        sync.RWMutex
	observers map[*Observer]struct{}
}

// NewObservers constructs an empty observer set.
func NewObservers() *Observers {
	return &Observers{observers: make(map[*Observer]struct{})}
}

// Add subscribes o. Returns true if newly added.
func (s *Observers) Add(o *Observer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.observers[o]; exists {
		return false
	}
	s.observers[o] = struct{}{}
	return true
}

// Remove unsubscribes o. Returns true if removed.
func (s *Observers) Remove(o *Observer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.observers[o]; !exists {
		return false
	}
	delete(s.observers, o)
	return true
}

// Broadcast sends an event to all observers.
func (s *Observers) Broadcast(ev *Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for o := range s.observers {
		select {
		case o.Events <- ev:
		default:
			// Drop if slow consumer.
		}
	}
}

// Len returns the number of subscribed observers.
func (s *Observers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// Fanout combines listeners into one.
func Fanout(listeners ...Listener) Listener {
	return func(ev *Event) {
		for _, l := range listeners {
			if l != nil {
				l(ev)
			}
		}
	}
}
