package events

// ChannelEvent provides pub/sub behavior using channels.
// Sends never block: a listener whose channel is full misses that value.
type ChannelEvent[T any] struct {
	set listenerSet[T, chan<- T]
}

// NewChannelEvent creates a new ChannelEvent instance
// sendLastEventOnListen: if true, the last notified value is sent to new
// listeners once Notify has been called at least once
func NewChannelEvent[T any](sendLastEventOnListen bool) *ChannelEvent[T] {
	e := &ChannelEvent[T]{}
	e.set.sendLastEventOnListen = sendLastEventOnListen
	return e
}

// Listen registers a channel and returns a deregistration function
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("channel cannot be nil")
	}
	id, last, replay := e.set.add(ch)
	if replay {
		trySend(ch, last)
	}
	return func() { e.set.remove(id) }
}

// Notify sends value to every registered channel
func (e *ChannelEvent[T]) Notify(value T) {
	for _, ch := range e.set.record(value) {
		trySend(ch, value)
	}
}

// ListenerCount returns the current number of registered listeners
func (e *ChannelEvent[T]) ListenerCount() int {
	return e.set.count()
}

func trySend[T any](ch chan<- T, value T) {
	select {
	case ch <- value:
	default:
	}
}
