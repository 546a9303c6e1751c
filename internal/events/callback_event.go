package events

// CallbackEvent provides pub/sub behavior with type-safe callbacks.
// Callbacks run synchronously on the notifying goroutine, in registration
// order, so a single producer delivers values to each listener in order.
type CallbackEvent[T any] struct {
	set listenerSet[T, func(T)]
}

// NewCallbackEvent creates a new CallbackEvent instance
// sendLastEventOnListen: if true, new listeners are called immediately with
// the last notified value once Notify has been called at least once
func NewCallbackEvent[T any](sendLastEventOnListen bool) *CallbackEvent[T] {
	e := &CallbackEvent[T]{}
	e.set.sendLastEventOnListen = sendLastEventOnListen
	return e
}

// Listen registers a callback and returns a deregistration function
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("callback cannot be nil")
	}
	id, last, replay := e.set.add(callback)
	if replay {
		callback(last)
	}
	return func() { e.set.remove(id) }
}

// Notify calls every registered callback with value
func (e *CallbackEvent[T]) Notify(value T) {
	for _, callback := range e.set.record(value) {
		callback(value)
	}
}

// ListenerCount returns the current number of registered listeners
func (e *CallbackEvent[T]) ListenerCount() int {
	return e.set.count()
}
