package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelEvent(t *testing.T) {
	event := NewChannelEvent[[]string](true)
	require.NotNil(t, event)
	assert.Equal(t, 0, event.ListenerCount())
}

func TestChannelEvent_Listen_Notify_Basic(t *testing.T) {
	event := NewChannelEvent[[]string](false)

	ch := make(chan []string, 10)
	unregister := event.Listen(ch)
	assert.Equal(t, 1, event.ListenerCount())

	event.Notify([]string{"AA:BB"})
	event.Notify([]string{"AA:BB", "CC:DD"})

	assert.Equal(t, []string{"AA:BB"}, <-ch)
	assert.Equal(t, []string{"AA:BB", "CC:DD"}, <-ch)

	unregister()
	event.Notify([]string{"EE:FF"})
	assert.Len(t, ch, 0)
}

func TestChannelEvent_SendLastEventOnListen(t *testing.T) {
	event := NewChannelEvent[int](true)

	early := make(chan int, 10)
	event.Listen(early)
	assert.Len(t, early, 0)

	event.Notify(7)
	assert.Equal(t, 7, <-early)

	late := make(chan int, 10)
	event.Listen(late)
	require.Len(t, late, 1)
	assert.Equal(t, 7, <-late)
}

func TestChannelEvent_SendLastEventOnListen_False(t *testing.T) {
	event := NewChannelEvent[int](false)
	event.Notify(3)

	ch := make(chan int, 1)
	event.Listen(ch)
	assert.Len(t, ch, 0)
}

func TestChannelEvent_Listen_NilChannel(t *testing.T) {
	event := NewChannelEvent[int](false)
	assert.Panics(t, func() {
		event.Listen(nil)
	})
}

func TestChannelEvent_FullChannel(t *testing.T) {
	event := NewChannelEvent[int](false)

	full := make(chan int, 1)
	roomy := make(chan int, 5)
	event.Listen(full)
	event.Listen(roomy)

	event.Notify(1)
	event.Notify(2)
	event.Notify(3)

	assert.Equal(t, 1, <-full)
	assert.Len(t, full, 0)
	assert.Len(t, roomy, 3)
}

func TestChannelEvent_ConcurrentAccess(t *testing.T) {
	event := NewChannelEvent[int](true)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			event.Notify(v)
		}(i)
		go func() {
			defer wg.Done()
			ch := make(chan int, 1)
			unregister := event.Listen(ch)
			unregister()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, event.ListenerCount())

	// at least one Notify happened, so a new listener gets a replay
	ch := make(chan int, 1)
	event.Listen(ch)
	assert.Len(t, ch, 1)
}
