package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_LocalDispatch(t *testing.T) {
	bus := NewBus(nil)

	var got []*Event
	bus.Subscribe(func(ev *Event) {
		got = append(got, ev)
	})

	bus.Publish(context.Background(), "d_a:b", []string{"a", "b"})

	require.Len(t, got, 1)
	assert.Equal(t, "d_a:b", got[0].ConversationId)
	assert.Equal(t, []string{"a", "b"}, got[0].MemberIds)
	assert.NotEmpty(t, got[0].Origin, "events carry the publishing instance id")
}

func TestBus_AllHandlersSeeEveryEvent(t *testing.T) {
	bus := NewBus(nil)

	calls := make([]int, 2)
	bus.Subscribe(func(*Event) { calls[0]++ })
	bus.Subscribe(func(*Event) { calls[1]++ })

	bus.Publish(context.Background(), "g_1", []string{"a"})
	bus.Publish(context.Background(), "g_2", []string{"b"})

	assert.Equal(t, []int{2, 2}, calls)
}

func TestBus_NoRedisIsHarmless(t *testing.T) {
	bus := NewBus(nil)

	// Run and Close are no-ops without a Redis client
	assert.NotPanics(t, func() {
		bus.Run(context.Background())
		bus.Publish(context.Background(), "g_1", nil)
		bus.Close()
	})
}
