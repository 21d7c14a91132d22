package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Reactions(t *testing.T) {
	msg := &Message{Id: "m1"}

	assert.Empty(t, msg.GetReactions())

	msg.SetReactions(map[string]string{"alice": "👍", "bob": "❤️"})
	got := msg.GetReactions()
	assert.Equal(t, "👍", got["alice"])
	assert.Equal(t, "❤️", got["bob"])

	// Clearing the last reaction drops the column entirely
	msg.SetReactions(map[string]string{})
	assert.Nil(t, msg.Reactions)
	assert.Empty(t, msg.GetReactions())
}

func TestMessage_OrderedBefore(t *testing.T) {
	a := &Message{Id: "00000000000000000001", CreatedAt: 100}
	b := &Message{Id: "00000000000000000002", CreatedAt: 200}
	assert.True(t, a.OrderedBefore(b))
	assert.False(t, b.OrderedBefore(a))

	// Same timestamp falls back to id order
	c := &Message{Id: "00000000000000000003", CreatedAt: 100}
	assert.True(t, a.OrderedBefore(c))
	assert.False(t, c.OrderedBefore(a))
}

func TestMessage_TombstoneShape(t *testing.T) {
	msg := &Message{Id: "m1", ConversationId: "d_a:b", SenderId: "a", Text: "", Deleted: true, CreatedAt: 100}

	info := msg.ToMessageInfo()
	assert.True(t, info.Deleted)
	assert.Empty(t, info.Text)
	assert.Equal(t, "m1", info.Id)
	assert.Equal(t, "a", info.SenderId)
	assert.Equal(t, int64(100), info.CreatedAt)
}
