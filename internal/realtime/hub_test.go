package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/protocol"
	"github.com/mcoot/chathub/internal/testutil"
)

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send():
		return msg
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("client %s did not receive message", c.ID())
		return nil
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send():
		t.Fatalf("client %s unexpectedly received %s", c.ID(), msg)
	default:
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	client := NewClient("c1")

	hub.Register(client)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister("c1")
	assert.Equal(t, 0, hub.ClientCount())

	_, ok := <-client.Send()
	assert.False(t, ok, "send channel should be closed")

	// unregistering twice is harmless
	hub.Unregister("c1")
}

func TestHub_SendToGroupExcludes(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	a, b, c := NewClient("a"), NewClient("b"), NewClient("c")
	for _, cl := range []*Client{a, b, c} {
		hub.Register(cl)
	}
	group := model.RoomID(1).GroupName()
	hub.AddToGroup(group, "a")
	hub.AddToGroup(group, "b")

	sent := hub.SendToGroup(group, []byte("hi"), "a")

	assert.Equal(t, 1, sent)
	assert.Equal(t, "hi", string(receive(t, b)))
	assertNothing(t, a)
	assertNothing(t, c)
}

func TestHub_UnregisterLeavesGroups(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	hub.Register(NewClient("a"))
	hub.AddToGroup("g", "a")
	require.Equal(t, 1, hub.GroupSize("g"))

	hub.Unregister("a")
	assert.Equal(t, 0, hub.GroupSize("g"))
}

func TestHub_RemoveFromGroup(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	a := NewClient("a")
	hub.Register(a)
	hub.AddToGroup("g", "a")
	hub.RemoveFromGroup("g", "a")

	assert.Equal(t, 0, hub.SendToGroup("g", []byte("x")))
	assertNothing(t, a)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	a := NewClient("a")
	hub.Register(a)

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, hub.SendTo("a", []byte("x")))
	}
	assert.False(t, hub.SendTo("a", []byte("overflow")))
	assert.False(t, hub.SendTo("missing", []byte("x")))
}

func TestHub_BroadcastEncodesFrame(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	a := NewClient("a")
	hub.Register(a)
	hub.AddToGroup("g", "a")

	err := hub.Broadcast("g", protocol.MethodRecvChatRoomNoti, protocol.BCRecvChatRoomNoti{
		Infos: []protocol.ChatInfo{{Type: "enter", PlayerNo: 3}},
	})
	require.NoError(t, err)

	var f protocol.Frame
	require.NoError(t, json.Unmarshal(receive(t, a), &f))
	assert.Equal(t, int64(0), f.ID)
	assert.Equal(t, protocol.MethodRecvChatRoomNoti, f.Method)
}

func TestHub_RegisterReplacesClient(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	first := NewClient("a")
	hub.Register(first)
	hub.Register(NewClient("a"))

	_, ok := <-first.Send()
	assert.False(t, ok)
	assert.Equal(t, 1, hub.ClientCount())
}
