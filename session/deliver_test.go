package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brokerd/brokerd/types"
)

func TestDeliverQueuePushDropsWhenFull(t *testing.T) {
	q := NewDeliverQueue(2)
	assert.True(t, q.Push(DeliverItem{Publish: types.Publish{Topic: "a"}}))
	assert.True(t, q.Push(DeliverItem{Publish: types.Publish{Topic: "b"}}))
	assert.False(t, q.Push(DeliverItem{Publish: types.Publish{Topic: "c"}}))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, int64(1), q.Dropped())
}

func TestDeliverQueueDropOldest(t *testing.T) {
	q := NewDeliverQueue(2)
	q.SetDropOldest(true)
	q.Push(DeliverItem{Publish: types.Publish{Topic: "a"}})
	q.Push(DeliverItem{Publish: types.Publish{Topic: "b"}})
	assert.True(t, q.Push(DeliverItem{Publish: types.Publish{Topic: "c"}}))

	items := q.Drain()
	if assert.Len(t, items, 2) {
		assert.Equal(t, "b", items[0].Publish.Topic)
		assert.Equal(t, "c", items[1].Publish.Topic)
	}
	assert.Equal(t, 0, q.Len())
}

func TestSessionAuthAndDisconnectInfo(t *testing.T) {
	s := New("client-1", true, 60, 5)

	assert.Nil(t, s.GetAuthInfo())
	info := &types.AuthInfo{Superuser: true}
	s.SetAuthInfo(info)
	assert.Equal(t, info, s.GetAuthInfo())

	assert.Nil(t, s.GetDisconnectInfo())
	s.SetDisconnectInfo(types.NewDisconnectInfo("normal"))
	assert.Equal(t, "normal", s.GetDisconnectInfo().Reason)

	assert.Empty(t, s.OutInflight())
	s.SetOutInflight([]InflightMessage{{PacketID: 1}})
	assert.Len(t, s.OutInflight(), 1)
}
