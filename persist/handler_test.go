package persist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerd/brokerd/hook"
	"github.com/brokerd/brokerd/session"
	"github.com/brokerd/brokerd/types"
)

func TestHandleOfflineMessageAppends(t *testing.T) {
	backend := NewMemoryBackend()
	h := NewHandler(backend, nil, nil, 0, nil)

	ctx := context.Background()
	p := hook.Parameter{
		Id:      types.Id{ClientId: "c1"},
		Publish: &types.Publish{Topic: "a/b"},
	}
	proceed, _ := h.handleOfflineMessage(ctx, p, hook.HookResult{})
	assert.True(t, proceed)

	proceed, _ = h.handleOfflineMessage(ctx, p, hook.HookResult{})
	assert.True(t, proceed)

	msgs, err := backend.Offline().Load(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestHandleOfflineMessageDropsOldestWhenFull(t *testing.T) {
	backend := NewMemoryBackend()
	h := NewHandler(backend, nil, nil, 2, nil)

	ctx := context.Background()
	for i, topic := range []string{"a", "b", "c"} {
		p := hook.Parameter{
			Id:      types.Id{ClientId: "c1"},
			Publish: &types.Publish{Topic: topic},
		}
		proceed, _ := h.handleOfflineMessage(ctx, p, hook.HookResult{})
		assert.True(t, proceed, "message %d", i)
	}

	msgs, err := backend.Offline().Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Publish.Topic)
	assert.Equal(t, "c", msgs[1].Publish.Topic)
}

func TestHandleOfflineInflightStoresOnRecord(t *testing.T) {
	backend := NewMemoryBackend()
	h := NewHandler(backend, nil, nil, 0, nil)

	ctx := context.Background()
	p := hook.Parameter{
		Id:    types.Id{ClientId: "c1"},
		Extra: []session.InflightMessage{{PacketID: 1}},
	}
	proceed, _ := h.handleOfflineInflight(ctx, p, hook.HookResult{})
	assert.True(t, proceed)

	rec, err := backend.Sessions().Load(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, rec.InflightOut, 1)
}

func TestRebuildOfflineSessionsDropsExpiredAndRestartsLive(t *testing.T) {
	backend := NewMemoryBackend()
	restarter := &fakeRestarter{}
	rb := NewRebuilder(restarter, nil)
	defer rb.Close()

	ctx := context.Background()
	now := nowMillis()

	require.NoError(t, backend.Sessions().Save(ctx, "alive", SessionRecord{
		ClientId:   "alive",
		LastUpdate: now,
		Disconnect: types.NewDisconnectInfo("normal"),
	}))
	require.NoError(t, backend.Sessions().Save(ctx, "dead", SessionRecord{
		ClientId:   "dead",
		LastUpdate: now - 1000*3600*24,
		Disconnect: &types.DisconnectInfo{DisconnectedAt: now - 1000*3600*24},
	}))
	require.NoError(t, backend.Offline().Save(ctx, "alive", []OfflineMessage{
		{Publish: types.Publish{Topic: "x"}},
	}))

	h := NewHandler(backend, rb, FixedFitter(time.Hour), 0, nil)
	h.rebuildOfflineSessions(ctx)

	assert.Equal(t, []string{"alive"}, restarter.names())

	_, err := backend.Sessions().Load(ctx, "dead")
	assert.Error(t, err)
	_, err = backend.Sessions().Load(ctx, "alive")
	assert.Error(t, err) // consumed during rebuild
}
