package authhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerd/brokerd/hook"
	"github.com/brokerd/brokerd/types"
)

func TestHandleAuthenticateAllow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"allow","superuser":true}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.HTTPAuthReq = &ReqConfig{URL: srv.URL, Method: "GET"}
	h := NewHandler(cfg, 100)

	proceed, result := h.handleAuthenticate(context.Background(), hook.Parameter{Id: types.Id{ClientId: "c1"}}, hook.HookResult{})
	require.False(t, proceed)
	assert.Equal(t, types.VerdictAllow, result.Verdict)
	assert.True(t, result.Superuser)
}

func TestHandleAuthenticateDeny(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("deny"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.HTTPAuthReq = &ReqConfig{URL: srv.URL, Method: "GET"}
	h := NewHandler(cfg, 100)

	proceed, result := h.handleAuthenticate(context.Background(), hook.Parameter{Id: types.Id{ClientId: "c1"}}, hook.HookResult{})
	require.False(t, proceed)
	assert.Equal(t, types.VerdictDeny, result.Verdict)
}

func TestHandlePublishAclCachesVerdict(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-Cache", "-1")
		w.Write([]byte("allow"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.HTTPACLReq = &ReqConfig{URL: srv.URL, Method: "GET"}
	h := NewHandler(cfg, 100)

	id := types.Id{ClientId: "c1"}
	p := hook.Parameter{Id: id, Topic: "a/b"}

	proceed, result := h.handlePublishAcl(context.Background(), p, hook.HookResult{})
	require.False(t, proceed)
	assert.Equal(t, types.VerdictAllow, result.Verdict)
	assert.Equal(t, 1, calls)

	// second call must be served from cache, not hit the server again
	proceed, result = h.handlePublishAcl(context.Background(), p, hook.HookResult{})
	require.False(t, proceed)
	assert.Equal(t, types.VerdictAllow, result.Verdict)
	assert.Equal(t, 1, calls)
}

func TestHandleSubscribeAclNeverCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-Cache", "-1")
		w.Write([]byte("allow"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.HTTPACLReq = &ReqConfig{URL: srv.URL, Method: "GET"}
	h := NewHandler(cfg, 100)

	id := types.Id{ClientId: "c1"}
	p := hook.Parameter{Id: id, Topic: "a/b"}

	h.handleSubscribeAcl(context.Background(), p, hook.HookResult{})
	h.handleSubscribeAcl(context.Background(), p, hook.HookResult{})
	assert.Equal(t, 2, calls, "subscribe ACL must not be cached")
}

func TestDisconnectedClearsCache(t *testing.T) {
	cfg := DefaultConfig()
	h := NewHandler(cfg, 100)
	id := types.Id{ClientId: "c1"}
	h.cache.Set(id, "a/b", types.VerdictAllow, -1)
	require.Equal(t, 1, h.cache.Len())

	h.handleDisconnected(context.Background(), hook.Parameter{Id: id}, hook.HookResult{})
	assert.Equal(t, 0, h.cache.Len())
}
