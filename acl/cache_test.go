package acl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brokerd/brokerd/types"
)

func TestCacheGetSetExpiry(t *testing.T) {
	c := NewCache()
	id := types.Id{ClientId: "c1"}

	_, ok := c.Get(id, "a/b")
	assert.False(t, ok)

	c.Set(id, "a/b", types.VerdictAllow, -1)
	e, ok := c.Get(id, "a/b")
	assert.True(t, ok)
	assert.Equal(t, types.VerdictAllow, e.Verdict)

	c.Set(id, "x/y", types.VerdictDeny, 1)
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get(id, "x/y")
	assert.False(t, ok, "short TTL entry should expire")
}

func TestCacheRemove(t *testing.T) {
	c := NewCache()
	id := types.Id{ClientId: "c1"}
	c.Set(id, "a/b", types.VerdictAllow, -1)
	assert.Equal(t, 1, c.Len())
	c.Remove(id)
	assert.Equal(t, 0, c.Len())
}

func TestSubstituteHTTPBlanksACLFieldsOutsideContext(t *testing.T) {
	out := SubstituteHTTP("user=%u acl=%A topic=%t", Placeholders{Username: "bob"})
	assert.Equal(t, "user=bob acl= topic=", out)
}

func TestSubstituteHTTPWithACLContext(t *testing.T) {
	out := SubstituteHTTP("acl=%A topic=%t", Placeholders{
		AccessType: types.ACLTypePublish,
		Topic:      "a/b",
	})
	assert.Equal(t, "acl=2 topic=a/b", out)
}

func TestSubstituteJWT(t *testing.T) {
	out := SubstituteJWT("${clientid}:${username}", Placeholders{ClientId: "c1", Username: "bob"})
	assert.Equal(t, "c1:bob", out)
}
