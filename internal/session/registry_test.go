package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testSession(id string) *Session {
	return &Session{ID: id, Send: make(chan []byte, 8)}
}

func TestRegistry_BindAndLookup(t *testing.T) {
	r := NewRegistry()
	s := testSession("s1")

	_, ok := r.Identity(s)
	require.False(t, ok)

	r.Bind("alice", s)

	name, ok := r.Identity(s)
	require.True(t, ok)
	require.Equal(t, "alice", name)

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	require.Same(t, s, got)
}

func TestRegistry_LastBindWins(t *testing.T) {
	r := NewRegistry()
	old := testSession("s1")
	fresh := testSession("s2")

	r.Bind("alice", old)
	r.Bind("alice", fresh)

	// The replaced session no longer resolves to any identity.
	_, ok := r.Identity(old)
	require.False(t, ok)

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	require.Same(t, fresh, got)
	require.Equal(t, 1, r.Count())
}

func TestRegistry_RebindSameSessionNewName(t *testing.T) {
	r := NewRegistry()
	s := testSession("s1")

	r.Bind("alice", s)
	r.Bind("bob", s)

	_, ok := r.Lookup("alice")
	require.False(t, ok)

	name, ok := r.Identity(s)
	require.True(t, ok)
	require.Equal(t, "bob", name)
	require.Equal(t, 1, r.Count())
}

func TestRegistry_Unbind(t *testing.T) {
	r := NewRegistry()
	s := testSession("s1")
	r.Bind("alice", s)

	name, ok := r.Unbind(s)
	require.True(t, ok)
	require.Equal(t, "alice", name)

	_, ok = r.Lookup("alice")
	require.False(t, ok)

	_, ok = r.Unbind(s)
	require.False(t, ok)
}

func TestRegistry_UnbindStaleSessionKeepsFreshBinding(t *testing.T) {
	// A replaced session disconnecting later must not evict the fresh
	// binding for the same username.
	r := NewRegistry()
	old := testSession("s1")
	fresh := testSession("s2")

	r.Bind("alice", old)
	r.Bind("alice", fresh)

	_, ok := r.Unbind(old)
	require.False(t, ok)

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	require.Same(t, fresh, got)
}

func TestRegistry_AllOrdered(t *testing.T) {
	r := NewRegistry()
	r.Bind("carol", testSession("s3"))
	r.Bind("alice", testSession("s1"))
	r.Bind("bob", testSession("s2"))

	entries := r.All()
	require.Len(t, entries, 3)
	require.Equal(t, "alice", entries[0].Username)
	require.Equal(t, "bob", entries[1].Username)
	require.Equal(t, "carol", entries[2].Username)
}

func TestSession_TrySend(t *testing.T) {
	s := &Session{ID: "s1", Send: make(chan []byte, 1)}

	require.True(t, s.TrySend([]byte("one")))
	// Buffer full: dropped, not blocked.
	require.False(t, s.TrySend([]byte("two")))

	<-s.Send
	require.True(t, s.TrySend([]byte("three")))

	s.Close()
	require.False(t, s.TrySend([]byte("four")))
}
