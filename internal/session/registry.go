package session

import (
	"sort"
	"sync"
)

// Entry pairs a bound identity with its live session.
type Entry struct {
	Username string
	Session  *Session
}

// Registry exclusively owns the mapping between authenticated usernames
// and sessions. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Session
	names  map[*Session]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Session),
		names:  make(map[*Session]string),
	}
}

// Bind attaches an identity to a session. Last bind wins: a prior
// session holding the same name loses the binding but stays open (an
// operator must drop it explicitly). A session re-authenticating under a
// new name drops its old binding.
func (r *Registry) Bind(username string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byName[username]; ok && old != s {
		delete(r.names, old)
	}
	if prev, ok := r.names[s]; ok && prev != username {
		delete(r.byName, prev)
	}
	r.byName[username] = s
	r.names[s] = username
}

// Unbind removes whatever identity maps to the session, returning it.
func (r *Registry) Unbind(s *Session) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.names[s]
	if !ok {
		return "", false
	}
	delete(r.names, s)
	if r.byName[username] == s {
		delete(r.byName, username)
	}
	return username, true
}

// Identity returns the username bound to a session, if any.
func (r *Registry) Identity(s *Session) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	username, ok := r.names[s]
	return username, ok
}

// Lookup returns the session bound to a username, if any.
func (r *Registry) Lookup(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[username]
	return s, ok
}

// All returns every binding, ordered by username.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.byName))
	for username, s := range r.byName {
		entries = append(entries, Entry{Username: username, Session: s})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Username < entries[j].Username })
	return entries
}

// Count returns the number of bound identities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
