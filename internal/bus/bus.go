// Package bus delivers targeted replies and best-effort broadcast
// notifications to connected sessions.
package bus

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkriel/bidrelay/internal/session"
	"github.com/dkriel/bidrelay/internal/wire"
)

// Bus fans messages out through the session registry. Delivery is
// fire-and-forget: a slow or dead session is skipped without affecting
// other recipients or the caller.
type Bus struct {
	registry *session.Registry
	mirror   *Mirror
}

// New creates a bus over the registry. mirror may be nil.
func New(registry *session.Registry, mirror *Mirror) *Bus {
	return &Bus{registry: registry, mirror: mirror}
}

// Reply sends a direct reply to the session that issued a command.
func (b *Bus) Reply(s *session.Session, r wire.Reply) {
	if s == nil {
		return
	}
	payload, err := json.Marshal(r)
	if err != nil {
		log.Error().Err(err).Str("source", r.Source).Msg("failed to marshal reply")
		return
	}
	if !s.TrySend(payload) {
		log.Warn().Str("session_id", s.ID).Str("source", r.Source).Msg("reply dropped, session unavailable")
	}
}

// Broadcast sends a notification to every session bound at this moment,
// in unspecified order. When a mirror is configured the notification is
// also published out of process.
func (b *Bus) Broadcast(kind wire.BroadcastKind, message string) {
	payload, err := json.Marshal(wire.Broadcast{Type: kind, Message: message})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal broadcast")
		return
	}
	b.fanOut(payload)
	b.mirror.Publish(string(kind), payload)
}

// BroadcastJSON fans an arbitrary envelope out to every bound session,
// used for pushing refreshed listings after state transitions.
func (b *Bus) BroadcastJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal broadcast payload")
		return
	}
	b.fanOut(payload)
}

func (b *Bus) fanOut(payload []byte) {
	entries := b.registry.All()
	delivered := 0
	for _, e := range entries {
		if e.Session.TrySend(payload) {
			delivered++
		} else {
			log.Warn().Str("username", e.Username).Msg("broadcast dropped for session")
		}
	}
	log.Debug().Int("recipients", delivered).Int("bound", len(entries)).Msg("broadcast delivered")
}
