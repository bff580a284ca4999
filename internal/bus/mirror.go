package bus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Mirror republishes broadcast notifications to NATS so out-of-process
// consumers can observe auction events. Strictly observe-only: the relay
// never coordinates through it, and publish failures are logged, never
// surfaced.
type Mirror struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewMirror connects to NATS. subjectPrefix defaults to "auction.events".
func NewMirror(url, subjectPrefix string) (*Mirror, error) {
	if subjectPrefix == "" {
		subjectPrefix = "auction.events"
	}

	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().Str("url", url).Str("subject_prefix", subjectPrefix).Msg("broadcast mirror connected")
	return &Mirror{nc: nc, subjectPrefix: subjectPrefix}, nil
}

// Publish mirrors one notification. Nil-safe so the bus can run without
// a mirror configured.
func (m *Mirror) Publish(kind string, payload []byte) {
	if m == nil {
		return
	}
	subject := fmt.Sprintf("%s.%s", m.subjectPrefix, kind)
	if err := m.nc.Publish(subject, payload); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to mirror broadcast")
	}
}

// Close drains the connection.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.nc.Close()
}
