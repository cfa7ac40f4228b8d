// Package kinds ships the built-in entity kinds: a reminder note that
// lives until its kill time, a presence rotator, a first-contact greeter,
// and a websocket stream watcher. They double as reference implementations
// of the entity contract for external kinds.
package kinds

import (
	"time"

	"github.com/entsync/entsync/internal/core/entity"
	"github.com/entsync/entsync/internal/core/observability/log"
	"github.com/entsync/entsync/pkg/clock"
)

// Type discriminators of the built-in kinds.
const (
	TypeReminder    = "reminder"
	TypePresence    = "presence"
	TypeGreeter     = "greeter"
	TypeStreamWatch = "streamwatch"
)

// Deps carries the shared collaborators and tuning the built-in factories
// close over. Zero values select defaults.
type Deps struct {
	Clock clock.Clock
	Log   log.Log

	// PresenceInterval is the rotation interval used when a presence
	// record carries no intervalMs of its own.
	PresenceInterval time.Duration

	// DialTimeout bounds a single stream-watch websocket handshake.
	DialTimeout time.Duration

	// MaxBackoff caps the stream-watch reconnect backoff.
	MaxBackoff time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Log == nil {
		d.Log = log.Nop()
	}
	if d.PresenceInterval <= 0 {
		d.PresenceInterval = time.Minute
	}
	if d.DialTimeout <= 0 {
		d.DialTimeout = 10 * time.Second
	}
	if d.MaxBackoff <= 0 {
		d.MaxBackoff = 2 * time.Minute
	}
	return d
}

// RegisterBuiltins installs the built-in factories on the registry.
func RegisterBuiltins(reg *entity.Registry, deps Deps) error {
	deps = deps.withDefaults()
	for typ, factory := range map[string]entity.Factory{
		TypeReminder:    ReminderFactory(deps),
		TypePresence:    PresenceFactory(deps),
		TypeGreeter:     GreeterFactory(deps),
		TypeStreamWatch: StreamWatchFactory(deps),
	} {
		if err := reg.RegisterFactory(typ, factory); err != nil {
			return err
		}
	}
	return nil
}
