package kinds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entsync/entsync/internal/core/entity"
	"github.com/entsync/entsync/internal/core/observability/log"
	"github.com/entsync/entsync/pkg/clock"
)

// Presence cycles through a list of status lines on a fixed interval. The
// cursor is part of the persisted state, so a reload resumes the rotation
// where it left off instead of restarting at the first line.
type Presence struct {
	entity.Core
	log      log.Log
	interval time.Duration

	mu     sync.Mutex
	lines  []string
	cursor int
	timer  clock.Timer
}

// PresenceFactory builds the factory for presence records. Records carry a
// "lines" attribute; "cursor" and "intervalMs" are optional.
func PresenceFactory(deps Deps) entity.Factory {
	deps = deps.withDefaults()
	return func(_ context.Context, rec entity.Record) (entity.Entity, error) {
		lines := rec.StringsAttr("lines")
		if len(lines) == 0 {
			return nil, fmt.Errorf("presence record needs a non-empty lines attribute")
		}
		interval := deps.PresenceInterval
		if ms := rec.IntAttr("intervalMs"); ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		}
		p := &Presence{
			Core:     entity.NewCore(rec, deps.Clock),
			log:      deps.Log,
			interval: interval,
			lines:    lines,
			cursor:   int(rec.IntAttr("cursor")) % len(lines),
		}
		if p.cursor < 0 {
			p.cursor = 0
		}
		p.mu.Lock()
		p.timer = p.Clock().AfterFunc(p.interval, p.rotate)
		p.mu.Unlock()
		return p, nil
	}
}

// Current returns the active status line.
func (p *Presence) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lines[p.cursor]
}

func (p *Presence) rotate() {
	if p.Killed() {
		return
	}
	p.mu.Lock()
	p.cursor = (p.cursor + 1) % len(p.lines)
	line := p.lines[p.cursor]
	p.timer = p.Clock().AfterFunc(p.interval, p.rotate)
	p.mu.Unlock()

	p.log.Debug("presence rotated", log.String("id", p.ID()), log.String("line", line))
	p.Updated()
}

func (p *Presence) OnKill() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
}

func (p *Presence) SaveData() entity.Record {
	p.mu.Lock()
	cursor := p.cursor
	lines := append([]string(nil), p.lines...)
	p.mu.Unlock()
	return p.Core.SaveData().
		WithAttr("lines", lines).
		WithAttr("cursor", int64(cursor)).
		WithAttr("intervalMs", p.interval.Milliseconds())
}
