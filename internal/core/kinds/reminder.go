package kinds

import (
	"context"
	"fmt"

	"github.com/entsync/entsync/internal/core/entity"
)

// Reminder is the smallest useful kind: a text payload that lives until
// its kill time and holds no resources.
type Reminder struct {
	entity.Core
	text string
}

// ReminderFactory builds the factory for reminder records. A reminder
// record carries a "text" attribute and usually a killTime.
func ReminderFactory(deps Deps) entity.Factory {
	deps = deps.withDefaults()
	return func(_ context.Context, rec entity.Record) (entity.Entity, error) {
		text := rec.StringAttr("text")
		if text == "" {
			return nil, fmt.Errorf("reminder record needs a text attribute")
		}
		return &Reminder{
			Core: entity.NewCore(rec, deps.Clock),
			text: text,
		}, nil
	}
}

// Text returns the reminder payload.
func (r *Reminder) Text() string { return r.text }

func (r *Reminder) SaveData() entity.Record {
	return r.Core.SaveData().WithAttr("text", r.text)
}
