package kinds

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/entsync/entsync/internal/core/entity"
)

// Greeter hands out a greeting the first time it sees a user and remembers
// who it greeted across reloads.
type Greeter struct {
	entity.Core
	template string

	mu   sync.Mutex
	seen map[string]struct{}
}

// GreeterFactory builds the factory for greeter records. Records carry a
// "greeting" template with a %s placeholder for the user, and the
// accumulated "seen" list.
func GreeterFactory(deps Deps) entity.Factory {
	deps = deps.withDefaults()
	return func(_ context.Context, rec entity.Record) (entity.Entity, error) {
		template := rec.StringAttr("greeting")
		if template == "" {
			return nil, fmt.Errorf("greeter record needs a greeting attribute")
		}
		if !strings.Contains(template, "%s") {
			return nil, fmt.Errorf("greeter template needs a %%s placeholder")
		}
		seen := make(map[string]struct{})
		for _, user := range rec.StringsAttr("seen") {
			seen[user] = struct{}{}
		}
		return &Greeter{
			Core:     entity.NewCore(rec, deps.Clock),
			template: template,
			seen:     seen,
		}, nil
	}
}

// Greet returns the greeting for user and whether this was first contact.
// Repeat visitors get no greeting.
func (g *Greeter) Greet(user string) (greeting string, first bool) {
	g.mu.Lock()
	_, known := g.seen[user]
	if !known {
		g.seen[user] = struct{}{}
	}
	g.mu.Unlock()

	if known {
		return "", false
	}
	g.Updated()
	return fmt.Sprintf(g.template, user), true
}

// SeenCount reports how many distinct users were greeted.
func (g *Greeter) SeenCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func (g *Greeter) SaveData() entity.Record {
	g.mu.Lock()
	seen := make([]string, 0, len(g.seen))
	for user := range g.seen {
		seen = append(seen, user)
	}
	g.mu.Unlock()
	sort.Strings(seen)
	return g.Core.SaveData().
		WithAttr("greeting", g.template).
		WithAttr("seen", seen)
}
