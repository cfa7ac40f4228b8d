package entity

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/entsync/entsync/internal/core/observability/log"
	"github.com/entsync/entsync/pkg/clock"
)

const (
	// DefaultFlushDelay is the debounce window: mutations landing inside
	// one window coalesce into a single store write.
	DefaultFlushDelay = 50 * time.Millisecond

	// DefaultExpiryRecheck is the follow-up interval armed after an
	// expiry check has fired Kill.
	DefaultExpiryRecheck = 5 * time.Second
)

// Factory constructs an entity from an untyped record. It may await
// external I/O; the registry never calls it while holding internal locks.
type Factory func(ctx context.Context, rec Record) (Entity, error)

// Store is the registry's view of the backing document store. Modify must
// durably apply the mutator and deliver change notifications before or as
// it returns; OnModify registers a callback fired after any mutation,
// including the registry's own writes.
type Store interface {
	Data() []Record
	Modify(mutate func(records []Record) []Record) error
	OnModify(fn func()) (cancel func())
}

// Registry owns the live entity set: it drives construction through the
// factory table, funnels every death through one idempotent kill path,
// debounces persistence, and reconciles the live set when the store
// changes under it.
//
// One registry owns one store. All operations are safe for concurrent use.
type Registry struct {
	store         Store
	clk           clock.Clock
	log           log.Log
	flushDelay    time.Duration
	expiryRecheck time.Duration

	mu         sync.Mutex
	factories  map[string]Factory
	live       map[string]Entity
	started    bool
	dirty      bool
	flushArmed bool
	ctx        context.Context

	// saving brackets the registry's own store writes so that the
	// resulting change notification is recognized as self-originated
	// and does not trigger a reload. Without it every flush would kill
	// and reconstruct the whole live set.
	saving atomic.Bool

	unsubscribe func()
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock substitutes the time source. Tests use a fake.
func WithClock(clk clock.Clock) RegistryOption {
	return func(r *Registry) { r.clk = clk }
}

// WithLog sets the logger.
func WithLog(l log.Log) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// WithFlushDelay sets the persistence debounce window.
func WithFlushDelay(d time.Duration) RegistryOption {
	return func(r *Registry) { r.flushDelay = d }
}

// WithExpiryRecheck sets the post-kill expiry recheck interval.
func WithExpiryRecheck(d time.Duration) RegistryOption {
	return func(r *Registry) { r.expiryRecheck = d }
}

// NewRegistry creates a registry bound to the given store. The registry
// performs no construction, destruction, or persistence work until Start.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:         store,
		clk:           clock.System(),
		log:           log.Nop(),
		flushDelay:    DefaultFlushDelay,
		expiryRecheck: DefaultExpiryRecheck,
		factories:     make(map[string]Factory),
		live:          make(map[string]Entity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterFactory installs the constructor for a type discriminator.
func (r *Registry) RegisterFactory(typ string, f Factory) error {
	if typ == "" || f == nil {
		return fmt.Errorf("factory registration needs a type and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typ]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateType, typ)
	}
	r.factories[typ] = f
	return nil
}

// Start transitions the registry to started, subscribes to store change
// notifications, and performs one full reload from the store snapshot.
// Calling Start again is a no-op.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.ctx = ctx
	r.mu.Unlock()

	r.unsubscribe = r.store.OnModify(r.onStoreModified)
	return r.Reset(ctx)
}

// Started reports whether Start has run.
func (r *Registry) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// onStoreModified reconciles the live set against the new snapshot unless
// the mutation was the registry's own flush.
func (r *Registry) onStoreModified() {
	if r.saving.Load() {
		return
	}
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.Reset(ctx); err != nil {
		r.log.Error("reload after store change failed", log.Error(err))
	}
}

// NewEntity constructs an entity for the record through its type's factory
// and inserts it into the live set. An entity without an explicit id gets
// the lowest unused numeric-string id. An existing live entity under the
// same id is killed first; last insertion wins.
func (r *Registry) NewEntity(ctx context.Context, rec Record) (Entity, error) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil, ErrNotStarted
	}
	factory, ok := r.factories[rec.Type]
	r.mu.Unlock()
	if !ok {
		r.log.Warn("dropping record of unknown entity type", log.String("type", rec.Type))
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, rec.Type)
	}

	// The factory may block on external I/O; it runs outside the lock.
	ent, err := factory(ctx, rec)
	if err != nil {
		r.log.Warn("dropping record after factory failure",
			log.String("type", rec.Type), log.Error(err))
		return nil, fmt.Errorf("%w (type %q): %w", ErrFactoryFailed, rec.Type, err)
	}

	r.mu.Lock()
	if ent.ID() == "" {
		ent.assignID(r.lowestFreeIDLocked())
	}
	id := ent.ID()
	prev := r.live[id]
	if prev != nil {
		prev.markKilled()
		delete(r.live, id)
	}
	ent.bind(Hooks{
		Kill:          func() { r.KillEntity(id) },
		Updated:       r.MarkPendingFlush,
		ExpiryRecheck: r.expiryRecheck,
	})
	r.live[id] = ent
	r.mu.Unlock()

	if prev != nil {
		prev.OnKill()
	}
	r.MarkPendingFlush()
	return ent, nil
}

// KillEntity runs the single idempotent kill path: mark killed, remove
// from the live set, invoke OnKill once, mark a pending flush. Unknown ids
// are a no-op.
func (r *Registry) KillEntity(id string) {
	r.mu.Lock()
	ent, ok := r.live[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	ent.markKilled()
	delete(r.live, id)
	r.mu.Unlock()

	ent.OnKill()
	r.MarkPendingFlush()
}

// KillAll kills every live entity and marks one pending flush.
func (r *Registry) KillAll() {
	r.mu.Lock()
	victims := make([]Entity, 0, len(r.live))
	for id, ent := range r.live {
		ent.markKilled()
		delete(r.live, id)
		victims = append(victims, ent)
	}
	r.mu.Unlock()

	for _, ent := range victims {
		ent.OnKill()
	}
	r.MarkPendingFlush()
}

// Reset kills every live entity and reconstructs the live set from the
// store's current snapshot. Constructions are issued in snapshot order but
// complete independently; a record with an unknown type or a failing
// factory is logged and dropped without aborting the rest. Reset returns
// once every construction has settled.
func (r *Registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	r.KillAll()

	records := r.store.Data()
	g := new(errgroup.Group)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			// Per-record failures are logged inside NewEntity and
			// never fail the batch.
			_, _ = r.NewEntity(ctx, rec)
			return nil
		})
	}
	return g.Wait()
}

// Get returns a live entity by id.
func (r *Registry) Get(id string) (Entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.live[id]
	return ent, ok
}

// Len returns the number of live entities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// IDs returns the live ids in numeric-aware order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sortIDs(ids)
	return ids
}

// MarkPendingFlush records that the live set diverged from the store and
// arms at most one deferred flush. Any number of kills and creates inside
// the debounce window collapse into a single store write.
func (r *Registry) MarkPendingFlush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.dirty = true
	if r.flushArmed {
		return
	}
	r.flushArmed = true
	r.clk.AfterFunc(r.flushDelay, r.flushDebounced)
}

func (r *Registry) flushDebounced() {
	r.mu.Lock()
	r.flushArmed = false
	dirty := r.dirty
	r.mu.Unlock()
	if !dirty {
		return
	}
	if err := r.Flush(); err != nil {
		r.log.Error("deferred entity flush failed", log.Error(err))
	}
}

// Flush immediately replaces the store snapshot with the serialized live
// set. Safe to call directly; shutdown paths use it to avoid losing the
// debounce window.
func (r *Registry) Flush() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return ErrNotStarted
	}
	r.dirty = false
	ids := make([]string, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	sortIDs(ids)
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, r.live[id].SaveData())
	}
	r.mu.Unlock()

	r.saving.Store(true)
	err := r.store.Modify(func([]Record) []Record { return records })
	r.saving.Store(false)
	if err != nil {
		return fmt.Errorf("persist entity snapshot: %w", err)
	}
	r.log.Debug("entity snapshot persisted", log.Int("entities", len(records)))
	return nil
}

// Stop flushes pending changes and detaches from store notifications.
// Live entities are left as-is; their records remain in the store, so
// OnKill is deliberately not invoked.
func (r *Registry) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	dirty := r.dirty
	r.mu.Unlock()

	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	if dirty {
		return r.Flush()
	}
	return nil
}

// lowestFreeIDLocked scans the current live set for the lowest unused
// numeric-string id ("0", "1", ...).
func (r *Registry) lowestFreeIDLocked() string {
	for i := 0; ; i++ {
		id := strconv.Itoa(i)
		if _, taken := r.live[id]; !taken {
			return id
		}
	}
}
