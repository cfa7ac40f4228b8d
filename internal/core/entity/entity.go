package entity

import (
	"sync/atomic"
	"time"

	"github.com/entsync/entsync/pkg/clock"
)

// Entity is the capability contract every persistent entity kind satisfies.
// Kinds satisfy it by embedding Core, which carries the identity and
// lifetime state; the unexported methods are the registry's side of the
// contract and cannot be implemented outside this package.
type Entity interface {
	// ID is unique among currently-live entities and stable once assigned.
	ID() string
	// Type is the factory discriminator. Immutable.
	Type() string
	// CreateTime is the construction instant in epoch milliseconds,
	// carried through reloads.
	CreateTime() int64
	// KillTime is the self-expiry instant in epoch milliseconds;
	// zero means the entity never expires.
	KillTime() int64
	// Killed reports whether the entity has gone through the kill path.
	// Monotonic: once true it never resets.
	Killed() bool

	// Kill asks the owning registry to kill this entity. Before the
	// registry has bound its hooks, or after the entity is killed, the
	// call is a silent no-op so that late timer or subscription callbacks
	// never need special-casing.
	Kill()
	// Updated tells the owning registry this entity's persisted state
	// changed. Same no-op rules as Kill.
	Updated()

	// OnKill runs exactly once, after removal from the live set. Kinds
	// override it to release attached resources.
	OnKill()

	// SaveData projects the entity to its persistable Record. Feeding the
	// result back through the kind's factory reconstructs an equivalent
	// entity.
	SaveData() Record

	assignID(id string)
	bind(h Hooks)
	markKilled()
}

// Hooks are the owner-bound callbacks injected into an entity when the
// registry inserts it. ExpiryRecheck is the fixed follow-up interval armed
// after an expiry check has fired Kill, guarding against a kill that has
// not yet taken effect.
type Hooks struct {
	Kill          func()
	Updated       func()
	ExpiryRecheck time.Duration
}

// Core is the embeddable base implementation of Entity. A zero Core is not
// usable; construct with NewCore.
type Core struct {
	id         string
	typ        string
	createTime int64
	killTime   int64
	explicitID bool

	killed atomic.Bool
	hooks  Hooks
	clk    clock.Clock
}

// NewCore builds the base state for an entity from its record. A record
// without a createTime is a freshly created entity and stamps the current
// time; one with a createTime is a reload and keeps it.
func NewCore(rec Record, clk clock.Clock) Core {
	if clk == nil {
		clk = clock.System()
	}
	c := Core{
		id:         rec.ID,
		typ:        rec.Type,
		createTime: rec.CreateTime,
		killTime:   rec.KillTime,
		explicitID: rec.ID != "",
		clk:        clk,
	}
	if c.createTime == 0 {
		c.createTime = clk.Now().UnixMilli()
	}
	return c
}

func (c *Core) ID() string        { return c.id }
func (c *Core) Type() string      { return c.typ }
func (c *Core) CreateTime() int64 { return c.createTime }
func (c *Core) KillTime() int64   { return c.killTime }
func (c *Core) Killed() bool      { return c.killed.Load() }

// Clock returns the clock the entity was built with, for kinds that run
// their own interval work.
func (c *Core) Clock() clock.Clock { return c.clk }

func (c *Core) Kill() {
	if c.killed.Load() {
		return
	}
	if h := c.hooks.Kill; h != nil {
		h()
	}
}

func (c *Core) Updated() {
	if c.killed.Load() {
		return
	}
	if h := c.hooks.Updated; h != nil {
		h()
	}
}

// OnKill is the default no-op resource release hook.
func (c *Core) OnKill() {}

// SaveData projects the base fields. Kinds that persist attributes extend
// the result. The id is only persisted when it was supplied explicitly;
// registry-assigned ids are rederived on reload.
func (c *Core) SaveData() Record {
	rec := Record{Type: c.typ, CreateTime: c.createTime, KillTime: c.killTime}
	if c.explicitID {
		rec.ID = c.id
	}
	return rec
}

func (c *Core) assignID(id string) {
	if c.id == "" {
		c.id = id
	}
}

func (c *Core) markKilled() { c.killed.Store(true) }

// bind installs the owner's hooks and arms self-expiry. Called by the
// registry before the entity becomes visible in the live set.
func (c *Core) bind(h Hooks) {
	c.hooks = h
	if c.killTime > 0 {
		c.armExpiry(c.untilKill())
	}
}

func (c *Core) untilKill() time.Duration {
	return time.Duration(c.killTime-c.clk.Now().UnixMilli()) * time.Millisecond
}

func (c *Core) armExpiry(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.clk.AfterFunc(d, c.checkExpiry)
}

// checkExpiry is the self-expiry chain. A due check kills and re-arms once
// at the recheck interval; a not-yet-due check re-arms for exactly the
// remaining interval; a killed entity drops out without rescheduling.
func (c *Core) checkExpiry() {
	if c.killed.Load() {
		return
	}
	if remaining := c.untilKill(); remaining > 0 {
		c.armExpiry(remaining)
		return
	}
	c.Kill()
	recheck := c.hooks.ExpiryRecheck
	if recheck <= 0 {
		recheck = DefaultExpiryRecheck
	}
	c.armExpiry(recheck)
}
