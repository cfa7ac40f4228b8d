package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/entsync/entsync/pkg/clock"
)

func TestCoreFreshVersusLoaded(t *testing.T) {
	fake := clock.NewFake(time.UnixMilli(5000))

	fresh := NewCore(NewRecord("x"), fake)
	assert.Equal(t, int64(5000), fresh.CreateTime(), "fresh entity stamps now")

	loaded := NewCore(Record{Type: "x", CreateTime: 123}, fake)
	assert.Equal(t, int64(123), loaded.CreateTime(), "loaded entity keeps its createTime")
}

func TestHooksAreNoOpsBeforeBindAndAfterKill(t *testing.T) {
	fake := clock.NewFake(time.UnixMilli(5000))
	c := NewCore(NewRecord("x"), fake)

	// Unbound: must not panic, must do nothing.
	c.Kill()
	c.Updated()
	assert.False(t, c.Killed())

	kills, updates := 0, 0
	c.bind(Hooks{
		Kill:    func() { kills++ },
		Updated: func() { updates++ },
	})
	c.Kill()
	c.Updated()
	assert.Equal(t, 1, kills)
	assert.Equal(t, 1, updates)

	c.markKilled()
	c.Kill()
	c.Updated()
	assert.Equal(t, 1, kills, "killed entity never calls hooks again")
	assert.Equal(t, 1, updates)
}

func TestCoreSaveDataOmitsAssignedID(t *testing.T) {
	fake := clock.NewFake(time.UnixMilli(5000))

	c := NewCore(NewRecord("x"), fake)
	c.assignID("7")
	assert.Equal(t, "7", c.ID())
	assert.Empty(t, c.SaveData().ID, "registry-assigned ids are rederived on reload")

	// First assignment wins; a later one is ignored.
	c.assignID("8")
	assert.Equal(t, "7", c.ID())

	explicit := NewCore(Record{ID: "pin", Type: "x"}, fake)
	assert.Equal(t, "pin", explicit.SaveData().ID, "explicit ids persist")
}

func TestExpiryNotScheduledWithoutKillTime(t *testing.T) {
	fake := clock.NewFake(time.UnixMilli(5000))
	c := NewCore(NewRecord("x"), fake)
	c.bind(Hooks{Kill: func() {}})
	assert.Equal(t, 0, fake.Pending(), "killTime zero means never expires")
}

func TestExpiryRecheckAfterIneffectiveKill(t *testing.T) {
	fake := clock.NewFake(time.UnixMilli(5000))
	kills := 0
	c := NewCore(Record{Type: "x", KillTime: 4000}, fake)
	// A kill hook that does not actually mark the entity killed, as
	// happens when the owner's removal lags the expiry check.
	c.bind(Hooks{Kill: func() { kills++ }, ExpiryRecheck: time.Second})

	fake.Tick()
	assert.Equal(t, 1, kills, "overdue check kills immediately")

	fake.Advance(time.Second)
	assert.Equal(t, 2, kills, "recheck fires while the entity is still alive")

	c.markKilled()
	fake.Advance(time.Second)
	assert.Equal(t, 2, kills)
	assert.Equal(t, 0, fake.Pending(), "chain stops once the kill took effect")
}
