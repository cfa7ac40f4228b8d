package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "data/entities.json", c.Store.Path)
	assert.Equal(t, 50*time.Millisecond, c.Registry.FlushDelay.Std())
	assert.Equal(t, 5*time.Second, c.Registry.ExpiryRecheck.Std())
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	doc := `
store:
  path: /var/lib/entsync/entities.json
registry:
  flush_delay: 200ms
  expiry_recheck: 30s
log:
  level: debug
kinds:
  presence_interval: 2m
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/entsync/entities.json", c.Store.Path)
	assert.Equal(t, 200*time.Millisecond, c.Registry.FlushDelay.Std())
	assert.Equal(t, 30*time.Second, c.Registry.ExpiryRecheck.Std())
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 2*time.Minute, c.Kinds.PresenceInterval.Std())
	// Untouched sections keep their defaults.
	assert.Equal(t, 10*time.Second, c.Kinds.DialTimeout.Std())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(strings.NewReader("registry:\n  flush_delay: soonish\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Store.Path = ""
	assert.Error(t, c.Validate())

	c = Default()
	c.Log.Level = "loud"
	assert.Error(t, c.Validate())

	c = Default()
	c.Registry.FlushDelay = 0
	assert.Error(t, c.Validate())
}
