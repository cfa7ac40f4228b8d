package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entsync/entsync/internal/core/entity"
)

func TestMemorySeedAndModify(t *testing.T) {
	s := NewMemory(entity.NewRecord("a"), entity.NewRecord("b"))
	require.Len(t, s.Data(), 2)

	fired := 0
	s.OnModify(func() { fired++ })

	require.NoError(t, s.Modify(func(records []entity.Record) []entity.Record {
		return records[:1]
	}))
	assert.Len(t, s.Data(), 1)
	assert.Equal(t, 1, fired)

	// Unlike the file store, memory notifies even for identity mutations.
	require.NoError(t, s.Modify(func(records []entity.Record) []entity.Record {
		return records
	}))
	assert.Equal(t, 2, fired)
}

func TestMemorySnapshotIsolation(t *testing.T) {
	seed := entity.NewRecord("x").WithAttr("k", "v")
	s := NewMemory(seed)

	snap := s.Data()
	snap[0].Attrs["k"] = "mutated"
	assert.Equal(t, "v", s.Data()[0].StringAttr("k"))

	seed.Attrs["k"] = "also mutated"
	assert.Equal(t, "v", s.Data()[0].StringAttr("k"), "seed was copied in")
}
