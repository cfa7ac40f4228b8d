package store

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entsync/entsync/internal/core/entity"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "entities.json")
}

func TestOpenFileMissingIsEmpty(t *testing.T) {
	s, err := OpenFile(tempStorePath(t), nil)
	require.NoError(t, err)
	assert.Empty(t, s.Data())
}

func TestModifyPersistsAndReloads(t *testing.T) {
	path := tempStorePath(t)
	s, err := OpenFile(path, nil)
	require.NoError(t, err)

	require.NoError(t, s.Modify(func(records []entity.Record) []entity.Record {
		return append(records,
			entity.NewRecord("reminder").WithAttr("text", "water the plants"),
			entity.Record{Type: "presence", CreateTime: 9, Attrs: map[string]any{"lines": []string{"up"}}},
		)
	}))

	reopened, err := OpenFile(path, nil)
	require.NoError(t, err)
	data := reopened.Data()
	require.Len(t, data, 2)
	assert.Equal(t, "reminder", data[0].Type)
	assert.Equal(t, "water the plants", data[0].StringAttr("text"))
	assert.Equal(t, int64(9), data[1].CreateTime)
}

func TestModifyNotifiesSubscribers(t *testing.T) {
	s, err := OpenFile(tempStorePath(t), nil)
	require.NoError(t, err)

	var fired int32
	cancel := s.OnModify(func() { atomic.AddInt32(&fired, 1) })

	require.NoError(t, s.Modify(func(records []entity.Record) []entity.Record {
		return append(records, entity.NewRecord("x"))
	}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

	cancel()
	require.NoError(t, s.Modify(func(records []entity.Record) []entity.Record {
		return append(records, entity.NewRecord("x"))
	}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired), "cancelled subscriber stays quiet")
}

func TestIdenticalSnapshotSkipsWriteAndNotification(t *testing.T) {
	path := tempStorePath(t)
	s, err := OpenFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Modify(func(records []entity.Record) []entity.Record {
		return append(records, entity.NewRecord("x"))
	}))

	before, err := os.Stat(path)
	require.NoError(t, err)
	var fired int32
	s.OnModify(func() { atomic.AddInt32(&fired, 1) })

	// Identity mutation: same content, nothing may happen.
	require.NoError(t, s.Modify(func(records []entity.Record) []entity.Record {
		return records
	}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "document not rewritten")
}

func TestDataSnapshotIsIsolated(t *testing.T) {
	s, err := OpenFile(tempStorePath(t), nil)
	require.NoError(t, err)
	require.NoError(t, s.Modify(func(records []entity.Record) []entity.Record {
		return append(records, entity.NewRecord("x").WithAttr("k", "v"))
	}))

	snap := s.Data()
	snap[0].Attrs["k"] = "mutated"
	assert.Equal(t, "v", s.Data()[0].StringAttr("k"))
}

func TestModifyAfterClose(t *testing.T) {
	s, err := OpenFile(tempStorePath(t), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	err = s.Modify(func(records []entity.Record) []entity.Record { return records })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenFileRejectsCorruptDocument(t *testing.T) {
	path := tempStorePath(t)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err := OpenFile(path, nil)
	assert.Error(t, err)
}
