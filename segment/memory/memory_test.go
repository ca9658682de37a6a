package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/metadata"
	"github.com/vecora/vecora/model"
	"github.com/vecora/vecora/segment"
)

func newTestSegment(t *testing.T) *Segment {
	t.Helper()
	s, err := New(4, distance.MetricCosine)
	require.NoError(t, err)
	return s
}

func TestUpsertGet(t *testing.T) {
	s := newTestSegment(t)

	require.NoError(t, s.Upsert(1, []float32{1, 0, 0, 0}, metadata.Document{"k": metadata.String("v1")}, 1))
	require.NoError(t, s.Upsert(1, []float32{0, 1, 0, 0}, metadata.Document{"k": metadata.String("v2")}, 2))

	entry, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1, 0, 0}, entry.Vector)
	assert.Equal(t, metadata.String("v2"), entry.Payload["k"])
	assert.Equal(t, uint64(2), entry.Version)
	assert.Equal(t, 1, s.Count())
}

func TestUpsertDimensionMismatch(t *testing.T) {
	s := newTestSegment(t)
	err := s.Upsert(1, []float32{1, 0}, nil, 1)
	require.ErrorIs(t, err, segment.ErrDimensionMismatch)
}

func TestDeleteIdempotent(t *testing.T) {
	s := newTestSegment(t)
	require.NoError(t, s.Upsert(1, []float32{1, 0, 0, 0}, nil, 1))

	require.NoError(t, s.Delete(1, 2))
	assert.False(t, s.Contains(1))

	// Deleting again is a no-op.
	require.NoError(t, s.Delete(1, 3))
	require.NoError(t, s.Delete(42, 4))
	assert.Equal(t, 0, s.Count())
}

func TestStaleMutationsAreIgnored(t *testing.T) {
	s := newTestSegment(t)

	t.Run("delete older than record", func(t *testing.T) {
		require.NoError(t, s.Upsert(1, []float32{1, 0, 0, 0}, nil, 5))
		require.NoError(t, s.Delete(1, 3))
		entry, ok := s.Get(1)
		require.True(t, ok)
		assert.Equal(t, uint64(5), entry.Version)
	})

	t.Run("upsert older than record", func(t *testing.T) {
		require.NoError(t, s.Upsert(2, []float32{0, 1, 0, 0}, nil, 5))
		require.NoError(t, s.Upsert(2, []float32{1, 0, 0, 0}, nil, 3))
		entry, ok := s.Get(2)
		require.True(t, ok)
		assert.Equal(t, []float32{0, 1, 0, 0}, entry.Vector)
		assert.Equal(t, uint64(5), entry.Version)
	})

	t.Run("upsert older than tombstone", func(t *testing.T) {
		// The tombstone survives even though the id was never held.
		require.NoError(t, s.Delete(3, 5))
		require.NoError(t, s.Upsert(3, []float32{1, 0, 0, 0}, nil, 4))
		assert.False(t, s.Contains(3))

		require.NoError(t, s.Upsert(3, []float32{1, 0, 0, 0}, nil, 6))
		assert.True(t, s.Contains(3))
	})

	t.Run("payload ops older than record", func(t *testing.T) {
		require.NoError(t, s.Upsert(4, []float32{1, 0, 0, 0}, metadata.Document{"k": metadata.Int(1)}, 5))

		held, err := s.SetPayload(4, metadata.Document{"k": metadata.Int(2)}, 3)
		require.NoError(t, err)
		assert.True(t, held)
		held, err = s.ClearPayload(4, 3)
		require.NoError(t, err)
		assert.True(t, held)

		entry, ok := s.Get(4)
		require.True(t, ok)
		assert.True(t, entry.Payload["k"].Equal(metadata.Int(1)))
		assert.Equal(t, uint64(5), entry.Version)
	})

	t.Run("filter delete older than record", func(t *testing.T) {
		require.NoError(t, s.Upsert(5, []float32{1, 0, 0, 0}, nil, 5))
		n, err := s.DeleteByFilter(metadata.HasIDSet(5), 3)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.True(t, s.Contains(5))
	})
}

func TestSearchOrderAndTieBreak(t *testing.T) {
	s := newTestSegment(t)
	require.NoError(t, s.Upsert(3, []float32{1, 1, 1, 1}, nil, 1))
	require.NoError(t, s.Upsert(1, []float32{1, 1, 1, 1}, nil, 2))
	require.NoError(t, s.Upsert(2, []float32{1, 0, 0, 0}, nil, 3))

	res, err := s.Search(context.Background(), []float32{1, 1, 1, 1}, nil, 10)
	require.NoError(t, err)
	require.Len(t, res, 3)
	// Equal scores resolve to ascending id.
	assert.Equal(t, model.PointID(1), res[0].ID)
	assert.Equal(t, model.PointID(3), res[1].ID)
	assert.Equal(t, model.PointID(2), res[2].ID)
}

func TestSearchFilter(t *testing.T) {
	s := newTestSegment(t)
	require.NoError(t, s.Upsert(1, []float32{1, 0, 0, 0}, metadata.Document{"color": metadata.String("red")}, 1))
	require.NoError(t, s.Upsert(2, []float32{1, 0, 0, 0}, metadata.Document{"color": metadata.String("blue")}, 2))

	filter := metadata.NewFilterSet(metadata.Filter{Key: "color", Operator: metadata.OpEqual, Value: metadata.String("red")})
	res, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, filter, 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, model.PointID(1), res[0].ID)
}

func TestIterateFromOffset(t *testing.T) {
	s := newTestSegment(t)
	for _, id := range []model.PointID{5, 1, 9, 3, 7} {
		require.NoError(t, s.Upsert(id, []float32{1, 0, 0, 0}, nil, uint64(id)))
	}

	var got []model.PointID
	s.Iterate(3, func(e segment.Entry) bool {
		got = append(got, e.ID)
		return true
	})
	assert.Equal(t, []model.PointID{3, 5, 7, 9}, got)

	// Early stop.
	got = got[:0]
	s.Iterate(0, func(e segment.Entry) bool {
		got = append(got, e.ID)
		return len(got) < 2
	})
	assert.Equal(t, []model.PointID{1, 3}, got)
}

func TestDeleteByFilter(t *testing.T) {
	s := newTestSegment(t)
	for id := model.PointID(0); id < 5; id++ {
		require.NoError(t, s.Upsert(id, []float32{1, 0, 0, 0}, nil, uint64(id+1)))
	}

	n, err := s.DeleteByFilter(metadata.HasIDSet(0, 3), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, s.Count())
	assert.False(t, s.Contains(0))
	assert.False(t, s.Contains(3))
}

func TestPayloadOps(t *testing.T) {
	s := newTestSegment(t)
	require.NoError(t, s.Upsert(1, []float32{1, 0, 0, 0}, metadata.Document{"a": metadata.Int(1)}, 1))

	held, err := s.SetPayload(1, metadata.Document{"b": metadata.Int(2)}, 2)
	require.NoError(t, err)
	assert.True(t, held)

	entry, _ := s.Get(1)
	assert.Len(t, entry.Payload, 2)

	// Absent id is reported but not an error.
	held, err = s.SetPayload(42, metadata.Document{"b": metadata.Int(2)}, 3)
	require.NoError(t, err)
	assert.False(t, held)

	held, err = s.ClearPayload(1, 4)
	require.NoError(t, err)
	assert.True(t, held)
	entry, _ = s.Get(1)
	assert.Empty(t, entry.Payload)
}

func TestChangedSince(t *testing.T) {
	s := newTestSegment(t)
	require.NoError(t, s.Upsert(1, []float32{1, 0, 0, 0}, nil, 1))
	require.NoError(t, s.Upsert(2, []float32{1, 0, 0, 0}, nil, 2))
	require.NoError(t, s.Delete(1, 3))
	require.NoError(t, s.Upsert(3, []float32{1, 0, 0, 0}, nil, 4))

	changes := s.ChangedSince(2)
	require.Len(t, changes, 2)

	byID := map[model.PointID]segment.Change{}
	for _, c := range changes {
		byID[c.ID] = c
	}
	assert.True(t, byID[1].Deleted)
	assert.Equal(t, uint64(3), byID[1].Version)
	assert.False(t, byID[3].Deleted)
	assert.Equal(t, uint64(4), byID[3].Version)
}

func TestSnapshotRoundtrip(t *testing.T) {
	s := newTestSegment(t)
	require.NoError(t, s.Upsert(1, []float32{1, 0, 0, 0}, metadata.Document{"k": metadata.String("v")}, 1))
	require.NoError(t, s.Upsert(2, []float32{0, 1, 0, 0}, nil, 2))
	require.NoError(t, s.Delete(2, 3))

	var buf bytes.Buffer
	require.NoError(t, s.WriteTo(&buf))

	restored, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Count())
	assert.Equal(t, uint64(3), restored.MaxVersion())

	entry, ok := restored.Get(1)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0, 0}, entry.Vector)
	assert.Equal(t, metadata.String("v"), entry.Payload["k"])
}

func TestClosed(t *testing.T) {
	s := newTestSegment(t)
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Upsert(1, []float32{1, 0, 0, 0}, nil, 1), segment.ErrClosed)
	_, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, nil, 1)
	require.ErrorIs(t, err, segment.ErrClosed)
}
