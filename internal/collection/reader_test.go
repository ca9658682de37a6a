package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecora/vecora/metadata"
	"github.com/vecora/vecora/model"
)

// seedHolder spreads six unit-ish vectors over two read-only segments and
// one appendable segment.
func seedHolder(t *testing.T) *Holder {
	t.Helper()
	h := NewHolder()
	t.Cleanup(h.Close)

	a := newMemSegment(t)
	require.NoError(t, a.Upsert(1, []float32{1, 0, 0, 0}, metadata.Document{"group": metadata.String("x")}, 1))
	require.NoError(t, a.Upsert(2, []float32{0.9, 0.1, 0, 0}, metadata.Document{"group": metadata.String("y")}, 2))
	b := newMemSegment(t)
	require.NoError(t, b.Upsert(3, []float32{0, 1, 0, 0}, metadata.Document{"group": metadata.String("x")}, 3))
	require.NoError(t, b.Upsert(4, []float32{0, 0.9, 0.1, 0}, metadata.Document{"group": metadata.String("y")}, 4))
	c := newMemSegment(t)
	require.NoError(t, c.Upsert(5, []float32{0, 0, 1, 0}, nil, 5))
	require.NoError(t, c.Upsert(6, []float32{0, 0, 0, 1}, nil, 6))

	h.Add(a, false)
	h.Add(b, false)
	h.Add(c, true)
	return h
}

func newTestReader(h *Holder) *Reader {
	return NewReader(h, 4, discardLogger(), NoopObserver{})
}

func TestReaderSearch(t *testing.T) {
	r := newTestReader(seedHolder(t))
	ctx := context.Background()

	res, err := r.Search(ctx, model.SearchRequest{Vector: []float32{1, 0, 0, 0}, Top: 3})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, model.PointID(1), res[0].ID)
	assert.Equal(t, model.PointID(2), res[1].ID)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i].Score, res[i-1].Score)
	}

	// Payload and vector stay out unless requested.
	assert.Nil(t, res[0].Payload)
	assert.Nil(t, res[0].Vector)

	res, err = r.Search(ctx, model.SearchRequest{Vector: []float32{1, 0, 0, 0}, Top: 1, WithPayload: true, WithVector: true})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[0].Payload["group"].Equal(metadata.String("x")))
	assert.Equal(t, []float32{1, 0, 0, 0}, res[0].Vector)
}

func TestReaderSearchFiltered(t *testing.T) {
	r := newTestReader(seedHolder(t))

	filter := metadata.NewFilterSet(metadata.Filter{Key: "group", Operator: metadata.OpEqual, Value: metadata.String("x")})
	res, err := r.Search(context.Background(), model.SearchRequest{Vector: []float32{1, 1, 0, 0}, Filter: filter, Top: 10})
	require.NoError(t, err)
	require.Len(t, res, 2)
	ids := []model.PointID{res[0].ID, res[1].ID}
	assert.ElementsMatch(t, []model.PointID{1, 3}, ids)
}

func TestReaderSearchValidation(t *testing.T) {
	r := newTestReader(seedHolder(t))
	ctx := context.Background()

	_, err := r.Search(ctx, model.SearchRequest{Vector: []float32{1, 0, 0, 0}, Top: 0})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = r.Search(ctx, model.SearchRequest{Vector: []float32{1, 0}, Top: 1})
	var dimErr *DimensionMismatchError
	assert.ErrorAs(t, err, &dimErr)

	empty := NewHolder()
	defer empty.Close()
	_, err = newTestReader(empty).Search(ctx, model.SearchRequest{Vector: []float32{1, 0, 0, 0}, Top: 1})
	assert.ErrorIs(t, err, ErrZeroSegments)
}

func TestReaderZeroSegments(t *testing.T) {
	h := NewHolder()
	defer h.Close()
	r := newTestReader(h)
	ctx := context.Background()

	// All four read paths report the empty holder the same way.
	_, err := r.Search(ctx, model.SearchRequest{Vector: []float32{1, 0, 0, 0}, Top: 1})
	assert.ErrorIs(t, err, ErrZeroSegments)
	_, err = r.Recommend(ctx, model.RecommendRequest{Positive: []model.PointID{1}, Top: 1})
	assert.ErrorIs(t, err, ErrZeroSegments)
	_, err = r.Scroll(ctx, model.ScrollRequest{Limit: 1})
	assert.ErrorIs(t, err, ErrZeroSegments)
	_, err = r.Retrieve(ctx, []model.PointID{1}, false, false)
	assert.ErrorIs(t, err, ErrZeroSegments)
}

func TestReaderRecommend(t *testing.T) {
	r := newTestReader(seedHolder(t))
	ctx := context.Background()

	res, err := r.Recommend(ctx, model.RecommendRequest{
		Positive: []model.PointID{1, 2},
		Negative: []model.PointID{5},
		Top:      10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	for _, p := range res {
		assert.NotContains(t, []model.PointID{1, 2, 5}, p.ID, "exemplars must be excluded")
	}

	_, err = r.Recommend(ctx, model.RecommendRequest{Top: 3})
	assert.ErrorIs(t, err, ErrEmptyPositive)

	_, err = r.Recommend(ctx, model.RecommendRequest{Positive: []model.PointID{1, 42}, Top: 3})
	var missing *MissingExemplarError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []model.PointID{42}, missing.IDs)
}

func TestReaderScrollPaginates(t *testing.T) {
	r := newTestReader(seedHolder(t))
	ctx := context.Background()

	var (
		got    []model.PointID
		offset *model.PointID
	)
	for page := 0; ; page++ {
		require.Less(t, page, 10, "scroll did not terminate")
		res, err := r.Scroll(ctx, model.ScrollRequest{Offset: offset, Limit: 2})
		require.NoError(t, err)
		for _, rec := range res.Points {
			got = append(got, rec.ID)
		}
		if res.NextPageOffset == nil {
			break
		}
		offset = res.NextPageOffset
	}
	assert.Equal(t, []model.PointID{1, 2, 3, 4, 5, 6}, got)
}

func TestReaderScrollDuplicateResolvedByVersion(t *testing.T) {
	h := NewHolder()
	defer h.Close()

	a := newMemSegment(t)
	require.NoError(t, a.Upsert(1, []float32{1, 0, 0, 0}, nil, 1))
	b := newMemSegment(t)
	require.NoError(t, b.Upsert(1, []float32{0, 1, 0, 0}, nil, 2))
	h.Add(a, false)
	h.Add(b, true)

	res, err := newTestReader(h).Scroll(context.Background(), model.ScrollRequest{Limit: 10, WithVector: true})
	require.NoError(t, err)
	require.Len(t, res.Points, 1)
	assert.Equal(t, []float32{0, 1, 0, 0}, res.Points[0].Vector)
	assert.Nil(t, res.NextPageOffset)
}

func TestReaderScrollFiltered(t *testing.T) {
	r := newTestReader(seedHolder(t))

	filter := metadata.NewFilterSet(metadata.Filter{Key: "group", Operator: metadata.OpEqual, Value: metadata.String("y")})
	res, err := r.Scroll(context.Background(), model.ScrollRequest{Limit: 10, Filter: filter})
	require.NoError(t, err)
	require.Len(t, res.Points, 2)
	assert.Equal(t, model.PointID(2), res.Points[0].ID)
	assert.Equal(t, model.PointID(4), res.Points[1].ID)
}

func TestReaderRetrieve(t *testing.T) {
	r := newTestReader(seedHolder(t))

	recs, err := r.Retrieve(context.Background(), []model.PointID{4, 99, 1}, true, true)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.PointID(4), recs[0].ID)
	assert.Equal(t, model.PointID(1), recs[1].ID)
	assert.NotNil(t, recs[0].Payload)
	assert.NotNil(t, recs[1].Vector)
}
