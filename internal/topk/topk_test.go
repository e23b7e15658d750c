package topk

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ringvec/model"
)

func hit(id string, score float32) model.Hit {
	return model.Hit{Record: &model.Record{ID: id}, Score: score}
}

func ids(hits []model.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Record.ID
	}
	return out
}

func TestHeapKeepsBest(t *testing.T) {
	h := New(3)
	for i, s := range []float32{0.1, 0.9, 0.5, 0.3, 0.7, 0.2} {
		h.Push(hit(fmt.Sprintf("r%d", i), s))
	}

	require.Equal(t, 3, h.Len())
	top, ok := h.Min()
	require.True(t, ok)
	assert.Equal(t, float32(0.5), top.Score)

	got := h.Sorted()
	assert.Equal(t, []string{"r1", "r4", "r2"}, ids(got))
}

func TestHeapFewerThanK(t *testing.T) {
	h := New(10)
	h.Push(hit("a", 0.2))
	h.Push(hit("b", 0.4))

	assert.Equal(t, 2, h.Len())
	_, full := h.Score()
	assert.False(t, full)
	assert.Equal(t, []string{"b", "a"}, ids(h.Sorted()))
}

func TestHeapZeroK(t *testing.T) {
	for _, k := range []int{0, -3} {
		h := New(k)
		assert.False(t, h.Push(hit("a", 1)))
		assert.Equal(t, 0, h.Len())
		assert.Empty(t, h.Sorted())
		_, ok := h.Min()
		assert.False(t, ok)
	}
}

func TestHeapRejectsEqualScoreWithLargerID(t *testing.T) {
	h := New(1)
	require.True(t, h.Push(hit("b", 0.5)))

	assert.False(t, h.Push(hit("c", 0.5)))
	assert.True(t, h.Push(hit("a", 0.5)))
	assert.Equal(t, []string{"a"}, ids(h.Sorted()))
}

func TestHeapTieBreakByID(t *testing.T) {
	h := New(4)
	for _, id := range []string{"d", "b", "c", "a"} {
		h.Push(hit(id, 1))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(h.Sorted()))
}

func TestHeapMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(4711))

	for round := 0; round < 20; round++ {
		n := 1 + rng.Intn(300)
		k := 1 + rng.Intn(40)

		all := make([]model.Hit, n)
		h := New(k)
		for i := range all {
			all[i] = hit(fmt.Sprintf("id-%04d", i), rng.Float32())
			h.Push(all[i])
		}

		sort.Slice(all, func(i, j int) bool { return model.Less(all[i], all[j]) })
		want := all[:min(k, n)]

		assert.Equal(t, ids(want), ids(h.Sorted()), "round %d", round)
	}
}

func TestHeapReset(t *testing.T) {
	h := New(2)
	h.Push(hit("a", 1))
	h.Push(hit("b", 2))
	h.Reset()

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 2, h.K())
	h.Push(hit("c", 3))
	assert.Equal(t, []string{"c"}, ids(h.Sorted()))
}
