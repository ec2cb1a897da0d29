package eclipse

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/trajevent/internal/fault"
)

func TestMerge_ScenarioA(t *testing.T) {
	raw := []RawEvent{
		{Start: 0, End: 10, Kind: Umbra, Body: "Earth"},
		{Start: 5, End: 15, Kind: Penumbra, Body: "Earth"},
		{Start: 20, End: 25, Kind: Umbra, Body: "Earth"},
	}

	got := Merge(raw)

	want := Result{
		Events: []TotalEvent{
			{Start: 0, End: 15, Index: 0, Members: raw[:2]},
			{Start: 20, End: 25, Index: 1, Members: raw[2:]},
		},
		MaxIndex:    0,
		MaxDuration: 15,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge(nil)
	assert.Empty(t, got.Events)
	assert.Equal(t, -1, got.MaxIndex)
	assert.Equal(t, -1.0, got.MaxDuration)

	_, err := got.MaxEvent()
	assert.True(t, fault.Is(err, fault.IndexOutOfRange))
}

func TestMerge_Single(t *testing.T) {
	e := RawEvent{Start: 3, End: 4, Kind: Antumbra, Body: "Luna"}
	got := Merge([]RawEvent{e})
	require.Len(t, got.Events, 1)
	assert.Equal(t, []RawEvent{e}, got.Events[0].Members)
	assert.Equal(t, 0, got.MaxIndex)
	assert.Equal(t, 1.0, got.MaxDuration)
}

func TestMerge_UnsortedInputNotMutated(t *testing.T) {
	raw := []RawEvent{
		{Start: 20, End: 25},
		{Start: 5, End: 15},
		{Start: 0, End: 10},
	}
	orig := append([]RawEvent(nil), raw...)

	got := Merge(raw)
	assert.Equal(t, orig, raw)
	require.Len(t, got.Events, 2)
	assert.Equal(t, 0.0, got.Events[0].Start)
	assert.Equal(t, 15.0, got.Events[0].End)
}

func TestMerge_TouchingIntervalsMerge(t *testing.T) {
	got := Merge([]RawEvent{{Start: 0, End: 5}, {Start: 5, End: 8}})
	require.Len(t, got.Events, 1)
	assert.Equal(t, 8.0, got.Events[0].End)
}

func TestMerge_ContainedIntervalKeepsEnd(t *testing.T) {
	got := Merge([]RawEvent{{Start: 0, End: 10}, {Start: 2, End: 3}})
	require.Len(t, got.Events, 1)
	assert.Equal(t, 10.0, got.Events[0].End)
	assert.Equal(t, 2, got.Events[0].NumberOfEvents())
}

func TestMerge_TiesKeepFirstMaximum(t *testing.T) {
	got := Merge([]RawEvent{{Start: 0, End: 2}, {Start: 5, End: 7}, {Start: 10, End: 11}})
	assert.Equal(t, 0, got.MaxIndex)
	assert.Equal(t, 2.0, got.MaxDuration)

	ev, err := got.MaxEvent()
	require.NoError(t, err)
	assert.Equal(t, 0.0, ev.Start)
}

func TestMerge_StableForEqualStarts(t *testing.T) {
	a := RawEvent{Start: 1, End: 2, Kind: Penumbra, Body: "Earth"}
	b := RawEvent{Start: 1, End: 3, Kind: Umbra, Body: "Earth"}
	got := Merge([]RawEvent{a, b})
	require.Len(t, got.Events, 1)
	assert.Equal(t, []RawEvent{a, b}, got.Events[0].Members)
}

func TestMerge_Idempotent(t *testing.T) {
	first := Merge([]RawEvent{
		{Start: 0, End: 10}, {Start: 5, End: 15}, {Start: 20, End: 25}, {Start: 24, End: 30},
	})

	var flattened []RawEvent
	for _, ev := range first.Events {
		flattened = append(flattened, RawEvent{Start: ev.Start, End: ev.End})
	}
	second := Merge(flattened)

	require.Len(t, second.Events, len(first.Events))
	for i, ev := range second.Events {
		assert.Equal(t, first.Events[i].Start, ev.Start)
		assert.Equal(t, first.Events[i].End, ev.End)
		assert.Equal(t, i, ev.Index)
		assert.Equal(t, 1, ev.NumberOfEvents())
	}
	assert.Equal(t, first.MaxIndex, second.MaxIndex)
}

func TestMerge_Completeness(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 100; trial++ {
		n := rng.Intn(30)
		raw := make([]RawEvent, n)
		for i := range raw {
			start := float64(rng.Intn(200))
			raw[i] = RawEvent{Start: start, End: start + float64(rng.Intn(15)), Kind: Kind(rng.Intn(3))}
		}

		got := Merge(raw)
		assert.Equal(t, n, got.IndividualCount(), "trial %d", trial)

		for i := 1; i < got.Len(); i++ {
			assert.Less(t, got.Events[i-1].End, got.Events[i].Start, "trial %d overlap", trial)
			assert.Equal(t, i, got.Events[i].Index)
		}
		for _, ev := range got.Events {
			lo, hi := ev.Members[0].Start, ev.Members[0].End
			for _, m := range ev.Members {
				lo = min(lo, m.Start)
				hi = max(hi, m.End)
			}
			assert.Equal(t, lo, ev.Start)
			assert.Equal(t, hi, ev.End)
		}

		// Every integer point covered by a raw span is covered by exactly
		// one total span, and vice versa.
		for x := 0.0; x <= 215; x += 0.5 {
			inRaw := false
			for _, e := range raw {
				if x >= e.Start && x <= e.End {
					inRaw = true
					break
				}
			}
			idx := sort.Search(got.Len(), func(i int) bool { return got.Events[i].End >= x })
			inTotal := idx < got.Len() && got.Events[idx].Start <= x
			assert.Equal(t, inRaw, inTotal, "trial %d x=%g", trial, x)
		}
	}
}

func TestMergeGroups(t *testing.T) {
	earth := []RawEvent{{Start: 0, End: 10, Kind: Umbra, Body: "Earth"}}
	luna := []RawEvent{{Start: 8, End: 12, Kind: Penumbra, Body: "Luna"}, {Start: 30, End: 31, Kind: Penumbra, Body: "Luna"}}

	got := MergeGroups(earth, luna)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, 3, got.IndividualCount())
}

func TestResult_EventBounds(t *testing.T) {
	got := Merge([]RawEvent{{Start: 0, End: 1}})
	_, err := got.Event(1)
	assert.True(t, fault.Is(err, fault.IndexOutOfRange))
	_, err = got.Event(-1)
	assert.True(t, fault.Is(err, fault.IndexOutOfRange))

	_, err = got.Events[0].Member(3)
	assert.True(t, fault.Is(err, fault.IndexOutOfRange))
}

func TestKind_Text(t *testing.T) {
	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("penumbra")))
	assert.Equal(t, Penumbra, k)

	b, err := Antumbra.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Antumbra", string(b))

	assert.Error(t, k.UnmarshalText([]byte("partial")))
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
