package eclipse

import (
	"sort"

	"github.com/star/trajevent/internal/fault"
	"github.com/star/trajevent/internal/metrics"
)

// Result is the output of Merge.
type Result struct {
	Events []TotalEvent `json:"events"`
	// MaxIndex is the index of the longest total event, or -1 when there
	// are none. Ties keep the lowest index.
	MaxIndex int `json:"max_index"`
	// MaxDuration is the duration of that event, or -1.
	MaxDuration float64 `json:"max_duration"`
}

// Merge sorts raw by start and coalesces overlapping or touching intervals
// into total events. raw is not modified.
func Merge(raw []RawEvent) Result {
	res := Result{MaxIndex: -1, MaxDuration: -1}
	if len(raw) == 0 {
		return res
	}

	sorted := make([]RawEvent, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	current := TotalEvent{
		Start:   sorted[0].Start,
		End:     sorted[0].End,
		Index:   0,
		Members: []RawEvent{sorted[0]},
	}
	for _, e := range sorted[1:] {
		if e.Start > current.End {
			res.Events = append(res.Events, current)
			current = TotalEvent{
				Start:   e.Start,
				End:     e.End,
				Index:   current.Index + 1,
				Members: []RawEvent{e},
			}
			continue
		}
		current.Members = append(current.Members, e)
		if e.End > current.End {
			current.End = e.End
		}
	}
	res.Events = append(res.Events, current)

	for i, ev := range res.Events {
		if d := ev.Duration(); d > res.MaxDuration {
			res.MaxDuration = d
			res.MaxIndex = i
		}
	}

	metrics.RecordMerge(len(raw), len(res.Events))
	return res
}

// MergeGroups merges raw events delivered as separate lists, one per
// occulting body and kind.
func MergeGroups(groups ...[]RawEvent) Result {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	all := make([]RawEvent, 0, n)
	for _, g := range groups {
		all = append(all, g...)
	}
	return Merge(all)
}

// Len returns the number of total events.
func (r Result) Len() int {
	return len(r.Events)
}

// IndividualCount returns the number of raw events across all totals.
func (r Result) IndividualCount() int {
	var n int
	for _, ev := range r.Events {
		n += ev.NumberOfEvents()
	}
	return n
}

// Event returns the i-th total event.
func (r Result) Event(i int) (TotalEvent, error) {
	if i < 0 || i >= len(r.Events) {
		return TotalEvent{}, fault.New(fault.IndexOutOfRange, "eclipse.Result.Event",
			"index %d out of range [0, %d)", i, len(r.Events))
	}
	return r.Events[i], nil
}

// MaxEvent returns the longest total event.
func (r Result) MaxEvent() (TotalEvent, error) {
	return r.Event(r.MaxIndex)
}
