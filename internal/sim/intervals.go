package sim

import (
	"sort"
	"time"
)

// Interval is one occupancy span on a resource, half open: [Start, End).
type Interval struct {
	TrainID string    `json:"trainId"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// IntervalLog indexes occupancy spans by resource for conflict queries.
// Spans are appended, then each query works on a per-resource list sorted by
// start time with a running max-end array, so window lookups cost
// O(log n + matches) instead of a full rescan. Not safe for concurrent
// mutation; freeze it (first query does) before sharing across goroutines.
type IntervalLog struct {
	res    map[ResourceRef]*intervalSeq
	sorted bool
}

type intervalSeq struct {
	items  []Interval
	maxEnd []time.Time // maxEnd[i] = max End over items[0..i], non-decreasing
}

// NewIntervalLog returns an empty log.
func NewIntervalLog() *IntervalLog {
	return &IntervalLog{res: make(map[ResourceRef]*intervalSeq)}
}

// Add appends one span to a resource.
func (l *IntervalLog) Add(ref ResourceRef, iv Interval) {
	seq, ok := l.res[ref]
	if !ok {
		seq = &intervalSeq{}
		l.res[ref] = seq
	}
	seq.items = append(seq.items, iv)
	l.sorted = false
}

// Freeze sorts every resource's spans and builds the query index. Queries
// freeze lazily, so calling this is only needed before concurrent reads.
func (l *IntervalLog) Freeze() *IntervalLog {
	if l.sorted {
		return l
	}
	for _, seq := range l.res {
		sort.Slice(seq.items, func(i, j int) bool {
			a, b := seq.items[i], seq.items[j]
			if !a.Start.Equal(b.Start) {
				return a.Start.Before(b.Start)
			}
			if !a.End.Equal(b.End) {
				return a.End.Before(b.End)
			}
			return a.TrainID < b.TrainID
		})
		seq.maxEnd = seq.maxEnd[:0]
		var maxEnd time.Time
		for _, iv := range seq.items {
			if iv.End.After(maxEnd) {
				maxEnd = iv.End
			}
			seq.maxEnd = append(seq.maxEnd, maxEnd)
		}
	}
	l.sorted = true
	return l
}

// Resources lists every indexed resource, sorted.
func (l *IntervalLog) Resources() []ResourceRef {
	out := make([]ResourceRef, 0, len(l.res))
	for ref := range l.res {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Intervals returns a resource's spans sorted by start. The slice is shared;
// callers must not mutate it.
func (l *IntervalLog) Intervals(ref ResourceRef) []Interval {
	l.Freeze()
	seq, ok := l.res[ref]
	if !ok {
		return nil
	}
	return seq.items
}

// Overlapping returns the spans intersecting the half-open window [from, to),
// in start order.
func (l *IntervalLog) Overlapping(ref ResourceRef, from, to time.Time) []Interval {
	l.Freeze()
	seq, ok := l.res[ref]
	if !ok {
		return nil
	}
	// hi: first span starting at or beyond the window end.
	hi := sort.Search(len(seq.items), func(i int) bool {
		return !seq.items[i].Start.Before(to)
	})
	// lo: before this index every span has ended by `from`; maxEnd is
	// non-decreasing, so this is binary-searchable too.
	lo := sort.Search(hi, func(i int) bool {
		return seq.maxEnd[i].After(from)
	})
	var out []Interval
	for _, iv := range seq.items[lo:hi] {
		if iv.End.After(from) {
			out = append(out, iv)
		}
	}
	return out
}

// ActiveAt returns the spans covering the instant t.
func (l *IntervalLog) ActiveAt(ref ResourceRef, t time.Time) []Interval {
	return l.Overlapping(ref, t, t.Add(time.Nanosecond))
}

// MaxConcurrent sweeps the window and returns the peak number of
// simultaneous spans and the earliest instant at which it occurs.
func (l *IntervalLog) MaxConcurrent(ref ResourceRef, from, to time.Time) (int, time.Time) {
	ivs := l.Overlapping(ref, from, to)
	if len(ivs) == 0 {
		return 0, time.Time{}
	}
	type edge struct {
		at    time.Time
		delta int
	}
	edges := make([]edge, 0, 2*len(ivs))
	for _, iv := range ivs {
		start, end := iv.Start, iv.End
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		edges = append(edges, edge{start, +1}, edge{end, -1})
	}
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].at.Equal(edges[j].at) {
			return edges[i].at.Before(edges[j].at)
		}
		// Ends release before starts book: spans are half open.
		return edges[i].delta < edges[j].delta
	})
	peak, cur := 0, 0
	var at time.Time
	for _, e := range edges {
		cur += e.delta
		if cur > peak {
			peak = cur
			at = e.at
		}
	}
	return peak, at
}

// IntervalLog indexes the replay's raw occupancy records: blocks under
// ResourceBlock keys and platform stays under ResourcePlatform keys.
func (res *Result) IntervalLog() *IntervalLog {
	l := NewIntervalLog()
	for _, r := range res.BlockOccupancy {
		l.Add(ResourceRef{Kind: ResourceBlock, ID: r.BlockID}, Interval{TrainID: r.TrainID, Start: r.Entry, End: r.Exit})
	}
	for _, r := range res.PlatformOccupancy {
		l.Add(ResourceRef{Kind: ResourcePlatform, ID: r.StationID}, Interval{TrainID: r.TrainID, Start: r.Arrival, End: r.Departure})
	}
	return l.Freeze()
}
