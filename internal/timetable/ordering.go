package timetable

import (
	"sort"
	"time"
)

// TrainKey anchors a train in the precedence ordering: priority class first
// (lower wins), then the earliest known schedule time, then the train id.
// This is the one total ordering used everywhere precedence between trains
// is decided - replay processing order, greedy follower choice, tie-breaks -
// so the rule stays testable in isolation.
type TrainKey struct {
	TrainID  string
	Priority int
	First    time.Time
}

// Compare returns -1, 0 or 1 ordering a before b. It is total: two distinct
// trains never compare equal because the train id breaks the final tie.
func Compare(a, b TrainKey) int {
	if a.Priority != b.Priority {
		if a.Priority < b.Priority {
			return -1
		}
		return 1
	}
	if !a.First.Equal(b.First) {
		if a.First.Before(b.First) {
			return -1
		}
		return 1
	}
	switch {
	case a.TrainID < b.TrainID:
		return -1
	case a.TrainID > b.TrainID:
		return 1
	}
	return 0
}

// Keys derives the ordering anchor for every train in the event set.
func Keys(events []TrainEvent) map[string]TrainKey {
	keys := make(map[string]TrainKey)
	for _, e := range events {
		k, seen := keys[e.TrainID]
		if !seen {
			k = TrainKey{TrainID: e.TrainID, Priority: e.Priority}
		}
		if t, ok := e.earliestKnown(); ok && (k.First.IsZero() || t.Before(k.First)) {
			k.First = t
		}
		keys[e.TrainID] = k
	}
	return keys
}

// TrainOrder returns all train ids in precedence order. The result is
// deterministic for a fixed input, which the replay engine relies on for
// byte-identical reruns.
func TrainOrder(events []TrainEvent) []string {
	keys := Keys(events)
	order := make([]TrainKey, 0, len(keys))
	for _, k := range keys {
		order = append(order, k)
	}
	sort.Slice(order, func(i, j int) bool { return Compare(order[i], order[j]) < 0 })
	ids := make([]string, len(order))
	for i, k := range order {
		ids[i] = k.TrainID
	}
	return ids
}
