// Package timetable holds the train event model and the single precedence
// ordering used everywhere two trains contend for a resource.
package timetable

import (
	"errors"
	"sort"
	"time"
)

// TrainEvent records one train's scheduled and realized timing at a station.
// Events are created by ingestion; the replay engine fills realized times on
// its own outputs and the apply step shifts copies, never the originals.
type TrainEvent struct {
	TrainID   string     `json:"trainId"`
	StationID string     `json:"stationId"`
	SchedArr  time.Time  `json:"schedArr"`
	SchedDep  time.Time  `json:"schedDep"`
	ActArr    *time.Time `json:"actArr,omitempty"`
	ActDep    *time.Time `json:"actDep,omitempty"`
	Priority  int        `json:"priority"` // ordinal class, lower = more important
	Seq       int        `json:"seq"`      // position in the train's itinerary, 0 when unknown
	Day       int        `json:"day"`      // service day number within the dataset
}

// Validate rejects events that cannot participate in a replay. Malformed rows
// are dropped at the ingestion boundary, not deep inside simulation.
func (e TrainEvent) Validate() error {
	switch {
	case e.TrainID == "":
		return errors.New("train id is empty")
	case e.StationID == "":
		return errors.New("station id is empty")
	case e.SchedArr.IsZero() && e.SchedDep.IsZero():
		return errors.New("event has neither scheduled arrival nor departure")
	case !e.SchedArr.IsZero() && !e.SchedDep.IsZero() && e.SchedDep.Before(e.SchedArr):
		return errors.New("scheduled departure precedes scheduled arrival")
	case e.ActArr != nil && e.ActDep != nil && e.ActDep.Before(*e.ActArr):
		return errors.New("actual departure precedes actual arrival")
	case e.Priority < 0:
		return errors.New("priority must be non-negative")
	}
	return nil
}

// BestArr returns the best known arrival time, preferring the actual one.
func (e TrainEvent) BestArr() (time.Time, bool) {
	if e.ActArr != nil && !e.ActArr.IsZero() {
		return *e.ActArr, true
	}
	if !e.SchedArr.IsZero() {
		return e.SchedArr, true
	}
	return time.Time{}, false
}

// BestDep returns the best known departure time, preferring the actual one.
func (e TrainEvent) BestDep() (time.Time, bool) {
	if e.ActDep != nil && !e.ActDep.IsZero() {
		return *e.ActDep, true
	}
	if !e.SchedDep.IsZero() {
		return e.SchedDep, true
	}
	return time.Time{}, false
}

// earliestKnown is the first defined timestamp among the event's four time
// fields, used to anchor a train in the precedence ordering.
func (e TrainEvent) earliestKnown() (time.Time, bool) {
	var best time.Time
	found := false
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if !found || t.Before(best) {
			best = t
			found = true
		}
	}
	consider(e.SchedArr)
	consider(e.SchedDep)
	if e.ActArr != nil {
		consider(*e.ActArr)
	}
	if e.ActDep != nil {
		consider(*e.ActDep)
	}
	return best, found
}

// Clone returns a deep copy of the slice. The apply step works on clones so
// the baseline timeline is always recoverable.
func Clone(events []TrainEvent) []TrainEvent {
	out := make([]TrainEvent, len(events))
	for i, e := range events {
		out[i] = e
		if e.ActArr != nil {
			t := *e.ActArr
			out[i].ActArr = &t
		}
		if e.ActDep != nil {
			t := *e.ActDep
			out[i].ActDep = &t
		}
	}
	return out
}

// ShiftDeparture returns a copy of events with one train's departure at one
// station pushed back by delta from its best known value. The caller's slice
// is untouched; holds are modeled this way so a held timetable can always be
// re-derived from the original.
func ShiftDeparture(events []TrainEvent, trainID, stationID string, delta time.Duration) []TrainEvent {
	out := Clone(events)
	for i := range out {
		e := &out[i]
		if e.TrainID != trainID || e.StationID != stationID {
			continue
		}
		if d, ok := e.BestDep(); ok {
			held := d.Add(delta)
			e.ActDep = &held
		}
	}
	return out
}

// SortStops orders one train's events along its itinerary: by Seq when any
// stop carries one, otherwise by best departure then best arrival time.
func SortStops(stops []TrainEvent) {
	haveSeq := false
	for _, e := range stops {
		if e.Seq > 0 {
			haveSeq = true
			break
		}
	}
	sort.SliceStable(stops, func(i, j int) bool {
		if haveSeq {
			return stops[i].Seq < stops[j].Seq
		}
		di, iok := stops[i].BestDep()
		dj, jok := stops[j].BestDep()
		if iok && jok && !di.Equal(dj) {
			return di.Before(dj)
		}
		ai, iok := stops[i].BestArr()
		aj, jok := stops[j].BestArr()
		if iok && jok {
			return ai.Before(aj)
		}
		return i < j
	})
}

// ByTrain groups events per train with stops sorted along the itinerary.
// The returned map's iteration order is not deterministic; pair it with
// TrainOrder for anything that affects output.
func ByTrain(events []TrainEvent) map[string][]TrainEvent {
	grouped := make(map[string][]TrainEvent)
	for _, e := range events {
		grouped[e.TrainID] = append(grouped[e.TrainID], e)
	}
	for _, stops := range grouped {
		SortStops(stops)
	}
	return grouped
}

// Priorities extracts one priority class per train (the first stop's value).
func Priorities(events []TrainEvent) map[string]int {
	grouped := ByTrain(events)
	out := make(map[string]int, len(grouped))
	for id, stops := range grouped {
		if len(stops) > 0 {
			out[id] = stops[0].Priority
		}
	}
	return out
}
