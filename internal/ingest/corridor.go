package ingest

import (
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// Corridor extracts the events of trains that actually travel the given
// station sequence on one service day. A train qualifies when two
// consecutive stops of its itinerary land on adjacent corridor stations,
// in either direction; trains that merely touch a single corridor station
// are dropped, as are events at stations outside the corridor. A negative
// day matches every service day. Input order is preserved.
func Corridor(events []timetable.TrainEvent, stations []string, day int) []timetable.TrainEvent {
	order := make(map[string]int, len(stations))
	for i, id := range stations {
		order[id] = i
	}

	var filtered []timetable.TrainEvent
	for _, e := range events {
		if day >= 0 && e.Day != day {
			continue
		}
		if _, ok := order[e.StationID]; !ok {
			continue
		}
		filtered = append(filtered, e)
	}

	qualified := make(map[string]bool)
	for trainID, stops := range timetable.ByTrain(filtered) {
		for i := 1; i < len(stops); i++ {
			a := order[stops[i-1].StationID]
			b := order[stops[i].StationID]
			if a-b == 1 || b-a == 1 {
				qualified[trainID] = true
				break
			}
		}
	}

	var out []timetable.TrainEvent
	for _, e := range filtered {
		if qualified[e.TrainID] {
			out = append(out, e)
		}
	}
	return out
}
