package ingest

import (
	"sort"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// gapLimit is the departure spacing at one station above which a hole in
// the service is flagged as suspicious rather than wrong.
const gapLimit = 3 * time.Hour

// Check runs the cross-record quality pass over loaded events: dwell
// sanity, per-train time monotonicity, station membership, block coverage
// between consecutive stops, and service gap warnings. Findings land in
// the returned report; nothing is mutated.
func Check(g *network.Graph, events []timetable.TrainEvent) *Report {
	rep := &Report{}
	if len(events) == 0 {
		return rep
	}

	unknown := make(map[string]bool)
	for _, e := range events {
		if d, dok := e.BestDep(); dok {
			if a, aok := e.BestArr(); aok && d.Before(a) {
				rep.NegativeDwell++
				rep.errorf("negative dwell for train %s at station %s", e.TrainID, e.StationID)
			}
		}
		if !g.HasStation(e.StationID) && !unknown[e.StationID] {
			unknown[e.StationID] = true
			rep.UnknownStations++
			rep.errorf("unknown station id %s", e.StationID)
		}
	}

	grouped := timetable.ByTrain(events)
	for _, trainID := range timetable.TrainOrder(events) {
		stops := grouped[trainID]
		var prevDep time.Time
		havePrev := false
		for i, e := range stops {
			if a, ok := e.BestArr(); ok && havePrev && a.Before(prevDep) {
				rep.BackwardTimes++
				rep.errorf("backward time for train %s arriving at station %s", trainID, e.StationID)
			}
			if d, ok := e.BestDep(); ok {
				prevDep, havePrev = d, true
			}
			if i == 0 {
				continue
			}
			u, v := stops[i-1].StationID, e.StationID
			if u == v || unknown[u] || unknown[v] {
				continue
			}
			if _, ok := g.BlockBetween(u, v); ok {
				continue
			}
			if _, ok := g.BlockBetween(v, u); ok {
				continue
			}
			rep.MissingBlocks++
			rep.errorf("no block between %s and %s for train %s", u, v, trainID)
		}
	}

	byStation := make(map[string][]timetable.TrainEvent)
	for _, e := range events {
		if _, ok := e.BestDep(); ok {
			byStation[e.StationID] = append(byStation[e.StationID], e)
		}
	}
	stationIDs := make([]string, 0, len(byStation))
	for id := range byStation {
		stationIDs = append(stationIDs, id)
	}
	sort.Strings(stationIDs)
	for _, stationID := range stationIDs {
		deps := byStation[stationID]
		sort.Slice(deps, func(i, j int) bool {
			di, _ := deps[i].BestDep()
			dj, _ := deps[j].BestDep()
			if di.Equal(dj) {
				return deps[i].TrainID < deps[j].TrainID
			}
			return di.Before(dj)
		})
		for i := 1; i < len(deps); i++ {
			prev, _ := deps[i-1].BestDep()
			next, _ := deps[i].BestDep()
			if gap := next.Sub(prev); gap > gapLimit {
				rep.warnf("service gap of %.0f min at station %s before train %s",
					gap.Minutes(), stationID, deps[i].TrainID)
			}
		}
	}

	return rep
}
