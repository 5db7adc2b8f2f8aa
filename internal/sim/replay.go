// Package sim replays one service day of train events through the section
// graph under capacity and headway rules. Trains advance whole-train-at-a-time
// in the corridor precedence order, booking block track slots and station
// platform slots as they go; every enforced wait lands in the waiting ledger
// with a reason code. The output is deterministic: identical inputs yield
// byte-identical occupancy, ledger and KPI data.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// DefaultOnTimeThreshold classifies a train as on time when its terminal
// arrival delay does not exceed this.
const DefaultOnTimeThreshold = 5 * time.Minute

// PrecedenceGate forces Follower to trail Leader on one block: the follower
// may not enter before the leader's exit plus the block headway, and the
// leader is replayed before the follower even when the precedence ordering
// says otherwise. Gates whose leader never traverses the block are inert.
type PrecedenceGate struct {
	BlockID  string `json:"blockId"`
	Leader   string `json:"leader"`
	Follower string `json:"follower"`
}

// PlatformPin berths a train on a specific platform slot at a station.
type PlatformPin struct {
	TrainID   string `json:"trainId"`
	StationID string `json:"stationId"`
	Slot      int    `json:"slot"`
}

// Options tune one replay call. The zero value is usable.
type Options struct {
	// PrecedenceGates and PlatformPins carry plan actions into the replay.
	PrecedenceGates []PrecedenceGate
	PlatformPins    []PlatformPin

	// OnTimeThreshold for the KPI block; DefaultOnTimeThreshold when zero.
	OnTimeThreshold time.Duration

	// Workers > 1 replays resource-disjoint contention components
	// concurrently. Trains that share any block or platform always run
	// sequentially in precedence order, so the result never depends on
	// this setting.
	Workers int
}

// Result is the complete outcome of one replay. All slices are sorted
// canonically before return.
type Result struct {
	BlockOccupancy    []BlockOccupancyRecord    `json:"blockOccupancy"`
	PlatformOccupancy []PlatformOccupancyRecord `json:"platformOccupancy"`
	Waiting           []WaitingLedgerEntry      `json:"waiting"`
	Skipped           []SkippedTrain            `json:"skipped"`

	// Events is a realized copy of the replayed trains' stops with actual
	// times filled in. The caller's event slice is never mutated.
	Events []timetable.TrainEvent `json:"events"`

	KPIs KPIs `json:"kpis"`
}

// Replay advances every train through its itinerary under the graph's
// capacity, headway and dwell rules. A train whose itinerary references a
// station or hop absent from the graph is skipped and reported; one bad
// train never aborts the replay.
func Replay(events []timetable.TrainEvent, g *network.Graph, opts Options) (*Result, error) {
	if g == nil {
		return nil, errors.New("sim: nil graph")
	}
	if opts.OnTimeThreshold <= 0 {
		opts.OnTimeThreshold = DefaultOnTimeThreshold
	}

	grouped := timetable.ByTrain(events)
	order := promoteLeaders(timetable.TrainOrder(events), opts.PrecedenceGates)

	res := &Result{}
	routes := make(map[string]*route, len(grouped))
	var runnable []string
	for _, id := range order {
		rt, err := resolveRoute(id, grouped[id], g)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedTrain{TrainID: id, Reason: err.Error()})
			continue
		}
		routes[id] = rt
		runnable = append(runnable, id)
	}

	components := contentionComponents(runnable, routes)
	if opts.Workers > 1 && len(components) > 1 {
		var mu sync.Mutex
		var eg errgroup.Group
		eg.SetLimit(opts.Workers)
		for _, comp := range components {
			comp := comp
			eg.Go(func() error {
				part := runComponent(comp, routes, g, &opts)
				mu.Lock()
				res.absorb(part)
				mu.Unlock()
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, fmt.Errorf("replay components: %w", err)
		}
	} else {
		for _, comp := range components {
			res.absorb(runComponent(comp, routes, g, &opts))
		}
	}

	res.sortCanonical()
	res.KPIs = computeKPIs(res.Events, res.Waiting, len(res.Skipped), opts.OnTimeThreshold)
	return res, nil
}

// route is a train's itinerary with every hop pre-resolved to a block, so
// resource lookups cannot fail mid-walk and a bad itinerary is rejected
// before the train touches any pool.
type route struct {
	trainID string
	stops   []timetable.TrainEvent
	blocks  []network.Block
}

func resolveRoute(trainID string, stops []timetable.TrainEvent, g *network.Graph) (*route, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("itinerary has %d stop(s), need at least 2", len(stops))
	}
	if originReady(stops[0]).IsZero() {
		return nil, fmt.Errorf("origin stop at %s has no usable time", stops[0].StationID)
	}
	for _, s := range stops {
		if !g.HasStation(s.StationID) {
			return nil, &UnknownResourceError{TrainID: trainID, Kind: ResourcePlatform, Resource: s.StationID}
		}
	}
	blocks := make([]network.Block, len(stops)-1)
	for i := 0; i+1 < len(stops); i++ {
		b, ok := g.BlockBetween(stops[i].StationID, stops[i+1].StationID)
		if !ok {
			return nil, &UnknownResourceError{
				TrainID:  trainID,
				Kind:     ResourceBlock,
				Resource: stops[i].StationID + "->" + stops[i+1].StationID,
			}
		}
		blocks[i] = b
	}
	return &route{trainID: trainID, stops: stops, blocks: blocks}, nil
}

// originReady is when a train can first leave its origin stop.
func originReady(stop timetable.TrainEvent) time.Time {
	if d, ok := stop.BestDep(); ok {
		return d
	}
	a, _ := stop.BestArr()
	return a
}

// promoteLeaders adjusts the processing order so every gate's leader runs
// before its follower; the follower's entry bound needs the leader's exit
// already recorded. Gates are applied in sorted order so the adjustment is
// deterministic.
func promoteLeaders(order []string, gates []PrecedenceGate) []string {
	if len(gates) == 0 {
		return order
	}
	sorted := append([]PrecedenceGate(nil), gates...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.BlockID != b.BlockID {
			return a.BlockID < b.BlockID
		}
		if a.Leader != b.Leader {
			return a.Leader < b.Leader
		}
		return a.Follower < b.Follower
	})
	out := append([]string(nil), order...)
	for _, gt := range sorted {
		li, fi := -1, -1
		for i, id := range out {
			switch id {
			case gt.Leader:
				li = i
			case gt.Follower:
				fi = i
			}
		}
		if li < 0 || fi < 0 || li < fi {
			continue
		}
		lead := out[li]
		for j := li; j > fi; j-- {
			out[j] = out[j-1]
		}
		out[fi] = lead
	}
	return out
}

// partial is one contention component's share of the output.
type partial struct {
	occ    []BlockOccupancyRecord
	plat   []PlatformOccupancyRecord
	ledger []WaitingLedgerEntry
	events []timetable.TrainEvent
}

// runner replays the trains of one contention component against its own
// resource pools. Components are resource-disjoint, so pools are never
// shared across runners.
type runner struct {
	g     *network.Graph
	opts  *Options
	pools map[string]*blockPool
	plats map[string]*platformPool
	gated map[string][]PrecedenceGate
	exits map[exitKey]time.Time // recorded exits on gated blocks
	pins  map[pinKey]int
	out   partial
}

type exitKey struct{ blockID, trainID string }
type pinKey struct{ trainID, stationID string }

func runComponent(trains []string, routes map[string]*route, g *network.Graph, opts *Options) partial {
	r := &runner{
		g:     g,
		opts:  opts,
		pools: make(map[string]*blockPool),
		plats: make(map[string]*platformPool),
		gated: make(map[string][]PrecedenceGate),
		exits: make(map[exitKey]time.Time),
		pins:  make(map[pinKey]int),
	}
	for _, gt := range opts.PrecedenceGates {
		r.gated[gt.BlockID] = append(r.gated[gt.BlockID], gt)
	}
	for _, pin := range opts.PlatformPins {
		r.pins[pinKey{pin.TrainID, pin.StationID}] = pin.Slot
	}
	for _, id := range trains {
		r.walk(routes[id])
	}
	return r.out
}

type berthState struct {
	slot    int
	arrival time.Time
}

// walk advances one train through its whole itinerary. Hops alternate block
// traversal and platform dwell; the platform behind the train stays booked
// until the train actually enters the next block, which is what makes
// platform capacity bind for late departures.
func (r *runner) walk(rt *route) {
	stops := timetable.Clone(rt.stops)
	ready := originReady(stops[0])
	var berth *berthState

	for i := range rt.blocks {
		blk := rt.blocks[i]
		from, to := &stops[i], &stops[i+1]

		depart := ready
		if d, ok := from.BestDep(); ok && d.After(depart) {
			depart = d
		}

		// Forced-follower gates raise the earliest admissible entry.
		floor := depart
		for _, gt := range r.gated[blk.ID] {
			if gt.Follower != rt.trainID {
				continue
			}
			exit, done := r.exits[exitKey{blk.ID, gt.Leader}]
			if !done {
				continue
			}
			if bound := exit.Add(blk.Headway); bound.After(floor) {
				floor = bound
			}
		}
		if floor.After(depart) {
			r.out.ledger = append(r.out.ledger, WaitingLedgerEntry{
				TrainID:      rt.trainID,
				ResourceKind: ResourceBlock,
				ResourceID:   blk.ID,
				RequestedAt:  depart,
				ReadyAt:      floor,
				Reason:       WaitPrecedence,
			})
		}

		entry, exit, reason, waited := r.blockPool(blk).acquire(floor)
		if waited {
			r.out.ledger = append(r.out.ledger, WaitingLedgerEntry{
				TrainID:      rt.trainID,
				ResourceKind: ResourceBlock,
				ResourceID:   blk.ID,
				RequestedAt:  floor,
				ReadyAt:      entry,
				Reason:       reason,
			})
		}
		if len(r.gated[blk.ID]) > 0 {
			r.exits[exitKey{blk.ID, rt.trainID}] = exit
		}
		r.out.occ = append(r.out.occ, BlockOccupancyRecord{
			TrainID: rt.trainID, BlockID: blk.ID, Entry: entry, Exit: exit,
		})

		actDep := entry
		from.ActDep = &actDep
		if berth != nil {
			r.out.plat = append(r.out.plat, PlatformOccupancyRecord{
				TrainID:   rt.trainID,
				StationID: from.StationID,
				Slot:      berth.slot,
				Arrival:   berth.arrival,
				Departure: entry,
			})
			r.platPool(from.StationID).release(berth.slot, entry)
		}

		pin := -1
		if p, ok := r.pins[pinKey{rt.trainID, to.StationID}]; ok {
			pin = p
		}
		slot, platArr, platWaited := r.platPool(to.StationID).acquire(exit, pin)
		if platWaited {
			r.out.ledger = append(r.out.ledger, WaitingLedgerEntry{
				TrainID:      rt.trainID,
				ResourceKind: ResourcePlatform,
				ResourceID:   to.StationID,
				RequestedAt:  exit,
				ReadyAt:      platArr,
				Reason:       WaitCapacity,
			})
		}
		actArr := platArr
		to.ActArr = &actArr
		berth = &berthState{slot: slot, arrival: platArr}

		ready = platArr.Add(r.g.MinDwell(to.StationID))
		if d, ok := to.BestDep(); ok && d.After(ready) {
			ready = d
		}
	}

	// Terminal stop: the berth frees at the earliest permitted departure.
	last := &stops[len(stops)-1]
	dep := ready
	r.out.plat = append(r.out.plat, PlatformOccupancyRecord{
		TrainID:   rt.trainID,
		StationID: last.StationID,
		Slot:      berth.slot,
		Arrival:   berth.arrival,
		Departure: dep,
	})
	r.platPool(last.StationID).release(berth.slot, dep)
	actDep := dep
	last.ActDep = &actDep

	r.out.events = append(r.out.events, stops...)
}

func (r *runner) blockPool(b network.Block) *blockPool {
	p, ok := r.pools[b.ID]
	if !ok {
		p = newBlockPool(b)
		r.pools[b.ID] = p
	}
	return p
}

func (r *runner) platPool(stationID string) *platformPool {
	p, ok := r.plats[stationID]
	if !ok {
		p = newPlatformPool(stationID, r.g.PlatformCapacity(stationID))
		r.plats[stationID] = p
	}
	return p
}

func (res *Result) absorb(p partial) {
	res.BlockOccupancy = append(res.BlockOccupancy, p.occ...)
	res.PlatformOccupancy = append(res.PlatformOccupancy, p.plat...)
	res.Waiting = append(res.Waiting, p.ledger...)
	res.Events = append(res.Events, p.events...)
}

// sortCanonical fixes one total order per output table so that merge order
// across components never shows in the result.
func (res *Result) sortCanonical() {
	sort.Slice(res.BlockOccupancy, func(i, j int) bool {
		a, b := res.BlockOccupancy[i], res.BlockOccupancy[j]
		if !a.Entry.Equal(b.Entry) {
			return a.Entry.Before(b.Entry)
		}
		if a.BlockID != b.BlockID {
			return a.BlockID < b.BlockID
		}
		return a.TrainID < b.TrainID
	})
	sort.Slice(res.PlatformOccupancy, func(i, j int) bool {
		a, b := res.PlatformOccupancy[i], res.PlatformOccupancy[j]
		if !a.Arrival.Equal(b.Arrival) {
			return a.Arrival.Before(b.Arrival)
		}
		if a.StationID != b.StationID {
			return a.StationID < b.StationID
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		return a.TrainID < b.TrainID
	})
	sort.Slice(res.Waiting, func(i, j int) bool {
		a, b := res.Waiting[i], res.Waiting[j]
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.Before(b.RequestedAt)
		}
		if a.TrainID != b.TrainID {
			return a.TrainID < b.TrainID
		}
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		return a.Reason < b.Reason
	})
	sort.Slice(res.Skipped, func(i, j int) bool {
		a, b := res.Skipped[i], res.Skipped[j]
		if a.TrainID != b.TrainID {
			return a.TrainID < b.TrainID
		}
		return a.Reason < b.Reason
	})
	sort.Slice(res.Events, func(i, j int) bool {
		a, b := res.Events[i], res.Events[j]
		if a.TrainID != b.TrainID {
			return a.TrainID < b.TrainID
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if !a.SchedArr.Equal(b.SchedArr) {
			return a.SchedArr.Before(b.SchedArr)
		}
		if !a.SchedDep.Equal(b.SchedDep) {
			return a.SchedDep.Before(b.SchedDep)
		}
		return a.StationID < b.StationID
	})
}
