// Package network models the rail section as a typed graph of stations
// (nodes) and blocks (directed track sections between adjacent stations).
// A Graph is immutable once built; all lookups are read-only and safe for
// concurrent use.
package network

import (
	"fmt"
	"sort"
	"time"
)

// DefaultMinDwell is assumed when a station row carries no dwell value.
const DefaultMinDwell = 2 * time.Minute

// Station is a node in the section graph.
type Station struct {
	ID        string
	Name      string
	Platforms int           // parallel platform slots, >= 1
	MinDwell  time.Duration // minimum time a train occupies a platform
	Zone      string
	Lat       *float64 // optional geocoordinates, display only
	Lon       *float64
}

// Block is a directed track section between two stations. It is the atomic
// resource unit for headway and capacity checks.
type Block struct {
	ID        string
	U, V      string // from / to station IDs
	Direction string // operational direction label, may be empty
	RunTime   time.Duration
	Headway   time.Duration // minimum exit-to-entry separation for successive occupants
	Capacity  int           // parallel tracks, >= 1
}

// Graph is the validated section topology.
type Graph struct {
	stations map[string]Station
	blocks   map[string]Block
	byPair   map[pairKey]string   // (u,v,direction) -> block id
	outgoing map[string][]string  // station id -> outgoing block ids, sorted
}

type pairKey struct {
	u, v, direction string
}

// Build validates station and block rows and assembles the lookup structures
// the simulator needs. It fails with a *TopologyError when a block references
// an unknown station, when run time or headway is non-positive, when capacity
// is below 1, or when two blocks collide on the same (u, v, direction).
func Build(stations []Station, blocks []Block) (*Graph, error) {
	g := &Graph{
		stations: make(map[string]Station, len(stations)),
		blocks:   make(map[string]Block, len(blocks)),
		byPair:   make(map[pairKey]string, len(blocks)),
		outgoing: make(map[string][]string),
	}

	for _, s := range stations {
		if s.ID == "" {
			return nil, topologyErrorf("station with empty id")
		}
		if _, dup := g.stations[s.ID]; dup {
			return nil, topologyErrorf("duplicate station %q", s.ID)
		}
		if s.Platforms < 1 {
			s.Platforms = 1
		}
		if s.MinDwell <= 0 {
			s.MinDwell = DefaultMinDwell
		}
		g.stations[s.ID] = s
	}

	for _, b := range blocks {
		if b.ID == "" {
			return nil, topologyErrorf("block between %q and %q has empty id", b.U, b.V)
		}
		if _, dup := g.blocks[b.ID]; dup {
			return nil, topologyErrorf("duplicate block %q", b.ID)
		}
		if _, ok := g.stations[b.U]; !ok {
			return nil, topologyErrorf("block %q references unknown station %q", b.ID, b.U)
		}
		if _, ok := g.stations[b.V]; !ok {
			return nil, topologyErrorf("block %q references unknown station %q", b.ID, b.V)
		}
		if b.RunTime <= 0 {
			return nil, topologyErrorf("block %q has non-positive run time %v", b.ID, b.RunTime)
		}
		if b.Headway <= 0 {
			return nil, topologyErrorf("block %q has non-positive headway %v", b.ID, b.Headway)
		}
		if b.Capacity < 1 {
			return nil, topologyErrorf("block %q has capacity %d, want >= 1", b.ID, b.Capacity)
		}
		key := pairKey{b.U, b.V, b.Direction}
		if other, clash := g.byPair[key]; clash {
			return nil, topologyErrorf("blocks %q and %q both connect %s->%s (direction %q); model parallel tracks as capacity instead", other, b.ID, b.U, b.V, b.Direction)
		}
		g.byPair[key] = b.ID
		g.blocks[b.ID] = b
		g.outgoing[b.U] = append(g.outgoing[b.U], b.ID)
	}

	for _, ids := range g.outgoing {
		sort.Strings(ids)
	}

	return g, nil
}

// Station returns the station with the given id.
func (g *Graph) Station(id string) (Station, bool) {
	s, ok := g.stations[id]
	return s, ok
}

// Block returns the block with the given id.
func (g *Graph) Block(id string) (Block, bool) {
	b, ok := g.blocks[id]
	return b, ok
}

// BlockBetween resolves the block joining u to v. When several directions
// exist for the pair, the one with an empty direction label wins, then the
// lexicographically first labelled one.
func (g *Graph) BlockBetween(u, v string) (Block, bool) {
	if id, ok := g.byPair[pairKey{u, v, ""}]; ok {
		return g.blocks[id], true
	}
	var best string
	for key, id := range g.byPair {
		if key.u != u || key.v != v {
			continue
		}
		if best == "" || id < best {
			best = id
		}
	}
	if best == "" {
		return Block{}, false
	}
	return g.blocks[best], true
}

// Neighbors returns the outgoing blocks from a station. A non-empty direction
// restricts the result to blocks carrying that direction label.
func (g *Graph) Neighbors(stationID, direction string) []Block {
	var out []Block
	for _, id := range g.outgoing[stationID] {
		b := g.blocks[id]
		if direction != "" && b.Direction != direction {
			continue
		}
		out = append(out, b)
	}
	return out
}

// PlatformCapacity returns the number of platform slots at a station,
// defaulting to 1 for unknown stations so callers degrade gracefully.
func (g *Graph) PlatformCapacity(stationID string) int {
	if s, ok := g.stations[stationID]; ok {
		return s.Platforms
	}
	return 1
}

// MinDwell returns the minimum dwell at a station, with the graph-wide
// default for unknown stations.
func (g *Graph) MinDwell(stationID string) time.Duration {
	if s, ok := g.stations[stationID]; ok {
		return s.MinDwell
	}
	return DefaultMinDwell
}

// Stations returns all stations sorted by id.
func (g *Graph) Stations() []Station {
	out := make([]Station, 0, len(g.stations))
	for _, s := range g.stations {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Blocks returns all blocks sorted by id.
func (g *Graph) Blocks() []Block {
	out := make([]Block, 0, len(g.blocks))
	for _, b := range g.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasStation reports whether the station id exists in the graph.
func (g *Graph) HasStation(id string) bool {
	_, ok := g.stations[id]
	return ok
}

func (g *Graph) String() string {
	return fmt.Sprintf("Graph(%d stations, %d blocks)", len(g.stations), len(g.blocks))
}
