package network

import (
	"errors"
	"testing"
	"time"
)

func testStations() []Station {
	return []Station{
		{ID: "STA", Name: "Alpha Junction", Platforms: 2, MinDwell: 2 * time.Minute},
		{ID: "STB", Name: "Bravo Central", Platforms: 3, MinDwell: 2 * time.Minute},
		{ID: "STC", Name: "Charlie Halt", Platforms: 1, MinDwell: time.Minute},
	}
}

func testBlocks() []Block {
	return []Block{
		{ID: "BLK-AB", U: "STA", V: "STB", Direction: "up", RunTime: 10 * time.Minute, Headway: 5 * time.Minute, Capacity: 1},
		{ID: "BLK-BC", U: "STB", V: "STC", Direction: "up", RunTime: 8 * time.Minute, Headway: 4 * time.Minute, Capacity: 2},
		{ID: "BLK-BA", U: "STB", V: "STA", Direction: "down", RunTime: 10 * time.Minute, Headway: 5 * time.Minute, Capacity: 1},
	}
}

func TestBuildLookups(t *testing.T) {
	g, err := Build(testStations(), testBlocks())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	b, ok := g.BlockBetween("STA", "STB")
	if !ok || b.ID != "BLK-AB" {
		t.Errorf("BlockBetween(STA, STB) = %v, %v; want BLK-AB", b.ID, ok)
	}
	if _, ok := g.BlockBetween("STA", "STC"); ok {
		t.Error("BlockBetween(STA, STC) should not exist")
	}

	if got := g.PlatformCapacity("STB"); got != 3 {
		t.Errorf("PlatformCapacity(STB) = %d, want 3", got)
	}
	if got := g.PlatformCapacity("missing"); got != 1 {
		t.Errorf("PlatformCapacity(missing) = %d, want default 1", got)
	}

	up := g.Neighbors("STB", "up")
	if len(up) != 1 || up[0].ID != "BLK-BC" {
		t.Errorf("Neighbors(STB, up) = %v, want [BLK-BC]", up)
	}
	all := g.Neighbors("STB", "")
	if len(all) != 2 {
		t.Errorf("Neighbors(STB, any) returned %d blocks, want 2", len(all))
	}
}

func TestBuildDefaultsMissingStationAttributes(t *testing.T) {
	g, err := Build([]Station{{ID: "X"}, {ID: "Y"}}, []Block{
		{ID: "B1", U: "X", V: "Y", RunTime: time.Minute, Headway: time.Minute, Capacity: 1},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s, _ := g.Station("X")
	if s.Platforms != 1 {
		t.Errorf("defaulted platforms = %d, want 1", s.Platforms)
	}
	if s.MinDwell != DefaultMinDwell {
		t.Errorf("defaulted dwell = %v, want %v", s.MinDwell, DefaultMinDwell)
	}
}

// TestBuildRejectsBadTopology covers every InvalidTopology condition; a graph
// failing any of them is unusable downstream so Build must refuse it outright.
func TestBuildRejectsBadTopology(t *testing.T) {
	base := testStations()

	cases := []struct {
		name   string
		blocks []Block
	}{
		{"unknown u", []Block{{ID: "B", U: "nope", V: "STB", RunTime: time.Minute, Headway: time.Minute, Capacity: 1}}},
		{"unknown v", []Block{{ID: "B", U: "STA", V: "nope", RunTime: time.Minute, Headway: time.Minute, Capacity: 1}}},
		{"zero run time", []Block{{ID: "B", U: "STA", V: "STB", RunTime: 0, Headway: time.Minute, Capacity: 1}}},
		{"negative headway", []Block{{ID: "B", U: "STA", V: "STB", RunTime: time.Minute, Headway: -time.Minute, Capacity: 1}}},
		{"zero capacity", []Block{{ID: "B", U: "STA", V: "STB", RunTime: time.Minute, Headway: time.Minute, Capacity: 0}}},
		{"empty block id", []Block{{U: "STA", V: "STB", RunTime: time.Minute, Headway: time.Minute, Capacity: 1}}},
		{"duplicate pair+direction", []Block{
			{ID: "B1", U: "STA", V: "STB", RunTime: time.Minute, Headway: time.Minute, Capacity: 1},
			{ID: "B2", U: "STA", V: "STB", RunTime: time.Minute, Headway: time.Minute, Capacity: 1},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(base, tc.blocks)
			if err == nil {
				t.Fatal("Build accepted a malformed graph")
			}
			var topo *TopologyError
			if !errors.As(err, &topo) {
				t.Fatalf("error type = %T, want *TopologyError", err)
			}
		})
	}
}

func TestStationsAndBlocksAreSorted(t *testing.T) {
	g, err := Build(testStations(), testBlocks())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	stations := g.Stations()
	for i := 1; i < len(stations); i++ {
		if stations[i-1].ID >= stations[i].ID {
			t.Fatalf("Stations() not sorted: %v before %v", stations[i-1].ID, stations[i].ID)
		}
	}
	blocks := g.Blocks()
	for i := 1; i < len(blocks); i++ {
		if blocks[i-1].ID >= blocks[i].ID {
			t.Fatalf("Blocks() not sorted: %v before %v", blocks[i-1].ID, blocks[i].ID)
		}
	}
}
