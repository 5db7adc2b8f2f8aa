package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 15, hour, min, 0, 0, time.UTC)
}

func stop(train, station string, seq int, arr, dep time.Time, prio int) timetable.TrainEvent {
	return timetable.TrainEvent{
		TrainID:   train,
		StationID: station,
		SchedArr:  arr,
		SchedDep:  dep,
		Priority:  prio,
		Seq:       seq,
	}
}

func TestReadStationsParsesAndSkips(t *testing.T) {
	// Shuffled column order, one row missing its id, one with a bad
	// platform count.
	in := strings.NewReader(strings.TrimSpace(`
name,station_id,platforms,min_dwell_min,zone,lat,lon
Alpha,STA,2,1.5,Z1,41.38,2.17
Beta,STB,,,,,
,STC,1,2,,,
Gamma,STD,x,2,,,
`))
	stations, rep, err := ReadStations(in)
	if err != nil {
		t.Fatalf("ReadStations: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("loaded %d stations, want 2", len(stations))
	}
	s := stations[0]
	if s.ID != "STA" || s.Name != "Alpha" || s.Platforms != 2 || s.Zone != "Z1" {
		t.Errorf("first station = %+v", s)
	}
	if s.MinDwell != 90*time.Second {
		t.Errorf("MinDwell = %v, want 90s", s.MinDwell)
	}
	if s.Lat == nil || *s.Lat != 41.38 {
		t.Errorf("Lat = %v, want 41.38", s.Lat)
	}
	if stations[1].Lat != nil {
		t.Errorf("empty coordinate should stay nil, got %v", *stations[1].Lat)
	}
	if rep.RowsRead != 4 || rep.RowsLoaded != 2 {
		t.Errorf("rows read/loaded = %d/%d, want 4/2", rep.RowsRead, rep.RowsLoaded)
	}
	if rep.MissingValues != 1 || rep.MalformedRows != 1 {
		t.Errorf("missing/malformed = %d/%d, want 1/1", rep.MissingValues, rep.MalformedRows)
	}
}

func TestReadBlocksConvertsMinutes(t *testing.T) {
	in := strings.NewReader(strings.TrimSpace(`
u,v,block_id,min_run_time,headway,capacity,direction
STA,STB,BLK-AB,10,5,2,up
STB,STC,BLK-BC,8.5,3,,
STA,STA,BLK-LOOP,5,2,1,
STC,STD,,5,2,1,
`))
	blocks, rep, err := ReadBlocks(in)
	if err != nil {
		t.Fatalf("ReadBlocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("loaded %d blocks, want 2", len(blocks))
	}
	b := blocks[0]
	if b.ID != "BLK-AB" || b.U != "STA" || b.V != "STB" || b.Direction != "up" {
		t.Errorf("first block = %+v", b)
	}
	if b.RunTime != 10*time.Minute || b.Headway != 5*time.Minute || b.Capacity != 2 {
		t.Errorf("run/headway/capacity = %v/%v/%d", b.RunTime, b.Headway, b.Capacity)
	}
	if blocks[1].RunTime != 8*time.Minute+30*time.Second {
		t.Errorf("fractional run time = %v, want 8m30s", blocks[1].RunTime)
	}
	if blocks[1].Capacity != 1 {
		t.Errorf("empty capacity should default to 1, got %d", blocks[1].Capacity)
	}
	// The self-loop fails field validation, the id-less row counts as
	// missing values.
	if rep.MalformedRows != 1 || rep.MissingValues != 1 {
		t.Errorf("malformed/missing = %d/%d, want 1/1", rep.MalformedRows, rep.MissingValues)
	}
}

func TestReadEventsAnchorsClockTimesOnServiceDate(t *testing.T) {
	in := strings.NewReader(strings.TrimSpace(`
train_id,station_id,sched_arr,sched_dep,act_arr,act_dep,priority,stop_seq,service_date
EXP-1,STA,,09:00:00,,09:03,1,1,2024-03-15
EXP-1,STB,09:10:00,09:12:00,,,1,2,2024-03-15
LOC-2,STA,,2024-03-16T08:00:00Z,,,3,1,
`))
	events, dates, rep, err := ReadEvents(in)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 3 || rep.RowsLoaded != 3 {
		t.Fatalf("loaded %d events (report %d), want 3", len(events), rep.RowsLoaded)
	}

	first := events[0]
	if !first.SchedDep.Equal(at(9, 0)) {
		t.Errorf("clock sched_dep = %v, want %v", first.SchedDep, at(9, 0))
	}
	if first.ActDep == nil || !first.ActDep.Equal(at(9, 3)) {
		t.Errorf("clock act_dep = %v, want %v", first.ActDep, at(9, 3))
	}
	if first.ActArr != nil {
		t.Errorf("empty act_arr should stay nil, got %v", *first.ActArr)
	}

	if len(dates) != 2 {
		t.Fatalf("service dates = %v, want 2 entries", dates)
	}
	if !dates[0].Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("dates[0] = %v, want 2024-03-15", dates[0])
	}
	if events[0].Day != 0 || events[2].Day != 1 {
		t.Errorf("day ordinals = %d/%d, want 0/1", events[0].Day, events[2].Day)
	}
}

func TestReadEventsDropsInvalidRows(t *testing.T) {
	in := strings.NewReader(strings.TrimSpace(`
train_id,station_id,sched_arr,sched_dep,act_arr,act_dep,priority,stop_seq,service_date
T1,STA,,,,,2,1,2024-03-15
T2,STA,09:10,09:05,,,2,1,2024-03-15
T3,STA,,09:00,,,x,1,2024-03-15
,STA,,09:00,,,2,1,2024-03-15
T5,STA,,09:20,,,2,1,2024-03-15
`))
	events, _, rep, err := ReadEvents(in)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 1 || events[0].TrainID != "T5" {
		t.Fatalf("surviving events = %+v, want only T5", events)
	}
	if rep.RowsRead != 5 || rep.RowsLoaded != 1 {
		t.Errorf("rows read/loaded = %d/%d, want 5/1", rep.RowsRead, rep.RowsLoaded)
	}
	if rep.MissingValues != 2 {
		t.Errorf("MissingValues = %d, want 2 (timeless row and id-less row)", rep.MissingValues)
	}
	if rep.NegativeDwell != 1 {
		t.Errorf("NegativeDwell = %d, want 1", rep.NegativeDwell)
	}
	if rep.MalformedRows != 1 {
		t.Errorf("MalformedRows = %d, want 1 (bad priority)", rep.MalformedRows)
	}
	if rep.OK() {
		t.Error("report with a negative dwell finding should not be OK")
	}
}

func checkGraph(t *testing.T) *network.Graph {
	t.Helper()
	g, err := network.Build(
		[]network.Station{
			{ID: "STA", Platforms: 2},
			{ID: "STB", Platforms: 2},
			{ID: "STC", Platforms: 2},
		},
		[]network.Block{
			{ID: "BLK-AB", U: "STA", V: "STB", RunTime: 10 * time.Minute, Headway: 5 * time.Minute, Capacity: 1},
		},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestCheckFindsCrossRecordIssues(t *testing.T) {
	g := checkGraph(t)
	actDep := at(9, 35)
	events := []timetable.TrainEvent{
		// Arrives at the next stop before it left the previous one.
		stop("T-BAD", "STA", 1, time.Time{}, at(9, 0), 2),
		stop("T-BAD", "STB", 2, at(8, 50), time.Time{}, 2),
		// Hops between stations with no connecting block.
		stop("T-GAP", "STA", 1, time.Time{}, at(9, 5), 2),
		stop("T-GAP", "STC", 2, at(9, 20), time.Time{}, 2),
		// Visits a station the topology does not know.
		stop("T-GHOST", "STX", 1, at(9, 30), at(9, 32), 2),
		// Actual departure ahead of the scheduled arrival it falls back on.
		{TrainID: "T-DWELL", StationID: "STA", SchedArr: at(9, 40), ActDep: &actDep, Priority: 2, Seq: 1},
	}

	rep := Check(g, events)
	if rep.BackwardTimes != 1 {
		t.Errorf("BackwardTimes = %d, want 1", rep.BackwardTimes)
	}
	if rep.MissingBlocks != 1 {
		t.Errorf("MissingBlocks = %d, want 1", rep.MissingBlocks)
	}
	if rep.UnknownStations != 1 {
		t.Errorf("UnknownStations = %d, want 1", rep.UnknownStations)
	}
	if rep.NegativeDwell != 1 {
		t.Errorf("NegativeDwell = %d, want 1", rep.NegativeDwell)
	}
	if rep.OK() {
		t.Error("report with errors should not be OK")
	}
	if !errors.Is(rep.Err(), ErrDataQuality) {
		t.Errorf("Err() = %v, want ErrDataQuality", rep.Err())
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", rep.Warnings)
	}
}

func TestCheckWarnsOnServiceGaps(t *testing.T) {
	g := checkGraph(t)
	events := []timetable.TrainEvent{
		stop("T1", "STA", 1, time.Time{}, at(9, 0), 2),
		stop("T1", "STB", 2, at(9, 10), time.Time{}, 2),
		stop("T2", "STA", 1, time.Time{}, at(13, 30), 2),
		stop("T2", "STB", 2, at(13, 40), time.Time{}, 2),
	}

	rep := Check(g, events)
	if !rep.OK() {
		t.Fatalf("gap alone should not fail the report, errors: %v", rep.Errors)
	}
	if len(rep.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", rep.Warnings)
	}
	if !strings.Contains(rep.Warnings[0], "service gap") || !strings.Contains(rep.Warnings[0], "T2") {
		t.Errorf("warning = %q", rep.Warnings[0])
	}
	if rep.Err() != nil {
		t.Errorf("Err() = %v, want nil for warnings only", rep.Err())
	}
}

func TestCorridorKeepsTrainsOnAdjacentStations(t *testing.T) {
	late := stop("T-LATE", "STA", 1, time.Time{}, at(10, 0), 2)
	late.Day = 1
	lateArr := stop("T-LATE", "STB", 2, at(10, 10), time.Time{}, 2)
	lateArr.Day = 1

	events := []timetable.TrainEvent{
		stop("T-THRU", "STA", 1, time.Time{}, at(9, 0), 2),
		stop("T-THRU", "STB", 2, at(9, 10), at(9, 12), 2),
		stop("T-THRU", "STX", 3, at(9, 30), time.Time{}, 2),
		stop("T-SKIP", "STA", 1, time.Time{}, at(9, 5), 2),
		stop("T-SKIP", "STC", 2, at(9, 25), time.Time{}, 2),
		stop("T-DOWN", "STC", 1, time.Time{}, at(9, 0), 2),
		stop("T-DOWN", "STB", 2, at(9, 8), time.Time{}, 2),
		stop("T-TOUCH", "STB", 1, at(9, 40), at(9, 42), 2),
		late,
		lateArr,
	}
	corridor := []string{"STA", "STB", "STC"}

	got := Corridor(events, corridor, 0)
	want := []struct{ train, station string }{
		{"T-THRU", "STA"},
		{"T-THRU", "STB"},
		{"T-DOWN", "STC"},
		{"T-DOWN", "STB"},
	}
	if len(got) != len(want) {
		t.Fatalf("kept %d events, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].TrainID != w.train || got[i].StationID != w.station {
			t.Errorf("event %d = %s@%s, want %s@%s", i, got[i].TrainID, got[i].StationID, w.train, w.station)
		}
	}

	all := Corridor(events, corridor, -1)
	if len(all) != 6 {
		t.Fatalf("wildcard day kept %d events, want 6 (T-LATE included)", len(all))
	}
}

func writeFixture(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(body)+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadBuildsDatasetFromFiles(t *testing.T) {
	dir := t.TempDir()
	stations := writeFixture(t, dir, "stations.csv", `
station_id,name,platforms,min_dwell_min,zone,lat,lon
STA,Alpha,2,2,,,
STB,Beta,2,2,,,
`)
	blocks := writeFixture(t, dir, "blocks.csv", `
u,v,block_id,min_run_time,headway,capacity,direction
STA,STB,BLK-AB,10,5,1,
`)
	eventsPath := writeFixture(t, dir, "events.csv", `
train_id,station_id,sched_arr,sched_dep,act_arr,act_dep,priority,stop_seq,service_date
T1,STA,,09:00,,,2,1,2024-03-15
T1,STB,09:10,09:12,,,2,2,2024-03-15
`)

	ds, err := Load(stations, blocks, eventsPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := ds.Graph.Station("STA"); !ok {
		t.Error("graph is missing station STA")
	}
	if _, ok := ds.Graph.Block("BLK-AB"); !ok {
		t.Error("graph is missing block BLK-AB")
	}
	if len(ds.Events) != 2 {
		t.Fatalf("loaded %d events, want 2", len(ds.Events))
	}
	if len(ds.ServiceDates) != 1 {
		t.Fatalf("service dates = %v, want one", ds.ServiceDates)
	}
	if day, ok := ds.DayOf(time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)); !ok || day != 0 {
		t.Errorf("DayOf(2024-03-15) = %d,%v, want 0,true", day, ok)
	}
	if _, ok := ds.DayOf(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)); ok {
		t.Error("DayOf should miss a date outside the dataset")
	}
	if !ds.Report.OK() {
		t.Errorf("clean fixture produced findings: %v", ds.Report.Errors)
	}
	if ds.Report.RowsLoaded != 5 {
		t.Errorf("RowsLoaded = %d, want 5 across the three files", ds.Report.RowsLoaded)
	}
}
