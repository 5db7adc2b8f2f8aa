package scenario

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/opt"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 14, hour, min, 0, 0, time.UTC)
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

func corridor(t *testing.T) *network.Graph {
	t.Helper()
	g, err := network.Build(
		[]network.Station{
			{ID: "STA", Platforms: 2},
			{ID: "STB", Platforms: 2},
		},
		[]network.Block{
			{ID: "BLK-AB", U: "STA", V: "STB", RunTime: 10 * time.Minute, Headway: 5 * time.Minute, Capacity: 2},
		},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func pair() []timetable.TrainEvent {
	return []timetable.TrainEvent{
		stop("T1", "STA", 1, time.Time{}, at(9, 0), 2),
		stop("T1", "STB", 2, at(9, 10), time.Time{}, 2),
		stop("T2", "STA", 1, time.Time{}, at(9, 12), 2),
		stop("T2", "STB", 2, at(9, 22), time.Time{}, 2),
	}
}

func TestApplyLateStartShiftsOnlyTheTarget(t *testing.T) {
	g := corridor(t)
	events := pair()
	out, g2, err := Apply(events, g, Spec{Kind: KindLateStart, Train: "T2", Station: "STA", DelayMin: 7})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if g2 == nil {
		t.Fatal("nil graph")
	}
	// T2's departure moved by 7 minutes; T1 untouched.
	if got := out[2].SchedDep; !got.Equal(at(9, 19)) {
		t.Errorf("T2 departure = %v, want 09:19", got)
	}
	if got := out[0].SchedDep; !got.Equal(at(9, 0)) {
		t.Errorf("T1 departure = %v, want unchanged 09:00", got)
	}
	// Baseline input untouched.
	if !events[2].SchedDep.Equal(at(9, 12)) {
		t.Error("Apply mutated the input events")
	}
}

func TestApplyPlatformOutageRebuildsGraphCopy(t *testing.T) {
	g := corridor(t)
	_, g2, err := Apply(pair(), g, Spec{Kind: KindPlatformOutage, Station: "STB", Platforms: 1})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := g2.PlatformCapacity("STB"); got != 1 {
		t.Errorf("outage capacity = %d, want 1", got)
	}
	if got := g.PlatformCapacity("STB"); got != 2 {
		t.Errorf("baseline graph mutated: capacity = %d, want 2", got)
	}
}

func TestApplySpeedRestrictionStretchesRunTime(t *testing.T) {
	g := corridor(t)
	_, g2, err := Apply(pair(), g, Spec{Kind: KindSpeedRestriction, U: "STA", V: "STB", Factor: 1.5})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	b, _ := g2.BlockBetween("STA", "STB")
	if b.RunTime != 15*time.Minute {
		t.Errorf("restricted run time = %v, want 15m", b.RunTime)
	}
}

func TestApplySingleLineWorkingDropsCapacity(t *testing.T) {
	g := corridor(t)
	_, g2, err := Apply(pair(), g, Spec{Kind: KindSingleLineWorking})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	b, _ := g2.BlockBetween("STA", "STB")
	if b.Capacity != 1 {
		t.Errorf("capacity = %d, want 1", b.Capacity)
	}
}

func TestApplyRejectsUnknownKindAndMissingParams(t *testing.T) {
	g := corridor(t)
	if _, _, err := Apply(pair(), g, Spec{Kind: "derailment"}); err == nil {
		t.Error("unknown kind accepted")
	}
	if _, _, err := Apply(pair(), g, Spec{Kind: KindLateStart, Train: "T1"}); err == nil {
		t.Error("late_start without a station accepted")
	}
}

func TestParseSuite(t *testing.T) {
	src := `
name: morning disruptions
horizon_min: 90
scenarios:
  - name: late inter-city
    kind: late_start
    train: T2
    station: STA
    delay_min: 7
  - kind: single_line_working
`
	suite, err := ParseSuite(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseSuite: %v", err)
	}
	if len(suite.Scenarios) != 2 {
		t.Fatalf("parsed %d scenarios, want 2", len(suite.Scenarios))
	}
	if suite.Horizon(time.Hour) != 90*time.Minute {
		t.Errorf("horizon = %v, want 90m", suite.Horizon(time.Hour))
	}
	if suite.Scenarios[1].Label() != "single_line_working" {
		t.Errorf("label = %q", suite.Scenarios[1].Label())
	}
}

func TestParseSuiteRejectsUnknownFieldsAndEmptySuites(t *testing.T) {
	if _, err := ParseSuite(strings.NewReader("name: x\nscenarios: []\n")); err == nil {
		t.Error("empty suite accepted")
	}
	src := `
scenarios:
  - kind: late_start
    train: T2
    station: STA
    dealy_min: 7
`
	if _, err := ParseSuite(strings.NewReader(src)); err == nil {
		t.Error("typoed field accepted; KnownFields should reject it")
	}
}

func TestRunSuiteRanksQuieterScenariosFirst(t *testing.T) {
	g := corridor(t)
	suite := &Suite{
		Scenarios: []Spec{
			// Forcing single-track turns the 2-minute slack into a conflict.
			{Name: "slw", Kind: KindSingleLineWorking},
			// A late start that adds slack stays conflict-free.
			{Name: "late", Kind: KindLateStart, Train: "T2", Station: "STA", DelayMin: 10},
		},
	}
	results, err := RunSuite(context.Background(), g, pair(), suite, at(9, 0), opt.Config{})
	if err != nil {
		t.Fatalf("RunSuite: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Name != "late" {
		t.Errorf("ranking = [%s, %s], want the conflict-free scenario first", results[0].Name, results[1].Name)
	}
	if results[1].Risks == 0 {
		t.Error("single line working should produce at least one risk on the tight pair")
	}
}

func TestPareto(t *testing.T) {
	results := []*Result{
		{Name: "a", Risks: 0, AvgDelayMin: 5},
		{Name: "b", Risks: 2, AvgDelayMin: 1},
		{Name: "c", Risks: 2, AvgDelayMin: 6}, // dominated by both
	}
	front := Pareto(results)
	if len(front) != 2 {
		t.Fatalf("front = %v, want indices of a and b", front)
	}
	for _, idx := range front {
		if results[idx].Name == "c" {
			t.Error("dominated result on the front")
		}
	}
}
