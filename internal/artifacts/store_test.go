package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 14, hour, min, 0, 0, time.UTC)
}

func sampleResult() *sim.Result {
	return &sim.Result{
		BlockOccupancy: []sim.BlockOccupancyRecord{
			{TrainID: "T1", BlockID: "BLK-AB", Entry: at(9, 0), Exit: at(9, 10)},
			{TrainID: "T2", BlockID: "BLK-AB", Entry: at(9, 15), Exit: at(9, 25)},
		},
		PlatformOccupancy: []sim.PlatformOccupancyRecord{
			{TrainID: "T1", StationID: "STB", Slot: 0, Arrival: at(9, 10), Departure: at(9, 12)},
		},
		Waiting: []sim.WaitingLedgerEntry{
			{
				TrainID: "T2", ResourceKind: sim.ResourceBlock, ResourceID: "BLK-AB",
				RequestedAt: at(9, 12), ReadyAt: at(9, 15), Reason: sim.WaitHeadway,
			},
		},
		KPIs: sim.KPIs{TrainsServed: 2, OnTimePct: 100, TotalWaitMin: 3},
	}
}

func TestOccupancyRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir()).Scope("NDLS-GZB", "2024-03-14")
	res := sampleResult()
	if err := store.SaveResult("", res); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	occ, err := store.LoadBlockOccupancy("")
	if err != nil {
		t.Fatalf("LoadBlockOccupancy: %v", err)
	}
	if len(occ) != len(res.BlockOccupancy) {
		t.Fatalf("loaded %d occupancy rows, want %d", len(occ), len(res.BlockOccupancy))
	}
	for i, got := range occ {
		want := res.BlockOccupancy[i]
		if got.TrainID != want.TrainID || got.BlockID != want.BlockID ||
			!got.Entry.Equal(want.Entry) || !got.Exit.Equal(want.Exit) {
			t.Errorf("occupancy row %d changed across save/load:\n got %+v\nwant %+v", i, got, want)
		}
	}

	ledger, err := store.LoadWaitingLedger("")
	if err != nil {
		t.Fatalf("LoadWaitingLedger: %v", err)
	}
	if len(ledger) != len(res.Waiting) {
		t.Fatalf("loaded %d ledger rows, want %d", len(ledger), len(res.Waiting))
	}
	for i, got := range ledger {
		want := res.Waiting[i]
		if got.TrainID != want.TrainID || got.ResourceKind != want.ResourceKind ||
			got.ResourceID != want.ResourceID || got.Reason != want.Reason ||
			!got.RequestedAt.Equal(want.RequestedAt) || !got.ReadyAt.Equal(want.ReadyAt) {
			t.Errorf("ledger row %d changed across save/load:\n got %+v\nwant %+v", i, got, want)
		}
	}
}

// Baseline and applied artifacts for the same scope/date must coexist so
// the apply comparison stays recoverable from disk.
func TestLabeledResultsDoNotClobber(t *testing.T) {
	store := NewStore(t.TempDir()).Scope("scope", "2024-03-14")
	base := sampleResult()
	applied := sampleResult()
	applied.BlockOccupancy[1].Entry = at(9, 17)
	applied.BlockOccupancy[1].Exit = at(9, 27)

	if err := store.SaveResult("", base); err != nil {
		t.Fatalf("save baseline: %v", err)
	}
	if err := store.SaveResult("applied", applied); err != nil {
		t.Fatalf("save applied: %v", err)
	}

	gotBase, err := store.LoadBlockOccupancy("")
	if err != nil {
		t.Fatalf("load baseline: %v", err)
	}
	gotApplied, err := store.LoadBlockOccupancy("applied")
	if err != nil {
		t.Fatalf("load applied: %v", err)
	}
	if gotBase[1].Entry.Equal(gotApplied[1].Entry) {
		t.Error("baseline and applied tables are identical; the label did not separate them")
	}
}

func TestJSONDocumentRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir()).Scope("scope", "2024-03-14")
	want := sampleResult().KPIs
	if err := store.SaveJSON(FileKPIs, want); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	var got sim.KPIs
	if err := store.LoadJSON(FileKPIs, &got); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if got.TrainsServed != want.TrainsServed || got.TotalWaitMin != want.TotalWaitMin {
		t.Errorf("KPI document changed across save/load: got %+v want %+v", got, want)
	}
}

func TestDirLayoutIsScopeThenDate(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root).Scope("NDLS-GZB", "2024-03-14")
	if err := store.SaveJSON(FileKPIs, sim.KPIs{}); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	p := filepath.Join(root, "NDLS-GZB", "2024-03-14", FileKPIs)
	if _, err := os.Stat(p); err != nil {
		t.Errorf("expected artifact at %s: %v", p, err)
	}
}

func TestLoadMissingArtifactFails(t *testing.T) {
	store := NewStore(t.TempDir()).Scope("scope", "2024-03-14")
	if _, err := store.LoadBlockOccupancy(""); err == nil {
		t.Error("loading a missing table should fail")
	}
	var doc sim.KPIs
	if err := store.LoadJSON(FileKPIs, &doc); err == nil {
		t.Error("loading a missing document should fail")
	}
}
