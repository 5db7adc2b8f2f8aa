package opt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
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

// singleTrack is STA -(10m run, 5m headway)-> STB.
func singleTrack(t *testing.T) *network.Graph {
	t.Helper()
	g, err := network.Build(
		[]network.Station{
			{ID: "STA", Platforms: 2},
			{ID: "STB", Platforms: 2},
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

// corridor is STA -> STB -> STC on two single-track blocks.
func corridor(t *testing.T) *network.Graph {
	t.Helper()
	g, err := network.Build(
		[]network.Station{
			{ID: "STA", Platforms: 2},
			{ID: "STB", Platforms: 2},
			{ID: "STC", Platforms: 1},
		},
		[]network.Block{
			{ID: "BLK-AB", U: "STA", V: "STB", RunTime: 10 * time.Minute, Headway: 5 * time.Minute, Capacity: 1},
			{ID: "BLK-BC", U: "STB", V: "STC", RunTime: 10 * time.Minute, Headway: 5 * time.Minute, Capacity: 1},
		},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func assessed(t *testing.T, g *network.Graph, events []timetable.TrainEvent) (*sim.Result, *risk.Assessment) {
	t.Helper()
	res, err := sim.Replay(events, g, sim.Options{})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return res, risk.Analyze(g, res, at(9, 0), time.Hour, risk.Config{})
}

// tightPair wants the block 3 minutes inside the leader's separation
// window, so a 3-minute hold clears it.
func tightPair() []timetable.TrainEvent {
	return []timetable.TrainEvent{
		stop("T1", "STA", 1, time.Time{}, at(9, 0), 2),
		stop("T1", "STB", 2, at(9, 10), time.Time{}, 2),
		stop("T2", "STA", 1, time.Time{}, at(9, 12), 2),
		stop("T2", "STB", 2, at(9, 22), time.Time{}, 2),
	}
}

func TestProposeHoldsFollowerByMinimalClearance(t *testing.T) {
	g := singleTrack(t)
	res, as := assessed(t, g, tightPair())
	if len(as.Risks) != 1 {
		t.Fatalf("fixture expects 1 risk, radar found %d", len(as.Risks))
	}

	plan, alts, err := Propose(context.Background(), g, res, as, Config{})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(plan.Actions) != 1 {
		t.Fatalf("actions = %+v, want exactly one hold", plan.Actions)
	}
	a := plan.Actions[0]
	if a.Type != ActionHold || a.TrainID != "T2" || a.StationID != "STA" {
		t.Errorf("action = %+v, want HOLD T2 at STA", a)
	}
	if a.HoldMin != 3 {
		t.Errorf("hold = %dm, want the minimal 3m clearance", a.HoldMin)
	}
	if a.RiskID != as.Risks[0].ID {
		t.Errorf("action targets risk %s, want %s", a.RiskID, as.Risks[0].ID)
	}
	if a.ID == "" || a.Why == "" {
		t.Errorf("action missing id or why: %+v", a)
	}

	if plan.Audit.Strategy != StrategyExact || plan.Audit.TimedOut {
		t.Errorf("audit = %+v, want exact without timeout", plan.Audit)
	}
	if len(plan.Audit.Deferred) != 0 {
		t.Errorf("deferred = %+v, want none", plan.Audit.Deferred)
	}
	if got := plan.Metrics; got.Actions != 1 || got.ConflictsTargeted != 1 || got.ExpectedResolution != 1 || got.HoldMinutesTotal != 3 {
		t.Errorf("metrics = %+v", got)
	}
	if len(alts) != 1 || alts[0].RiskID != as.Risks[0].ID {
		t.Errorf("alternatives = %+v, want one set for the risk", alts)
	}
}

func TestHoldCapDefersUnresolvableConflict(t *testing.T) {
	g := singleTrack(t)
	// T2 wants the block the instant T1 exits: a full headway of hold (5m)
	// is required, which the 3-minute cap cannot provide.
	events := []timetable.TrainEvent{
		stop("T1", "STA", 1, time.Time{}, at(9, 0), 2),
		stop("T1", "STB", 2, at(9, 10), time.Time{}, 2),
		stop("T2", "STA", 1, time.Time{}, at(9, 10), 2),
		stop("T2", "STB", 2, at(9, 20), time.Time{}, 2),
	}
	res, as := assessed(t, g, events)
	if len(as.Risks) != 1 {
		t.Fatalf("fixture expects 1 risk, radar found %d", len(as.Risks))
	}

	for _, strategy := range []Strategy{"", StrategyGreedy} {
		plan, _, err := Propose(context.Background(), g, res, as, Config{MaxHoldMinutes: 3, Strategy: strategy})
		if err != nil {
			t.Fatalf("Propose(%q): %v", strategy, err)
		}
		for _, a := range plan.Actions {
			if a.HoldMin > 3 {
				t.Errorf("Propose(%q): action %+v exceeds the 3m cap", strategy, a)
			}
		}
		if len(plan.Actions) != 0 {
			t.Errorf("Propose(%q): actions = %+v, want none", strategy, plan.Actions)
		}
		if len(plan.Audit.Deferred) != 1 {
			t.Fatalf("Propose(%q): deferred = %+v, want the unresolvable risk", strategy, plan.Audit.Deferred)
		}
		d := plan.Audit.Deferred[0]
		if d.RiskID != as.Risks[0].ID || !strings.Contains(d.Reason, "exceeds") {
			t.Errorf("Propose(%q): deferred = %+v", strategy, d)
		}
	}
}

func TestSwapProposedWhenFollowerOutranksLeader(t *testing.T) {
	g := singleTrack(t)
	// An express two minutes behind a freight on the same block: promote
	// the express rather than hold it.
	events := []timetable.TrainEvent{
		stop("FRT-1", "STA", 1, time.Time{}, at(9, 0), 3),
		stop("FRT-1", "STB", 2, at(9, 10), time.Time{}, 3),
		stop("EXP-1", "STA", 1, time.Time{}, at(9, 2), 1),
		stop("EXP-1", "STB", 2, at(9, 12), time.Time{}, 1),
	}
	res, as := assessed(t, g, events)
	if len(as.Risks) != 1 {
		t.Fatalf("fixture expects 1 risk, radar found %d", len(as.Risks))
	}

	plan, _, err := Propose(context.Background(), g, res, as, Config{})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(plan.Actions) != 1 {
		t.Fatalf("actions = %+v, want one swap", plan.Actions)
	}
	a := plan.Actions[0]
	if a.Type != ActionSwapPrecedence {
		t.Fatalf("action type = %s, want %s", a.Type, ActionSwapPrecedence)
	}
	if a.TrainID != "FRT-1" || a.OtherTrain != "EXP-1" || a.Resource.ID != "BLK-AB" {
		t.Errorf("swap = %+v, want EXP-1 promoted over FRT-1 on BLK-AB", a)
	}
	if len(plan.Audit.Deferred) != 0 {
		t.Errorf("deferred = %+v, want none", plan.Audit.Deferred)
	}
}

// budgetFixture produces two headway risks whose natural holdee is the same
// train: T3 trails T1 on BLK-AB and trails T2 on BLK-BC.
func budgetFixture(t *testing.T) (*network.Graph, *sim.Result, *risk.Assessment) {
	t.Helper()
	g := corridor(t)
	events := []timetable.TrainEvent{
		stop("T1", "STA", 1, time.Time{}, at(9, 0), 2),
		stop("T1", "STB", 2, at(9, 10), time.Time{}, 2),
		stop("T3", "STA", 1, time.Time{}, at(9, 12), 2),
		stop("T3", "STB", 2, at(9, 22), at(9, 28), 2),
		stop("T3", "STC", 3, at(9, 38), time.Time{}, 2),
		stop("T2", "STB", 1, time.Time{}, at(9, 17), 2),
		stop("T2", "STC", 2, at(9, 27), time.Time{}, 2),
	}
	res, as := assessed(t, g, events)
	if len(as.Risks) != 2 {
		t.Fatalf("fixture expects 2 risks, radar found %d: %+v", len(as.Risks), as.Risks)
	}
	return g, res, as
}

func TestPerTrainHoldBudgetLimitsPlan(t *testing.T) {
	g, res, as := budgetFixture(t)

	plan, _, err := Propose(context.Background(), g, res, as, Config{MaxHoldsPerTrain: 1})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(plan.Actions) != 1 {
		t.Fatalf("actions = %+v, want one hold within the budget", plan.Actions)
	}
	a := plan.Actions[0]
	if a.TrainID != "T3" || a.HoldMin != 3 || a.StationID != "STA" {
		t.Errorf("action = %+v, want the urgent risk held first (T3, 3m at STA)", a)
	}
	if len(plan.Audit.Deferred) != 1 {
		t.Fatalf("deferred = %+v, want the second risk", plan.Audit.Deferred)
	}
	d := plan.Audit.Deferred[0]
	if d.RiskID != as.Risks[1].ID || !strings.Contains(d.Reason, "budget") {
		t.Errorf("deferred = %+v, want the budget named", d)
	}
}

func TestRiskBudgetDefersTail(t *testing.T) {
	g, res, as := budgetFixture(t)

	plan, _, err := Propose(context.Background(), g, res, as, Config{MaxRisks: 1})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if plan.Audit.RisksConsidered != 1 {
		t.Errorf("considered = %d, want 1", plan.Audit.RisksConsidered)
	}
	if len(plan.Actions) != 1 {
		t.Errorf("actions = %+v, want the considered risk resolved", plan.Actions)
	}
	if len(plan.Audit.Deferred) != 1 || !strings.Contains(plan.Audit.Deferred[0].Reason, "per-cycle") {
		t.Errorf("deferred = %+v, want the tail risk deferred to later cycles", plan.Audit.Deferred)
	}
}

func TestGreedyVerifiesActionsAgainstTrialReplay(t *testing.T) {
	g := singleTrack(t)
	res, as := assessed(t, g, tightPair())

	plan, _, err := Propose(context.Background(), g, res, as, Config{Strategy: StrategyGreedy})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if plan.Audit.Strategy != StrategyGreedy || plan.Audit.TimedOut {
		t.Errorf("audit = %+v, want forced greedy without timeout", plan.Audit)
	}
	if len(plan.Actions) != 1 || plan.Actions[0].HoldMin != 3 {
		t.Fatalf("actions = %+v, want the verified 3m hold", plan.Actions)
	}
	if len(plan.Audit.Deferred) != 0 {
		t.Errorf("deferred = %+v, want none", plan.Audit.Deferred)
	}
}

func TestGreedyVetoesActionThatShiftsTheConflict(t *testing.T) {
	g := singleTrack(t)
	// Holding T2 clears its 3-minute gap to T1 but slides T2's separation
	// window onto T3, which wanted the block at 09:28. Every candidate
	// hold trades one risk for another, so the risk must be deferred.
	events := []timetable.TrainEvent{
		stop("T1", "STA", 1, time.Time{}, at(9, 0), 2),
		stop("T1", "STB", 2, at(9, 10), time.Time{}, 2),
		stop("T2", "STA", 1, time.Time{}, at(9, 12), 2),
		stop("T2", "STB", 2, at(9, 22), time.Time{}, 2),
		stop("T3", "STA", 1, time.Time{}, at(9, 28), 2),
		stop("T3", "STB", 2, at(9, 38), time.Time{}, 2),
	}
	res, as := assessed(t, g, events)
	if len(as.Risks) != 1 {
		t.Fatalf("fixture expects 1 risk, radar found %d: %+v", len(as.Risks), as.Risks)
	}

	plan, _, err := Propose(context.Background(), g, res, as, Config{Strategy: StrategyGreedy})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(plan.Actions) != 0 {
		t.Errorf("actions = %+v, want none accepted", plan.Actions)
	}
	if len(plan.Audit.Deferred) != 1 || !strings.Contains(plan.Audit.Deferred[0].Reason, "no better") {
		t.Errorf("deferred = %+v, want the trial-replay veto recorded", plan.Audit.Deferred)
	}
}

func TestCancelledContextFallsBackAndDefers(t *testing.T) {
	g := singleTrack(t)
	res, as := assessed(t, g, tightPair())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan, _, err := Propose(ctx, g, res, as, Config{})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if plan.Audit.Strategy != StrategyGreedy || !plan.Audit.TimedOut {
		t.Errorf("audit = %+v, want the greedy fallback recorded", plan.Audit)
	}
	if len(plan.Actions) != 0 {
		t.Errorf("actions = %+v, want none under a dead context", plan.Actions)
	}
	if len(plan.Audit.Deferred) != 1 || !strings.Contains(plan.Audit.Deferred[0].Reason, "cancelled") {
		t.Errorf("deferred = %+v", plan.Audit.Deferred)
	}
}

func TestProposeIsDeterministic(t *testing.T) {
	g, res, as := budgetFixture(t)

	type actionKey struct {
		Type      ActionType
		TrainID   string
		StationID string
		HoldMin   int
	}
	run := func() ([]actionKey, []string) {
		plan, _, err := Propose(context.Background(), g, res, as, Config{MaxHoldsPerTrain: 1})
		if err != nil {
			t.Fatalf("Propose: %v", err)
		}
		var keys []actionKey
		for _, a := range plan.Actions {
			keys = append(keys, actionKey{a.Type, a.TrainID, a.StationID, a.HoldMin})
		}
		var reasons []string
		for _, d := range plan.Audit.Deferred {
			reasons = append(reasons, d.Reason)
		}
		return keys, reasons
	}

	firstKeys, firstReasons := run()
	for i := 0; i < 3; i++ {
		keys, reasons := run()
		if len(keys) != len(firstKeys) || len(reasons) != len(firstReasons) {
			t.Fatalf("run %d shape changed: %v %v vs %v %v", i, keys, reasons, firstKeys, firstReasons)
		}
		for j := range keys {
			if keys[j] != firstKeys[j] {
				t.Errorf("run %d action %d = %+v, want %+v", i, j, keys[j], firstKeys[j])
			}
		}
		for j := range reasons {
			if reasons[j] != firstReasons[j] {
				t.Errorf("run %d reason %d = %q, want %q", i, j, reasons[j], firstReasons[j])
			}
		}
	}
}

func TestAlternativesListHoldOptions(t *testing.T) {
	g := singleTrack(t)
	res, as := assessed(t, g, tightPair())

	_, alts, err := Propose(context.Background(), g, res, as, Config{})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(alts) != 1 {
		t.Fatalf("alternatives = %+v, want one set", alts)
	}
	set := alts[0]
	if set.RiskID != as.Risks[0].ID || set.Tradeoffs == "" {
		t.Errorf("set = %+v", set)
	}
	if len(set.Options) != 2 {
		t.Fatalf("options = %+v, want short and padded holds", set.Options)
	}
	if set.Options[0].Action.HoldMin != 2 || set.Options[0].Score != 0 {
		t.Errorf("short option = %+v", set.Options[0])
	}
	if set.Options[1].Action.HoldMin != 5 || set.Options[1].Score >= 0 {
		t.Errorf("padded option = %+v", set.Options[1])
	}
}
