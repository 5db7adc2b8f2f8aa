// Package driver runs the rolling-horizon loop: every period it replays the
// current timetable, scans the horizon for risks, proposes a plan and
// measures it with apply-and-validate. Each cycle is one short-lived,
// cancellable unit of work over immutable inputs; the only state carried
// between cycles is the published snapshot and the previous plan used for
// hold hysteresis.
package driver

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/applyplan"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/artifacts"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/config"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/opt"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// TrainPosition is where one train stood at the cycle's t0.
type TrainPosition struct {
	TrainID  string          `json:"trainId"`
	Resource sim.ResourceRef `json:"resource"`
	Since    time.Time       `json:"since"`
	Until    time.Time       `json:"until"`
}

// Snapshot is the engine's published state after a cycle. All referenced
// documents are replaced wholesale per cycle, never mutated, so readers may
// hold a snapshot across requests.
type Snapshot struct {
	Scope        string                   `json:"scope"`
	ServiceDate  string                   `json:"serviceDate"`
	Cycle        int                      `json:"cycle"`
	T0           time.Time                `json:"t0"`
	Runtime      time.Duration            `json:"runtimeNs"`
	KPIs         sim.KPIs                 `json:"kpis"`
	Assessment   *risk.Assessment         `json:"assessment,omitempty"`
	Plan         *opt.Plan                `json:"plan,omitempty"`
	Alternatives []opt.AlternativeSet     `json:"alternatives,omitempty"`
	Report       *applyplan.Report        `json:"report,omitempty"`
	Positions    map[string]TrainPosition `json:"positions,omitempty"`
}

// ReloadFunc re-reads the live timetable, typically from the watched drop
// file. Returning an error keeps the previous timetable in play.
type ReloadFunc func() ([]timetable.TrainEvent, error)

// Engine drives one scope+date through repeated decision cycles.
type Engine struct {
	cfg     *config.Config
	graph   *network.Graph
	metrics *Metrics
	store   *artifacts.ScopedStore
	reload  ReloadFunc

	// Clock returns the cycle anchor t0. Tests pin it; production uses
	// time.Now.
	Clock func() time.Time

	mu       sync.RWMutex
	events   []timetable.TrainEvent
	lastPlan *opt.Plan
	snapshot *Snapshot
	dirty    bool
}

// New builds an engine over a loaded dataset. store and reload may be nil
// (no artifact persistence, no live reloads).
func New(cfg *config.Config, g *network.Graph, events []timetable.TrainEvent, m *Metrics, store *artifacts.ScopedStore, reload ReloadFunc) *Engine {
	return &Engine{
		cfg:     cfg,
		graph:   g,
		metrics: m,
		store:   store,
		reload:  reload,
		Clock:   time.Now,
		events:  timetable.Clone(events),
	}
}

// Snapshot returns the latest published state, nil before the first cycle.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// MarkDirty flags the timetable for a reload before the next cycle. The
// file watcher calls this; a manual poke works too.
func (e *Engine) MarkDirty() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}

// Run executes an immediate cycle and then one per configured period until
// the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Cycle(ctx); err != nil {
		log.Printf("Driver: initial cycle failed: %v", err)
	}
	ticker := time.NewTicker(e.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := e.Cycle(ctx); err != nil {
				log.Printf("Driver: cycle failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("Driver: loop stopped")
			return ctx.Err()
		}
	}
}

// Cycle runs one full decision pass: reload if dirty, replay, analyze,
// propose (with hold hysteresis against the previous plan), apply-and-
// validate, publish.
func (e *Engine) Cycle(ctx context.Context) error {
	start := time.Now()
	e.maybeReload()

	e.mu.RLock()
	events := e.events
	prev := e.lastPlan
	e.mu.RUnlock()

	t0 := e.Clock()
	res, err := sim.Replay(events, e.graph, sim.Options{
		Workers:         e.cfg.Workers,
		OnTimeThreshold: e.cfg.OnTimeThreshold,
	})
	if err != nil {
		return fmt.Errorf("cycle replay: %w", err)
	}

	as := risk.Analyze(e.graph, res, t0, e.cfg.Horizon, e.cfg.Radar())
	plan, alts, err := opt.Propose(ctx, e.graph, res, as, e.cfg.Opt())
	if err != nil {
		return fmt.Errorf("cycle propose: %w", err)
	}
	promoteSurvivingHolds(plan, prev)

	report, err := applyplan.Run(events, e.graph, plan, t0, e.cfg.Horizon, e.cfg.Radar())
	if err != nil {
		return fmt.Errorf("cycle apply: %w", err)
	}

	elapsed := time.Since(start)
	snap := &Snapshot{
		Scope:        e.cfg.Scope,
		ServiceDate:  e.cfg.ServiceDate,
		T0:           t0,
		Runtime:      elapsed,
		KPIs:         res.KPIs,
		Assessment:   as,
		Plan:         plan,
		Alternatives: alts,
		Report:       report,
		Positions:    positionsAt(res, t0),
	}

	e.mu.Lock()
	if e.snapshot != nil {
		snap.Cycle = e.snapshot.Cycle + 1
	} else {
		snap.Cycle = 1
	}
	e.snapshot = snap
	e.lastPlan = plan
	e.mu.Unlock()

	e.metrics.observeCycle(elapsed, as, plan, report)
	e.persist(res, as, plan, report)

	log.Printf("Driver: cycle %d done in %v: %d risks, %d actions, regression=%v",
		snap.Cycle, elapsed.Round(time.Millisecond), as.KPIs.Total, len(plan.Actions), report.Regression)
	return nil
}

// maybeReload swaps in a fresh timetable when the watcher marked the engine
// dirty. A failed reload keeps the previous timetable and the dirty flag so
// the next cycle retries.
func (e *Engine) maybeReload() {
	e.mu.Lock()
	wants := e.dirty && e.reload != nil
	e.mu.Unlock()
	if !wants {
		return
	}
	events, err := e.reload()
	if err != nil {
		log.Printf("Driver: event reload failed, keeping previous timetable: %v", err)
		return
	}
	e.mu.Lock()
	e.events = events
	e.dirty = false
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.EventReloads.Inc()
	}
	log.Printf("Driver: reloaded %d events from drop file", len(events))
}

func (e *Engine) persist(res *sim.Result, as *risk.Assessment, plan *opt.Plan, rep *applyplan.Report) {
	if e.store == nil {
		return
	}
	steps := []struct {
		name string
		err  error
	}{
		{"result", e.store.SaveResult("", res)},
		{artifacts.FileRadar, e.store.SaveJSON(artifacts.FileRadar, as)},
		{artifacts.FilePlan, e.store.SaveJSON(artifacts.FilePlan, plan)},
		{artifacts.FileApplyReport, e.store.SaveJSON(artifacts.FileApplyReport, rep)},
	}
	if rep.AppliedResult != nil {
		steps = append(steps, struct {
			name string
			err  error
		}{"applied result", e.store.SaveResult("applied", rep.AppliedResult)})
	}
	for _, s := range steps {
		if s.err != nil {
			log.Printf("Driver: persisting %s failed: %v", s.name, s.err)
		}
	}
}

// promoteSurvivingHolds reorders the fresh plan so holds the controller has
// already seen come first when the new cycle re-proposes them. Risk IDs are
// fresh every cycle, so survival is matched on the action's substance: same
// train, same station, same type. Keeping surviving holds ahead stops the
// recommendation list from reshuffling under the controller's cursor.
func promoteSurvivingHolds(plan *opt.Plan, prev *opt.Plan) {
	if plan == nil || prev == nil || len(plan.Actions) < 2 {
		return
	}
	type holdKey struct {
		trainID   string
		stationID string
	}
	seen := make(map[holdKey]bool)
	for _, a := range prev.Actions {
		if a.Type == opt.ActionHold {
			seen[holdKey{a.TrainID, a.StationID}] = true
		}
	}
	if len(seen) == 0 {
		return
	}
	surviving := make([]opt.Action, 0, len(plan.Actions))
	fresh := make([]opt.Action, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		if a.Type == opt.ActionHold && seen[holdKey{a.TrainID, a.StationID}] {
			surviving = append(surviving, a)
		} else {
			fresh = append(fresh, a)
		}
	}
	copy(plan.Actions, append(surviving, fresh...))
}

// positionsAt derives each train's resource at t0 from the occupancy
// tables: the block or platform whose interval covers t0, or the last one
// vacated before t0 for trains between records.
func positionsAt(res *sim.Result, t0 time.Time) map[string]TrainPosition {
	out := make(map[string]TrainPosition)
	better := func(cand TrainPosition) {
		cur, ok := out[cand.TrainID]
		if !ok || cand.Since.After(cur.Since) {
			out[cand.TrainID] = cand
		}
	}
	for _, r := range res.BlockOccupancy {
		if r.Entry.After(t0) {
			continue
		}
		better(TrainPosition{
			TrainID:  r.TrainID,
			Resource: sim.ResourceRef{Kind: sim.ResourceBlock, ID: r.BlockID},
			Since:    r.Entry,
			Until:    r.Exit,
		})
	}
	for _, r := range res.PlatformOccupancy {
		if r.Arrival.After(t0) {
			continue
		}
		better(TrainPosition{
			TrainID:  r.TrainID,
			Resource: sim.ResourceRef{Kind: sim.ResourcePlatform, ID: r.StationID},
			Since:    r.Arrival,
			Until:    r.Departure,
		})
	}
	return out
}
