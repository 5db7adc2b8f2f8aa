// Package applyplan lays a proposed plan over a copy of the timetable,
// replays it, and compares the outcome against the untouched baseline. The
// report answers the controller's question before dispatch: fewer risks or
// not, at what delay cost. A plan that leaves the horizon worse is flagged,
// never silently rejected.
package applyplan

import (
	"errors"
	"fmt"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/opt"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// Side is one labeled outcome of the before/after comparison.
type Side struct {
	Risks        int                   `json:"risks"`
	BySeverity   map[risk.Severity]int `json:"bySeverity"`
	AvgDelayMin  float64               `json:"avgDelayMin"`
	P90DelayMin  float64               `json:"p90DelayMin"`
	OnTimePct    float64               `json:"onTimePct"`
	TotalWaitMin float64               `json:"totalWaitMin"`
}

// Report is the apply-and-validate document. The marshaled form is the
// light comparison; the replay results and assessments ride along unexported
// from JSON for callers that need the full applied timeline.
type Report struct {
	PlanID            string                `json:"planId"`
	T0                time.Time             `json:"t0"`
	Horizon           time.Duration         `json:"horizon"`
	Baseline          Side                  `json:"baseline"`
	Applied           Side                  `json:"applied"`
	RiskReduction     int                   `json:"riskReduction"`
	AvgDelayDeltaMin  float64               `json:"avgDelayDeltaMin"`
	TotalWaitDeltaMin float64               `json:"totalWaitDeltaMin"`
	Validation        risk.ValidationReport `json:"validation"`

	// Regression reports a horizon left worse by the plan: more risks in
	// total, or more Critical risks than the baseline had. Rejecting the
	// plan stays a controller decision.
	Regression bool `json:"regression"`

	BaselineResult     *sim.Result      `json:"-"`
	AppliedResult      *sim.Result      `json:"-"`
	BaselineAssessment *risk.Assessment `json:"-"`
	AppliedAssessment  *risk.Assessment `json:"-"`
}

// ApplyToEvents returns a new event slice with the plan's holds written in
// as actual departures, plus the replay options carrying its precedence
// swaps and platform pins. The input slice is never modified; an empty or
// nil plan yields a plain copy.
func ApplyToEvents(events []timetable.TrainEvent, plan *opt.Plan) ([]timetable.TrainEvent, sim.Options) {
	var opts sim.Options
	out := events
	held := false
	if plan != nil {
		for _, a := range plan.Actions {
			switch a.Type {
			case opt.ActionHold:
				if a.HoldMin <= 0 || a.StationID == "" {
					continue
				}
				out = timetable.ShiftDeparture(out, a.TrainID, a.StationID, time.Duration(a.HoldMin)*time.Minute)
				held = true
			case opt.ActionSwapPrecedence:
				opts.PrecedenceGates = append(opts.PrecedenceGates, sim.PrecedenceGate{
					BlockID:  a.Resource.ID,
					Leader:   a.OtherTrain,
					Follower: a.TrainID,
				})
			case opt.ActionAssignPlatform:
				opts.PlatformPins = append(opts.PlatformPins, sim.PlatformPin{
					TrainID:   a.TrainID,
					StationID: a.StationID,
					Slot:      a.Platform,
				})
			}
		}
	}
	if !held {
		out = timetable.Clone(events)
	}
	return out, opts
}

// Run replays the untouched baseline and the plan-applied timeline through
// the same graph and horizon, re-runs the radar on both, and validates the
// applied side's risks against its own replay.
func Run(events []timetable.TrainEvent, g *network.Graph, plan *opt.Plan, t0 time.Time, horizon time.Duration, radarCfg risk.Config) (*Report, error) {
	if g == nil {
		return nil, errors.New("applyplan: nil graph")
	}

	baseRes, err := sim.Replay(events, g, sim.Options{})
	if err != nil {
		return nil, fmt.Errorf("baseline replay: %w", err)
	}
	baseAs := risk.Analyze(g, baseRes, t0, horizon, radarCfg)

	appliedEvents, opts := ApplyToEvents(events, plan)
	appRes, err := sim.Replay(appliedEvents, g, opts)
	if err != nil {
		return nil, fmt.Errorf("applied replay: %w", err)
	}
	appAs := risk.Analyze(g, appRes, t0, horizon, radarCfg)

	rep := &Report{
		T0:                 t0,
		Horizon:            horizon,
		Baseline:           sideOf(baseRes, baseAs),
		Applied:            sideOf(appRes, appAs),
		Validation:         risk.Validate(appRes, g, appAs.Risks),
		BaselineResult:     baseRes,
		AppliedResult:      appRes,
		BaselineAssessment: baseAs,
		AppliedAssessment:  appAs,
	}
	if plan != nil {
		rep.PlanID = plan.ID
	}
	rep.RiskReduction = rep.Baseline.Risks - rep.Applied.Risks
	rep.AvgDelayDeltaMin = rep.Applied.AvgDelayMin - rep.Baseline.AvgDelayMin
	rep.TotalWaitDeltaMin = rep.Applied.TotalWaitMin - rep.Baseline.TotalWaitMin
	rep.Regression = rep.Applied.Risks > rep.Baseline.Risks ||
		rep.Applied.BySeverity[risk.SeverityCritical] > rep.Baseline.BySeverity[risk.SeverityCritical]
	return rep, nil
}

func sideOf(res *sim.Result, as *risk.Assessment) Side {
	by := make(map[risk.Severity]int, len(as.KPIs.BySeverity))
	for k, v := range as.KPIs.BySeverity {
		by[k] = v
	}
	return Side{
		Risks:        len(as.Risks),
		BySeverity:   by,
		AvgDelayMin:  res.KPIs.AvgDelayMin,
		P90DelayMin:  res.KPIs.P90DelayMin,
		OnTimePct:    res.KPIs.OnTimePct,
		TotalWaitMin: res.KPIs.TotalWaitMin,
	}
}
