package scenario

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/opt"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// Result summarizes one scenario run: what the horizon looks like under
// the disruption and how much plan it takes to work it off.
type Result struct {
	Name         string                `json:"name"`
	Risks        int                   `json:"risks"`
	BySeverity   map[risk.Severity]int `json:"bySeverity"`
	TrainsServed int                   `json:"trainsServed"`
	AvgDelayMin  float64               `json:"avgDelayMin"`
	P90DelayMin  float64               `json:"p90DelayMin"`
	OnTimePct    float64               `json:"onTimePct"`
	TotalWaitMin float64               `json:"totalWaitMin"`
	Actions      int                   `json:"actions"`
	HoldMinutes  int                   `json:"holdMinutes"`
}

// Run executes one scenario end to end: template application, replay,
// radar, proposer.
func Run(ctx context.Context, g *network.Graph, events []timetable.TrainEvent, spec Spec, t0 time.Time, horizon time.Duration, cfg opt.Config) (*Result, error) {
	ev2, g2, err := Apply(events, g, spec)
	if err != nil {
		return nil, err
	}

	res, err := sim.Replay(ev2, g2, sim.Options{})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: replay: %w", spec.Label(), err)
	}
	assessment := risk.Analyze(g2, res, t0, horizon, cfg.Radar)
	plan, _, err := opt.Propose(ctx, g2, res, assessment, cfg)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: propose: %w", spec.Label(), err)
	}

	return &Result{
		Name:         spec.Label(),
		Risks:        assessment.KPIs.Total,
		BySeverity:   assessment.KPIs.BySeverity,
		TrainsServed: res.KPIs.TrainsServed,
		AvgDelayMin:  res.KPIs.AvgDelayMin,
		P90DelayMin:  res.KPIs.P90DelayMin,
		OnTimePct:    res.KPIs.OnTimePct,
		TotalWaitMin: res.KPIs.TotalWaitMin,
		Actions:      plan.Metrics.Actions,
		HoldMinutes:  plan.Metrics.HoldMinutesTotal,
	}, nil
}

// suiteWorkers bounds the fan-out; each scenario replays the whole day, so
// a wide suite on a small host should queue rather than thrash.
const suiteWorkers = 4

// RunSuite executes every scenario in the suite against the same baseline
// and returns the results ranked best first. Scenarios are independent
// (each works on its own copies), so they fan out across workers.
func RunSuite(ctx context.Context, g *network.Graph, events []timetable.TrainEvent, suite *Suite, t0 time.Time, cfg opt.Config) ([]*Result, error) {
	horizon := suite.Horizon(time.Hour)
	if !suite.T0.IsZero() {
		t0 = suite.T0
	}

	results := make([]*Result, len(suite.Scenarios))
	var eg errgroup.Group
	eg.SetLimit(suiteWorkers)
	for i, spec := range suite.Scenarios {
		i, spec := i, spec
		eg.Go(func() error {
			r, err := Run(ctx, g, events, spec, t0, horizon, cfg)
			if err != nil {
				return err
			}
			log.Printf("Scenario: %s -> %d risks, %.1f min avg delay, %d actions",
				r.Name, r.Risks, r.AvgDelayMin, r.Actions)
			results[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	Rank(results)
	return results, nil
}

// Rank orders results best first: fewest risks, then lowest average delay,
// then name.
func Rank(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Risks != results[j].Risks {
			return results[i].Risks < results[j].Risks
		}
		if results[i].AvgDelayMin != results[j].AvgDelayMin {
			return results[i].AvgDelayMin < results[j].AvgDelayMin
		}
		return results[i].Name < results[j].Name
	})
}

// Pareto returns the indices of results not dominated on the (risks,
// average delay) plane. A result is dominated when another is no worse on
// both axes and strictly better on at least one.
func Pareto(results []*Result) []int {
	var front []int
	for i, a := range results {
		dominated := false
		for j, b := range results {
			if j == i {
				continue
			}
			if b.Risks <= a.Risks && b.AvgDelayMin <= a.AvgDelayMin &&
				(b.Risks < a.Risks || b.AvgDelayMin < a.AvgDelayMin) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, i)
		}
	}
	return front
}
