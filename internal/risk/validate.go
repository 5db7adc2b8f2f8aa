package risk

import (
	"sort"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
)

// ValidationReport summarizes a self-check of emitted risks against the
// underlying occupancy evidence.
type ValidationReport struct {
	Checked int      `json:"checked"`
	Passed  int      `json:"passed"`
	Failed  []string `json:"failed,omitempty"` // offending risk ids
}

// OK reports whether every risk survived the cross-check.
func (r ValidationReport) OK() bool { return len(r.Failed) == 0 }

// Validate re-derives the desired windows and confirms each risk describes a
// genuine breach. It is a defense against detector bugs: a risk that cannot
// be reproduced from the raw data is reported by id, not silently kept.
func Validate(res *sim.Result, g *network.Graph, risks []ConflictRecord) ValidationReport {
	windows := desiredWindows(res)
	var rep ValidationReport
	for _, r := range risks {
		rep.Checked++
		if genuine(windows, g, r) {
			rep.Passed++
		} else {
			rep.Failed = append(rep.Failed, r.ID)
		}
	}
	sort.Strings(rep.Failed)
	return rep
}

func genuine(windows *sim.IntervalLog, g *network.Graph, r ConflictRecord) bool {
	switch r.Kind {
	case KindHeadwayViolation:
		if r.Resource.Kind != sim.ResourceBlock || len(r.Trains) != 2 {
			return false
		}
		b, ok := g.Block(r.Resource.ID)
		if !ok {
			return false
		}
		return pairTooClose(windows, r.Resource, r.Trains[0], r.Trains[1], b.Headway)
	case KindCapacityOverrun:
		if r.Resource.Kind != sim.ResourceBlock {
			return false
		}
		b, ok := g.Block(r.Resource.ID)
		if !ok {
			return false
		}
		if b.Capacity == 1 && len(r.Trains) == 2 {
			// Pairwise form: the follower's desired window starts inside
			// the leader's occupancy.
			return pairTooClose(windows, r.Resource, r.Trains[0], r.Trains[1], 0)
		}
		peak, _ := windows.MaxConcurrent(r.Resource, r.WindowStart, r.WindowEnd)
		return peak > b.Capacity
	case KindPlatformClash:
		if r.Resource.Kind != sim.ResourcePlatform {
			return false
		}
		peak, _ := windows.MaxConcurrent(r.Resource, r.WindowStart, r.WindowEnd)
		return peak > g.PlatformCapacity(r.Resource.ID)
	}
	return false
}

// pairTooClose reports whether some follower window starts within slack of a
// leader window's end (slack 0 means outright overlap).
func pairTooClose(windows *sim.IntervalLog, ref sim.ResourceRef, leader, follower string, slack time.Duration) bool {
	var lws, fws []sim.Interval
	for _, iv := range windows.Intervals(ref) {
		switch iv.TrainID {
		case leader:
			lws = append(lws, iv)
		case follower:
			fws = append(fws, iv)
		}
	}
	for _, lw := range lws {
		for _, fw := range fws {
			if !fw.Start.Before(lw.Start) && fw.Start.Before(lw.End.Add(slack)) {
				return true
			}
		}
	}
	return false
}
