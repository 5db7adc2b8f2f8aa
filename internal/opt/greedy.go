package opt

import (
	"context"
	"fmt"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// greedy works through the risks in assessment order (severity first, then
// lead time) and takes the first candidate that survives a trial replay:
// the re-assessed horizon must show strictly fewer risks and no new risk
// more severe than the one being fixed. Accepted actions accumulate, so
// every later check sees the earlier holds and swaps.
func (p *proposer) greedy(ctx context.Context) []candidate {
	out := make([]candidate, len(p.menus))
	events := p.res.Events
	var gates []sim.PrecedenceGate
	holds := make(map[string]int)

	base := p.assess(events, gates)
	if base == nil {
		for i := range p.risks {
			out[i] = deferCandidate(i, "trial replay unavailable")
		}
		return out
	}

	for i, menu := range p.menus {
		if ctx.Err() != nil {
			out[i] = deferCandidate(i, "cycle cancelled before this risk was reached")
			continue
		}

		accepted := false
		budgetBound := false
		vetoed := false
		swapOnly := false
		for _, c := range menu {
			if c.deferral {
				continue
			}
			// A swap moves the delay rather than removing the overlap, so
			// the fewer-risks acceptance test can never pass it. Swaps stay
			// with the exact strategy; greedy is a hold engine.
			if c.action.Type == ActionSwapPrecedence {
				swapOnly = true
				continue
			}
			if holds[c.action.TrainID] >= p.cfg.MaxHoldsPerTrain {
				budgetBound = true
				continue
			}
			trialEvents, trialGates := applyCandidate(events, gates, c)
			after := p.assess(trialEvents, trialGates)
			if regressed(base, after, p.risks[i].Severity) {
				vetoed = true
				continue
			}
			out[i] = c
			events, gates = trialEvents, trialGates
			base = after
			if c.action.Type == ActionHold {
				holds[c.action.TrainID]++
			}
			accepted = true
			break
		}
		if accepted {
			continue
		}

		switch {
		case len(menu) == 1:
			out[i] = menu[len(menu)-1] // deferral with its static reason
		case vetoed:
			out[i] = deferCandidate(i, "every candidate left the horizon no better in trial replay")
		case budgetBound:
			out[i] = deferCandidate(i, fmt.Sprintf("hold budget (%d per train) exhausted", p.cfg.MaxHoldsPerTrain))
		case swapOnly:
			out[i] = deferCandidate(i, "precedence swap left to the exact strategy")
		default:
			out[i] = menu[len(menu)-1]
		}
	}
	return out
}

// assess replays a trial timetable and re-runs the radar over the same
// horizon as the input assessment.
func (p *proposer) assess(events []timetable.TrainEvent, gates []sim.PrecedenceGate) *risk.Assessment {
	res, err := sim.Replay(events, p.g, sim.Options{PrecedenceGates: gates})
	if err != nil {
		return nil
	}
	return risk.Analyze(p.g, res, p.assessment.GeneratedAt, p.assessment.Horizon, p.cfg.Radar)
}

// applyCandidate lays one candidate action over a trial timetable. Holds
// shift the departure at the hold station; swaps add a precedence gate.
func applyCandidate(events []timetable.TrainEvent, gates []sim.PrecedenceGate, c candidate) ([]timetable.TrainEvent, []sim.PrecedenceGate) {
	switch c.action.Type {
	case ActionHold:
		held := timetable.ShiftDeparture(events, c.action.TrainID, c.action.StationID, time.Duration(c.action.HoldMin)*time.Minute)
		return held, gates
	case ActionSwapPrecedence:
		next := append(append([]sim.PrecedenceGate(nil), gates...), sim.PrecedenceGate{
			BlockID:  c.action.Resource.ID,
			Leader:   c.action.OtherTrain,
			Follower: c.action.TrainID,
		})
		return events, next
	default:
		return events, gates
	}
}

// regressed rejects a trial outcome that does not strictly improve the
// horizon, or that conjures a risk more severe than the one under repair.
func regressed(before, after *risk.Assessment, target risk.Severity) bool {
	if after == nil {
		return true
	}
	if len(after.Risks) >= len(before.Risks) {
		return true
	}
	return countWorse(after.Risks, target) > countWorse(before.Risks, target)
}

func countWorse(risks []risk.ConflictRecord, than risk.Severity) int {
	n := 0
	for _, r := range risks {
		if r.Severity.Rank() < than.Rank() {
			n++
		}
	}
	return n
}

func deferCandidate(idx int, reason string) candidate {
	return candidate{riskIdx: idx, deferral: true, reason: reason}
}
