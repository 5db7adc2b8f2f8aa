package opt

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// assemble turns the chosen candidates into an ordered plan with metrics,
// audit trail and per-risk alternatives. Risks past the per-cycle budget are
// deferred here so the audit always accounts for every risk the assessment
// reported.
func (p *proposer) assemble(chosen []candidate, strategy Strategy, timedOut bool, start time.Time) (*Plan, []AlternativeSet) {
	plan := &Plan{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}

	var resolved []string
	var deferred []DeferredRisk
	holds := make(map[string]int)
	objective := 0.0

	for i, c := range chosen {
		r := p.risks[i]
		if c.deferral {
			reason := c.reason
			if reason == "" {
				reason = p.deferReason(i, holds)
			}
			deferred = append(deferred, DeferredRisk{RiskID: r.ID, Reason: reason})
			objective += p.cfg.Lambda
			continue
		}
		a := c.action
		a.ID = newActionID()
		plan.Actions = append(plan.Actions, a)
		resolved = append(resolved, r.ID)
		if a.Type == ActionHold {
			holds[a.TrainID]++
			plan.Metrics.HoldMinutesTotal += a.HoldMin
		}
		objective += c.cost
	}
	for _, r := range p.beyond {
		deferred = append(deferred, DeferredRisk{
			RiskID: r.ID,
			Reason: fmt.Sprintf("beyond the per-cycle risk budget (%d)", p.cfg.MaxRisks),
		})
		objective += p.cfg.Lambda
	}

	plan.Metrics.Actions = len(plan.Actions)
	plan.Metrics.ConflictsTargeted = len(p.risks)
	plan.Metrics.ExpectedResolution = len(resolved)
	plan.Metrics.Objective = objective
	plan.Audit = AuditEntry{
		Strategy:        strategy,
		TimedOut:        timedOut,
		Runtime:         time.Since(start),
		Deadline:        p.cfg.Deadline,
		T0:              p.assessment.GeneratedAt,
		Horizon:         p.assessment.Horizon,
		MaxHoldMinutes:  p.cfg.MaxHoldMinutes,
		RisksConsidered: len(p.risks),
		ResolvedRiskIDs: resolved,
		Deferred:        deferred,
	}
	return plan, p.alternatives()
}

// deferReason reconstructs why the search deferred a risk whose menu did
// offer actions: either the per-train budget was spent by earlier actions,
// or deferral genuinely scored better.
func (p *proposer) deferReason(i int, holds map[string]int) string {
	for _, c := range p.menus[i] {
		if c.deferral {
			continue
		}
		if c.action.Type == ActionHold && holds[c.action.TrainID] >= p.cfg.MaxHoldsPerTrain {
			continue
		}
		return "deferral scored better than the available actions"
	}
	return fmt.Sprintf("hold budget (%d per train) exhausted", p.cfg.MaxHoldsPerTrain)
}
