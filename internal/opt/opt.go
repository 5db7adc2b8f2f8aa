// Package opt turns a risk assessment into a bounded, explainable action
// plan. An exact search over per-risk candidate actions runs first under a
// wall-clock deadline; when the deadline expires the engine degrades to a
// greedy pass that works through risks in urgency order and verifies each
// action against a trial replay before accepting it. Risks that cannot be
// cleared within the operational caps are deferred with a reason, never
// silently dropped.
package opt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
)

// Strategy names the search that produced a plan.
type Strategy string

const (
	StrategyExact  Strategy = "exact"
	StrategyGreedy Strategy = "greedy"
)

// ErrSolverTimeout reports that the exact search ran out of wall-clock
// budget. Propose handles it internally by falling back to greedy; it only
// escapes when the caller forces StrategyExact with no fallback.
var ErrSolverTimeout = errors.New("opt: exact search deadline exceeded")

// ActionType is the controller action vocabulary.
type ActionType string

const (
	ActionHold           ActionType = "HOLD"
	ActionSwapPrecedence ActionType = "SWAP_PRECEDENCE"
	ActionAssignPlatform ActionType = "ASSIGN_PLATFORM"
)

// Action is one dispatchable controller move. Exactly the fields for its
// type are set: holds carry StationID and HoldMin, swaps carry OtherTrain
// (the promoted train; TrainID is demoted to follower), platform
// assignments carry StationID and Platform.
type Action struct {
	ID         string          `json:"id"`
	Type       ActionType      `json:"type"`
	TrainID    string          `json:"trainId"`
	OtherTrain string          `json:"otherTrain,omitempty"`
	StationID  string          `json:"stationId,omitempty"`
	Resource   sim.ResourceRef `json:"resource"`
	HoldMin    int             `json:"holdMin,omitempty"`
	Platform   int             `json:"platform,omitempty"`
	RiskID     string          `json:"riskId"`
	Why        string          `json:"why"`
}

// DeferredRisk is a risk the proposer looked at and could not clear within
// the caps, with the binding constraint spelled out.
type DeferredRisk struct {
	RiskID string `json:"riskId"`
	Reason string `json:"reason"`
}

// Metrics summarizes one plan against the objective the search minimized:
// unresolved risks weighted by Lambda plus hold minutes weighted by
// HoldCostPerMin.
type Metrics struct {
	Actions            int     `json:"actions"`
	ConflictsTargeted  int     `json:"conflictsTargeted"`
	ExpectedResolution int     `json:"expectedResolution"`
	HoldMinutesTotal   int     `json:"holdMinutesTotal"`
	Objective          float64 `json:"objective"`
}

// AuditEntry records how the plan was produced, for the decision log.
type AuditEntry struct {
	Strategy        Strategy       `json:"strategy"`
	TimedOut        bool           `json:"timedOut"`
	Runtime         time.Duration  `json:"runtime"`
	Deadline        time.Duration  `json:"deadline"`
	T0              time.Time      `json:"t0"`
	Horizon         time.Duration  `json:"horizon"`
	MaxHoldMinutes  int            `json:"maxHoldMinutes"`
	RisksConsidered int            `json:"risksConsidered"`
	ResolvedRiskIDs []string       `json:"resolvedRiskIds"`
	Deferred        []DeferredRisk `json:"deferred"`
}

// Plan is an ordered action list with its provenance. Plans are advisory
// until applied; apply-and-validate owns the authoritative before/after
// comparison.
type Plan struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	Actions   []Action   `json:"actions"`
	Metrics   Metrics    `json:"metrics"`
	Audit     AuditEntry `json:"audit"`
}

// AltOption is one alternative action with its score relative to the
// recommended one (0 = recommended tradeoff, more negative = costlier).
type AltOption struct {
	Action Action  `json:"action"`
	Score  float64 `json:"score"`
}

// AlternativeSet lists the options considered for one risk so a controller
// can override the recommendation without leaving the tool.
type AlternativeSet struct {
	RiskID    string      `json:"riskId"`
	Options   []AltOption `json:"options"`
	Tradeoffs string      `json:"tradeoffs"`
}

// Config bounds the proposer. Zero fields take defaults.
type Config struct {
	// MaxHoldMinutes caps any single hold action.
	MaxHoldMinutes int

	// MaxHoldsPerTrain caps how many holds one plan may put on one train.
	MaxHoldsPerTrain int

	// MaxRisks bounds how many risks one cycle searches over; the rest are
	// deferred and picked up by later cycles as the horizon rolls.
	MaxRisks int

	// Lambda is the objective penalty for leaving a risk unresolved.
	Lambda float64

	// HoldCostPerMin is the objective cost of one hold minute.
	HoldCostPerMin float64

	// Deadline is the exact search's wall-clock budget.
	Deadline time.Duration

	// MaxAlternatives caps the options listed per risk.
	MaxAlternatives int

	// Strategy forces a single strategy. Empty means exact with greedy
	// fallback on timeout.
	Strategy Strategy

	// Radar configures the trial-replay assessments used by greedy
	// acceptance checks. Should match the radar that produced the input.
	Radar risk.Config
}

func (c Config) withDefaults() Config {
	if c.MaxHoldMinutes <= 0 {
		c.MaxHoldMinutes = 5
	}
	if c.MaxHoldsPerTrain <= 0 {
		c.MaxHoldsPerTrain = 2
	}
	if c.MaxRisks <= 0 {
		c.MaxRisks = 20
	}
	if c.Lambda <= 0 {
		c.Lambda = 1.0
	}
	if c.HoldCostPerMin <= 0 {
		c.HoldCostPerMin = 0.02
	}
	if c.Deadline <= 0 {
		c.Deadline = 500 * time.Millisecond
	}
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = 2
	}
	return c
}

// Propose builds a plan against the assessment's risks. The exact strategy
// minimizes the objective over per-risk candidate menus under the deadline;
// on timeout the greedy strategy takes over and the switch is logged and
// recorded in the audit entry.
func Propose(ctx context.Context, g *network.Graph, res *sim.Result, assessment *risk.Assessment, cfg Config) (*Plan, []AlternativeSet, error) {
	if g == nil || res == nil || assessment == nil {
		return nil, nil, errors.New("opt: nil graph, replay result or assessment")
	}
	cfg = cfg.withDefaults()
	start := time.Now()

	p := newProposer(g, res, assessment, cfg)

	strategy := StrategyExact
	timedOut := false
	var chosen []candidate
	switch cfg.Strategy {
	case StrategyGreedy:
		strategy = StrategyGreedy
		chosen = p.greedy(ctx)
	default:
		exactCtx := ctx
		cancel := func() {}
		if cfg.Deadline > 0 {
			exactCtx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		}
		var err error
		chosen, err = p.exact(exactCtx)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, ErrSolverTimeout) && cfg.Strategy != StrategyExact:
			log.Printf("Proposer: exact search exceeded %v for %d risks, falling back to greedy", cfg.Deadline, len(p.menus))
			strategy = StrategyGreedy
			timedOut = true
			chosen = p.greedy(ctx)
		default:
			return nil, nil, err
		}
	}

	plan, alts := p.assemble(chosen, strategy, timedOut, start)
	return plan, alts, nil
}

// holdStation is where a hold on trainID must be issued so that it delays
// the conflicted movement: the station the train departs from into the
// conflicted block, or the stop before a clashing platform arrival. A train
// clashing at its own origin is held right there.
func (p *proposer) holdStation(trainID string, ref sim.ResourceRef) string {
	stops := p.stops[trainID]
	switch ref.Kind {
	case sim.ResourceBlock:
		b, ok := p.g.Block(ref.ID)
		if !ok {
			return ""
		}
		for i := 0; i+1 < len(stops); i++ {
			u, v := stops[i].StationID, stops[i+1].StationID
			if (u == b.U && v == b.V) || (u == b.V && v == b.U) {
				return u
			}
		}
		return b.U
	default:
		for i, s := range stops {
			if s.StationID == ref.ID {
				if i == 0 {
					return s.StationID
				}
				return stops[i-1].StationID
			}
		}
		return ref.ID
	}
}

// otherTrains lists the involved trains except one, for why strings.
func otherTrains(trains []string, except string) string {
	out := ""
	for _, t := range trains {
		if t == except {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += t
	}
	return out
}

func holdWhy(r risk.ConflictRecord, holdee string) string {
	others := otherTrains(r.Trains, holdee)
	if others == "" {
		return fmt.Sprintf("resolve %s on %s", r.Kind, r.Resource.ID)
	}
	return fmt.Sprintf("resolve %s on %s vs %s", r.Kind, r.Resource.ID, others)
}

func newActionID() string { return uuid.NewString() }
