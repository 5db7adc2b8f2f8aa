package opt

import (
	"fmt"
	"math"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// candidate is one considered response to a risk. Deferral is a candidate
// too, so every risk always has at least one admissible choice and the
// search never has to drop a risk silently.
type candidate struct {
	riskIdx  int
	action   Action
	deferral bool
	reason   string // deferral reason; empty means the search decides it
	cost     float64
}

type proposer struct {
	g          *network.Graph
	res        *sim.Result
	assessment *risk.Assessment
	cfg        Config

	risks  []risk.ConflictRecord // inside the per-cycle budget
	beyond []risk.ConflictRecord // deferred to later cycles untouched
	menus  [][]candidate

	stops map[string][]timetable.TrainEvent
	keys  map[string]timetable.TrainKey
	prio  map[string]int
}

func newProposer(g *network.Graph, res *sim.Result, assessment *risk.Assessment, cfg Config) *proposer {
	p := &proposer{
		g:          g,
		res:        res,
		assessment: assessment,
		cfg:        cfg,
		stops:      timetable.ByTrain(res.Events),
		keys:       timetable.Keys(res.Events),
		prio:       timetable.Priorities(res.Events),
	}
	risks := assessment.Risks
	if len(risks) > cfg.MaxRisks {
		p.beyond = risks[cfg.MaxRisks:]
		risks = risks[:cfg.MaxRisks]
	}
	p.risks = risks
	p.menus = make([][]candidate, len(risks))
	for i, r := range risks {
		p.menus[i] = p.menuFor(i, r)
	}
	return p
}

// clearingMinutes is the hold that clears a required separation, floored at
// the two minutes below which a dispatcher-issued hold is not worth the
// radio call.
func clearingMinutes(need time.Duration) int {
	m := int(math.Ceil(need.Minutes()))
	if m < 2 {
		m = 2
	}
	return m
}

// orderedPair reports whether the record's trains carry (leader, follower)
// order. Only single-track block records do; cluster records sort their
// train ids.
func (p *proposer) orderedPair(r risk.ConflictRecord) bool {
	if len(r.Trains) != 2 || r.Resource.Kind != sim.ResourceBlock {
		return false
	}
	b, ok := p.g.Block(r.Resource.ID)
	return ok && b.Capacity == 1
}

// holdee picks the train a hold should land on: the follower of an ordered
// pair, otherwise the involved train with the least precedence under the
// corridor ordering.
func (p *proposer) holdee(r risk.ConflictRecord) string {
	if len(r.Trains) == 0 {
		return ""
	}
	if p.orderedPair(r) {
		return r.Trains[1]
	}
	worst := r.Trains[0]
	for _, t := range r.Trains[1:] {
		if timetable.Compare(p.keys[t], p.keys[worst]) > 0 {
			worst = t
		}
	}
	return worst
}

// menuFor builds the search menu for one risk: a precedence swap when the
// follower outranks the train ahead of it, otherwise the minimal clearing
// hold plus a padded variant, and always a deferral so the menu is never
// empty.
func (p *proposer) menuFor(idx int, r risk.ConflictRecord) []candidate {
	var out []candidate
	needMin := clearingMinutes(r.RequiredHold)
	holdee := p.holdee(r)
	station := ""
	if holdee != "" {
		station = p.holdStation(holdee, r.Resource)
	}

	swapped := false
	if p.orderedPair(r) {
		leader, follower := r.Trains[0], r.Trains[1]
		if p.prio[follower] < p.prio[leader] {
			b, _ := p.g.Block(r.Resource.ID)
			out = append(out, candidate{
				riskIdx: idx,
				action: Action{
					Type:       ActionSwapPrecedence,
					TrainID:    leader,
					OtherTrain: follower,
					Resource:   r.Resource,
					RiskID:     r.ID,
					Why:        fmt.Sprintf("let %s precede %s on %s", follower, leader, r.Resource.ID),
				},
				cost: p.cfg.HoldCostPerMin * (b.RunTime + b.Headway).Minutes(),
			})
			swapped = true
		}
	}

	if !swapped && holdee != "" && station != "" {
		if needMin <= p.cfg.MaxHoldMinutes {
			out = append(out, candidate{
				riskIdx: idx,
				action:  p.holdAction(r, holdee, station, needMin),
				cost:    p.cfg.HoldCostPerMin * float64(needMin),
			})
		}
		if padded := 5; needMin < padded && padded <= p.cfg.MaxHoldMinutes {
			a := p.holdAction(r, holdee, station, padded)
			a.Why += " with margin"
			out = append(out, candidate{
				riskIdx: idx,
				action:  a,
				cost:    p.cfg.HoldCostPerMin * float64(padded),
			})
		}
	}

	reason := ""
	if len(out) == 0 {
		switch {
		case holdee == "" || station == "":
			reason = "no hold point on the involved trains' routes"
		default:
			reason = fmt.Sprintf("required hold %dm exceeds the %dm cap", needMin, p.cfg.MaxHoldMinutes)
		}
	}
	out = append(out, candidate{riskIdx: idx, deferral: true, reason: reason, cost: p.cfg.Lambda})
	return out
}

func (p *proposer) holdAction(r risk.ConflictRecord, holdee, station string, minutes int) Action {
	return Action{
		Type:      ActionHold,
		TrainID:   holdee,
		StationID: station,
		Resource:  r.Resource,
		HoldMin:   minutes,
		RiskID:    r.ID,
		Why:       holdWhy(r, holdee),
	}
}

// altPlatform finds a platform slot at the clash station that is clear of
// other trains for the whole risk window, preferring the lowest index.
func (p *proposer) altPlatform(r risk.ConflictRecord, trainID string) (int, bool) {
	capacity := p.g.PlatformCapacity(r.Resource.ID)
	if capacity <= 1 {
		return 0, false
	}
	current := -1
	bySlot := make(map[int][]sim.PlatformOccupancyRecord)
	for _, rec := range p.res.PlatformOccupancy {
		if rec.StationID != r.Resource.ID {
			continue
		}
		if rec.TrainID == trainID {
			current = rec.Slot
			continue
		}
		bySlot[rec.Slot] = append(bySlot[rec.Slot], rec)
	}
	for s := 0; s < capacity; s++ {
		if s == current {
			continue
		}
		free := true
		for _, rec := range bySlot[s] {
			if rec.Arrival.Before(r.WindowEnd) && rec.Departure.After(r.WindowStart) {
				free = false
				break
			}
		}
		if free {
			return s, true
		}
	}
	return 0, false
}

// alternatives lists override options per risk in the controller UI shape:
// a short hold, a safer padded hold, and a platform reassignment when a
// clear slot exists.
func (p *proposer) alternatives() []AlternativeSet {
	var out []AlternativeSet
	for _, r := range p.risks {
		holdee := p.holdee(r)
		if holdee == "" {
			continue
		}
		station := p.holdStation(holdee, r.Resource)
		if station == "" {
			continue
		}
		short, padded := 2, 5
		if short > p.cfg.MaxHoldMinutes {
			short = p.cfg.MaxHoldMinutes
		}
		if padded > p.cfg.MaxHoldMinutes {
			padded = p.cfg.MaxHoldMinutes
		}
		opts := []AltOption{{Action: p.holdAction(r, holdee, station, short), Score: 0}}
		if padded != short {
			opts = append(opts, AltOption{Action: p.holdAction(r, holdee, station, padded), Score: -0.1})
		}
		tradeoffs := "short hold against the safer padded hold; impact estimated from arrival deltas"
		if r.Kind == risk.KindPlatformClash {
			tradeoffs = "hold to stagger arrivals; reassignment possible while another platform is clear"
			if slot, ok := p.altPlatform(r, holdee); ok {
				opts = append(opts, AltOption{
					Action: Action{
						Type:      ActionAssignPlatform,
						TrainID:   holdee,
						StationID: r.Resource.ID,
						Resource:  r.Resource,
						Platform:  slot,
						RiskID:    r.ID,
						Why:       fmt.Sprintf("berth %s on slot %d at %s", holdee, slot, r.Resource.ID),
					},
					Score: -0.05,
				})
			}
		}
		if len(opts) > p.cfg.MaxAlternatives {
			opts = opts[:p.cfg.MaxAlternatives]
		}
		out = append(out, AlternativeSet{RiskID: r.ID, Options: opts, Tradeoffs: tradeoffs})
	}
	return out
}
