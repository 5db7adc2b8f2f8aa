// Package risk scans a replay's occupancy for capacity and headway conflicts
// inside a forward horizon. It works on desired windows (where trains wanted
// to be, before waits were enforced), classifies each conflict by severity
// and lead time, and attaches a mitigation preview. Risks are transient:
// recomputed every horizon, never authoritative state.
package risk

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/stats"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// Severity grades how urgently a conflict needs attention.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Rank orders severities, most urgent first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Kind is the conflict class.
type Kind string

const (
	KindHeadwayViolation Kind = "headway_violation"
	KindCapacityOverrun  Kind = "capacity_overrun"
	KindPlatformClash    Kind = "platform_clash"
)

// Config holds the radar's thresholds. Zero fields take defaults; the values
// are operational tuning, so callers load them from configuration rather
// than relying on the defaults.
type Config struct {
	// Severity ladder: lead time within CriticalWithin on a high-priority
	// train is Critical; within HighWithin is High; within MediumWithin is
	// Medium; else Low.
	CriticalWithin time.Duration
	HighWithin     time.Duration
	MediumWithin   time.Duration

	// HighPriorityMax is the highest (numerically largest) priority class
	// still counted as high priority for the Critical tier.
	HighPriorityMax int

	// BucketMinutes sizes the risk timeline buckets.
	BucketMinutes int

	// PreviewHolds are the representative holds probed in mitigation
	// previews.
	PreviewHolds []time.Duration
}

func (c Config) withDefaults() Config {
	if c.CriticalWithin <= 0 {
		c.CriticalWithin = 5 * time.Minute
	}
	if c.HighWithin <= 0 {
		c.HighWithin = 15 * time.Minute
	}
	if c.MediumWithin <= 0 {
		c.MediumWithin = 30 * time.Minute
	}
	if c.HighPriorityMax <= 0 {
		c.HighPriorityMax = 1
	}
	if c.BucketMinutes <= 0 {
		c.BucketMinutes = 5
	}
	if len(c.PreviewHolds) == 0 {
		c.PreviewHolds = []time.Duration{2 * time.Minute, 5 * time.Minute}
	}
	return c
}

// ConflictRecord is one detected risk.
type ConflictRecord struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	Resource sim.ResourceRef `json:"resource"`

	// WindowStart/WindowEnd bound when the conflict manifests.
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`

	// Trains involved. For pairwise headway conflicts the order is
	// (leader, follower); for clashes and overruns the ids are sorted.
	Trains []string `json:"trains"`

	Severity Severity `json:"severity"`

	// LeadMin is minutes from t0 until the window opens, floored at zero
	// for conflicts already underway.
	LeadMin float64 `json:"leadMin"`

	// RequiredHold is the smallest hold that clears the conflict.
	RequiredHold time.Duration `json:"requiredHold"`
}

// HoldOption is one probed mitigation in a preview.
type HoldOption struct {
	HoldMin float64 `json:"holdMin"`
	Clears  bool    `json:"clears"`
}

// Preview sketches the cost of ignoring a risk versus holding for it.
// Informational only; the proposer re-checks anything it acts on.
type Preview struct {
	RiskID string `json:"riskId"`
	// IfIgnoredDelayMin is the delay the replay will force if nothing is
	// done (the required hold simply becomes an enforced wait).
	IfIgnoredDelayMin float64      `json:"ifIgnoredDelayMin"`
	RequiredHoldMin   float64      `json:"requiredHoldMin"`
	Options           []HoldOption `json:"options"`
}

// TimelineBucket counts risks whose window opens inside one bucket on one
// resource.
type TimelineBucket struct {
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	Resource   sim.ResourceRef  `json:"resource"`
	Count      int              `json:"count"`
	BySeverity map[Severity]int `json:"bySeverity"`
}

// KPISummary aggregates one assessment.
type KPISummary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"bySeverity"`
	ByKind     map[Kind]int     `json:"byKind"`
	AvgLeadMin float64          `json:"avgLeadMin"`
}

// Assessment is the radar's full output for one horizon.
type Assessment struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Horizon     time.Duration    `json:"horizon"`
	Risks       []ConflictRecord `json:"risks"`
	Timeline    []TimelineBucket `json:"timeline"`
	Previews    []Preview        `json:"previews"`
	KPIs        KPISummary       `json:"kpis"`
}

// Analyze sweeps the replay's desired windows for conflicts inside
// [t0, t0+horizon). Single-track blocks are checked pairwise for headway
// (an outright overlap is an overrun); multi-track blocks and platforms are
// checked for concurrency beyond capacity, one record per violation cluster
// covering every involved train.
func Analyze(g *network.Graph, res *sim.Result, t0 time.Time, horizon time.Duration, cfg Config) *Assessment {
	cfg = cfg.withDefaults()
	windows := desiredWindows(res)
	priorities := timetable.Priorities(res.Events)
	until := t0.Add(horizon)

	var risks []ConflictRecord
	add := func(r ConflictRecord) {
		// Keep conflicts that touch the horizon, drop the rest.
		if !r.WindowEnd.After(t0) || !r.WindowStart.Before(until) {
			return
		}
		r.ID = uuid.NewString()
		r.LeadMin = leadMinutes(t0, r.WindowStart)
		r.Severity = severityFor(r, priorities, cfg)
		risks = append(risks, r)
	}

	for _, ref := range windows.Resources() {
		ivs := windows.Intervals(ref)
		switch ref.Kind {
		case sim.ResourceBlock:
			b, ok := g.Block(ref.ID)
			if !ok {
				continue
			}
			if b.Capacity == 1 {
				for _, r := range headwayConflicts(ref, ivs, b.Headway) {
					add(r)
				}
			} else {
				for _, r := range overrunConflicts(ref, ivs, b.Capacity, KindCapacityOverrun) {
					add(r)
				}
			}
		case sim.ResourcePlatform:
			for _, r := range overrunConflicts(ref, ivs, g.PlatformCapacity(ref.ID), KindPlatformClash) {
				add(r)
			}
		}
	}

	sortRisks(risks)
	return &Assessment{
		GeneratedAt: t0,
		Horizon:     horizon,
		Risks:       risks,
		Timeline:    buildTimeline(risks, t0, until, cfg),
		Previews:    buildPreviews(risks, cfg),
		KPIs:        summarize(risks),
	}
}

// headwayConflicts checks a single-track block pairwise. The binding
// predecessor for each window is the latest-ending earlier window, so a
// short intermediate occupancy cannot mask a violation.
func headwayConflicts(ref sim.ResourceRef, ivs []sim.Interval, headway time.Duration) []ConflictRecord {
	var out []ConflictRecord
	var prevEnd time.Time
	var prevTrain string
	for i, iv := range ivs {
		if i > 0 && iv.TrainID != prevTrain {
			clearAt := prevEnd.Add(headway)
			if iv.Start.Before(clearAt) {
				kind := KindHeadwayViolation
				if iv.Start.Before(prevEnd) {
					kind = KindCapacityOverrun
				}
				out = append(out, ConflictRecord{
					Kind:         kind,
					Resource:     ref,
					WindowStart:  iv.Start,
					WindowEnd:    clearAt,
					Trains:       []string{prevTrain, iv.TrainID},
					RequiredHold: clearAt.Sub(iv.Start),
				})
			}
		}
		if iv.End.After(prevEnd) {
			prevEnd = iv.End
			prevTrain = iv.TrainID
		}
	}
	return out
}

// overrunConflicts sweeps one resource for spans where concurrency exceeds
// capacity. Each maximal span yields one record naming every train active
// during it.
func overrunConflicts(ref sim.ResourceRef, ivs []sim.Interval, capacity int, kind Kind) []ConflictRecord {
	type edge struct {
		at    time.Time
		delta int
		train string
	}
	edges := make([]edge, 0, 2*len(ivs))
	for _, iv := range ivs {
		edges = append(edges, edge{iv.Start, +1, iv.TrainID}, edge{iv.End, -1, iv.TrainID})
	}
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].at.Equal(edges[j].at) {
			return edges[i].at.Before(edges[j].at)
		}
		if edges[i].delta != edges[j].delta {
			return edges[i].delta < edges[j].delta // releases free before entries book
		}
		return edges[i].train < edges[j].train
	})

	var out []ConflictRecord
	active := map[string]int{}
	count := 0
	inSpan := false
	var spanStart time.Time
	involved := map[string]bool{}

	for _, e := range edges {
		count += e.delta
		if e.delta > 0 {
			active[e.train]++
		} else if active[e.train] > 0 {
			active[e.train]--
			if active[e.train] == 0 {
				delete(active, e.train)
			}
		}
		switch {
		case !inSpan && count > capacity:
			inSpan = true
			spanStart = e.at
			for t := range active {
				involved[t] = true
			}
		case inSpan && count > capacity:
			if e.delta > 0 {
				involved[e.train] = true
			}
		case inSpan && count <= capacity:
			inSpan = false
			out = append(out, ConflictRecord{
				Kind:         kind,
				Resource:     ref,
				WindowStart:  spanStart,
				WindowEnd:    e.at,
				Trains:       sortedKeys(involved),
				RequiredHold: e.at.Sub(spanStart),
			})
			involved = map[string]bool{}
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func leadMinutes(t0, windowStart time.Time) float64 {
	lead := windowStart.Sub(t0).Minutes()
	if lead < 0 {
		return 0
	}
	return lead
}

// severityFor applies the lead-time ladder; the Critical tier is reserved
// for conflicts touching a high-priority train.
func severityFor(r ConflictRecord, priorities map[string]int, cfg Config) Severity {
	lead := time.Duration(r.LeadMin * float64(time.Minute))
	highPriority := false
	for _, t := range r.Trains {
		if p, ok := priorities[t]; ok && p <= cfg.HighPriorityMax {
			highPriority = true
			break
		}
	}
	switch {
	case lead <= cfg.CriticalWithin && highPriority:
		return SeverityCritical
	case lead <= cfg.HighWithin:
		return SeverityHigh
	case lead <= cfg.MediumWithin:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// sortRisks fixes the canonical order: most urgent first, then soonest, then
// resource and trains so equal risks line up deterministically.
func sortRisks(risks []ConflictRecord) {
	sort.Slice(risks, func(i, j int) bool {
		a, b := risks[i], risks[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.LeadMin != b.LeadMin {
			return a.LeadMin < b.LeadMin
		}
		if a.Resource.Kind != b.Resource.Kind {
			return a.Resource.Kind < b.Resource.Kind
		}
		if a.Resource.ID != b.Resource.ID {
			return a.Resource.ID < b.Resource.ID
		}
		if len(a.Trains) > 0 && len(b.Trains) > 0 && a.Trains[0] != b.Trains[0] {
			return a.Trains[0] < b.Trains[0]
		}
		return a.Kind < b.Kind
	})
}

func buildTimeline(risks []ConflictRecord, t0, until time.Time, cfg Config) []TimelineBucket {
	if len(risks) == 0 {
		return nil
	}
	width := time.Duration(cfg.BucketMinutes) * time.Minute
	type key struct {
		start time.Time
		ref   sim.ResourceRef
	}
	buckets := map[key]*TimelineBucket{}
	for _, r := range risks {
		start := r.WindowStart
		if start.Before(t0) {
			start = t0
		}
		offset := start.Sub(t0).Truncate(width)
		bs := t0.Add(offset)
		k := key{bs, r.Resource}
		b, ok := buckets[k]
		if !ok {
			b = &TimelineBucket{
				Start:      bs,
				End:        bs.Add(width),
				Resource:   r.Resource,
				BySeverity: make(map[Severity]int),
			}
			buckets[k] = b
		}
		b.Count++
		b.BySeverity[r.Severity]++
	}
	out := make([]TimelineBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if out[i].Resource.Kind != out[j].Resource.Kind {
			return out[i].Resource.Kind < out[j].Resource.Kind
		}
		return out[i].Resource.ID < out[j].Resource.ID
	})
	return out
}

func buildPreviews(risks []ConflictRecord, cfg Config) []Preview {
	out := make([]Preview, 0, len(risks))
	for _, r := range risks {
		p := Preview{
			RiskID:            r.ID,
			IfIgnoredDelayMin: r.RequiredHold.Minutes(),
			RequiredHoldMin:   r.RequiredHold.Minutes(),
		}
		for _, h := range cfg.PreviewHolds {
			p.Options = append(p.Options, HoldOption{
				HoldMin: h.Minutes(),
				Clears:  h >= r.RequiredHold,
			})
		}
		out = append(out, p)
	}
	return out
}

func summarize(risks []ConflictRecord) KPISummary {
	s := KPISummary{
		BySeverity: make(map[Severity]int),
		ByKind:     make(map[Kind]int),
	}
	var lead stats.Welford
	for _, r := range risks {
		s.Total++
		s.BySeverity[r.Severity]++
		s.ByKind[r.Kind]++
		lead.Add(r.LeadMin)
	}
	s.AvgLeadMin = lead.Mean
	return s
}
