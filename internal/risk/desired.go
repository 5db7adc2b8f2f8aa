package risk

import (
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
)

// The radar works on desired windows: where each train WANTED to be had no
// wait been enforced. The replay's waiting ledger chains RequestedAt/ReadyAt
// times per acquisition, so walking the chain backwards from an admitted
// time recovers the original request.

type resourceKey struct {
	train string
	ref   sim.ResourceRef
}

type waitChains map[resourceKey]map[time.Time]time.Time

func buildWaitChains(entries []sim.WaitingLedgerEntry) waitChains {
	chains := make(waitChains)
	for _, w := range entries {
		k := resourceKey{w.TrainID, sim.ResourceRef{Kind: w.ResourceKind, ID: w.ResourceID}}
		m, ok := chains[k]
		if !ok {
			m = make(map[time.Time]time.Time)
			chains[k] = m
		}
		m[w.ReadyAt] = w.RequestedAt
	}
	return chains
}

// desired walks back from an admitted time to the original request. Chains
// are at most a few links (precedence then capacity or headway); the bound
// guards against malformed ledgers.
func (c waitChains) desired(k resourceKey, admitted time.Time) time.Time {
	t := admitted
	for i := 0; i < 8; i++ {
		prev, ok := c[k][t]
		if !ok {
			return t
		}
		t = prev
	}
	return t
}

// desiredWindows rebuilds every occupancy as the span the train asked for,
// keeping each span's enforced duration. The result is the radar's and the
// validator's shared evidence base.
func desiredWindows(res *sim.Result) *sim.IntervalLog {
	chains := buildWaitChains(res.Waiting)
	log := sim.NewIntervalLog()
	for _, r := range res.BlockOccupancy {
		ref := sim.ResourceRef{Kind: sim.ResourceBlock, ID: r.BlockID}
		start := chains.desired(resourceKey{r.TrainID, ref}, r.Entry)
		log.Add(ref, sim.Interval{
			TrainID: r.TrainID,
			Start:   start,
			End:     start.Add(r.Exit.Sub(r.Entry)),
		})
	}
	for _, r := range res.PlatformOccupancy {
		ref := sim.ResourceRef{Kind: sim.ResourcePlatform, ID: r.StationID}
		start := chains.desired(resourceKey{r.TrainID, ref}, r.Arrival)
		log.Add(ref, sim.Interval{
			TrainID: r.TrainID,
			Start:   start,
			End:     start.Add(r.Departure.Sub(r.Arrival)),
		})
	}
	return log.Freeze()
}
