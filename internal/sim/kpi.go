package sim

import (
	"sort"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/stats"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// KPIs aggregate one replay. Delay is measured at each train's terminal stop
// against its scheduled arrival, in minutes, floored at zero.
type KPIs struct {
	TrainsServed    int                    `json:"trainsServed"`
	TrainsSkipped   int                    `json:"trainsSkipped"`
	OnTimePct       float64                `json:"onTimePct"`
	AvgDelayMin     float64                `json:"avgDelayMin"`
	P90DelayMin     float64                `json:"p90DelayMin"`
	TotalWaitMin    float64                `json:"totalWaitMin"`
	WaitMinByReason map[WaitReason]float64 `json:"waitMinByReason"`
}

// computeKPIs aggregates the realized events and the waiting ledger. Trains
// whose terminal stop has no scheduled reference are served but excluded
// from the punctuality and delay figures. Accumulation runs in sorted train
// order so the floating point results are reproducible.
func computeKPIs(realized []timetable.TrainEvent, ledger []WaitingLedgerEntry, skipped int, onTime time.Duration) KPIs {
	k := KPIs{
		TrainsSkipped:   skipped,
		WaitMinByReason: make(map[WaitReason]float64),
	}

	byTrain := timetable.ByTrain(realized)
	k.TrainsServed = len(byTrain)

	ids := make([]string, 0, len(byTrain))
	for id := range byTrain {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var welford stats.Welford
	var delays []float64
	measured, punctual := 0, 0
	for _, id := range ids {
		stops := byTrain[id]
		d, ok := terminalDelay(stops[len(stops)-1])
		if !ok {
			continue
		}
		measured++
		if d <= onTime {
			punctual++
		}
		delayMin := d.Minutes()
		welford.Add(delayMin)
		delays = append(delays, delayMin)
	}
	if measured > 0 {
		k.OnTimePct = float64(punctual) / float64(measured) * 100
		k.AvgDelayMin = welford.Mean
		k.P90DelayMin = stats.Quantile(delays, 0.9)
	}

	for _, e := range ledger {
		m := e.WaitMinutes()
		k.TotalWaitMin += m
		k.WaitMinByReason[e.Reason] += m
	}
	return k
}

// terminalDelay compares the realized terminal time against the schedule,
// preferring the arrival pair and floored at zero (early is not negative
// delay).
func terminalDelay(last timetable.TrainEvent) (time.Duration, bool) {
	if last.ActArr != nil && !last.SchedArr.IsZero() {
		d := last.ActArr.Sub(last.SchedArr)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	if last.ActDep != nil && !last.SchedDep.IsZero() {
		d := last.ActDep.Sub(last.SchedDep)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
