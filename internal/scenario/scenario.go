// Package scenario applies what-if templates to copies of the timetable and
// topology and runs them through the replay, radar and proposer pipeline.
// Scenarios never touch the baseline inputs, so a suite can probe a morning
// of disruptions against one loaded dataset.
package scenario

import (
	"fmt"
	"log"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// Kind names a scenario template.
type Kind string

const (
	// KindLateStart pushes one train's departure at one station.
	KindLateStart Kind = "late_start"
	// KindPlatformOutage caps a station at a reduced platform count.
	KindPlatformOutage Kind = "platform_outage"
	// KindSpeedRestriction stretches the run time of one block.
	KindSpeedRestriction Kind = "speed_restriction"
	// KindSingleLineWorking drops every block to a single track.
	KindSingleLineWorking Kind = "single_line_working"
)

// Spec is one scenario: a template kind plus its parameters. Fields not
// used by the kind are ignored.
type Spec struct {
	Name      string  `yaml:"name,omitempty" json:"name,omitempty"`
	Kind      Kind    `yaml:"kind" json:"kind"`
	Train     string  `yaml:"train,omitempty" json:"train,omitempty"`
	Station   string  `yaml:"station,omitempty" json:"station,omitempty"`
	DelayMin  float64 `yaml:"delay_min,omitempty" json:"delayMin,omitempty"`
	Platforms int     `yaml:"platforms,omitempty" json:"platforms,omitempty"`
	U         string  `yaml:"u,omitempty" json:"u,omitempty"`
	V         string  `yaml:"v,omitempty" json:"v,omitempty"`
	Factor    float64 `yaml:"factor,omitempty" json:"factor,omitempty"`
}

// Label returns the scenario's display name, falling back to its kind.
func (s Spec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Kind)
}

// validate rejects specs missing the parameters their kind requires.
func (s Spec) validate() error {
	switch s.Kind {
	case KindLateStart:
		if s.Train == "" || s.Station == "" {
			return fmt.Errorf("scenario %s: late_start needs train and station", s.Label())
		}
	case KindPlatformOutage:
		if s.Station == "" {
			return fmt.Errorf("scenario %s: platform_outage needs a station", s.Label())
		}
	case KindSpeedRestriction:
		if s.U == "" || s.V == "" {
			return fmt.Errorf("scenario %s: speed_restriction needs u and v", s.Label())
		}
	case KindSingleLineWorking:
	default:
		return fmt.Errorf("scenario %s: unknown kind %q", s.Label(), s.Kind)
	}
	return nil
}

// Apply materializes the scenario onto copies of the inputs and returns the
// adjusted events with a rebuilt graph. Parameters that reference nothing
// in the dataset leave it unchanged with a logged warning, so one stale id
// in a suite does not sink the batch.
func Apply(events []timetable.TrainEvent, g *network.Graph, spec Spec) ([]timetable.TrainEvent, *network.Graph, error) {
	if err := spec.validate(); err != nil {
		return nil, nil, err
	}

	out := timetable.Clone(events)
	stations := g.Stations()
	blocks := g.Blocks()

	switch spec.Kind {
	case KindLateStart:
		delay := spec.DelayMin
		if delay <= 0 {
			delay = 5
		}
		d := time.Duration(delay * float64(time.Minute))
		matched := 0
		for i := range out {
			e := &out[i]
			if e.TrainID != spec.Train || e.StationID != spec.Station {
				continue
			}
			matched++
			if !e.SchedDep.IsZero() {
				e.SchedDep = e.SchedDep.Add(d)
			}
			if e.ActDep != nil {
				t := e.ActDep.Add(d)
				e.ActDep = &t
			}
		}
		if matched == 0 {
			log.Printf("Scenario: late_start matched no stop for train %q at %q", spec.Train, spec.Station)
		}

	case KindPlatformOutage:
		remaining := spec.Platforms
		if remaining < 1 {
			remaining = 1
		}
		matched := false
		for i := range stations {
			if stations[i].ID == spec.Station {
				stations[i].Platforms = remaining
				matched = true
			}
		}
		if !matched {
			log.Printf("Scenario: platform_outage matched no station %q", spec.Station)
		}

	case KindSpeedRestriction:
		factor := spec.Factor
		switch {
		case factor == 0:
			factor = 1.2
		case factor < 1:
			factor = 1
		}
		matched := false
		for i := range blocks {
			b := &blocks[i]
			if (b.U == spec.U && b.V == spec.V) || (b.U == spec.V && b.V == spec.U) {
				b.RunTime = time.Duration(float64(b.RunTime) * factor)
				matched = true
			}
		}
		if !matched {
			log.Printf("Scenario: speed_restriction matched no block %s-%s", spec.U, spec.V)
		}

	case KindSingleLineWorking:
		for i := range blocks {
			blocks[i].Capacity = 1
		}
	}

	g2, err := network.Build(stations, blocks)
	if err != nil {
		return nil, nil, fmt.Errorf("scenario %s: rebuild graph: %w", spec.Label(), err)
	}
	return out, g2, nil
}
