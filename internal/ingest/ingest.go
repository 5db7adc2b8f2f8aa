// Package ingest reads the section dataset from CSV files and converts it
// into the typed model the rest of the system consumes. Columns are located
// by header name so file layout may vary, every row is validated before
// conversion, and rows the replay engine could not consume are counted and
// skipped rather than aborting the load. Cross-record quality checks run
// once the graph is built and land in the same report.
package ingest

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

// ErrDataQuality marks a dataset whose cross-record checks found fatal
// inconsistencies.
var ErrDataQuality = errors.New("ingest: data quality checks failed")

// Report tallies what ingestion accepted, dropped and flagged. Counters are
// split by finding so a bad feed can be diagnosed from the summary alone:
// reader-level drops are logged and counted, cross-record findings carry a
// message in Errors or Warnings as well.
type Report struct {
	RowsRead      int `json:"rowsRead"`
	RowsLoaded    int `json:"rowsLoaded"`
	MalformedRows int `json:"malformedRows"`
	MissingValues int `json:"missingValues"`

	NegativeDwell   int `json:"negativeDwell"`
	BackwardTimes   int `json:"backwardTimes"`
	UnknownStations int `json:"unknownStations"`
	MissingBlocks   int `json:"missingBlocks"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether the dataset passed every fatal check.
func (r *Report) OK() bool { return len(r.Errors) == 0 }

// Err returns nil for a clean report and ErrDataQuality wrapped with the
// finding count otherwise, for callers that want a strict boundary.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %d findings", ErrDataQuality, len(r.Errors))
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) merge(o *Report) {
	if o == nil {
		return
	}
	r.RowsRead += o.RowsRead
	r.RowsLoaded += o.RowsLoaded
	r.MalformedRows += o.MalformedRows
	r.MissingValues += o.MissingValues
	r.NegativeDwell += o.NegativeDwell
	r.BackwardTimes += o.BackwardTimes
	r.UnknownStations += o.UnknownStations
	r.MissingBlocks += o.MissingBlocks
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// Dataset is a fully loaded and checked section feed.
type Dataset struct {
	Graph        *network.Graph
	Events       []timetable.TrainEvent
	ServiceDates []time.Time // sorted distinct dates backing TrainEvent.Day
	Report       *Report
}

// DayOf maps a calendar date to its service day ordinal in the dataset.
func (d *Dataset) DayOf(date time.Time) (int, bool) {
	want := dateOf(date.UTC())
	for i, sd := range d.ServiceDates {
		if sd.Equal(want) {
			return i, true
		}
	}
	return 0, false
}

// Load reads the three dataset files, builds the section graph and runs the
// cross-record quality checks. Topology problems fail the load outright;
// record-level findings are returned in the report so callers decide how
// strict to be.
func Load(stationsPath, blocksPath, eventsPath string) (*Dataset, error) {
	sf, err := os.Open(stationsPath)
	if err != nil {
		return nil, fmt.Errorf("open stations: %w", err)
	}
	stations, srep, err := ReadStations(sf)
	sf.Close()
	if err != nil {
		return nil, err
	}

	bf, err := os.Open(blocksPath)
	if err != nil {
		return nil, fmt.Errorf("open blocks: %w", err)
	}
	blocks, brep, err := ReadBlocks(bf)
	bf.Close()
	if err != nil {
		return nil, err
	}

	ef, err := os.Open(eventsPath)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	events, dates, erep, err := ReadEvents(ef)
	ef.Close()
	if err != nil {
		return nil, err
	}

	g, err := network.Build(stations, blocks)
	if err != nil {
		return nil, fmt.Errorf("build section graph: %w", err)
	}

	rep := &Report{}
	rep.merge(srep)
	rep.merge(brep)
	rep.merge(erep)
	rep.merge(Check(g, events))

	log.Printf("Ingest: loaded %d stations, %d blocks, %d events across %d service dates (%d rows dropped)",
		len(stations), len(blocks), len(events), len(dates), rep.RowsRead-rep.RowsLoaded)

	return &Dataset{Graph: g, Events: events, ServiceDates: dates, Report: rep}, nil
}
