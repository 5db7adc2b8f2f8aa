package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

var validate = validator.New()

// stationRow mirrors one line of the station list before conversion.
type stationRow struct {
	StationID   string  `validate:"required"`
	Name        string  `validate:"required"`
	Platforms   int     `validate:"gte=0"`
	MinDwellMin float64 `validate:"gte=0"`
	Zone        string
	Lat         *float64 `validate:"omitempty,gte=-90,lte=90"`
	Lon         *float64 `validate:"omitempty,gte=-180,lte=180"`
}

// blockRow mirrors one line of the block list. Run time and headway are
// fractional minutes in the file and become durations on conversion.
type blockRow struct {
	U          string  `validate:"required"`
	V          string  `validate:"required,nefield=U"`
	BlockID    string  `validate:"required"`
	MinRunMin  float64 `validate:"gt=0"`
	HeadwayMin float64 `validate:"gt=0"`
	Capacity   int     `validate:"gte=1"`
	Direction  string
}

// eventRow carries the non-time columns of an event line; the four
// timestamps are parsed separately because they may lean on service_date.
type eventRow struct {
	TrainID   string `validate:"required"`
	StationID string `validate:"required"`
	Priority  int    `validate:"gte=0"`
	StopSeq   int    `validate:"gte=0"`
}

// makeIndex maps trimmed header names to their column positions.
func makeIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

// getField returns the trimmed value of a named column, or "" when the
// column is absent or the record is short.
func getField(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// intField parses a named integer column, returning def when it is empty.
func intField(record []string, idx map[string]int, name string, def int) (int, error) {
	s := getField(record, idx, name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// floatField parses a named float column, returning def when it is empty.
func floatField(record []string, idx map[string]int, name string, def float64) (float64, error) {
	s := getField(record, idx, name)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

// optFloat parses an optional coordinate column into a pointer, nil when empty.
func optFloat(record []string, idx map[string]int, name string) (*float64, error) {
	s := getField(record, idx, name)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// minutes converts a fractional minute count into a duration.
func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// countInvalid files a validation failure under missing values when a
// required field is empty, under malformed rows otherwise.
func countInvalid(rep *Report, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				rep.MissingValues++
				return
			}
		}
	}
	rep.MalformedRows++
}

// ReadStations parses the station list. Rows that fail validation are
// counted in the report and skipped; the load itself only fails when the
// header cannot be read.
func ReadStations(r io.Reader) ([]network.Station, *Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read station header: %w", err)
	}
	idx := makeIndex(header)

	rep := &Report{}
	var stations []network.Station
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rep.MalformedRows++
			log.Printf("Ingest: skipping unreadable station row: %v", err)
			continue
		}
		rep.RowsRead++

		row := stationRow{
			StationID: getField(record, idx, "station_id"),
			Name:      getField(record, idx, "name"),
			Zone:      getField(record, idx, "zone"),
		}
		var err1, err2, err3, err4 error
		row.Platforms, err1 = intField(record, idx, "platforms", 0)
		row.MinDwellMin, err2 = floatField(record, idx, "min_dwell_min", 0)
		row.Lat, err3 = optFloat(record, idx, "lat")
		row.Lon, err4 = optFloat(record, idx, "lon")
		if err := errors.Join(err1, err2, err3, err4); err != nil {
			rep.MalformedRows++
			log.Printf("Ingest: skipping station %q: %v", row.StationID, err)
			continue
		}
		if err := validate.Struct(row); err != nil {
			countInvalid(rep, err)
			log.Printf("Ingest: skipping station %q: %v", row.StationID, err)
			continue
		}

		stations = append(stations, network.Station{
			ID:        row.StationID,
			Name:      row.Name,
			Platforms: row.Platforms,
			MinDwell:  minutes(row.MinDwellMin),
			Zone:      row.Zone,
			Lat:       row.Lat,
			Lon:       row.Lon,
		})
		rep.RowsLoaded++
	}
	return stations, rep, nil
}

// ReadBlocks parses the block list joining adjacent stations.
func ReadBlocks(r io.Reader) ([]network.Block, *Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read block header: %w", err)
	}
	idx := makeIndex(header)

	rep := &Report{}
	var blocks []network.Block
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rep.MalformedRows++
			log.Printf("Ingest: skipping unreadable block row: %v", err)
			continue
		}
		rep.RowsRead++

		row := blockRow{
			U:         getField(record, idx, "u"),
			V:         getField(record, idx, "v"),
			BlockID:   getField(record, idx, "block_id"),
			Direction: getField(record, idx, "direction"),
		}
		var err1, err2, err3 error
		row.MinRunMin, err1 = floatField(record, idx, "min_run_time", 0)
		row.HeadwayMin, err2 = floatField(record, idx, "headway", 0)
		row.Capacity, err3 = intField(record, idx, "capacity", 1)
		if err := errors.Join(err1, err2, err3); err != nil {
			rep.MalformedRows++
			log.Printf("Ingest: skipping block %q: %v", row.BlockID, err)
			continue
		}
		if err := validate.Struct(row); err != nil {
			countInvalid(rep, err)
			log.Printf("Ingest: skipping block %q: %v", row.BlockID, err)
			continue
		}

		blocks = append(blocks, network.Block{
			ID:        row.BlockID,
			U:         row.U,
			V:         row.V,
			Direction: row.Direction,
			RunTime:   minutes(row.MinRunMin),
			Headway:   minutes(row.HeadwayMin),
			Capacity:  row.Capacity,
		})
		rep.RowsLoaded++
	}
	return blocks, rep, nil
}

// eventTimeLayouts are tried in order for full timestamps; clockLayouts
// cover bare times of day that need the row's service date as an anchor.
var (
	eventTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"}
	clockLayouts     = []string{"15:04:05", "15:04"}
)

// eventTime parses one timestamp column. Full datetimes stand alone; bare
// clock times are combined with the row's service date.
func eventTime(s string, svc time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if svc.IsZero() {
			return time.Time{}, fmt.Errorf("clock time %q needs a service_date", s)
		}
		return time.Date(svc.Year(), svc.Month(), svc.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// dateOf truncates a timestamp to midnight UTC of its calendar day.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// negativeDwell reports a departure recorded before the matching arrival
// within the same schedule layer.
func negativeDwell(e timetable.TrainEvent) bool {
	if !e.SchedArr.IsZero() && !e.SchedDep.IsZero() && e.SchedDep.Before(e.SchedArr) {
		return true
	}
	return e.ActArr != nil && e.ActDep != nil && e.ActDep.Before(*e.ActArr)
}

// ReadEvents parses the train event list. Timestamps may be full datetimes
// or clock times anchored on the row's service_date; when service_date is
// blank it is derived from the first full timestamp in the row. The second
// return value lists the distinct service dates in ascending order, and
// each event's Day field is the index of its date in that slice.
func ReadEvents(r io.Reader) ([]timetable.TrainEvent, []time.Time, *Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read event header: %w", err)
	}
	idx := makeIndex(header)

	rep := &Report{}
	type pending struct {
		event timetable.TrainEvent
		date  time.Time
	}
	var rows []pending
	seen := make(map[time.Time]struct{})

	timeCols := []string{"sched_arr", "sched_dep", "act_arr", "act_dep"}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rep.MalformedRows++
			log.Printf("Ingest: skipping unreadable event row: %v", err)
			continue
		}
		rep.RowsRead++

		row := eventRow{
			TrainID:   getField(record, idx, "train_id"),
			StationID: getField(record, idx, "station_id"),
		}
		var err1, err2 error
		row.Priority, err1 = intField(record, idx, "priority", 0)
		row.StopSeq, err2 = intField(record, idx, "stop_seq", 0)
		if err := errors.Join(err1, err2); err != nil {
			rep.MalformedRows++
			log.Printf("Ingest: skipping event for train %q: %v", row.TrainID, err)
			continue
		}
		if err := validate.Struct(row); err != nil {
			countInvalid(rep, err)
			log.Printf("Ingest: skipping event for train %q: %v", row.TrainID, err)
			continue
		}

		var svc time.Time
		if s := getField(record, idx, "service_date"); s != "" {
			d, err := time.Parse("2006-01-02", s)
			if err != nil {
				rep.MalformedRows++
				log.Printf("Ingest: skipping event for train %q: bad service_date %q", row.TrainID, s)
				continue
			}
			svc = dateOf(d.UTC())
		} else {
			for _, name := range timeCols {
				if t, err := eventTime(getField(record, idx, name), time.Time{}); err == nil && !t.IsZero() {
					svc = dateOf(t)
					break
				}
			}
		}

		var parsed [4]time.Time
		var terr error
		for i, name := range timeCols {
			parsed[i], terr = eventTime(getField(record, idx, name), svc)
			if terr != nil {
				break
			}
		}
		if terr != nil {
			rep.MalformedRows++
			log.Printf("Ingest: skipping event for train %q at %q: %v", row.TrainID, row.StationID, terr)
			continue
		}

		ev := timetable.TrainEvent{
			TrainID:   row.TrainID,
			StationID: row.StationID,
			SchedArr:  parsed[0],
			SchedDep:  parsed[1],
			Priority:  row.Priority,
			Seq:       row.StopSeq,
		}
		if !parsed[2].IsZero() {
			t := parsed[2]
			ev.ActArr = &t
		}
		if !parsed[3].IsZero() {
			t := parsed[3]
			ev.ActDep = &t
		}

		if err := ev.Validate(); err != nil {
			switch {
			case ev.SchedArr.IsZero() && ev.SchedDep.IsZero():
				rep.MissingValues++
			case negativeDwell(ev):
				rep.NegativeDwell++
				rep.errorf("negative dwell for train %s at station %s", ev.TrainID, ev.StationID)
			default:
				rep.MalformedRows++
			}
			log.Printf("Ingest: dropping event for train %q at %q: %v", ev.TrainID, ev.StationID, err)
			continue
		}

		seen[svc] = struct{}{}
		rows = append(rows, pending{event: ev, date: svc})
		rep.RowsLoaded++
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	dayOf := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		dayOf[d] = i
	}

	events := make([]timetable.TrainEvent, 0, len(rows))
	for _, p := range rows {
		p.event.Day = dayOf[p.date]
		events = append(events, p.event)
	}
	return events, dates, rep, nil
}
