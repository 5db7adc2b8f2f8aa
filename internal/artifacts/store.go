// Package artifacts persists the engine's flat outputs as plain files under
// a <root>/<scope>/<date>/ layout: CSV for the occupancy tables and the
// ledger, JSON for the radar, plan and report documents. It is deliberately
// a file store, not a database; every artifact is a serialization of an
// in-memory structure the components already hand off.
package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
)

// Artifact file names within one scope/date directory. The applied variants
// carry the label prefix so baseline and applied outcomes sit side by side.
const (
	FileBlockOccupancy    = "block_occupancy.csv"
	FilePlatformOccupancy = "platform_occupancy.csv"
	FileWaitingLedger     = "waiting_ledger.csv"
	FileKPIs              = "kpis.json"
	FileRadar             = "radar.json"
	FilePlan              = "plan.json"
	FileApplyReport       = "apply_report.json"
)

const timeLayout = time.RFC3339Nano

// Store writes and reads artifacts for scope/date pairs under one root.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Dir returns the directory for one scope/date, creating it on demand.
func (s *Store) Dir(scope, date string) (string, error) {
	dir := filepath.Join(s.root, scope, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	return dir, nil
}

// Scope binds the store to one scope/date so call sites stay short.
func (s *Store) Scope(scope, date string) *ScopedStore {
	return &ScopedStore{store: s, scope: scope, date: date}
}

// ScopedStore is a store fixed to one scope/date directory.
type ScopedStore struct {
	store *Store
	scope string
	date  string
}

func (s *ScopedStore) path(name string) (string, error) {
	dir, err := s.store.Dir(s.scope, s.date)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SaveJSON writes one document artifact, indented for the dashboard and for
// eyeballing on disk.
func (s *ScopedStore) SaveJSON(name string, doc any) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(p, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// LoadJSON reads one document artifact into doc.
func (s *ScopedStore) LoadJSON(name string, doc any) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// SaveResult writes a replay's flat tables and KPI document. label prefixes
// the file names ("" for baseline, "applied" for a plan-applied rerun) so
// both sides of an apply comparison persist without clobbering each other.
func (s *ScopedStore) SaveResult(label string, res *sim.Result) error {
	prefix := ""
	if label != "" {
		prefix = label + "_"
	}
	if err := s.saveBlockOccupancy(prefix+FileBlockOccupancy, res.BlockOccupancy); err != nil {
		return err
	}
	if err := s.savePlatformOccupancy(prefix+FilePlatformOccupancy, res.PlatformOccupancy); err != nil {
		return err
	}
	if err := s.saveLedger(prefix+FileWaitingLedger, res.Waiting); err != nil {
		return err
	}
	return s.SaveJSON(prefix+FileKPIs, res.KPIs)
}

func (s *ScopedStore) writeCSV(name string, header []string, rows [][]string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s row: %w", name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}

func (s *ScopedStore) saveBlockOccupancy(name string, recs []sim.BlockOccupancyRecord) error {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{r.TrainID, r.BlockID, r.Entry.Format(timeLayout), r.Exit.Format(timeLayout)}
	}
	return s.writeCSV(name, []string{"train_id", "block_id", "entry", "exit"}, rows)
}

func (s *ScopedStore) savePlatformOccupancy(name string, recs []sim.PlatformOccupancyRecord) error {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			r.TrainID, r.StationID, strconv.Itoa(r.Slot),
			r.Arrival.Format(timeLayout), r.Departure.Format(timeLayout),
		}
	}
	return s.writeCSV(name, []string{"train_id", "station_id", "slot", "arrival", "departure"}, rows)
}

func (s *ScopedStore) saveLedger(name string, entries []sim.WaitingLedgerEntry) error {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.TrainID, string(e.ResourceKind), e.ResourceID,
			e.RequestedAt.Format(timeLayout), e.ReadyAt.Format(timeLayout), string(e.Reason),
		}
	}
	return s.writeCSV(name, []string{"train_id", "resource_kind", "resource_id", "requested_at", "ready_at", "reason"}, rows)
}

func (s *ScopedStore) readCSV(name string, wantCols int) ([][]string, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = wantCols
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: missing header", name)
	}
	return rows[1:], nil
}

// LoadBlockOccupancy reads a saved block occupancy table back. label matches
// the one given to SaveResult.
func (s *ScopedStore) LoadBlockOccupancy(label string) ([]sim.BlockOccupancyRecord, error) {
	name := FileBlockOccupancy
	if label != "" {
		name = label + "_" + name
	}
	rows, err := s.readCSV(name, 4)
	if err != nil {
		return nil, err
	}
	out := make([]sim.BlockOccupancyRecord, 0, len(rows))
	for _, row := range rows {
		entry, err := time.Parse(timeLayout, row[2])
		if err != nil {
			return nil, fmt.Errorf("parse entry %q: %w", row[2], err)
		}
		exit, err := time.Parse(timeLayout, row[3])
		if err != nil {
			return nil, fmt.Errorf("parse exit %q: %w", row[3], err)
		}
		out = append(out, sim.BlockOccupancyRecord{TrainID: row[0], BlockID: row[1], Entry: entry, Exit: exit})
	}
	return out, nil
}

// LoadWaitingLedger reads a saved waiting ledger back.
func (s *ScopedStore) LoadWaitingLedger(label string) ([]sim.WaitingLedgerEntry, error) {
	name := FileWaitingLedger
	if label != "" {
		name = label + "_" + name
	}
	rows, err := s.readCSV(name, 6)
	if err != nil {
		return nil, err
	}
	out := make([]sim.WaitingLedgerEntry, 0, len(rows))
	for _, row := range rows {
		req, err := time.Parse(timeLayout, row[3])
		if err != nil {
			return nil, fmt.Errorf("parse requested_at %q: %w", row[3], err)
		}
		ready, err := time.Parse(timeLayout, row[4])
		if err != nil {
			return nil, fmt.Errorf("parse ready_at %q: %w", row[4], err)
		}
		out = append(out, sim.WaitingLedgerEntry{
			TrainID:      row[0],
			ResourceKind: sim.ResourceKind(row[1]),
			ResourceID:   row[2],
			RequestedAt:  req,
			ReadyAt:      ready,
			Reason:       sim.WaitReason(row[5]),
		})
	}
	return out, nil
}
