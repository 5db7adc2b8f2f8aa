// propose runs the action proposer for one scope+date: replay, radar, then
// the bounded search for holds, precedence swaps and platform assignments
// that clear the detected risks. The plan artifact is written for the
// dashboard and for cmd/applyplan.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/artifacts"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/config"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/ingest"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/opt"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	stationsFile := flag.String("stations", cfg.StationsFile, "Stations CSV file")
	blocksFile := flag.String("blocks", cfg.BlocksFile, "Blocks CSV file")
	eventsFile := flag.String("events", cfg.EventsFile, "Train events CSV file")
	scope := flag.String("scope", cfg.Scope, "Scope label for the artifact directory")
	date := flag.String("date", cfg.ServiceDate, "Service date label for the artifact directory")
	t0Flag := flag.String("t0", "", "Horizon anchor (RFC3339); default is the feed's earliest event")
	horizonMin := flag.Int("horizon", int(cfg.Horizon.Minutes()), "Horizon length in minutes")
	strategy := flag.String("strategy", "", "Force a strategy: exact or greedy (default: exact with greedy fallback)")
	flag.Parse()

	ds, err := ingest.Load(*stationsFile, *blocksFile, *eventsFile)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	res, err := sim.Replay(ds.Events, ds.Graph, sim.Options{OnTimeThreshold: cfg.OnTimeThreshold})
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	t0 := earliestEvent(ds.Events)
	if *t0Flag != "" {
		t0, err = time.Parse(time.RFC3339, *t0Flag)
		if err != nil {
			log.Fatalf("Invalid -t0: %v", err)
		}
	}
	horizon := time.Duration(*horizonMin) * time.Minute
	as := risk.Analyze(ds.Graph, res, t0, horizon, cfg.Radar())

	optCfg := cfg.Opt()
	optCfg.Strategy = opt.Strategy(*strategy)
	plan, alts, err := opt.Propose(context.Background(), ds.Graph, res, as, optCfg)
	if err != nil {
		log.Fatalf("Propose failed: %v", err)
	}

	store := artifacts.NewStore(cfg.ArtifactsDir).Scope(*scope, *date)
	if err := store.SaveJSON(artifacts.FilePlan, plan); err != nil {
		log.Fatalf("Failed to save plan artifact: %v", err)
	}

	for _, a := range plan.Actions {
		log.Printf("Propose: %s %s: %s", a.Type, a.TrainID, a.Why)
	}
	for _, d := range plan.Audit.Deferred {
		log.Printf("Propose: deferred risk %s: %s", d.RiskID, d.Reason)
	}
	log.Printf("Propose: plan %s via %s in %v: %d actions, %d/%d risks expected resolved, %d alternatives",
		plan.ID, plan.Audit.Strategy, plan.Audit.Runtime.Round(time.Millisecond),
		len(plan.Actions), plan.Metrics.ExpectedResolution, plan.Metrics.ConflictsTargeted, len(alts))
}

// earliestEvent anchors the horizon at the feed's first known timestamp.
func earliestEvent(events []timetable.TrainEvent) time.Time {
	var t0 time.Time
	for _, e := range events {
		if a, ok := e.BestArr(); ok && (t0.IsZero() || a.Before(t0)) {
			t0 = a
		}
		if d, ok := e.BestDep(); ok && (t0.IsZero() || d.Before(t0)) {
			t0 = d
		}
	}
	return t0
}
