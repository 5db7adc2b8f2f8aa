// scenarios runs a YAML what-if suite against one scope+date: each template
// (late start, platform outage, speed restriction, single line working) is
// applied to a copy of the inputs and pushed through replay, radar and the
// proposer. Results are ranked and written as one artifact.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/artifacts"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/config"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/ingest"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/scenario"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	stationsFile := flag.String("stations", cfg.StationsFile, "Stations CSV file")
	blocksFile := flag.String("blocks", cfg.BlocksFile, "Blocks CSV file")
	eventsFile := flag.String("events", cfg.EventsFile, "Train events CSV file")
	suiteFile := flag.String("suite", "scenarios.yaml", "YAML scenario suite")
	scope := flag.String("scope", cfg.Scope, "Scope label for the artifact directory")
	date := flag.String("date", cfg.ServiceDate, "Service date label for the artifact directory")
	flag.Parse()

	ds, err := ingest.Load(*stationsFile, *blocksFile, *eventsFile)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	f, err := os.Open(*suiteFile)
	if err != nil {
		log.Fatalf("Failed to open scenario suite: %v", err)
	}
	suite, err := scenario.ParseSuite(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to parse scenario suite: %v", err)
	}

	t0 := earliestEvent(ds.Events)
	results, err := scenario.RunSuite(context.Background(), ds.Graph, ds.Events, suite, t0, cfg.Opt())
	if err != nil {
		log.Fatalf("Scenario suite failed: %v", err)
	}

	store := artifacts.NewStore(cfg.ArtifactsDir).Scope(*scope, *date)
	if err := store.SaveJSON("scenarios.json", results); err != nil {
		log.Fatalf("Failed to save scenario results: %v", err)
	}

	for i, r := range results {
		log.Printf("Scenarios: #%d %s: %d risks, %.1f min avg delay, %d actions (%d hold min)",
			i+1, r.Name, r.Risks, r.AvgDelayMin, r.Actions, r.HoldMinutes)
	}
	front := scenario.Pareto(results)
	names := make([]string, len(front))
	for i, idx := range front {
		names[i] = results[idx].Name
	}
	log.Printf("Scenarios: %d run, pareto front: %v", len(results), names)
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
