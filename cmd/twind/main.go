// twind is the section twin daemon: it loads one scope+date, runs the
// rolling-horizon decision loop, watches the live events drop file, and
// serves the operator API with Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/api"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/artifacts"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/config"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/driver"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/feedback"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/ingest"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/timetable"
)

func main() {
	log.Println("Starting section twin daemon...")

	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
	cfg := config.Load()
	log.Printf("Config loaded: scope=%s date=%s horizon=%v period=%v sandbox=%v",
		cfg.Scope, cfg.ServiceDate, cfg.Horizon, cfg.Period, cfg.Sandbox)

	// Phase 1: dataset
	ds, err := ingest.Load(cfg.StationsFile, cfg.BlocksFile, cfg.EventsFile)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	if !ds.Report.OK() {
		for _, e := range ds.Report.Errors {
			log.Printf("Twind: data quality: %s", e)
		}
	}
	log.Printf("Dataset loaded: %s, %d events", ds.Graph, len(ds.Events))

	// Phase 2: engine
	metrics := driver.NewMetrics()
	store := artifacts.NewStore(cfg.ArtifactsDir).Scope(cfg.Scope, dateLabel(cfg, ds))
	var reload driver.ReloadFunc
	if cfg.WatchFile != "" {
		reload = func() ([]timetable.TrainEvent, error) {
			fresh, err := ingest.Load(cfg.StationsFile, cfg.BlocksFile, cfg.WatchFile)
			if err != nil {
				return nil, fmt.Errorf("reload events: %w", err)
			}
			return fresh.Events, nil
		}
	}
	engine := driver.New(cfg, ds.Graph, ds.Events, metrics, store, reload)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Twind: driver stopped: %v", err)
		}
	}()

	// Phase 3: live events watcher
	if cfg.WatchFile != "" {
		go func() {
			if err := driver.Watch(ctx, cfg.WatchFile, engine); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Twind: watcher stopped: %v", err)
			}
		}()
	}

	// Phase 4: HTTP API
	router := api.NewRouter(api.Options{
		Provider:    engine,
		Feedback:    feedback.NewLog(cfg.ArtifactsDir + "/feedback.jsonl"),
		Sandbox:     cfg.Sandbox,
		Gatherer:    metrics.Registry,
		CORSOrigins: cfg.CORSOrigins,
	})
	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		log.Printf("Twind: API listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// Phase 5: graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Twind: server shutdown: %v", err)
	}
	log.Println("Goodbye!")
}

// dateLabel picks the artifact directory's date component: the configured
// service date, or the dataset's first service date when none is set.
func dateLabel(cfg *config.Config, ds *ingest.Dataset) string {
	if cfg.ServiceDate != "" {
		return cfg.ServiceDate
	}
	if len(ds.ServiceDates) > 0 {
		return ds.ServiceDates[0].Format("2006-01-02")
	}
	return "unknown"
}
