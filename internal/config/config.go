// Package config loads the engine's operational parameters from environment
// variables. Thresholds and caps are tuning knobs supplied by the deployment,
// never hardcoded in the components that consume them.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/opt"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
)

// Config holds all configuration for the twin daemon and the CLI tools.
type Config struct {
	// Scope and dataset files
	Scope        string
	ServiceDate  string
	StationsFile string
	BlocksFile   string
	EventsFile   string
	ArtifactsDir string

	// Live events adapter: a drop file whose changes trigger a recompute.
	WatchFile string

	// Rolling horizon loop
	Horizon time.Duration
	Period  time.Duration
	Workers int

	// Proposer caps and objective
	MaxHoldMinutes   int
	MaxHoldsPerTrain int
	MaxRisks         int
	Lambda           float64
	HoldCostPerMin   float64
	Deadline         time.Duration
	MaxAlternatives  int

	// Radar severity ladder
	CriticalWithin  time.Duration
	HighWithin      time.Duration
	MediumWithin    time.Duration
	HighPriorityMax int
	BucketMinutes   int

	// Replay KPI threshold
	OnTimeThreshold time.Duration

	// Sandbox keeps POST /api/plan/apply advisory: reports are computed and
	// stored but never promoted to a live dispatch.
	Sandbox bool

	// HTTP API
	ListenAddr  string
	CORSOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Scope:        getEnv("TWIN_SCOPE", "corridor"),
		ServiceDate:  getEnv("TWIN_SERVICE_DATE", ""),
		StationsFile: getEnv("TWIN_STATIONS_FILE", "data/stations.csv"),
		BlocksFile:   getEnv("TWIN_BLOCKS_FILE", "data/blocks.csv"),
		EventsFile:   getEnv("TWIN_EVENTS_FILE", "data/events.csv"),
		ArtifactsDir: getEnv("TWIN_ARTIFACTS_DIR", "artifacts"),

		WatchFile: getEnv("TWIN_WATCH_FILE", ""),

		Horizon: getEnvDuration("TWIN_HORIZON_MIN", 60, time.Minute),
		Period:  getEnvDuration("TWIN_PERIOD_SEC", 300, time.Second),
		Workers: getEnvInt("TWIN_WORKERS", 1),

		MaxHoldMinutes:   getEnvInt("TWIN_MAX_HOLD_MIN", 5),
		MaxHoldsPerTrain: getEnvInt("TWIN_MAX_HOLDS_PER_TRAIN", 2),
		MaxRisks:         getEnvInt("TWIN_MAX_RISKS", 20),
		Lambda:           getEnvFloat("TWIN_LAMBDA", 1.0),
		HoldCostPerMin:   getEnvFloat("TWIN_HOLD_COST_PER_MIN", 0.02),
		Deadline:         getEnvDuration("TWIN_SOLVER_DEADLINE_MS", 500, time.Millisecond),
		MaxAlternatives:  getEnvInt("TWIN_MAX_ALTERNATIVES", 2),

		CriticalWithin:  getEnvDuration("TWIN_CRITICAL_WITHIN_MIN", 5, time.Minute),
		HighWithin:      getEnvDuration("TWIN_HIGH_WITHIN_MIN", 15, time.Minute),
		MediumWithin:    getEnvDuration("TWIN_MEDIUM_WITHIN_MIN", 30, time.Minute),
		HighPriorityMax: getEnvInt("TWIN_HIGH_PRIORITY_MAX", 1),
		BucketMinutes:   getEnvInt("TWIN_BUCKET_MIN", 5),

		OnTimeThreshold: getEnvDuration("TWIN_ON_TIME_MIN", 5, time.Minute),

		Sandbox: getEnvBool("TWIN_SANDBOX", true),

		ListenAddr:  getEnv("TWIN_LISTEN_ADDR", ":8080"),
		CORSOrigins: getEnvList("TWIN_CORS_ORIGINS", "http://localhost:5173"),
	}
}

// Radar maps the loaded thresholds onto a radar configuration.
func (c *Config) Radar() risk.Config {
	return risk.Config{
		CriticalWithin:  c.CriticalWithin,
		HighWithin:      c.HighWithin,
		MediumWithin:    c.MediumWithin,
		HighPriorityMax: c.HighPriorityMax,
		BucketMinutes:   c.BucketMinutes,
	}
}

// Opt maps the loaded caps and objective weights onto a proposer
// configuration, radar settings included so trial re-assessments match the
// assessment the proposer acts on.
func (c *Config) Opt() opt.Config {
	return opt.Config{
		MaxHoldMinutes:   c.MaxHoldMinutes,
		MaxHoldsPerTrain: c.MaxHoldsPerTrain,
		MaxRisks:         c.MaxRisks,
		Lambda:           c.Lambda,
		HoldCostPerMin:   c.HoldCostPerMin,
		Deadline:         c.Deadline,
		MaxAlternatives:  c.MaxAlternatives,
		Radar:            c.Radar(),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * unit
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
