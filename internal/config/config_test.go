package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Horizon != time.Hour {
		t.Errorf("Horizon = %v, want 1h", cfg.Horizon)
	}
	if cfg.Period != 5*time.Minute {
		t.Errorf("Period = %v, want 5m", cfg.Period)
	}
	if cfg.MaxHoldMinutes != 5 || cfg.MaxHoldsPerTrain != 2 {
		t.Errorf("hold caps = (%d, %d), want (5, 2)", cfg.MaxHoldMinutes, cfg.MaxHoldsPerTrain)
	}
	if cfg.Deadline != 500*time.Millisecond {
		t.Errorf("Deadline = %v, want 500ms", cfg.Deadline)
	}
	if !cfg.Sandbox {
		t.Error("Sandbox should default to true: live apply must be opt-in")
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Errorf("CORSOrigins = %v, want one default origin", cfg.CORSOrigins)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("TWIN_SCOPE", "NDLS-GZB")
	t.Setenv("TWIN_HORIZON_MIN", "45")
	t.Setenv("TWIN_LAMBDA", "2.5")
	t.Setenv("TWIN_SANDBOX", "false")
	t.Setenv("TWIN_CORS_ORIGINS", "http://a.example, http://b.example")

	cfg := Load()
	if cfg.Scope != "NDLS-GZB" {
		t.Errorf("Scope = %q", cfg.Scope)
	}
	if cfg.Horizon != 45*time.Minute {
		t.Errorf("Horizon = %v, want 45m", cfg.Horizon)
	}
	if cfg.Lambda != 2.5 {
		t.Errorf("Lambda = %v, want 2.5", cfg.Lambda)
	}
	if cfg.Sandbox {
		t.Error("Sandbox = true despite TWIN_SANDBOX=false")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestMalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("TWIN_MAX_RISKS", "twenty")
	t.Setenv("TWIN_HOLD_COST_PER_MIN", "cheap")

	cfg := Load()
	if cfg.MaxRisks != 20 {
		t.Errorf("MaxRisks = %d, want default 20", cfg.MaxRisks)
	}
	if cfg.HoldCostPerMin != 0.02 {
		t.Errorf("HoldCostPerMin = %v, want default 0.02", cfg.HoldCostPerMin)
	}
}

// The derived component configs must carry the loaded values through, so
// operational tuning reaches the radar and proposer instead of silently
// using the component defaults.
func TestDerivedConfigsCarryValues(t *testing.T) {
	t.Setenv("TWIN_CRITICAL_WITHIN_MIN", "3")
	t.Setenv("TWIN_BUCKET_MIN", "10")
	t.Setenv("TWIN_MAX_HOLD_MIN", "7")
	t.Setenv("TWIN_SOLVER_DEADLINE_MS", "250")

	cfg := Load()
	radar := cfg.Radar()
	if radar.CriticalWithin != 3*time.Minute {
		t.Errorf("radar.CriticalWithin = %v, want 3m", radar.CriticalWithin)
	}
	if radar.BucketMinutes != 10 {
		t.Errorf("radar.BucketMinutes = %d, want 10", radar.BucketMinutes)
	}

	o := cfg.Opt()
	if o.MaxHoldMinutes != 7 {
		t.Errorf("opt.MaxHoldMinutes = %d, want 7", o.MaxHoldMinutes)
	}
	if o.Deadline != 250*time.Millisecond {
		t.Errorf("opt.Deadline = %v, want 250ms", o.Deadline)
	}
	if o.Radar.BucketMinutes != 10 {
		t.Error("opt.Radar should reuse the radar thresholds")
	}
}
