package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestDefaultWeightsCoverAllIntents(t *testing.T) {
	weights := DefaultWeights()
	for _, intent := range []string{
		"lookup", "approval", "list", "count", "compare",
		"definitional", "semantic", "conversational",
	} {
		if len(weights[intent]) == 0 {
			t.Fatalf("no weight table for %s", intent)
		}
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(dir)
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("missing config file must not fail: %v", err)
	}
	if cfg.Router.ScoreThreshold != Default().Router.ScoreThreshold {
		t.Fatalf("defaults not applied: %+v", cfg.Router)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archie-config.yaml")
	raw := `
router:
  score_threshold: 0.7
retrieval:
  top_k: 3
  max_distance: 0.5
server:
  addr: ":9999"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Router.ScoreThreshold != 0.7 {
		t.Fatalf("score_threshold: %v", cfg.Router.ScoreThreshold)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Retrieval.MaxDistance != 0.5 {
		t.Fatalf("retrieval: %+v", cfg.Retrieval)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("addr: %s", cfg.Server.Addr)
	}
	// Unset sections keep their defaults, including the weight tables.
	if cfg.Breaker.FailureThreshold != 3 {
		t.Fatalf("breaker defaults lost: %+v", cfg.Breaker)
	}
	if len(cfg.Router.Weights) == 0 {
		t.Fatal("weights must fall back to defaults")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archie-config.yaml")
	if err := os.WriteFile(path, []byte("router:\n  score_threshold: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("out-of-range threshold must fail validation")
	}
}

func TestValidateRanges(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Router.ScoreThreshold = 0 },
		func(c *Config) { c.Router.MinMargin = 1.5 },
		func(c *Config) { c.Router.Weights = nil },
		func(c *Config) { c.Retrieval.MaxDistance = 0 },
		func(c *Config) { c.Retrieval.ConfidenceDiscount = 0 },
		func(c *Config) { c.Breaker.FailureThreshold = 0 },
		func(c *Config) { c.Trace.Capacity = 0 },
		func(c *Config) { c.Conversation.MaxRefs = 0 },
		func(c *Config) { c.Server.RequestTimeout = 0 },
		func(c *Config) { c.Server.HeartbeatInterval = -time.Second },
	}
	for i, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d should fail validation", i)
		}
	}
}
