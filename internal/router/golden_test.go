package router

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"archie/internal/config"
)

type goldenQuery struct {
	Query  string `yaml:"query"`
	Intent string `yaml:"intent"`
	Kind   string `yaml:"kind"`
}

// TestGoldenQueries pins routing for the full phrasing corpus. Any weight or
// cue-table change must keep this green or update the golden file with a
// reviewed rationale.
func TestGoldenQueries(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "golden_queries.yaml"))
	if err != nil {
		t.Fatalf("read golden set: %v", err)
	}
	var golden []goldenQuery
	if err := yaml.Unmarshal(raw, &golden); err != nil {
		t.Fatalf("parse golden set: %v", err)
	}
	if len(golden) == 0 {
		t.Fatal("golden set is empty")
	}

	r := New(config.Default().Router, nil, nil)
	for _, g := range golden {
		t.Run(g.Query, func(t *testing.T) {
			d := r.Route("golden", "", g.Query, nil)
			if string(d.Intent) != g.Intent || string(d.Kind) != g.Kind {
				t.Errorf("routed to %s/%s (score %.2f, runner-up %s %.2f), want %s/%s",
					d.Intent, d.Kind, d.Score, d.RunnerUp, d.RunnerUpScore, g.Intent, g.Kind)
			}
		})
	}
}
