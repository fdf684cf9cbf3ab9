package router

import (
	"testing"

	"archie/internal/config"
)

func score(t *testing.T, query string) (map[Intent]float64, Signals) {
	t.Helper()
	s := Extract(query, nil)
	return Score(s, config.DefaultWeights()), s
}

func decide(t *testing.T, query string) RouteDecision {
	t.Helper()
	cfg := config.Default().Router
	scores, s := score(t, query)
	return Decide(s, scores, cfg.ScoreThreshold, cfg.MinMargin)
}

func TestScoreScenarios(t *testing.T) {
	cases := []struct {
		query  string
		intent Intent
		kind   DecisionKind
	}{
		{"What is ADR.0025?", IntentLookup, DecisionConfident},
		{"Who approved ADR.0025?", IntentApproval, DecisionConfident},
		{"List all ADRs", IntentList, DecisionConfident},
		{"How many ADRs do we have?", IntentCount, DecisionConfident},
		{"What is the difference between an ADR and a principle?", IntentCompare, DecisionConfident},
		{"What is an SLA?", IntentDefinitional, DecisionConfident},
		{"hello", IntentConversational, DecisionConfident},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			d := decide(t, tc.query)
			if d.Intent != tc.intent || d.Kind != tc.kind {
				t.Fatalf("got %s/%s (score %.2f, runner-up %s %.2f), want %s/%s",
					d.Intent, d.Kind, d.Score, d.RunnerUp, d.RunnerUpScore, tc.intent, tc.kind)
			}
		})
	}
}

func TestTopicQualifierSuppressesList(t *testing.T) {
	// A scoping phrase turns a list command into a semantic search: nothing
	// clears the threshold, so the decision falls through.
	d := decide(t, "List all principles about interoperability")
	if d.Kind != DecisionNone {
		t.Fatalf("expected fall-through to semantic, got %s/%s (%.2f)", d.Intent, d.Kind, d.Score)
	}
}

func TestApprovalBeatsLookup(t *testing.T) {
	scores, _ := score(t, "Who approved ADR.0025?")
	if scores[IntentApproval] <= scores[IntentLookup] {
		t.Fatalf("approval %.2f must outscore lookup %.2f", scores[IntentApproval], scores[IntentLookup])
	}
	if margin := scores[IntentApproval] - scores[IntentLookup]; margin < config.Default().Router.MinMargin {
		t.Fatalf("margin %.2f below minimum", margin)
	}
}

func TestScoreClamped(t *testing.T) {
	weights := map[string]map[string]float64{
		"lookup": {SignalBase: 5},
		"list":   {SignalBase: -5},
	}
	scores := Score(Signals{}, weights)
	if scores[IntentLookup] != 1 {
		t.Fatalf("expected clamp to 1, got %v", scores[IntentLookup])
	}
	if scores[IntentList] != 0 {
		t.Fatalf("expected clamp to 0, got %v", scores[IntentList])
	}
}

func TestDecideThreshold(t *testing.T) {
	scores := map[Intent]float64{IntentSemantic: 0.55, IntentList: 0.2}
	d := Decide(Signals{}, scores, 0.60, 0.15)
	if d.Kind != DecisionNone {
		t.Fatalf("score below threshold must yield none, got %s", d.Kind)
	}
}

func TestDecideMargin(t *testing.T) {
	scores := map[Intent]float64{IntentList: 0.70, IntentCount: 0.62}
	d := Decide(Signals{}, scores, 0.60, 0.15)
	if d.Kind != DecisionAmbiguous {
		t.Fatalf("near-tie must be ambiguous, got %s", d.Kind)
	}
	if len(d.Candidates) != 2 || d.Candidates[0] != string(IntentList) || d.Candidates[1] != string(IntentCount) {
		t.Fatalf("candidates wrong: %v", d.Candidates)
	}
}

func TestDecidePriorityTieBreak(t *testing.T) {
	scores := map[Intent]float64{IntentLookup: 0.8, IntentApproval: 0.8}
	d := Decide(Signals{}, scores, 0.60, 0.15)
	if d.Intent != IntentLookup {
		t.Fatalf("exact tie must break by priority, got %s", d.Intent)
	}
	if d.Kind != DecisionAmbiguous {
		t.Fatalf("zero margin is ambiguous, got %s", d.Kind)
	}
}

func TestScoreDeterministic(t *testing.T) {
	weights := config.DefaultWeights()
	s := Extract("Why did we split the monolith?", nil)
	first := Score(s, weights)
	for i := 0; i < 20; i++ {
		again := Score(s, weights)
		for intent, v := range first {
			if again[intent] != v {
				t.Fatalf("score for %s drifted: %v != %v", intent, again[intent], v)
			}
		}
	}
}
