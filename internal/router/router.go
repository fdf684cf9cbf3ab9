package router

import (
	"time"

	"archie/internal/config"
	"archie/internal/index"
	"archie/internal/logging"
	"archie/internal/trace"
)

// Router is the scoring gate: it turns a raw query plus recent context into a
// RouteDecision and records a trace entry before returning.
type Router struct {
	cfg     config.RouterConfig
	catalog *index.Catalog
	traces  *trace.Store
	logger  logging.Logger
}

// New creates a Router over the catalog. traces may be nil in tests.
func New(cfg config.RouterConfig, catalog *index.Catalog, traces *trace.Store) *Router {
	return &Router{
		cfg:     cfg,
		catalog: catalog,
		traces:  traces,
		logger:  logging.NewComponentLogger("router"),
	}
}

// Route classifies the query. recentRefs is the conversation's resolved
// references, most recent first.
func (r *Router) Route(requestID, conversationID, query string, recentRefs []index.DocumentIdentity) RouteDecision {
	start := time.Now()

	signals := Extract(query, recentRefs)
	scores := Score(signals, r.cfg.Weights)
	decision := Decide(signals, scores, r.cfg.ScoreThreshold, r.cfg.MinMargin)
	decision = r.resolveBareNumber(decision)

	r.logger.Debug("route %q -> %s (%s, score=%.2f margin=%.2f)",
		query, decision.Intent, decision.Kind, decision.Score, decision.Margin)

	if r.traces != nil {
		r.traces.Put(trace.QueryTrace{
			RequestID:      requestID,
			ConversationID: conversationID,
			Query:          query,
			Route:          string(decision.Intent),
			DecisionKind:   string(decision.Kind),
			Scores:         scoreMap(decision.Scores),
			Signals:        signals.Map(),
			ThresholdMet:   decision.Kind == DecisionConfident,
			ElapsedMS:      time.Since(start).Milliseconds(),
			CreatedAt:      time.Now(),
		})
	}
	return decision
}

// resolveBareNumber applies the bare-number disambiguation rule: a number
// matching exactly one document across all types upgrades to a confident
// lookup; matching several types without a qualifier forces ambiguous.
func (r *Router) resolveBareNumber(decision RouteDecision) RouteDecision {
	s := decision.Signals
	if !s.HasBareNumber || r.catalog == nil {
		return decision
	}
	// An explicit type keyword next to the number qualifies it.
	if len(s.TypeyWords) == 1 {
		id := index.DocumentIdentity{Type: s.TypeyWords[0], Number: s.RefNumber}
		if _, ok := r.catalog.Get(id); ok && decision.Kind != DecisionConfident {
			decision.Intent = IntentLookup
			decision.Kind = DecisionConfident
			decision.Signals.RefType = id.Type
			decision.Candidates = nil
		}
		return decision
	}

	matches := r.catalog.MatchNumber(s.RefNumber)
	switch len(matches) {
	case 0:
		return decision
	case 1:
		if decision.Kind != DecisionConfident || decision.Intent == IntentLookup {
			decision.Intent = IntentLookup
			decision.Kind = DecisionConfident
			decision.Signals.RefType = matches[0].Type
			decision.Candidates = nil
		}
	default:
		// A colliding bare number always needs clarification, even when the
		// gate scored another intent confidently.
		decision.Intent = IntentLookup
		decision.Kind = DecisionAmbiguous
		decision.Candidates = decision.Candidates[:0]
		for _, m := range matches {
			decision.Candidates = append(decision.Candidates, m.Canonical())
		}
	}
	return decision
}

func scoreMap(scores map[Intent]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for intent, score := range scores {
		out[string(intent)] = score
	}
	return out
}
