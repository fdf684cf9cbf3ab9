// Package service wires the scoring gate, route handlers, retrieval stage and
// response assurance into the per-request pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"archie/internal/agentic"
	"archie/internal/config"
	"archie/internal/conversation"
	"archie/internal/envelope"
	archerrors "archie/internal/errors"
	"archie/internal/index"
	"archie/internal/logging"
	"archie/internal/metrics"
	"archie/internal/retrieval"
	"archie/internal/router"
	"archie/internal/routes"
	"archie/internal/terminology"
	"archie/internal/trace"
)

// Request is one immutable incoming query.
type Request struct {
	RequestID      string
	ConversationID string
	Query          string
}

// Response is the pipeline output: the validated envelope and its trace.
type Response struct {
	Envelope envelope.Envelope
	Trace    trace.QueryTrace
}

// Pipeline executes queries end to end. All shared mutable state lives in the
// injected stores; the pipeline itself is stateless per request.
type Pipeline struct {
	cfg       config.Config
	router    *router.Router
	handlers  *routes.Handlers
	retriever *retrieval.Retriever
	terms     *terminology.Service
	refs      *conversation.RefStore
	traces    *trace.Store
	assurer   *envelope.Assurer
	delegator *agentic.Delegator
	metrics   *metrics.Metrics
	logger    logging.Logger
}

// Deps collects pipeline collaborators.
type Deps struct {
	Router    *router.Router
	Handlers  *routes.Handlers
	Retriever *retrieval.Retriever
	Terms     *terminology.Service
	Refs      *conversation.RefStore
	Traces    *trace.Store
	Delegator *agentic.Delegator
	Metrics   *metrics.Metrics
}

// NewPipeline creates the pipeline.
func NewPipeline(cfg config.Config, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		router:    deps.Router,
		handlers:  deps.Handlers,
		retriever: deps.Retriever,
		terms:     deps.Terms,
		refs:      deps.Refs,
		traces:    deps.Traces,
		assurer:   envelope.NewAssurer(),
		delegator: deps.Delegator,
		metrics:   deps.Metrics,
		logger:    logging.NewComponentLogger("pipeline"),
	}
}

// Handle executes one query. It never returns an error: every failure path
// terminates in a clarification, an abstention or a degraded envelope.
func (p *Pipeline) Handle(ctx context.Context, req Request) Response {
	start := time.Now()

	var recent []index.DocumentIdentity
	if p.refs != nil {
		recent = p.refs.Recent(req.ConversationID)
	}

	decision := p.router.Route(req.RequestID, req.ConversationID, req.Query, recent)

	t := trace.QueryTrace{
		RequestID:      req.RequestID,
		ConversationID: req.ConversationID,
		Query:          req.Query,
		Route:          string(decision.Intent),
		DecisionKind:   string(decision.Kind),
		Scores:         scoreMap(decision.Scores),
		Signals:        decision.Signals.Map(),
		ThresholdMet:   decision.Kind == router.DecisionConfident,
	}

	env := p.dispatch(ctx, req, decision, &t)

	// Fallback paths discount confidence multiplicatively; a degraded answer
	// must not look as certain as a clean one.
	if (env.Fallback || t.KeywordOnly) && env.Confidence > 0 {
		env.Confidence *= p.cfg.Retrieval.ConfidenceDiscount
		env.Fallback = true
	}
	env = p.assure(ctx, req, env, &t)

	// A generated answer that itself declares a refusal is an abstention, not
	// a claim to flag as hallucinated.
	if !env.Abstained && env.ItemsShown == 0 && envelope.IsAbstentionText(env.Answer) {
		env.Abstained = true
		env.AbstainReason = archerrors.ReasonNotFound
	}

	t.Abstained = env.Abstained
	t.AbstainReason = env.AbstainReason
	t.ElapsedMS = time.Since(start).Milliseconds()
	if p.traces != nil {
		p.traces.Finish(t)
	}
	p.metrics.ObserveQuery(string(decision.Intent), string(decision.Kind), time.Since(start))
	if env.Abstained {
		p.metrics.ObserveAbstention(env.AbstainReason)
	}
	if t.KeywordOnly {
		p.metrics.ObserveFallback()
	}

	return Response{Envelope: env, Trace: t}
}

func (p *Pipeline) dispatch(ctx context.Context, req Request, decision router.RouteDecision, t *trace.QueryTrace) envelope.Envelope {
	switch decision.Kind {
	case router.DecisionAmbiguous:
		return routes.Clarification(req.Query, decision.Candidates)
	case router.DecisionNone:
		return p.semantic(ctx, req, index.DocType(""), t)
	}

	var result routes.Result
	var err error
	switch decision.Intent {
	case router.IntentLookup:
		result, err = p.handlers.Lookup(decision.Signals, req.Query)
	case router.IntentApproval:
		result, err = p.handlers.Approval(decision.Signals, req.Query)
	case router.IntentList:
		result, err = p.handlers.List(decision.Signals)
	case router.IntentCount:
		result, err = p.handlers.Count(decision.Signals)
	case router.IntentCompare:
		result, err = p.handlers.Compare(decision.Signals, req.Query)
	case router.IntentDefinitional:
		return p.definitional(ctx, req, decision)
	case router.IntentConversational:
		result, err = p.handlers.Conversational()
	case router.IntentSemantic:
		var filter index.DocType
		if len(decision.Signals.TypeyWords) == 1 {
			filter = decision.Signals.TypeyWords[0]
		}
		return p.semantic(ctx, req, filter, t)
	default:
		err = fmt.Errorf("unhandled intent %s", decision.Intent)
	}

	if err != nil {
		return p.errorEnvelope(req.Query, err)
	}
	if p.refs != nil {
		p.refs.Record(req.ConversationID, result.Resolved)
	}
	return result.Envelope
}

// definitional resolves a terminology query, falling back to the type-level
// compare view when the term is itself a document-type keyword.
func (p *Pipeline) definitional(ctx context.Context, req Request, decision router.RouteDecision) envelope.Envelope {
	term := decision.Signals.Term
	if len(decision.Signals.TypeyWords) > 0 {
		result, err := p.handlers.Compare(decision.Signals, req.Query)
		if err == nil {
			return result.Envelope
		}
	}
	if term == "" || p.terms == nil {
		return p.errorEnvelope(req.Query, archerrors.NewNotFound(strings.TrimSpace(req.Query)))
	}

	def, err := p.terms.Define(ctx, term)
	if err != nil {
		return p.errorEnvelope(term, err)
	}
	env := envelope.Envelope{
		Answer:         fmt.Sprintf("%s: %s", def.Term, def.Text),
		ItemsShown:     1,
		ItemsTotal:     envelope.Total(1),
		CountQualifier: envelope.CountExact,
		Sources:        []string{def.Source},
		SchemaVersion:  envelope.SchemaVersion,
		Confidence:     1,
	}
	return env
}

// semantic runs confidence-gated retrieval, delegating to the agentic engine
// only when the gate produced no confident route and retrieval abstained.
func (p *Pipeline) semantic(ctx context.Context, req Request, filter index.DocType, t *trace.QueryTrace) envelope.Envelope {
	outcome, err := p.retriever.Search(ctx, req.Query, filter)
	t.KeywordOnly = outcome.KeywordFallback
	t.BreakerOpen = outcome.BreakerOpen
	if err != nil {
		return p.errorEnvelope(req.Query, err)
	}

	if outcome.Verdict.Abstain {
		if p.delegator.Available() {
			if reply, derr := p.delegator.Delegate(ctx, req.Query); derr == nil {
				t.AgenticUsed = true
				return envelope.Envelope{
					Answer:         envelope.Sanitize(reply.Text),
					ItemsShown:     0,
					CountQualifier: envelope.CountExact,
					SchemaVersion:  envelope.SchemaVersion,
					Confidence:     0.5,
					Fallback:       true,
				}
			}
		}
		return p.abstainEnvelope(req.Query, outcome.Verdict.Reason)
	}

	resp := outcome.Response
	var sb strings.Builder
	sources := make([]string, 0, len(resp.Hits))
	resolved := make([]index.DocumentIdentity, 0, len(resp.Hits))
	fmt.Fprintf(&sb, "Most relevant documents for %q:\n", req.Query)
	for _, hit := range resp.Hits {
		fmt.Fprintf(&sb, "- %s: %s\n", hit.Identity.Canonical(), hit.Excerpt)
		sources = append(sources, hit.Identity.Canonical())
		resolved = append(resolved, hit.Identity)
	}
	if p.refs != nil {
		p.refs.Record(req.ConversationID, resolved)
	}

	total := resp.TotalMatching
	return envelope.Envelope{
		Answer:         strings.TrimRight(sb.String(), "\n"),
		ItemsShown:     len(resp.Hits),
		ItemsTotal:     envelope.Total(total),
		CountQualifier: envelope.CountExact,
		Sources:        sources,
		SchemaVersion:  envelope.SchemaVersion,
		Confidence:     resp.Hits[0].Score,
		Fallback:       outcome.KeywordFallback,
	}
}

// errorEnvelope maps the error taxonomy onto caller-safe envelopes. Nothing
// here may crash the request or leak internal failure wording.
func (p *Pipeline) errorEnvelope(subject string, err error) envelope.Envelope {
	var ambiguous *archerrors.AmbiguousIntentError
	switch {
	case errors.As(err, &ambiguous):
		return routes.Clarification(subject, ambiguous.Candidates)
	case archerrors.IsNotFound(err):
		return p.abstainEnvelope(subject, archerrors.AbstentionReason(err))
	case archerrors.IsBackendTimeout(err):
		p.logger.Warn("backend timeout for %q: %v", subject, err)
		return p.abstainEnvelope(subject, archerrors.ReasonTimeout)
	default:
		p.logger.Error("query %q failed: %v", subject, err)
		return p.abstainEnvelope(subject, archerrors.ReasonError)
	}
}

// abstainEnvelope is the structured "not found" response: an explicit refusal
// rather than a fabricated answer.
func (p *Pipeline) abstainEnvelope(subject, reason string) envelope.Envelope {
	if reason == "" {
		reason = archerrors.ReasonNotFound
	}
	var answer string
	switch reason {
	case archerrors.ReasonTimeout:
		answer = fmt.Sprintf("The lookup for %q could not be completed in time. Please try again.", subject)
	case archerrors.ReasonError:
		answer = fmt.Sprintf("The lookup for %q could not be completed. Please try again.", subject)
	default:
		answer = fmt.Sprintf("%q was not found in the indexed documents.", subject)
	}
	return envelope.Envelope{
		Answer:         answer,
		ItemsShown:     0,
		ItemsTotal:     envelope.Total(0),
		CountQualifier: envelope.CountExact,
		SchemaVersion:  envelope.SchemaVersion,
		Abstained:      true,
		AbstainReason:  reason,
	}
}

// assure runs the final envelope through validation, repairing in place when
// a handler produced something inconsistent. When the agentic engine is
// configured it doubles as the regenerator for the amended retry; the
// deterministic handlers have no generator to re-ask.
func (p *Pipeline) assure(ctx context.Context, req Request, env envelope.Envelope, t *trace.QueryTrace) envelope.Envelope {
	if err := env.Validate(); err == nil {
		return env
	}
	raw, merr := env.Marshal()
	if merr != nil {
		raw = []byte(env.Answer)
	}
	var regenerate envelope.Regenerator
	if p.delegator.Available() {
		regenerate = func(ctx context.Context, amendment string) (string, error) {
			reply, err := p.delegator.Delegate(ctx, amendment+"\n\nQuestion: "+req.Query)
			if err != nil {
				return "", err
			}
			return reply.Text, nil
		}
	}
	result := p.assurer.Assure(ctx, string(raw), regenerate)
	t.Repaired = result.Repaired
	t.Retried = result.Retried
	t.Degraded = result.Degraded
	switch {
	case result.Degraded:
		p.metrics.ObserveRepair("degraded")
	case result.Retried:
		p.metrics.ObserveRepair("retried")
	case result.Repaired:
		p.metrics.ObserveRepair("repaired")
	}
	return result.Envelope
}

func scoreMap(scores map[router.Intent]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for intent, score := range scores {
		out[string(intent)] = score
	}
	return out
}
