package router

// Intent is a routable query intent.
type Intent string

const (
	IntentLookup         Intent = "lookup"
	IntentApproval       Intent = "approval"
	IntentList           Intent = "list"
	IntentCount          Intent = "count"
	IntentCompare        Intent = "compare"
	IntentDefinitional   Intent = "definitional"
	IntentSemantic       Intent = "semantic"
	IntentConversational Intent = "conversational"
)

// priority is the fixed tie-break order: when scores are exactly equal the
// more specific intent wins. Lower index is more specific.
var priority = []Intent{
	IntentLookup,
	IntentApproval,
	IntentList,
	IntentCount,
	IntentCompare,
	IntentDefinitional,
	IntentSemantic,
	IntentConversational,
}

// priorityRank maps intent -> tie-break rank.
var priorityRank = func() map[Intent]int {
	m := make(map[Intent]int, len(priority))
	for i, intent := range priority {
		m[intent] = i
	}
	return m
}()

// DecisionKind classifies the gate outcome.
type DecisionKind string

const (
	// DecisionConfident - winner cleared both threshold and margin.
	DecisionConfident DecisionKind = "confident"
	// DecisionAmbiguous - winner cleared the threshold but not the margin;
	// the caller should ask for clarification.
	DecisionAmbiguous DecisionKind = "ambiguous"
	// DecisionNone - no intent cleared the threshold; fall through to the
	// semantic route.
	DecisionNone DecisionKind = "none"
)

// RouteDecision is the scoring gate output.
type RouteDecision struct {
	Intent        Intent
	Score         float64
	RunnerUp      Intent
	RunnerUpScore float64
	Margin        float64
	Kind          DecisionKind
	// Candidates carries the near-tied intents when Kind is ambiguous, or the
	// conflicting document identities for an ambiguous bare number.
	Candidates []string
	Scores     map[Intent]float64
	Signals    Signals
}

// Score computes the weighted per-intent scores from signals. Pure and
// deterministic: same signals and weights always yield the same scores,
// clamped to [0,1].
func Score(signals Signals, weights map[string]map[string]float64) map[Intent]float64 {
	features := signals.Map()
	scores := make(map[Intent]float64, len(priority))
	for _, intent := range priority {
		table := weights[string(intent)]
		total := 0.0
		for signal, weight := range table {
			total += weight * features[signal]
		}
		if total < 0 {
			total = 0
		}
		if total > 1 {
			total = 1
		}
		scores[intent] = total
	}
	return scores
}

// Decide selects the winning intent from scores, applying the confidence
// threshold, the minimum margin and the fixed priority tie-break.
func Decide(signals Signals, scores map[Intent]float64, threshold, minMargin float64) RouteDecision {
	winner, runnerUp := topTwo(scores)

	decision := RouteDecision{
		Intent:        winner,
		Score:         scores[winner],
		RunnerUp:      runnerUp,
		RunnerUpScore: scores[runnerUp],
		Margin:        scores[winner] - scores[runnerUp],
		Scores:        scores,
		Signals:       signals,
	}

	switch {
	case decision.Score < threshold:
		decision.Kind = DecisionNone
	case decision.Margin < minMargin:
		decision.Kind = DecisionAmbiguous
		decision.Candidates = nearTied(scores, decision.Score, minMargin)
	default:
		decision.Kind = DecisionConfident
	}
	return decision
}

// topTwo returns the best and second-best intents, resolving exact ties by
// priority rank.
func topTwo(scores map[Intent]float64) (Intent, Intent) {
	better := func(a, b Intent) bool {
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		return priorityRank[a] < priorityRank[b]
	}

	winner := priority[0]
	for _, intent := range priority[1:] {
		if better(intent, winner) {
			winner = intent
		}
	}

	var runnerUp Intent
	first := true
	for _, intent := range priority {
		if intent == winner {
			continue
		}
		if first || better(intent, runnerUp) {
			runnerUp = intent
			first = false
		}
	}
	return winner, runnerUp
}

// nearTied lists every intent within margin of the top score, in priority
// order, for the clarification response.
func nearTied(scores map[Intent]float64, top, margin float64) []string {
	var out []string
	for _, intent := range priority {
		if top-scores[intent] < margin {
			out = append(out, string(intent))
		}
	}
	return out
}
