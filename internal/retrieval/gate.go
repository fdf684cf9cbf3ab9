package retrieval

import (
	"archie/internal/config"
	"archie/internal/index"
)

// Verdict is the abstention gate's decision about a retrieval result.
type Verdict struct {
	Abstain bool
	Reason  string
}

// Abstention reasons.
const (
	ReasonEmpty       = "empty_result"
	ReasonTooDistant  = "distance_above_threshold"
	ReasonLowCoverage = "term_coverage_below_minimum"
)

// Evaluate applies the abstention rules to a retrieval response: abstain when
// the result set is empty, when the top result is too far away, or when too
// few query terms appear in the top result's text. Lowering MaxDistance can
// only increase abstentions; raising it can only decrease them.
func Evaluate(query string, resp index.SearchResponse, cfg config.RetrievalConfig) Verdict {
	if len(resp.Hits) == 0 {
		return Verdict{Abstain: true, Reason: ReasonEmpty}
	}

	top := resp.Hits[0]
	if distance := 1 - top.Score; distance > cfg.MaxDistance {
		return Verdict{Abstain: true, Reason: ReasonTooDistant}
	}

	if index.TermCoverage(query, top.Excerpt) < cfg.MinTermCoverage {
		return Verdict{Abstain: true, Reason: ReasonLowCoverage}
	}

	return Verdict{}
}
