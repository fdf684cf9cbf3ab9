package router

import (
	"regexp"
	"strings"

	"archie/internal/index"
)

// Signals is the feature vector derived once per query. Extraction is
// deterministic: the same query and context always produce the same signals.
type Signals struct {
	HasCanonicalRef   bool // explicit typed document identifier present
	HasBareNumber     bool // numeric reference without a type qualifier
	HasListIntent     bool
	HasCountIntent    bool
	HasCompareIntent  bool
	HasDefinitional   bool
	HasApprovalIntent bool
	HasTopicQualifier bool // scoping phrase such as "about X"
	HasGenericMarker  bool // generic semantic marker (why/how/explain)
	HasFollowupRef    bool // query leans on previously-resolved references
	HasRetrievalVerb  bool // any retrieval cue at all

	RefType    index.DocType // set when HasCanonicalRef
	RefNumber  int           // set when HasCanonicalRef or HasBareNumber
	Term       string        // candidate term for definitional queries
	TypeyWords []index.DocType
}

// Signal names used as keys in the weight tables.
const (
	SignalCanonicalRef    = "canonical_ref"
	SignalBareNumber      = "bare_number"
	SignalListIntent      = "list_intent"
	SignalCountIntent     = "count_intent"
	SignalCompareIntent   = "compare_intent"
	SignalDefinitional    = "definitional_intent"
	SignalApprovalIntent  = "approval_intent"
	SignalTopicQualifier  = "topic_qualifier"
	SignalGenericSemantic = "generic_semantic"
	SignalFollowupRef     = "followup_ref"
	SignalNoRetrievalVerb = "no_retrieval_verb"
	SignalBase            = "base"
)

// Fixed cue tables. These are rule tables, not inference: every phrase here is
// pinned by the golden query set.
var (
	listCues = []string{
		"list", "show all", "show me all", "enumerate", "what are all",
		"give me all", "all of the",
	}
	countCues = []string{
		"how many", "count of", "count the", "number of", "total number",
	}
	compareCues = []string{
		"difference between", "compare", " versus ", " vs ", " vs.",
		"distinguish", "differ from", "compared to",
	}
	definitionalCues = []string{
		"what is a", "what is an", "what's a", "what's an", "define ",
		"definition of", "meaning of", "what does", "mean?",
	}
	approvalCues = []string{
		"who approved", "who signed", "approved by", "signed off",
		"sign-off", "approval record", "approver",
	}
	genericMarkers = []string{
		"why", "how ", "explain", "tell me about", "recommend", "should we",
		"what happened", "describe",
	}
	conversationalCues = []string{
		"hello", "hi ", "hey", "thanks", "thank you", "who are you",
		"good morning", "good evening", "help",
	}
	// Decision-rationale phrasing is semantic, never terminology lookup.
	rationaleCues = []string{
		"why was", "why did", "rationale", "reasoning behind",
	}

	topicQualifierPattern = regexp.MustCompile(`(?i)\b(about|regarding|concerning|related to|involving|touching on)\s+\S+`)
	followupPattern       = regexp.MustCompile(`(?i)\b(that|it|this one|the previous|the last one|its)\b`)
	definitionalTerm      = regexp.MustCompile(`(?i)(?:what\s+is\s+(?:a|an|the)?|what's\s+(?:a|an)?|what\s+does|define|definition\s+of|meaning\s+of)\s+"?([a-z][a-z0-9\- ]{1,60}?)"?\s*(?:\?|$|\s+mean)`)
)

// Extract derives Signals from the raw query and the most-recent-first list
// of previously-resolved references.
func Extract(query string, recentRefs []index.DocumentIdentity) Signals {
	lower := " " + strings.ToLower(strings.TrimSpace(query)) + " "

	var s Signals

	if t, n, ok := index.ParseRef(query); ok {
		s.HasCanonicalRef = true
		s.RefType = t
		s.RefNumber = n
	} else if n, ok := index.ParseBareNumber(query); ok {
		s.HasBareNumber = true
		s.RefNumber = n
	}

	s.HasListIntent = containsAny(lower, listCues)
	s.HasCountIntent = containsAny(lower, countCues)
	s.HasCompareIntent = containsAny(lower, compareCues)
	s.HasApprovalIntent = containsAny(lower, approvalCues)
	s.HasTopicQualifier = topicQualifierPattern.MatchString(query)
	s.HasGenericMarker = containsAny(lower, genericMarkers)
	s.TypeyWords = index.ParseTypeKeywords(query)

	// Definitional detection is exclusion-guarded: identifier queries, list
	// commands and decision-rationale queries never read as terminology.
	if containsAny(lower, definitionalCues) &&
		!s.HasCanonicalRef && !s.HasBareNumber &&
		!s.HasListIntent && !containsAny(lower, rationaleCues) {
		s.HasDefinitional = true
		if m := definitionalTerm.FindStringSubmatch(query); m != nil {
			s.Term = strings.TrimSpace(m[1])
		}
	}

	if len(recentRefs) > 0 && !s.HasCanonicalRef && !s.HasBareNumber &&
		followupPattern.MatchString(query) {
		s.HasFollowupRef = true
		s.RefType = recentRefs[0].Type
		s.RefNumber = recentRefs[0].Number
	}

	s.HasRetrievalVerb = s.HasCanonicalRef || s.HasBareNumber || s.HasListIntent ||
		s.HasCountIntent || s.HasCompareIntent || s.HasDefinitional ||
		s.HasApprovalIntent || s.HasTopicQualifier || s.HasGenericMarker ||
		s.HasFollowupRef || len(s.TypeyWords) > 0 ||
		(strings.Contains(lower, "?") && !containsAny(lower, conversationalCues))

	return s
}

// Map projects the signals onto the weight-table key space. Boolean signals
// become 1.0 when set; SignalBase is always 1 so an intent can carry a floor.
func (s Signals) Map() map[string]float64 {
	m := map[string]float64{SignalBase: 1}
	set := func(key string, on bool) {
		if on {
			m[key] = 1
		}
	}
	set(SignalCanonicalRef, s.HasCanonicalRef)
	set(SignalBareNumber, s.HasBareNumber)
	set(SignalListIntent, s.HasListIntent)
	set(SignalCountIntent, s.HasCountIntent)
	set(SignalCompareIntent, s.HasCompareIntent)
	set(SignalDefinitional, s.HasDefinitional)
	set(SignalApprovalIntent, s.HasApprovalIntent)
	set(SignalTopicQualifier, s.HasTopicQualifier)
	set(SignalGenericSemantic, s.HasGenericMarker)
	set(SignalFollowupRef, s.HasFollowupRef)
	set(SignalNoRetrievalVerb, !s.HasRetrievalVerb)
	return m
}

func containsAny(haystack string, cues []string) bool {
	for _, cue := range cues {
		if containsPhrase(haystack, cue) {
			return true
		}
	}
	return false
}

// containsPhrase matches cue against haystack on word boundaries, so "how"
// never fires inside "show". A cue edge that is punctuation ("vs.", "mean?")
// only anchors on its word side.
func containsPhrase(haystack, cue string) bool {
	cue = strings.TrimSpace(cue)
	if cue == "" {
		return false
	}
	for from := 0; from+len(cue) <= len(haystack); {
		i := strings.Index(haystack[from:], cue)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(cue)
		startOK := !isWordChar(cue[0]) || start == 0 || !isWordChar(haystack[start-1])
		endOK := !isWordChar(cue[len(cue)-1]) || end == len(haystack) || !isWordChar(haystack[end])
		if startOK && endOK {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
