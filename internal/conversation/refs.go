// Package conversation tracks the last resolved document references per
// conversation, for follow-up binding ("what about its consequences?").
package conversation

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"archie/internal/index"
)

// RefStore is a size-bounded, conversation-keyed store of resolved document
// references, most recent first. It is passed by reference into each request
// rather than living as a process-wide singleton.
type RefStore struct {
	mu      sync.Mutex
	convos  *lru.Cache[string, []index.DocumentIdentity]
	maxRefs int
}

// NewRefStore bounds both the number of tracked conversations and the number
// of references kept per conversation.
func NewRefStore(maxConversations, maxRefs int) (*RefStore, error) {
	if maxConversations <= 0 {
		maxConversations = 512
	}
	if maxRefs <= 0 {
		maxRefs = 8
	}
	convos, err := lru.New[string, []index.DocumentIdentity](maxConversations)
	if err != nil {
		return nil, err
	}
	return &RefStore{convos: convos, maxRefs: maxRefs}, nil
}

// Recent returns the conversation's resolved references, most recent first.
// The returned slice is a copy.
func (s *RefStore) Recent(conversationID string) []index.DocumentIdentity {
	if conversationID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	refs, ok := s.convos.Get(conversationID)
	if !ok {
		return nil
	}
	out := make([]index.DocumentIdentity, len(refs))
	copy(out, refs)
	return out
}

// Record prepends newly resolved references, dropping duplicates and trimming
// to the per-conversation bound.
func (s *RefStore) Record(conversationID string, resolved []index.DocumentIdentity) {
	if conversationID == "" || len(resolved) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, _ := s.convos.Get(conversationID)

	merged := make([]index.DocumentIdentity, 0, len(resolved)+len(existing))
	seen := make(map[string]bool)
	for _, id := range resolved {
		if !seen[id.Key()] {
			seen[id.Key()] = true
			merged = append(merged, id)
		}
	}
	for _, id := range existing {
		if !seen[id.Key()] {
			seen[id.Key()] = true
			merged = append(merged, id)
		}
	}
	if len(merged) > s.maxRefs {
		merged = merged[:s.maxRefs]
	}
	s.convos.Add(conversationID, merged)
}
