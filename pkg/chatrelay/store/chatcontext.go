// Package store implements the process-global, concurrency-safe state
// stores the router and search service share: chat history, dedupe, and
// search context. Each store is a plain guarded map — no background
// sweeper; expired entries are purged lazily on the next read or write that
// observes them (spec.md §4.2-§4.4).
package store

import (
	"sync"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// ChatContextStore is a mapping from conversation key to Conversation, with
// a sliding per-conversation expiry.
type ChatContextStore struct {
	mu       sync.Mutex
	convos   map[string]*model.Conversation
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// NewChatContextStore builds a store bounding history to maxTurns user/
// assistant pairs (2*maxTurns entries) with the given TTL.
func NewChatContextStore(maxTurns int, ttl time.Duration) *ChatContextStore {
	if maxTurns < 1 {
		maxTurns = 1
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return &ChatContextStore{
		convos:   make(map[string]*model.Conversation),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetHistory refreshes the conversation's expiry and returns a defensive
// copy of its turns. A missing or expired conversation returns nil.
func (s *ChatContextStore) GetHistory(key string) []model.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convos[key]
	if !ok || s.now().After(c.Expiry) || s.now().Equal(c.Expiry) {
		if ok {
			delete(s.convos, key)
		}
		return nil
	}
	c.Expiry = s.now().Add(s.ttl)
	out := make([]model.ChatTurn, len(c.Turns))
	copy(out, c.Turns)
	return out
}

// AppendTurn appends a (user, userText) then (assistant, assistantText)
// pair, truncating the oldest entries beyond 2*maxTurns, and refreshes the
// expiry.
func (s *ChatContextStore) AppendTurn(key, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convos[key]
	if !ok || s.now().After(c.Expiry) {
		c = &model.Conversation{}
	}
	c.Turns = append(c.Turns, model.ChatTurn{Role: model.RoleUser, Content: userText})
	c.Turns = append(c.Turns, model.ChatTurn{Role: model.RoleAssistant, Content: assistantText})

	limit := 2 * s.maxTurns
	if len(c.Turns) > limit {
		c.Turns = append([]model.ChatTurn(nil), c.Turns[len(c.Turns)-limit:]...)
	}
	c.Expiry = s.now().Add(s.ttl)
	s.convos[key] = c
}

// Purge removes every conversation whose expiry has passed. It is not
// required for correctness (reads/writes purge lazily) but is exposed for
// the optional periodic compaction scheduler (SPEC_FULL.md ambient stack).
func (s *ChatContextStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for k, c := range s.convos {
		if now.After(c.Expiry) {
			delete(s.convos, k)
			n++
		}
	}
	return n
}
