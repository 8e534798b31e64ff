package store

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

type conversationBucket struct {
	records         []model.SourceRecord
	pendingFollowup *model.PendingFollowupState
	pendingVideo    *model.PendingVideoSelectionState
	pendingJmail    *model.PendingJmailSelectionState
}

// SearchContextStore is the per-conversation bucket of remembered search
// results plus the three pending-state slots (spec.md §4.4).
type SearchContextStore struct {
	mu         sync.Mutex
	buckets    map[string]*conversationBucket
	maxRecords int
	ttl        time.Duration
	now        func() time.Time
}

// NewSearchContextStore builds a store bounding each conversation to
// maxRecords SourceRecord entries (default 40) with the given TTL.
func NewSearchContextStore(maxRecords int, ttl time.Duration) *SearchContextStore {
	if maxRecords <= 0 {
		maxRecords = 40
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return &SearchContextStore{
		buckets:    make(map[string]*conversationBucket),
		maxRecords: maxRecords,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (s *SearchContextStore) bucket(key string) *conversationBucket {
	b, ok := s.buckets[key]
	if !ok {
		b = &conversationBucket{}
		s.buckets[key] = b
	}
	return b
}

// RememberResults appends new SourceRecords derived from results, trimming
// the oldest entries past maxRecords.
func (s *SearchContextStore) RememberResults(key string, mode model.SearchMode, results []model.SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(key)
	now := s.now()
	for _, r := range results {
		b.records = append(b.records, model.SourceRecord{
			ClaimKey:  claimKey(r),
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   r.Snippet,
			Mode:      mode,
			CreatedAt: now,
		})
	}
	if over := len(b.records) - s.maxRecords; over > 0 {
		b.records = b.records[over:]
	}
}

func claimKey(r model.SearchResult) string {
	src := r.Snippet
	if src == "" {
		src = r.Title
	}
	if len(src) > 160 {
		return src[:160]
	}
	return src
}

func (s *SearchContextStore) purgeLocked(b *conversationBucket, now time.Time) {
	kept := b.records[:0]
	for _, r := range b.records {
		if now.Sub(r.CreatedAt) < s.ttl {
			kept = append(kept, r)
		}
	}
	b.records = kept
	if b.pendingFollowup != nil && now.Sub(b.pendingFollowup.CreatedAt) >= s.ttl {
		b.pendingFollowup = nil
	}
	if b.pendingVideo != nil && now.Sub(b.pendingVideo.CreatedAt) >= s.ttl {
		b.pendingVideo = nil
	}
	if b.pendingJmail != nil && now.Sub(b.pendingJmail.CreatedAt) >= s.ttl {
		b.pendingJmail = nil
	}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeClaim(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func wordOverlap(a, b string) int {
	bwords := map[string]bool{}
	for _, w := range strings.Fields(b) {
		bwords[w] = true
	}
	n := 0
	for _, w := range strings.Fields(a) {
		if bwords[w] {
			n++
		}
	}
	return n
}

// FindSources implements spec.md §4.4's find_sources: with an empty claim,
// newest-first URL-deduped up to limit; otherwise score each record and
// keep only positive-score ones, sorted (score desc, created_at desc),
// URL-deduped, capped to limit.
func (s *SearchContextStore) FindSources(key, claim string, limit int) []model.SourceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	now := s.now()
	s.purgeLocked(b, now)

	claim = strings.TrimSpace(claim)
	if claim == "" {
		return dedupeURLNewestFirst(b.records, limit)
	}

	normClaim := normalizeClaim(claim)
	type scored struct {
		rec   model.SourceRecord
		score int
	}
	var candidates []scored
	for _, r := range b.records {
		haystack := normalizeClaim(r.Title + " " + r.Snippet + " " + r.ClaimKey)
		score := 0
		if strings.Contains(haystack, normClaim) {
			score += 100
		}
		score += wordOverlap(normClaim, haystack)
		if score > 0 {
			candidates = append(candidates, scored{rec: r, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rec.CreatedAt.After(candidates[j].rec.CreatedAt)
	})
	recs := make([]model.SourceRecord, len(candidates))
	for i, c := range candidates {
		recs[i] = c.rec
	}
	return dedupeURL(recs, limit)
}

// RecentRecords returns the newest-first records up to limit, without
// URL-deduping.
func (s *SearchContextStore) RecentRecords(key string, limit int) []model.SourceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	now := s.now()
	s.purgeLocked(b, now)

	out := make([]model.SourceRecord, len(b.records))
	copy(out, b.records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func dedupeURLNewestFirst(records []model.SourceRecord, limit int) []model.SourceRecord {
	sorted := make([]model.SourceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	return dedupeURL(sorted, limit)
}

func dedupeURL(records []model.SourceRecord, limit int) []model.SourceRecord {
	seen := map[string]bool{}
	out := make([]model.SourceRecord, 0, len(records))
	for _, r := range records {
		u := strings.TrimSpace(r.URL)
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Purge sweeps every conversation bucket, dropping expired records and
// pending-state slots, and removing buckets left empty. Exposed for the
// optional periodic compaction scheduler (SPEC_FULL.md ambient stack); the
// store already purges lazily on every read/write.
func (s *SearchContextStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for key, b := range s.buckets {
		before := len(b.records)
		s.purgeLocked(b, now)
		n += before - len(b.records)
		if len(b.records) == 0 && b.pendingFollowup == nil && b.pendingVideo == nil && b.pendingJmail == nil {
			delete(s.buckets, key)
		}
	}
	return n
}

// --- Pending follow-up slot ---

func (s *SearchContextStore) SetPendingFollowup(key string, st model.PendingFollowupState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(key)
	st.CreatedAt = s.now()
	b.pendingFollowup = &st
}

func (s *SearchContextStore) GetPendingFollowup(key string) *model.PendingFollowupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	s.purgeLocked(b, s.now())
	if b.pendingFollowup == nil {
		return nil
	}
	cp := *b.pendingFollowup
	return &cp
}

func (s *SearchContextStore) ClearPendingFollowup(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		b.pendingFollowup = nil
	}
}

// BumpPendingAttempt increments and returns the new attempt count for the
// pending follow-up. Returns 0 if there is no pending state.
func (s *SearchContextStore) BumpPendingAttempt(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok || b.pendingFollowup == nil {
		return 0
	}
	b.pendingFollowup.Attempts++
	return b.pendingFollowup.Attempts
}

// --- Pending video/jmail selection slots ---

func (s *SearchContextStore) SetPendingVideo(key string, st model.PendingVideoSelectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(key)
	st.CreatedAt = s.now()
	b.pendingVideo = &st
	b.pendingJmail = nil
}

func (s *SearchContextStore) GetPendingVideo(key string) *model.PendingVideoSelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	s.purgeLocked(b, s.now())
	return b.pendingVideo
}

func (s *SearchContextStore) ClearPendingVideo(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		b.pendingVideo = nil
	}
}

func (s *SearchContextStore) SetPendingJmail(key string, st model.PendingJmailSelectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(key)
	st.CreatedAt = s.now()
	b.pendingJmail = &st
	b.pendingVideo = nil
}

func (s *SearchContextStore) GetPendingJmail(key string) *model.PendingJmailSelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	s.purgeLocked(b, s.now())
	return b.pendingJmail
}

func (s *SearchContextStore) ClearPendingJmail(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		b.pendingJmail = nil
	}
}

// ClearAllPending clears the follow-up, video, and jmail pending slots for
// key in one call — used when an explicit slash command is dispatched
// (spec.md §4.1 step 7).
func (s *SearchContextStore) ClearAllPending(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		b.pendingFollowup = nil
		b.pendingVideo = nil
		b.pendingJmail = nil
	}
}
