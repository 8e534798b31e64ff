// Package groupresolve resolves a Signal group id into the set of
// recipient-id candidates the bridge's send endpoint will accept, grounded
// on original_source's signal_bot_orx/group_resolver.py. Signal group ids
// come back from the bridge and from inbound envelopes in several
// incompatible encodings (group.<base64>, bare base64, raw internal id,
// url-safe vs standard alphabet, padded vs unpadded), so resolution tries a
// TTL-cached alias lookup built from the bridge's own group listing before
// falling back to syntactic variant expansion.
package groupresolve

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Resolved is the outcome of resolving a group id: the ordered, deduplicated
// recipient candidates to try, and whether the alias cache was freshly
// refreshed from the bridge in the course of resolving it.
type Resolved struct {
	Recipients     []string
	CacheRefreshed bool
}

// Resolver maps group ids to bridge recipient candidates.
type Resolver struct {
	baseURL      string
	senderNumber string
	http         *http.Client
	refreshTTL   time.Duration

	mu               sync.Mutex
	aliasToCanonical map[string]string
	lastRefresh      time.Time
	hasRefreshed     bool
}

// NewResolver builds a Resolver against a Signal bridge at baseURL, using
// senderNumber to scope the bridge's per-account groups listing endpoint.
func NewResolver(baseURL, senderNumber string, httpClient *http.Client, refreshTTL time.Duration) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if refreshTTL <= 0 {
		refreshTTL = 5 * time.Minute
	}
	return &Resolver{
		baseURL:          strings.TrimRight(baseURL, "/"),
		senderNumber:     senderNumber,
		http:             httpClient,
		refreshTTL:       refreshTTL,
		aliasToCanonical: make(map[string]string),
	}
}

// Resolve returns the recipient candidates for groupID, refreshing the
// alias cache from the bridge if the existing cache misses and the TTL has
// elapsed.
func (r *Resolver) Resolve(ctx context.Context, groupID string) Resolved {
	if canonical, ok := r.lookup(groupID); ok {
		return Resolved{
			Recipients:     mergeCandidates(canonical, compatGroupRecipients(groupID)),
			CacheRefreshed: false,
		}
	}

	refreshed := r.refreshAliasCache(ctx)
	if refreshed {
		if canonical, ok := r.lookup(groupID); ok {
			return Resolved{
				Recipients:     mergeCandidates(canonical, compatGroupRecipients(groupID)),
				CacheRefreshed: true,
			}
		}
	}

	return Resolved{
		Recipients:     compatGroupRecipients(groupID),
		CacheRefreshed: refreshed,
	}
}

func (r *Resolver) lookup(groupID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alias := range aliasVariants(groupID) {
		if canonical, ok := r.aliasToCanonical[alias]; ok && canonical != "" {
			return canonical, true
		}
	}
	return "", false
}

// refreshAliasCache fetches the bridge's group listing and rebuilds the
// alias table, but only once per refreshTTL window: cache misses between
// refreshes do not force a network call, trading a bounded alias-visibility
// delay for fewer bridge requests.
func (r *Resolver) refreshAliasCache(ctx context.Context) bool {
	r.mu.Lock()
	fresh := r.hasRefreshed && time.Since(r.lastRefresh) < r.refreshTTL
	r.mu.Unlock()
	if fresh {
		return false
	}

	groups, ok := r.fetchGroups(ctx)
	if ok {
		updated := make(map[string]string)
		for _, group := range groups {
			canonical := canonicalRecipientFromGroup(group)
			if canonical == "" {
				continue
			}
			for _, alias := range groupAliases(group) {
				updated[alias] = canonical
			}
		}
		if len(updated) > 0 {
			r.mu.Lock()
			r.aliasToCanonical = updated
			r.mu.Unlock()
		}
	}

	r.mu.Lock()
	r.lastRefresh = time.Now()
	r.hasRefreshed = true
	r.mu.Unlock()
	return ok
}

func (r *Resolver) fetchGroups(ctx context.Context) ([]map[string]any, bool) {
	urls := []string{
		fmt.Sprintf("%s/v1/groups/%s", r.baseURL, url.PathEscape(r.senderNumber)),
		fmt.Sprintf("%s/v1/groups", r.baseURL),
	}

	for _, u := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			continue
		}
		resp, err := r.http.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			continue
		}
		var payload any
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			continue
		}
		return extractGroupRecords(payload), true
	}
	return nil, false
}

func extractGroupRecords(payload any) []map[string]any {
	switch v := payload.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		for _, key := range []string{"groups", "data", "results"} {
			if list, ok := v[key].([]any); ok {
				out := make([]map[string]any, 0, len(list))
				for _, item := range list {
					if m, ok := item.(map[string]any); ok {
						out = append(out, m)
					}
				}
				return out
			}
		}
		for _, key := range []string{"id", "groupId", "groupIdHex", "internal_id", "internalId"} {
			if s, ok := v[key].(string); ok && s != "" {
				return []map[string]any{v}
			}
		}
		return nil
	default:
		return nil
	}
}

func firstNonEmptyStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func canonicalRecipientFromGroup(group map[string]any) string {
	if explicit := firstNonEmptyStr(group, "id", "groupId", "groupIdHex"); explicit != "" {
		normalized := strings.TrimSpace(explicit)
		if strings.HasPrefix(normalized, "group.") {
			return normalized
		}
		return groupIDFromInternal(normalized)
	}
	if internal := firstNonEmptyStr(group, "internal_id", "internalId"); internal != "" {
		return groupIDFromInternal(internal)
	}
	return ""
}

func groupAliases(group map[string]any) []string {
	seen := make(map[string]bool)
	var out []string
	for _, key := range []string{"id", "groupId", "groupIdHex", "internal_id", "internalId"} {
		s, ok := group[key].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		for _, v := range aliasVariants(s) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// aliasVariants expands value into every lookup-tolerant alias form worth
// indexing: the value itself, its group.-prefixed/stripped counterpart, its
// base64-decoded internal id (or encoded form), and url-safe/padding
// variants of each. These are cache keys only, never canonical send ids.
func aliasVariants(value string) []string {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return nil
	}

	variants := map[string]bool{normalized: true}

	if strings.HasPrefix(normalized, "group.") {
		suffix := strings.TrimPrefix(normalized, "group.")
		variants[suffix] = true
		if decoded := decodeGroupSuffix(suffix); decoded != "" {
			variants[decoded] = true
			variants["group."+decoded] = true
		}
	} else {
		variants["group."+normalized] = true
		encoded := encodeInternalID(normalized)
		variants[encoded] = true
		variants["group."+encoded] = true
	}

	tolerant := make(map[string]bool)
	for candidate := range variants {
		for _, form := range lookupTolerantForms(candidate) {
			tolerant[form] = true
		}
	}

	out := make([]string, 0, len(tolerant))
	for v := range tolerant {
		out = append(out, v)
	}
	return out
}

// compatGroupRecipients returns the ordered, deduplicated candidate ids to
// try sending to directly, without consulting the alias cache: used both as
// the final fallback and merged after a cache-resolved canonical id.
func compatGroupRecipients(groupID string) []string {
	normalized := strings.TrimSpace(groupID)
	if normalized == "" {
		return nil
	}

	var deduped []string
	add := func(candidate string) {
		if candidate == "" {
			return
		}
		for _, existing := range deduped {
			if existing == candidate {
				return
			}
		}
		deduped = append(deduped, candidate)
	}

	if strings.HasPrefix(normalized, "group.") {
		suffix := strings.TrimPrefix(normalized, "group.")
		decoded := decodeGroupSuffix(suffix)
		add(normalized)
		add(suffix)
		if decoded != "" {
			add("group." + decoded)
		}
		add(decoded)
		return deduped
	}

	add(groupIDFromInternal(normalized))
	add("group." + normalized)
	add(normalized)
	add(legacyGroupIDFromInternal(normalized))
	return deduped
}

func groupIDFromInternal(internalID string) string {
	normalized := strings.TrimSpace(internalID)
	if strings.HasPrefix(normalized, "group.") {
		return normalized
	}
	return "group." + encodeInternalID(normalized)
}

func legacyGroupIDFromInternal(internalID string) string {
	normalized := strings.TrimSpace(internalID)
	if normalized == "" {
		return ""
	}
	suffix := strings.NewReplacer("+", "-", "/", "_").Replace(normalized)
	suffix = strings.TrimRight(suffix, "=")
	return "group." + suffix
}

func encodeInternalID(internalID string) string {
	return base64.StdEncoding.EncodeToString([]byte(internalID))
}

// decodeGroupSuffix decodes a group.-suffix (standard or url-safe alphabet,
// padded or not) back to its internal id text, returning "" if it is not
// valid base64-encoded UTF-8.
func decodeGroupSuffix(suffix string) string {
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimSpace(suffix))
	if normalized == "" {
		return ""
	}
	if pad := len(normalized) % 4; pad != 0 {
		normalized += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(string(decoded))
	return text
}

// lookupTolerantForms expands one candidate into its url-safe/standard and
// padded/unpadded spellings, with and without the group. prefix.
func lookupTolerantForms(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	prefixed := strings.HasPrefix(value, "group.")
	core := value
	if prefixed {
		core = strings.TrimPrefix(value, "group.")
	}

	urlsafe := strings.NewReplacer("+", "-", "/", "_").Replace(core)
	unpaddedCore := strings.TrimRight(core, "=")
	unpaddedURLSafe := strings.TrimRight(urlsafe, "=")

	forms := map[string]bool{
		core:            true,
		urlsafe:         true,
		unpaddedCore:    true,
		unpaddedURLSafe: true,
	}

	out := make(map[string]bool)
	for form := range forms {
		if form == "" {
			continue
		}
		out[form] = true
		out["group."+form] = true
	}

	result := make([]string, 0, len(out))
	for v := range out {
		result = append(result, v)
	}
	return result
}

func mergeCandidates(primary string, fallbacks []string) []string {
	var deduped []string
	add := func(candidate string) {
		if candidate == "" {
			return
		}
		for _, existing := range deduped {
			if existing == candidate {
				return
			}
		}
		deduped = append(deduped, candidate)
	}
	add(primary)
	for _, f := range fallbacks {
		add(f)
	}
	return deduped
}
