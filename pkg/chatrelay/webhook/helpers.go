// Package webhook parses the three inbound transport payloads (Signal,
// WhatsApp, Telegram) into the canonical model.IncomingMessage, tolerating
// each transport's several historical field-naming variants (spec.md §6).
package webhook

// asMap is a defensive type assertion used throughout the parsers, which
// walk an arbitrary decoded-JSON tree of map[string]any/[]any/scalars.
func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// getString returns the first present, non-empty string value found at any
// of keys in m.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// getBool returns the first present boolean at any of keys, defaulting to
// false.
func getBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}

// getInt64 returns the first present numeric value at any of keys,
// tolerating JSON numbers decoded as float64 or strings.
func getInt64(m map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n), true
		case int64:
			return n, true
		case int:
			return int64(n), true
		case string:
			if n == "" {
				continue
			}
			var out int64
			var sign int64 = 1
			i := 0
			if n[0] == '-' {
				sign = -1
				i = 1
			}
			if i == len(n) {
				continue
			}
			valid := true
			for ; i < len(n); i++ {
				if n[i] < '0' || n[i] > '9' {
					valid = false
					break
				}
				out = out*10 + int64(n[i]-'0')
			}
			if valid {
				return sign * out, true
			}
		}
	}
	return 0, false
}

func getMap(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if mm, ok := asMap(v); ok {
				return mm, true
			}
		}
	}
	return nil, false
}

func getSlice(m map[string]any, keys ...string) ([]any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := asSlice(v); ok {
				return s, true
			}
		}
	}
	return nil, false
}
