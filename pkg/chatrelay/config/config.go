// Package config builds the immutable Settings record every chatrelay
// component reads from, following the same env-first / .env-fallback
// precedence the teacher's copilot config loader uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SearchContextMode toggles the auto-search router (§4.7).
type SearchContextMode string

const (
	SearchContextNone SearchContextMode = "no_context"
	SearchContextFull SearchContextMode = "context"
)

// MergeStrategy is the search client's provider fan-out merge policy.
type MergeStrategy string

const (
	MergeFirstNonEmpty MergeStrategy = "first_non_empty"
	MergeAggregate     MergeStrategy = "aggregate"
)

// SafeSearch is the provider-level content filter level.
type SafeSearch string

const (
	SafeSearchOn       SafeSearch = "on"
	SafeSearchModerate SafeSearch = "moderate"
	SafeSearchOff      SafeSearch = "off"
)

// GroupReplyMode controls whether group messages are answered in-group or
// always redirected to a DM with the sender.
type GroupReplyMode string

const (
	GroupReplyGroup      GroupReplyMode = "group"
	GroupReplyDMFallback GroupReplyMode = "dm_fallback"
)

// WeatherUnits selects the unit system for weather replies.
type WeatherUnits string

const (
	UnitsMetric   WeatherUnits = "metric"
	UnitsImperial WeatherUnits = "imperial"
)

// ModeSettings bundles the per-mode configuration knobs: enable flag,
// backend order, max results, and timeout. The source TTL is not per-mode;
// it is Settings.SourceTTL.
type ModeSettings struct {
	Enabled      bool
	BackendOrder []string
	MaxResults   int
	Timeout      time.Duration
}

// Settings is the frozen configuration every component reads from. It is
// built once at process start and never mutated afterward.
type Settings struct {
	// Transport enablement and auth.
	SignalEnabled   bool
	TelegramEnabled bool
	WhatsAppEnabled bool

	DisableAuth map[string]bool // per-transport "disable_auth" override

	SignalAllowlist   map[string]bool
	TelegramAllowlist map[string]bool
	WhatsAppAllowlist map[string]bool
	GroupAllowlist    map[string]bool

	TelegramWebhookSecret string
	TelegramBotUsername   string
	TelegramBotToken      string

	SignalBridgeBaseURL string
	SignalSenderNumber   string
	SignalSenderUUID     string

	WhatsAppBridgeBaseURL string
	WhatsAppBearerToken   string

	MentionAliases []string

	GroupReplyMode GroupReplyMode

	// Search.
	SearchContextMode     SearchContextMode
	SearchBackendStrategy MergeStrategy
	SafeSearch            SafeSearch
	Modes                 map[string]ModeSettings
	WikiBackend           string
	SourceTTL             time.Duration
	MaxSourceRecords      int

	// Chat.
	ChatMaxTurns        int
	ChatTTL             time.Duration
	ChatTemperature     float64
	ChatMaxOutputTokens int
	MaxPromptChars      int
	ForcePlainText      bool
	ChatSystemPrompt    string
	PersonaEnabled      bool

	// Weather.
	WeatherUnits WeatherUnits

	// Dedupe.
	DedupeTTL time.Duration

	// Timeouts (§5).
	ChatOracleTimeout  time.Duration
	ImageOracleTimeout time.Duration
	SearchTimeout      time.Duration
	TransportTimeout   time.Duration

	// Chat-completion / image-generation oracle wiring.
	OracleBaseURL string
	OracleAPIKey  string
	OracleModel   string
	ImageModel    string

	// Optional durability / shared-state backends (see SPEC_FULL.md domain
	// stack: SQLite-backed store persistence, Redis-backed shared cache).
	StateDBPath string
	RedisAddr   string
}

// yamlOverride mirrors the subset of Settings that may additionally be
// supplied via a YAML file, layered under env vars (env wins on conflict).
type yamlOverride struct {
	MentionAliases []string `yaml:"mention_aliases"`
	ChatSystemPrompt string `yaml:"chat_system_prompt"`
	GroupReplyMode string `yaml:"group_reply_mode"`
}

// Load builds Settings from the environment, having first loaded envFile
// (if it exists) via godotenv without overwriting already-set variables,
// and then layering an optional YAML override file for the few fields that
// are awkward to express as flat env vars.
func Load(envFile, yamlFile string) (*Settings, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile) // godotenv never overwrites existing env vars.
		}
	}

	s := &Settings{
		SignalEnabled:   envBool("CHATRELAY_SIGNAL_ENABLED", true),
		TelegramEnabled: envBool("CHATRELAY_TELEGRAM_ENABLED", true),
		WhatsAppEnabled: envBool("CHATRELAY_WHATSAPP_ENABLED", true),

		DisableAuth: map[string]bool{
			"signal":   envBool("CHATRELAY_SIGNAL_DISABLE_AUTH", false),
			"telegram": envBool("CHATRELAY_TELEGRAM_DISABLE_AUTH", false),
			"whatsapp": envBool("CHATRELAY_WHATSAPP_DISABLE_AUTH", false),
		},

		SignalAllowlist:   envSet("CHATRELAY_SIGNAL_ALLOWLIST"),
		TelegramAllowlist: envSet("CHATRELAY_TELEGRAM_ALLOWLIST"),
		WhatsAppAllowlist: envSet("CHATRELAY_WHATSAPP_ALLOWLIST"),
		GroupAllowlist:    envSet("CHATRELAY_GROUP_ALLOWLIST"),

		TelegramWebhookSecret: os.Getenv("CHATRELAY_TELEGRAM_SECRET"),
		TelegramBotUsername:   os.Getenv("CHATRELAY_TELEGRAM_BOT_USERNAME"),
		TelegramBotToken:      os.Getenv("CHATRELAY_TELEGRAM_TOKEN"),

		SignalBridgeBaseURL: envOr("CHATRELAY_SIGNAL_BASE_URL", "http://localhost:8080"),
		SignalSenderNumber:  os.Getenv("CHATRELAY_SIGNAL_NUMBER"),
		SignalSenderUUID:    os.Getenv("CHATRELAY_SIGNAL_UUID"),

		WhatsAppBridgeBaseURL: envOr("CHATRELAY_WHATSAPP_BASE_URL", "http://localhost:8081"),
		WhatsAppBearerToken:   os.Getenv("CHATRELAY_WHATSAPP_TOKEN"),

		MentionAliases: envList("CHATRELAY_MENTION_ALIASES", []string{"@signalbot", "@bot"}),

		GroupReplyMode: GroupReplyMode(envOr("CHATRELAY_GROUP_REPLY_MODE", string(GroupReplyGroup))),

		SearchContextMode:     SearchContextMode(envOr("CHATRELAY_SEARCH_CONTEXT_MODE", string(SearchContextNone))),
		SearchBackendStrategy: MergeStrategy(envOr("CHATRELAY_SEARCH_STRATEGY", string(MergeFirstNonEmpty))),
		SafeSearch:            SafeSearch(envOr("CHATRELAY_SAFESEARCH", string(SafeSearchModerate))),
		WikiBackend:           envOr("CHATRELAY_WIKI_BACKEND", "wikipedia"),
		SourceTTL:             envDuration("CHATRELAY_SOURCE_TTL_SECONDS", 1800*time.Second),
		MaxSourceRecords:      envInt("CHATRELAY_MAX_SOURCE_RECORDS", 40),

		ChatMaxTurns:        envInt("CHATRELAY_CHAT_MAX_TURNS", 6),
		ChatTTL:             envDuration("CHATRELAY_CHAT_TTL_SECONDS", 1800*time.Second),
		ChatTemperature:     envFloat("CHATRELAY_CHAT_TEMPERATURE", 0.6),
		ChatMaxOutputTokens: envInt("CHATRELAY_CHAT_MAX_TOKENS", 300),
		MaxPromptChars:      envInt("CHATRELAY_MAX_PROMPT_CHARS", 700),
		ForcePlainText:      envBool("CHATRELAY_FORCE_PLAIN_TEXT", true),
		ChatSystemPrompt:    envOr("CHATRELAY_CHAT_SYSTEM_PROMPT", "You are a helpful, concise assistant."),
		PersonaEnabled:      envBool("CHATRELAY_PERSONA_ENABLED", false),

		WeatherUnits: WeatherUnits(envOr("CHATRELAY_WEATHER_UNITS", string(UnitsMetric))),

		DedupeTTL: envDuration("CHATRELAY_DEDUPE_TTL_SECONDS", 300*time.Second),

		ChatOracleTimeout:  envDuration("CHATRELAY_CHAT_TIMEOUT_SECONDS", 45*time.Second),
		ImageOracleTimeout: envDuration("CHATRELAY_IMAGE_TIMEOUT_SECONDS", 90*time.Second),
		SearchTimeout:      envDuration("CHATRELAY_SEARCH_TIMEOUT_SECONDS", 8*time.Second),
		TransportTimeout:   envDuration("CHATRELAY_TRANSPORT_TIMEOUT_SECONDS", 30*time.Second),

		OracleBaseURL: envOr("CHATRELAY_ORACLE_BASE_URL", "https://api.openai.com/v1"),
		OracleAPIKey:  os.Getenv("CHATRELAY_ORACLE_API_KEY"),
		OracleModel:   envOr("CHATRELAY_ORACLE_MODEL", "gpt-4o-mini"),
		ImageModel:    envOr("CHATRELAY_IMAGE_MODEL", "dall-e-3"),

		StateDBPath: os.Getenv("CHATRELAY_STATE_DB"),
		RedisAddr:   os.Getenv("CHATRELAY_REDIS_ADDR"),
	}

	s.Modes = map[string]ModeSettings{
		"search": {
			Enabled:      envBool("CHATRELAY_SEARCH_ENABLED", true),
			BackendOrder: envList("CHATRELAY_SEARCH_BACKEND_ORDER", []string{"duckduckgo", "bing", "google", "yandex", "grokipedia"}),
			MaxResults:   envInt("CHATRELAY_SEARCH_MAX_RESULTS", 5),
			Timeout:      envDuration("CHATRELAY_SEARCH_MODE_TIMEOUT_SECONDS", 8*time.Second),
		},
		"news": {
			Enabled:      envBool("CHATRELAY_NEWS_ENABLED", true),
			BackendOrder: envList("CHATRELAY_NEWS_BACKEND_ORDER", []string{"duckduckgo", "bing", "yahoo"}),
			MaxResults:   envInt("CHATRELAY_NEWS_MAX_RESULTS", 5),
			Timeout:      envDuration("CHATRELAY_NEWS_TIMEOUT_SECONDS", 8*time.Second),
		},
		"wiki": {
			Enabled:      envBool("CHATRELAY_WIKI_ENABLED", true),
			BackendOrder: []string{envOr("CHATRELAY_WIKI_BACKEND", "wikipedia")},
			MaxResults:   envInt("CHATRELAY_WIKI_MAX_RESULTS", 3),
			Timeout:      envDuration("CHATRELAY_WIKI_TIMEOUT_SECONDS", 8*time.Second),
		},
		"images": {
			Enabled:      envBool("CHATRELAY_IMAGES_ENABLED", true),
			BackendOrder: envList("CHATRELAY_IMAGES_BACKEND", []string{"duckduckgo"}),
			MaxResults:   envInt("CHATRELAY_IMAGES_MAX_RESULTS", 3),
			Timeout:      envDuration("CHATRELAY_IMAGES_TIMEOUT_SECONDS", 8*time.Second),
		},
		"videos": {
			Enabled:      envBool("CHATRELAY_VIDEOS_ENABLED", true),
			BackendOrder: envList("CHATRELAY_VIDEOS_BACKEND", []string{"youtube"}),
			MaxResults:   envInt("CHATRELAY_VIDEOS_MAX_RESULTS", 5),
			Timeout:      envDuration("CHATRELAY_VIDEOS_TIMEOUT_SECONDS", 8*time.Second),
		},
		"jmail": {
			Enabled:      envBool("CHATRELAY_JMAIL_ENABLED", true),
			BackendOrder: []string{"jmail"},
			MaxResults:   envInt("CHATRELAY_JMAIL_MAX_RESULTS", 5),
			Timeout:      envDuration("CHATRELAY_JMAIL_TIMEOUT_SECONDS", 8*time.Second),
		},
		"lolcow_cyraxx": {
			Enabled:      envBool("CHATRELAY_LOLCOW_CYRAXX_ENABLED", true),
			BackendOrder: []string{"lolcow_cyraxx"},
			MaxResults:   envInt("CHATRELAY_LOLCOW_MAX_RESULTS", 5),
			Timeout:      envDuration("CHATRELAY_LOLCOW_TIMEOUT_SECONDS", 8*time.Second),
		},
		"lolcow_larson": {
			Enabled:      envBool("CHATRELAY_LOLCOW_LARSON_ENABLED", true),
			BackendOrder: []string{"lolcow_larson"},
			MaxResults:   envInt("CHATRELAY_LOLCOW_MAX_RESULTS", 5),
			Timeout:      envDuration("CHATRELAY_LOLCOW_TIMEOUT_SECONDS", 8*time.Second),
		},
	}

	if yamlFile != "" {
		if data, err := os.ReadFile(yamlFile); err == nil {
			var ov yamlOverride
			if err := yaml.Unmarshal(data, &ov); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", yamlFile, err)
			}
			if len(ov.MentionAliases) > 0 && os.Getenv("CHATRELAY_MENTION_ALIASES") == "" {
				s.MentionAliases = ov.MentionAliases
			}
			if ov.ChatSystemPrompt != "" && os.Getenv("CHATRELAY_CHAT_SYSTEM_PROMPT") == "" {
				s.ChatSystemPrompt = ov.ChatSystemPrompt
			}
			if ov.GroupReplyMode != "" && os.Getenv("CHATRELAY_GROUP_REPLY_MODE") == "" {
				s.GroupReplyMode = GroupReplyMode(ov.GroupReplyMode)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: reading %s: %w", yamlFile, err)
		}
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.TelegramEnabled && s.TelegramBotToken == "" {
		return fmt.Errorf("config: CHATRELAY_TELEGRAM_TOKEN is required when Telegram is enabled")
	}
	if s.MaxPromptChars <= 0 {
		return fmt.Errorf("config: CHATRELAY_MAX_PROMPT_CHARS must be positive")
	}
	if s.ChatMaxTurns <= 0 {
		return fmt.Errorf("config: CHATRELAY_CHAT_MAX_TURNS must be at least 1")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return dedupeBackends(strings.Split(v, ","))
}

func envSet(key string) map[string]bool {
	out := map[string]bool{}
	v := os.Getenv(key)
	if v == "" {
		return out
	}
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[part] = true
		}
	}
	return out
}

// dedupeBackends trims, lowercases, and order-preservingly deduplicates a
// list of comma-separated provider name tokens (spec.md §4.5 step 3).
func dedupeBackends(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// DedupeBackends is the exported form used by the search client.
func DedupeBackends(names []string) []string { return dedupeBackends(names) }
