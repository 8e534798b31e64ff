package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/followup"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/router"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/scheduler"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/search"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/searchservice"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/store"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/transport/signal"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/transport/telegram"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/transport/whatsapp"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/weather"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/groupresolve"
)

// app bundles every constructed collaborator a command needs, built once
// from Settings the way the teacher's cmd/copilot wires its Assistant from
// a loaded Config.
type app struct {
	settings     *config.Settings
	logger       *slog.Logger
	router       *router.Router
	searchClient *search.Client
	sweeper      *scheduler.Sweeper
	dedupeBackup *store.SQLiteBackup
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// buildApp loads Settings and wires every component, mirroring the
// teacher's cmd/copilot/commands assembling an Assistant: stores first,
// then oracles, then transports, then the router that composes them.
func buildApp(envFile, yamlFile string, verbose bool) (*app, error) {
	settings, err := config.Load(envFile, yamlFile)
	if err != nil {
		return nil, fmt.Errorf("chatrelay: %w", err)
	}
	logger := newLogger(verbose)

	dedupe := store.NewDedupeCache(settings.DedupeTTL)
	var dedupeBackup *store.SQLiteBackup
	if settings.StateDBPath != "" {
		backup, err := store.OpenSQLiteBackup(settings.StateDBPath)
		if err != nil {
			return nil, fmt.Errorf("chatrelay: %w", err)
		}
		dedupe = dedupe.WithSQLiteBackup(backup)
		dedupeBackup = backup
	}
	if settings.RedisAddr != "" {
		dedupe = dedupe.WithRedisBackup(store.NewRedisBackup(settings.RedisAddr))
	}
	chatStore := store.NewChatContextStore(settings.ChatMaxTurns, settings.ChatTTL)
	searchCtxStore := store.NewSearchContextStore(settings.MaxSourceRecords, settings.SourceTTL)

	registry := search.NewRegistry()
	searchClient := search.NewClient(registry, settings, logger)

	chatOracle := oracle.NewOpenAICompatibleOracle(settings.OracleBaseURL, settings.OracleAPIKey, settings.OracleModel)
	imageOracle := oracle.NewOpenAICompatibleImageOracle(settings.OracleBaseURL, settings.OracleAPIKey)

	searchSvc := searchservice.New(searchClient, searchCtxStore, chatOracle, settings)
	followupRes := followup.NewResolver(chatOracle)
	weatherClient := weather.NewClient(settings.WeatherUnits, settings.SearchTimeout)

	groupResolver := groupresolve.NewResolver(settings.SignalBridgeBaseURL, settings.SignalSenderNumber, nil, settings.TransportTimeout)
	signalClient := signal.NewClient(settings.SignalBridgeBaseURL, settings.SignalSenderNumber, nil, groupResolver)

	var telegramClient *telegram.Client
	if settings.TelegramBotToken != "" {
		telegramClient, err = telegram.NewClient(settings.TelegramBotToken)
		if err != nil {
			return nil, fmt.Errorf("chatrelay: %w", err)
		}
	}
	whatsappClient := whatsapp.NewClient(settings.WhatsAppBridgeBaseURL, settings.WhatsAppBearerToken, nil)

	sender := router.NewSender(signalClient, telegramClient, whatsappClient, settings.GroupReplyMode)

	r := router.New(settings, chatStore, dedupe, searchCtxStore, searchSvc, followupRes, chatOracle, imageOracle, weatherClient, sender, logger)

	sweeper := scheduler.New(map[string]scheduler.Compactable{
		"chat_context":   chatStore,
		"search_context": searchCtxStore,
		"dedupe":         dedupe,
	}, logger)

	return &app{
		settings:     settings,
		logger:       logger,
		router:       r,
		searchClient: searchClient,
		sweeper:      sweeper,
		dedupeBackup: dedupeBackup,
	}, nil
}
