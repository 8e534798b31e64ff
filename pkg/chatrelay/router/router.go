// Package router implements the message router (spec.md §4.1): the single
// pipeline every inbound webhook passes through, from transport gate and
// authorization down to command classification and background dispatch.
// It is grounded on the teacher's gateway dispatch loop in
// pkg/devclaw/channels, generalized from goclaw's fixed agent-command set
// to this system's mention/command/follow-up/auto-search classification.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/followup"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/plaintext"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/searchservice"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/store"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/weather"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/webhook"
)

// Acknowledgement is the synchronous webhook-handler response (spec.md §6):
// Status is one of "ok" (health-type), "ignored", or "accepted"; Reason
// names why, for logging and the e2e test scenarios.
type Acknowledgement struct {
	Status string
	Reason string
}

func accepted(reason string) Acknowledgement { return Acknowledgement{Status: "accepted", Reason: reason} }
func ignored(reason string) Acknowledgement  { return Acknowledgement{Status: "ignored", Reason: reason} }

// Router wires together every stateful collaborator a routed message may
// touch: conversation/dedupe/search-context stores, the chat/image
// oracles, search service, follow-up resolver, weather client, and the
// per-transport reply Sender.
type Router struct {
	settings  *config.Settings
	chatStore *store.ChatContextStore
	dedupe    *store.DedupeCache
	searchCtx *store.SearchContextStore

	searchSvc   *searchservice.Service
	followupRes *followup.Resolver
	chatOracle  oracle.ChatOracle
	imageOracle oracle.ImageOracle
	weather     *weather.Client

	sender *Sender
	logger *slog.Logger
}

func New(
	settings *config.Settings,
	chatStore *store.ChatContextStore,
	dedupe *store.DedupeCache,
	searchCtx *store.SearchContextStore,
	searchSvc *searchservice.Service,
	followupRes *followup.Resolver,
	chatOracle oracle.ChatOracle,
	imageOracle oracle.ImageOracle,
	weatherClient *weather.Client,
	sender *Sender,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		settings:    settings,
		chatStore:   chatStore,
		dedupe:      dedupe,
		searchCtx:   searchCtx,
		searchSvc:   searchSvc,
		followupRes: followupRes,
		chatOracle:  chatOracle,
		imageOracle: imageOracle,
		weather:     weatherClient,
		sender:      sender,
		logger:      logger,
	}
}

// HandleSignal is the /webhook/signal entrypoint.
func (r *Router) HandleSignal(ctx context.Context, body map[string]any) Acknowledgement {
	if !r.settings.SignalEnabled {
		return ignored("transport_disabled")
	}
	msg, ok := webhook.ParseSignal(body, r.settings.SignalSenderNumber, r.settings.SignalSenderUUID)
	if !ok {
		return ignored("unparsable")
	}
	return r.route(ctx, msg)
}

// HandleWhatsApp is the /webhook/whatsapp entrypoint.
func (r *Router) HandleWhatsApp(ctx context.Context, body map[string]any) Acknowledgement {
	if !r.settings.WhatsAppEnabled {
		return ignored("transport_disabled")
	}
	msg, ok := webhook.ParseWhatsApp(body)
	if !ok {
		return ignored("unparsable")
	}
	return r.route(ctx, msg)
}

// HandleTelegram is the /webhook/telegram entrypoint. secretHeader is the
// X-Telegram-Bot-Api-Secret-Token header value; it is checked against the
// configured webhook secret when one is set (spec.md §6).
func (r *Router) HandleTelegram(ctx context.Context, body map[string]any, secretHeader string) Acknowledgement {
	if !r.settings.TelegramEnabled {
		return ignored("transport_disabled")
	}
	if r.settings.TelegramWebhookSecret != "" && secretHeader != r.settings.TelegramWebhookSecret {
		return ignored("bad_secret")
	}
	msg, ok := webhook.ParseTelegram(body, r.settings.TelegramBotUsername)
	if !ok {
		return ignored("unparsable")
	}
	return r.route(ctx, msg)
}

// route implements spec.md §4.1's pipeline: authorization, dedupe, mention
// detection, command classification, and background dispatch.
func (r *Router) route(ctx context.Context, msg model.IncomingMessage) Acknowledgement {
	if !r.authorized(msg) {
		return ignored("unauthorized")
	}

	key := store.DedupeKey(msg.Sender, msg.Timestamp, msg.Text)
	if !r.dedupe.MarkOnce(key) {
		return ignored("duplicate")
	}

	convoKey := msg.ConversationKey()
	prompt := stripDirective(msg, r.settings.MentionAliases)

	// Command classification (spec.md §4.1 step 6a-e) runs regardless of
	// mention status; only the chat fallthrough at the end requires the
	// message to be directed to the bot (step 6f).
	if n, ok := parsePositiveInt(prompt); ok {
		if pending := r.searchCtx.GetPendingJmail(convoKey); pending != nil {
			r.background(func() { r.runJmailSelection(ctx, msg, convoKey, n) })
			return accepted("jmail_selection")
		}
		if pending := r.searchCtx.GetPendingVideo(convoKey); pending != nil {
			r.background(func() { r.runVideoSelection(ctx, msg, convoKey, n) })
			return accepted("video_selection")
		}
	}

	if cmd, ok := parseSlashCommand(prompt); ok {
		r.searchCtx.ClearAllPending(convoKey)
		return r.dispatchCommand(ctx, msg, convoKey, cmd)
	}

	if pending := r.searchCtx.GetPendingFollowup(convoKey); pending != nil && followup.IsPendingReplyCandidate(prompt) {
		r.background(func() { r.runPendingFollowupReply(ctx, msg, convoKey, prompt, *pending) })
		return accepted("pending_followup_reply")
	}

	if !isDirectedToBot(msg, r.settings.MentionAliases) {
		return ignored("non_mention")
	}

	if r.settings.MaxPromptChars > 0 && len([]rune(prompt)) > r.settings.MaxPromptChars {
		r.background(func() {
			_ = r.sender.SendText(ctx, msg, "That message is too long. Please shorten it and try again.")
		})
		return accepted("prompt_too_long")
	}

	r.background(func() { r.runChatOrAutoSearch(ctx, msg, convoKey, prompt) })
	return accepted("chat")
}

// authorized applies the per-transport allowlist/group-allowlist rules
// (spec.md §4.1 step 2), skipped entirely when the transport's
// disable_auth override is set.
func (r *Router) authorized(msg model.IncomingMessage) bool {
	if r.settings.DisableAuth[string(msg.Transport)] {
		return true
	}
	if msg.Target.IsGroup() {
		if len(r.settings.GroupAllowlist) == 0 {
			return true
		}
		return r.settings.GroupAllowlist[msg.Target.GroupID]
	}
	var allowlist map[string]bool
	switch msg.Transport {
	case model.TransportSignal:
		allowlist = r.settings.SignalAllowlist
	case model.TransportTelegram:
		allowlist = r.settings.TelegramAllowlist
	case model.TransportWhatsApp:
		allowlist = r.settings.WhatsAppAllowlist
	}
	if len(allowlist) == 0 {
		return true
	}
	return allowlist[msg.Sender]
}

// background runs fn on its own goroutine, recovering and logging any
// panic so a single failed reply can never crash the process (spec.md §5).
func (r *Router) background(fn func()) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("router: recovered panic in background task", "panic", rec)
			}
		}()
		fn()
	}()
}

func (r *Router) reply(ctx context.Context, msg model.IncomingMessage, text string) {
	if r.settings.ForcePlainText {
		text = plaintext.Coerce(text)
	}
	if err := r.sender.SendText(ctx, msg, text); err != nil {
		r.logger.Error("router: send failed", "transport", msg.Transport, "error", err)
	}
}

func (r *Router) replyImage(ctx context.Context, msg model.IncomingMessage, image []byte, contentType, caption string) {
	if err := r.sender.SendImage(ctx, msg, image, contentType, caption); err != nil {
		r.logger.Error("router: image send failed", "transport", msg.Transport, "error", err)
	}
}

// dispatchCommand classifies and runs an explicit slash command (spec.md
// §4.1 step 6 case b / §6's command table). Search-mode commands with no
// argument are rejected with a usage reply.
func (r *Router) dispatchCommand(ctx context.Context, msg model.IncomingMessage, convoKey string, cmd command) Acknowledgement {
	switch cmd.kind {
	case cmdSearchMode:
		if strings.TrimSpace(cmd.arg) == "" {
			r.background(func() { r.reply(ctx, msg, usageForMode(cmd.mode)) })
			return accepted("command_usage")
		}
		switch cmd.mode {
		case model.ModeImages:
			r.background(func() { r.runSearchImage(ctx, msg, convoKey, cmd.arg) })
		case model.ModeVideos:
			r.background(func() { r.runVideoList(ctx, msg, convoKey, cmd.arg) })
		case model.ModeJmail:
			r.background(func() { r.runJmailList(ctx, msg, convoKey, cmd.arg) })
		default:
			r.background(func() { r.runSearchSummary(ctx, msg, convoKey, cmd.mode, cmd.arg) })
		}
		return accepted(string(cmd.mode))

	case cmdSource:
		r.background(func() { r.reply(ctx, msg, r.searchSvc.SourceReply(convoKey, cmd.arg)) })
		return accepted("source")

	case cmdImagine:
		if strings.TrimSpace(cmd.arg) == "" {
			r.background(func() { r.reply(ctx, msg, "Usage: /imagine <description>") })
			return accepted("command_usage")
		}
		r.background(func() { r.runImagine(ctx, msg, cmd.arg) })
		return accepted("imagine")

	case cmdWeather:
		if strings.TrimSpace(cmd.arg) == "" {
			r.background(func() { r.reply(ctx, msg, "Usage: /weather <location>") })
			return accepted("command_usage")
		}
		r.background(func() { r.runWeather(ctx, msg, cmd.arg) })
		return accepted("weather")

	case cmdForecast:
		if strings.TrimSpace(cmd.arg) == "" {
			r.background(func() { r.reply(ctx, msg, "Usage: /forecast <location> [days]") })
			return accepted("command_usage")
		}
		r.background(func() { r.runForecast(ctx, msg, cmd.arg) })
		return accepted("forecast")
	}
	return ignored("unknown_command")
}

func usageForMode(mode model.SearchMode) string {
	return fmt.Sprintf("Usage: /%s <query>", mode)
}
