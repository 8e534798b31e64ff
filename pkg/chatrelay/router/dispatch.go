package router

import (
	"context"
	"fmt"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/followup"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/plaintext"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/searchservice"
)

// searchErrorText renders a searchservice/search failure into its
// user-visible string; both error families already carry a user-facing
// Error() message (spec.md §4.8, §7).
func searchErrorText(err error) string {
	if searchservice.IsServiceError(err) {
		return err.Error()
	}
	return "Search service is unavailable. Try again later."
}

// runSearchSummary answers a search/news/wiki-mode query with a chat-
// oracle summary of live results (spec.md §4.8 summarize_search).
func (r *Router) runSearchSummary(ctx context.Context, msg model.IncomingMessage, convoKey string, mode model.SearchMode, query string) {
	reply, err := r.searchSvc.SummarizeSearch(ctx, convoKey, mode, query)
	if err != nil {
		r.reply(ctx, msg, searchErrorText(err))
		return
	}
	r.reply(ctx, msg, reply)
}

// runSearchImage answers an images-mode query by downloading the first
// fetchable candidate image (spec.md §4.8 search_image).
func (r *Router) runSearchImage(ctx context.Context, msg model.IncomingMessage, convoKey, query string) {
	data, contentType, err := r.searchSvc.SearchImage(ctx, convoKey, query)
	if err != nil {
		r.reply(ctx, msg, searchErrorText(err))
		return
	}
	r.replyImage(ctx, msg, data, contentType, "")
}

// runVideoList lists numbered video results and arms the pending-video-
// selection slot (spec.md §4.8 video_list_reply).
func (r *Router) runVideoList(ctx context.Context, msg model.IncomingMessage, convoKey, query string) {
	reply, err := r.searchSvc.VideoListReply(ctx, convoKey, query)
	if err != nil {
		r.reply(ctx, msg, searchErrorText(err))
		return
	}
	r.reply(ctx, msg, reply)
}

// runVideoSelection resolves a numeric reply against the pending video
// listing (spec.md §4.1 step 6a, §4.8 resolve_video_selection).
func (r *Router) runVideoSelection(ctx context.Context, msg model.IncomingMessage, convoKey string, n int) {
	data, contentType, url, title, err := r.searchSvc.ResolveVideoSelection(ctx, convoKey, n)
	if err != nil {
		r.reply(ctx, msg, searchErrorText(err))
		return
	}
	if data != nil {
		r.replyImage(ctx, msg, data, contentType, fmt.Sprintf("%s\n%s", title, url))
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("%s\n%s", title, url))
}

// runJmailList lists numbered jmail results and arms the pending-jmail-
// selection slot (spec.md §4.8 jmail_list_reply).
func (r *Router) runJmailList(ctx context.Context, msg model.IncomingMessage, convoKey, query string) {
	reply, err := r.searchSvc.JmailListReply(ctx, convoKey, query)
	if err != nil {
		r.reply(ctx, msg, searchErrorText(err))
		return
	}
	r.reply(ctx, msg, reply)
}

// runJmailSelection resolves a numeric reply against the pending jmail
// listing (spec.md §4.1 step 6a, §4.8 resolve_jmail_selection).
func (r *Router) runJmailSelection(ctx context.Context, msg model.IncomingMessage, convoKey string, n int) {
	reply, err := r.searchSvc.ResolveJmailSelection(ctx, convoKey, n)
	if err != nil {
		r.reply(ctx, msg, searchErrorText(err))
		return
	}
	r.reply(ctx, msg, reply)
}

// runImagine drives the /imagine command through the image oracle.
func (r *Router) runImagine(ctx context.Context, msg model.IncomingMessage, prompt string) {
	images, err := r.imageOracle.GenerateImages(ctx, prompt, r.settings.ImageModel)
	if err != nil {
		r.reply(ctx, msg, oracle.UserMessage("Image", err))
		return
	}
	img := images[0]
	r.replyImage(ctx, msg, img.Bytes, img.ContentType, "")
}

// runWeather drives the /weather command (SPEC_FULL.md supplemented
// weather path).
func (r *Router) runWeather(ctx context.Context, msg model.IncomingMessage, location string) {
	text, err := r.weather.Current(ctx, location)
	if err != nil {
		r.reply(ctx, msg, err.Error())
		return
	}
	r.reply(ctx, msg, text)
}

// runForecast drives the /forecast command, splitting "<location> [days]"
// (SPEC_FULL.md supplemented weather path).
func (r *Router) runForecast(ctx context.Context, msg model.IncomingMessage, arg string) {
	location, days := parseForecastArgs(arg)
	text, err := r.weather.Forecast(ctx, location, days)
	if err != nil {
		r.reply(ctx, msg, err.Error())
		return
	}
	r.reply(ctx, msg, text)
}

// runPendingFollowupReply implements spec.md §4.6.1's second half: a reply
// to an outstanding clarification either resolves the pending prompt
// (cleared, routed through the normal chat/auto-search path) or fails,
// in which case a single failure is enough to clear the slot and ask the
// user to restate their question in full.
func (r *Router) runPendingFollowupReply(ctx context.Context, msg model.IncomingMessage, convoKey, reply string, pending model.PendingFollowupState) {
	history := r.chatStore.GetHistory(convoKey)
	sources := r.searchCtx.RecentRecords(convoKey, 10)

	resolved, ok := r.followupRes.ResolvePendingReply(ctx, reply, pending, history, sources)
	if ok {
		r.searchCtx.ClearPendingFollowup(convoKey)
		r.runChatOrAutoSearch(ctx, msg, convoKey, resolved)
		return
	}

	r.searchCtx.BumpPendingAttempt(convoKey)
	r.searchCtx.ClearPendingFollowup(convoKey)
	r.reply(ctx, msg, "Please restate your full question, for example: who is god in islam?")
}

// runChatOrAutoSearch implements spec.md §4.1 step 6g's tail: follow-up
// detection/resolution, then either a direct chat reply or, when
// search_context_mode is "context", an auto-search dispatch (§4.7).
func (r *Router) runChatOrAutoSearch(ctx context.Context, msg model.IncomingMessage, convoKey, prompt string) {
	history := r.chatStore.GetHistory(convoKey)
	sources := r.searchCtx.RecentRecords(convoKey, 10)

	decision := r.followupRes.Resolve(ctx, prompt, history, sources)
	if decision.NeedsClarification {
		r.searchCtx.SetPendingFollowup(convoKey, model.PendingFollowupState{
			OriginalPrompt: prompt,
			TemplatePrompt: followup.TemplatePrompt(prompt),
			Reason:         decision.Reason,
		})
		r.reply(ctx, msg, decision.ClarificationText)
		return
	}
	resolvedPrompt := decision.ResolvedPrompt

	if r.settings.SearchContextMode == config.SearchContextFull {
		if mode, query, should := r.decideAutoSearch(ctx, resolvedPrompt, history); should {
			r.dispatchAutoSearch(ctx, msg, convoKey, mode, query)
			return
		}
	}

	r.runChat(ctx, msg, convoKey, resolvedPrompt, history)
}

// dispatchAutoSearch runs the mode the auto-search oracle chose (spec.md
// §4.7): images-mode sends a downloaded image; every other mode, videos and
// jmail included, is answered with a search summary rather than a numbered
// list.
func (r *Router) dispatchAutoSearch(ctx context.Context, msg model.IncomingMessage, convoKey string, mode model.SearchMode, query string) {
	switch mode {
	case model.ModeImages:
		r.runSearchImage(ctx, msg, convoKey, query)
	default:
		r.runSearchSummary(ctx, msg, convoKey, mode, query)
	}
}

// runChat answers resolvedPrompt directly from the chat oracle, appending
// the turn to history only after a successful send (spec.md §7: "a
// transport send failure therefore leaves history unchanged for that
// turn").
func (r *Router) runChat(ctx context.Context, msg model.IncomingMessage, convoKey, resolvedPrompt string, history []model.ChatTurn) {
	messages := make([]oracle.ChatMessage, 0, len(history)+2)
	messages = append(messages, oracle.ChatMessage{Role: "system", Content: r.settings.ChatSystemPrompt})
	for _, t := range history {
		messages = append(messages, oracle.ChatMessage{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, oracle.ChatMessage{Role: "user", Content: resolvedPrompt})

	reply, err := r.chatOracle.GenerateReply(ctx, messages, r.settings.ChatTemperature, r.settings.ChatMaxOutputTokens)
	if err != nil {
		r.reply(ctx, msg, oracle.UserMessage("Chat", err))
		return
	}
	if r.settings.ForcePlainText {
		reply = plaintext.Coerce(reply)
	}
	if err := r.sender.SendText(ctx, msg, reply); err != nil {
		r.logger.Error("router: send failed", "transport", msg.Transport, "error", err)
		return
	}
	r.chatStore.AppendTurn(convoKey, resolvedPrompt, reply)
}
