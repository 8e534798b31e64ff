package webhook

import (
	"strconv"
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// ParseTelegram extracts an IncomingMessage from a Telegram Bot API update,
// requiring update.message or update.edited_message (spec.md §6).
func ParseTelegram(update map[string]any, botUsername string) (model.IncomingMessage, bool) {
	msg, ok := getMap(update, "message")
	if !ok {
		msg, ok = getMap(update, "edited_message")
	}
	if !ok {
		return model.IncomingMessage{}, false
	}

	text := getString(msg, "text", "caption")
	if strings.TrimSpace(text) == "" {
		return model.IncomingMessage{}, false
	}

	from, _ := getMap(msg, "from")
	senderID, _ := getInt64(from, "id")
	if senderID == 0 {
		return model.IncomingMessage{}, false
	}
	sender := strconv.FormatInt(senderID, 10)

	chat, hasChat := getMap(msg, "chat")
	if !hasChat {
		return model.IncomingMessage{}, false
	}
	chatID, _ := getInt64(chat, "id")
	chatType := getString(chat, "type")
	isGroup := chatType == "group" || chatType == "supergroup"

	target := model.Target{}
	if isGroup {
		target.GroupID = strconv.FormatInt(chatID, 10)
	} else {
		target.Recipient = strconv.FormatInt(chatID, 10)
	}

	directed := !isGroup || mentionsBotUsername(msg, botUsername) || repliesToBot(msg, botUsername)

	return model.IncomingMessage{
		Sender:        sender,
		Text:          text,
		Timestamp:     unixTimestamp(msg),
		Target:        target,
		Transport:     model.TransportTelegram,
		DirectedToBot: directed,
	}, true
}

func unixTimestamp(msg map[string]any) int64 {
	ts, _ := getInt64(msg, "date")
	return ts
}

func mentionsBotUsername(msg map[string]any, botUsername string) bool {
	if botUsername == "" {
		return false
	}
	text := getString(msg, "text", "caption")
	entities, ok := getSlice(msg, "entities", "caption_entities")
	if !ok {
		return false
	}
	target := "@" + strings.TrimPrefix(botUsername, "@")
	for _, raw := range entities {
		e, ok := asMap(raw)
		if !ok || getString(e, "type") != "mention" {
			continue
		}
		offset, okOff := getInt64(e, "offset")
		length, okLen := getInt64(e, "length")
		if !okOff || !okLen {
			continue
		}
		runes := []rune(text)
		if offset < 0 || length <= 0 || int(offset+length) > len(runes) {
			continue
		}
		if strings.EqualFold(string(runes[offset:offset+length]), target) {
			return true
		}
	}
	return false
}

func repliesToBot(msg map[string]any, botUsername string) bool {
	if botUsername == "" {
		return false
	}
	reply, ok := getMap(msg, "reply_to_message")
	if !ok {
		return false
	}
	from, ok := getMap(reply, "from")
	if !ok {
		return false
	}
	return getBool(from, "is_bot") && strings.EqualFold(getString(from, "username"), strings.TrimPrefix(botUsername, "@"))
}
