package webhook

import (
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// ParseWhatsApp extracts an IncomingMessage from a WhatsApp bridge event,
// tolerating the event sitting at payload.event, payload.data, or payload
// itself, and the several field-name aliases each transport revision has
// used for sender/text/chat id (spec.md §6).
func ParseWhatsApp(payload map[string]any) (model.IncomingMessage, bool) {
	event := locateWhatsAppEvent(payload)
	if event == nil {
		return model.IncomingMessage{}, false
	}

	message, hasMessage := getMap(event, "message")

	text := getString(event, "text", "body", "message")
	if text == "" && hasMessage {
		text = getString(message, "text", "body", "message")
	}
	if strings.TrimSpace(text) == "" {
		return model.IncomingMessage{}, false
	}

	sender := getString(event, "from", "sender", "fromNumber", "author")
	if sender == "" && hasMessage {
		sender = getString(message, "from", "sender", "fromNumber", "author")
	}
	if sender == "" {
		return model.IncomingMessage{}, false
	}

	chatID := getString(event, "chatId", "chat_id", "conversation", "thread")
	isGroup := getBool(event, "isGroup") || strings.HasSuffix(chatID, "@g.us")

	timestamp, _ := getInt64(event, "timestamp", "t")

	target := model.Target{}
	if isGroup && chatID != "" {
		target.GroupID = chatID
	} else {
		target.Recipient = firstNonEmpty(chatID, sender)
	}

	return model.IncomingMessage{
		Sender:        sender,
		Text:          text,
		Timestamp:     timestamp,
		Target:        target,
		Transport:     model.TransportWhatsApp,
		DirectedToBot: !isGroup,
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func locateWhatsAppEvent(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	if event, ok := getMap(payload, "event"); ok {
		return event
	}
	if data, ok := getMap(payload, "data"); ok {
		return data
	}
	if p, ok := getMap(payload, "payload"); ok {
		if event, ok := getMap(p, "event"); ok {
			return event
		}
		if data, ok := getMap(p, "data"); ok {
			return data
		}
		return p
	}
	return payload
}
