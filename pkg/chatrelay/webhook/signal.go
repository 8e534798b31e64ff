package webhook

import (
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// ParseSignal extracts an IncomingMessage from a Signal CLI REST bridge
// webhook body, tolerating the envelope sitting at payload.params.envelope,
// payload.envelope, or payload itself (spec.md §6). ok is false for
// payloads with no usable text message.
func ParseSignal(payload map[string]any, botNumber, botUUID string) (model.IncomingMessage, bool) {
	envelope := locateSignalEnvelope(payload)
	if envelope == nil {
		return model.IncomingMessage{}, false
	}

	dataMessage, _ := getMap(envelope, "dataMessage")
	if dataMessage == nil {
		return model.IncomingMessage{}, false
	}

	text := getString(dataMessage, "message")
	if strings.TrimSpace(text) == "" {
		return model.IncomingMessage{}, false
	}

	sender := getString(envelope, "sourceNumber", "source")
	if sender == "" {
		return model.IncomingMessage{}, false
	}

	timestamp, ok := getInt64(dataMessage, "timestamp")
	if !ok {
		timestamp, _ = getInt64(envelope, "timestamp")
	}

	groupID := ""
	if groupInfo, ok := getMap(dataMessage, "groupInfo"); ok {
		groupID = getString(groupInfo, "groupId", "groupIdHex")
	}

	mentions := parseSignalMentions(dataMessage)

	target := model.Target{}
	if groupID != "" {
		target.GroupID = groupID
	} else {
		target.Recipient = sender
	}

	directed := groupID == ""
	if !directed {
		for _, m := range mentions {
			if mentionMatchesBot(m, botNumber, botUUID) {
				directed = true
				break
			}
		}
	}

	return model.IncomingMessage{
		Sender:        sender,
		Text:          text,
		Timestamp:     timestamp,
		Target:        target,
		Transport:     model.TransportSignal,
		Mentions:      mentions,
		DirectedToBot: directed,
	}, true
}

func mentionMatchesBot(m model.MentionSpan, botNumber, botUUID string) bool {
	if botNumber != "" && normalizeDigits(m.Number) == normalizeDigits(botNumber) && m.Number != "" {
		return true
	}
	if botUUID != "" && m.UserID != "" && m.UserID == botUUID {
		return true
	}
	return false
}

func normalizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func locateSignalEnvelope(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	if params, ok := getMap(payload, "params"); ok {
		if env, ok := getMap(params, "envelope"); ok {
			return env
		}
	}
	if p, ok := getMap(payload, "payload"); ok {
		if params, ok := getMap(p, "params"); ok {
			if env, ok := getMap(params, "envelope"); ok {
				return env
			}
		}
		if env, ok := getMap(p, "envelope"); ok {
			return env
		}
		if _, hasDataMessage := p["dataMessage"]; hasDataMessage {
			return p
		}
	}
	if env, ok := getMap(payload, "envelope"); ok {
		return env
	}
	if _, hasDataMessage := payload["dataMessage"]; hasDataMessage {
		return payload
	}
	return nil
}

// parseSignalMentions merges dataMessage.mentions and dataMessage.bodyRanges,
// each tolerating several legacy field-name aliases for start/length/number/
// uuid.
func parseSignalMentions(dataMessage map[string]any) []model.MentionSpan {
	var out []model.MentionSpan
	for _, key := range []string{"mentions", "bodyRanges"} {
		items, ok := getSlice(dataMessage, key)
		if !ok {
			continue
		}
		for _, item := range items {
			m, ok := asMap(item)
			if !ok {
				continue
			}
			span, ok := parseMentionSpan(m)
			if ok {
				out = append(out, span)
			}
		}
	}
	return out
}

func parseMentionSpan(m map[string]any) (model.MentionSpan, bool) {
	start, okStart := getInt64(m, "start")
	length, okLength := getInt64(m, "length")
	if !okStart || !okLength || length <= 0 {
		return model.MentionSpan{}, false
	}
	number := getString(m, "number", "mentionNumber", "e164")
	userID := getString(m, "uuid", "userUuid", "mentionUuid", "aci")
	if number == "" && userID == "" {
		return model.MentionSpan{}, false
	}
	return model.MentionSpan{
		Start:  int(start),
		Length: int(length),
		Number: number,
		UserID: userID,
	}, true
}
