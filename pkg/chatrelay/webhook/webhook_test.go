package webhook

import "testing"

func TestParseSignalGroupMention(t *testing.T) {
	payload := map[string]any{
		"envelope": map[string]any{
			"sourceNumber": "+15550002222",
			"timestamp":    float64(1730000000001),
			"dataMessage": map[string]any{
				"message":   "@bot what is the summary?",
				"timestamp": float64(1730000000001),
				"groupInfo": map[string]any{"groupId": "group-1"},
				"mentions": []any{
					map[string]any{"start": float64(0), "length": float64(4), "number": "+15559990000"},
				},
			},
		},
	}

	msg, ok := ParseSignal(payload, "+15559990000", "")
	if !ok {
		t.Fatal("expected parse success")
	}
	if msg.Sender != "+15550002222" {
		t.Errorf("sender = %q", msg.Sender)
	}
	if msg.Target.GroupID != "group-1" {
		t.Errorf("group id = %q", msg.Target.GroupID)
	}
	if !msg.DirectedToBot {
		t.Error("expected DirectedToBot=true from mention match")
	}
	if len(msg.Mentions) != 1 {
		t.Fatalf("expected 1 mention, got %d", len(msg.Mentions))
	}
}

func TestParseSignalAtPayloadParamsEnvelope(t *testing.T) {
	payload := map[string]any{
		"payload": map[string]any{
			"params": map[string]any{
				"envelope": map[string]any{
					"source": "+15550002222",
					"dataMessage": map[string]any{
						"message":   "hello",
						"timestamp": float64(42),
					},
				},
			},
		},
	}
	msg, ok := ParseSignal(payload, "", "")
	if !ok {
		t.Fatal("expected parse success")
	}
	if msg.Sender != "+15550002222" || msg.Text != "hello" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Target.IsGroup() {
		t.Error("expected DM target")
	}
	if !msg.DirectedToBot {
		t.Error("DMs are always directed to bot")
	}
}

func TestParseSignalMissingTextIsUnparsable(t *testing.T) {
	payload := map[string]any{
		"envelope": map[string]any{
			"sourceNumber": "+1",
			"dataMessage":  map[string]any{},
		},
	}
	if _, ok := ParseSignal(payload, "", ""); ok {
		t.Error("expected parse failure for empty message")
	}
}

func TestParseWhatsAppGroup(t *testing.T) {
	payload := map[string]any{
		"event": map[string]any{
			"from":   "1555@c.us",
			"text":   "hi there",
			"chatId": "1555-group@g.us",
		},
	}
	msg, ok := ParseWhatsApp(payload)
	if !ok {
		t.Fatal("expected parse success")
	}
	if !msg.Target.IsGroup() {
		t.Error("expected group target from @g.us suffix")
	}
	if msg.DirectedToBot {
		t.Error("group messages are not directed by default")
	}
}

func TestParseWhatsAppDM(t *testing.T) {
	payload := map[string]any{
		"sender":  "15550002222",
		"message": map[string]any{"body": "hello"},
	}
	msg, ok := ParseWhatsApp(payload)
	if !ok {
		t.Fatal("expected parse success")
	}
	if msg.Target.IsGroup() {
		t.Error("expected DM target")
	}
	if !msg.DirectedToBot {
		t.Error("DMs are always directed to bot")
	}
}

func TestParseTelegramMentionEntity(t *testing.T) {
	update := map[string]any{
		"message": map[string]any{
			"text": "@mybot what time is it",
			"date": float64(1700000000),
			"from": map[string]any{"id": float64(555)},
			"chat": map[string]any{"id": float64(-100123), "type": "group"},
			"entities": []any{
				map[string]any{"type": "mention", "offset": float64(0), "length": float64(6)},
			},
		},
	}
	msg, ok := ParseTelegram(update, "mybot")
	if !ok {
		t.Fatal("expected parse success")
	}
	if !msg.Target.IsGroup() {
		t.Error("expected group target")
	}
	if !msg.DirectedToBot {
		t.Error("expected mention entity to mark DirectedToBot")
	}
}

func TestParseTelegramReplyToBot(t *testing.T) {
	update := map[string]any{
		"message": map[string]any{
			"text": "yes please",
			"date": float64(1700000000),
			"from": map[string]any{"id": float64(555)},
			"chat": map[string]any{"id": float64(-100123), "type": "supergroup"},
			"reply_to_message": map[string]any{
				"from": map[string]any{"is_bot": true, "username": "mybot"},
			},
		},
	}
	msg, ok := ParseTelegram(update, "mybot")
	if !ok {
		t.Fatal("expected parse success")
	}
	if !msg.DirectedToBot {
		t.Error("expected reply-to-bot to mark DirectedToBot")
	}
}

func TestParseTelegramNonMentionGroupMessage(t *testing.T) {
	update := map[string]any{
		"message": map[string]any{
			"text": "just chatting",
			"date": float64(1700000000),
			"from": map[string]any{"id": float64(555)},
			"chat": map[string]any{"id": float64(-100123), "type": "group"},
		},
	}
	msg, ok := ParseTelegram(update, "mybot")
	if !ok {
		t.Fatal("expected parse success")
	}
	if msg.DirectedToBot {
		t.Error("expected DirectedToBot=false without mention or reply")
	}
}
