package router

import (
	"context"
	"fmt"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/transport/signal"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/transport/telegram"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/transport/whatsapp"
)

// Sender picks the outbound transport client for an IncomingMessage and
// applies the configured group-reply policy (spec.md §4.1.2): "group"
// answers in the originating group/channel (with Signal's candidate-loop
// fallback), "dm_fallback" always redirects to a DM with the sender.
type Sender struct {
	signal         *signal.Client
	telegram       *telegram.Client
	whatsapp       *whatsapp.Client
	groupReplyMode config.GroupReplyMode
}

func NewSender(signalClient *signal.Client, telegramClient *telegram.Client, whatsappClient *whatsapp.Client, groupReplyMode config.GroupReplyMode) *Sender {
	return &Sender{signal: signalClient, telegram: telegramClient, whatsapp: whatsappClient, groupReplyMode: groupReplyMode}
}

func (s *Sender) replyAsGroup(msg model.IncomingMessage) bool {
	return msg.Target.IsGroup() && s.groupReplyMode == config.GroupReplyGroup
}

// SendText delivers text to msg's resolved reply target.
func (s *Sender) SendText(ctx context.Context, msg model.IncomingMessage, text string) error {
	switch msg.Transport {
	case model.TransportSignal:
		if s.replyAsGroup(msg) {
			return s.signal.SendGroupText(ctx, msg.Target.GroupID, text, msg.Sender)
		}
		return s.signal.SendText(ctx, msg.Target.Recipient, text)

	case model.TransportTelegram:
		if s.replyAsGroup(msg) {
			return s.telegram.SendText(msg.Target.GroupID, text)
		}
		return s.telegram.SendText(msg.Target.Recipient, text)

	case model.TransportWhatsApp:
		chatID := msg.Target.Recipient
		if s.replyAsGroup(msg) {
			chatID = msg.Target.GroupID
		}
		return s.whatsapp.SendText(ctx, chatID, text)

	default:
		return fmt.Errorf("router: unknown transport %q", msg.Transport)
	}
}

// SendImage delivers image bytes with an optional caption to msg's resolved
// reply target.
func (s *Sender) SendImage(ctx context.Context, msg model.IncomingMessage, image []byte, contentType, caption string) error {
	switch msg.Transport {
	case model.TransportSignal:
		if s.replyAsGroup(msg) {
			return s.signal.SendGroupImage(ctx, msg.Target.GroupID, image, contentType, caption, msg.Sender)
		}
		return s.signal.SendImage(ctx, msg.Target.Recipient, image, contentType, caption)

	case model.TransportTelegram:
		if s.replyAsGroup(msg) {
			return s.telegram.SendImage(msg.Target.GroupID, image, contentType, caption)
		}
		return s.telegram.SendImage(msg.Target.Recipient, image, contentType, caption)

	case model.TransportWhatsApp:
		chatID := msg.Target.Recipient
		if s.replyAsGroup(msg) {
			chatID = msg.Target.GroupID
		}
		return s.whatsapp.SendImage(ctx, chatID, image, contentType, caption)

	default:
		return fmt.Errorf("router: unknown transport %q", msg.Transport)
	}
}
