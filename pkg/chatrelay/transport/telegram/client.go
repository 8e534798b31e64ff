// Package telegram implements the Telegram outbound transport client: text
// and photo replies sent via the Bot API. Inbound updates arrive over the
// webhook ingress (pkg/chatrelay/webhook), so this package only needs the
// send half of the Bot API — grounded on the go-telegram-bot-api/v5 client
// the retrieval pack's rakunlabs-at repo wires for the same purpose.
package telegram

import (
	"bytes"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client sends text and photo messages through a Telegram bot token.
type Client struct {
	bot *tgbotapi.BotAPI
}

// NewClient builds a Client authenticated with token.
func NewClient(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Client{bot: bot}, nil
}

// SendText sends text to chatID (a Telegram chat id, numeric-string form).
func (c *Client) SendText(chatID string, text string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(id, text)
	_, err = c.bot.Send(msg)
	return err
}

// SendImage sends image bytes to chatID with an optional caption.
func (c *Client) SendImage(chatID string, image []byte, contentType, caption string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	file := tgbotapi.FileBytes{Name: photoFilename(contentType), Bytes: bytes.Clone(image)}
	photo := tgbotapi.NewPhoto(id, file)
	photo.Caption = caption
	_, err = c.bot.Send(photo)
	return err
}

func parseChatID(chatID string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(chatID, "%d", &id); err != nil {
		return 0, fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	return id, nil
}

func photoFilename(contentType string) string {
	switch contentType {
	case "image/png":
		return "image.png"
	case "image/gif":
		return "image.gif"
	case "image/webp":
		return "image.webp"
	default:
		return "image.jpg"
	}
}
