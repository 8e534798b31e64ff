// Package whatsapp implements the outbound WhatsApp bridge transport
// client: text and image sends against a bridge's /send/text and
// /send/image endpoints, with an optional bearer token (spec.md §6).
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client sends text and image messages through a WhatsApp bridge.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a Client against a bridge at baseURL, authenticating
// with an optional bearer token (empty disables the Authorization header).
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

type textRequest struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

type imageRequest struct {
	ChatID      string `json:"chatId"`
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
	Caption     string `json:"caption,omitempty"`
}

// SendText sends text to chatID.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	return c.post(ctx, "/send/text", textRequest{ChatID: chatID, Text: text})
}

// SendImage sends image bytes to chatID with an optional caption.
func (c *Client) SendImage(ctx context.Context, chatID string, image []byte, contentType, caption string) error {
	return c.post(ctx, "/send/image", imageRequest{
		ChatID:      chatID,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		MimeType:    contentType,
		Caption:     caption,
	})
}

// statusError is a non-2xx HTTP response from the bridge.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("whatsapp: bridge returned status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		buf := make([]byte, 512)
		n, _ := resp.Body.Read(buf)
		return &statusError{StatusCode: resp.StatusCode, Body: string(buf[:n])}
	}
	return nil
}
