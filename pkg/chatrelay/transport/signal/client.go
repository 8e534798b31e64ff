// Package signal implements the outbound Signal REST-bridge transport
// client: text/image sends to a single recipient or DM, and the
// candidate-loop/fallback send behavior group messages require (spec.md
// §4.9), grounded on original_source's signal_bot_orx client plus
// group_resolver.py's send-loop description.
package signal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/groupresolve"
)

// Client sends text and image messages through a Signal CLI REST bridge.
type Client struct {
	baseURL      string
	senderNumber string
	http         *http.Client
	groups       *groupresolve.Resolver
}

// NewClient builds a Client against a bridge at baseURL, sending as
// senderNumber, resolving group ids via groups.
func NewClient(baseURL, senderNumber string, httpClient *http.Client, groups *groupresolve.Resolver) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		senderNumber: senderNumber,
		http:         httpClient,
		groups:       groups,
	}
}

// GroupSendError carries the metadata spec.md §4.9 requires when a group
// send exhausts every candidate (and, if attempted, the DM fallback).
type GroupSendError struct {
	CacheRefreshed bool
	CandidateCount int
	FinalCandidate string
	Cause          error
}

func (e *GroupSendError) Error() string {
	return fmt.Sprintf("signal: group send failed after %d candidate(s), final=%q: %v",
		e.CandidateCount, e.FinalCandidate, e.Cause)
}
func (e *GroupSendError) Unwrap() error { return e.Cause }

type sendRequest struct {
	Number            string   `json:"number"`
	Recipients        []string `json:"recipients"`
	Message           string   `json:"message,omitempty"`
	Base64Attachments []string `json:"base64_attachments,omitempty"`
}

// SendText sends text to a single, non-group recipient (a DM peer id).
func (c *Client) SendText(ctx context.Context, recipient, text string) error {
	return c.send(ctx, sendRequest{Number: c.senderNumber, Recipients: []string{recipient}, Message: text})
}

// SendImage sends image bytes with an optional caption to a single
// recipient.
func (c *Client) SendImage(ctx context.Context, recipient string, image []byte, contentType, caption string) error {
	attachment := encodeAttachment(image, contentType)
	return c.send(ctx, sendRequest{
		Number:            c.senderNumber,
		Recipients:        []string{recipient},
		Message:           caption,
		Base64Attachments: []string{attachment},
	})
}

// SendGroupText sends text to a group, trying resolved candidates in order
// (advancing past each 400) and falling back once to a DM at
// fallbackRecipient if every candidate 400s (spec.md §4.9).
func (c *Client) SendGroupText(ctx context.Context, groupID, text, fallbackRecipient string) error {
	return c.sendGroup(ctx, groupID, fallbackRecipient, sendRequest{Message: text})
}

// SendGroupImage is the group-send counterpart of SendImage.
func (c *Client) SendGroupImage(ctx context.Context, groupID string, image []byte, contentType, caption, fallbackRecipient string) error {
	attachment := encodeAttachment(image, contentType)
	return c.sendGroup(ctx, groupID, fallbackRecipient, sendRequest{Message: caption, Base64Attachments: []string{attachment}})
}

func (c *Client) sendGroup(ctx context.Context, groupID, fallbackRecipient string, template sendRequest) error {
	resolved := c.groups.Resolve(ctx, groupID)
	candidates := resolved.Recipients
	if len(candidates) == 0 {
		candidates = []string{groupID}
	}

	var lastErr error
	for _, candidate := range candidates {
		req := template
		req.Number = c.senderNumber
		req.Recipients = []string{candidate}
		err := c.send(ctx, req)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
			lastErr = err
			continue
		}
		return &GroupSendError{
			CacheRefreshed: resolved.CacheRefreshed,
			CandidateCount: len(candidates),
			FinalCandidate: candidate,
			Cause:          err,
		}
	}

	if fallbackRecipient != "" {
		req := template
		req.Number = c.senderNumber
		req.Recipients = []string{fallbackRecipient}
		if err := c.send(ctx, req); err == nil {
			return nil
		}
	}

	return &GroupSendError{
		CacheRefreshed: resolved.CacheRefreshed,
		CandidateCount: len(candidates),
		FinalCandidate: candidates[len(candidates)-1],
		Cause:          lastErr,
	}
}

// statusError is a non-2xx HTTP response from the bridge.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("signal: bridge returned status %d: %s", e.StatusCode, e.Body)
}

// send posts one request to the bridge's /v2/send endpoint, applying the
// transport retry policy (spec.md §4.9/§5): up to 2 attempts for network
// errors with 500ms backoff, plus one additional retry if the first attempt
// failed with a 5xx.
func (c *Client) send(ctx context.Context, body sendRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	attempts := 0
	extra5xxRetry := true
	for attempts < 2 {
		attempts++
		err := c.doSend(ctx, payload)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) {
			if se.StatusCode >= 500 && extra5xxRetry {
				extra5xxRetry = false
				time.Sleep(500 * time.Millisecond)
				continue
			}
			return err
		}
		lastErr = err
		if attempts < 2 {
			time.Sleep(500 * time.Millisecond)
		}
	}
	return lastErr
}

func (c *Client) doSend(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

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

func encodeAttachment(image []byte, contentType string) string {
	ext := "jpg"
	switch contentType {
	case "image/png":
		ext = "png"
	case "image/gif":
		ext = "gif"
	case "image/webp":
		ext = "webp"
	}
	encoded := base64.StdEncoding.EncodeToString(image)
	return fmt.Sprintf("data:%s;filename=image.%s;base64,%s", contentType, ext, encoded)
}

