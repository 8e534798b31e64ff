// Package oracle treats the chat-completion and image-generation providers
// as external collaborators behind narrow interfaces (spec.md §6): a
// "generate reply from a message list" oracle and a "generate images from a
// prompt" oracle. The default chat implementation speaks the OpenAI-
// compatible wire format via github.com/sashabaranov/go-openai, the way
// both hyperifyio-goresearch and nonomal-WeKnora treat chat completion as a
// pluggable provider behind that same client.
package oracle

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// ErrorKind classifies a chat/image oracle failure into the three
// categories spec.md §6/§7 distinguish.
type ErrorKind string

const (
	ErrTimeout  ErrorKind = "timeout"
	ErrAuth     ErrorKind = "auth_error"
	ErrOther    ErrorKind = "other"
)

// Error is a classified oracle failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("oracle %s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// ChatMessage is one entry in the message list passed to the chat oracle.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOracle is the "generate reply from a message list" collaborator.
type ChatOracle interface {
	GenerateReply(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (string, error)
}

// OpenAICompatibleOracle implements ChatOracle against any OpenAI-compatible
// chat completions endpoint.
type OpenAICompatibleOracle struct {
	client *openai.Client
	model  string
}

// NewOpenAICompatibleOracle builds an oracle pointed at baseURL using
// apiKey, targeting model for every completion.
func NewOpenAICompatibleOracle(baseURL, apiKey, model string) *OpenAICompatibleOracle {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatibleOracle{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAICompatibleOracle) GenerateReply(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: ErrOther, Err: errors.New("no choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403 {
			return &Error{Kind: ErrAuth, Err: err}
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 401 || reqErr.HTTPStatusCode == 403 {
			return &Error{Kind: ErrAuth, Err: err}
		}
	}
	return &Error{Kind: ErrOther, Err: err}
}

// UserMessage renders a classified oracle error into the user-visible
// string families spec.md §7 specifies.
func UserMessage(service string, err error) string {
	var oe *Error
	if !errors.As(err, &oe) {
		return fmt.Sprintf("%s service is unavailable. Try again later.", service)
	}
	switch oe.Kind {
	case ErrTimeout:
		return fmt.Sprintf("%s service timed out. Try again.", service)
	case ErrAuth:
		return fmt.Sprintf("%s service authentication failed.", service)
	default:
		return fmt.Sprintf("%s service failed. Try again later.", service)
	}
}

// FollowupJSONSchema and SummaryRouterJSONSchema describe the JSON-only
// response shapes the router's model-assisted decisions (§4.6, §4.7)
// enforce via a system prompt.
type FollowupResolutionJSON struct {
	CanResolve     bool    `json:"can_resolve"`
	ResolvedPrompt string  `json:"resolved_prompt"`
	Entity         string  `json:"entity"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}

type PendingReplyJSON struct {
	CanResolve bool    `json:"can_resolve"`
	Subject    string  `json:"subject"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type AutoSearchDecisionJSON struct {
	ShouldSearch bool       `json:"should_search"`
	Mode         model.SearchMode `json:"mode"`
	Query        string     `json:"query"`
	Reason       string     `json:"reason"`
}
