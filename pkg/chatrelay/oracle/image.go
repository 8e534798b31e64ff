package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// GeneratedImage is one image-generation result: raw bytes plus its
// content type.
type GeneratedImage struct {
	Bytes       []byte
	ContentType string
}

// ImageOracle is the "generate images from a prompt" collaborator
// (spec.md §6). Implementations accept either inline data URLs or https
// URLs, following the returned image to fetch bytes in the latter case.
type ImageOracle interface {
	GenerateImages(ctx context.Context, prompt, model string) ([]GeneratedImage, error)
}

// OpenAICompatibleImageOracle implements ImageOracle against an
// OpenAI-compatible image generation endpoint.
type OpenAICompatibleImageOracle struct {
	client *openai.Client
	http   *http.Client
}

func NewOpenAICompatibleImageOracle(baseURL, apiKey string) *OpenAICompatibleImageOracle {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatibleImageOracle{client: openai.NewClientWithConfig(cfg), http: &http.Client{}}
}

func (o *OpenAICompatibleImageOracle) GenerateImages(ctx context.Context, prompt, model string) ([]GeneratedImage, error) {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	out := make([]GeneratedImage, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.B64JSON != "" {
			raw, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				continue
			}
			out = append(out, GeneratedImage{Bytes: raw, ContentType: "image/png"})
			continue
		}
		if d.URL != "" && strings.HasPrefix(d.URL, "https://") {
			img, ct, err := fetchImageBytes(ctx, o.http, d.URL)
			if err == nil {
				out = append(out, GeneratedImage{Bytes: img, ContentType: ct})
			}
		}
	}
	if len(out) == 0 {
		return nil, &Error{Kind: ErrOther, Err: fmt.Errorf("no images returned")}
	}
	return out, nil
}

func fetchImageBytes(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("image fetch: status %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, "", err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return buf.Bytes(), ct, nil
}
