// Package vision calls the generative AI collaborator: given an
// instruction string and a page image, it returns the model's raw text
// reply. Anything OpenAI-compatible works, including Gemini's
// compatibility endpoint.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey is returned before any network call when no
// credential was configured. The operation aborts; there is no
// automatic retry.
var ErrMissingAPIKey = errors.New("missing API key")

// ModelCallError wraps a failed call to the model service.
type ModelCallError struct {
	Err error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *ModelCallError) Unwrap() error {
	return e.Err
}

// Client wraps an OpenAI-compatible API client for vision requests.
type Client struct {
	api    *openai.Client
	model  string
	apiKey string
}

// New creates a vision client. baseURL may be empty for the default
// endpoint. An empty API key is allowed at construction so the user
// can browse history without a credential; Analyze rejects it.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:    openai.NewClientWithConfig(config),
		model:  modelName,
		apiKey: apiKey,
	}
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Analyze sends the instruction plus the page image as one user
// message and returns the raw reply text. The call blocks until the
// service answers or ctx is done; cancellation is the only timeout
// control at this layer.
func (c *Client) Analyze(ctx context.Context, prompt string, image []byte, mime string) (string, error) {
	if !c.Configured() {
		return "", ErrMissingAPIKey
	}
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	if mime == "" {
		mime = "image/jpeg"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", &ModelCallError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &ModelCallError{Err: errors.New("model returned no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}
