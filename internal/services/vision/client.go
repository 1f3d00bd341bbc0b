package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"lightbox/internal/photo"
	"lightbox/internal/services"
)

const (
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 60 * time.Second
	jsonMIMEType   = "application/json"
)

// Analyzer is the collaborator the vision units depend on.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (*photo.Analysis, error)
	DetectFaces(ctx context.Context, image []byte, mimeType string, width, height int) ([]photo.Face, error)
}

// Config captures the runtime settings for the Gemini client.
type Config struct {
	APIKey        string
	Model         string
	Timeout       time.Duration
	MinConfidence float64
}

// GenerateFunc sends a prompt plus one inline image and returns the model's
// raw text reply.
type GenerateFunc func(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)

// Client implements Analyzer on top of the genai SDK.
type Client struct {
	cfg      Config
	generate GenerateFunc
}

// Option customizes the client.
type Option func(*Client)

// WithGenerator replaces the Gemini call, mainly for tests.
func WithGenerator(fn GenerateFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.generate = fn
		}
	}
}

// NewClient builds a Gemini-backed analyzer. The SDK client is only created
// when no generator override is supplied.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(client)
	}
	if client.generate != nil {
		return client, nil
	}
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "vision", "init", "api key required", nil)
	}
	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "vision", "init", "create gemini client", err)
	}
	client.generate = geminiGenerator(sdk, cfg.Model)
	return client, nil
}

func geminiGenerator(sdk *genai.Client, model string) GenerateFunc {
	return func(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
		contents := []*genai.Content{{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				genai.NewPartFromBytes(image, mimeType),
				genai.NewPartFromText(prompt),
			},
		}}
		resp, err := sdk.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
			ResponseMIMEType: jsonMIMEType,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", errors.New("empty response")
		}
		var b strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		return b.String(), nil
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Analyze asks for caption, tags, categories, objects and content scores.
func (c *Client) Analyze(ctx context.Context, image []byte, mimeType string) (*photo.Analysis, error) {
	content, err := c.call(ctx, "analyze", analysisPrompt, image, mimeType)
	if err != nil {
		return nil, err
	}
	var payload analysisPayload
	if err := decodeJSON(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "analyze", "decode", "parse gemini reply", err)
	}
	analysis := payload.toAnalysis(c.cfg.MinConfidence)
	analysis.Model = c.cfg.Model
	return analysis, nil
}

// DetectFaces returns faces with boxes scaled to width x height.
func (c *Client) DetectFaces(ctx context.Context, image []byte, mimeType string, width, height int) ([]photo.Face, error) {
	content, err := c.call(ctx, "face", facePrompt, image, mimeType)
	if err != nil {
		return nil, err
	}
	var payload facesPayload
	if err := decodeJSON(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "face", "decode", "parse gemini reply", err)
	}
	return payload.toFaces(width, height, c.cfg.MinConfidence), nil
}

func (c *Client) call(ctx context.Context, unit, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", services.Wrap(services.ErrValidation, unit, "request", "image payload is empty", nil)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	content, err := c.generate(callCtx, prompt, image, mimeType)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return "", ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return "", services.Wrap(services.ErrTimeout, unit, "request", fmt.Sprintf("gemini did not answer within %s", c.cfg.Timeout), err)
		default:
			return "", services.Wrap(services.ErrExternalTool, unit, "request", "gemini request failed", err)
		}
	}
	if strings.TrimSpace(content) == "" {
		return "", services.Wrap(services.ErrExternalTool, unit, "request", "gemini returned empty content", nil)
	}
	return content, nil
}
