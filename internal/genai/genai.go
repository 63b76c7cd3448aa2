// Package genai wraps the generative-language backend behind a small
// gateway: model selection with fallback, fixed safety configuration, and
// synchronous plus streaming generation.
//
// The backend is Gemini's OpenAI-compatible endpoint, driven through the
// openai-go client. A missing credential yields a disabled gateway whose
// calls fail with ErrDisabled; it never crashes the process.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/pagination"
	"github.com/openai/openai-go/packages/ssestream"
)

// DefaultBaseURL is Gemini's OpenAI-compatible API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultModel is used when none of the preferred models is available.
const DefaultModel = "gemini-1.5-flash"

// DefaultModelPreferences is the ordered model preference list.
var DefaultModelPreferences = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash-lite-preview-02-05",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
}

// Error variables for gateway failure modes.
var (
	// ErrDisabled is returned by every call on a gateway constructed
	// without a credential. Callers surface it to the user; no retry.
	ErrDisabled = errors.New("model gateway disabled: no API key configured")
	// ErrNoChoices indicates the backend returned an empty choice list.
	ErrNoChoices = errors.New("no choices returned from model")
)

// SafetySetting is one harm-category threshold entry sent with every request.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// DefaultSafetySettings returns the fixed safety configuration: all four
// harm categories at the least restrictive threshold. This is a deliberate
// product decision, not a default to be tightened silently.
func DefaultSafetySettings() []SafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, SafetySetting{Category: c, Threshold: "BLOCK_NONE"})
	}
	return settings
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// modelService defines the minimal interface for model listing.
type modelService interface {
	List(ctx context.Context, opts ...option.RequestOption) (*pagination.Page[openai.Model], error)
}

// chunkSource yields incremental text chunks from a streaming generation.
type chunkSource interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// streamStarter opens a streaming generation call.
type streamStarter func(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) chunkSource

// Opts holds configuration for the gateway.
type Opts struct {
	APIKey      string
	BaseURL     string
	Preferences []string
	HTTPClient  *http.Client
}

// Option configures the gateway.
type Option func(*Opts)

// WithAPIKey sets the backend API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the backend endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModelPreferences overrides the ordered model preference list.
func WithModelPreferences(prefs []string) Option {
	return func(o *Opts) { o.Preferences = prefs }
}

// WithHTTPClient sets a custom HTTP client for the backend connection.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = hc }
}

// Client is the model gateway. Construct it once and share it; it holds no
// per-session state and is safe for concurrent use.
type Client struct {
	chat        chatService
	models      modelService
	startStream streamStarter
	prefs       []string
	safety      []SafetySetting
	disabled    bool

	selectOnce  sync.Once
	chosenModel string
}

// NewClient creates a gateway from options. When no API key is configured
// (option or GEMINI_API_KEY / GOOGLE_API_KEY environment), the returned
// gateway is disabled rather than nil: every call fails with ErrDisabled.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(cfg.Preferences) == 0 {
		cfg.Preferences = DefaultModelPreferences
	}

	c := &Client{
		prefs:  cfg.Preferences,
		safety: DefaultSafetySettings(),
	}

	if cfg.APIKey == "" {
		slog.Warn("genai.NewClient: no API key configured, gateway disabled")
		c.disabled = true
		return c
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	}
	if cfg.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.HTTPClient))
	}
	cli := openai.NewClient(reqOpts...)
	c.chat = &cli.Chat.Completions
	c.models = &cli.Models
	c.startStream = func(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) chunkSource {
		return &sseSource{stream: cli.Chat.Completions.NewStreaming(ctx, params, opts...)}
	}
	slog.Debug("genai.NewClient: gateway configured", "base_url", cfg.BaseURL, "preferences", len(cfg.Preferences))
	return c
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the process-wide gateway, constructing it on first call.
// The instance is shared read-only across all sessions.
func Default(opts ...Option) *Client {
	defaultOnce.Do(func() {
		defaultClient = NewClient(opts...)
	})
	return defaultClient
}

// Disabled reports whether the gateway was constructed without a credential.
func (c *Client) Disabled() bool {
	return c.disabled
}

// Model resolves the generation model name, once per process lifetime. The
// preference list is intersected with the models the backend reports; if the
// listing fails the preference list is used verbatim, and if no preferred
// name is available the fixed default wins.
func (c *Client) Model(ctx context.Context) string {
	c.selectOnce.Do(func() {
		available := c.listAvailable(ctx)
		if available == nil {
			slog.Warn("genai.Model: model listing unavailable, using preference list verbatim")
			available = make(map[string]bool, len(c.prefs))
			for _, p := range c.prefs {
				available[p] = true
			}
		}
		for _, p := range c.prefs {
			if available[p] {
				c.chosenModel = p
				break
			}
		}
		if c.chosenModel == "" {
			c.chosenModel = DefaultModel
		}
		slog.Info("genai.Model: model selected", "model", c.chosenModel)
	})
	return c.chosenModel
}

// listAvailable queries the backend for available model identifiers.
// Returns nil when the listing call fails or the gateway is disabled.
func (c *Client) listAvailable(ctx context.Context) map[string]bool {
	if c.models == nil {
		return nil
	}
	page, err := c.models.List(ctx)
	if err != nil {
		slog.Warn("genai.listAvailable: model listing failed", "error", err)
		return nil
	}
	available := make(map[string]bool, len(page.Data))
	for _, m := range page.Data {
		// Gemini reports IDs as "models/<name>".
		available[strings.TrimPrefix(m.ID, "models/")] = true
	}
	slog.Debug("genai.listAvailable: models listed", "count", len(available))
	return available
}

// Generate produces the complete response text for a prompt, with an
// optional data-URI image attachment. There is no retry: errors are returned
// verbatim for the caller to surface.
func (c *Client) Generate(ctx context.Context, prompt, image string) (string, error) {
	if c.disabled {
		return "", ErrDisabled
	}
	resp, err := c.chat.New(ctx, c.buildParams(ctx, prompt, image), c.requestOpts()...)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream opens a streaming generation call. The returned stream is
// lazy, finite and non-restartable; concatenating its chunks equals the
// synchronous result for the same input.
func (c *Client) GenerateStream(ctx context.Context, prompt, image string) (*Stream, error) {
	if c.disabled {
		return nil, ErrDisabled
	}
	src := c.startStream(ctx, c.buildParams(ctx, prompt, image), c.requestOpts()...)
	return &Stream{src: src}, nil
}

func (c *Client) requestOpts() []option.RequestOption {
	return []option.RequestOption{
		option.WithJSONSet("safety_settings", c.safety),
	}
}

func (c *Client) buildParams(ctx context.Context, prompt, image string) openai.ChatCompletionNewParams {
	var message openai.ChatCompletionMessageParamUnion
	if image == "" {
		message = openai.UserMessage(prompt)
	} else {
		parts := []openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: image}),
		}
		message = openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: parts,
				},
			},
		}
	}
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.Model(ctx)),
		Messages: []openai.ChatCompletionMessageParamUnion{message},
	}
}

// Stream is a lazy pull-based sequence of incremental text chunks.
type Stream struct {
	src chunkSource
}

// Next advances to the next chunk. It returns false when the sequence ends
// or fails; check Err afterwards.
func (s *Stream) Next() bool {
	return s.src.Next()
}

// Current returns the chunk most recently advanced to.
func (s *Stream) Current() string {
	return s.src.Current()
}

// Err returns the terminal error of the stream, if any.
func (s *Stream) Err() error {
	return s.src.Err()
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.src.Close()
}

// Collect drains the stream and returns the concatenated text.
func (s *Stream) Collect() (string, error) {
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Current())
	}
	if err := s.Err(); err != nil {
		return "", fmt.Errorf("stream failed: %w", err)
	}
	return b.String(), nil
}

// sseSource adapts the openai-go SSE stream to chunkSource, skipping chunks
// without text deltas.
type sseSource struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (s *sseSource) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			s.current = chunk.Choices[0].Delta.Content
			return true
		}
	}
	return false
}

func (s *sseSource) Current() string { return s.current }
func (s *sseSource) Err() error      { return s.stream.Err() }
func (s *sseSource) Close() error    { return s.stream.Close() }
