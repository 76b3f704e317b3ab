// Package llm provides a chat completion client that fans out across an
// ordered list of OpenAI-compatible backends, rotating models on rate
// limits and falling through to the next backend on other failures.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/formsmith/formsmith/internal/model"
	"github.com/formsmith/formsmith/internal/telemetry"
)

// Purpose routes a completion to the model tier suited for it.
type Purpose string

const (
	// PurposeAnalysis is quick classification work on a fast tier.
	PurposeAnalysis Purpose = "analysis"
	// PurposeStructure is full form structure generation on a quality tier.
	PurposeStructure Purpose = "structure"
	// PurposeLongContext is structure generation over large reference
	// material, needing both window size and extraction accuracy.
	PurposeLongContext Purpose = "long-context"
	// PurposeClassification is batched field type classification.
	PurposeClassification Purpose = "classification"
	// PurposeEnhancement is batched question rewriting.
	PurposeEnhancement Purpose = "enhancement"
)

// purposeOrder is the fallback scan order when a backend has no model list
// for the requested purpose.
var purposeOrder = []Purpose{
	PurposeStructure,
	PurposeLongContext,
	PurposeAnalysis,
	PurposeClassification,
	PurposeEnhancement,
}

// Message roles in provider-neutral form.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one chat completion, independent of which
// backend ends up serving it.
type CompletionRequest struct {
	Purpose     Purpose
	Messages    []Message
	Temperature float32
	MaxTokens   int
	// JSONMode asks for a JSON-only response. Backends with native support
	// get response_format json_object; the rest get a system instruction.
	JSONMode bool
	// Preferred moves the named provider to the front of the priority list
	// for this call only.
	Preferred string
}

// CompletionResult is the first successful completion, tagged with the
// backend and model that produced it.
type CompletionResult struct {
	Content  string
	Provider string
	Model    string
}

// Completer is the completion surface the pipeline stages consume.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// backend is one configured OpenAI-compatible API.
type backend struct {
	name     string
	api      *openai.Client
	jsonMode bool
	models   map[Purpose][]string
	fallback []string
}

// modelsFor returns the ordered rotation list for a purpose.
func (b *backend) modelsFor(p Purpose) []string {
	if ms := b.models[p]; len(ms) > 0 {
		return ms
	}
	if len(b.fallback) > 0 {
		return b.fallback
	}
	for _, alt := range purposeOrder {
		if ms := b.models[alt]; len(ms) > 0 {
			return ms
		}
	}
	return nil
}

// Client is a multi-backend chat completion client.
type Client struct {
	backends []*backend
	timeout  time.Duration
	logger   *slog.Logger
}

// Options configures a Client.
type Options struct {
	// Timeout bounds each individual provider attempt. This is the single
	// place hard deadlines are enforced; callers may still carry shorter
	// context deadlines.
	Timeout time.Duration
	Logger  *slog.Logger
}

const defaultAttemptTimeout = 90 * time.Second

// New builds a Client from an ordered adapter list. Adapters without a name
// or base URL are skipped; at least one usable adapter is required.
func New(configs []AdapterConfig, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultAttemptTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var backends []*backend
	for _, ac := range configs {
		if ac.Name == "" || ac.BaseURL == "" {
			continue
		}
		config := openai.DefaultConfig(ac.APIKey)
		config.BaseURL = ac.BaseURL
		backends = append(backends, &backend{
			name:     ac.Name,
			api:      openai.NewClientWithConfig(config),
			jsonMode: ac.JSONMode,
			models:   ac.Models,
			fallback: ac.DefaultModels,
		})
	}
	if len(backends) == 0 {
		return nil, errors.New("no providers configured: set OPENROUTER_API_KEY, GROQ_API_KEY or OPENAI_API_KEY, or point --ollama-url at a local server")
	}
	return &Client{backends: backends, timeout: opts.Timeout, logger: opts.Logger}, nil
}

// Providers returns the configured backend names in priority order.
func (c *Client) Providers() []string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.name
	}
	return names
}

// Complete walks the backend priority list until one attempt succeeds. A
// rate-limited attempt rotates to the next model on the same backend; any
// other failure moves on to the next backend. When everything fails the
// returned error is an *ExhaustedError carrying every attempt.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if len(req.Messages) == 0 {
		return CompletionResult{}, errors.New("completion request has no messages")
	}

	order := c.backends
	if req.Preferred != "" {
		order = reorder(order, req.Preferred)
	}

	var attempts []Attempt
	for _, b := range order {
		models := b.modelsFor(req.Purpose)
		if len(models) == 0 {
			attempts = append(attempts, Attempt{Provider: b.name, Err: errNoModels})
			continue
		}
		for _, modelName := range models {
			result, err := c.attempt(ctx, b, modelName, req)
			if err == nil {
				return result, nil
			}
			attempts = append(attempts, Attempt{Provider: b.name, Model: modelName, Err: err})
			if ctx.Err() != nil {
				// The caller's context is gone; more attempts are pointless.
				return CompletionResult{}, &ExhaustedError{Purpose: req.Purpose, Attempts: attempts}
			}
			if !isRateLimited(err) {
				break
			}
		}
	}
	return CompletionResult{}, &ExhaustedError{Purpose: req.Purpose, Attempts: attempts}
}

// attempt performs a single model call with the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, b *backend, modelName string, req CompletionRequest) (CompletionResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    translate(req.Messages, req.JSONMode && !b.jsonMode),
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.JSONMode && b.jsonMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := b.api.CreateChatCompletion(attemptCtx, chatReq)
	elapsed := time.Since(start)

	status := "ok"
	switch {
	case err != nil && isRateLimited(err):
		status = "rate_limited"
	case err != nil:
		status = "error"
	case len(resp.Choices) == 0:
		status = "empty"
	}
	telemetry.ProviderCallTotal.WithLabelValues(b.name, modelName, status).Inc()
	telemetry.ProviderCallDuration.WithLabelValues(b.name, modelName).Observe(elapsed.Seconds())

	level := slog.LevelDebug
	if status != "ok" {
		level = slog.LevelWarn
	}
	attrs := []any{
		"provider", b.name,
		"model", modelName,
		"purpose", string(req.Purpose),
		"status", status,
		"elapsed_ms", elapsed.Milliseconds(),
	}
	if runID := model.RunIDFromContext(ctx); runID != "" {
		attrs = append(attrs, "run_id", runID)
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	c.logger.Log(ctx, level, "provider attempt", attrs...)

	if err != nil {
		return CompletionResult{}, err
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, errors.New("provider returned no choices")
	}
	return CompletionResult{
		Content:  resp.Choices[0].Message.Content,
		Provider: b.name,
		Model:    modelName,
	}, nil
}

// translate converts neutral messages to the OpenAI wire shape. When the
// backend lacks native JSON mode, the JSON requirement is folded into the
// system message instead.
func translate(messages []Message, appendJSONHint bool) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	if appendJSONHint {
		const hint = "Respond with a single JSON value and nothing else. No prose, no code fences."
		if len(out) > 0 && out[0].Role == openai.ChatMessageRoleSystem {
			out[0].Content += "\n\n" + hint
		} else {
			out = slices.Insert(out, 0, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: hint,
			})
		}
	}
	return out
}

// reorder returns the backends with the named provider first, preserving
// the relative order of the rest. Unknown names leave the order untouched.
func reorder(backends []*backend, preferred string) []*backend {
	out := make([]*backend, 0, len(backends))
	for _, b := range backends {
		if strings.EqualFold(b.name, preferred) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return backends
	}
	for _, b := range backends {
		if !strings.EqualFold(b.name, preferred) {
			out = append(out, b)
		}
	}
	return out
}

// isRateLimited reports whether err is an HTTP 429 or a rate limit error
// code from an OpenAI-compatible backend.
func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "rate_limit") {
			return true
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
