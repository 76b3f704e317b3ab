// Package enhancer rewrites form questions for clarity and tone. Like field
// analysis, enhancement is best effort and never fails a run: when no
// backend answers, a deterministic tone-keyed rewrite steps in.
package enhancer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/formsmith/formsmith/internal/jsonx"
	"github.com/formsmith/formsmith/internal/llm"
	"github.com/formsmith/formsmith/internal/llm/prompts"
	"github.com/formsmith/formsmith/internal/model"
)

// Enhancer rewrites labels, help text, and placeholders.
type Enhancer struct {
	llm    llm.Completer
	logger *slog.Logger
}

// New creates an Enhancer. A nil logger falls back to slog.Default.
func New(completer llm.Completer, logger *slog.Logger) *Enhancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{llm: completer, logger: logger}
}

// Options shapes one enhancement batch.
type Options struct {
	Tone     model.Tone
	FormType string
	Audience string
}

// EnhancedQuestion is the rewritten text for one field, aligned with the
// input by index. Empty values mean "keep the original".
type EnhancedQuestion struct {
	Label       string   `json:"label"`
	HelpText    string   `json:"helpText,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// Enhance rewrites general form questions. It returns exactly one entry per
// field and never fails: fields the AI pass misses are rewritten locally.
func (e *Enhancer) Enhance(ctx context.Context, fields []model.FormField, opts Options) []EnhancedQuestion {
	return e.enhance(ctx, fields, opts, prompts.EnhanceStandard)
}

// EnhanceQuiz rewrites quiz questions without changing what they test.
func (e *Enhancer) EnhanceQuiz(ctx context.Context, fields []model.FormField, opts Options) []EnhancedQuestion {
	return e.enhance(ctx, fields, opts, prompts.EnhanceQuiz)
}

// EnhanceSurvey rewrites survey questions for unbiased, single-subject
// wording.
func (e *Enhancer) EnhanceSurvey(ctx context.Context, fields []model.FormField, opts Options) []EnhancedQuestion {
	return e.enhance(ctx, fields, opts, prompts.EnhanceSurvey)
}

func (e *Enhancer) enhance(ctx context.Context, fields []model.FormField, opts Options, variant prompts.EnhanceVariant) []EnhancedQuestion {
	if len(fields) == 0 {
		return nil
	}
	if !opts.Tone.Valid() {
		opts.Tone = model.ToneProfessional
	}

	enhanced, err := e.enhanceWithAI(ctx, fields, opts, variant)
	if err != nil {
		e.logger.Warn("question enhancement falling back to local rewrite",
			"error", err, "fields", len(fields), "variant", string(variant))
		enhanced = nil
	}

	if len(enhanced) > len(fields) {
		enhanced = enhanced[:len(fields)]
	}
	for i := range fields {
		if i >= len(enhanced) {
			enhanced = append(enhanced, enhanceQuestionLocally(fields[i], opts, variant))
			continue
		}
		enhanced[i] = sanitizeEnhanced(fields[i], enhanced[i])
	}
	return enhanced
}

// sanitizeEnhanced guards one rewrite against degenerate output: a blank
// label keeps the original, and an option list that changed length is
// dropped so stored answers keep pointing at the right option.
func sanitizeEnhanced(field model.FormField, eq EnhancedQuestion) EnhancedQuestion {
	eq.Label = strings.TrimSpace(eq.Label)
	if eq.Label == "" {
		eq.Label = field.Label
	}
	if len(eq.Options) > 0 && len(eq.Options) != len(field.Options) {
		eq.Options = nil
	}
	return eq
}

func (e *Enhancer) enhanceWithAI(ctx context.Context, fields []model.FormField, opts Options, variant prompts.EnhanceVariant) ([]EnhancedQuestion, error) {
	fieldsJSON, err := marshalQuestions(fields)
	if err != nil {
		return nil, err
	}
	prompt, err := prompts.BuildEnhancePrompt(variant, prompts.EnhanceData{
		FieldsJSON: fieldsJSON,
		Tone:       string(opts.Tone),
		FormType:   opts.FormType,
		Audience:   opts.Audience,
		Count:      len(fields),
	})
	if err != nil {
		return nil, err
	}

	res, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Purpose: llm.PurposeEnhancement,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompt},
			{Role: llm.RoleUser, Content: "Rewrite the questions now."},
		},
		Temperature: 0.5,
		MaxTokens:   4096,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	return jsonx.Results[EnhancedQuestion](res.Content, "question-enhancement")
}

// question is the compact view of a field sent to prompts.
type question struct {
	Label       string   `json:"label"`
	Type        string   `json:"type,omitempty"`
	HelpText    string   `json:"helpText,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"`
}

func marshalQuestions(fields []model.FormField) (string, error) {
	qs := make([]question, len(fields))
	for i, f := range fields {
		qs[i] = question{
			Label:       f.Label,
			Type:        f.Type,
			HelpText:    f.HelpText,
			Placeholder: f.Placeholder,
			Options:     f.Options,
		}
	}
	data, err := json.Marshal(qs)
	if err != nil {
		return "", fmt.Errorf("marshal questions: %w", err)
	}
	return string(data), nil
}
