// Package analyzer classifies proposed form fields into semantic types from
// the catalog, with an AI-backed batch path and a local heuristic fallback.
// Analysis never fails a pipeline run: when no backend is reachable the
// heuristics take over.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/jsonx"
	"github.com/formsmith/formsmith/internal/llm"
	"github.com/formsmith/formsmith/internal/llm/prompts"
	"github.com/formsmith/formsmith/internal/model"
)

// Analyzer recommends semantic field types.
type Analyzer struct {
	llm    llm.Completer
	logger *slog.Logger
}

// New creates an Analyzer. A nil logger falls back to slog.Default.
func New(completer llm.Completer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{llm: completer, logger: logger}
}

// FormContext carries the form-level classification the analyzer folds into
// its prompts and heuristics.
type FormContext struct {
	FormType string
	Domain   string
	Audience string
	IsQuiz   bool
}

// AnalyzeFieldTypes recommends a semantic type for every field, exactly one
// result per input in the same order. It never returns an error: if the AI
// call or its output is unusable, every field is classified by the local
// heuristics instead.
func (a *Analyzer) AnalyzeFieldTypes(ctx context.Context, fields []model.FormField, form FormContext) []model.FieldAnalysisResult {
	if len(fields) == 0 {
		return nil
	}

	results, err := a.analyzeWithAI(ctx, fields, form)
	if err != nil {
		a.logger.Warn("field analysis falling back to heuristics", "error", err, "fields", len(fields))
		results = nil
	}

	// Exactly one result per field: pad misses with heuristics, drop
	// extras, and re-anchor unknown type keys to the catalog.
	if len(results) > len(fields) {
		results = results[:len(fields)]
	}
	for i := range fields {
		if i >= len(results) {
			results = append(results, classifyLocally(fields[i]))
			continue
		}
		if strings.TrimSpace(results[i].RecommendedType) == "" {
			results[i] = classifyLocally(fields[i])
			continue
		}
		results[i].RecommendedType = catalog.Normalize(results[i].RecommendedType)
		if results[i].Confidence < 0 {
			results[i].Confidence = 0
		}
		if results[i].Confidence > 1 {
			results[i].Confidence = 1
		}
	}

	if form.IsQuiz {
		applyQuizOverride(results)
	}

	a.backfillOptions(ctx, fields, results, form)

	return results
}

// applyQuizOverride forces free-text answer fields to multiple-choice so
// every quiz question stays scorable. Contact-style fields (email, name)
// are left alone.
func applyQuizOverride(results []model.FieldAnalysisResult) {
	for i := range results {
		switch results[i].RecommendedType {
		case catalog.KeyShortAnswer, catalog.KeyLongAnswer:
			results[i].RecommendedType = catalog.KeyMultipleChoice
			results[i].Reasoning = "quiz questions need scorable choice answers"
		}
	}
}

// backfillOptions fills in options for choice fields that lack usable ones,
// batching every flagged field into a single AI call. When the backfill
// itself fails, clearly marked placeholder options are left behind so the
// gap is visible instead of silently shipping a broken field.
func (a *Analyzer) backfillOptions(ctx context.Context, fields []model.FormField, results []model.FieldAnalysisResult, form FormContext) {
	var flagged []int
	for i := range results {
		if !catalog.IsChoice(results[i].RecommendedType) {
			continue
		}
		if usableOptions(results[i].SuggestedOptions) || usableOptions(fields[i].Options) {
			continue
		}
		flagged = append(flagged, i)
	}
	if len(flagged) == 0 {
		return
	}

	subset := make([]model.FormField, len(flagged))
	for n, i := range flagged {
		subset[n] = fields[i]
	}

	generated, err := a.generateOptionsBatch(ctx, subset)
	if err != nil {
		a.logger.Warn("option backfill failed, leaving placeholders", "error", err, "fields", len(flagged))
	}
	for n, i := range flagged {
		if err == nil && n < len(generated) && len(generated[n].Options) >= 2 {
			results[i].SuggestedOptions = generated[n].Options
			if form.IsQuiz && results[i].SuggestedCorrectAnswer == "" {
				results[i].SuggestedCorrectAnswer = generated[n].CorrectAnswer
			}
			continue
		}
		results[i].SuggestedOptions = PlaceholderOptions(4)
	}
}

// QuizOptions is one generated option set for a quiz question.
type QuizOptions struct {
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// GenerateQuizOptions invents four answer options, one correct and three
// distractors, for a single quiz question.
func (a *Analyzer) GenerateQuizOptions(ctx context.Context, label, helpText string) (QuizOptions, error) {
	sets, err := a.generateOptionsBatch(ctx, []model.FormField{{Label: label, HelpText: helpText}})
	if err != nil {
		return QuizOptions{}, err
	}
	if len(sets) == 0 || len(sets[0].Options) == 0 {
		return QuizOptions{}, errors.New("no options generated")
	}
	return sets[0], nil
}

// generateOptionsBatch asks for one option set per field, in order. Answer
// containment is self-corrected: a correct answer missing from its options
// replaces the first option.
func (a *Analyzer) generateOptionsBatch(ctx context.Context, fields []model.FormField) ([]QuizOptions, error) {
	fieldsJSON, err := marshalFieldSummaries(fields)
	if err != nil {
		return nil, err
	}
	prompt, err := prompts.BuildOptionsPrompt(prompts.OptionsData{
		FieldsJSON: fieldsJSON,
		Count:      len(fields),
	})
	if err != nil {
		return nil, err
	}

	res, err := a.llm.Complete(ctx, llm.CompletionRequest{
		Purpose:     llm.PurposeClassification,
		Messages:    systemAnd(prompt, "Generate the options now."),
		Temperature: 0.7,
		MaxTokens:   2048,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	sets, err := jsonx.Results[QuizOptions](res.Content, "quiz-options")
	if err != nil {
		return nil, err
	}

	for i := range sets {
		if sets[i].CorrectAnswer == "" || len(sets[i].Options) == 0 {
			continue
		}
		if !slices.Contains(sets[i].Options, sets[i].CorrectAnswer) {
			sets[i].Options[0] = sets[i].CorrectAnswer
		}
	}
	return sets, nil
}

// analyzeWithAI runs the batched classification call.
func (a *Analyzer) analyzeWithAI(ctx context.Context, fields []model.FormField, form FormContext) ([]model.FieldAnalysisResult, error) {
	fieldsJSON, err := marshalFieldSummaries(fields)
	if err != nil {
		return nil, err
	}
	prompt, err := prompts.BuildClassifyPrompt(prompts.ClassifyData{
		FieldsJSON:    fieldsJSON,
		FormType:      form.FormType,
		Domain:        form.Domain,
		Audience:      form.Audience,
		IsQuiz:        form.IsQuiz,
		TypeReference: catalog.BuildFieldTypeReference(),
		Count:         len(fields),
	})
	if err != nil {
		return nil, err
	}

	res, err := a.llm.Complete(ctx, llm.CompletionRequest{
		Purpose:     llm.PurposeClassification,
		Messages:    systemAnd(prompt, "Classify each field now."),
		Temperature: 0.2,
		MaxTokens:   3072,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	return jsonx.Results[model.FieldAnalysisResult](res.Content, "field-analysis")
}

// fieldSummary is the compact view of a field sent to prompts.
type fieldSummary struct {
	Label       string   `json:"label"`
	CurrentType string   `json:"currentType,omitempty"`
	Options     []string `json:"options,omitempty"`
	HelpText    string   `json:"helpText,omitempty"`
}

func marshalFieldSummaries(fields []model.FormField) (string, error) {
	summaries := make([]fieldSummary, len(fields))
	for i, f := range fields {
		summaries[i] = fieldSummary{
			Label:       f.Label,
			CurrentType: f.Type,
			Options:     f.Options,
			HelpText:    f.HelpText,
		}
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		return "", fmt.Errorf("marshal field summaries: %w", err)
	}
	return string(data), nil
}

// systemAnd pairs a system prompt with a short user turn; some backends
// reject conversations without one.
func systemAnd(system, user string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
}

var placeholderOptionRegex = regexp.MustCompile(`(?i)^\[?option\s*\d+`)

// usableOptions reports whether opts holds real answer choices rather than
// blanks or "Option N" stubs.
func usableOptions(opts []string) bool {
	if len(opts) < 2 {
		return false
	}
	for _, o := range opts {
		o = strings.TrimSpace(o)
		if o == "" || placeholderOptionRegex.MatchString(o) {
			return false
		}
	}
	return true
}

// PlaceholderOptions returns clearly marked stand-in options for a choice
// field that has no usable ones.
func PlaceholderOptions(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("[Option %d - needs editing]", i+1)
	}
	return out
}
