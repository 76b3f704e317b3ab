// Package model defines the core domain types shared across the form
// generation pipeline.
package model

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"
)

// Domain classifies the subject area of a requested form.
type Domain string

// Known form domains.
const (
	DomainHealthcare Domain = "healthcare"
	DomainEducation  Domain = "education"
	DomainBusiness   Domain = "business"
	DomainFinance    Domain = "finance"
	DomainLegal      Domain = "legal"
	DomainRetail     Domain = "retail"
	DomainEvents     Domain = "events"
	DomainGeneral    Domain = "general"
)

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	switch d {
	case DomainHealthcare, DomainEducation, DomainBusiness, DomainFinance,
		DomainLegal, DomainRetail, DomainEvents, DomainGeneral:
		return true
	}
	return false
}

// FormType classifies the purpose of a requested form.
type FormType string

// Known form types.
const (
	FormTypeQuiz         FormType = "quiz"
	FormTypeSurvey       FormType = "survey"
	FormTypeContact      FormType = "contact"
	FormTypeRegistration FormType = "registration"
	FormTypeBooking      FormType = "booking"
	FormTypeOrder        FormType = "order"
	FormTypeApplication  FormType = "application"
	FormTypeRSVP         FormType = "rsvp"
	FormTypeDonation     FormType = "donation"
	FormTypeReview       FormType = "review"
	FormTypeGeneral      FormType = "general"
)

// Valid reports whether t is a known form type.
func (t FormType) Valid() bool {
	switch t {
	case FormTypeQuiz, FormTypeSurvey, FormTypeContact, FormTypeRegistration,
		FormTypeBooking, FormTypeOrder, FormTypeApplication, FormTypeRSVP,
		FormTypeDonation, FormTypeReview, FormTypeGeneral:
		return true
	}
	return false
}

// Tone is the writing voice used for user-facing form text.
type Tone string

// Known tones.
const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneCasual       Tone = "casual"
	ToneFormal       Tone = "formal"
)

// Valid reports whether t is a known tone.
func (t Tone) Valid() bool {
	switch t {
	case ToneProfessional, ToneFriendly, ToneCasual, ToneFormal:
		return true
	}
	return false
}

// Complexity grades how involved the requested form is.
type Complexity string

// Known complexity grades.
const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Valid reports whether c is a known complexity grade.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	}
	return false
}

// PipelineInput is the user request that drives one generation run.
type PipelineInput struct {
	Prompt        string `json:"prompt"`
	UserContext   string `json:"userContext,omitempty"`
	QuestionCount int    `json:"questionCount,omitempty"`
	ReferenceData string `json:"referenceData,omitempty"`
}

// ContentAnalysis is the structured classification of a form request,
// produced by the first pipeline stage.
type ContentAnalysis struct {
	Purpose         string     `json:"purpose"`
	Audience        string     `json:"audience"`
	Domain          Domain     `json:"domain"`
	FormType        FormType   `json:"formType"`
	IsQuiz          bool       `json:"isQuiz"`
	IsSurvey        bool       `json:"isSurvey"`
	Tone            Tone       `json:"tone"`
	Complexity      Complexity `json:"complexity"`
	KeyTopics       []string   `json:"keyTopics"`
	EssentialFields []string   `json:"essentialFields"`
	StrategicFields []string   `json:"strategicFields"`
	Confidence      float64    `json:"confidence"`
}

// Normalize replaces missing or unknown values with safe defaults so that
// downstream stages never observe an empty or inconsistent classification.
func (a *ContentAnalysis) Normalize() {
	a.Domain = Domain(strings.ToLower(strings.TrimSpace(string(a.Domain))))
	a.FormType = FormType(strings.ToLower(strings.TrimSpace(string(a.FormType))))
	a.Tone = Tone(strings.ToLower(strings.TrimSpace(string(a.Tone))))
	a.Complexity = Complexity(strings.ToLower(strings.TrimSpace(string(a.Complexity))))

	if a.Purpose == "" {
		a.Purpose = "general data collection"
	}
	if a.Audience == "" {
		a.Audience = "general"
	}
	if !a.Domain.Valid() {
		a.Domain = DomainGeneral
	}
	if !a.FormType.Valid() {
		a.FormType = FormTypeGeneral
	}
	if !a.Tone.Valid() {
		a.Tone = ToneProfessional
	}
	if !a.Complexity.Valid() {
		a.Complexity = ComplexityModerate
	}
	if a.FormType == FormTypeQuiz {
		a.IsQuiz = true
	}
	if a.FormType == FormTypeSurvey {
		a.IsSurvey = true
	}
	if a.KeyTopics == nil {
		a.KeyTopics = []string{}
	}
	if a.EssentialFields == nil {
		a.EssentialFields = []string{}
	}
	if a.StrategicFields == nil {
		a.StrategicFields = []string{}
	}
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
}

// CorrectAnswer holds the accepted answer(s) to a quiz question. It marshals
// as a bare string when it holds exactly one value, matching what form
// frontends expect for single-answer questions.
type CorrectAnswer []string

// MarshalJSON implements json.Marshaler.
func (c CorrectAnswer) MarshalJSON() ([]byte, error) {
	if len(c) == 1 {
		return json.Marshal(c[0])
	}
	return json.Marshal([]string(c))
}

// UnmarshalJSON implements json.Unmarshaler, accepting either a single
// string or a list of strings.
func (c *CorrectAnswer) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*c = nil
		} else {
			*c = CorrectAnswer{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*c = CorrectAnswer(many)
	return nil
}

// ContainedIn reports whether every accepted answer appears in options.
func (c CorrectAnswer) ContainedIn(options []string) bool {
	if len(c) == 0 {
		return false
	}
	for _, answer := range c {
		if !slices.Contains(options, answer) {
			return false
		}
	}
	return true
}

// QuizConfig holds the scoring data attached to a quiz question.
type QuizConfig struct {
	CorrectAnswer CorrectAnswer `json:"correctAnswer"`
	Points        int           `json:"points"`
	Explanation   string        `json:"explanation,omitempty"`
}

// FormField is one field of a generated form.
type FormField struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Type        string         `json:"type"`
	Required    bool           `json:"required"`
	Placeholder string         `json:"placeholder,omitempty"`
	HelpText    string         `json:"helpText,omitempty"`
	Options     []string       `json:"options,omitempty"`
	Validation  map[string]any `json:"validation,omitempty"`
	QuizConfig  *QuizConfig    `json:"quizConfig,omitempty"`
	Order       int            `json:"order"`
}

// CloneFields deep-copies a field slice so concurrent pipeline stages can
// work on it without sharing state.
func CloneFields(fields []FormField) []FormField {
	out := make([]FormField, len(fields))
	for i, f := range fields {
		out[i] = f
		out[i].Options = slices.Clone(f.Options)
		if f.Validation != nil {
			out[i].Validation = maps.Clone(f.Validation)
		}
		if f.QuizConfig != nil {
			qc := *f.QuizConfig
			qc.CorrectAnswer = slices.Clone(f.QuizConfig.CorrectAnswer)
			out[i].QuizConfig = &qc
		}
	}
	return out
}

// QuizMode holds form-level quiz presentation settings.
type QuizMode struct {
	Enabled              bool `json:"enabled"`
	ShowScoreImmediately bool `json:"showScoreImmediately"`
	ShowCorrectAnswers   bool `json:"showCorrectAnswers"`
	ShowExplanations     bool `json:"showExplanations"`
	PassingScore         int  `json:"passingScore"`
}

// PipelineStats records which stages ran and what they cost.
type PipelineStats struct {
	Stages         []string `json:"stages"`
	TotalLatencyMs int64    `json:"totalLatencyMs"`
	ModelsUsed     []string `json:"modelsUsed"`
}

// FormMetadata carries the classification and telemetry attached to a
// generated form.
type FormMetadata struct {
	FormType   FormType      `json:"formType"`
	Domain     Domain        `json:"domain"`
	Tone       Tone          `json:"tone"`
	Complexity Complexity    `json:"complexity"`
	Pipeline   PipelineStats `json:"pipeline"`
}

// GeneratedForm is the finished product of one pipeline run.
type GeneratedForm struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Fields      []FormField  `json:"fields"`
	QuizMode    *QuizMode    `json:"quizMode,omitempty"`
	Metadata    FormMetadata `json:"metadata"`
}

// FieldAnalysisResult is the classifier's recommendation for one field.
type FieldAnalysisResult struct {
	RecommendedType        string         `json:"recommendedType"`
	Confidence             float64        `json:"confidence"`
	Reasoning              string         `json:"reasoning,omitempty"`
	AlternativeTypes       []string       `json:"alternativeTypes,omitempty"`
	SuggestedOptions       []string       `json:"suggestedOptions,omitempty"`
	SuggestedCorrectAnswer string         `json:"suggestedCorrectAnswer,omitempty"`
	SuggestedPlaceholder   string         `json:"suggestedPlaceholder,omitempty"`
	SuggestedHelpText      string         `json:"suggestedHelpText,omitempty"`
	SuggestedValidation    map[string]any `json:"suggestedValidation,omitempty"`
}

// PipelineConfig tunes one generation run.
type PipelineConfig struct {
	SkipFieldOptimization   bool
	SkipQuestionEnhancement bool
	ParallelOptimization    bool
	// MaxLatency bounds the whole run. Zero means no run-level deadline;
	// per-attempt provider timeouts still apply.
	MaxLatency time.Duration
	// Tone overrides the classified tone when set to a valid value.
	Tone Tone
	// PreferredProvider is tried first on every stage call. Unknown names
	// leave the configured order unchanged.
	PreferredProvider string
}

// RunStatus is the outcome of a pipeline run.
type RunStatus string

// Run outcomes.
const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded pipeline run, successful or not.
type Run struct {
	ID         string         `json:"id"`
	Prompt     string         `json:"prompt"`
	FormType   FormType       `json:"form_type,omitempty"`
	Domain     Domain         `json:"domain,omitempty"`
	Complexity Complexity     `json:"complexity,omitempty"`
	Tone       Tone           `json:"tone,omitempty"`
	Title      string         `json:"title,omitempty"`
	FieldCount int            `json:"field_count"`
	Stages     []string       `json:"stages,omitempty"`
	ModelsUsed []string       `json:"models_used,omitempty"`
	LatencyMs  int64          `json:"latency_ms"`
	Status     RunStatus      `json:"status"`
	Error      string         `json:"error,omitempty"`
	Form       *GeneratedForm `json:"form,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewRun builds a ledger record for one pipeline outcome. When a form is
// present its own pipeline telemetry wins over the caller-observed latency.
func NewRun(id string, input PipelineInput, form *GeneratedForm, latency time.Duration, runErr error) Run {
	run := Run{
		ID:        id,
		Prompt:    input.Prompt,
		LatencyMs: latency.Milliseconds(),
		Status:    RunSucceeded,
		CreatedAt: time.Now().UTC(),
	}
	if form != nil {
		run.FormType = form.Metadata.FormType
		run.Domain = form.Metadata.Domain
		run.Complexity = form.Metadata.Complexity
		run.Tone = form.Metadata.Tone
		run.Title = form.Title
		run.FieldCount = len(form.Fields)
		run.Stages = form.Metadata.Pipeline.Stages
		run.ModelsUsed = form.Metadata.Pipeline.ModelsUsed
		run.LatencyMs = form.Metadata.Pipeline.TotalLatencyMs
		run.Form = form
	}
	if runErr != nil {
		run.Status = RunFailed
		run.Error = runErr.Error()
	}
	return run
}

// FormTypeCount is one row of the form type leaderboard.
type FormTypeCount struct {
	FormType string `json:"form_type"`
	Count    int    `json:"count"`
}

// LedgerStats summarizes the run ledger.
type LedgerStats struct {
	TotalRuns    int             `json:"total_runs"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	AvgLatencyMs int64           `json:"avg_latency_ms"`
	TopFormTypes []FormTypeCount `json:"top_form_types"`
}

type runIDCtxKey struct{}

// ContextWithRunID stores a pipeline run ID in the context.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDCtxKey{}, runID)
}

// RunIDFromContext retrieves the pipeline run ID from the context, or an
// empty string when none is set.
func RunIDFromContext(ctx context.Context) string {
	runID, _ := ctx.Value(runIDCtxKey{}).(string)
	return runID
}
