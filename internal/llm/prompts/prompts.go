package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates
var Templates embed.FS

var (
	referenceTagRegex   = regexp.MustCompile(`(?i)</?\s*reference(?:-data)?\b[^>]*>`)
	instructionTagRegex = regexp.MustCompile(`(?i)</?\s*system(?:-instructions)?\b[^>]*>`)
)

// EnhanceVariant represents a question enhancement prompt variant.
type EnhanceVariant string

const (
	// EnhanceStandard is the default rewrite variant for general forms.
	EnhanceStandard EnhanceVariant = "standard"
	// EnhanceQuiz polishes scored questions without changing what they test.
	EnhanceQuiz EnhanceVariant = "quiz"
	// EnhanceSurvey rewrites survey questions for unbiased wording.
	EnhanceSurvey EnhanceVariant = "survey"
)

var validVariants = map[EnhanceVariant]bool{
	EnhanceStandard: true,
	EnhanceQuiz:     true,
	EnhanceSurvey:   true,
}

var (
	loadOnce sync.Once
	loadErr  error

	analysisTemplate  *template.Template
	structureTemplate *template.Template
	classifyTemplate  *template.Template
	optionsTemplate   *template.Template
	enhanceTemplates  map[EnhanceVariant]*template.Template
)

// IsValidVariant checks if an enhancement variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[EnhanceVariant(v)]
}

// AnalysisData holds template data for the content analysis prompt.
type AnalysisData struct {
	Prompt      string
	UserContext string
}

// StructureData holds template data for the form structure prompt.
type StructureData struct {
	Prompt        string
	Purpose       string
	FormType      string
	Domain        string
	Audience      string
	Tone          string
	IsQuiz        bool
	IsSurvey      bool
	KeyTopics     string
	QuestionCount int
	ReferenceData string
	TypeReference string
}

// ClassifyData holds template data for the field classification prompt.
type ClassifyData struct {
	FieldsJSON    string
	FormType      string
	Domain        string
	Audience      string
	IsQuiz        bool
	TypeReference string
	Count         int
}

// OptionsData holds template data for the quiz option backfill prompt.
type OptionsData struct {
	FieldsJSON string
	Count      int
}

// EnhanceData holds template data for the question enhancement prompts.
type EnhanceData struct {
	FieldsJSON string
	Tone       string
	FormType   string
	Audience   string
	Count      int
}

// Load loads prompt templates from the given filesystem, normally the
// embedded Templates. It uses sync.Once to ensure templates are loaded only
// once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		parse := func(name string) *template.Template {
			if loadErr != nil {
				return nil
			}
			file := "templates/" + name + ".tmpl"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return nil
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return nil
			}
			return tmpl
		}

		analysisTemplate = parse("analysis")
		structureTemplate = parse("structure")
		classifyTemplate = parse("classify")
		optionsTemplate = parse("options")

		enhanceTemplates = make(map[EnhanceVariant]*template.Template)
		for _, v := range []EnhanceVariant{EnhanceStandard, EnhanceQuiz, EnhanceSurvey} {
			enhanceTemplates[v] = parse("enhance_" + string(v))
		}
	})
	return loadErr
}

// BuildAnalysisPrompt builds the content analysis system prompt.
func BuildAnalysisPrompt(data AnalysisData) (string, error) {
	if analysisTemplate == nil {
		return "", notInitialized()
	}
	data.Prompt = sanitizeText(data.Prompt)
	data.UserContext = sanitizeText(data.UserContext)
	return execute(analysisTemplate, data)
}

// BuildStructurePrompt builds the form structure system prompt.
func BuildStructurePrompt(data StructureData) (string, error) {
	if structureTemplate == nil {
		return "", notInitialized()
	}
	data.Prompt = sanitizeText(data.Prompt)
	data.ReferenceData = sanitizeReference(data.ReferenceData)
	return execute(structureTemplate, data)
}

// BuildClassifyPrompt builds the field classification system prompt.
func BuildClassifyPrompt(data ClassifyData) (string, error) {
	if classifyTemplate == nil {
		return "", notInitialized()
	}
	return execute(classifyTemplate, data)
}

// BuildOptionsPrompt builds the quiz option backfill system prompt.
func BuildOptionsPrompt(data OptionsData) (string, error) {
	if optionsTemplate == nil {
		return "", notInitialized()
	}
	return execute(optionsTemplate, data)
}

// BuildEnhancePrompt builds the question enhancement system prompt for the
// given variant.
func BuildEnhancePrompt(variant EnhanceVariant, data EnhanceData) (string, error) {
	if enhanceTemplates == nil {
		return "", notInitialized()
	}
	tmpl, ok := enhanceTemplates[variant]
	if !ok || tmpl == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid enhancement variant: " + string(variant))
	}
	return execute(tmpl, data)
}

func notInitialized() error {
	if loadErr != nil {
		return fmt.Errorf("templates load failed: %w", loadErr)
	}
	return errors.New("templates not initialized: call Load first")
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeText strips markup that could impersonate the prompt's own
// structure from user-supplied text.
func sanitizeText(text string) string {
	text = referenceTagRegex.ReplaceAllString(text, "")
	text = instructionTagRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// maxReferenceRunes bounds how much pasted reference material a prompt
// carries. Longer documents drown the instructions and blow past smaller
// context windows, so only a prefix is kept.
const maxReferenceRunes = 8000

func sanitizeReference(text string) string {
	text = sanitizeText(text)
	if utf8.RuneCountInString(text) > maxReferenceRunes {
		runes := []rune(text)
		runes = runes[:maxReferenceRunes]
		text = string(runes) + "\n\n[Reference material truncated due to length]"
	}
	return text
}
