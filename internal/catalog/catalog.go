// Package catalog is the registry of semantic field types the pipeline can
// assign to form fields. The registry feeds two prompt fragments: a grouped
// reference for structure generation and a denser signal list for field
// classification.
package catalog

import "strings"

// Catalog keys. Code that assigns types refers to these constants; the LLM
// prompts receive the same strings through the reference builders.
const (
	KeyShortAnswer    = "short-answer"
	KeyLongAnswer     = "long-answer"
	KeyEmail          = "email"
	KeyPhone          = "phone"
	KeyFullName       = "full-name"
	KeyAddress        = "address"
	KeyCountry        = "country"
	KeyZipCode        = "zip-code"
	KeyNumber         = "number"
	KeyCurrency       = "currency"
	KeyURL            = "url"
	KeyDate           = "date"
	KeyTime           = "time"
	KeyDateRange      = "date-range"
	KeyMultipleChoice = "multiple-choice"
	KeyCheckboxes     = "checkboxes"
	KeyDropdown       = "dropdown"
	KeyMultiselect    = "multiselect"
	KeyYesNo          = "yes-no"
	KeyRanking        = "ranking"
	KeyMatrix         = "matrix"
	KeyRating         = "rating"
	KeyNPS            = "nps"
	KeyScale          = "scale"
	KeyLikert         = "likert"
	KeySlider         = "slider"
	KeyFileUpload     = "file-upload"
	KeySignature      = "signature"
	KeyConsent        = "consent"
	KeySectionHeader  = "section-header"
	KeyStatement      = "statement"
)

// FieldType describes one entry in the semantic field type catalog.
type FieldType struct {
	Key             string   `json:"key"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	SemanticSignals []string `json:"semanticSignals,omitempty"`
	UseWhen         string   `json:"useWhen"`
	// Input is false for layout-only entries that collect no answer.
	Input bool `json:"input"`
}

// categoryOrder fixes the grouping order in the prompt reference.
var categoryOrder = []string{"contact", "text", "choice", "rating", "numeric", "datetime", "special", "layout"}

var types = []FieldType{
	{KeyFullName, "contact", "Full name input.", []string{"name", "full name", "first name", "last name"}, "asking who the respondent is.", true},
	{KeyEmail, "contact", "Email address input with format validation.", []string{"email", "e-mail", "contact address"}, "collecting an email address.", true},
	{KeyPhone, "contact", "Phone number input with format validation.", []string{"phone", "mobile", "telephone", "cell"}, "collecting a phone number.", true},
	{KeyAddress, "contact", "Street address input, usually multi-line.", []string{"address", "street", "shipping", "billing"}, "collecting a postal address.", true},
	{KeyCountry, "contact", "Country picker backed by a standard country list.", []string{"country", "nationality"}, "asking for a country.", true},
	{KeyZipCode, "contact", "Postal or ZIP code input.", []string{"zip", "postal code", "postcode"}, "collecting a postal code on its own.", true},

	{KeyShortAnswer, "text", "Single-line free text.", []string{"title", "subject", "short answer", "one word"}, "the answer is a word or short phrase.", true},
	{KeyLongAnswer, "text", "Multi-line free text.", []string{"describe", "explain", "feedback", "comments", "tell us"}, "the answer needs sentences or paragraphs.", true},

	{KeyMultipleChoice, "choice", "Single selection from a visible list of options.", []string{"choose one", "select one", "which", "pick"}, "exactly one of a few known options applies.", true},
	{KeyCheckboxes, "choice", "Multiple selection from a visible list of options.", []string{"select all", "check all", "which apply"}, "several options may apply at once.", true},
	{KeyDropdown, "choice", "Single selection from a collapsed list.", []string{"select", "choose from list"}, "one option from a long list applies.", true},
	{KeyMultiselect, "choice", "Multiple selection from a collapsed list.", []string{"select multiple", "all that apply"}, "several options from a long list may apply.", true},
	{KeyYesNo, "choice", "Binary yes or no choice.", []string{"yes or no", "do you", "have you", "are you"}, "the question has exactly two answers.", true},
	{KeyRanking, "choice", "Ordering of all options by preference.", []string{"rank", "order", "prioritize"}, "the respondent should order the options.", true},
	{KeyMatrix, "choice", "Grid of rows rated against shared columns.", []string{"matrix", "grid", "rate each"}, "several items share the same answer scale.", true},

	{KeyRating, "rating", "Star rating, typically 1 to 5.", []string{"rate", "rating", "stars", "how would you rate"}, "asking for a quick quality judgment.", true},
	{KeyNPS, "rating", "0 to 10 recommendation likelihood score.", []string{"how likely", "recommend", "nps"}, "measuring likelihood to recommend.", true},
	{KeyScale, "rating", "Numeric opinion scale with labeled endpoints.", []string{"scale", "1 to 10", "from 1 to"}, "a numeric range expresses intensity.", true},
	{KeyLikert, "rating", "Agreement scale from strongly disagree to strongly agree.", []string{"agree", "disagree", "satisfaction", "satisfied"}, "measuring agreement with a statement.", true},
	{KeySlider, "rating", "Continuous slider between two bounds.", []string{"slider", "percentage", "how much"}, "a smooth range beats discrete steps.", true},

	{KeyNumber, "numeric", "Numeric input.", []string{"age", "quantity", "how many", "count", "number of"}, "the answer is a number.", true},
	{KeyCurrency, "numeric", "Monetary amount input.", []string{"price", "budget", "salary", "cost", "amount"}, "the answer is an amount of money.", true},

	{KeyDate, "datetime", "Calendar date picker.", []string{"date", "birthday", "date of birth", "when"}, "the answer is a single date.", true},
	{KeyTime, "datetime", "Time of day picker.", []string{"time", "what time"}, "the answer is a time of day.", true},
	{KeyDateRange, "datetime", "Start and end date pair.", []string{"from", "to", "duration", "between"}, "the answer spans two dates.", true},

	{KeyURL, "special", "Web address input with format validation.", []string{"website", "url", "link", "portfolio"}, "collecting a web address.", true},
	{KeyFileUpload, "special", "File attachment.", []string{"upload", "attach", "resume", "cv", "document"}, "the respondent must attach a file.", true},
	{KeySignature, "special", "Drawn or typed signature capture.", []string{"signature", "sign here"}, "a signature is required.", true},
	{KeyConsent, "special", "Single checkbox confirming agreement.", []string{"consent", "terms", "agree to", "privacy policy"}, "explicit agreement must be recorded.", true},

	{KeySectionHeader, "layout", "Section heading that groups the fields after it.", nil, "a new topical section starts.", false},
	{KeyStatement, "layout", "Display-only explanatory text.", nil, "the respondent needs context, not a question.", false},
}

// aliases maps common synonyms onto catalog keys.
var aliases = map[string]string{
	"text":          KeyShortAnswer,
	"short-text":    KeyShortAnswer,
	"textarea":      KeyLongAnswer,
	"paragraph":     KeyLongAnswer,
	"long-text":     KeyLongAnswer,
	"tel":           KeyPhone,
	"telephone":     KeyPhone,
	"name":          KeyFullName,
	"website":       KeyURL,
	"link":          KeyURL,
	"radio":         KeyMultipleChoice,
	"single-choice": KeyMultipleChoice,
	"choice":        KeyMultipleChoice,
	"select":        KeyDropdown,
	"multi-select":  KeyMultiselect,
	"checkbox":      KeyCheckboxes,
	"boolean":       KeyYesNo,
	"yesno":         KeyYesNo,
	"star-rating":   KeyRating,
	"stars":         KeyRating,
	"opinion-scale": KeyScale,
	"range":         KeySlider,
	"datetime":      KeyDate,
	"upload":        KeyFileUpload,
	"file":          KeyFileUpload,
	"attachment":    KeyFileUpload,
	"postal-code":   KeyZipCode,
	"zip":           KeyZipCode,
	"heading":       KeySectionHeader,
	"header":        KeySectionHeader,
	"info":          KeyStatement,
	"description":   KeyStatement,
}

var byKey = make(map[string]FieldType, len(types))

func init() {
	for _, t := range types {
		byKey[t.Key] = t
	}
}

// canonical lowercases key, collapses separators and resolves aliases. The
// returned key is not guaranteed to exist in the catalog.
func canonical(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "_", "-")
	key = strings.ReplaceAll(key, " ", "-")
	if target, ok := aliases[key]; ok {
		return target
	}
	return key
}

// Lookup returns the catalog entry for key, resolving aliases.
func Lookup(key string) (FieldType, bool) {
	t, ok := byKey[canonical(key)]
	return t, ok
}

// Valid reports whether key (or an alias of it) names a catalog entry.
func Valid(key string) bool {
	_, ok := byKey[canonical(key)]
	return ok
}

// Normalize resolves key to its catalog form, falling back to short-answer
// for unknown keys so downstream code always works with a catalog key.
func Normalize(key string) string {
	c := canonical(key)
	if _, ok := byKey[c]; ok {
		return c
	}
	return KeyShortAnswer
}

// Keys returns all catalog keys in registry order.
func Keys() []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Key
	}
	return out
}

// Types returns the full catalog in registry order.
func Types() []FieldType {
	out := make([]FieldType, len(types))
	copy(out, types)
	return out
}

// IsChoice reports whether fields of this type carry an options list.
func IsChoice(key string) bool {
	switch canonical(key) {
	case KeyMultipleChoice, KeyCheckboxes, KeyDropdown, KeyMultiselect, KeyRanking, KeyLikert:
		return true
	}
	return false
}

// IsMultiChoice reports whether the type accepts more than one selected
// option.
func IsMultiChoice(key string) bool {
	switch canonical(key) {
	case KeyCheckboxes, KeyMultiselect:
		return true
	}
	return false
}

// IsScorable reports whether a quiz correct answer can be attached to the
// type.
func IsScorable(key string) bool {
	return IsChoice(key) || canonical(key) == KeyYesNo
}

// BuildPromptReference renders the catalog grouped by category, for the form
// structure prompt.
func BuildPromptReference() string {
	var sb strings.Builder
	sb.WriteString("FIELD TYPE REFERENCE (use these exact type keys):\n")
	for _, category := range categoryOrder {
		sb.WriteString("\n")
		sb.WriteString(title(category))
		sb.WriteString(":\n")
		for _, t := range types {
			if t.Category != category {
				continue
			}
			sb.WriteString("- ")
			sb.WriteString(t.Key)
			sb.WriteString(": ")
			sb.WriteString(t.Description)
			sb.WriteString(" Use when ")
			sb.WriteString(t.UseWhen)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// BuildFieldTypeReference renders the denser single-list variant with
// semantic signals, for the field classification prompt.
func BuildFieldTypeReference() string {
	var sb strings.Builder
	sb.WriteString("FIELD TYPE CATALOG:\n")
	for _, t := range types {
		sb.WriteString("- ")
		sb.WriteString(t.Key)
		sb.WriteString(" [")
		sb.WriteString(t.Category)
		sb.WriteString("]")
		if len(t.SemanticSignals) > 0 {
			sb.WriteString(" signals: ")
			sb.WriteString(strings.Join(t.SemanticSignals, ", "))
		}
		sb.WriteString(" | ")
		sb.WriteString(t.Description)
		sb.WriteString(" Use when ")
		sb.WriteString(t.UseWhen)
		sb.WriteString("\n")
	}
	return sb.String()
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
