package enhancer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/llm/prompts"
	"github.com/formsmith/formsmith/internal/model"
)

// category groups semantic types that share phrasing and placeholder
// treatment in the local rewrite.
type category int

const (
	catOther category = iota
	catContact
	catText
	catChoice
	catScale
	catDate
)

func categorize(typeKey string) category {
	switch typeKey {
	case catalog.KeyEmail, catalog.KeyPhone, catalog.KeyFullName, catalog.KeyAddress,
		catalog.KeyCountry, catalog.KeyZipCode, catalog.KeyURL:
		return catContact
	case catalog.KeyShortAnswer, catalog.KeyLongAnswer:
		return catText
	case catalog.KeyMultipleChoice, catalog.KeyCheckboxes, catalog.KeyDropdown,
		catalog.KeyMultiselect, catalog.KeyYesNo, catalog.KeyRanking:
		return catChoice
	case catalog.KeyRating, catalog.KeyNPS, catalog.KeyScale, catalog.KeyLikert,
		catalog.KeySlider:
		return catScale
	case catalog.KeyDate, catalog.KeyTime, catalog.KeyDateRange:
		return catDate
	}
	return catOther
}

// phrasings wraps terse noun-phrase labels in a full question or request,
// keyed by tone and category. %s receives the label with its leading
// article stripped and first letter lowered.
var phrasings = map[model.Tone]map[category]string{
	model.ToneProfessional: {
		catContact: "Please provide your %s.",
		catText:    "Please share your %s.",
		catChoice:  "Please select your %s.",
		catScale:   "How would you rate %s?",
		catDate:    "Please select your preferred %s.",
	},
	model.ToneFriendly: {
		catContact: "What's your %s?",
		catText:    "We'd love to hear your %s!",
		catChoice:  "Which %s works best for you?",
		catScale:   "How happy are you with %s?",
		catDate:    "What %s works for you?",
	},
	model.ToneCasual: {
		catContact: "Your %s?",
		catText:    "Tell us your %s.",
		catChoice:  "Pick a %s.",
		catScale:   "Rate %s.",
		catDate:    "Pick a %s.",
	},
	model.ToneFormal: {
		catContact: "Kindly provide your %s.",
		catText:    "Kindly provide details regarding your %s.",
		catChoice:  "Kindly indicate your %s.",
		catScale:   "How would you assess %s?",
		catDate:    "Kindly indicate your preferred %s.",
	},
}

// enhanceQuestionLocally is the deterministic fallback rewrite. Quiz and
// survey questions keep their wording: a local rephrase cannot know which
// option the stored answer points at, or whether new wording would lead the
// respondent.
func enhanceQuestionLocally(field model.FormField, opts Options, variant prompts.EnhanceVariant) EnhancedQuestion {
	eq := EnhancedQuestion{
		Label:       tidyLabel(field.Label),
		HelpText:    field.HelpText,
		Placeholder: field.Placeholder,
	}
	if eq.Placeholder == "" {
		eq.Placeholder = synthesizePlaceholder(field.Type)
	}
	if variant != prompts.EnhanceStandard {
		return eq
	}
	if tmpl := phrasings[opts.Tone][categorize(field.Type)]; tmpl != "" && isTerse(eq.Label) {
		eq.Label = fmt.Sprintf(tmpl, subject(eq.Label))
	}
	return eq
}

// synthesizePlaceholder returns an example answer for types where one helps.
func synthesizePlaceholder(typeKey string) string {
	switch typeKey {
	case catalog.KeyEmail:
		return "you@example.com"
	case catalog.KeyPhone:
		return "+1 555 000 0000"
	case catalog.KeyFullName:
		return "Jane Doe"
	case catalog.KeyURL:
		return "https://example.com"
	case catalog.KeyZipCode:
		return "12345"
	case catalog.KeyAddress:
		return "123 Main St, Springfield"
	case catalog.KeyNumber:
		return "0"
	case catalog.KeyCurrency:
		return "100.00"
	case catalog.KeyShortAnswer:
		return "Your answer"
	case catalog.KeyLongAnswer:
		return "Share as much detail as you like"
	}
	return ""
}

// tidyLabel collapses whitespace and capitalizes the first letter.
func tidyLabel(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	if label == "" {
		return "Untitled question"
	}
	r := []rune(label)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// isTerse reports whether a label is a short noun phrase worth wrapping in a
// full question. Labels that already read as questions or requests are left
// alone.
func isTerse(label string) bool {
	if strings.Contains(label, "?") {
		return false
	}
	words := strings.Fields(label)
	if len(words) == 0 || len(words) > 4 {
		return false
	}
	switch strings.ToLower(words[0]) {
	case "please", "kindly", "what", "how", "which", "when", "where", "why", "who",
		"do", "did", "are", "is", "have", "will", "would", "can",
		"describe", "tell", "select", "choose", "pick", "rate", "rank",
		"enter", "provide", "list", "share", "upload":
		return false
	}
	return true
}

// subject prepares a label for insertion mid-sentence: trailing period and
// leading "your" dropped, first letter lowered unless the label starts with
// an acronym.
func subject(label string) string {
	s := strings.TrimSuffix(strings.TrimSpace(label), ".")
	s = lowerFirst(s)
	s = strings.TrimPrefix(s, "your ")
	return s
}

func lowerFirst(s string) string {
	first, _, _ := strings.Cut(s, " ")
	if len([]rune(first)) > 1 && first == strings.ToUpper(first) {
		return s
	}
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
