package analyzer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/model"
)

// heuristicRule maps label keywords to a semantic type. Rules are checked in
// order and the first match wins, so specific signals sit above generic ones:
// "how would you rate" must hit rating before "would you" can hit yes-no,
// and feedback phrasing must hit long-answer before "do you" can.
//
// Keywords are matched against a normalized label: lowercased, punctuation
// replaced by spaces, padded with a leading and trailing space. Every match
// is anchored at a word start; a keyword with a trailing space requires the
// whole word ("age " matches "your age?" but not "agent").
type heuristicRule struct {
	typeKey  string
	keywords []string
	options  []string
}

var likertOptions = []string{
	"Strongly disagree",
	"Disagree",
	"Neutral",
	"Agree",
	"Strongly agree",
}

var heuristicRules = []heuristicRule{
	{typeKey: catalog.KeyEmail, keywords: []string{"email", "e mail"}},
	{typeKey: catalog.KeyPhone, keywords: []string{"phone", "mobile", "telephone", "cell number"}},
	{typeKey: catalog.KeyFullName, keywords: []string{"full name", "your name", "first name", "last name", "contact name"}},
	{typeKey: catalog.KeyNPS, keywords: []string{"likely to recommend", "recommend us", "recommend this", "0 to 10", "nps "}},
	{typeKey: catalog.KeyRating, keywords: []string{"rate ", "rating", "stars", "satisfaction", "satisfied"}},
	{typeKey: catalog.KeyLikert, keywords: []string{"agree or disagree", "strongly agree", "level of agreement"}, options: likertOptions},
	{typeKey: catalog.KeyScale, keywords: []string{"on a scale", "scale of 1", "from 1 to"}},
	{typeKey: catalog.KeyDateRange, keywords: []string{"date range", "start and end date", "check in and check out"}},
	{typeKey: catalog.KeyDate, keywords: []string{"date ", "birthday", "when did", "when will", "deadline"}},
	{typeKey: catalog.KeyTime, keywords: []string{"what time", "time of", "preferred time", "arrival time"}},
	{typeKey: catalog.KeyAddress, keywords: []string{"address", "street", "shipping", "billing"}},
	{typeKey: catalog.KeyCountry, keywords: []string{"country", "nationality"}},
	{typeKey: catalog.KeyZipCode, keywords: []string{"zip ", "zipcode", "zip code", "postal code", "postcode"}},
	{typeKey: catalog.KeyURL, keywords: []string{"website", "url ", "link to", "portfolio", "linkedin", "github"}},
	{typeKey: catalog.KeyCurrency, keywords: []string{"price", "salary", "budget", "cost", "fee ", "how much"}},
	{typeKey: catalog.KeyNumber, keywords: []string{"how many", "number of", "age ", "quantity", "years of", "count of"}},
	{typeKey: catalog.KeyFileUpload, keywords: []string{"upload", "attach", "resume", "cv ", "screenshot"}},
	{typeKey: catalog.KeySignature, keywords: []string{"signature", "sign here", "sign below"}},
	{typeKey: catalog.KeyConsent, keywords: []string{"i agree", "terms and conditions", "consent", "privacy policy", "gdpr"}},
	{typeKey: catalog.KeyRanking, keywords: []string{"rank ", "ranking", "order of preference", "prioritize"}},
	// Above yes-no: "how did you hear" would otherwise match "did you".
	{typeKey: catalog.KeyDropdown, keywords: []string{"how did you hear", "department", "select your", "choose your"}},
	// Free-text invitations outrank the yes-no patterns below: "do you have
	// any feedback" is a long answer, not a yes-no.
	{typeKey: catalog.KeyLongAnswer, keywords: []string{
		"feedback", "describe", "explain", "tell us", "comments", "suggestions",
		"anything else", "in your own words", "elaborate", "why or why not",
		"additional information",
	}},
	{typeKey: catalog.KeyYesNo, keywords: []string{"do you", "did you", "have you", "are you", "will you", "would you", "yes or no", "is this"}, options: []string{"Yes", "No"}},
	{typeKey: catalog.KeyCheckboxes, keywords: []string{"select all", "all that apply", "check all"}},
	{typeKey: catalog.KeyMultipleChoice, keywords: []string{"which of the following", "choose one", "pick one", "select one", "which one"}},
}

// classifyLocally picks a type from the keyword rules. When nothing matches
// it keeps a declared type that exists in the catalog, and otherwise settles
// on short-answer.
func classifyLocally(field model.FormField) model.FieldAnalysisResult {
	haystack := normalizeLabel(field.Label + " " + field.HelpText)

	for _, rule := range heuristicRules {
		for _, kw := range rule.keywords {
			if !strings.Contains(haystack, " "+kw) {
				continue
			}
			return model.FieldAnalysisResult{
				RecommendedType:  rule.typeKey,
				Confidence:       0.6,
				Reasoning:        fmt.Sprintf("label matched keyword %q", strings.TrimSpace(kw)),
				SuggestedOptions: rule.options,
			}
		}
	}

	if field.Type != "" && catalog.Valid(field.Type) {
		return model.FieldAnalysisResult{
			RecommendedType: catalog.Normalize(field.Type),
			Confidence:      0.3,
			Reasoning:       "no keyword signal, kept declared type",
		}
	}
	return model.FieldAnalysisResult{
		RecommendedType: catalog.KeyShortAnswer,
		Confidence:      0.3,
		Reasoning:       "no keyword signal, defaulted to short answer",
	}
}

// normalizeLabel lowercases text, maps punctuation to spaces, and pads both
// ends so keyword checks see word boundaries.
func normalizeLabel(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte(' ')
	return b.String()
}
