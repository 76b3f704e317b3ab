package llm

import (
	"os"
	"strings"
)

// AdapterConfig describes one OpenAI-compatible backend and its per-purpose
// model rotation lists.
type AdapterConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// JSONMode marks backends that honor response_format json_object.
	JSONMode bool `mapstructure:"json_mode"`
	// Models maps each purpose to an ordered rotation list, best first.
	Models map[Purpose][]string `mapstructure:"models"`
	// DefaultModels serves purposes with no explicit list.
	DefaultModels []string `mapstructure:"default_models"`
}

// BuiltinAdapterConfigs returns the default backend priority list. Paid
// multi-model gateways come first, a local Ollama server is the last
// resort. A backend whose API key is absent from the environment is left
// out; the local server is included whenever ollamaURL is set.
func BuiltinAdapterConfigs(ollamaURL, ollamaModel string) []AdapterConfig {
	var configs []AdapterConfig

	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		configs = append(configs, AdapterConfig{
			Name:     "openrouter",
			BaseURL:  "https://openrouter.ai/api/v1",
			APIKey:   key,
			JSONMode: true,
			Models: map[Purpose][]string{
				PurposeAnalysis:       {"google/gemini-flash-1.5", "meta-llama/llama-3.1-8b-instruct"},
				PurposeStructure:      {"openai/gpt-4o", "meta-llama/llama-3.3-70b-instruct"},
				PurposeLongContext:    {"google/gemini-pro-1.5", "openai/gpt-4o"},
				PurposeClassification: {"openai/gpt-4o-mini", "google/gemini-flash-1.5"},
				PurposeEnhancement:    {"openai/gpt-4o-mini", "meta-llama/llama-3.3-70b-instruct"},
			},
			DefaultModels: []string{"openai/gpt-4o-mini"},
		})
	}

	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		configs = append(configs, AdapterConfig{
			Name:     "groq",
			BaseURL:  "https://api.groq.com/openai/v1",
			APIKey:   key,
			JSONMode: true,
			Models: map[Purpose][]string{
				PurposeAnalysis:       {"llama-3.1-8b-instant", "gemma2-9b-it"},
				PurposeStructure:      {"llama-3.3-70b-versatile", "llama-3.1-8b-instant"},
				PurposeLongContext:    {"llama-3.3-70b-versatile"},
				PurposeClassification: {"llama-3.1-8b-instant", "llama-3.3-70b-versatile"},
				PurposeEnhancement:    {"llama-3.1-8b-instant", "gemma2-9b-it"},
			},
			DefaultModels: []string{"llama-3.3-70b-versatile"},
		})
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		configs = append(configs, AdapterConfig{
			Name:     "openai",
			BaseURL:  "https://api.openai.com/v1",
			APIKey:   key,
			JSONMode: true,
			Models: map[Purpose][]string{
				PurposeAnalysis:       {"gpt-4o-mini"},
				PurposeStructure:      {"gpt-4o", "gpt-4o-mini"},
				PurposeLongContext:    {"gpt-4o"},
				PurposeClassification: {"gpt-4o-mini"},
				PurposeEnhancement:    {"gpt-4o-mini"},
			},
			DefaultModels: []string{"gpt-4o-mini"},
		})
	}

	if ollamaURL != "" {
		configs = append(configs, AdapterConfig{
			Name:    "ollama",
			BaseURL: ollamaURL,
			// Ollama ignores the key but the OpenAI client requires one.
			APIKey:        "ollama",
			JSONMode:      false,
			DefaultModels: []string{ollamaModel},
		})
	}

	return configs
}

// FilterByName returns the adapters whose names appear in order, arranged
// in that order. Blank entries and unknown names are skipped; an empty
// order keeps configs as-is.
func FilterByName(configs []AdapterConfig, order []string) []AdapterConfig {
	byName := make(map[string]AdapterConfig, len(configs))
	for _, c := range configs {
		byName[strings.ToLower(c.Name)] = c
	}

	var out []AdapterConfig
	for _, name := range order {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if c, ok := byName[name]; ok {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return configs
	}
	return out
}
