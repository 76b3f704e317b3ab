package catalog

import (
	"strings"
	"testing"
)

func TestRegistryKeysAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, key := range Keys() {
		if seen[key] {
			t.Errorf("duplicate catalog key %q", key)
		}
		seen[key] = true
	}
	if len(seen) < 30 {
		t.Errorf("catalog has %d entries, want at least 30", len(seen))
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantOK  bool
	}{
		{"email", KeyEmail, true},
		{"Email", KeyEmail, true},
		{"  multiple-choice ", KeyMultipleChoice, true},
		{"multiple_choice", KeyMultipleChoice, true},
		{"radio", KeyMultipleChoice, true},
		{"textarea", KeyLongAnswer, true},
		{"boolean", KeyYesNo, true},
		{"hologram", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := Lookup(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
			if ok && got.Key != tt.want {
				t.Errorf("Lookup(%q) = %q, want %q", tt.key, got.Key, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"email", KeyEmail},
		{"select", KeyDropdown},
		{"short text", KeyShortAnswer},
		{"gibberish-type", KeyShortAnswer},
		{"", KeyShortAnswer},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChoicePredicates(t *testing.T) {
	if !IsChoice(KeyMultipleChoice) || !IsChoice(KeyDropdown) || !IsChoice(KeyCheckboxes) {
		t.Error("choice types not recognized")
	}
	if IsChoice(KeyEmail) || IsChoice(KeyShortAnswer) {
		t.Error("non-choice types recognized as choice")
	}
	if !IsMultiChoice(KeyCheckboxes) || !IsMultiChoice(KeyMultiselect) {
		t.Error("multi-choice types not recognized")
	}
	if IsMultiChoice(KeyMultipleChoice) {
		t.Error("multiple-choice is a single selection")
	}
	if !IsScorable(KeyYesNo) || !IsScorable(KeyMultipleChoice) {
		t.Error("scorable types not recognized")
	}
	if IsScorable(KeyLongAnswer) {
		t.Error("long-answer should not be scorable")
	}
}

func TestLayoutEntriesAreNotInputs(t *testing.T) {
	for _, key := range []string{KeySectionHeader, KeyStatement} {
		ft, ok := Lookup(key)
		if !ok {
			t.Fatalf("missing catalog entry %q", key)
		}
		if ft.Input {
			t.Errorf("%q should not be an input type", key)
		}
	}
}

func TestBuildPromptReference(t *testing.T) {
	ref := BuildPromptReference()

	for _, key := range Keys() {
		if !strings.Contains(ref, "- "+key+":") {
			t.Errorf("prompt reference missing key %q", key)
		}
	}
	for _, category := range []string{"Contact:", "Choice:", "Rating:", "Layout:"} {
		if !strings.Contains(ref, category) {
			t.Errorf("prompt reference missing category header %q", category)
		}
	}
}

func TestBuildFieldTypeReference(t *testing.T) {
	ref := BuildFieldTypeReference()

	if !strings.Contains(ref, "signals: rate, rating, stars") {
		t.Error("classification reference missing semantic signals")
	}
	for _, key := range Keys() {
		if !strings.Contains(ref, "- "+key+" [") {
			t.Errorf("classification reference missing key %q", key)
		}
	}
}
