package jsonx

import (
	"errors"
	"strings"
	"testing"
)

type form struct {
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
}

func TestUnmarshalDirect(t *testing.T) {
	var got form
	if err := Unmarshal(`{"title":"X","fields":[]}`, "test", &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Title != "X" || got.Fields == nil || len(got.Fields) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestUnmarshalFencedBlock(t *testing.T) {
	raw := "Sure! Here's your JSON: ```json\n{\"title\":\"X\",\"fields\":[]}\n``` Hope that helps!"

	var got form
	if err := Unmarshal(raw, "test", &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Title != "X" || len(got.Fields) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestUnmarshalBareFence(t *testing.T) {
	raw := "```\n{\"title\":\"Y\",\"fields\":[\"a\"]}\n```"

	var got form
	if err := Unmarshal(raw, "test", &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Title != "Y" || len(got.Fields) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestUnmarshalObjectInProse(t *testing.T) {
	raw := `The form you asked for is {"title":"Z","fields":[]} and it should serve you well.`

	var got form
	if err := Unmarshal(raw, "test", &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Title != "Z" {
		t.Errorf("got %+v", got)
	}
}

func TestUnmarshalArrayInProse(t *testing.T) {
	raw := `Here are the labels: ["one","two"] as requested.`

	var got []string
	if err := Unmarshal(raw, "test", &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 2 || got[0] != "one" {
		t.Errorf("got %v", got)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	var got form
	err := Unmarshal("I am sorry, I cannot help with that.", "content-analysis", &got)
	if err == nil {
		t.Fatal("expected an error for prose with no JSON")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error is %T, want *ParseError", err)
	}
	if parseErr.Context != "content-analysis" {
		t.Errorf("Context = %q", parseErr.Context)
	}
	if !strings.Contains(err.Error(), "content-analysis") {
		t.Errorf("error message missing context: %v", err)
	}
}

func TestUnmarshalTypeMismatch(t *testing.T) {
	var got form
	err := Unmarshal(`["not","an","object"]`, "test", &got)
	if err == nil {
		t.Fatal("expected an error decoding an array into a struct")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error is %T, want *ParseError", err)
	}
}

func TestResultsEnvelope(t *testing.T) {
	type item struct {
		Label string `json:"label"`
	}

	got, err := Results[item](`{"results":[{"label":"a"},{"label":"b"}]}`, "test")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(got) != 2 || got[0].Label != "a" {
		t.Errorf("got %+v", got)
	}
}

func TestResultsBareArray(t *testing.T) {
	type item struct {
		Label string `json:"label"`
	}

	got, err := Results[item](`[{"label":"a"}]`, "test")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(got) != 1 || got[0].Label != "a" {
		t.Errorf("got %+v", got)
	}
}

func TestResultsFencedEnvelope(t *testing.T) {
	type item struct {
		Label string `json:"label"`
	}

	raw := "```json\n{\"results\":[{\"label\":\"a\"}]}\n```"
	got, err := Results[item](raw, "test")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestResultsEmpty(t *testing.T) {
	type item struct {
		Label string `json:"label"`
	}

	if _, err := Results[item](`{"results":[]}`, "test"); err == nil {
		t.Fatal("expected an error for an empty results envelope")
	}
	if _, err := Results[item]("no json here", "test"); err == nil {
		t.Fatal("expected an error for prose")
	}
}

func TestPreviewIsBounded(t *testing.T) {
	long := strings.Repeat("x", 5000)

	var got form
	err := Unmarshal(long, "test", &got)
	if err == nil {
		t.Fatal("expected an error")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error is %T, want *ParseError", err)
	}
	if len(parseErr.Preview) >= len(long) {
		t.Errorf("preview not truncated: %d bytes", len(parseErr.Preview))
	}
	if !strings.Contains(parseErr.Preview, " ... ") {
		t.Error("truncated preview should mark the elision")
	}
}
