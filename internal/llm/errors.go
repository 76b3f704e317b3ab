package llm

import (
	"errors"
	"fmt"
	"strings"
)

var errNoModels = errors.New("no models configured for purpose")

// Attempt records one failed provider call.
type Attempt struct {
	Provider string
	Model    string
	Err      error
}

// ExhaustedError reports that every configured backend failed for one
// completion. It carries each per-attempt failure so callers can log or
// surface the full picture.
type ExhaustedError struct {
	Purpose  Purpose
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "all providers exhausted for %s (%d attempts)", e.Purpose, len(e.Attempts))
	for _, a := range e.Attempts {
		sb.WriteString("; ")
		sb.WriteString(a.Provider)
		if a.Model != "" {
			sb.WriteString("/")
			sb.WriteString(a.Model)
		}
		if a.Err != nil {
			sb.WriteString(": ")
			sb.WriteString(a.Err.Error())
		}
	}
	return sb.String()
}

// Unwrap exposes the underlying attempt errors to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}
