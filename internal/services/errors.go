package services

import (
	"errors"
	"fmt"
	"strings"

	"stagehand/internal/registry"
)

// Sentinel markers classify stage failures. Wrap tags errors with one of
// these so the workflow can route them with errors.Is long after the
// failing call returned.
var (
	ErrValidation    = errors.New("validation failed")
	ErrConfiguration = errors.New("bad configuration")
	ErrNotFound      = errors.New("not found")
	ErrExternalTool  = errors.New("external tool failed")
	ErrTransient     = errors.New("transient error")
	ErrTimeout       = errors.New("timed out")
)

// Wrap tags cause with marker and a stage/operation-qualified message. A
// nil marker counts as transient. The cause stays in the chain, so both it
// and the marker remain reachable through errors.Is.
func Wrap(marker error, stage, op, msg string, cause error) error {
	if marker == nil {
		marker = ErrTransient
	}
	var detail strings.Builder
	for _, part := range []string{stage, op, msg} {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		if detail.Len() > 0 {
			detail.WriteString(": ")
		}
		detail.WriteString(part)
	}
	if detail.Len() == 0 {
		detail.WriteString("service failure")
	}
	if cause != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail.String(), cause)
	}
	return fmt.Errorf("%w: %s", marker, detail.String())
}

// FailureStatus picks the job status a failed stage should persist.
// Validation-class failures park in review for an operator to fix the plan
// or environment first; everything else fails and stays retryable.
func FailureStatus(err error) registry.Status {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration) || errors.Is(err, ErrNotFound) {
		return registry.StatusReview
	}
	return registry.StatusFailed
}
