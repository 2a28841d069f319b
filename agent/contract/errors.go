package contract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrSourceUnavailable   = errors.New("product source unavailable")
	ErrNoProductsAvailable = errors.New("no products available")
	ErrComplianceFailure   = errors.New("compliance failure")
	ErrExternalService     = errors.New("external service failure")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrUnverifiedDraft     = errors.New("draft has no passing verdict")
	ErrAlreadyPublished    = errors.New("already published today")
)

// ExternalError describes a failed call to a collaborator outside the process
// (LLM provider, WordPress, history backend).
type ExternalError struct {
	Service   string
	Op        string
	Status    int
	Transient bool
	Err       error
}

func (e *ExternalError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ExternalError) Unwrap() error { return e.Err }

func (e *ExternalError) Is(target error) bool {
	return target == ErrExternalService
}

// IsTransient reports whether err is an ExternalError marked retryable.
func IsTransient(err error) bool {
	var ext *ExternalError
	if errors.As(err, &ext) {
		return ext.Transient
	}
	return false
}

// CycleError carries the state a failed publish cycle ended in.
type CycleError struct {
	CycleID string
	Stage   string
	Verdict Verdict
	Draft   *Draft
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %s failed at %s: %v", e.CycleID, e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }
