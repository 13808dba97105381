package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel markers for collaborator failure classification. Every error that
// crosses a collaborator boundary is tagged with exactly one of these so the
// workflow manager and retry policy can decide what to do without parsing
// message text.
var (
	// ErrTransient covers network faults, timeouts and 5xx responses.
	// Retried with exponential backoff.
	ErrTransient = errors.New("transient failure")
	// ErrQuota covers rate limiting and quota exhaustion. Retried after a
	// longer, separately configured delay.
	ErrQuota = errors.New("quota exceeded")
	// ErrPermanent covers bad auth, unsupported formats and policy
	// rejections. Never retried.
	ErrPermanent = errors.New("permanent rejection")
	// ErrParse marks a collaborator response whose shape was not recognized.
	ErrParse = errors.New("response parse error")
	// ErrValidation marks invalid local input or configuration.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing source or artifact.
	ErrNotFound = errors.New("not found")
)

// ErrorClass is the persisted, user-visible failure class of a stage error.
type ErrorClass string

const (
	ClassTransient ErrorClass = "transient_io"
	ClassQuota     ErrorClass = "quota_exceeded"
	ClassPermanent ErrorClass = "permanent_rejected"
	ClassParse     ErrorClass = "parse_error"
	ClassUnknown   ErrorClass = "unknown"
)

// Wrap builds an error that carries stage context while tagging it with the
// provided marker. The marker should be one of the sentinels above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its persisted failure class. Context
// cancellation and deadline expiry count as transient so an interrupted call
// is eligible for retry.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrQuota):
		return ClassQuota
	case errors.Is(err, ErrPermanent), errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return ClassPermanent
	case errors.Is(err, ErrParse):
		return ClassParse
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	default:
		return ClassUnknown
	}
}

// Retryable reports whether an error is eligible for another attempt.
// Unknown errors are treated as transient so a mislabelled fault does not
// silently become terminal.
func Retryable(err error) bool {
	switch Classify(err) {
	case ClassPermanent, ClassParse:
		return false
	default:
		return err != nil
	}
}

// MarkerForStatus maps an HTTP response code to the sentinel used when
// wrapping the resulting error.
func MarkerForStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrQuota
	case code == http.StatusRequestTimeout:
		return ErrTransient
	case code >= 500:
		return ErrTransient
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrPermanent
	case code >= 400:
		return ErrPermanent
	default:
		return ErrTransient
	}
}

// ErrorDetails is the structured view of a wrapped stage error.
type ErrorDetails struct {
	Class   ErrorClass
	Stage   string
	Message string
	Cause   error
}

// Details unpacks a wrapped error into its structured parts. The stage is
// recovered from the wrap detail prefix when present.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Class: ClassUnknown}
	}
	details := ErrorDetails{
		Class:   Classify(err),
		Message: strings.TrimSpace(err.Error()),
		Cause:   errors.Unwrap(err),
	}
	for _, marker := range []error{ErrTransient, ErrQuota, ErrPermanent, ErrParse, ErrValidation, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(details.Message, prefix) {
			details.Message = strings.TrimPrefix(details.Message, prefix)
			break
		}
	}
	if stage, rest, ok := strings.Cut(details.Message, ": "); ok && !strings.ContainsAny(stage, "\"{") {
		details.Stage = stage
		details.Message = rest
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
