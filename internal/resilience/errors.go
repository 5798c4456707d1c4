package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// StatusError carries the HTTP status code of a failed upstream call.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Err.Error())
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// NewStatusError wraps err with an HTTP status code.
func NewStatusError(statusCode int, err error) *StatusError {
	return &StatusError{StatusCode: statusCode, Err: err}
}

// StatusCoder is implemented by SDK errors that expose an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// ConfigError marks a fatal configuration problem such as a missing
// credential or an unresolvable tool. It is never retried.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a configuration error.
func NewConfigError(err error) *ConfigError {
	return &ConfigError{Err: err}
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// TargetError marks a failure reported by a scraped website rather than
// by the tool provider. A site answering 401 or 403 degrades one page.
type TargetError struct {
	URL string
	Err error
}

func (e *TargetError) Error() string { return e.URL + ": " + e.Err.Error() }

func (e *TargetError) Unwrap() error { return e.Err }

// NewTargetError attributes err to the page at url.
func NewTargetError(url string, err error) *TargetError {
	return &TargetError{URL: url, Err: err}
}

// IsTargetError reports whether err is, or wraps, a TargetError.
func IsTargetError(err error) bool {
	var te *TargetError
	return errors.As(err, &te)
}

// StatusCode extracts an HTTP status from err, or 0 if none is known.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// Classifier decides retryability from status codes and message patterns.
// NonRetryable wins over everything else.
type Classifier struct {
	Retryable    map[int]bool
	NonRetryable map[int]bool
	Patterns     []string
}

// DefaultClassifier is shared by every call site in the pipeline.
var DefaultClassifier = Classifier{
	Retryable: map[int]bool{
		408: true,
		429: true,
		500: true,
		502: true,
		503: true,
		504: true,
	},
	NonRetryable: map[int]bool{
		400: true,
		401: true,
		403: true,
		404: true,
		422: true,
	},
	Patterns: []string{
		"fetch failed",
		"timeout",
		"timed out",
		"rate limit",
		"quota",
		"overloaded",
		"temporarily",
		"econnreset",
		"econnrefused",
		"eai_again",
		"enetunreach",
		"socket hang up",
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"unexpected eof",
	},
}

// IsRetryable reports whether err belongs to a transient class.
func (c Classifier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsConfigError(err) || errors.Is(err, context.Canceled) {
		return false
	}

	if code := StatusCode(err); code != 0 {
		if c.NonRetryable[code] {
			return false
		}
		if c.Retryable[code] {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range c.Patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ShouldRetry adapts IsRetryable to the RetryConfig predicate signature.
func (c Classifier) ShouldRetry(err error, _ int) bool {
	return c.IsRetryable(err)
}

// IsFatal reports whether err should end a run instead of degrading one
// item: configuration errors, credentials rejected by the LLM or tool
// provider, and cancellation. Statuses from a scraped site never are.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if IsConfigError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if IsTargetError(err) {
		return false
	}
	code := StatusCode(err)
	return code == 401 || code == 403
}
