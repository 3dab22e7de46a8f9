package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrTimeout is returned when the backend does not answer in time.
	ErrTimeout = errors.New("llm backend timeout")

	// ErrTransport is returned for connection-level failures.
	ErrTransport = errors.New("llm backend unreachable")
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm backend status %d", e.Code)
}

var statusCodePattern = regexp.MustCompile(`(?:status(?: code)?|error|http)[: ]+(\d{3})\b`)

// classifyError maps provider client errors onto ErrTimeout, ErrTransport,
// or *StatusError. langchaingo providers mostly return formatted strings,
// so status codes are recovered by pattern.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout") {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil && code >= 300 {
			return fmt.Errorf("%w: %w", &StatusError{Code: code}, err)
		}
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") {
		return fmt.Errorf("%w: %w", &StatusError{Code: 429}, err)
	}

	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return err
}
