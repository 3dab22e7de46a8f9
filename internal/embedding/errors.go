package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input.
	ErrEmptyText = errors.New("empty text")

	// ErrRateLimited is returned when the backend answers HTTP 429.
	ErrRateLimited = errors.New("embedding backend rate limited")

	// ErrTimeout is returned when a backend call exceeds its deadline.
	ErrTimeout = errors.New("embedding backend timeout")

	// ErrMalformedResponse is returned when the backend body can't be used.
	ErrMalformedResponse = errors.New("malformed embedding response")
)

// StatusError is a non-2xx, non-429 backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("embedding backend status %d", e.Code)
	}
	return fmt.Sprintf("embedding backend status %d: %s", e.Code, e.Body)
}

var statusPattern = regexp.MustCompile(`status(?: code)?:? (\d{3})`)

// classify maps backend and library errors onto this package's sentinels.
// Backends that return typed errors pass through unchanged; string matching
// covers library clients that only expose formatted messages.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrMalformedResponse) {
		return err
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code == 429 {
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil && (code < 200 || code > 299) {
			return fmt.Errorf("%w: %w", &StatusError{Code: code}, err)
		}
	}
	return err
}
