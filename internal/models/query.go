package models

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Filter restricts a nearest-neighbor query by platform and time range.
// Zero values mean unrestricted.
type Filter struct {
	Platforms []Platform `json:"platforms,omitempty"`
	Since     time.Time  `json:"since,omitzero"`
	Until     time.Time  `json:"until,omitzero"`
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r *StandardizedRecord) bool {
	if len(f.Platforms) > 0 && !slices.Contains(f.Platforms, r.Platform) {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Key returns a stable string form, used in cache keys.
func (f Filter) Key() string {
	ps := make([]string, len(f.Platforms))
	for i, p := range f.Platforms {
		ps[i] = string(p)
	}
	slices.Sort(ps)
	var b strings.Builder
	b.WriteString(strings.Join(ps, ","))
	b.WriteByte('|')
	if !f.Since.IsZero() {
		b.WriteString(f.Since.UTC().Format(time.RFC3339))
	}
	b.WriteByte('|')
	if !f.Until.IsZero() {
		b.WriteString(f.Until.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// ParseFilter builds a Filter from user input: platform names and since/until
// bounds in any form ParseTimeBound accepts. Relative bounds count back from
// now.
func ParseFilter(platforms []string, since, until string, now time.Time) (Filter, error) {
	var f Filter
	for _, p := range platforms {
		platform, err := ParsePlatform(p)
		if err != nil {
			return Filter{}, fmt.Errorf("platform: %w", err)
		}
		f.Platforms = append(f.Platforms, platform)
	}

	var err error
	if f.Since, err = ParseTimeBound(since, now); err != nil {
		return Filter{}, fmt.Errorf("since: %w", err)
	}
	if f.Until, err = ParseTimeBound(until, now); err != nil {
		return Filter{}, fmt.Errorf("until: %w", err)
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Until.Before(f.Since) {
		return Filter{}, errors.New("until is before since")
	}
	return f, nil
}

// ParseTimeBound accepts a date (2025-05-01), an RFC 3339 time, a number of
// days ("7d") or a Go duration ("36h"). Relative forms count back from now.
// An empty string is the zero time.
func ParseTimeBound(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return now.Add(-time.Duration(n) * 24 * time.Hour), nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

// ScoredRecord is a record with its similarity to a query vector.
type ScoredRecord struct {
	StandardizedRecord
	Score float64 `json:"score"`
}

// NearestOptions configures a store nearest-neighbor query.
type NearestOptions struct {
	K      int
	Filter Filter
}

// Outcome classifies how an answer was produced.
type Outcome string

const (
	OutcomeAnswered      Outcome = "answered"
	OutcomeNoContext     Outcome = "no_context"
	OutcomeTruncated     Outcome = "truncated"
	OutcomeEmpty         Outcome = "empty_response"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeBackendStatus Outcome = "backend_status"
	OutcomeFailed        Outcome = "failed"
	OutcomeNoEmbedding   Outcome = "embedding_unavailable"
	OutcomeStoreFailed   Outcome = "store_unavailable"
)

// QueryResult is the outcome of one question-answering invocation.
// SourcesUsed always equals len(ContextRecords).
type QueryResult struct {
	Answer         string               `json:"answer"`
	SourcesUsed    int                  `json:"sources_used"`
	ContextRecords []StandardizedRecord `json:"context_records"`

	Outcome   Outcome `json:"outcome"`
	Cached    bool    `json:"cached,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// Clone returns a copy whose context records can be changed without
// affecting q.
func (q QueryResult) Clone() QueryResult {
	if q.ContextRecords != nil {
		records := make([]StandardizedRecord, len(q.ContextRecords))
		for i := range q.ContextRecords {
			records[i] = q.ContextRecords[i].Clone()
		}
		q.ContextRecords = records
	}
	return q
}
