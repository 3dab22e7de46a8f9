// Package models defines data structures for the community record store.
package models

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Platform identifies the community platform a record was collected from.
type Platform string

const (
	PlatformSlack    Platform = "slack"
	PlatformGitHub   Platform = "github"
	PlatformCalendar Platform = "calendar"
)

// ParsePlatform normalizes a platform name. Unknown names are accepted as-is
// so new collectors don't need a code change here.
func ParsePlatform(s string) (Platform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty platform")
	}
	return Platform(s), nil
}

// Label returns a display name for prompts and CLI output.
func (p Platform) Label() string {
	switch p {
	case PlatformSlack:
		return "Slack"
	case PlatformGitHub:
		return "GitHub"
	case PlatformCalendar:
		return "Calendar"
	default:
		return string(p)
	}
}

// StandardizedRecord is a normalized unit of community activity.
//
// Embedding is only valid for the Content it was generated from under
// EmbeddingModel. Use SetContent to change content so a stale vector is
// never kept.
type StandardizedRecord struct {
	ID        string    `json:"id" yaml:"id"`
	Platform  Platform  `json:"platform" yaml:"platform"`
	Content   string    `json:"content" yaml:"content"`
	Author    string    `json:"author" yaml:"author"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Metadata  Metadata  `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Embedding      []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty"`
}

// HasEmbedding reports whether a vector is attached.
func (r *StandardizedRecord) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

// SetContent replaces the content and drops any embedding generated from the
// previous content.
func (r *StandardizedRecord) SetContent(content string) {
	if content == r.Content {
		return
	}
	r.Content = content
	r.Embedding = nil
	r.EmbeddingModel = ""
}

// AttachEmbedding records a vector generated from the current content.
func (r *StandardizedRecord) AttachEmbedding(vec []float32, model string) {
	r.Embedding = vec
	r.EmbeddingModel = model
}

// Clone returns a copy that shares no slices or maps with r. Metadata is
// copied one level deep.
func (r StandardizedRecord) Clone() StandardizedRecord {
	r.Metadata = maps.Clone(r.Metadata)
	r.Embedding = slices.Clone(r.Embedding)
	return r
}

// Embeddable reports whether the record has content worth embedding.
func (r *StandardizedRecord) Embeddable() bool {
	return strings.TrimSpace(r.Content) != ""
}

// SourceLine describes where a record came from, e.g.
// "Slack - alice in #general" or "GitHub - org/repo/README.md".
func (r *StandardizedRecord) SourceLine() string {
	switch r.Platform {
	case PlatformSlack:
		author := r.Author
		if author == "" {
			author = r.Metadata.StringOr("author_anon", "Unknown")
		}
		channel := r.Metadata.StringOr("channel_name", r.Metadata.StringOr("channel", "Unknown"))
		return fmt.Sprintf("Slack - %s in #%s", author, channel)
	case PlatformGitHub:
		repo := r.Metadata.StringOr("repository", "Unknown")
		if path, ok := r.Metadata.String("path"); ok {
			return fmt.Sprintf("GitHub - %s/%s", repo, path)
		}
		if num, ok := r.Metadata.Int("number"); ok {
			return fmt.Sprintf("GitHub - %s#%d", repo, num)
		}
		return fmt.Sprintf("GitHub - %s", repo)
	case PlatformCalendar:
		return fmt.Sprintf("Calendar - %s", r.Metadata.StringOr("summary", "event"))
	default:
		return fmt.Sprintf("%s - Unknown", r.Platform)
	}
}
