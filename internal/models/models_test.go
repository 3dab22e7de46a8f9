package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestSetContentDropsStaleEmbedding(t *testing.T) {
	r := StandardizedRecord{ID: "a", Content: "hello"}
	r.AttachEmbedding([]float32{1, 0}, "nomic-embed-text")
	require.True(t, r.HasEmbedding())

	r.SetContent("hello")
	assert.True(t, r.HasEmbedding(), "same content keeps the vector")

	r.SetContent("hello world")
	assert.False(t, r.HasEmbedding())
	assert.Empty(t, r.EmbeddingModel)
}

func TestSourceLine(t *testing.T) {
	tests := []struct {
		name   string
		record StandardizedRecord
		want   string
	}{
		{
			"slack with channel name",
			StandardizedRecord{Platform: PlatformSlack, Author: "user_3f2a", Metadata: Metadata{"channel_name": "apache-ozone", "channel": "C07PLV9QNLF"}},
			"Slack - user_3f2a in #apache-ozone",
		},
		{
			"slack falls back to author_anon and channel id",
			StandardizedRecord{Platform: PlatformSlack, Metadata: Metadata{"author_anon": "anon_1", "channel": "C1"}},
			"Slack - anon_1 in #C1",
		},
		{
			"github file",
			StandardizedRecord{Platform: PlatformGitHub, Metadata: Metadata{"repository": "org/repo", "path": "README.md"}},
			"GitHub - org/repo/README.md",
		},
		{
			"github issue from json number",
			StandardizedRecord{Platform: PlatformGitHub, Metadata: Metadata{"repository": "org/repo", "number": float64(42)}},
			"GitHub - org/repo#42",
		},
		{
			"unknown platform",
			StandardizedRecord{Platform: "forum"},
			"forum - Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.SourceLine())
		})
	}
}

func TestMetadataPresence(t *testing.T) {
	m := Metadata{"labels": []any{"bug", "help wanted"}, "empty": "", "nil": nil, "ratio": 1.5, "ts": "2025-01-02T03:04:05Z"}

	assert.True(t, m.Has("nil"))
	assert.False(t, m.Has("missing"))

	_, ok := m.String("empty")
	assert.False(t, ok)

	labels, ok := m.Strings("labels")
	require.True(t, ok)
	assert.Equal(t, []string{"bug", "help wanted"}, labels)

	_, ok = m.Int("ratio")
	assert.False(t, ok, "fractional values are not ints")

	ts, ok := m.Time("ts")
	require.True(t, ok)
	assert.Equal(t, 2025, ts.Year())

	var nilMeta Metadata
	assert.Equal(t, "x", nilMeta.StringOr("anything", "x"))
}

func TestFilterMatches(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r := &StandardizedRecord{Platform: PlatformGitHub, Timestamp: base}

	assert.True(t, Filter{}.Matches(r))
	assert.True(t, Filter{Platforms: []Platform{PlatformSlack, PlatformGitHub}}.Matches(r))
	assert.False(t, Filter{Platforms: []Platform{PlatformSlack}}.Matches(r))
	assert.False(t, Filter{Since: base.Add(time.Hour)}.Matches(r))
	assert.False(t, Filter{Until: base.Add(-time.Hour)}.Matches(r))
	assert.True(t, Filter{Since: base, Until: base}.Matches(r))
}

func TestFilterKeyIsOrderIndependent(t *testing.T) {
	a := Filter{Platforms: []Platform{PlatformSlack, PlatformGitHub}}
	b := Filter{Platforms: []Platform{PlatformGitHub, PlatformSlack}}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Filter{}.Key())
}

func TestRecordJSONShape(t *testing.T) {
	raw := `{"id":"m1","platform":"slack","content":"hi","author":"u1","timestamp":"2025-01-01T00:00:00Z","metadata":{"channel":"C1"}}`
	var r StandardizedRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	assert.Equal(t, PlatformSlack, r.Platform)
	assert.Equal(t, "C1", r.Metadata.StringOr("channel", ""))
	assert.False(t, r.HasEmbedding())
}

func TestRecordIDString(t *testing.T) {
	id, err := RecordIDString(NewRecordID("m1"))
	require.NoError(t, err)
	assert.Equal(t, "m1", id)

	_, err = RecordIDString(surrealmodels.NewRecordID(RecordTable, 7))
	assert.Error(t, err)
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" Slack ")
	require.NoError(t, err)
	assert.Equal(t, PlatformSlack, p)
	assert.Equal(t, "GitHub", PlatformGitHub.Label())

	_, err = ParsePlatform("  ")
	assert.Error(t, err)
}

func TestQueryResultClone(t *testing.T) {
	orig := QueryResult{
		Answer:      "a",
		SourcesUsed: 1,
		ContextRecords: []StandardizedRecord{{
			ID:        "s1",
			Content:   "hello",
			Metadata:  Metadata{"channel": "general"},
			Embedding: []float32{1, 2},
		}},
	}

	c := orig.Clone()
	c.ContextRecords[0].Content = "changed"
	c.ContextRecords[0].Metadata["channel"] = "random"
	c.ContextRecords[0].Embedding[0] = 9

	assert.Equal(t, "hello", orig.ContextRecords[0].Content)
	assert.Equal(t, "general", orig.ContextRecords[0].Metadata.StringOr("channel", ""))
	assert.Equal(t, float32(1), orig.ContextRecords[0].Embedding[0])
	assert.Nil(t, QueryResult{}.Clone().ContextRecords)
}

func TestParseTimeBound(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", time.Time{}},
		{"2025-05-01", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2025-05-01T12:00:00+02:00", time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"7d", now.Add(-7 * 24 * time.Hour)},
		{"0d", now},
		{"36h", now.Add(-36 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeBound(tt.in, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	for _, bad := range []string{"yesterday", "-3d", "-2h", "2025-13-01"} {
		_, err := ParseTimeBound(bad, now)
		assert.Error(t, err, bad)
	}
}

func TestParseFilter(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	f, err := ParseFilter([]string{"slack"}, "7d", "2025-05-09", now)
	require.NoError(t, err)
	assert.Equal(t, []Platform{PlatformSlack}, f.Platforms)
	assert.True(t, now.Add(-7*24*time.Hour).Equal(f.Since))
	assert.Equal(t, time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC), f.Until)

	_, err = ParseFilter(nil, "2025-05-02", "2025-05-01", now)
	assert.ErrorContains(t, err, "until is before since")
	_, err = ParseFilter(nil, "last week", "", now)
	assert.ErrorContains(t, err, "since")
	_, err = ParseFilter([]string{""}, "", "", now)
	assert.ErrorContains(t, err, "platform")
}
