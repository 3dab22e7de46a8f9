package qa

import (
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
)

// Answer cache defaults.
const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 24 * time.Hour
)

// answerCache keeps successful answers keyed by normalized question and
// filter. Results are copied in and out so callers never share an entry.
type answerCache struct {
	lru *expirable.LRU[string, models.QueryResult]
}

func newAnswerCache(size int, ttl time.Duration) *answerCache {
	if size <= 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &answerCache{lru: expirable.NewLRU[string, models.QueryResult](size, nil, ttl)}
}

func (c *answerCache) get(key string) (models.QueryResult, bool) {
	if c == nil {
		return models.QueryResult{}, false
	}
	res, ok := c.lru.Get(key)
	if !ok {
		return models.QueryResult{}, false
	}
	return res.Clone(), true
}

func (c *answerCache) put(key string, res models.QueryResult) {
	if c == nil {
		return
	}
	c.lru.Add(key, res.Clone())
}

func (c *answerCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *answerCache) purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

func cacheKey(question string, filter models.Filter) string {
	return normalizeQuestion(question) + "\x00" + filter.Key()
}

// normalizeQuestion lowercases, drops sentence punctuation (ASCII and
// full-width), and collapses whitespace.
func normalizeQuestion(q string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(q) {
		if strings.ContainsRune(".,!?;:。，！？；：", r) {
			continue
		}
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
