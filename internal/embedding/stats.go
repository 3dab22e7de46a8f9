package embedding

import "sync/atomic"

// Stats is a snapshot of a Generator's cumulative counters.
type Stats struct {
	TotalGenerated int64 `json:"total_generated"`
	CacheHits      int64 `json:"cache_hits"`
	CacheMisses    int64 `json:"cache_misses"`
	APICalls       int64 `json:"api_calls"`
	Errors         int64 `json:"errors"`
	RateLimitHits  int64 `json:"rate_limit_hits"`
}

// HitRate is hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// counters are owned by one Generator and live as long as it does.
type counters struct {
	generated   atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	apiCalls    atomic.Int64
	errors      atomic.Int64
	rateLimited atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		TotalGenerated: c.generated.Load(),
		CacheHits:      c.hits.Load(),
		CacheMisses:    c.misses.Load(),
		APICalls:       c.apiCalls.Load(),
		Errors:         c.errors.Load(),
		RateLimitHits:  c.rateLimited.Load(),
	}
}
