// Package memstore is an in-process record store with brute-force cosine
// search. It backs offline asks and tests.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/rich7420/community-ai-agent-sub001/internal/retrieval"
)

// Store holds records in a map keyed by id.
type Store struct {
	mu      sync.RWMutex
	records map[string]models.StandardizedRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]models.StandardizedRecord)}
}

// UpsertRecords inserts or replaces records by id.
func (s *Store) UpsertRecords(ctx context.Context, records []models.StandardizedRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			return 0, fmt.Errorf("upsert record: empty id")
		}
		r.Embedding = slices.Clone(r.Embedding)
		r.Metadata = maps.Clone(r.Metadata)
		s.records[r.ID] = r
	}
	return len(records), nil
}

// GetRecord returns the record or nil if absent.
func (s *Store) GetRecord(_ context.Context, id string) (*models.StandardizedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// DeleteRecord removes a record and reports whether it existed.
func (s *Store) DeleteRecord(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[id]
	delete(s.records, id)
	return ok, nil
}

// CountRecords returns the number of stored records.
func (s *Store) CountRecords(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Nearest scores every embedded record that passes the filter.
func (s *Store) Nearest(ctx context.Context, query []float32, opts models.NearestOptions) ([]models.ScoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	candidates := make([]models.ScoredRecord, 0, len(s.records))
	for _, r := range s.records {
		if !r.HasEmbedding() || !opts.Filter.Matches(&r) {
			continue
		}
		candidates = append(candidates, models.ScoredRecord{StandardizedRecord: r})
	}
	s.mu.RUnlock()

	return retrieval.Rank(query, candidates, 0, opts.K), nil
}
