package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rich7420/community-ai-agent-sub001/internal/metrics"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// recordRow is the stored shape of a StandardizedRecord.
type recordRow struct {
	ID             surrealmodels.RecordID `json:"id"`
	Platform       string                 `json:"platform"`
	Content        string                 `json:"content"`
	Author         string                 `json:"author"`
	Timestamp      *time.Time             `json:"timestamp,omitempty"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
	Embedding      []float32              `json:"embedding,omitempty"`
	EmbeddingModel string                 `json:"embedding_model,omitempty"`
	Score          float64                `json:"score,omitempty"`
}

func (r recordRow) toRecord() (models.StandardizedRecord, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.StandardizedRecord{}, err
	}
	rec := models.StandardizedRecord{
		ID:             id,
		Platform:       models.Platform(r.Platform),
		Content:        r.Content,
		Author:         r.Author,
		Metadata:       r.Metadata,
		Embedding:      r.Embedding,
		EmbeddingModel: r.EmbeddingModel,
	}
	if r.Timestamp != nil {
		rec.Timestamp = r.Timestamp.UTC()
	}
	return rec, nil
}

func recordVars(r *models.StandardizedRecord) map[string]any {
	ts := ""
	if !r.Timestamp.IsZero() {
		ts = r.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	metadata := map[string]any(r.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"id":              r.ID,
		"platform":        string(r.Platform),
		"content":         r.Content,
		"author":          r.Author,
		"timestamp":       ts,
		"metadata":        metadata,
		"embedding":       r.Embedding,
		"embedding_model": r.EmbeddingModel,
	}
}

// UpsertRecords inserts or replaces records by id in a single query.
// Returns the number of records written.
func (c *Client) UpsertRecords(ctx context.Context, records []models.StandardizedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	vars := make([]map[string]any, len(records))
	for i := range records {
		if strings.TrimSpace(records[i].ID) == "" {
			return 0, fmt.Errorf("upsert records: %w: empty id at index %d", ErrInvalidRecord, i)
		}
		vars[i] = recordVars(&records[i])
	}

	// Empty strings and nil vectors store as NONE; created is only set on insert.
	sql := `
		FOR $r IN $records {
			UPSERT type::record("community_record", $r.id) SET
				platform = $r.platform,
				content = $r.content,
				author = $r.author,
				timestamp = IF $r.timestamp THEN <datetime>$r.timestamp ELSE NONE END,
				metadata = $r.metadata,
				embedding = IF $r.embedding THEN $r.embedding ELSE NONE END,
				embedding_model = $r.embedding_model,
				updated = time::now();
		};
	`

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{"records": vars})
	if err != nil {
		c.metrics.RecordError(metrics.OpStoreUpsert, time.Since(start))
		return 0, fmt.Errorf("upsert records: %w", wrapQueryError(err))
	}
	c.metrics.RecordTiming(metrics.OpStoreUpsert, time.Since(start))
	return len(records), nil
}

// GetRecord retrieves a record by ID.
// Returns nil if not found.
func (c *Client) GetRecord(ctx context.Context, id string) (*models.StandardizedRecord, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	results, err := surrealdb.Query[[]recordRow](ctx, c.db, `
		SELECT * FROM type::record("community_record", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get record: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	rec, err := (*results)[0].Result[0].toRecord()
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &rec, nil
}

// DeleteRecord deletes a record by ID and reports whether it existed.
func (c *Client) DeleteRecord(ctx context.Context, id string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	// RETURN BEFORE yields the deleted row, so an empty result means absent.
	results, err := surrealdb.Query[[]recordRow](ctx, c.db, `
		DELETE type::record("community_record", $id) RETURN BEFORE
	`, map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("delete record: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return false, nil
	}
	return len((*results)[0].Result) > 0, nil
}

// CountRecords returns the number of stored records.
func (c *Client) CountRecords(ctx context.Context) (int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	results, err := surrealdb.Query[[]struct{ C int }](ctx, c.db,
		`SELECT count() AS c FROM community_record GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].C, nil
}

// Nearest returns up to opts.K records closest to query by cosine
// similarity, with their embeddings and scores. Records without an
// embedding are never returned.
func (c *Client) Nearest(ctx context.Context, query []float32, opts models.NearestOptions) ([]models.ScoredRecord, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("nearest: empty query vector")
	}
	k := opts.K
	if k <= 0 {
		k = 5
	}

	filterClause := ""
	vars := map[string]any{"emb": query}
	if len(opts.Filter.Platforms) > 0 {
		platforms := make([]string, len(opts.Filter.Platforms))
		for i, p := range opts.Filter.Platforms {
			platforms[i] = string(p)
		}
		filterClause += " AND platform IN $platforms"
		vars["platforms"] = platforms
	}
	if !opts.Filter.Since.IsZero() {
		filterClause += " AND timestamp >= <datetime>$since"
		vars["since"] = opts.Filter.Since.UTC().Format(time.RFC3339Nano)
	}
	if !opts.Filter.Until.IsZero() {
		filterClause += " AND timestamp <= <datetime>$until"
		vars["until"] = opts.Filter.Until.UTC().Format(time.RFC3339Nano)
	}

	// HNSW KNN with ef=40; the score is recomputed exactly for ordering.
	sql := fmt.Sprintf(`
		SELECT id, platform, content, author, timestamp, metadata, embedding, embedding_model,
			vector::similarity::cosine(embedding, $emb) AS score
		FROM community_record
		WHERE embedding <|%d,40|> $emb %s
		ORDER BY score DESC
	`, k, filterClause)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	results, err := surrealdb.Query[[]recordRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("nearest: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.ScoredRecord{}, nil
	}

	rows := (*results)[0].Result
	out := make([]models.ScoredRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			c.logger.Warn("skipping record with unexpected id", "error", err)
			continue
		}
		out = append(out, models.ScoredRecord{StandardizedRecord: rec, Score: row.Score})
	}
	return out, nil
}
