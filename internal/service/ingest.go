package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rich7420/community-ai-agent-sub001/internal/models"
)

// DefaultChunkSize is how many records are embedded and upserted together.
const DefaultChunkSize = 100

// RecordStore persists records.
type RecordStore interface {
	UpsertRecords(ctx context.Context, records []models.StandardizedRecord) (int, error)
}

// BatchEmbedder embeds texts in order; a nil vector marks a failed item.
type BatchEmbedder interface {
	GenerateBatch(ctx context.Context, texts []string) [][]float32
	Model() string
}

// IngestService embeds standardized records and writes them to the store.
type IngestService struct {
	store      RecordStore
	embedder   BatchEmbedder
	logger     *slog.Logger
	onUpserted func(n int)
}

// NewIngestService creates a new ingest service.
func NewIngestService(store RecordStore, embedder BatchEmbedder, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{store: store, embedder: embedder, logger: logger}
}

// OnUpserted registers fn to run after every ingest that stored at least one
// record, including ingests stopped early by cancellation. fn may be called
// from a job goroutine. It must be set before the service is used.
func (s *IngestService) OnUpserted(fn func(n int)) {
	s.onUpserted = fn
}

func (s *IngestService) notifyUpserted(result *IngestResult) {
	if s.onUpserted != nil && result.Upserted > 0 {
		s.onUpserted(result.Upserted)
	}
}

// IngestOptions configures ingestion.
type IngestOptions struct {
	// DryRun validates records without embedding or storing them.
	DryRun bool
	// Reembed regenerates vectors even when a record already carries one
	// from the current model.
	Reembed bool
	// ChunkSize is how many records are embedded and upserted per round.
	ChunkSize int
	// Progress is called after each chunk with records done and total.
	Progress func(done, total int)
	// Job for progress reporting (optional, set by async ingestion).
	Job        *Job
	JobManager *JobManager
}

// IngestResult summarizes an ingestion operation.
type IngestResult struct {
	Processed int      `json:"processed"`
	Embedded  int      `json:"embedded"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Upserted  int      `json:"upserted"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *IngestResult) fail(format string, args ...any) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// IngestRecords validates, embeds, and upserts records. Invalid records and
// records whose embedding could not be generated are counted as failed and
// not stored; the rest of the batch continues.
func (s *IngestService) IngestRecords(ctx context.Context, records []models.StandardizedRecord, opts IngestOptions) (*IngestResult, error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	result := &IngestResult{}
	valid := make([]models.StandardizedRecord, 0, len(records))
	seen := make(map[string]int, len(records))
	for _, r := range records {
		result.Processed++
		if err := ValidateRecord(&r); err != nil {
			result.fail("%v", err)
			continue
		}
		// Later duplicates win.
		if i, ok := seen[r.ID]; ok {
			valid[i] = r
			continue
		}
		seen[r.ID] = len(valid)
		valid = append(valid, r)
	}

	s.logger.Info("starting record ingest",
		"records", len(records), "valid", len(valid), "chunk_size", chunkSize, "dry_run", opts.DryRun)

	if opts.DryRun {
		s.report(opts, len(valid), len(valid))
		return result, nil
	}

	done := 0
	for start := 0; start < len(valid); start += chunkSize {
		if err := ctx.Err(); err != nil {
			s.notifyUpserted(result)
			return result, fmt.Errorf("ingest records: %w", err)
		}
		end := min(start+chunkSize, len(valid))
		s.ingestChunk(ctx, valid[start:end], opts, result)
		done = end
		s.report(opts, done, len(valid))
	}

	s.logger.Info("record ingest complete",
		"processed", result.Processed,
		"embedded", result.Embedded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"upserted", result.Upserted)
	s.notifyUpserted(result)
	return result, nil
}

func (s *IngestService) ingestChunk(ctx context.Context, chunk []models.StandardizedRecord, opts IngestOptions, result *IngestResult) {
	model := s.embedder.Model()

	var texts []string
	var pending []int
	for i := range chunk {
		if !opts.Reembed && chunk[i].HasEmbedding() && chunk[i].EmbeddingModel == model {
			result.Skipped++
			continue
		}
		texts = append(texts, chunk[i].Content)
		pending = append(pending, i)
	}

	failed := make(map[int]bool)
	if len(texts) > 0 {
		vecs := s.embedder.GenerateBatch(ctx, texts)
		for j, i := range pending {
			if j >= len(vecs) || vecs[j] == nil {
				failed[i] = true
				result.fail("%s: embedding unavailable", chunk[i].ID)
				continue
			}
			chunk[i].AttachEmbedding(vecs[j], model)
			result.Embedded++
		}
	}

	store := make([]models.StandardizedRecord, 0, len(chunk))
	for i := range chunk {
		if !failed[i] {
			store = append(store, chunk[i])
		}
	}
	if len(store) == 0 {
		return
	}

	n, err := s.store.UpsertRecords(ctx, store)
	if err != nil {
		s.logger.Error("upsert chunk failed", "records", len(store), "error", err)
		result.Failed += len(store)
		result.Errors = append(result.Errors, fmt.Sprintf("upsert %d records: %v", len(store), err))
		return
	}
	result.Upserted += n
}

func (s *IngestService) report(opts IngestOptions, done, total int) {
	if opts.Progress != nil {
		opts.Progress(done, total)
	}
	if opts.JobManager != nil && opts.Job != nil {
		opts.JobManager.UpdateProgress(opts.Job, done, total)
	}
}

// IngestFiles loads every file and ingests the union of their records.
// Files that fail to parse are reported in the result and skipped.
func (s *IngestService) IngestFiles(ctx context.Context, paths []string, opts IngestOptions) (*IngestResult, error) {
	var records []models.StandardizedRecord
	var loadErrors []string
	for _, p := range paths {
		recs, err := LoadRecordsFile(p)
		if err != nil {
			s.logger.Warn("skipping unreadable record file", "file", filepath.Base(p), "error", err)
			loadErrors = append(loadErrors, err.Error())
			continue
		}
		s.logger.Debug("loaded record file", "file", filepath.Base(p), "records", len(recs))
		records = append(records, recs...)
	}

	result, err := s.IngestRecords(ctx, records, opts)
	if result != nil {
		result.Errors = append(loadErrors, result.Errors...)
	}
	return result, err
}

// ResolvePaths expands directories into the record files they contain.
func ResolvePaths(paths []string, recursive bool) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := CollectFiles(p, recursive)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no record files found in %v", paths)
	}
	return files, nil
}

// IngestAsync starts a background ingest job over files.
func (s *IngestService) IngestAsync(jobManager *JobManager, files []string, opts IngestOptions) *Job {
	job := jobManager.CreateJob("ingest", files)
	opts.Job = job
	opts.JobManager = jobManager

	go func() {
		defer func() {
			if r := recover(); r != nil {
				jobManager.Fail(job, fmt.Errorf("internal panic: %v", r))
			}
		}()

		bgCtx := context.Background()
		jobManager.SetRunning(job)

		result, err := s.IngestFiles(bgCtx, files, opts)
		if err != nil {
			jobManager.Fail(job, err)
			return
		}
		jobManager.Complete(job, result)
	}()

	return job
}
