package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rich7420/community-ai-agent-sub001/internal/service"
)

// IngestInput defines the input schema for the ingest_records tool.
type IngestInput struct {
	Paths     []string `json:"paths" jsonschema:"required,Record files or directories (.yaml, .yml, .json) on the server host"`
	Recursive bool     `json:"recursive,omitempty" jsonschema:"Descend into subdirectories"`
	Reembed   bool     `json:"reembed,omitempty" jsonschema:"Embed records again even if they carry a current vector"`
	DryRun    bool     `json:"dry_run,omitempty" jsonschema:"Validate records without embedding or storing them"`
}

// JobStatusInput defines the input schema for the job_status tool.
type JobStatusInput struct {
	JobID string `json:"job_id,omitempty" jsonschema:"Job to inspect; omit to list all jobs"`
}

// JobView is the JSON form of an ingest job.
type JobView struct {
	ID          string                `json:"id"`
	Status      service.JobStatus     `json:"status"`
	Files       int                   `json:"files"`
	Progress    int                   `json:"progress"`
	Total       int                   `json:"total"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Error       string                `json:"error,omitempty"`
	Result      *service.IngestResult `json:"result,omitempty"`
}

func jobView(job *service.Job) JobView {
	s := job.Snapshot()
	return JobView{
		ID:          s.ID,
		Status:      s.Status,
		Files:       len(s.Files),
		Progress:    s.Progress,
		Total:       s.Total,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		Error:       s.Error,
		Result:      s.Result,
	}
}

// NewIngestHandler creates the ingest_records tool handler. Ingestion runs
// in the background; the result carries the job id for job_status.
func NewIngestHandler(deps *Dependencies) mcp.ToolHandlerFor[IngestInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, any, error) {
		if len(input.Paths) == 0 {
			return ErrorResult("Paths cannot be empty", "Provide record files or directories"), nil, nil
		}
		if deps.Ingest == nil || deps.Jobs == nil {
			return ErrorResult("Ingestion is not configured", ""), nil, nil
		}

		files, err := service.ResolvePaths(input.Paths, input.Recursive)
		if err != nil {
			return ErrorResult(err.Error(), "Paths are resolved on the server host"), nil, nil
		}

		job := deps.Ingest.IngestAsync(deps.Jobs, files, service.IngestOptions{
			Reembed: input.Reembed,
			DryRun:  input.DryRun,
		})
		deps.Logger.Info("ingest started", "job_id", job.ID, "files", len(files))

		jsonBytes, _ := json.MarshalIndent(jobView(job), "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}

// NewJobStatusHandler creates the job_status tool handler.
func NewJobStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[JobStatusInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input JobStatusInput) (*mcp.CallToolResult, any, error) {
		if deps.Jobs == nil {
			return ErrorResult("Ingestion is not configured", ""), nil, nil
		}

		var out any
		if input.JobID != "" {
			job := deps.Jobs.GetJob(input.JobID)
			if job == nil {
				return ErrorResult("Job not found: "+input.JobID, "Call job_status without job_id to list jobs"), nil, nil
			}
			out = jobView(job)
		} else {
			jobs := deps.Jobs.ListJobs()
			views := make([]JobView, 0, len(jobs))
			for _, j := range jobs {
				views = append(views, jobView(j))
			}
			out = views
		}

		jsonBytes, _ := json.MarshalIndent(out, "", "  ")
		return TextResult(string(jsonBytes)), nil, nil
	}
}
