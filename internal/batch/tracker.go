package batch

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"gradeflow/internal/database"
)

// MapJobStatus projects a remote batch status onto the local submission
// lifecycle. Unknown remote states (including validating and queued) stay
// pending.
func MapJobStatus(remote string) string {
	switch remote {
	case "completed":
		return database.SubmissionCompleted
	case "failed", "expired", "cancelled":
		return database.SubmissionFailed
	case "in_progress", "finalizing":
		return database.SubmissionProcessing
	default:
		return database.SubmissionPending
	}
}

// Tracker decides when the remote job status may be re-queried and serves
// the cached value in between. It is the single writer of the per-task
// status cache row.
type Tracker struct {
	cache       *database.StatusCacheStore
	submissions *database.SubmissionStore
	service     Service

	// Minimum seconds between two remote queries for the same task.
	interval int64

	now func() time.Time
}

func NewTracker(cache *database.StatusCacheStore, submissions *database.SubmissionStore, service Service, intervalSeconds int64) *Tracker {
	return &Tracker{
		cache:       cache,
		submissions: submissions,
		service:     service,
		interval:    intervalSeconds,
		now:         time.Now,
	}
}

// CheckResult reports the job status and whether it was served from cache.
type CheckResult struct {
	Status    JobStatus
	FromCache bool
}

// ShouldRefresh is true when the task was never checked or the configured
// interval has elapsed (inclusive boundary).
func (t *Tracker) ShouldRefresh(task *database.Task) bool {
	if !task.LastCheckTimestamp.Valid {
		return true
	}
	return t.now().Unix()-task.LastCheckTimestamp.Int64 >= t.interval
}

// Check returns the job status for the task's batch, querying the remote
// service only when the cache interval allows it. An empty cache inside a
// fresh window still forces a refresh rather than returning nothing.
func (t *Tracker) Check(ctx context.Context, task *database.Task, batchID string) (CheckResult, error) {
	if t.ShouldRefresh(task) {
		return t.refresh(ctx, task, batchID)
	}

	if task.CachedBatchStatus.Valid && task.CachedBatchStatus.String != "" {
		slog.Debug("serving cached batch status", "task_id", task.Id, "status", task.CachedBatchStatus.String)
		return CheckResult{
			Status:    JobStatus{Status: task.CachedBatchStatus.String},
			FromCache: true,
		}, nil
	}

	slog.Warn("status cache empty inside fresh window, forcing refresh", "task_id", task.Id)
	return t.refresh(ctx, task, batchID)
}

func (t *Tracker) refresh(ctx context.Context, task *database.Task, batchID string) (CheckResult, error) {
	status, err := t.service.Status(ctx, batchID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("task %d: error querying status of batch %s: %w", task.Id, batchID, err)
	}

	checkedAt := t.now().Unix()
	if err := t.cache.Put(ctx, task.Id, checkedAt, status.Status); err != nil {
		return CheckResult{}, fmt.Errorf("task %d: error caching batch status: %w", task.Id, err)
	}
	task.LastCheckTimestamp = sql.NullInt64{Int64: checkedAt, Valid: true}
	task.CachedBatchStatus = sql.NullString{String: status.Status, Valid: true}

	local := MapJobStatus(status.Status)
	if err := t.submissions.ProjectStatus(ctx, batchID, local); err != nil {
		return CheckResult{}, fmt.Errorf("task %d: error projecting status onto submissions: %w", task.Id, err)
	}

	slog.Info("batch status refreshed", "task_id", task.Id, "batch_id", batchID,
		"remote_status", status.Status, "local_status", local)
	return CheckResult{Status: status}, nil
}
