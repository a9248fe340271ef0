package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

// TaskStore reads tasks together with their grading configuration.
type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Get(ctx context.Context, taskId uint) (*Task, error) {
	var task Task
	err := s.db.WithContext(ctx).Preload("GradingConfig").First(&task, "id = ?", taskId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("task %d: %w", taskId, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading task %d: %w", taskId, err)
	}
	return &task, nil
}

// SubmissionStore covers submission lifecycle updates and listings.
type SubmissionStore struct {
	db *gorm.DB
}

func NewSubmissionStore(db *gorm.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) ListByTask(ctx context.Context, taskId uint) ([]Submission, error) {
	var subs []Submission
	if err := s.db.WithContext(ctx).
		Where("task_id = ?", taskId).
		Order("student_name").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("error listing submissions for task %d: %w", taskId, err)
	}
	return subs, nil
}

// SetSubmissionID stores the content-derived correlation id for a submission.
func (s *SubmissionStore) SetSubmissionID(ctx context.Context, submissionId uint, correlationId string) error {
	return s.db.WithContext(ctx).
		Model(&Submission{Id: submissionId}).
		Update("submission_uid", correlationId).Error
}

// SetBatch stamps the remote job handle on every submission of the task and
// moves them to processing.
func (s *SubmissionStore) SetBatch(ctx context.Context, taskId uint, batchId string) error {
	return s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("task_id = ?", taskId).
		Updates(map[string]any{
			"batch_id":   batchId,
			"status":     SubmissionProcessing,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ProjectStatus applies a mapped local status to every submission sharing a
// remote job handle.
func (s *SubmissionStore) ProjectStatus(ctx context.Context, batchId, status string) error {
	return s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("batch_id = ?", batchId).
		Update("status", status).Error
}

// LatestBatchID returns the most recently assigned remote job handle for a
// task, or ErrNotFound if none of its submissions were ever enqueued.
func (s *SubmissionStore) LatestBatchID(ctx context.Context, taskId uint) (string, error) {
	var sub Submission
	err := s.db.WithContext(ctx).
		Where("task_id = ? AND batch_id IS NOT NULL", taskId).
		Order("id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("task %d has no enqueued batch: %w", taskId, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("error querying batch id for task %d: %w", taskId, err)
	}
	return sub.BatchId.String, nil
}

// SetFeedback records the graded feedback for the submission matching a
// correlation id and marks it downloaded.
func (s *SubmissionStore) SetFeedback(ctx context.Context, correlationId, feedback string) error {
	res := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("submission_uid = ?", correlationId).
		Updates(map[string]any{
			"feedback":     feedback,
			"status":       SubmissionDownloaded,
			"processed_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		slog.Warn("no submission matches correlation id", "correlation_id", correlationId)
	}
	return nil
}

// FileStore persists per-file extraction results, keyed by the
// (submission, path) natural key so reprocessing updates in place.
type FileStore struct {
	db *gorm.DB
}

func NewFileStore(db *gorm.DB) *FileStore {
	return &FileStore{db: db}
}

func (s *FileStore) Upsert(ctx context.Context, file *SubmissionFile) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "submission_id"}, {Name: "file_path"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"file_name", "file_type", "file_size", "is_text_file",
				"classification", "content_extracted", "updated_at",
			}),
		}).
		Create(file).Error
}

// SubmissionContent is one gradable file row joined with its owning
// submission, ordered for request assembly.
type SubmissionContent struct {
	SubmissionId uint
	StudentName  string
	FileName     string
	Content      string
}

// ListGradableByTask returns every file with non-empty extracted text for the
// task, ordered by submission then file insertion order.
func (s *FileStore) ListGradableByTask(ctx context.Context, taskId uint) ([]SubmissionContent, error) {
	var rows []SubmissionContent
	err := s.db.WithContext(ctx).
		Model(&SubmissionFile{}).
		Select("submission_files.submission_id AS submission_id, submissions.student_name AS student_name, submission_files.file_name AS file_name, submission_files.content_extracted AS content").
		Joins("JOIN submissions ON submissions.id = submission_files.submission_id").
		Where("submissions.task_id = ? AND submission_files.content_extracted IS NOT NULL AND submission_files.content_extracted != ''", taskId).
		Order("submission_files.submission_id, submission_files.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing gradable content for task %d: %w", taskId, err)
	}
	return rows, nil
}

// ImageStore persists extracted image metadata, keyed by (submission, path).
type ImageStore struct {
	db *gorm.DB
}

func NewImageStore(db *gorm.DB) *ImageStore {
	return &ImageStore{db: db}
}

func (s *ImageStore) Upsert(ctx context.Context, image *SubmissionImage) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "submission_id"}, {Name: "relative_path"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mime_type", "page_number", "image_index", "file_size",
				"width", "height", "d_hash", "a_hash", "is_duplicate", "updated_at",
			}),
		}).
		Create(image).Error
}

func (s *ImageStore) ListBySubmission(ctx context.Context, submissionId uint) ([]SubmissionImage, error) {
	var images []SubmissionImage
	if err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionId).
		Order("page_number, image_index").
		Find(&images).Error; err != nil {
		return nil, fmt.Errorf("error listing images for submission %d: %w", submissionId, err)
	}
	return images, nil
}

// StatusCacheStore owns the per-task batch status cache row. Timestamp and
// status are always written together.
type StatusCacheStore struct {
	db *gorm.DB
}

func NewStatusCacheStore(db *gorm.DB) *StatusCacheStore {
	return &StatusCacheStore{db: db}
}

func (s *StatusCacheStore) Get(ctx context.Context, taskId uint) (lastCheck sql.NullInt64, status sql.NullString, err error) {
	var task Task
	if err := s.db.WithContext(ctx).
		Select("last_check_timestamp", "cached_batch_status").
		First(&task, "id = ?", taskId).Error; err != nil {
		return sql.NullInt64{}, sql.NullString{}, fmt.Errorf("error reading status cache for task %d: %w", taskId, err)
	}
	return task.LastCheckTimestamp, task.CachedBatchStatus, nil
}

func (s *StatusCacheStore) Put(ctx context.Context, taskId uint, checkedAt int64, status string) error {
	return s.db.WithContext(ctx).
		Model(&Task{}).
		Where("id = ?", taskId).
		Updates(map[string]any{
			"last_check_timestamp": checkedAt,
			"cached_batch_status":  status,
		}).Error
}
