package database

import (
	"database/sql"
	"time"
)

// Local submission lifecycle states. The first four are driven by the remote
// batch job, the last two by the retrieval and packaging stages.
const (
	SubmissionPending    string = "pending"
	SubmissionProcessing string = "processing"
	SubmissionCompleted  string = "completed"
	SubmissionFailed     string = "failed"
	SubmissionDownloaded string = "downloaded"
	SubmissionPackaged   string = "packaged"
)

type GradingConfig struct {
	Id                    uint `gorm:"primaryKey"`
	MessageRoleSystem     string
	Context               string
	ActivityStatement     string
	Rubric                string
	GeneratedInstructions string
	CreatedAt             time.Time
}

type Task struct {
	Id   uint   `gorm:"primaryKey"`
	Name string `gorm:"not null"`

	// Assignment id in the external LMS. When present it names the batch
	// request file, otherwise the local id does.
	ExternalTaskId sql.NullString

	GradingConfigId sql.NullInt64
	GradingConfig   *GradingConfig `gorm:"foreignKey:GradingConfigId"`

	// Batch status cache. Both fields are always written together in a
	// single update; the lifecycle tracker is the only writer.
	LastCheckTimestamp sql.NullInt64
	CachedBatchStatus  sql.NullString

	CreatedAt time.Time
	UpdatedAt time.Time

	Submissions []Submission `gorm:"foreignKey:TaskId;constraint:OnDelete:CASCADE"`
}

type Submission struct {
	Id               uint   `gorm:"primaryKey"`
	TaskId           uint   `gorm:"not null;uniqueIndex:idx_submission_natural_key"`
	StudentName      string `gorm:"not null;uniqueIndex:idx_submission_natural_key"`
	SubmissionNumber int    `gorm:"default:1;uniqueIndex:idx_submission_natural_key"`

	// Content-derived correlation id echoed back by the remote service.
	SubmissionID sql.NullString `gorm:"column:submission_uid;index"`

	BatchId sql.NullString `gorm:"index"`
	Status  string         `gorm:"size:20;not null;default:pending"`

	Feedback sql.NullString
	Grade    sql.NullFloat64

	SubmittedAt time.Time
	ProcessedAt sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Files  []SubmissionFile  `gorm:"foreignKey:SubmissionId;constraint:OnDelete:CASCADE"`
	Images []SubmissionImage `gorm:"foreignKey:SubmissionId;constraint:OnDelete:CASCADE"`
}

type SubmissionFile struct {
	Id           uint   `gorm:"primaryKey"`
	SubmissionId uint   `gorm:"not null;uniqueIndex:idx_submission_file_path"`
	FilePath     string `gorm:"not null;uniqueIndex:idx_submission_file_path"`
	FileName     string `gorm:"not null"`

	FileType string `gorm:"size:100"`
	FileSize int64

	IsTextFile       bool           `gorm:"default:false"`
	Classification   string         `gorm:"size:20"`
	ContentExtracted sql.NullString

	OpenAIFileId sql.NullString

	CreatedAt time.Time
	UpdatedAt time.Time
}

type SubmissionImage struct {
	Id           uint   `gorm:"primaryKey"`
	SubmissionId uint   `gorm:"not null;uniqueIndex:idx_submission_image_path"`
	RelativePath string `gorm:"not null;uniqueIndex:idx_submission_image_path"`

	MimeType   string `gorm:"size:100"`
	PageNumber int
	ImageIndex int
	FileSize   int64
	Width      int
	Height     int

	DHash sql.NullString `gorm:"size:16"`
	AHash sql.NullString `gorm:"size:16"`

	// Set by the duplicate clusterer only, never unset automatically.
	IsDuplicate bool `gorm:"default:false"`

	OpenAIFileId sql.NullString
	Description  sql.NullString

	CreatedAt time.Time
	UpdatedAt time.Time
}
