// Package pipeline orchestrates one task's run: classify and extract every
// submission file, run the image sub-pipeline over PDFs, assemble the batch
// request file, enqueue it, and track the remote job afterwards.
package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gradeflow/internal/assess"
	"gradeflow/internal/batch"
	"gradeflow/internal/config"
	"gradeflow/internal/database"
	"gradeflow/internal/extraction"
	"gradeflow/internal/imaging"
	"gradeflow/internal/workspace"
	"gradeflow/pkg/api"

	"github.com/google/uuid"
)

type Processor struct {
	cfg config.Config

	tasks       *database.TaskStore
	submissions *database.SubmissionStore
	files       *database.FileStore
	images      *database.ImageStore

	classifier *extraction.Classifier
	ocr        *extraction.OCRExtractor
	extractor  *imaging.Extractor
	clusterer  *imaging.Clusterer

	assembler *batch.Assembler
	tracker   *batch.Tracker
	service   batch.Service
	grader    *assess.Client
}

func NewProcessor(cfg config.Config, tasks *database.TaskStore, submissions *database.SubmissionStore,
	files *database.FileStore, images *database.ImageStore,
	assembler *batch.Assembler, tracker *batch.Tracker, service batch.Service, grader *assess.Client) *Processor {
	return &Processor{
		cfg:         cfg,
		tasks:       tasks,
		submissions: submissions,
		files:       files,
		images:      images,
		classifier:  extraction.NewClassifier(),
		ocr:         extraction.NewOCRExtractor(cfg.OCRBinary, cfg.OCRLanguages),
		extractor:   imaging.NewExtractor(),
		clusterer:   imaging.NewClusterer(cfg.DHashMaxDistance, cfg.AHashMaxDistance, cfg.MinDuplicateClusterSize),
		assembler:   assembler,
		tracker:     tracker,
		service:     service,
		grader:      grader,
	}
}

// gradingInstructions returns the task's generated instructions. Their
// absence is a structural error distinct from transient remote failures.
func gradingInstructions(task *database.Task) (string, error) {
	if task.GradingConfig == nil || task.GradingConfig.GeneratedInstructions == "" {
		return "", fmt.Errorf("task %d: no rubric configured, generate grading instructions first", task.Id)
	}
	return task.GradingConfig.GeneratedInstructions, nil
}

type runStats struct {
	files       int
	textFiles   int
	pdfFiles    int
	unsupported int
}

// ProcessTask runs the full extraction and enqueue pipeline for one task.
// Submissions are processed sequentially; each file's result is committed
// independently so an aborted run can resume idempotently.
func (p *Processor) ProcessTask(ctx context.Context, taskID uint) error {
	runID := uuid.New()
	log := slog.With("task_id", taskID, "run_id", runID)

	task, err := p.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}

	instructions, err := gradingInstructions(task)
	if err != nil {
		return err
	}

	taskDir := workspace.TaskDir(p.cfg.WorkspaceRoot, task.Name)
	if _, err := os.Stat(taskDir); err != nil {
		return fmt.Errorf("task %d: task directory %s: %w", taskID, taskDir, err)
	}

	subs, err := p.submissions.ListByTask(ctx, taskID)
	if err != nil {
		return err
	}

	var stats runStats
	for i := range subs {
		if err := p.processSubmission(ctx, log, task, taskDir, &subs[i], &stats); err != nil {
			return err
		}
	}
	log.Info("extraction finished", "files", stats.files, "text_files", stats.textFiles,
		"pdf_files", stats.pdfFiles, "unsupported", stats.unsupported)

	path, err := p.assembler.Assemble(ctx, task, taskDir, instructions)
	if err != nil {
		return err
	}

	jobID, err := p.service.Submit(ctx, path)
	if err != nil {
		return fmt.Errorf("task %d: error enqueueing batch: %w", taskID, err)
	}

	if err := p.submissions.SetBatch(ctx, taskID, jobID); err != nil {
		return fmt.Errorf("task %d: error recording batch handle: %w", taskID, err)
	}

	log.Info("task enqueued", "batch_id", jobID)
	return nil
}

func (p *Processor) processSubmission(ctx context.Context, log *slog.Logger, task *database.Task,
	taskDir string, sub *database.Submission, stats *runStats) error {
	studentDir := filepath.Join(taskDir, sub.StudentName)
	if info, err := os.Stat(studentDir); err != nil || !info.IsDir() {
		log.Warn("submission directory missing, skipping", "student", sub.StudentName, "dir", studentDir)
		return nil
	}

	paths, err := workspace.ListFiles(studentDir)
	if err != nil {
		log.Warn("error listing submission files, skipping", "student", sub.StudentName, "error", err)
		return nil
	}

	for _, path := range paths {
		if err := p.processFile(ctx, log, task, taskDir, sub, path, stats); err != nil {
			return err
		}
	}
	return nil
}

// processFile classifies and extracts one file, committing the result row
// on its own. Only cancellation propagates; anything else degrades to a
// logged skip so sibling files keep processing.
func (p *Processor) processFile(ctx context.Context, log *slog.Logger, task *database.Task,
	taskDir string, sub *database.Submission, path string, stats *runStats) error {
	result, err := p.classifier.ClassifyAndExtract(path)
	if err != nil {
		log.Error("error classifying file, skipping", "file", path, "error", err)
		return nil
	}
	stats.files++

	relPath, err := filepath.Rel(taskDir, path)
	if err != nil {
		relPath = path
	}

	info, err := os.Stat(path)
	var size int64
	if err == nil {
		size = info.Size()
	}

	record := database.SubmissionFile{
		SubmissionId:   sub.Id,
		FilePath:       relPath,
		FileName:       filepath.Base(path),
		FileType:       result.MediaType,
		FileSize:       size,
		Classification: string(result.Class),
	}

	switch result.Class {
	case extraction.ClassPlainText:
		record.IsTextFile = true
		record.ContentExtracted = sql.NullString{String: result.Text, Valid: true}
		stats.textFiles++

	case extraction.ClassPDFOriginal:
		taskHint := ""
		if task.ExternalTaskId.Valid {
			taskHint = task.ExternalTaskId.String
		}
		ocrResult, err := p.ocr.Extract(ctx, path, taskHint, sub.StudentName, p.cfg.WorkspaceRoot)
		switch {
		case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			// Record the sentinel so the submission is not silently
			// dropped, then re-signal the cancellation.
			record.ContentExtracted = sql.NullString{String: ocrResult.Text, Valid: true}
			if upsertErr := p.files.Upsert(ctx, &record); upsertErr != nil {
				log.Error("error persisting interrupted extraction", "file", relPath, "error", upsertErr)
			}
			return err
		case err != nil:
			log.Error("error extracting pdf text, skipping", "file", relPath, "error", err)
		default:
			record.Classification = string(extraction.ClassPDFExtracted)
			record.ContentExtracted = sql.NullString{String: ocrResult.Text, Valid: true}
			stats.pdfFiles++
		}

		p.processImages(ctx, log, sub, path)

	case extraction.ClassUnsupported:
		stats.unsupported++
	}

	if err := p.files.Upsert(ctx, &record); err != nil {
		log.Error("error persisting extraction result", "file", relPath, "error", err)
	}
	return nil
}

// processImages runs the image sub-pipeline over one PDF: extract, hash,
// cluster, persist with duplicate flags. Failures never abort the run.
func (p *Processor) processImages(ctx context.Context, log *slog.Logger, sub *database.Submission, pdfPath string) {
	images, err := p.extractor.ExtractImages(pdfPath)
	if err != nil {
		log.Error("error extracting images, skipping", "file", pdfPath, "error", err)
		return
	}
	if len(images) == 0 {
		return
	}

	p.clusterer.Cluster(images)

	for _, img := range images {
		record := database.SubmissionImage{
			SubmissionId: sub.Id,
			RelativePath: img.RelativePath,
			MimeType:     img.MimeType,
			PageNumber:   img.PageNumber,
			ImageIndex:   img.ImageIndex,
			FileSize:     img.FileSize,
			Width:        img.Width,
			Height:       img.Height,
			IsDuplicate:  img.IsDuplicate,
		}
		if img.DHash != "" {
			record.DHash = sql.NullString{String: img.DHash, Valid: true}
			record.AHash = sql.NullString{String: img.AHash, Valid: true}
		}
		if err := p.images.Upsert(ctx, &record); err != nil {
			log.Error("error persisting image metadata", "image", img.RelativePath, "error", err)
		}
	}
}

// CheckStatus reports the remote job status for the task's batch, honoring
// the cache interval.
func (p *Processor) CheckStatus(ctx context.Context, taskID uint) (batch.CheckResult, error) {
	task, err := p.tasks.Get(ctx, taskID)
	if err != nil {
		return batch.CheckResult{}, err
	}

	batchID, err := p.submissions.LatestBatchID(ctx, taskID)
	if err != nil {
		return batch.CheckResult{}, err
	}

	return p.tracker.Check(ctx, task, batchID)
}

// AssessSubmission grades one submission synchronously through the local
// assessment service, outside the batch path. Nothing is persisted; the
// graded response is returned to the caller.
func (p *Processor) AssessSubmission(ctx context.Context, taskID, submissionID uint) (assess.Response, error) {
	task, err := p.tasks.Get(ctx, taskID)
	if err != nil {
		return assess.Response{}, err
	}

	instructions, err := gradingInstructions(task)
	if err != nil {
		return assess.Response{}, err
	}

	rows, err := p.files.ListGradableByTask(ctx, taskID)
	if err != nil {
		return assess.Response{}, err
	}
	var files []database.SubmissionContent
	for _, row := range rows {
		if row.SubmissionId == submissionID {
			files = append(files, row)
		}
	}
	if len(files) == 0 {
		return assess.Response{}, fmt.Errorf("submission %d: %w", submissionID, batch.ErrNoContent)
	}

	res, err := p.grader.Grade(ctx, assess.Request{
		GradingCriteria: instructions,
		TaskSubmitted:   batch.BuildSubmissionContent(files),
	})
	if err != nil {
		return assess.Response{}, fmt.Errorf("submission %d: %w", submissionID, err)
	}

	slog.Info("submission assessed", "task_id", taskID, "submission_id", submissionID, "grade", res.Grade)
	return res, nil
}

// DownloadResults fetches a completed batch's output file and records each
// graded feedback on its submission.
func (p *Processor) DownloadResults(ctx context.Context, taskID uint) error {
	batchID, err := p.submissions.LatestBatchID(ctx, taskID)
	if err != nil {
		return err
	}

	status, err := p.service.Status(ctx, batchID)
	if err != nil {
		return fmt.Errorf("task %d: error querying status of batch %s: %w", taskID, batchID, err)
	}
	if status.Status != "completed" {
		return fmt.Errorf("task %d: batch %s is not completed yet (status %s)", taskID, batchID, status.Status)
	}
	if status.OutputFileID == "" {
		return fmt.Errorf("task %d: batch %s has no output file", taskID, batchID)
	}

	data, err := p.service.Retrieve(ctx, status.OutputFileID)
	if err != nil {
		return fmt.Errorf("task %d: error downloading results: %w", taskID, err)
	}

	stored := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var result api.ResponseLine
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			slog.Error("error parsing result line, skipping", "error", err)
			continue
		}
		if result.Error != nil || len(result.Response.Body.Choices) == 0 {
			slog.Warn("result line carries no feedback", "correlation_id", result.CustomID)
			continue
		}

		feedback := result.Response.Body.Choices[0].Message.Content
		if err := p.submissions.SetFeedback(ctx, result.CustomID, feedback); err != nil {
			slog.Error("error storing feedback", "correlation_id", result.CustomID, "error", err)
			continue
		}
		stored++
	}

	slog.Info("batch results downloaded", "task_id", taskID, "batch_id", batchID, "stored", stored)
	return nil
}
