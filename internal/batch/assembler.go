package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gradeflow/internal/database"
	"gradeflow/pkg/api"
)

// ErrNoContent is returned when no submission of the task has any extracted
// text to grade.
var ErrNoContent = errors.New("no submissions with extracted content")

const (
	requestURL         = "/v1/chat/completions"
	submissionHeader   = "=== CONTENIDO DE LA ENTREGA ===\n\n"
	fileBeginMarker    = ">>> Archivo: "
	fileEndMarker      = "<<< Fin de: "
	batchFileExtension = ".jsonl"
)

// Assembler merges each submission's extracted file contents into one
// grading request and writes the task's batch input file.
type Assembler struct {
	files       *database.FileStore
	submissions *database.SubmissionStore
	digest      Digest
	model       string
}

func NewAssembler(files *database.FileStore, submissions *database.SubmissionStore, digest Digest, model string) *Assembler {
	return &Assembler{files: files, submissions: submissions, digest: digest, model: model}
}

type submissionGroup struct {
	id      uint
	student string
	files   []database.SubmissionContent
}

// Assemble rebuilds the batch request file for the task from persisted
// extraction results and returns its path. The file is named by the task's
// external reference id when present, the local id otherwise, and is fully
// rewritten on every invocation.
func (a *Assembler) Assemble(ctx context.Context, task *database.Task, taskDir, instructions string) (string, error) {
	rows, err := a.files.ListGradableByTask(ctx, task.Id)
	if err != nil {
		return "", err
	}

	var groups []*submissionGroup
	var current *submissionGroup
	for _, row := range rows {
		if current == nil || current.id != row.SubmissionId {
			current = &submissionGroup{id: row.SubmissionId, student: row.StudentName}
			groups = append(groups, current)
		}
		current.files = append(current.files, row)
	}

	if len(groups) == 0 {
		return "", fmt.Errorf("task %d: %w", task.Id, ErrNoContent)
	}

	name := strconv.FormatUint(uint64(task.Id), 10)
	if task.ExternalTaskId.Valid && task.ExternalTaskId.String != "" {
		name = task.ExternalTaskId.String
	}
	path := filepath.Join(taskDir, name+batchFileExtension)

	var buf bytes.Buffer
	for _, group := range groups {
		line := a.buildLine(ctx, group, instructions)
		data, err := json.Marshal(line)
		if err != nil {
			return "", fmt.Errorf("error serializing request for submission %d: %w", group.id, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("error writing batch file %s: %w", path, err)
	}

	slog.Info("batch request file assembled", "task_id", task.Id, "path", path, "requests", len(groups))
	return path, nil
}

// BuildSubmissionContent concatenates a submission's extracted file contents
// under the section header, each wrapped in begin/end markers in file order.
// The same payload shape feeds both the batch requests and one-off
// synchronous assessments.
func BuildSubmissionContent(files []database.SubmissionContent) string {
	var content bytes.Buffer
	content.WriteString(submissionHeader)
	for _, file := range files {
		content.WriteString(fileBeginMarker + file.FileName + "\n")
		content.WriteString(file.Content + "\n")
		content.WriteString(fileEndMarker + file.FileName + "\n\n")
	}
	return content.String()
}

func (a *Assembler) buildLine(ctx context.Context, group *submissionGroup, instructions string) api.RequestLine {
	customID, err := a.digest.Sum(group.student)
	if err != nil {
		// A digest failure must never block the batch. The fallback id uses
		// the internal row id, which is not stable across re-ingestion.
		slog.Error("error deriving correlation id, using fallback",
			"submission_id", group.id, "student", group.student, "error", err)
		customID = "error_" + strconv.FormatUint(uint64(group.id), 10)
	}

	if err := a.submissions.SetSubmissionID(ctx, group.id, customID); err != nil {
		slog.Error("error persisting correlation id", "submission_id", group.id, "error", err)
	}

	return api.RequestLine{
		CustomID: customID,
		Method:   "POST",
		URL:      requestURL,
		Body: api.RequestBody{
			Model: a.model,
			Messages: []api.Message{
				{Role: "system", Content: instructions},
				{Role: "user", Content: BuildSubmissionContent(group.files)},
			},
		},
	}
}
