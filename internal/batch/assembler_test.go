package batch_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gradeflow/internal/batch"
	"gradeflow/internal/database"
	"gradeflow/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}
	return db
}

func newAssembler(db *gorm.DB) *batch.Assembler {
	return batch.NewAssembler(database.NewFileStore(db), database.NewSubmissionStore(db),
		batch.NewDigest("sha256"), "gpt-4o")
}

func TestAssembleSingleSubmission(t *testing.T) {
	db := createDB(t,
		&database.Task{Id: 1, Name: "essay"},
		&database.Submission{Id: 1, TaskId: 1, StudentName: "studentA"},
		&database.SubmissionFile{
			SubmissionId: 1, FilePath: "studentA/answer.txt", FileName: "answer.txt",
			IsTextFile: true, ContentExtracted: sql.NullString{String: "hello", Valid: true},
		},
	)
	taskDir := t.TempDir()

	task := &database.Task{Id: 1, Name: "essay"}
	path, err := newAssembler(db).Assemble(context.Background(), task, taskDir, "grade kindly")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(taskDir, "1.jsonl"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 1)

	var line api.RequestLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &line))

	// sha256 of the student name.
	assert.Equal(t, "b3486b16a910ce49a9ce2a93f7be3ee38da4c6b2430c33b548a2dd56d3bb0566", line.CustomID)
	assert.Equal(t, "POST", line.Method)
	assert.Equal(t, "/v1/chat/completions", line.URL)
	assert.Equal(t, "gpt-4o", line.Body.Model)

	require.Len(t, line.Body.Messages, 2)
	assert.Equal(t, "system", line.Body.Messages[0].Role)
	assert.Equal(t, "grade kindly", line.Body.Messages[0].Content)
	assert.Equal(t, "user", line.Body.Messages[1].Role)
	assert.Equal(t,
		"=== CONTENIDO DE LA ENTREGA ===\n\n>>> Archivo: answer.txt\nhello\n<<< Fin de: answer.txt\n\n",
		line.Body.Messages[1].Content)

	// The correlation id was persisted on the submission.
	var sub database.Submission
	require.NoError(t, db.First(&sub, 1).Error)
	assert.Equal(t, line.CustomID, sub.SubmissionID.String)
}

func TestAssembleMergesFilesPerSubmission(t *testing.T) {
	db := createDB(t,
		&database.Task{Id: 1, Name: "essay"},
		&database.Submission{Id: 1, TaskId: 1, StudentName: "ana"},
		&database.Submission{Id: 2, TaskId: 1, StudentName: "bea"},
		&database.SubmissionFile{
			SubmissionId: 1, FilePath: "ana/part1.txt", FileName: "part1.txt",
			ContentExtracted: sql.NullString{String: "first", Valid: true},
		},
		&database.SubmissionFile{
			SubmissionId: 1, FilePath: "ana/part2.txt", FileName: "part2.txt",
			ContentExtracted: sql.NullString{String: "second", Valid: true},
		},
		&database.SubmissionFile{
			SubmissionId: 2, FilePath: "bea/only.txt", FileName: "only.txt",
			ContentExtracted: sql.NullString{String: "third", Valid: true},
		},
		// No extracted content, must not contribute a request.
		&database.SubmissionFile{
			SubmissionId: 2, FilePath: "bea/photo.bin", FileName: "photo.bin",
		},
	)
	taskDir := t.TempDir()

	path, err := newAssembler(db).Assemble(context.Background(), &database.Task{Id: 1}, taskDir, "rubric")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	var first api.RequestLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	content := first.Body.Messages[1].Content
	assert.Contains(t, content, ">>> Archivo: part1.txt\nfirst\n<<< Fin de: part1.txt")
	assert.Contains(t, content, ">>> Archivo: part2.txt\nsecond\n<<< Fin de: part2.txt")
	assert.Less(t, strings.Index(content, "part1.txt"), strings.Index(content, "part2.txt"))
}

func TestAssembleUsesExternalTaskIdForFileName(t *testing.T) {
	db := createDB(t,
		&database.Task{Id: 7, Name: "essay", ExternalTaskId: sql.NullString{String: "moodle-4242", Valid: true}},
		&database.Submission{Id: 1, TaskId: 7, StudentName: "ana"},
		&database.SubmissionFile{
			SubmissionId: 1, FilePath: "ana/a.txt", FileName: "a.txt",
			ContentExtracted: sql.NullString{String: "text", Valid: true},
		},
	)
	taskDir := t.TempDir()

	task := &database.Task{Id: 7, ExternalTaskId: sql.NullString{String: "moodle-4242", Valid: true}}
	path, err := newAssembler(db).Assemble(context.Background(), task, taskDir, "rubric")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(taskDir, "moodle-4242.jsonl"), path)
}

func TestAssembleDigestFailureFallsBackToSyntheticID(t *testing.T) {
	db := createDB(t,
		&database.Task{Id: 1, Name: "essay"},
		&database.Submission{Id: 7, TaskId: 1, StudentName: "ana"},
		&database.SubmissionFile{
			SubmissionId: 7, FilePath: "ana/a.txt", FileName: "a.txt",
			ContentExtracted: sql.NullString{String: "text", Valid: true},
		},
	)
	taskDir := t.TempDir()

	assembler := batch.NewAssembler(database.NewFileStore(db), database.NewSubmissionStore(db),
		batch.NewDigest("bogus"), "gpt-4o")
	path, err := assembler.Assemble(context.Background(), &database.Task{Id: 1}, taskDir, "rubric")
	require.NoError(t, err, "a digest failure must never block the batch")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line api.RequestLine
	require.NoError(t, json.Unmarshal([]byte(strings.SplitN(string(data), "\n", 2)[0]), &line))
	assert.Equal(t, "error_7", line.CustomID)

	var sub database.Submission
	require.NoError(t, db.First(&sub, 7).Error)
	assert.Equal(t, "error_7", sub.SubmissionID.String)
}

func TestAssembleNoContent(t *testing.T) {
	db := createDB(t,
		&database.Task{Id: 1, Name: "essay"},
		&database.Submission{Id: 1, TaskId: 1, StudentName: "ana"},
	)
	taskDir := t.TempDir()

	_, err := newAssembler(db).Assemble(context.Background(), &database.Task{Id: 1}, taskDir, "rubric")
	assert.ErrorIs(t, err, batch.ErrNoContent)

	entries, err := os.ReadDir(taskDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no batch file may be written")
}

func TestAssembleRewritesExistingFile(t *testing.T) {
	db := createDB(t,
		&database.Task{Id: 1, Name: "essay"},
		&database.Submission{Id: 1, TaskId: 1, StudentName: "ana"},
		&database.SubmissionFile{
			SubmissionId: 1, FilePath: "ana/a.txt", FileName: "a.txt",
			ContentExtracted: sql.NullString{String: "text", Valid: true},
		},
	)
	taskDir := t.TempDir()
	stale := filepath.Join(taskDir, "1.jsonl")
	require.NoError(t, os.WriteFile(stale, []byte("stale leftover\n"), 0o644))

	path, err := newAssembler(db).Assemble(context.Background(), &database.Task{Id: 1}, taskDir, "rubric")
	require.NoError(t, err)
	assert.Equal(t, stale, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale leftover")
}
