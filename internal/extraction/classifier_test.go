package extraction_test

import (
	"os"
	"path/filepath"
	"testing"

	"gradeflow/internal/extraction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestClassifyPlainText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "answer.txt", []byte("hello world\n"))

	result, err := extraction.NewClassifier().ClassifyAndExtract(path)
	require.NoError(t, err)
	assert.Equal(t, extraction.ClassPlainText, result.Class)
	assert.Equal(t, "hello world\n", result.Text)
}

func TestClassifyEmptyFileIsText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "blank.txt", nil)

	result, err := extraction.NewClassifier().ClassifyAndExtract(path)
	require.NoError(t, err)
	assert.Equal(t, extraction.ClassPlainText, result.Class)
	assert.Equal(t, "text/plain", result.MediaType)
	assert.Empty(t, result.Text)
}

func TestClassifySourceCodeAsText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "solution.html",
		[]byte("<!DOCTYPE html>\n<html><body><p>answer</p></body></html>\n"))

	result, err := extraction.NewClassifier().ClassifyAndExtract(path)
	require.NoError(t, err)
	assert.Equal(t, extraction.ClassPlainText, result.Class)
	assert.Contains(t, result.Text, "answer")
}

func TestClassifyPDFDefersExtraction(t *testing.T) {
	// Detection is header-based, a full document is not required.
	path := writeFile(t, t.TempDir(), "report.pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"))

	result, err := extraction.NewClassifier().ClassifyAndExtract(path)
	require.NoError(t, err)
	assert.Equal(t, extraction.ClassPDFOriginal, result.Class)
	assert.Equal(t, "application/pdf", result.MediaType)
	assert.Empty(t, result.Text)
}

func TestClassifyBinaryAsUnsupported(t *testing.T) {
	path := writeFile(t, t.TempDir(), "photo.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))

	result, err := extraction.NewClassifier().ClassifyAndExtract(path)
	require.NoError(t, err)
	assert.Equal(t, extraction.ClassUnsupported, result.Class)
	assert.Equal(t, "image/png", result.MediaType)
}

func TestClassifyMissingFile(t *testing.T) {
	_, err := extraction.NewClassifier().ClassifyAndExtract(filepath.Join(t.TempDir(), "ghost.txt"))
	assert.Error(t, err)
}
