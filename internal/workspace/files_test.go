package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"gradeflow/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestListFilesSkipsHiddenAndSystemFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "answer.txt"))
	touch(t, filepath.Join(dir, "nested", "report.pdf"))
	touch(t, filepath.Join(dir, "Thumbs.db"))
	touch(t, filepath.Join(dir, ".DS_Store"))
	touch(t, filepath.Join(dir, ".hidden"))
	touch(t, filepath.Join(dir, ".git", "config"))

	files, err := workspace.ListFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "answer.txt"),
		filepath.Join(dir, "nested", "report.pdf"),
	}, files)
}

func TestListFilesSkipsExtractedImageDirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "report.pdf"))
	touch(t, filepath.Join(dir, "report_images", "page_1_img_1.png"))
	touch(t, filepath.Join(dir, "report_images", "page_2_img_1.png"))

	// A second enumeration after image extraction must not pick up the
	// recovered images as submission files.
	files, err := workspace.ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "report.pdf")}, files)
}

func TestListFilesOnMissingDirectory(t *testing.T) {
	_, err := workspace.ListFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestListFilesOnRegularFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "plain.txt"))

	_, err := workspace.ListFiles(filepath.Join(dir, "plain.txt"))
	assert.ErrorContains(t, err, "not a directory")
}

func TestOriginalsDirDefaultsUnknownTask(t *testing.T) {
	root := t.TempDir()

	dir, err := workspace.OriginalsDir(root, "", "ana")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".gradeflow", "originals", "unknown_task", "ana"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCopyFileReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("fresh"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("stale"), 0o644))

	require.NoError(t, workspace.CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}
