// Package workspace resolves the on-disk layout shared by the pipeline
// stages: task directories, the originals archive, and submission file
// enumeration. Workspace creation and zip ingestion live outside the core.
package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const configDirName = ".gradeflow"

// ImagesDirSuffix names the per-document directories holding images
// recovered from PDFs. They are pipeline output, not submission content,
// and are skipped on enumeration so re-runs do not ingest them as files.
const ImagesDirSuffix = "_images"

var systemFiles = map[string]struct{}{
	"Thumbs.db":   {},
	"Desktop.ini": {},
	".DS_Store":   {},
}

// TaskDir is the directory holding one task's submission subtrees.
func TaskDir(root, taskName string) string {
	return filepath.Join(root, taskName)
}

// OriginalsDir creates and returns the archive location for unmodified
// originals, keyed by task and submission hints.
func OriginalsDir(root, taskHint, submissionHint string) (string, error) {
	if taskHint == "" {
		taskHint = "unknown_task"
	}
	dir := filepath.Join(root, configDirName, "originals", taskHint, submissionHint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// ListFiles walks dir recursively and returns every regular file, skipping
// hidden and well-known system files.
func ListFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(name, ".") || strings.HasSuffix(name, ImagesDirSuffix)) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if _, skip := systemFiles[name]; skip {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", dir, err)
	}
	return files, nil
}

// CopyFile copies src to dst, replacing dst if it exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
