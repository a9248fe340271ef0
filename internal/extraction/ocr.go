package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gradeflow/internal/workspace"

	"github.com/gen2brain/go-fitz"
)

// Outcome of an OCR attempt. A missing tool is an expected, degraded path,
// not an error.
type Outcome string

const (
	OutcomeSucceeded     Outcome = "ocr_succeeded"
	OutcomeSkippedNoTool Outcome = "ocr_skipped_no_tool"
)

// InterruptedSentinel is recorded as the extracted text when the OCR
// subprocess is cancelled, so the submission is never silently dropped.
const InterruptedSentinel = "[OCR interrupted]"

// OCRExtractor runs an external OCR tool over scanned PDFs and reads the
// resulting text layer. When the tool is unavailable it degrades to reading
// whatever text layer the original document already has.
type OCRExtractor struct {
	binary    string
	languages string
}

func NewOCRExtractor(binary, languages string) *OCRExtractor {
	return &OCRExtractor{binary: binary, languages: languages}
}

type OCRResult struct {
	Text    string
	Outcome Outcome
}

// Extract OCRs pdfPath in place and returns its text layer.
//
// The original file is copied into the workspace originals archive before any
// mutation. Tool-invocation failures (binary absent, not startable) degrade
// to a plain text-layer read; a tool that starts but fails on the document is
// a real error and propagates. Cancellation during the subprocess records the
// interrupted sentinel and re-signals the context error.
func (o *OCRExtractor) Extract(ctx context.Context, pdfPath, taskHint, submissionHint, workspaceRoot string) (OCRResult, error) {
	backupDir, err := workspace.OriginalsDir(workspaceRoot, taskHint, submissionHint)
	if err != nil {
		return OCRResult{}, fmt.Errorf("error preparing originals archive: %w", err)
	}
	backupPath := filepath.Join(backupDir, filepath.Base(pdfPath))
	if err := workspace.CopyFile(pdfPath, backupPath); err != nil {
		return OCRResult{}, fmt.Errorf("error archiving original %s: %w", pdfPath, err)
	}
	slog.Debug("archived original before OCR", "file", pdfPath, "backup", backupPath)

	outcome := OutcomeSucceeded

	if ctx.Err() != nil {
		return OCRResult{Text: InterruptedSentinel}, ctx.Err()
	}

	ocrPath := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".ocr.pdf"
	cmd := exec.CommandContext(ctx, o.binary,
		"--force-ocr", "--optimize", "0", "-l", o.languages, "--output-type", "pdf",
		pdfPath, ocrPath)

	err = cmd.Run()
	switch {
	case ctx.Err() != nil:
		slog.Warn("ocr subprocess interrupted", "file", pdfPath)
		return OCRResult{Text: InterruptedSentinel}, ctx.Err()

	case err == nil:
		// Output atomically replaces the working copy.
		if err := os.Rename(ocrPath, pdfPath); err != nil {
			return OCRResult{}, fmt.Errorf("error replacing %s with OCR output: %w", pdfPath, err)
		}

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The tool ran and rejected the document.
			return OCRResult{}, fmt.Errorf("ocr tool failed on %s: %w", pdfPath, err)
		}
		// Binary missing or not startable: continue with the text layer of
		// the un-OCR'd document.
		slog.Warn("ocr tool unavailable, extracting text layer without OCR",
			"binary", o.binary, "file", pdfPath, "error", err)
		outcome = OutcomeSkippedNoTool
	}

	text, err := ReadPDFText(pdfPath)
	if err != nil {
		return OCRResult{}, fmt.Errorf("error reading text layer of %s: %w", pdfPath, err)
	}

	slog.Info("extracted text from pdf", "file", pdfPath, "chars", len(text), "outcome", outcome)
	return OCRResult{Text: text, Outcome: outcome}, nil
}

// ReadPDFText returns the structural text layer of a PDF, pages joined by
// blank lines.
func ReadPDFText(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			return "", err
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n\n"), nil
}
