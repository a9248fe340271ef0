package extraction

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// Class is the outcome of content classification. Unsupported files are an
// expected, counted outcome, not an error.
type Class string

const (
	ClassPlainText    Class = "plain_text"
	ClassPDFOriginal  Class = "pdf_original"
	ClassPDFExtracted Class = "pdf_extracted"
	ClassUnsupported  Class = "unsupported"
)

// Result of classifying one file. Text is only populated for plain-text
// files; PDFs defer extraction to the OCR extractor.
type Result struct {
	MediaType string
	Class     Class
	Text      string
}

// Media types read verbatim as UTF-8 text. Anything descending from
// text/plain in the detector's hierarchy is accepted as well, which covers
// source code, markdown and similar formats.
var textMediaTypes = []string{
	"text/plain",
	"text/html",
	"text/css",
	"text/javascript",
	"application/javascript",
	"text/x-sql",
	"application/sql",
	"text/markdown",
	"application/json",
	"application/xml",
	"text/xml",
	"text/csv",
}

const pdfMediaType = "application/pdf"

// Classifier detects a file's media type from its content and extracts
// plain text where possible.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) ClassifyAndExtract(path string) (Result, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("error detecting media type of %s: %w", path, err)
	}

	mediaType := mtype.String()

	// Zero-length files have no content to sniff; they still classify as
	// text with empty content rather than failing.
	if mtype.Is("inode/x-empty") {
		return Result{MediaType: "text/plain", Class: ClassPlainText, Text: ""}, nil
	}

	if isTextType(mtype) {
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("error reading text file %s: %w", path, err)
		}
		return Result{MediaType: mediaType, Class: ClassPlainText, Text: string(data)}, nil
	}

	if mtype.Is(pdfMediaType) {
		return Result{MediaType: mediaType, Class: ClassPDFOriginal}, nil
	}

	slog.Warn("unsupported file type", "file", path, "media_type", mediaType)
	return Result{MediaType: mediaType, Class: ClassUnsupported}, nil
}

func isTextType(mtype *mimetype.MIME) bool {
	for _, t := range textMediaTypes {
		if mtype.Is(t) {
			return true
		}
	}
	for parent := mtype.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Is("text/plain") {
			return true
		}
	}
	return false
}
