package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"gradeflow/internal/workspace"

	"github.com/gen2brain/go-fitz"
)

// Image is one raster image recovered from a page-structured document,
// with the metadata needed for deduplication and vision-assisted grading.
type Image struct {
	RelativePath string
	MimeType     string
	PageNumber   int
	ImageIndex   int
	FileSize     int64
	Width        int
	Height       int

	// Empty when hash computation failed; such images are excluded from
	// similarity matching.
	DHash string
	AHash string

	IsDuplicate bool
}

// Embedded raster objects appear in the rendered page HTML as base64 data
// URIs, in page appearance order.
var dataURIPattern = regexp.MustCompile(`data:image/([a-zA-Z0-9.+-]+);base64,([A-Za-z0-9+/=]+)`)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractImages pulls every embedded raster image out of a PDF into a
// sibling <name>_images directory. Names are deterministic
// (page_{page}_img_{index}.{ext}) so re-runs reproduce the same layout.
// An image that cannot be decoded keeps its metadata but gets no
// fingerprints.
func (e *Extractor) ExtractImages(pdfPath string) ([]*Image, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", pdfPath, err)
	}
	defer doc.Close()

	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	outDir := filepath.Join(filepath.Dir(pdfPath), base+workspace.ImagesDirSuffix)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating image directory %s: %w", outDir, err)
	}

	var images []*Image
	for page := 0; page < doc.NumPage(); page++ {
		html, err := doc.HTML(page, true)
		if err != nil {
			return nil, fmt.Errorf("error rendering page %d of %s: %w", page+1, pdfPath, err)
		}

		for i, match := range dataURIPattern.FindAllStringSubmatch(html, -1) {
			img := e.saveImage(outDir, page+1, i+1, match[1], match[2])
			if img != nil {
				images = append(images, img)
			}
		}
	}

	slog.Info("image extraction finished", "file", pdfPath, "images", len(images))
	return images, nil
}

func (e *Extractor) saveImage(outDir string, page, index int, subtype, encoded string) *Image {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		slog.Warn("skipping undecodable embedded image", "page", page, "index", index, "error", err)
		return nil
	}

	ext := subtype
	if ext == "jpeg" {
		ext = "jpg"
	}
	name := fmt.Sprintf("page_%d_img_%d.%s", page, index, ext)
	if err := os.WriteFile(filepath.Join(outDir, name), data, 0o644); err != nil {
		slog.Warn("error writing extracted image", "name", name, "error", err)
		return nil
	}

	img := &Image{
		RelativePath: filepath.Base(outDir) + "/" + name,
		MimeType:     "image/" + subtype,
		PageNumber:   page,
		ImageIndex:   index,
		FileSize:     int64(len(data)),
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// The image proceeds with no fingerprints and is never
		// auto-clustered as a duplicate.
		slog.Warn("could not decode image for hashing", "name", name, "error", err)
		return img
	}

	bounds := decoded.Bounds()
	img.Width, img.Height = bounds.Dx(), bounds.Dy()
	img.DHash, img.AHash = Hashes(decoded)
	return img
}
