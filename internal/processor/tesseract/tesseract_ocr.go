/**
 * Tesseract OCR - gosseract-backed recognition backend
 *
 * Frames are handed to Tesseract as lossless PNG. Word boxes are computed once
 * per image and shared between the mean confidence and region extraction.
 */

package tesseract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adverant/nexus/streamocr-worker/internal/processor"
	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// Backend handles OCR using Tesseract
type Backend struct {
	client *gosseract.Client
	words  []processor.BackendBox // cached for the current image
	cached bool
}

// New loads a Tesseract client for opts. It fails when the model files for
// any requested language are missing from the model path.
func New(opts processor.BackendOptions) (processor.Backend, error) {
	languages := splitLanguages(opts.Language)
	if len(languages) == 0 {
		return nil, fmt.Errorf("language is required")
	}

	if opts.ModelPath != "" {
		for _, lang := range languages {
			model := filepath.Join(opts.ModelPath, lang+".traineddata")
			if _, err := os.Stat(model); err != nil {
				return nil, fmt.Errorf("model not found for language %q: %w", lang, err)
			}
		}
	}

	client := gosseract.NewClient()

	if opts.ModelPath != "" {
		if err := client.SetTessdataPrefix(opts.ModelPath); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}

	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// gosseract keeps a single config path; the user-patterns config is the
	// only file the worker ever generates.
	for _, cfg := range opts.ConfigFiles {
		if err := client.SetConfigFile(cfg); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set config file %s: %w", cfg, err)
		}
	}

	return &Backend{client: client}, nil
}

// SetPageSegMode sets Tesseract's page segmentation mode
func (b *Backend) SetPageSegMode(mode processor.PageSegMode) error {
	return b.client.SetPageSegMode(gosseract.PageSegMode(mode))
}

// SetWhitelist restricts recognition to chars; empty clears the restriction
func (b *Backend) SetWhitelist(chars string) error {
	if chars == "" {
		return b.client.SetVariable("tessedit_char_whitelist", "")
	}
	return b.client.SetWhitelist(chars)
}

// SetImage encodes img as PNG and hands it to Tesseract
func (b *Backend) SetImage(img gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)
	if err := b.client.SetImageFromBytes(data); err != nil {
		return err
	}
	b.words, b.cached = nil, false
	return nil
}

// Text returns the UTF-8 text of the current image
func (b *Backend) Text() (string, error) {
	return b.client.Text()
}

// MeanConfidence averages the word confidences of the current image
func (b *Backend) MeanConfidence() (int, error) {
	words, err := b.wordBoxes()
	if err != nil {
		return 0, err
	}
	if len(words) == 0 {
		return 0, nil
	}

	var total float64
	for _, w := range words {
		total += w.Confidence
	}
	return int(total / float64(len(words))), nil
}

// Boxes returns the regions of the current image at level
func (b *Backend) Boxes(level processor.Level) ([]processor.BackendBox, error) {
	if level == processor.LevelWord {
		return b.wordBoxes()
	}
	return b.boxes(gosseract.RIL_SYMBOL)
}

// Close releases OCR resources
func (b *Backend) Close() error {
	if b.client != nil {
		err := b.client.Close()
		b.client = nil
		return err
	}
	return nil
}

func (b *Backend) wordBoxes() ([]processor.BackendBox, error) {
	if b.cached {
		return b.words, nil
	}
	words, err := b.boxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}
	b.words, b.cached = words, true
	return words, nil
}

func (b *Backend) boxes(level gosseract.PageIteratorLevel) ([]processor.BackendBox, error) {
	raw, err := b.client.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}

	boxes := make([]processor.BackendBox, 0, len(raw))
	for _, box := range raw {
		boxes = append(boxes, processor.BackendBox{
			Box:        box.Box,
			Text:       strings.TrimSpace(box.Word),
			Confidence: box.Confidence,
		})
	}
	return boxes, nil
}

func splitLanguages(language string) []string {
	var langs []string
	for _, l := range strings.Split(language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}
