/**
 * OCR Types - Shared data structures for the recognition pipeline
 *
 * The backend, the region filter and the sinks all speak in these types so the
 * pipeline never depends on a concrete OCR engine.
 */

package processor

import (
	"image"

	"gocv.io/x/gocv"
)

// RecognitionResult represents the text recognized in one iteration
type RecognitionResult struct {
	Text       string
	Confidence int // mean confidence, 0-100
}

// Region represents a detected sub-area of the frame
type Region struct {
	Box        image.Rectangle // frame coordinates
	Text       string
	Confidence float64
}

// Area returns the pixel area of the region's box
func (r Region) Area() int {
	return r.Box.Dx() * r.Box.Dy()
}

// Level is the iterator granularity for region extraction
type Level int

const (
	LevelWord Level = iota
	LevelSymbol
)

func (l Level) String() string {
	if l == LevelSymbol {
		return "symbol"
	}
	return "word"
}

// BackendBox is one element of the backend's region iterator
type BackendBox struct {
	Box        image.Rectangle
	Text       string
	Confidence float64
}

// Empty reports whether the backend produced nothing usable for this element
func (b BackendBox) Empty() bool {
	return b.Box.Empty() || b.Text == ""
}

// Backend is the OCR engine the pipeline drives. Implementations are not
// required to be safe for concurrent use; the worker serializes access.
type Backend interface {
	SetPageSegMode(mode PageSegMode) error
	SetWhitelist(chars string) error
	// SetImage hands over the pixel buffer; following calls refer to it
	SetImage(img gocv.Mat) error
	Text() (string, error)
	MeanConfidence() (int, error)
	Boxes(level Level) ([]BackendBox, error)
	Close() error
}

// BackendOptions holds what a backend needs at (re)initialization
type BackendOptions struct {
	ModelPath   string
	Language    string
	ConfigFiles []string
}

// BackendFactory creates a loaded backend
type BackendFactory func(opts BackendOptions) (Backend, error)

// TextSink receives recognized text
type TextSink interface {
	SetText(text string)
}

// ImageSink receives a rendered image; the sink takes ownership of img
type ImageSink interface {
	SetImage(img *image.RGBA)
}

// Sinks groups the pipeline outputs; nil members are skipped
type Sinks struct {
	Text    TextSink
	Image   ImageSink
	Preview ImageSink
}
