package processor

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

var colorBlack = color.RGBA{A: 255}

// fakeBackend returns canned results and records how it was driven
type fakeBackend struct {
	text       string
	confidence int
	words      []BackendBox
	symbols    []BackendBox
	textErr    error

	// SetWhitelist fails for this value
	rejectWhitelist string

	psm       PageSegMode
	whitelist string
	images    int
	closed    bool
}

func (f *fakeBackend) SetPageSegMode(mode PageSegMode) error {
	f.psm = mode
	return nil
}

func (f *fakeBackend) SetWhitelist(chars string) error {
	if f.rejectWhitelist != "" && chars == f.rejectWhitelist {
		return fmt.Errorf("whitelist %q rejected", chars)
	}
	f.whitelist = chars
	return nil
}

func (f *fakeBackend) SetImage(img gocv.Mat) error {
	f.images++
	return nil
}

func (f *fakeBackend) Text() (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.text, nil
}

func (f *fakeBackend) MeanConfidence() (int, error) {
	return f.confidence, nil
}

func (f *fakeBackend) Boxes(level Level) ([]BackendBox, error) {
	if level == LevelSymbol {
		return f.symbols, nil
	}
	return f.words, nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

type textRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *textRecorder) SetText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func (r *textRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

type imageRecorder struct {
	mu     sync.Mutex
	images []*image.RGBA
}

func (r *imageRecorder) SetImage(img *image.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = append(r.images, img)
}

func (r *imageRecorder) last() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.images) == 0 {
		return nil
	}
	return r.images[len(r.images)-1]
}

func (r *imageRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

// newTestFrame returns a white 100x100 BGRA frame with a black square at dark
func newTestFrame(dark image.Rectangle) gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 255), 100, 100, gocv.MatTypeCV8UC4)
	if !dark.Empty() {
		gocv.Rectangle(&frame, dark, colorBlack, -1)
	}
	return frame
}

// countPixels counts opaque pixels of img matching r, g, b
func countPixels(img *image.RGBA, r, g, b uint8) int {
	n := 0
	for i := 0; i+3 < len(img.Pix); i += 4 {
		if img.Pix[i] == r && img.Pix[i+1] == g && img.Pix[i+2] == b && img.Pix[i+3] == 255 {
			n++
		}
	}
	return n
}
