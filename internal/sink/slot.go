// Package sink holds the consumers of recognition output: in-memory slots read
// by the HTTP API and network publishers fed from the worker goroutine.
package sink

import (
	"image"
	"sync"
	"time"

	"github.com/adverant/nexus/streamocr-worker/internal/processor"
)

// TextSlot keeps the latest recognized text
type TextSlot struct {
	mu      sync.RWMutex
	text    string
	updated time.Time
}

// NewTextSlot creates an empty text slot
func NewTextSlot() *TextSlot {
	return &TextSlot{}
}

// SetText replaces the stored text
func (s *TextSlot) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.updated = time.Now()
}

// Text returns the stored text and when it was set
func (s *TextSlot) Text() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text, s.updated
}

// ImageSlot keeps the latest published image
type ImageSlot struct {
	mu      sync.RWMutex
	img     *image.RGBA
	updated time.Time
}

// NewImageSlot creates an empty image slot
func NewImageSlot() *ImageSlot {
	return &ImageSlot{}
}

// SetImage replaces the stored image. Publishers hand over ownership.
func (s *ImageSlot) SetImage(img *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = img
	s.updated = time.Now()
}

// Image returns the stored image, nil until the first publish
func (s *ImageSlot) Image() (*image.RGBA, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.img, s.updated
}

// TextFanout forwards text to every sink in order
type TextFanout []processor.TextSink

// SetText implements processor.TextSink
func (f TextFanout) SetText(text string) {
	for _, s := range f {
		if s != nil {
			s.SetText(text)
		}
	}
}

// ImageFanout forwards images to every sink in order
type ImageFanout []processor.ImageSink

// SetImage implements processor.ImageSink
func (f ImageFanout) SetImage(img *image.RGBA) {
	for _, s := range f {
		if s != nil {
			s.SetImage(img)
		}
	}
}
