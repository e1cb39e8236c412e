package processor

import (
	"fmt"
	"image"
	"math"
	"strings"

	"gocv.io/x/gocv"
)

const stripCutset = " \t\n\r"

// Recognizer adapts a Backend to the pipeline's recognize/detect operations
type Recognizer struct {
	backend Backend
}

// NewRecognizer wraps a loaded backend
func NewRecognizer(backend Backend) *Recognizer {
	return &Recognizer{backend: backend}
}

// Configure pushes the live-applicable backend options
func (r *Recognizer) Configure(s *Settings) error {
	if err := r.backend.SetPageSegMode(s.PageSegMode); err != nil {
		return fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := r.backend.SetWhitelist(s.CharWhitelist); err != nil {
		return fmt.Errorf("failed to set whitelist: %w", err)
	}
	return nil
}

// Recognize runs the backend on img. Text below the confidence threshold is
// discarded; regions can still be extracted afterwards.
func (r *Recognizer) Recognize(img gocv.Mat, confThreshold int) (RecognitionResult, error) {
	if img.Empty() {
		return RecognitionResult{}, fmt.Errorf("empty image")
	}

	if err := r.backend.SetImage(img); err != nil {
		return RecognitionResult{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := r.backend.Text()
	if err != nil {
		return RecognitionResult{}, fmt.Errorf("OCR failed: %w", err)
	}

	confidence, err := r.backend.MeanConfidence()
	if err != nil {
		return RecognitionResult{}, fmt.Errorf("failed to get confidence: %w", err)
	}

	if confidence < confThreshold {
		return RecognitionResult{Confidence: confidence}, nil
	}

	return RecognitionResult{
		Text:       strings.Trim(text, stripCutset),
		Confidence: confidence,
	}, nil
}

// DetectRegions iterates the backend's result for the last recognized image.
// scale is the ratio between the recognized image and the frame; boxes are
// mapped back to frame coordinates before filtering.
func (r *Recognizer) DetectRegions(level Level, confThreshold int, frameSize image.Point, scale float64) ([]Region, error) {
	boxes, err := r.backend.Boxes(level)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}
	return FilterRegions(boxes, level, confThreshold, frameSize, scale), nil
}

// FilterRegions drops empty boxes, low-confidence words and any box whose area
// is outside [MinRegionArea, frame area / 2].
func FilterRegions(boxes []BackendBox, level Level, confThreshold int, frameSize image.Point, scale float64) []Region {
	maxArea := frameSize.X * frameSize.Y / 2

	var regions []Region
	for _, b := range boxes {
		if b.Empty() {
			continue
		}
		if level == LevelWord && int(b.Confidence) < confThreshold {
			continue
		}

		box := unscaleRect(b.Box, scale)
		area := box.Dx() * box.Dy()
		if area < MinRegionArea || area > maxArea {
			continue
		}

		regions = append(regions, Region{
			Box:        box,
			Text:       b.Text,
			Confidence: b.Confidence,
		})
	}
	return regions
}

func unscaleRect(r image.Rectangle, scale float64) image.Rectangle {
	if scale <= 0 || scale == 1 {
		return r
	}
	inv := func(v int) int { return int(math.Round(float64(v) / scale)) }
	return image.Rect(inv(r.Min.X), inv(r.Min.Y), inv(r.Max.X), inv(r.Max.Y))
}
