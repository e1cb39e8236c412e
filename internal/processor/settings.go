package processor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BinarizationMode selects how the grayscale frame is reduced to two levels
type BinarizationMode int

const (
	BinarizationNone BinarizationMode = iota
	BinarizationFixed
	BinarizationAdaptiveMean
	BinarizationAdaptiveGaussian
	BinarizationTriangle
	BinarizationOtsu
)

var binarizationNames = map[BinarizationMode]string{
	BinarizationNone:             "none",
	BinarizationFixed:            "fixed",
	BinarizationAdaptiveMean:     "adaptive_mean",
	BinarizationAdaptiveGaussian: "adaptive_gaussian",
	BinarizationTriangle:         "triangle",
	BinarizationOtsu:             "otsu",
}

func (m BinarizationMode) String() string {
	if name, ok := binarizationNames[m]; ok {
		return name
	}
	return fmt.Sprintf("binarization(%d)", int(m))
}

// ParseBinarizationMode accepts a mode name or its numeric index (0-5)
func ParseBinarizationMode(s string) (BinarizationMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range binarizationNames {
		if s == name {
			return mode, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		if _, ok := binarizationNames[BinarizationMode(n)]; ok {
			return BinarizationMode(n), nil
		}
	}
	return BinarizationNone, fmt.Errorf("unknown binarization mode %q", s)
}

func (m BinarizationMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *BinarizationMode) UnmarshalText(text []byte) error {
	mode, err := ParseBinarizationMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ImageMode selects what the image sink receives
type ImageMode int

const (
	ImageModeMask ImageMode = iota
	ImageModeText
	ImageModeTextBackground
)

var imageModeNames = map[ImageMode]string{
	ImageModeMask:           "mask",
	ImageModeText:           "text",
	ImageModeTextBackground: "text_background",
}

func (m ImageMode) String() string {
	if name, ok := imageModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("image_mode(%d)", int(m))
}

// ParseImageMode accepts "mask", "text" or "text_background"
func ParseImageMode(s string) (ImageMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range imageModeNames {
		if s == name {
			return mode, nil
		}
	}
	return ImageModeMask, fmt.Errorf("unknown image sink mode %q", s)
}

func (m ImageMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ImageMode) UnmarshalText(text []byte) error {
	mode, err := ParseImageMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// PageSegMode mirrors Tesseract's page segmentation modes
type PageSegMode int

const (
	PSMOSDOnly PageSegMode = iota
	PSMAutoOSD
	PSMAutoOnly
	PSMAuto
	PSMSingleColumn
	PSMSingleBlockVertText
	PSMSingleBlock
	PSMSingleLine
	PSMSingleWord
	PSMCircleWord
	PSMSingleChar
	PSMSparseText
	PSMSparseTextOSD
	PSMRawLine
)

// Valid reports whether m is a mode the backend understands
func (m PageSegMode) Valid() bool {
	return m >= PSMOSDOnly && m <= PSMRawLine
}

// UnmarshalJSON rejects modes outside 0-13 so they never reach the backend
func (m *PageSegMode) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("page segmentation mode must be an integer, got %s", raw)
	}
	if !PageSegMode(n).Valid() {
		return fmt.Errorf("page segmentation mode must be between %d and %d, got %d", PSMOSDOnly, PSMRawLine, n)
	}
	*m = PageSegMode(n)
	return nil
}

// Constants inherited from the region filter
const (
	MinRegionArea      = 100
	adaptiveConstant   = 2
	minAdaptiveBlock   = 3
	defaultUpdateTimer = 100
)

// Settings is the pipeline configuration snapshot read by the worker
type Settings struct {
	// Backend (changing any of these requires a hard reset)
	ModelPath    string `json:"modelPath"`
	Language     string `json:"language"`
	UserPatterns string `json:"userPatterns"`

	// Recognition
	PageSegMode   PageSegMode `json:"pageSegMode"`
	CharWhitelist string      `json:"charWhitelist"`
	ConfThreshold int         `json:"confThreshold"`

	// Preprocessing
	Binarization          BinarizationMode `json:"binarization"`
	BinarizationThreshold int              `json:"binarizationThreshold"`
	BinarizationBlockSize int              `json:"binarizationBlockSize"`
	DilationIterations    int              `json:"dilationIterations"`
	RescaleEnabled        bool             `json:"rescaleEnabled"`
	RescaleTargetHeight   int              `json:"rescaleTargetHeight"`
	PreviewBinarization   bool             `json:"previewBinarization"`

	// Change detection
	UpdateOnChange          bool `json:"updateOnChange"`
	UpdateOnChangeThreshold int  `json:"updateOnChangeThreshold"` // percent of frame area

	// Temporal smoothing
	SmoothingEnabled    bool `json:"smoothingEnabled"`
	SmoothingWordLength int  `json:"smoothingWordLength"`
	SmoothingWindowSize int  `json:"smoothingWindowSize"`

	// Output routing
	TextSinkEnabled  bool      `json:"textSinkEnabled"`
	ImageSinkEnabled bool      `json:"imageSinkEnabled"`
	ImageMode        ImageMode `json:"imageMode"`
	OutputTemplate   string    `json:"outputTemplate"`

	UpdateTimerMs int `json:"updateTimerMs"`
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		ModelPath:               "/usr/share/tesseract-ocr/5/tessdata",
		Language:                "eng",
		PageSegMode:             PSMSingleBlock,
		ConfThreshold:           50,
		Binarization:            BinarizationNone,
		BinarizationThreshold:   127,
		BinarizationBlockSize:   15,
		RescaleTargetHeight:     300,
		UpdateOnChangeThreshold: 5,
		SmoothingWordLength:     5,
		SmoothingWindowSize:     10,
		TextSinkEnabled:         true,
		ImageMode:               ImageModeMask,
		OutputTemplate:          DefaultOutputTemplate,
		UpdateTimerMs:           defaultUpdateTimer,
	}
}

// Normalize corrects recoverable inconsistencies in place
func (s *Settings) Normalize() {
	if !s.PageSegMode.Valid() {
		s.PageSegMode = PSMSingleBlock
	}
	s.ConfThreshold = clamp(s.ConfThreshold, 0, 100)
	s.BinarizationThreshold = clamp(s.BinarizationThreshold, 0, 255)
	s.BinarizationBlockSize = oddBlockSize(s.BinarizationBlockSize)
	if s.DilationIterations < 0 {
		s.DilationIterations = 0
	}
	if s.RescaleTargetHeight < 1 {
		s.RescaleTargetHeight = 1
	}
	s.UpdateOnChangeThreshold = clamp(s.UpdateOnChangeThreshold, 0, 100)
	if s.SmoothingWordLength < 1 {
		s.SmoothingWordLength = 1
	}
	if s.SmoothingWindowSize < 1 {
		s.SmoothingWindowSize = 1
	}
	if s.UpdateTimerMs < 0 {
		s.UpdateTimerMs = 0
	}
	if strings.TrimSpace(s.OutputTemplate) == "" {
		s.OutputTemplate = DefaultOutputTemplate
	}
}

// BlockSize returns the adaptive threshold block size forced to an odd value
func (s Settings) BlockSize() int {
	return oddBlockSize(s.BinarizationBlockSize)
}

// Period returns the target loop period
func (s Settings) Period() time.Duration {
	return time.Duration(s.UpdateTimerMs) * time.Millisecond
}

// RequiresHardReset reports whether moving to next needs the backend reloaded
func (s Settings) RequiresHardReset(next Settings) bool {
	return s.ModelPath != next.ModelPath ||
		s.Language != next.Language ||
		s.UserPatterns != next.UserPatterns
}

func (s Settings) smoothingChanged(next Settings) bool {
	return s.SmoothingEnabled != next.SmoothingEnabled ||
		s.SmoothingWordLength != next.SmoothingWordLength ||
		s.SmoothingWindowSize != next.SmoothingWindowSize
}

// RegionLevel picks symbol granularity for single-character mode
func (s Settings) RegionLevel() Level {
	if s.PageSegMode == PSMSingleChar {
		return LevelSymbol
	}
	return LevelWord
}

func oddBlockSize(n int) int {
	if n < minAdaptiveBlock {
		return minAdaptiveBlock
	}
	if n%2 == 0 {
		return n + 1
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
