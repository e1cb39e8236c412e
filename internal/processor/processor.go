/**
 * Frame Processor for the stream OCR worker
 *
 * Runs one recognition pass over a frame snapshot:
 * - change detection against the last processed frame
 * - binarization, dilation and rescale
 * - recognition, confidence gate and temporal smoothing
 * - region extraction and mask / overlay compositing
 *
 * A Context owns every piece of mutable pipeline state (settings, backend,
 * smoothing windows, last frame). The worker holds its settings lock for the
 * whole of Process, so a reconfiguration never interleaves with a pass.
 */

package processor

import (
	"fmt"
	"image"

	"github.com/adverant/nexus/streamocr-worker/internal/errors"
	"github.com/adverant/nexus/streamocr-worker/internal/logging"
	"gocv.io/x/gocv"
)

// ProcessorConfig holds the collaborators of a pipeline context
type ProcessorConfig struct {
	Backend  Backend
	Renderer OverlayRenderer
	Sinks    Sinks
	Logger   *logging.Logger
}

// Outcome describes what one pass produced
type Outcome struct {
	Skipped    bool // frame unchanged, nothing recognized
	Text       string
	Confidence int
	Regions    []Region
}

// Context is the per-backend pipeline state
type Context struct {
	settings   Settings
	backend    Backend
	recognizer *Recognizer
	smoother   *SmoothingFilter
	formatter  *OutputFormatter
	renderer   OverlayRenderer
	sinks      Sinks
	log        *logging.Logger
	lastFrame  gocv.Mat
}

// NewContext configures backend with settings and returns a fresh context
func NewContext(settings Settings, cfg *ProcessorConfig) (*Context, error) {
	if cfg == nil || cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}

	settings.Normalize()

	formatter, err := NewOutputFormatter(settings.OutputTemplate)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	c := &Context{
		settings:   settings,
		backend:    cfg.Backend,
		recognizer: NewRecognizer(cfg.Backend),
		formatter:  formatter,
		renderer:   cfg.Renderer,
		sinks:      cfg.Sinks,
		log:        log,
		lastFrame:  gocv.NewMat(),
	}

	if err := c.recognizer.Configure(&c.settings); err != nil {
		c.lastFrame.Close()
		return nil, err
	}

	if settings.SmoothingEnabled {
		c.smoother = NewSmoothingFilter(settings.SmoothingWordLength, settings.SmoothingWindowSize)
	}

	return c, nil
}

// Settings returns the active settings
func (c *Context) Settings() Settings {
	return c.settings
}

// Apply switches to next without reloading the backend. The caller decides
// beforehand that next does not require a hard reset.
func (c *Context) Apply(next Settings) error {
	next.Normalize()

	formatter := c.formatter
	if next.OutputTemplate != formatter.Source() {
		var err error
		if formatter, err = NewOutputFormatter(next.OutputTemplate); err != nil {
			return err
		}
	}

	if err := c.recognizer.Configure(&next); err != nil {
		// put back whatever part of next already reached the backend
		if restoreErr := c.recognizer.Configure(&c.settings); restoreErr != nil {
			c.log.Warn("Failed to restore backend options", "error", restoreErr)
		}
		return err
	}
	c.formatter = formatter

	if c.settings.smoothingChanged(next) {
		c.smoother = nil
		if next.SmoothingEnabled {
			c.smoother = NewSmoothingFilter(next.SmoothingWordLength, next.SmoothingWindowSize)
		}
	}

	c.settings = next
	return nil
}

// Process runs one pass over frame, which must be a BGRA snapshot owned by the caller
func (c *Context) Process(frame gocv.Mat) (*Outcome, error) {
	if frame.Empty() {
		return nil, errors.NewPreprocessError("snapshot", fmt.Errorf("empty frame"))
	}
	s := &c.settings

	if s.UpdateOnChange {
		changed, err := FrameChanged(frame, c.lastFrame, s.UpdateOnChangeThreshold)
		if err != nil {
			return nil, errors.NewPreprocessError("change_detection", err)
		}
		if !changed {
			return &Outcome{Skipped: true}, nil
		}
	}
	c.lastFrame.Close()
	c.lastFrame = frame.Clone()

	prep, err := Preprocess(frame, s, c.sinks.Preview)
	if err != nil {
		return nil, errors.NewPreprocessError("binarization", err)
	}
	defer prep.Image.Close()

	result, err := c.recognizer.Recognize(prep.Image, s.ConfThreshold)
	if err != nil {
		return nil, errors.NewOCRFailedError("recognize", err)
	}

	text := result.Text
	if result.Confidence >= s.ConfThreshold && c.smoother != nil {
		text = c.smoother.AddReading(text)
	}

	outcome := &Outcome{Text: text, Confidence: result.Confidence}

	if s.ImageSinkEnabled && c.sinks.Image != nil {
		frameSize := image.Pt(frame.Cols(), frame.Rows())
		regions, err := c.recognizer.DetectRegions(s.RegionLevel(), s.ConfThreshold, frameSize, prep.Scale)
		if err != nil {
			return nil, errors.NewOCRFailedError("detect_regions", err)
		}
		outcome.Regions = regions

		rendered, err := ComposeDetections(regions, frameSize, s.ImageMode, c.renderer)
		if err != nil {
			return nil, errors.NewRenderFailedError(s.ImageMode.String(), err)
		}
		c.sinks.Image.SetImage(rendered)
	}

	if text != "" && s.TextSinkEnabled && c.sinks.Text != nil {
		formatted, err := c.formatter.Format(text)
		if err != nil {
			return nil, errors.NewRenderFailedError("text_template", err)
		}
		c.sinks.Text.SetText(formatted)
	}

	c.log.Debug("Frame processed",
		"confidence", result.Confidence,
		"text_length", len(text),
		"regions", len(outcome.Regions),
		"scale", prep.Scale)

	return outcome, nil
}

// Close releases the backend and the frame cache
func (c *Context) Close() error {
	c.lastFrame.Close()
	if c.backend == nil {
		return nil
	}
	err := c.backend.Close()
	c.backend = nil
	return err
}
