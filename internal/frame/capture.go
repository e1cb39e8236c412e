package frame

import (
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/streamocr-worker/internal/logging"
	"gocv.io/x/gocv"
)

// CaptureConfig holds frame producer configuration
type CaptureConfig struct {
	Source         string        // device index ("0") or file/stream URL
	Interval       time.Duration // pacing between reads; 0 reads as fast as the source allows
	ReconnectDelay time.Duration
	MaxReconnect   time.Duration
}

// Capture reads frames from an OpenCV video source into a Slot
type Capture struct {
	config *CaptureConfig
	slot   *Slot
	log    *logging.Logger
}

// NewCapture creates a new frame producer
func NewCapture(cfg *CaptureConfig, slot *Slot, log *logging.Logger) (*Capture, error) {
	if cfg == nil || cfg.Source == "" {
		return nil, fmt.Errorf("capture source is required")
	}
	if slot == nil {
		return nil, fmt.Errorf("slot is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnect <= 0 {
		cfg.MaxReconnect = 30 * time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Capture{config: cfg, slot: slot, log: log}, nil
}

// Run produces frames until ctx is cancelled, reopening the source with
// exponential backoff when it fails
func (c *Capture) Run(ctx context.Context) error {
	delay := c.config.ReconnectDelay

	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			c.log.Info("Frame capture stopped")
			return nil
		}

		c.log.Warn("Capture source failed, reconnecting",
			"source", c.config.Source, "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.config.MaxReconnect {
			delay = c.config.MaxReconnect
		}
	}
}

func (c *Capture) stream(ctx context.Context) error {
	capture, err := gocv.OpenVideoCapture(c.config.Source)
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer capture.Close()

	c.log.Info("Capture source opened", "source", c.config.Source)

	img := gocv.NewMat()
	defer img.Close()

	var ticker *time.Ticker
	if c.config.Interval > 0 {
		ticker = time.NewTicker(c.config.Interval)
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if ok := capture.Read(&img); !ok {
			return fmt.Errorf("failed to read frame from video source")
		}
		if img.Empty() {
			continue
		}
		if err := c.slot.Put(img); err != nil {
			c.log.Warn("Dropping frame", "error", err)
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}
