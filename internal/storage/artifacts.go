/**
 * Artifact storage for the stream OCR worker
 *
 * Owns every file the worker writes into its config directory:
 *   - user-patterns-<id>.txt     recognition hints, one per line
 *   - user-patterns<id>.config   backend config pointing at the hints file
 *   - <id>.png                   latest detection image
 *
 * All three are keyed by instance id and removed by Cleanup.
 */

package storage

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adverant/nexus/streamocr-worker/internal/errors"
	"github.com/adverant/nexus/streamocr-worker/internal/logging"
	"gocv.io/x/gocv"
)

// Artifacts manages per-instance files in the config directory
type Artifacts struct {
	dir string
	log *logging.Logger
}

// NewArtifacts creates the config directory if needed
func NewArtifacts(dir string, log *logging.Logger) (*Artifacts, error) {
	if dir == "" {
		return nil, fmt.Errorf("config directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Artifacts{dir: dir, log: log}, nil
}

// Dir returns the config directory
func (a *Artifacts) Dir() string {
	return a.dir
}

// UserPatternsPath returns the hints file path for id
func (a *Artifacts) UserPatternsPath(id string) string {
	return filepath.Join(a.dir, fmt.Sprintf("user-patterns-%s.txt", id))
}

// UserPatternsConfigPath returns the backend config path for id
func (a *Artifacts) UserPatternsConfigPath(id string) string {
	return filepath.Join(a.dir, fmt.Sprintf("user-patterns%s.config", id))
}

// MaskPath returns the detection image path for id
func (a *Artifacts) MaskPath(id string) string {
	return filepath.Join(a.dir, id+".png")
}

// WriteUserPatterns writes the hints file and its backend config, returning the
// config files the backend should load. Blank patterns return no files and
// remove any stale ones.
func (a *Artifacts) WriteUserPatterns(id, patterns string) ([]string, error) {
	if strings.TrimSpace(patterns) == "" {
		a.remove(a.UserPatternsPath(id))
		a.remove(a.UserPatternsConfigPath(id))
		return nil, nil
	}

	patternsPath := a.UserPatternsPath(id)
	if err := writeFile(patternsPath, []byte(patterns)); err != nil {
		return nil, errors.NewArtifactFailedError(id, patternsPath, err)
	}

	configPath := a.UserPatternsConfigPath(id)
	config := fmt.Sprintf("user_patterns_file %s\n", patternsPath)
	if err := writeFile(configPath, []byte(config)); err != nil {
		return nil, errors.NewArtifactFailedError(id, configPath, err)
	}

	a.log.Debug("User patterns written", "instance_id", id, "config", configPath)
	return []string{configPath}, nil
}

// WriteMask stores img as <id>.png
func (a *Artifacts) WriteMask(id string, img *image.RGBA) error {
	path := a.MaskPath(id)
	if err := writePNG(path, img); err != nil {
		return errors.NewArtifactFailedError(id, path, err)
	}
	return nil
}

// Cleanup removes every artifact of id. Missing files are not errors.
func (a *Artifacts) Cleanup(id string) {
	a.remove(a.UserPatternsPath(id))
	a.remove(a.UserPatternsConfigPath(id))
	a.remove(a.MaskPath(id))
	a.log.Info("Artifacts cleaned up", "instance_id", id)
}

func (a *Artifacts) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.log.Warn("Failed to remove artifact", "path", path, "error", err)
	}
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writePNG(path string, img *image.RGBA) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return fmt.Errorf("empty image")
	}

	pix := make([]byte, 0, w*h*4)
	for y := 0; y < h; y++ {
		start := img.PixOffset(b.Min.X, b.Min.Y+y)
		pix = append(pix, img.Pix[start:start+w*4]...)
	}

	rgba, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return fmt.Errorf("failed to wrap image: %w", err)
	}
	defer rgba.Close()

	bgra := gocv.NewMat()
	defer bgra.Close()
	gocv.CvtColor(rgba, &bgra, gocv.ColorRGBAToBGRA)

	// IMWrite picks the encoder from the extension
	tmp := strings.TrimSuffix(path, ".png") + ".tmp.png"
	if ok := gocv.IMWrite(tmp, bgra); !ok {
		return fmt.Errorf("failed to encode png")
	}
	return os.Rename(tmp, path)
}

// MaskWriter is an image sink that persists the newest image off the worker
// goroutine. Images arriving while a write is pending replace the pending one.
type MaskWriter struct {
	artifacts  *Artifacts
	instanceID string
	log        *logging.Logger

	pending chan *image.RGBA
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMaskWriter creates a stopped mask writer
func NewMaskWriter(artifacts *Artifacts, instanceID string, log *logging.Logger) *MaskWriter {
	if log == nil {
		log = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MaskWriter{
		artifacts:  artifacts,
		instanceID: instanceID,
		log:        log,
		pending:    make(chan *image.RGBA, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins writing images
func (w *MaskWriter) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop waits for the writer to exit; a pending image is discarded
func (w *MaskWriter) Stop() {
	w.cancel()
	w.wg.Wait()
}

// SetImage queues img for writing without blocking
func (w *MaskWriter) SetImage(img *image.RGBA) {
	if img == nil {
		return
	}
	for {
		select {
		case w.pending <- img:
			return
		default:
		}
		// drop the stale pending image and retry
		select {
		case <-w.pending:
		default:
		}
	}
}

func (w *MaskWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case img := <-w.pending:
			if err := w.artifacts.WriteMask(w.instanceID, img); err != nil {
				if perr, ok := errors.As(err); ok {
					w.log.Warn("Failed to persist detection image", perr.KeyValues()...)
				} else {
					w.log.Warn("Failed to persist detection image", "error", err)
				}
			}
		}
	}
}
