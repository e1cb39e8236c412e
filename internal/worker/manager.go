/**
 * Worker Manager for the stream OCR worker
 *
 * Owns the recognition backend and the worker loop as one resource:
 *
 *   Uninitialized --Initialize--> Running --Stop--> Stopped --Close--> Uninitialized
 *
 * A hard reset always stops and joins the loop before the backend is closed
 * and recreated, so no iteration can observe a half-destroyed backend.
 */

package worker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adverant/nexus/streamocr-worker/internal/errors"
	"github.com/adverant/nexus/streamocr-worker/internal/frame"
	"github.com/adverant/nexus/streamocr-worker/internal/logging"
	"github.com/adverant/nexus/streamocr-worker/internal/processor"
	"github.com/adverant/nexus/streamocr-worker/internal/storage"
	"gocv.io/x/gocv"
)

// State is the lifecycle state of the backend/loop pair
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "uninitialized"
	}
}

// ManagerConfig holds manager configuration
type ManagerConfig struct {
	InstanceID string
	Frames     *frame.Slot
	Sinks      processor.Sinks
	Renderer   processor.OverlayRenderer
	NewBackend processor.BackendFactory
	Artifacts  *storage.Artifacts // optional; needed for user patterns
	Logger     *logging.Logger
}

// Stats counts what the loop has done since the manager was created
type Stats struct {
	State      string `json:"state"`
	Iterations uint64 `json:"iterations"`
	Processed  uint64 `json:"processed"`
	Unchanged  uint64 `json:"unchanged"`
	Busy       uint64 `json:"busy"`
	Empty      uint64 `json:"empty"`
	Failures   uint64 `json:"failures"`
	LastTookMs int64  `json:"lastTookMs"`
}

// Manager runs the recognition pipeline on its own goroutine
type Manager struct {
	config *ManagerConfig
	log    *logging.Logger
	loop   *Loop

	lifecycle sync.Mutex // serializes Initialize/Update/Start/Stop/Close
	state     atomic.Int32

	settingsMu sync.Mutex // held for a whole iteration
	settings   processor.Settings
	pipeline   *processor.Context

	periodMs atomic.Int64

	iterations atomic.Uint64
	processed  atomic.Uint64
	unchanged  atomic.Uint64
	busy       atomic.Uint64
	empty      atomic.Uint64
	failures   atomic.Uint64
	lastTookMs atomic.Int64
}

// NewManager creates an uninitialized manager
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Frames == nil {
		return nil, fmt.Errorf("frame slot is required")
	}
	if cfg.NewBackend == nil {
		return nil, fmt.Errorf("backend factory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	m := &Manager{
		config:   cfg,
		log:      cfg.Logger,
		settings: processor.DefaultSettings(),
	}
	m.loop = NewLoop(m.iterate, cfg.Logger)
	return m, nil
}

// State returns the lifecycle state
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Settings returns the most recently requested settings
func (m *Manager) Settings() processor.Settings {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()
	return m.settings
}

// Initialize performs a hard reset with settings
func (m *Manager) Initialize(settings processor.Settings) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.hardReset(settings)
}

// Update applies settings, reloading the backend only when required
func (m *Manager) Update(settings processor.Settings) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.settingsMu.Lock()
	current := m.settings
	loaded := m.pipeline != nil
	m.settingsMu.Unlock()

	if !loaded || current.RequiresHardReset(settings) {
		return m.hardReset(settings)
	}

	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()

	if err := m.pipeline.Apply(settings); err != nil {
		m.log.Error("Failed to apply settings", "error", err)
		return err
	}
	m.settings = m.pipeline.Settings()
	m.periodMs.Store(int64(m.settings.UpdateTimerMs))
	m.log.Info("Settings applied",
		"binarization", m.settings.Binarization.String(),
		"page_seg_mode", int(m.settings.PageSegMode),
		"update_timer_ms", m.settings.UpdateTimerMs)
	return nil
}

// Start resumes a stopped manager
func (m *Manager) Start() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	switch m.State() {
	case StateRunning:
		return nil
	case StateUninitialized:
		return fmt.Errorf("manager is not initialized")
	}
	m.loop.Start()
	m.state.Store(int32(StateRunning))
	return nil
}

// Stop halts the loop but keeps the backend loaded
func (m *Manager) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.loop.Stop()
	if m.State() == StateRunning {
		m.state.Store(int32(StateStopped))
	}
}

// Close stops the loop and releases the backend
func (m *Manager) Close() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.teardown()
}

// Stats returns a snapshot of the loop counters
func (m *Manager) Stats() Stats {
	return Stats{
		State:      m.State().String(),
		Iterations: m.iterations.Load(),
		Processed:  m.processed.Load(),
		Unchanged:  m.unchanged.Load(),
		Busy:       m.busy.Load(),
		Empty:      m.empty.Load(),
		Failures:   m.failures.Load(),
		LastTookMs: m.lastTookMs.Load(),
	}
}

func (m *Manager) teardown() error {
	m.loop.Stop()
	if m.State() == StateRunning {
		m.state.Store(int32(StateStopped))
	}

	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()

	var err error
	if m.pipeline != nil {
		err = m.pipeline.Close()
		m.pipeline = nil
	}
	m.state.Store(int32(StateUninitialized))
	return err
}

func (m *Manager) hardReset(next processor.Settings) error {
	if err := m.teardown(); err != nil {
		m.log.Warn("Error closing previous backend", "error", err)
	}

	next.Normalize()

	m.settingsMu.Lock()
	m.settings = next
	m.periodMs.Store(int64(next.UpdateTimerMs))

	pipeline, err := m.load(next)
	if err != nil {
		m.settingsMu.Unlock()
		return err
	}
	m.pipeline = pipeline
	m.settingsMu.Unlock()

	m.loop.Start()
	m.state.Store(int32(StateRunning))
	m.log.Info("Recognition worker running",
		"language", next.Language,
		"update_timer_ms", next.UpdateTimerMs)
	return nil
}

func (m *Manager) load(s processor.Settings) (*processor.Context, error) {
	var configFiles []string
	if m.config.Artifacts != nil {
		files, err := m.config.Artifacts.WriteUserPatterns(m.config.InstanceID, s.UserPatterns)
		if err != nil {
			m.log.Error("Failed to write user patterns", "error", err)
			return nil, err
		}
		configFiles = files
	}

	m.log.Info("Loading recognition backend", "model_path", s.ModelPath, "language", s.Language)
	backend, err := m.config.NewBackend(processor.BackendOptions{
		ModelPath:   s.ModelPath,
		Language:    s.Language,
		ConfigFiles: configFiles,
	})
	if err != nil {
		initErr := errors.NewBackendInitError(m.config.InstanceID, s.ModelPath, s.Language, err)
		m.log.Error("Failed to load recognition backend", initErr.KeyValues()...)
		return nil, initErr
	}

	pipeline, err := processor.NewContext(s, &processor.ProcessorConfig{
		Backend:  backend,
		Renderer: m.config.Renderer,
		Sinks:    m.config.Sinks,
		Logger:   m.log,
	})
	if err != nil {
		backend.Close()
		initErr := errors.NewBackendInitError(m.config.InstanceID, s.ModelPath, s.Language, err)
		m.log.Error("Failed to configure recognition backend", initErr.KeyValues()...)
		return nil, initErr
	}
	return pipeline, nil
}

func (m *Manager) iterate() time.Duration {
	m.iterations.Add(1)
	period := time.Duration(m.periodMs.Load()) * time.Millisecond

	snapshot, status := m.config.Frames.TrySnapshot()
	switch status {
	case frame.SnapshotBusy:
		m.busy.Add(1)
		return period
	case frame.SnapshotEmpty:
		m.empty.Add(1)
		return period
	}
	defer snapshot.Close()

	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()

	if m.pipeline == nil {
		return period
	}

	start := time.Now()
	outcome, err := m.process(snapshot)
	m.lastTookMs.Store(time.Since(start).Milliseconds())

	if err != nil {
		m.failures.Add(1)
		if perr, ok := errors.As(err); ok {
			m.log.Error("Iteration failed", perr.KeyValues()...)
		} else {
			m.log.Error("Iteration failed", "error", err)
		}
		return period
	}

	if outcome.Skipped {
		m.unchanged.Add(1)
	} else {
		m.processed.Add(1)
	}
	return period
}

func (m *Manager) process(snapshot gocv.Mat) (outcome *processor.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = nil, errors.NewIterationPanicError(r)
		}
	}()
	return m.pipeline.Process(snapshot)
}
