package worker

import (
	"sync"
	"time"

	"github.com/adverant/nexus/streamocr-worker/internal/logging"
)

// StepFunc performs at most one iteration's processing and returns the period
// the loop should honor for that iteration
type StepFunc func() time.Duration

// Loop runs a StepFunc on a dedicated goroutine at a fixed cadence
type Loop struct {
	step StepFunc
	log  *logging.Logger

	// ctl serializes Start/Stop so a new goroutine never overlaps one still exiting
	ctl sync.Mutex

	mu      sync.Mutex
	running bool
	wake    chan struct{}
	done    chan struct{}
}

// NewLoop creates a stopped loop
func NewLoop(step StepFunc, log *logging.Logger) *Loop {
	if log == nil {
		log = logging.Nop()
	}
	return &Loop{step: step, log: log}
}

// Start spawns the loop goroutine; a no-op while already running
func (l *Loop) Start() {
	l.ctl.Lock()
	defer l.ctl.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}

	l.running = true
	l.wake = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.wake, l.done)
}

// Stop clears the run flag, interrupts any sleep and waits for the goroutine
// to exit. Safe to call when never started or already stopped.
func (l *Loop) Stop() {
	l.ctl.Lock()
	defer l.ctl.Unlock()

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.wake)
	done := l.done
	l.mu.Unlock()

	<-done
}

// Running reports whether the run flag is set
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(wake <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	l.log.Info("Worker loop started")
	defer l.log.Info("Worker loop stopped")

	for {
		select {
		case <-wake:
			return
		default:
		}

		start := time.Now()
		period := l.step()

		remaining := period - time.Since(start)
		if remaining <= 0 {
			continue
		}

		timer := time.NewTimer(remaining)
		select {
		case <-wake:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
