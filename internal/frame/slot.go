// Package frame holds the shared input buffer between the frame producer and
// the recognition worker.
package frame

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// SnapshotStatus tells the worker why a snapshot was or was not taken
type SnapshotStatus int

const (
	SnapshotOK SnapshotStatus = iota
	SnapshotBusy
	SnapshotEmpty
)

func (s SnapshotStatus) String() string {
	switch s {
	case SnapshotOK:
		return "ok"
	case SnapshotBusy:
		return "busy"
	default:
		return "empty"
	}
}

// Slot is the single shared frame. Producers overwrite it, the worker clones it.
type Slot struct {
	mu    sync.Mutex
	frame gocv.Mat
	seq   uint64
}

// NewSlot creates an empty slot
func NewSlot() *Slot {
	return &Slot{frame: gocv.NewMat()}
}

// Put stores a BGRA copy of img. The conversion happens outside the lock so
// the worker's TrySnapshot only ever contends with a pointer swap.
func (s *Slot) Put(img gocv.Mat) error {
	if img.Empty() {
		return fmt.Errorf("empty frame")
	}

	bgra := gocv.NewMat()
	switch img.Channels() {
	case 4:
		img.CopyTo(&bgra)
	case 3:
		gocv.CvtColor(img, &bgra, gocv.ColorBGRToBGRA)
	case 1:
		gocv.CvtColor(img, &bgra, gocv.ColorGrayToBGRA)
	default:
		bgra.Close()
		return fmt.Errorf("unsupported channel count: %d", img.Channels())
	}

	s.mu.Lock()
	old := s.frame
	s.frame = bgra
	s.seq++
	s.mu.Unlock()

	old.Close()
	return nil
}

// TrySnapshot clones the current frame without blocking. The returned Mat is
// owned by the caller and only valid when the status is SnapshotOK.
func (s *Slot) TrySnapshot() (gocv.Mat, SnapshotStatus) {
	if !s.mu.TryLock() {
		return gocv.Mat{}, SnapshotBusy
	}
	defer s.mu.Unlock()

	if s.frame.Empty() {
		return gocv.Mat{}, SnapshotEmpty
	}
	return s.frame.Clone(), SnapshotOK
}

// Sequence returns how many frames have been put so far
func (s *Slot) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close releases the stored frame
func (s *Slot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame.Close()
}
