// Package frame drives the per-frame acquire, record, submit and present
// protocol over a fixed ring of frame slots.
package frame

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// MaxFramesInFlight is how many frames the CPU may run ahead of the GPU.
const MaxFramesInFlight = 2

type SlotState int

const (
	Idle SlotState = iota
	Acquiring
	Recording
	Submitted
)

func (s SlotState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Acquiring:
		return "Acquiring"
	case Recording:
		return "Recording"
	case Submitted:
		return "Submitted"
	}
	return "Unknown"
}

type AcquireResult int

const (
	AcquireOK AcquireResult = iota
	AcquireSuboptimal
	AcquireOutOfDate
)

// Backend performs the GPU side of each step for a given slot.
type Backend interface {
	// WaitForSlot blocks until the slot's previous submission has completed.
	WaitForSlot(slot int) error
	Acquire(slot int) (imageIndex int, result AcquireResult, err error)
	WriteUniforms(slot int) error
	// Record resets the slot's fence and command buffer and records the draw
	// into imageIndex's framebuffer.
	Record(slot, imageIndex int) error
	Submit(slot int) error
	// Present reports stale when the surface no longer matches the swapchain.
	Present(slot, imageIndex int) (stale bool, err error)
	Rebuild() error
}

// Scheduler runs the frame loop on a single goroutine. Only NotifyResize may
// be called from elsewhere.
type Scheduler struct {
	logger  *slog.Logger
	backend Backend

	states        [MaxFramesInFlight]SlotState
	frameCounter  uint64
	resizePending atomic.Bool
}

func NewScheduler(backend Backend, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		backend: backend,
	}
}

// DrawFrame draws one frame. A surface that went out of date during acquire
// abandons the frame after rebuilding the swapchain; the frame counter only
// advances for presented frames.
func (s *Scheduler) DrawFrame() error {
	slot := s.CurrentSlot()

	err := s.backend.WaitForSlot(slot)
	if err != nil {
		return errors.Wrapf(err, "wait for frame slot %d", slot)
	}
	// The slot's previous submission has retired.
	s.states[slot] = Idle

	s.states[slot] = Acquiring

	imageIndex, result, err := s.backend.Acquire(slot)
	if err != nil {
		s.states[slot] = Idle
		return errors.Wrap(err, "acquire swapchain image")
	}
	if result == AcquireOutOfDate {
		s.states[slot] = Idle
		s.logger.Debug("swapchain out of date on acquire", slog.Uint64("frame", s.frameCounter))
		// The rebuild below already picks up any pending resize.
		s.resizePending.Store(false)
		return s.backend.Rebuild()
	}

	err = s.backend.WriteUniforms(slot)
	if err != nil {
		return errors.Wrap(err, "write uniforms")
	}

	s.states[slot] = Recording
	err = s.backend.Record(slot, imageIndex)
	if err != nil {
		return errors.Wrap(err, "record frame")
	}

	err = s.backend.Submit(slot)
	if err != nil {
		return errors.Wrap(err, "submit frame")
	}
	s.states[slot] = Submitted

	stale, err := s.backend.Present(slot, imageIndex)
	if err != nil {
		return errors.Wrap(err, "present frame")
	}

	resized := s.resizePending.Swap(false)
	if stale || resized || result == AcquireSuboptimal {
		s.logger.Debug("rebuilding swapchain after present",
			slog.Bool("stale", stale),
			slog.Bool("resized", resized),
			slog.Bool("suboptimal", result == AcquireSuboptimal))
		err = s.backend.Rebuild()
		if err != nil {
			return err
		}
	}

	s.frameCounter++
	return nil
}

// NotifyResize records that the window changed size. The swapchain is
// rebuilt after the next present.
func (s *Scheduler) NotifyResize() {
	s.resizePending.Store(true)
}

func (s *Scheduler) FrameCounter() uint64 {
	return s.frameCounter
}

func (s *Scheduler) CurrentSlot() int {
	return int(s.frameCounter % MaxFramesInFlight)
}

func (s *Scheduler) SlotState(slot int) SlotState {
	return s.states[slot]
}
