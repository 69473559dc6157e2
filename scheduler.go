package cadence

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrStopped is returned by BeginFrame once Stop has been raised. It marks a
// cooperative shutdown, not a failure; callers exit their render loop cleanly
// when errors.Is reports it.
var ErrStopped = errors.New("cadence: scheduler stopped")

// DefaultFramesInFlight is the slot count used when Config leaves it zero.
// Two slots let the CPU prepare one frame while the GPU renders the previous
// one without ever tearing down resources a command buffer still references.
const DefaultFramesInFlight = 2

// Config wires a Scheduler to its backend. All four interfaces are required;
// they are usually implemented by a single renderer type.
type Config struct {
	Device    Device
	Swapchain Swapchain
	Resources SurfaceResources
	Platform  Platform

	// FramesInFlight is the slot count N. Zero means DefaultFramesInFlight;
	// values below 2 are rejected since a single slot serializes the CPU
	// against the GPU entirely.
	FramesInFlight int
}

// Scheduler coordinates CPU-side frame submission against GPU completion for
// a fixed ring of frame slots, and transparently rebuilds surface-dependent
// resources when the presentation surface goes stale. All methods except
// MarkStale and Stop must be called from the render thread.
type Scheduler struct {
	device    Device
	swapchain Swapchain
	resources SurfaceResources
	platform  Platform

	slots int
	slot  int

	// stale and stop are raised by the platform event thread and consumed by
	// the render thread at frame boundaries. They are the only cross-thread
	// state the scheduler holds.
	stale atomic.Bool
	stop  atomic.Bool

	// pendingRebuild defers a rebuild requested mid-frame (suboptimal
	// acquire or present) to the next BeginFrame, once the current frame's
	// submission no longer references the old resources.
	pendingRebuild bool
}

// NewScheduler validates cfg and returns a scheduler with slot 0 current.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Device == nil || cfg.Swapchain == nil || cfg.Resources == nil || cfg.Platform == nil {
		return nil, errors.New("cadence: scheduler config is missing a backend interface")
	}

	slots := cfg.FramesInFlight
	if slots == 0 {
		slots = DefaultFramesInFlight
	}
	if slots < 2 {
		return nil, errors.Newf("cadence: %d frames in flight requested, need at least 2", slots)
	}

	return &Scheduler{
		device:    cfg.Device,
		swapchain: cfg.Swapchain,
		resources: cfg.Resources,
		platform:  cfg.Platform,
		slots:     slots,
	}, nil
}

// FramesInFlight returns the slot count N.
func (s *Scheduler) FramesInFlight() int {
	return s.slots
}

// Slot returns the current slot index. Useful for diagnostics only; the slot
// a frame runs on is an implementation detail of the scheduler.
func (s *Scheduler) Slot() int {
	return s.slot
}

// MarkStale records that the presentation surface no longer matches its
// resources, typically from a resize notification. Safe to call from any
// thread; the render thread honors it on the next BeginFrame or EndFrame.
func (s *Scheduler) MarkStale() {
	s.stale.Store(true)
}

// Stop requests a cooperative shutdown. Safe to call from any thread. The
// render thread observes it at the next BeginFrame, including from inside the
// minimized-window wait, and gets ErrStopped back.
func (s *Scheduler) Stop() {
	s.stop.Store(true)
}

// BeginFrame starts the next frame. It blocks until the current slot's fence
// signals, rebuilds the surface resources if they are stale, and acquires a
// presentable image. ok reports whether a frame should be submitted this
// tick: when a rebuild ran or the acquire came back out of date, ok is false
// and the caller skips straight to the next BeginFrame. After Stop it returns
// ErrStopped; any other non-nil error is fatal.
func (s *Scheduler) BeginFrame() (image int, ok bool, err error) {
	if s.stop.Load() {
		return 0, false, ErrStopped
	}

	if err := s.device.WaitForFrameFence(s.slot); err != nil {
		return 0, false, errors.Wrapf(err, "waiting for frame slot %d fence", s.slot)
	}

	if s.stale.Load() || s.pendingRebuild {
		s.pendingRebuild = false
		if err := s.rebuild(); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}

	image, outcome, err := s.swapchain.AcquireImage(s.slot)
	if err != nil {
		return 0, false, errors.Wrapf(err, "acquiring image for frame slot %d", s.slot)
	}

	switch outcome {
	case OutOfDate:
		if err := s.rebuild(); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	case Suboptimal:
		// Usable, so render this frame, but the surface no longer matches
		// exactly. Rebuild next frame rather than yanking resources an
		// in-flight command buffer still references.
		s.pendingRebuild = true
	}

	if err := s.device.ResetFrameFence(s.slot); err != nil {
		return 0, false, errors.Wrapf(err, "resetting frame slot %d fence", s.slot)
	}

	return image, true, nil
}

// EndFrame submits and presents the image returned by the matching
// BeginFrame, then advances the slot ring. Out-of-date or suboptimal
// presentation, or a resize raised since BeginFrame, schedules a rebuild for
// the next frame. Any other failure is fatal and propagated.
func (s *Scheduler) EndFrame(image int) error {
	if err := s.swapchain.SubmitFrame(s.slot, image); err != nil {
		return errors.Wrapf(err, "submitting frame slot %d image %d", s.slot, image)
	}

	outcome, err := s.swapchain.PresentImage(s.slot, image)
	if err != nil {
		return errors.Wrapf(err, "presenting frame slot %d image %d", s.slot, image)
	}

	if outcome == OutOfDate || outcome == Suboptimal || s.stale.Load() {
		s.pendingRebuild = true
	}

	s.slot = (s.slot + 1) % s.slots
	return nil
}

// rebuild drains the device and recreates every surface-dependent resource.
// When the drawable extent is zero in either dimension the window is
// minimized: block on platform events until it comes back, which is expected
// behavior and not an error. Stop interrupts the wait, since a minimized
// window would otherwise pin the render thread here across a quit.
func (s *Scheduler) rebuild() error {
	for {
		if s.stop.Load() {
			return ErrStopped
		}

		width, height := s.platform.DrawableExtent()
		if width > 0 && height > 0 {
			break
		}
		s.platform.PumpEvents()
	}

	// All in-flight work must drain before any old resource is destroyed.
	if err := s.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "draining device before surface rebuild")
	}

	if err := s.resources.Rebuild(); err != nil {
		return errors.Wrap(err, "rebuilding surface resources")
	}

	s.stale.Store(false)
	return nil
}
