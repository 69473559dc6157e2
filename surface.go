package cadence

// Outcome classifies the result of an acquire or present call on the
// presentation surface. Anything the driver reports beyond these three is a
// genuine error and travels through the error return instead.
type Outcome int

const (
	// Optimal means the surface matched the request exactly.
	Optimal Outcome = iota

	// Suboptimal means the image is still presentable but the surface no
	// longer matches the swapchain exactly. Rendering proceeds and a rebuild
	// is scheduled for the next frame.
	Suboptimal

	// OutOfDate means the surface is incompatible with the swapchain and the
	// image cannot be used. The frame is skipped and the surface rebuilt.
	OutOfDate
)

func (o Outcome) String() string {
	switch o {
	case Optimal:
		return "optimal"
	case Suboptimal:
		return "suboptimal"
	case OutOfDate:
		return "out of date"
	default:
		return "unknown"
	}
}

// Device is the slice of the graphics device the scheduler needs: per-slot
// completion fences and a full-device drain point. Slot indices are in
// [0, FramesInFlight).
type Device interface {
	// WaitForFrameFence blocks until the slot's fence signals. Fences start
	// life signaled, so the first wait on every slot returns immediately.
	WaitForFrameFence(slot int) error

	// ResetFrameFence returns the slot's fence to the unsignaled state in
	// preparation for the upcoming submission.
	ResetFrameFence(slot int) error

	// WaitIdle blocks until all submitted GPU work on the device has
	// completed. The scheduler calls it exactly once per surface rebuild,
	// before any surface-dependent resource is destroyed.
	WaitIdle() error
}

// Swapchain acquires, submits and presents frames. The implementation owns
// the semaphores that order these three against each other on the GPU: the
// slot's image-acquired semaphore gates submission, and the render-complete
// semaphore gates presentation. Submission must also arm the slot's fence.
type Swapchain interface {
	// AcquireImage requests the next presentable image, arranging for the
	// slot's image-acquired semaphore to signal when the platform releases
	// it. An OutOfDate outcome is not an error; err is reserved for fatal
	// conditions.
	AcquireImage(slot int) (image int, outcome Outcome, err error)

	// SubmitFrame dispatches the frame's command buffer for the given image,
	// waiting on the slot's image-acquired semaphore, signaling render
	// completion, and arming the slot's fence.
	SubmitFrame(slot, image int) error

	// PresentImage hands the image back to the display compositor, gated on
	// render completion. OutOfDate and Suboptimal outcomes are expected
	// transient conditions; err is fatal.
	PresentImage(slot, image int) (Outcome, error)
}

// SurfaceResources is the set of GPU objects whose dimensions or format
// depend on the presentation surface: swapchain images and views, side
// buffers, framebuffers, and any pipeline state that bakes in the extent.
// They are created together, destroyed together and recreated together.
type SurfaceResources interface {
	// Rebuild tears the whole set down and recreates it against the current
	// surface. Teardown runs leaf resources first; recreation mirrors it in
	// reverse. The scheduler guarantees the device is idle when this runs.
	Rebuild() error
}

// Platform exposes the windowing layer's drawable size and event pump. The
// scheduler uses it only to sit out a zero-sized (minimized) surface, where
// blocking on platform events is the correct behavior rather than an error.
type Platform interface {
	DrawableExtent() (width, height int)
	PumpEvents()
}
