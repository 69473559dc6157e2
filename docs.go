/*
Package cadence implements a frame-pacing state machine for double- or
triple-buffered presentation against an explicit graphics API.

The scheduler owns a fixed ring of frame slots. Each slot corresponds to one
frame that may be in flight on the GPU at a time: the slot's fence tells the
host when that frame's work has drained, and the slot's semaphores order image
acquisition, rendering and presentation on the GPU timeline. The scheduler
never talks to the driver directly; it drives the four small interfaces in
surface.go, which a real backend (see the render package) or a test mock
implements.

A frame is one BeginFrame/EndFrame pair:

	image, ok, err := sched.BeginFrame()
	if err != nil {
		return err
	}
	if !ok {
		continue // surface was rebuilt this tick, nothing to submit
	}
	if err := sched.EndFrame(image); err != nil {
		return err
	}

BeginFrame blocks until the current slot's previous frame has signaled its
fence, so the CPU can never run more than the configured number of frames
ahead of the GPU. When the presentation surface goes stale (window resize,
out-of-date swapchain) the scheduler drains the device and rebuilds every
surface-dependent resource before handing out another image; a suboptimal but
usable surface finishes the current frame first and rebuilds on the next one,
so resources referenced by in-flight command buffers are never destroyed.

MarkStale is the only method safe to call from outside the render thread. It
is how a platform event loop reports a resize without touching GPU state.
*/
package cadence
