package render

import (
	"time"

	"github.com/cadence-vk/cadence"
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

var (
	_ cadence.Device           = (*Renderer)(nil)
	_ cadence.Swapchain        = (*Renderer)(nil)
	_ cadence.SurfaceResources = (*Renderer)(nil)
	_ cadence.Platform         = (*Renderer)(nil)
)

// WaitForFrameFence blocks until slot's previous submission has fully
// retired on the GPU.
func (r *Renderer) WaitForFrameFence(slot int) error {
	_, err := r.deviceDriver.WaitForFences(true, common.NoTimeout, r.inFlightFences[slot])
	return err
}

func (r *Renderer) ResetFrameFence(slot int) error {
	_, err := r.deviceDriver.ResetFences(r.inFlightFences[slot])
	return err
}

func (r *Renderer) WaitIdle() error {
	_, err := r.deviceDriver.DeviceWaitIdle()
	return err
}

// AcquireImage asks the platform for the next presentable image, signaling
// the slot's acquire semaphore when it is released. When a previous frame
// still owns the image, its fence is waited here so the per-image command
// buffer and uniform buffer are free to reuse.
func (r *Renderer) AcquireImage(slot int) (int, cadence.Outcome, error) {
	imageIndex, res, err := r.swapchainExtension.AcquireNextImage(r.swapchain, common.NoTimeout, &r.imageAvailableSemaphores[slot], nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return 0, cadence.OutOfDate, nil
	} else if err != nil {
		return 0, cadence.Optimal, err
	}

	if r.imagesInFlight[imageIndex].Initialized() {
		_, err := r.deviceDriver.WaitForFences(true, common.NoTimeout, r.imagesInFlight[imageIndex])
		if err != nil {
			return 0, cadence.Optimal, err
		}
	}
	r.imagesInFlight[imageIndex] = r.inFlightFences[slot]

	if res == khr_swapchain.VKSuboptimal {
		return imageIndex, cadence.Suboptimal, nil
	}
	return imageIndex, cadence.Optimal, nil
}

// SubmitFrame refreshes the image's uniform buffer and dispatches its
// command buffer, gated on the slot's acquire semaphore and arming the
// slot's fence on completion.
func (r *Renderer) SubmitFrame(slot, image int) error {
	if err := r.updateUniformBuffer(image); err != nil {
		return err
	}

	_, err := r.deviceDriver.QueueSubmit(r.graphicsQueue, &r.inFlightFences[slot],
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{r.imageAvailableSemaphores[slot]},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{r.commandBuffers[image]},
			SignalSemaphores: []core1_0.Semaphore{r.renderFinishedSemaphores[image]},
		},
	)
	return err
}

func (r *Renderer) PresentImage(slot, image int) (cadence.Outcome, error) {
	res, err := r.swapchainExtension.QueuePresent(r.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{r.renderFinishedSemaphores[image]},
		Swapchains:     []khr_swapchain.Swapchain{r.swapchain},
		ImageIndices:   []int{image},
	})
	if res == khr_swapchain.VKErrorOutOfDate {
		return cadence.OutOfDate, nil
	}
	if res == khr_swapchain.VKSuboptimal {
		return cadence.Suboptimal, nil
	}
	return cadence.Optimal, err
}

// Rebuild tears down and recreates everything whose size or format depends
// on the surface. The caller has already drained the device.
func (r *Renderer) Rebuild() error {
	r.cleanupSwapchain()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"creating swapchain", r.createSwapchain},
		{"creating swapchain image views", r.createImageViews},
		{"creating render pass", r.createRenderPass},
		{"creating graphics pipeline", r.createGraphicsPipeline},
		{"creating color resources", r.createColorResources},
		{"creating depth resources", r.createDepthResources},
		{"creating framebuffers", r.createFramebuffers},
		{"creating uniform buffers", r.createUniformBuffers},
		{"creating descriptor pool", r.createDescriptorPool},
		{"creating descriptor sets", r.createDescriptorSets},
		{"recording command buffers", r.createCommandBuffers},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return errors.Wrap(err, step.name)
		}
	}

	return r.resetPerImageSync()
}

// resetPerImageSync resizes the per-image bookkeeping after a rebuild. The
// platform may hand back a different image count than before.
func (r *Renderer) resetPerImageSync() error {
	r.imagesInFlight = r.imagesInFlight[:0]
	for i := 0; i < len(r.swapchainImages); i++ {
		r.imagesInFlight = append(r.imagesInFlight, core1_0.Fence{})
	}

	if len(r.renderFinishedSemaphores) != len(r.swapchainImages) {
		for _, semaphore := range r.renderFinishedSemaphores {
			r.deviceDriver.DestroySemaphore(semaphore, nil)
		}
		r.renderFinishedSemaphores = r.renderFinishedSemaphores[:0]

		for i := 0; i < len(r.swapchainImages); i++ {
			semaphore, _, err := r.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
			if err != nil {
				return err
			}
			r.renderFinishedSemaphores = append(r.renderFinishedSemaphores, semaphore)
		}
	}

	return nil
}

// DrawableExtent reports the drawable size in pixels, with a minimized
// window treated as zero-sized.
func (r *Renderer) DrawableExtent() (int, int) {
	if (r.window.GetFlags() & sdl.WINDOW_MINIMIZED) != 0 {
		return 0, 0
	}

	w, h := r.window.VulkanGetDrawableSize()
	return int(w), int(h)
}

// PumpEvents paces the scheduler's minimized-window poll. SDL events must be
// pumped on the thread that created the window, so the render goroutine never
// touches the queue itself; it sleeps a beat between checks of the drawable
// extent and the stop flag while the main thread keeps the queue draining.
func (r *Renderer) PumpEvents() {
	time.Sleep(10 * time.Millisecond)
}
