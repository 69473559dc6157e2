package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

// createSyncObjects builds one acquire semaphore and one fence per frame
// slot, plus one render-complete semaphore per swapchain image. Fences start
// signaled so the first wait on each slot returns immediately.
func (r *Renderer) createSyncObjects() error {
	for i := 0; i < r.cfg.FramesInFlight; i++ {
		semaphore, _, err := r.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return err
		}

		r.imageAvailableSemaphores = append(r.imageAvailableSemaphores, semaphore)

		fence, _, err := r.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			return err
		}

		r.inFlightFences = append(r.inFlightFences, fence)
	}

	for i := 0; i < len(r.swapchainImages); i++ {
		semaphore, _, err := r.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return err
		}

		r.renderFinishedSemaphores = append(r.renderFinishedSemaphores, semaphore)

		r.imagesInFlight = append(r.imagesInFlight, core1_0.Fence{})
	}

	return nil
}
