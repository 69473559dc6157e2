package render

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

// createCommandPools builds two pools on the graphics queue family: one for
// the long-lived per-image command buffers and a transient one for one-shot
// upload and blit work.
func (r *Renderer) createCommandPools() error {
	indices, err := r.findQueueFamilies(r.physicalDevice)
	if err != nil {
		return err
	}

	r.commandPool, _, err = r.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: *indices.GraphicsFamily,
	})
	if err != nil {
		return err
	}

	r.transientCommandPool, _, err = r.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateTransient,
		QueueFamilyIndex: *indices.GraphicsFamily,
	})
	return err
}

func (r *Renderer) createCommandBuffers() error {
	buffers, _, err := r.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: len(r.swapchainImages),
	})
	if err != nil {
		return err
	}
	r.commandBuffers = buffers

	for bufferIdx, buffer := range buffers {
		_, err = r.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{})
		if err != nil {
			return err
		}

		err = r.deviceDriver.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline,
			core1_0.RenderPassBeginInfo{
				RenderPass:  r.renderPass,
				Framebuffer: r.swapchainFramebuffers[bufferIdx],
				RenderArea: core1_0.Rect2D{
					Offset: core1_0.Offset2D{X: 0, Y: 0},
					Extent: r.swapchainExtent,
				},
				ClearValues: []core1_0.ClearValue{
					core1_0.ClearValueFloat{0, 0, 0, 1},
					core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0},
				},
			})
		if err != nil {
			return err
		}

		r.deviceDriver.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, r.graphicsPipeline)
		r.deviceDriver.CmdBindVertexBuffers(buffer, 0, []core1_0.Buffer{r.vertexBuffer}, []int{0})
		r.deviceDriver.CmdBindIndexBuffer(buffer, r.indexBuffer, 0, core1_0.IndexTypeUInt32)
		r.deviceDriver.CmdBindDescriptorSets(buffer, core1_0.PipelineBindPointGraphics, r.pipelineLayout, 0, []core1_0.DescriptorSet{
			r.descriptorSets[bufferIdx],
		}, nil)
		r.deviceDriver.CmdDrawIndexed(buffer, len(r.indices), 1, 0, 0, 0)
		r.deviceDriver.CmdEndRenderPass(buffer)

		_, err = r.deviceDriver.EndCommandBuffer(buffer)
		if err != nil {
			return err
		}
	}

	return nil
}
