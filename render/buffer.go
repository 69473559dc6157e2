package render

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// writeData serializes data into mapped host-visible memory at the given
// offset.
func writeData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset int, data any) error {
	bufferSize := binary.Size(data)

	memoryPtr, _, err := driver.MapMemory(memory, offset, bufferSize, 0)
	if err != nil {
		return err
	}
	defer driver.UnmapMemory(memory)

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), bufferSize)

	buf := &bytes.Buffer{}
	err = binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return err
	}

	copy(dataBuffer, buf.Bytes())
	return nil
}

func (r *Renderer) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := r.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memRequirements := r.deviceDriver.GetBufferMemoryRequirements(buffer)
	memoryTypeIndex, err := r.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		return buffer, core1_0.DeviceMemory{}, err
	}

	memory, _, err := r.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return buffer, core1_0.DeviceMemory{}, err
	}

	_, err = r.deviceDriver.BindBufferMemory(buffer, memory, 0)
	return buffer, memory, err
}

// beginSingleTimeCommands allocates a one-shot command buffer from the
// transient pool. Pair with endSingleTimeCommands.
func (r *Renderer) beginSingleTimeCommands() (core1_0.CommandBuffer, error) {
	buffers, _, err := r.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.transientCommandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, err
	}

	buffer := buffers[0]
	_, err = r.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	return buffer, err
}

func (r *Renderer) endSingleTimeCommands(buffer core1_0.CommandBuffer) error {
	_, err := r.deviceDriver.EndCommandBuffer(buffer)
	if err != nil {
		return err
	}

	_, err = r.deviceDriver.QueueSubmit(r.graphicsQueue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return err
	}

	_, err = r.deviceDriver.QueueWaitIdle(r.graphicsQueue)
	if err != nil {
		return err
	}

	r.deviceDriver.FreeCommandBuffers(buffer)
	return nil
}

func (r *Renderer) copyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, size int) error {
	buffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = r.deviceDriver.CmdCopyBuffer(buffer, srcBuffer, dstBuffer,
		core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	)
	if err != nil {
		return err
	}

	return r.endSingleTimeCommands(buffer)
}

func (r *Renderer) createVertexBuffer() error {
	var err error
	bufferSize := binary.Size(r.vertices)

	stagingBuffer, stagingBufferMemory, err := r.createBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if stagingBuffer.Initialized() {
		defer r.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	}
	if stagingBufferMemory.Initialized() {
		defer r.deviceDriver.FreeMemory(stagingBufferMemory, nil)
	}

	if err != nil {
		return err
	}

	err = writeData(r.deviceDriver, stagingBufferMemory, 0, r.vertices)
	if err != nil {
		return err
	}

	r.vertexBuffer, r.vertexBufferMemory, err = r.createBuffer(bufferSize, core1_0.BufferUsageTransferDst|core1_0.BufferUsageVertexBuffer, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return err
	}

	return r.copyBuffer(stagingBuffer, r.vertexBuffer, bufferSize)
}

func (r *Renderer) createIndexBuffer() error {
	bufferSize := binary.Size(r.indices)

	stagingBuffer, stagingBufferMemory, err := r.createBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if stagingBuffer.Initialized() {
		defer r.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	}
	if stagingBufferMemory.Initialized() {
		defer r.deviceDriver.FreeMemory(stagingBufferMemory, nil)
	}

	if err != nil {
		return err
	}

	err = writeData(r.deviceDriver, stagingBufferMemory, 0, r.indices)
	if err != nil {
		return err
	}

	r.indexBuffer, r.indexBufferMemory, err = r.createBuffer(bufferSize, core1_0.BufferUsageTransferDst|core1_0.BufferUsageIndexBuffer, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return err
	}

	return r.copyBuffer(stagingBuffer, r.indexBuffer, bufferSize)
}

func (r *Renderer) createDescriptorPool() error {
	var err error
	r.descriptorPool, _, err = r.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: len(r.swapchainImages),
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: len(r.swapchainImages),
			},
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: len(r.swapchainImages),
			},
		},
	})
	return err
}

func (r *Renderer) createDescriptorSets() error {
	var allocLayouts []core1_0.DescriptorSetLayout
	for i := 0; i < len(r.swapchainImages); i++ {
		allocLayouts = append(allocLayouts, r.descriptorSetLayout)
	}

	var err error
	r.descriptorSets, _, err = r.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: r.descriptorPool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return err
	}

	for i := 0; i < len(r.swapchainImages); i++ {
		err = r.deviceDriver.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
			{
				DstSet:          r.descriptorSets[i],
				DstBinding:      0,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeUniformBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: r.uniformBuffers[i],
						Offset: 0,
						Range:  int(unsafe.Sizeof(UniformBufferObject{})),
					},
				},
			},
			{
				DstSet:          r.descriptorSets[i],
				DstBinding:      1,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						ImageView:   r.textureImageView,
						Sampler:     r.textureSampler,
						ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
					},
				},
			},
		}, nil)
		if err != nil {
			return err
		}
	}

	return nil
}
