package render

import (
	"bytes"
	"image/png"
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func hasStencilComponent(format core1_0.Format) bool {
	return format == core1_0.FormatD32SignedFloatS8UnsignedInt || format == core1_0.FormatD24UnsignedNormalizedS8UnsignedInt
}

func (r *Renderer) createTextureImage() error {
	imageBytes, err := os.ReadFile(r.cfg.TexturePath)
	if err != nil {
		return errors.Wrapf(err, "reading texture %s", r.cfg.TexturePath)
	}

	decodedImage, err := png.Decode(bytes.NewBuffer(imageBytes))
	if err != nil {
		return errors.Wrapf(err, "decoding texture %s", r.cfg.TexturePath)
	}
	imageBounds := decodedImage.Bounds()
	imageDims := imageBounds.Size()
	imageSize := imageDims.X * imageDims.Y * 4

	r.mipLevels = int(math.Floor(math.Log2(math.Max(float64(imageDims.X), float64(imageDims.Y))))) + 1

	stagingBuffer, stagingMemory, err := r.createBuffer(imageSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return err
	}

	defer r.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	defer r.deviceDriver.FreeMemory(stagingMemory, nil)

	pixelData := make([]byte, 0, imageSize)
	for y := imageBounds.Min.Y; y < imageBounds.Max.Y; y++ {
		for x := imageBounds.Min.X; x < imageBounds.Max.X; x++ {
			red, green, blue, alpha := decodedImage.At(x, y).RGBA()
			pixelData = append(pixelData, byte(red>>8), byte(green>>8), byte(blue>>8), byte(alpha>>8))
		}
	}

	err = writeData(r.deviceDriver, stagingMemory, 0, pixelData)
	if err != nil {
		return err
	}

	r.textureImage, r.textureImageMemory, err = r.createImage(imageDims.X,
		imageDims.Y,
		r.mipLevels,
		core1_0.Samples1,
		core1_0.FormatR8G8B8A8SRGB,
		core1_0.ImageTilingOptimal,
		core1_0.ImageUsageTransferSrc|core1_0.ImageUsageTransferDst|core1_0.ImageUsageSampled,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return err
	}

	err = r.transitionImageLayout(r.textureImage, core1_0.FormatR8G8B8A8SRGB, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal, r.mipLevels)
	if err != nil {
		return err
	}
	err = r.copyBufferToImage(stagingBuffer, r.textureImage, imageDims.X, imageDims.Y)
	if err != nil {
		return err
	}

	// The blit chain leaves every level in ShaderReadOnlyOptimal.
	return r.generateMipmaps(r.textureImage, core1_0.FormatR8G8B8A8SRGB, imageDims.X, imageDims.Y, r.mipLevels)
}

func (r *Renderer) generateMipmaps(image core1_0.Image, imageFormat core1_0.Format, width, height int, mipLevels int) error {
	properties := r.instanceDriver.GetPhysicalDeviceFormatProperties(r.physicalDevice, imageFormat)

	if (properties.OptimalTilingFeatures & core1_0.FormatFeatureSampledImageFilterLinear) == 0 {
		return errors.Newf("texture image format %s does not support linear blitting", imageFormat)
	}

	commandBuffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	barrier := core1_0.ImageMemoryBarrier{
		Image:               image,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseArrayLayer: 0,
			LayerCount:     1,
			LevelCount:     1,
		},
	}

	mipWidth := width
	mipHeight := height
	for i := 1; i < mipLevels; i++ {
		barrier.SubresourceRange.BaseMipLevel = i - 1
		barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
		barrier.NewLayout = core1_0.ImageLayoutTransferSrcOptimal
		barrier.SrcAccessMask = core1_0.AccessTransferWrite
		barrier.DstAccessMask = core1_0.AccessTransferRead

		err = r.deviceDriver.CmdPipelineBarrier(commandBuffer, core1_0.PipelineStageTransfer, core1_0.PipelineStageTransfer, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
		if err != nil {
			return err
		}

		nextMipWidth := mipWidth
		nextMipHeight := mipHeight

		if nextMipWidth > 1 {
			nextMipWidth /= 2
		}
		if nextMipHeight > 1 {
			nextMipHeight /= 2
		}
		err = r.deviceDriver.CmdBlitImage(commandBuffer, image, core1_0.ImageLayoutTransferSrcOptimal, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.ImageBlit{
			{
				SrcSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i - 1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: mipWidth, Y: mipHeight, Z: 1},
				},

				DstSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				DstOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: nextMipWidth, Y: nextMipHeight, Z: 1},
				},
			},
		}, core1_0.FilterLinear)
		if err != nil {
			return err
		}

		barrier.OldLayout = core1_0.ImageLayoutTransferSrcOptimal
		barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
		barrier.SrcAccessMask = core1_0.AccessTransferRead
		barrier.DstAccessMask = core1_0.AccessShaderRead
		barrier.SrcQueueFamilyIndex = -1
		barrier.DstQueueFamilyIndex = -1
		err = r.deviceDriver.CmdPipelineBarrier(commandBuffer, core1_0.PipelineStageTransfer, core1_0.PipelineStageFragmentShader, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
		if err != nil {
			return err
		}

		mipWidth = nextMipWidth
		mipHeight = nextMipHeight
	}

	barrier.SubresourceRange.BaseMipLevel = mipLevels - 1
	barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
	barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
	barrier.SrcAccessMask = core1_0.AccessTransferWrite
	barrier.DstAccessMask = core1_0.AccessShaderRead

	err = r.deviceDriver.CmdPipelineBarrier(
		commandBuffer,
		core1_0.PipelineStageTransfer,
		core1_0.PipelineStageFragmentShader,
		0, nil, nil,
		[]core1_0.ImageMemoryBarrier{barrier})
	if err != nil {
		return err
	}

	return r.endSingleTimeCommands(commandBuffer)
}

func (r *Renderer) createTextureImageView() error {
	var err error
	r.textureImageView, err = r.createImageView(r.textureImage, core1_0.FormatR8G8B8A8SRGB, core1_0.ImageAspectColor, r.mipLevels)
	return err
}

func (r *Renderer) createSampler() error {
	properties, err := r.instanceDriver.GetPhysicalDeviceProperties(r.physicalDevice)
	if err != nil {
		return err
	}

	r.textureSampler, _, err = r.deviceDriver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    properties.Limits.MaxSamplerAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     float32(r.mipLevels),
	})

	return err
}

func (r *Renderer) createImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags, mipLevels int) (core1_0.ImageView, error) {
	imageView, _, err := r.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	return imageView, err
}

func (r *Renderer) createImage(width, height int, mipLevels int, numSamples core1_0.SampleCountFlags, format core1_0.Format, tiling core1_0.ImageTiling, usage core1_0.ImageUsageFlags, memoryProperties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	image, _, err := r.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       numSamples,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	memReqs := r.deviceDriver.GetImageMemoryRequirements(image)
	memoryIndex, err := r.findMemoryType(memReqs.MemoryTypeBits, memoryProperties)
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	imageMemory, _, err := r.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	_, err = r.deviceDriver.BindImageMemory(image, imageMemory, 0)
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	return image, imageMemory, nil
}

func (r *Renderer) transitionImageLayout(image core1_0.Image, format core1_0.Format, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout, mipLevels int) error {
	buffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	var sourceStage, destStage core1_0.PipelineStageFlags
	var sourceAccess, destAccess core1_0.AccessFlags

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		sourceAccess = 0
		destAccess = core1_0.AccessTransferWrite
		sourceStage = core1_0.PipelineStageTopOfPipe
		destStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		sourceAccess = core1_0.AccessTransferWrite
		destAccess = core1_0.AccessShaderRead
		sourceStage = core1_0.PipelineStageTransfer
		destStage = core1_0.PipelineStageFragmentShader
	} else {
		return errors.Newf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
	}

	aspect := core1_0.ImageAspectColor
	if newLayout == core1_0.ImageLayoutDepthStencilAttachmentOptimal {
		aspect = core1_0.ImageAspectDepth
		if hasStencilComponent(format) {
			aspect |= core1_0.ImageAspectStencil
		}
	}

	err = r.deviceDriver.CmdPipelineBarrier(buffer, sourceStage, destStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     aspect,
				BaseMipLevel:   0,
				LevelCount:     mipLevels,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: sourceAccess,
			DstAccessMask: destAccess,
		},
	})
	if err != nil {
		return err
	}

	return r.endSingleTimeCommands(buffer)
}

func (r *Renderer) copyBufferToImage(buffer core1_0.Buffer, image core1_0.Image, width, height int) error {
	cmdBuffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = r.deviceDriver.CmdCopyBufferToImage(cmdBuffer, buffer, image, core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	)
	if err != nil {
		return err
	}

	return r.endSingleTimeCommands(cmdBuffer)
}
