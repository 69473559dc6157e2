package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type SwapchainSupportDetails struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

func (r *Renderer) querySwapchainSupport(device core1_0.PhysicalDevice) (SwapchainSupportDetails, error) {
	var details SwapchainSupportDetails
	var err error

	details.Capabilities, _, err = r.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(r.surface, device)
	if err != nil {
		return details, err
	}

	details.Formats, _, err = r.surfaceExtension.GetPhysicalDeviceSurfaceFormats(r.surface, device)
	if err != nil {
		return details, err
	}

	details.PresentModes, _, err = r.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(r.surface, device)
	return details, err
}

func chooseSurfaceFormat(available []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range available {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return available[0]
}

func choosePresentMode(available []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range available {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	// FIFO is the only mode the platform is required to support.
	return khr_surface.PresentModeFIFO
}

// clampExtent resolves the swapchain extent from the surface capabilities,
// falling back to the drawable size clamped into the supported range when the
// platform leaves the choice to us.
func clampExtent(capabilities *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := drawableWidth
	height := drawableHeight

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}

func (r *Renderer) createSwapchain() error {
	r.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(r.deviceDriver)

	swapchainSupport, err := r.querySwapchainSupport(r.physicalDevice)
	if err != nil {
		return err
	}

	surfaceFormat := chooseSurfaceFormat(swapchainSupport.Formats)
	presentMode := choosePresentMode(swapchainSupport.PresentModes)

	drawableWidth, drawableHeight := r.window.VulkanGetDrawableSize()
	extent := clampExtent(swapchainSupport.Capabilities, int(drawableWidth), int(drawableHeight))

	imageCount := swapchainSupport.Capabilities.MinImageCount + 1
	if swapchainSupport.Capabilities.MaxImageCount > 0 && swapchainSupport.Capabilities.MaxImageCount < imageCount {
		imageCount = swapchainSupport.Capabilities.MaxImageCount
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	indices, err := r.findQueueFamilies(r.physicalDevice)
	if err != nil {
		return err
	}

	if *indices.GraphicsFamily != *indices.PresentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *indices.GraphicsFamily, *indices.PresentFamily)
	}

	swapchain, _, err := r.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: r.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   swapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return err
	}
	r.swapchainExtent = extent
	r.swapchain = swapchain
	r.swapchainImageFormat = surfaceFormat.Format

	return nil
}

func (r *Renderer) createImageViews() error {
	images, _, err := r.swapchainExtension.GetSwapchainImages(r.swapchain)
	if err != nil {
		return err
	}
	r.swapchainImages = images

	var imageViews []core1_0.ImageView
	for _, image := range images {
		view, err := r.createImageView(image, r.swapchainImageFormat, core1_0.ImageAspectColor, 1)
		if err != nil {
			return err
		}

		imageViews = append(imageViews, view)
	}
	r.swapchainImageViews = imageViews

	return nil
}

func (r *Renderer) createFramebuffers() error {
	var framebuffers []core1_0.Framebuffer
	for _, imageView := range r.swapchainImageViews {
		framebuffer, _, err := r.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: r.renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				r.colorImageView,
				r.depthImageView,
				imageView,
			},
			Width:  r.swapchainExtent.Width,
			Height: r.swapchainExtent.Height,
		})
		if err != nil {
			return err
		}

		framebuffers = append(framebuffers, framebuffer)
	}
	r.swapchainFramebuffers = framebuffers

	return nil
}

func (r *Renderer) createColorResources() error {
	var err error
	r.colorImage, r.colorImageMemory, err = r.createImage(
		r.swapchainExtent.Width,
		r.swapchainExtent.Height,
		1,
		r.msaaSamples,
		r.swapchainImageFormat,
		core1_0.ImageTilingOptimal,
		core1_0.ImageUsageTransientAttachment|core1_0.ImageUsageColorAttachment,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return err
	}

	r.colorImageView, err = r.createImageView(
		r.colorImage,
		r.swapchainImageFormat,
		core1_0.ImageAspectColor,
		1)
	return err
}

func (r *Renderer) createDepthResources() error {
	depthFormat, err := r.findDepthFormat()
	if err != nil {
		return err
	}

	r.depthImage, r.depthImageMemory, err = r.createImage(r.swapchainExtent.Width,
		r.swapchainExtent.Height,
		1,
		r.msaaSamples,
		depthFormat,
		core1_0.ImageTilingOptimal,
		core1_0.ImageUsageDepthStencilAttachment,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return err
	}
	r.depthImageView, err = r.createImageView(r.depthImage, depthFormat, core1_0.ImageAspectDepth, 1)
	return err
}

func (r *Renderer) findSupportedFormat(formats []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := r.instanceDriver.GetPhysicalDeviceFormatProperties(r.physicalDevice, format)

		if tiling == core1_0.ImageTilingLinear && (props.LinearTilingFeatures&features) == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && (props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return 0, errors.Newf("no supported format for tiling %s, featureset %s", tiling, features)
}

func (r *Renderer) findDepthFormat() (core1_0.Format, error) {
	return r.findSupportedFormat([]core1_0.Format{
		core1_0.FormatD32SignedFloat,
		core1_0.FormatD32SignedFloatS8UnsignedInt,
		core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
	},
		core1_0.ImageTilingOptimal,
		core1_0.FormatFeatureDepthStencilAttachment)
}

// cleanupSwapchain releases every surface-dependent resource, leaf resources
// first so no handle is destroyed while another still references it.
func (r *Renderer) cleanupSwapchain() {
	if r.deviceDriver == nil {
		return
	}

	if r.colorImageView.Initialized() {
		r.deviceDriver.DestroyImageView(r.colorImageView, nil)
		r.colorImageView = core1_0.ImageView{}
	}
	if r.colorImage.Initialized() {
		r.deviceDriver.DestroyImage(r.colorImage, nil)
		r.colorImage = core1_0.Image{}
	}
	if r.colorImageMemory.Initialized() {
		r.deviceDriver.FreeMemory(r.colorImageMemory, nil)
		r.colorImageMemory = core1_0.DeviceMemory{}
	}

	if r.depthImageView.Initialized() {
		r.deviceDriver.DestroyImageView(r.depthImageView, nil)
		r.depthImageView = core1_0.ImageView{}
	}
	if r.depthImage.Initialized() {
		r.deviceDriver.DestroyImage(r.depthImage, nil)
		r.depthImage = core1_0.Image{}
	}
	if r.depthImageMemory.Initialized() {
		r.deviceDriver.FreeMemory(r.depthImageMemory, nil)
		r.depthImageMemory = core1_0.DeviceMemory{}
	}

	for _, framebuffer := range r.swapchainFramebuffers {
		r.deviceDriver.DestroyFramebuffer(framebuffer, nil)
	}
	r.swapchainFramebuffers = nil

	if len(r.commandBuffers) > 0 {
		r.deviceDriver.FreeCommandBuffers(r.commandBuffers...)
		r.commandBuffers = nil
	}

	if r.graphicsPipeline.Initialized() {
		r.deviceDriver.DestroyPipeline(r.graphicsPipeline, nil)
		r.graphicsPipeline = core1_0.Pipeline{}
	}
	if r.pipelineLayout.Initialized() {
		r.deviceDriver.DestroyPipelineLayout(r.pipelineLayout, nil)
		r.pipelineLayout = core1_0.PipelineLayout{}
	}
	if r.renderPass.Initialized() {
		r.deviceDriver.DestroyRenderPass(r.renderPass, nil)
		r.renderPass = core1_0.RenderPass{}
	}

	for _, imageView := range r.swapchainImageViews {
		r.deviceDriver.DestroyImageView(imageView, nil)
	}
	r.swapchainImageViews = nil

	if r.swapchain.Initialized() {
		r.swapchainExtension.DestroySwapchain(r.swapchain, nil)
		r.swapchain = khr_swapchain.Swapchain{}
	}

	for i := 0; i < len(r.uniformBuffers); i++ {
		r.deviceDriver.DestroyBuffer(r.uniformBuffers[i], nil)
	}
	r.uniformBuffers = r.uniformBuffers[:0]

	for i := 0; i < len(r.uniformBuffersMemory); i++ {
		r.deviceDriver.FreeMemory(r.uniformBuffersMemory[i], nil)
	}
	r.uniformBuffersMemory = r.uniformBuffersMemory[:0]

	if r.descriptorPool.Initialized() {
		r.deviceDriver.DestroyDescriptorPool(r.descriptorPool, nil)
		r.descriptorPool = core1_0.DescriptorPool{}
	}
}
