// Package render is the Vulkan backend behind the cadence frame scheduler.
// It owns every GPU handle in the process: instance, device, swapchain,
// pipeline, the uploaded model and texture, and the per-slot synchronization
// primitives the scheduler drives through its interfaces.
package render

import (
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

// Renderer holds the full Vulkan object graph for the rotating-model scene.
// It implements cadence.Device, cadence.Swapchain, cadence.SurfaceResources
// and cadence.Platform; see frame.go.
type Renderer struct {
	cfg    Config
	window *sdl.Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver      ext_debug_utils.ExtensionDriver
	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	swapchainExtension    khr_swapchain.ExtensionDriver
	swapchain             khr_swapchain.Swapchain
	swapchainImages       []core1_0.Image
	swapchainImageFormat  core1_0.Format
	swapchainExtent       core1_0.Extent2D
	swapchainImageViews   []core1_0.ImageView
	swapchainFramebuffers []core1_0.Framebuffer

	renderPass          core1_0.RenderPass
	descriptorPool      core1_0.DescriptorPool
	descriptorSets      []core1_0.DescriptorSet
	descriptorSetLayout core1_0.DescriptorSetLayout
	pipelineCache       core1_0.PipelineCache
	pipelineLayout      core1_0.PipelineLayout
	graphicsPipeline    core1_0.Pipeline

	commandPool          core1_0.CommandPool
	transientCommandPool core1_0.CommandPool
	commandBuffers       []core1_0.CommandBuffer

	imageAvailableSemaphores []core1_0.Semaphore
	renderFinishedSemaphores []core1_0.Semaphore
	inFlightFences           []core1_0.Fence
	imagesInFlight           []core1_0.Fence

	vertices           []Vertex
	indices            []uint32
	vertexBuffer       core1_0.Buffer
	vertexBufferMemory core1_0.DeviceMemory
	indexBuffer        core1_0.Buffer
	indexBufferMemory  core1_0.DeviceMemory

	uniformBuffers       []core1_0.Buffer
	uniformBuffersMemory []core1_0.DeviceMemory

	mipLevels          int
	textureImage       core1_0.Image
	textureImageMemory core1_0.DeviceMemory
	textureImageView   core1_0.ImageView
	textureSampler     core1_0.Sampler

	depthImage       core1_0.Image
	depthImageMemory core1_0.DeviceMemory
	depthImageView   core1_0.ImageView

	msaaSamples      core1_0.SampleCountFlags
	colorImage       core1_0.Image
	colorImageMemory core1_0.DeviceMemory
	colorImageView   core1_0.ImageView
}

// New builds the complete renderer against an SDL window created with the
// WINDOW_VULKAN flag. On error the partially constructed object graph is
// released before returning.
func New(window *sdl.Window, cfg Config) (*Renderer, error) {
	r := &Renderer{
		cfg:         cfg.withDefaults(),
		window:      window,
		msaaSamples: core1_0.Samples1,
	}

	var err error
	r.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "loading the Vulkan driver")
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"creating instance", r.createInstance},
		{"setting up debug messenger", r.setupDebugMessenger},
		{"creating surface", r.createSurface},
		{"picking physical device", r.pickPhysicalDevice},
		{"creating logical device", r.createLogicalDevice},
		{"creating swapchain", r.createSwapchain},
		{"creating swapchain image views", r.createImageViews},
		{"creating render pass", r.createRenderPass},
		{"creating descriptor set layout", r.createDescriptorSetLayout},
		{"loading pipeline cache", r.loadPipelineCache},
		{"creating graphics pipeline", r.createGraphicsPipeline},
		{"creating command pools", r.createCommandPools},
		{"creating color resources", r.createColorResources},
		{"creating depth resources", r.createDepthResources},
		{"creating framebuffers", r.createFramebuffers},
		{"uploading texture", r.createTextureImage},
		{"creating texture view", r.createTextureImageView},
		{"creating sampler", r.createSampler},
		{"loading model", r.loadModel},
		{"creating vertex buffer", r.createVertexBuffer},
		{"creating index buffer", r.createIndexBuffer},
		{"creating uniform buffers", r.createUniformBuffers},
		{"creating descriptor pool", r.createDescriptorPool},
		{"creating descriptor sets", r.createDescriptorSets},
		{"recording command buffers", r.createCommandBuffers},
		{"creating sync objects", r.createSyncObjects},
	}

	for _, step := range steps {
		log.Debug(step.name)
		if err := step.fn(); err != nil {
			r.Close()
			return nil, errors.Wrap(err, step.name)
		}
	}

	log.WithFields(log.Fields{
		"extent": r.swapchainExtent,
		"images": len(r.swapchainImages),
		"frames": r.cfg.FramesInFlight,
	}).Info("renderer ready")

	return r, nil
}

// Close drains the device and releases every Vulkan object the renderer
// owns: swapchain-dependent resources first, device and instance last. Safe
// to call on a partially built renderer.
func (r *Renderer) Close() {
	if r.deviceDriver != nil {
		_, _ = r.deviceDriver.DeviceWaitIdle()
	}

	r.cleanupSwapchain()

	if r.deviceDriver != nil {
		if r.pipelineCache.Initialized() {
			r.savePipelineCache()
			r.deviceDriver.DestroyPipelineCache(r.pipelineCache, nil)
			r.pipelineCache = core1_0.PipelineCache{}
		}

		if r.textureSampler.Initialized() {
			r.deviceDriver.DestroySampler(r.textureSampler, nil)
		}
		if r.textureImageView.Initialized() {
			r.deviceDriver.DestroyImageView(r.textureImageView, nil)
		}
		if r.textureImage.Initialized() {
			r.deviceDriver.DestroyImage(r.textureImage, nil)
		}
		if r.textureImageMemory.Initialized() {
			r.deviceDriver.FreeMemory(r.textureImageMemory, nil)
		}

		if r.descriptorSetLayout.Initialized() {
			r.deviceDriver.DestroyDescriptorSetLayout(r.descriptorSetLayout, nil)
		}

		if r.indexBuffer.Initialized() {
			r.deviceDriver.DestroyBuffer(r.indexBuffer, nil)
		}
		if r.indexBufferMemory.Initialized() {
			r.deviceDriver.FreeMemory(r.indexBufferMemory, nil)
		}
		if r.vertexBuffer.Initialized() {
			r.deviceDriver.DestroyBuffer(r.vertexBuffer, nil)
		}
		if r.vertexBufferMemory.Initialized() {
			r.deviceDriver.FreeMemory(r.vertexBufferMemory, nil)
		}

		for _, fence := range r.inFlightFences {
			r.deviceDriver.DestroyFence(fence, nil)
		}
		for _, semaphore := range r.renderFinishedSemaphores {
			r.deviceDriver.DestroySemaphore(semaphore, nil)
		}
		for _, semaphore := range r.imageAvailableSemaphores {
			r.deviceDriver.DestroySemaphore(semaphore, nil)
		}
		r.inFlightFences = nil
		r.renderFinishedSemaphores = nil
		r.imageAvailableSemaphores = nil

		if r.transientCommandPool.Initialized() {
			r.deviceDriver.DestroyCommandPool(r.transientCommandPool, nil)
		}
		if r.commandPool.Initialized() {
			r.deviceDriver.DestroyCommandPool(r.commandPool, nil)
		}

		r.deviceDriver.DestroyDevice(nil)
		r.deviceDriver = nil
	}

	if r.instanceDriver != nil {
		if r.debugMessenger.Initialized() {
			r.debugDriver.DestroyDebugUtilsMessenger(r.debugMessenger, nil)
		}
		if r.surface.Initialized() {
			r.surfaceExtension.DestroySurface(r.surface, nil)
		}
		r.instanceDriver.DestroyInstance(nil)
		r.instanceDriver = nil
	}
}
