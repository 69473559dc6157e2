package render

import (
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
)

type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

func (r *Renderer) findQueueFamilies(device core1_0.PhysicalDevice) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}
	queueFamilies := r.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			indices.GraphicsFamily = new(int)
			*indices.GraphicsFamily = queueFamilyIdx
		}

		supported, _, err := r.surfaceExtension.GetPhysicalDeviceSurfaceSupport(r.surface, device, queueFamilyIdx)
		if err != nil {
			return indices, err
		}

		if supported {
			indices.PresentFamily = new(int)
			*indices.PresentFamily = queueFamilyIdx
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices, nil
}

func (r *Renderer) checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := r.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

func (r *Renderer) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	indices, err := r.findQueueFamilies(device)
	if err != nil {
		return false
	}

	extensionsSupported := r.checkDeviceExtensionSupport(device)

	var swapchainAdequate bool
	if extensionsSupported {
		swapchainSupport, err := r.querySwapchainSupport(device)
		if err != nil {
			return false
		}

		swapchainAdequate = len(swapchainSupport.Formats) > 0 && len(swapchainSupport.PresentModes) > 0
	}

	features := r.instanceDriver.GetPhysicalDeviceFeatures(device)
	return indices.IsComplete() && extensionsSupported && swapchainAdequate && features.SamplerAnisotropy
}

func (r *Renderer) pickPhysicalDevice() error {
	physicalDevices, _, err := r.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, device := range physicalDevices {
		if r.isDeviceSuitable(device) {
			r.physicalDevice = device
			r.msaaSamples, err = r.maxUsableSampleCount()
			if err != nil {
				return err
			}
			break
		}
	}

	if !r.physicalDevice.Initialized() {
		return errors.New("no suitable GPU found")
	}

	properties, err := r.instanceDriver.GetPhysicalDeviceProperties(r.physicalDevice)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"device":  properties.DeviceName,
		"samples": r.msaaSamples,
	}).Info("picked physical device")

	return nil
}

func (r *Renderer) createLogicalDevice() error {
	indices, err := r.findQueueFamilies(r.physicalDevice)
	if err != nil {
		return err
	}

	uniqueQueueFamilies := []int{*indices.GraphicsFamily}
	if uniqueQueueFamilies[0] != *indices.PresentFamily {
		uniqueQueueFamilies = append(uniqueQueueFamilies, *indices.PresentFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Required when running on top of a portability driver.
	extensions, _, err := r.instanceDriver.EnumerateDeviceExtensionProperties(r.physicalDevice)
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	r.deviceDriver, _, err = r.instanceDriver.CreateDevice(r.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	r.graphicsQueue = r.deviceDriver.GetQueue(*indices.GraphicsFamily, 0)
	r.presentQueue = r.deviceDriver.GetQueue(*indices.PresentFamily, 0)
	return nil
}

func (r *Renderer) maxUsableSampleCount() (core1_0.SampleCountFlags, error) {
	properties, err := r.instanceDriver.GetPhysicalDeviceProperties(r.physicalDevice)
	if err != nil {
		return 0, err
	}

	counts := properties.Limits.FramebufferColorSampleCounts & properties.Limits.FramebufferDepthSampleCounts

	for _, samples := range []core1_0.SampleCountFlags{
		core1_0.Samples64, core1_0.Samples32, core1_0.Samples16,
		core1_0.Samples8, core1_0.Samples4, core1_0.Samples2,
	} {
		if (counts & samples) != 0 {
			return samples, nil
		}
	}
	return core1_0.Samples1, nil
}

func (r *Renderer) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := r.instanceDriver.GetPhysicalDeviceMemoryProperties(r.physicalDevice)
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.New("no suitable memory type available")
}
