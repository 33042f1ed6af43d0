package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// VulkanContext is the device the host application created. The backend
// borrows it and never destroys any of it.
type VulkanContext struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Allocator      *vk.AllocationCallbacks

	// Queue runs uploads and mipmap blits. It must support graphics.
	Queue            vk.Queue
	QueueFamilyIndex uint32
	// CommandPool belongs to QueueFamilyIndex and is used for single use
	// command buffers.
	CommandPool vk.CommandPool
}

func (vc *VulkanContext) validate() error {
	if vc == nil || vc.LogicalDevice == nil || vc.PhysicalDevice == nil {
		return fmt.Errorf("vulkan context without a device: %w", core.ErrInvalidConfiguration)
	}
	if vc.Queue == nil || vc.CommandPool == nil {
		return fmt.Errorf("vulkan context without a queue or a command pool: %w", core.ErrInvalidConfiguration)
	}
	return nil
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// Limits reads the device limits that bound textures and bindless tables.
func (vc *VulkanContext) Limits() metadata.Limits {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(vc.PhysicalDevice, &properties)
	properties.Deref()
	properties.Limits.Deref()

	return metadata.Limits{
		MaxSampledImages:    properties.Limits.MaxDescriptorSetSampledImages,
		MaxTextureDimension: properties.Limits.MaxImageDimension2D,
		MaxTextureLayers:    properties.Limits.MaxImageArrayLayers,
	}
}
