package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
)

// VulkanBuffer is a host visible buffer used to stage uploads.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
}

func NewStagingBuffer(context *VulkanContext, size uint64) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{Size: size}
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(context.LogicalDevice, &createInfo, context.Allocator, &buffer.Handle); res != vk.Success {
		return nil, resultError("vkCreateBuffer", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.LogicalDevice, buffer.Handle, &requirements)
	requirements.Deref()

	memoryType := context.FindMemoryIndex(requirements.MemoryTypeBits,
		uint32(vk.MemoryPropertyHostVisibleBit)|uint32(vk.MemoryPropertyHostCoherentBit))
	if memoryType == -1 {
		buffer.Destroy(context)
		return nil, fmt.Errorf("no host visible memory for a staging buffer: %w", core.ErrResourceExhausted)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if res := vk.AllocateMemory(context.LogicalDevice, &allocateInfo, context.Allocator, &buffer.Memory); res != vk.Success {
		buffer.Destroy(context)
		return nil, resultError("vkAllocateMemory", res)
	}
	if res := vk.BindBufferMemory(context.LogicalDevice, buffer.Handle, buffer.Memory, 0); res != vk.Success {
		buffer.Destroy(context)
		return nil, resultError("vkBindBufferMemory", res)
	}
	return buffer, nil
}

// LoadData copies data to the start of the buffer.
func (b *VulkanBuffer) LoadData(context *VulkanContext, data []byte) error {
	if uint64(len(data)) > b.Size {
		return fmt.Errorf("load of %d bytes into a buffer of %d: %w", len(data), b.Size, core.ErrLogic)
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.LogicalDevice, b.Memory, 0, vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		return resultError("vkMapMemory", res)
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.LogicalDevice, b.Memory)
	return nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Handle != nil {
		vk.DestroyBuffer(context.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(context.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = nil
	}
}
