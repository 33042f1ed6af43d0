package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        context.CommandPool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return nil, resultError("vkAllocateCommandBuffers", res)
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext) {
	vk.FreeCommandBuffers(context.LogicalDevice, context.CommandPool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

// AllocateAndBeginSingleUse returns a command buffer recording one time
// work.
func AllocateAndBeginSingleUse(context *VulkanContext) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true); err != nil {
		cb.Free(context)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse submits the recorded work, waits on a fence for it to finish
// and frees the command buffer, whether the submission worked or not.
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, locks *VulkanLockPool) error {
	defer v.Free(context)

	if err := v.End(); err != nil {
		return err
	}

	fence, err := NewFence(context)
	if err != nil {
		return err
	}
	defer fence.Destroy(context)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}

	if err := locks.SafeQueueCall(func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(context.Queue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle))
	}); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
	return fence.Wait(context, fenceTimeout)
}

// singleUse records fn into a one time command buffer and runs it to
// completion.
func singleUse(context *VulkanContext, locks *VulkanLockPool, fn func(cb vk.CommandBuffer)) error {
	return locks.SafeCall(CommandBufferManagement, func() error {
		cb, err := AllocateAndBeginSingleUse(context)
		if err != nil {
			return err
		}
		fn(cb.Handle)
		return cb.EndSingleUse(context, locks)
	})
}
