// Package vulkan implements the renderer backend on top of a Vulkan device
// owned by the host application. Objects are created on that device and
// handed out as opaque handles.
package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type VulkanBackend struct {
	context *VulkanContext
	locks   *VulkanLockPool
	limits  metadata.Limits

	mu  sync.Mutex
	ids *core.IdentifierPool

	// commandBuffer is the frame's command buffer descriptor sets are bound
	// into. The host sets it before binding.
	commandBuffer vk.CommandBuffer
}

// New wraps the device of context. The device must have the descriptor
// indexing features bindless tables rely on enabled.
func New(context *VulkanContext) (*VulkanBackend, error) {
	if err := context.validate(); err != nil {
		return nil, err
	}
	vb := &VulkanBackend{
		context: context,
		locks:   NewVulkanLockPool(),
		limits:  context.Limits(),
		ids:     core.NewIdentifierPool(64),
	}
	core.LogInfo("vulkan backend ready: %d sampled images, %dpx textures", vb.limits.MaxSampledImages, vb.limits.MaxTextureDimension)
	return vb, nil
}

func (vb *VulkanBackend) Limits() metadata.Limits {
	return vb.limits
}

// SetCommandBuffer selects the command buffer BindDescriptorSet records
// into, usually once per frame.
func (vb *VulkanBackend) SetCommandBuffer(cb vk.CommandBuffer) {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	vb.commandBuffer = cb
}

// Live is the number of objects the backend still holds.
func (vb *VulkanBackend) Live() int {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.ids.Len()
}

// WaitIdle blocks until the device finished all submitted work.
func (vb *VulkanBackend) WaitIdle() error {
	return vb.locks.SafeQueueCall(func() error {
		return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(vb.context.LogicalDevice))
	})
}

// handles are ids shifted by one so that zero stays invalid
func (vb *VulkanBackend) acquire(owner interface{}) uint64 {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return uint64(vb.ids.Acquire(owner)) + 1
}

func (vb *VulkanBackend) release(h uint64) error {
	if h == metadata.InvalidHandle {
		return fmt.Errorf("release of the invalid handle: %w", core.ErrLogic)
	}
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.ids.Release(uint32(h - 1))
}

func lookup[T any](vb *VulkanBackend, h uint64, kind string) (T, error) {
	var zero T
	if h == metadata.InvalidHandle {
		return zero, fmt.Errorf("%s handle is invalid: %w", kind, core.ErrNotFound)
	}
	vb.mu.Lock()
	owner, ok := vb.ids.Owner(uint32(h - 1))
	vb.mu.Unlock()
	if !ok {
		return zero, fmt.Errorf("%s %d: %w", kind, h, core.ErrNotFound)
	}
	obj, ok := owner.(T)
	if !ok {
		return zero, fmt.Errorf("handle %d is not a %s: %w", h, kind, core.ErrLogic)
	}
	return obj, nil
}
