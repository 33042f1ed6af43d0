package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type VulkanDescriptorSetLayout struct {
	Handle vk.DescriptorSetLayout
}

type VulkanDescriptorPool struct {
	Handle vk.DescriptorPool
	Flags  metadata.DescriptorPoolFlags
	// sets allocated from the pool and not freed yet
	sets map[metadata.DescriptorSetHandle]struct{}
}

type VulkanDescriptorSet struct {
	Handle vk.DescriptorSet
	Pool   metadata.DescriptorPoolHandle
}

func (vb *VulkanBackend) CreateDescriptorSetLayout(d metadata.DescriptorSetLayoutDescription) (metadata.DescriptorSetLayoutHandle, error) {
	for _, binding := range d.Bindings {
		if binding.Kind == metadata.DescriptorKindCombinedImageSampler && binding.Count > vb.limits.MaxSampledImages {
			return metadata.InvalidHandle, fmt.Errorf("binding %d holds %d images, limit is %d: %w",
				binding.Binding, binding.Count, vb.limits.MaxSampledImages, core.ErrResourceExhausted)
		}
	}

	bindings := make([]vk.DescriptorSetLayoutBinding, len(d.Bindings))
	flags := make([]vk.DescriptorBindingFlags, len(d.Bindings))
	for i, b := range d.Bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorType(b.Kind),
			DescriptorCount: b.Count,
			StageFlags:      shaderStageFlags(b.Stages),
		}
		bindings[i].Deref()
		flags[i] = bindingFlags(b.Flags)
	}

	flagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  uint32(len(flags)),
		PBindingFlags: flags,
	}
	flagsRef, _ := flagsInfo.PassRef()

	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        unsafe.Pointer(flagsRef),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if d.Flags&metadata.LayoutFlagUpdateAfterBindPool != 0 {
		createInfo.Flags = vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBit)
	}
	createInfo.Deref()

	layout := &VulkanDescriptorSetLayout{}
	if err := vb.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkCreateDescriptorSetLayout",
			vk.CreateDescriptorSetLayout(vb.context.LogicalDevice, &createInfo, vb.context.Allocator, &layout.Handle))
	}); err != nil {
		return metadata.InvalidHandle, err
	}
	return metadata.DescriptorSetLayoutHandle(vb.acquire(layout)), nil
}

func (vb *VulkanBackend) DestroyDescriptorSetLayout(h metadata.DescriptorSetLayoutHandle) error {
	layout, err := lookup[*VulkanDescriptorSetLayout](vb, uint64(h), "descriptor set layout")
	if err != nil {
		return err
	}
	vb.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorSetLayout(vb.context.LogicalDevice, layout.Handle, vb.context.Allocator)
		return nil
	})
	return vb.release(uint64(h))
}

func (vb *VulkanBackend) CreateDescriptorPool(d metadata.DescriptorPoolDescription) (metadata.DescriptorPoolHandle, error) {
	sizes := make([]vk.DescriptorPoolSize, len(d.Sizes))
	for i, s := range d.Sizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            descriptorType(s.Kind),
			DescriptorCount: s.Count,
		}
		sizes[i].Deref()
	}

	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         descriptorPoolFlags(d.Flags),
		MaxSets:       d.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	createInfo.Deref()

	pool := &VulkanDescriptorPool{Flags: d.Flags, sets: make(map[metadata.DescriptorSetHandle]struct{})}
	if err := vb.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkCreateDescriptorPool",
			vk.CreateDescriptorPool(vb.context.LogicalDevice, &createInfo, vb.context.Allocator, &pool.Handle))
	}); err != nil {
		return metadata.InvalidHandle, err
	}
	return metadata.DescriptorPoolHandle(vb.acquire(pool)), nil
}

// ResetDescriptorPool returns every set of the pool to it. The set handles
// allocated from it become invalid.
func (vb *VulkanBackend) ResetDescriptorPool(h metadata.DescriptorPoolHandle) error {
	pool, err := lookup[*VulkanDescriptorPool](vb, uint64(h), "descriptor pool")
	if err != nil {
		return err
	}
	if err := vb.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkResetDescriptorPool", vk.ResetDescriptorPool(vb.context.LogicalDevice, pool.Handle, 0))
	}); err != nil {
		return err
	}
	return vb.dropSets(pool)
}

func (vb *VulkanBackend) DestroyDescriptorPool(h metadata.DescriptorPoolHandle) error {
	pool, err := lookup[*VulkanDescriptorPool](vb, uint64(h), "descriptor pool")
	if err != nil {
		return err
	}
	vb.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorPool(vb.context.LogicalDevice, pool.Handle, vb.context.Allocator)
		return nil
	})
	if err := vb.dropSets(pool); err != nil {
		return err
	}
	return vb.release(uint64(h))
}

// dropSets releases the handles of every set that came from pool.
func (vb *VulkanBackend) dropSets(pool *VulkanDescriptorPool) error {
	for h := range pool.sets {
		if err := vb.release(uint64(h)); err != nil {
			return err
		}
	}
	clear(pool.sets)
	return nil
}

func (vb *VulkanBackend) AllocateDescriptorSet(pool metadata.DescriptorPoolHandle, layout metadata.DescriptorSetLayoutHandle) (metadata.DescriptorSetHandle, error) {
	p, err := lookup[*VulkanDescriptorPool](vb, uint64(pool), "descriptor pool")
	if err != nil {
		return metadata.InvalidHandle, err
	}
	l, err := lookup[*VulkanDescriptorSetLayout](vb, uint64(layout), "descriptor set layout")
	if err != nil {
		return metadata.InvalidHandle, err
	}

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l.Handle},
	}
	allocateInfo.Deref()

	set := &VulkanDescriptorSet{Pool: pool}
	if err := vb.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(vb.context.LogicalDevice, &allocateInfo, &set.Handle))
	}); err != nil {
		return metadata.InvalidHandle, err
	}
	h := metadata.DescriptorSetHandle(vb.acquire(set))
	p.sets[h] = struct{}{}
	return h, nil
}

func (vb *VulkanBackend) FreeDescriptorSet(pool metadata.DescriptorPoolHandle, h metadata.DescriptorSetHandle) error {
	p, err := lookup[*VulkanDescriptorPool](vb, uint64(pool), "descriptor pool")
	if err != nil {
		return err
	}
	if p.Flags&metadata.DescriptorPoolFlagFreeSets == 0 {
		return fmt.Errorf("pool %d does not allow freeing single sets: %w", pool, core.ErrLogic)
	}
	set, err := lookup[*VulkanDescriptorSet](vb, uint64(h), "descriptor set")
	if err != nil {
		return err
	}
	if set.Pool != pool {
		return fmt.Errorf("descriptor set %d does not belong to pool %d: %w", h, pool, core.ErrLogic)
	}
	if err := vb.locks.SafeCall(DescriptorManagement, func() error {
		return resultError("vkFreeDescriptorSets", vk.FreeDescriptorSets(vb.context.LogicalDevice, p.Handle, 1, &set.Handle))
	}); err != nil {
		return err
	}
	delete(p.sets, h)
	return vb.release(uint64(h))
}

// WriteTextureDescriptors points array elements of set at textures. All
// writes go to the device in one call.
func (vb *VulkanBackend) WriteTextureDescriptors(h metadata.DescriptorSetHandle, writes []metadata.DescriptorWrite) error {
	set, err := lookup[*VulkanDescriptorSet](vb, uint64(h), "descriptor set")
	if err != nil {
		return err
	}

	infos := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		image, err := lookup[*VulkanImage](vb, uint64(w.Texture), "texture")
		if err != nil {
			return err
		}
		sampler, err := lookup[*VulkanSampler](vb, uint64(w.Sampler), "sampler")
		if err != nil {
			return err
		}
		imageInfo := vk.DescriptorImageInfo{
			Sampler:     sampler.Handle,
			ImageView:   image.View,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}
		imageInfo.Deref()

		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.Handle,
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorCount: 1,
			DescriptorType:  descriptorType(w.Kind),
			PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
		}
		write.Deref()
		infos = append(infos, write)
	}

	return vb.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(vb.context.LogicalDevice, uint32(len(infos)), infos, 0, nil)
		return nil
	})
}

// BindDescriptorSet records the bind of set as set 0 of layout into the
// command buffer given to SetCommandBuffer.
func (vb *VulkanBackend) BindDescriptorSet(point metadata.BindPoint, layout metadata.PipelineLayoutHandle, h metadata.DescriptorSetHandle) error {
	vb.mu.Lock()
	cb := vb.commandBuffer
	vb.mu.Unlock()
	if cb == nil {
		return fmt.Errorf("bind without a command buffer: %w", core.ErrPreconditionViolation)
	}
	l, err := lookup[*VulkanPipelineLayout](vb, uint64(layout), "pipeline layout")
	if err != nil {
		return err
	}
	set, err := lookup[*VulkanDescriptorSet](vb, uint64(h), "descriptor set")
	if err != nil {
		return err
	}
	return vb.locks.SafeCall(CommandBufferManagement, func() error {
		vk.CmdBindDescriptorSets(cb, bindPoint(point), l.Handle, 0, 1, []vk.DescriptorSet{set.Handle}, 0, nil)
		return nil
	})
}
