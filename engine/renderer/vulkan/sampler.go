package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type VulkanSampler struct {
	Handle vk.Sampler
}

func (vb *VulkanBackend) CreateSampler(d metadata.SamplerDescription) (metadata.SamplerHandle, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter(d.FilterMagnify),
		MinFilter:               filter(d.FilterMinify),
		MipmapMode:              mipmapMode(d.FilterMip),
		AddressModeU:            addressMode(d.RepeatU),
		AddressModeV:            addressMode(d.RepeatV),
		AddressModeW:            addressMode(d.RepeatW),
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  d.MinLod,
		MaxLod:                  d.MaxLod,
	}
	if d.MaxAnisotropy > 1 {
		createInfo.AnisotropyEnable = vk.True
		createInfo.MaxAnisotropy = d.MaxAnisotropy
	}
	createInfo.Deref()

	sampler := &VulkanSampler{}
	if err := vb.locks.SafeCall(SamplerManagement, func() error {
		return resultError("vkCreateSampler",
			vk.CreateSampler(vb.context.LogicalDevice, &createInfo, vb.context.Allocator, &sampler.Handle))
	}); err != nil {
		return metadata.InvalidHandle, err
	}
	return metadata.SamplerHandle(vb.acquire(sampler)), nil
}

func (vb *VulkanBackend) DestroySampler(h metadata.SamplerHandle) error {
	sampler, err := lookup[*VulkanSampler](vb, uint64(h), "sampler")
	if err != nil {
		return err
	}
	vb.locks.SafeCall(SamplerManagement, func() error {
		vk.DestroySampler(vb.context.LogicalDevice, sampler.Handle, vb.context.Allocator)
		return nil
	})
	return vb.release(uint64(h))
}
