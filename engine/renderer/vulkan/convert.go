package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

func vulkanFormat(f metadata.Format) (vk.Format, error) {
	switch f {
	case metadata.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm, nil
	case metadata.FormatRGBA8Srgb:
		return vk.FormatR8g8b8a8Srgb, nil
	case metadata.FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm, nil
	case metadata.FormatR8Unorm:
		return vk.FormatR8Unorm, nil
	case metadata.FormatRG8Unorm:
		return vk.FormatR8g8Unorm, nil
	case metadata.FormatRGBA16Float:
		return vk.FormatR16g16b16a16Sfloat, nil
	case metadata.FormatRGBA32Float:
		return vk.FormatR32g32b32a32Sfloat, nil
	case metadata.FormatDepth32Float:
		return vk.FormatD32Sfloat, nil
	case metadata.FormatR32Float:
		return vk.FormatR32Sfloat, nil
	case metadata.FormatRG32Float:
		return vk.FormatR32g32Sfloat, nil
	case metadata.FormatRGB32Float:
		return vk.FormatR32g32b32Sfloat, nil
	}
	return vk.FormatUndefined, fmt.Errorf("format %s has no vulkan equivalent: %w", f, core.ErrInvalidConfiguration)
}

func descriptorType(k metadata.DescriptorKind) vk.DescriptorType {
	switch k {
	case metadata.DescriptorKindSampler:
		return vk.DescriptorTypeSampler
	case metadata.DescriptorKindSampledImage:
		return vk.DescriptorTypeSampledImage
	case metadata.DescriptorKindStorageImage:
		return vk.DescriptorTypeStorageImage
	case metadata.DescriptorKindUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case metadata.DescriptorKindStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	default:
		return vk.DescriptorTypeCombinedImageSampler
	}
}

func shaderStageFlags(s metadata.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	if s&metadata.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if s&metadata.ShaderStageGeometry != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageGeometryBit)
	}
	if s&metadata.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	if s&metadata.ShaderStageCompute != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	}
	return flags
}

// shaderStageBit maps a single stage. Pipeline stages must name exactly one.
func shaderStageBit(s metadata.ShaderStage) (vk.ShaderStageFlagBits, error) {
	switch s {
	case metadata.ShaderStageVertex:
		return vk.ShaderStageVertexBit, nil
	case metadata.ShaderStageGeometry:
		return vk.ShaderStageGeometryBit, nil
	case metadata.ShaderStageFragment:
		return vk.ShaderStageFragmentBit, nil
	case metadata.ShaderStageCompute:
		return vk.ShaderStageComputeBit, nil
	}
	return 0, fmt.Errorf("shader stage %#x is not a single stage: %w", int(s), core.ErrInvalidConfiguration)
}

func bindingFlags(f metadata.BindingFlags) vk.DescriptorBindingFlags {
	var flags vk.DescriptorBindingFlags
	if f&metadata.BindingFlagPartiallyBound != 0 {
		flags |= vk.DescriptorBindingFlags(vk.DescriptorBindingPartiallyBoundBit)
	}
	if f&metadata.BindingFlagUpdateAfterBind != 0 {
		flags |= vk.DescriptorBindingFlags(vk.DescriptorBindingUpdateAfterBindBit)
	}
	if f&metadata.BindingFlagVariableCount != 0 {
		flags |= vk.DescriptorBindingFlags(vk.DescriptorBindingVariableDescriptorCountBit)
	}
	return flags
}

func descriptorPoolFlags(f metadata.DescriptorPoolFlags) vk.DescriptorPoolCreateFlags {
	var flags vk.DescriptorPoolCreateFlags
	if f&metadata.DescriptorPoolFlagFreeSets != 0 {
		flags |= vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit)
	}
	if f&metadata.DescriptorPoolFlagUpdateAfterBind != 0 {
		flags |= vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit)
	}
	return flags
}

func filter(f metadata.TextureFilter) vk.Filter {
	if f == metadata.TextureFilterModeNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func mipmapMode(f metadata.TextureFilter) vk.SamplerMipmapMode {
	if f == metadata.TextureFilterModeNearest {
		return vk.SamplerMipmapModeNearest
	}
	return vk.SamplerMipmapModeLinear
}

func addressMode(r metadata.TextureRepeat) vk.SamplerAddressMode {
	switch r {
	case metadata.TextureRepeatMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case metadata.TextureRepeatClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case metadata.TextureRepeatClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	default:
		return vk.SamplerAddressModeRepeat
	}
}

func cullMode(c metadata.FaceCullMode) vk.CullModeFlags {
	switch c {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

func topology(t metadata.PrimitiveTopology) vk.PrimitiveTopology {
	switch t {
	case metadata.PrimitiveTopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.PrimitiveTopologyLineList:
		return vk.PrimitiveTopologyLineList
	case metadata.PrimitiveTopologyPointList:
		return vk.PrimitiveTopologyPointList
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func loadOp(op metadata.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case metadata.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	case metadata.LoadOpClear:
		return vk.AttachmentLoadOpClear
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func storeOp(op metadata.StoreOp) vk.AttachmentStoreOp {
	if op == metadata.StoreOpStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func finalLayout(l metadata.FinalLayout) vk.ImageLayout {
	switch l {
	case metadata.FinalLayoutDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case metadata.FinalLayoutShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case metadata.FinalLayoutPresent:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutColorAttachmentOptimal
	}
}

func sampleCount(samples uint32) vk.SampleCountFlagBits {
	switch samples {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	default:
		return vk.SampleCount1Bit
	}
}

func bindPoint(p metadata.BindPoint) vk.PipelineBindPoint {
	if p == metadata.BindPointCompute {
		return vk.PipelineBindPointCompute
	}
	return vk.PipelineBindPointGraphics
}
