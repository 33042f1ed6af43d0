package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// VulkanImage is a sampled texture. Outside of uploads and blits every level
// is kept in the shader read layout.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Shape  metadata.TextureShape
	Label  string
}

func (vb *VulkanBackend) CreateTexture(shape metadata.TextureShape, label string) (metadata.TextureHandle, error) {
	if err := shape.Validate(); err != nil {
		return metadata.InvalidHandle, fmt.Errorf("create texture %q: %w", label, err)
	}
	if shape.Width > vb.limits.MaxTextureDimension || shape.Height > vb.limits.MaxTextureDimension || shape.Layers > vb.limits.MaxTextureLayers {
		return metadata.InvalidHandle, fmt.Errorf("texture %q of %s exceeds device limits: %w", label, shape, core.ErrResourceExhausted)
	}
	format, err := vulkanFormat(shape.Format)
	if err != nil {
		return metadata.InvalidHandle, err
	}

	image := &VulkanImage{Format: format, Shape: shape, Label: label}
	if err := vb.locks.SafeCall(ImageManagement, func() error {
		return image.create(vb.context)
	}); err != nil {
		image.destroy(vb.context)
		return metadata.InvalidHandle, fmt.Errorf("create texture %q: %w", label, err)
	}

	// Start every level readable so partially filled textures can be bound.
	if err := singleUse(vb.context, vb.locks, func(cb vk.CommandBuffer) {
		image.transition(cb, vk.ImageLayoutUndefined, vk.ImageLayoutShaderReadOnlyOptimal, 0, shape.MipLevels)
	}); err != nil {
		image.destroy(vb.context)
		return metadata.InvalidHandle, err
	}

	core.LogDebug("texture %q created: %s", label, shape)
	return metadata.TextureHandle(vb.acquire(image)), nil
}

func (vb *VulkanBackend) DestroyTexture(h metadata.TextureHandle) error {
	image, err := lookup[*VulkanImage](vb, uint64(h), "texture")
	if err != nil {
		return err
	}
	vb.locks.SafeCall(ImageManagement, func() error {
		image.destroy(vb.context)
		return nil
	})
	return vb.release(uint64(h))
}

// UploadTexture copies pixels into region through a staging buffer and
// waits for the copy to finish.
func (vb *VulkanBackend) UploadTexture(h metadata.TextureHandle, region metadata.Region, pixels []byte) error {
	image, err := lookup[*VulkanImage](vb, uint64(h), "texture")
	if err != nil {
		return err
	}
	if !region.Within(image.Shape) {
		return fmt.Errorf("region %+v outside texture %s: %w", region, image.Shape, core.ErrPreconditionViolation)
	}
	if len(pixels) != region.ByteSize(image.Shape.Format) {
		return fmt.Errorf("upload of %d bytes into a region of %d: %w", len(pixels), region.ByteSize(image.Shape.Format), core.ErrPreconditionViolation)
	}

	staging, err := NewStagingBuffer(vb.context, uint64(len(pixels)))
	if err != nil {
		return err
	}
	defer staging.Destroy(vb.context)
	if err := staging.LoadData(vb.context, pixels); err != nil {
		return err
	}

	copyRegion := vk.BufferImageCopy{
		BufferOffset: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     image.aspect(),
			MipLevel:       region.MipLevel,
			BaseArrayLayer: region.Layer,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(region.X), Y: int32(region.Y), Z: 0},
		ImageExtent: vk.Extent3D{Width: region.Width, Height: region.Height, Depth: 1},
	}
	copyRegion.Deref()

	return singleUse(vb.context, vb.locks, func(cb vk.CommandBuffer) {
		image.transition(cb, vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutTransferDstOptimal, region.MipLevel, 1)
		vk.CmdCopyBufferToImage(cb, staging.Handle, image.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{copyRegion})
		image.transition(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal, region.MipLevel, 1)
	})
}

// GenerateMipmaps fills each level of levels with a linear blit of the level
// before it, in order, so a level is complete before it is read.
func (vb *VulkanBackend) GenerateMipmaps(h metadata.TextureHandle, levels metadata.LevelRange) error {
	image, err := lookup[*VulkanImage](vb, uint64(h), "texture")
	if err != nil {
		return err
	}
	if !levels.Within(image.Shape) {
		return fmt.Errorf("levels %+v outside texture %s: %w", levels, image.Shape, core.ErrPreconditionViolation)
	}

	return singleUse(vb.context, vb.locks, func(cb vk.CommandBuffer) {
		for mip := levels.Base; mip < levels.Base+levels.Count; mip++ {
			srcW, srcH := image.Shape.LevelExtent(mip - 1)
			dstW, dstH := image.Shape.LevelExtent(mip)

			image.transition(cb, vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutTransferSrcOptimal, mip-1, 1)
			image.transition(cb, vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutTransferDstOptimal, mip, 1)

			blit := vk.ImageBlit{
				SrcSubresource: vk.ImageSubresourceLayers{
					AspectMask: image.aspect(),
					MipLevel:   mip - 1,
					LayerCount: image.Shape.Layers,
				},
				SrcOffsets: [2]vk.Offset3D{{}, {X: int32(srcW), Y: int32(srcH), Z: 1}},
				DstSubresource: vk.ImageSubresourceLayers{
					AspectMask: image.aspect(),
					MipLevel:   mip,
					LayerCount: image.Shape.Layers,
				},
				DstOffsets: [2]vk.Offset3D{{}, {X: int32(dstW), Y: int32(dstH), Z: 1}},
			}
			blit.Deref()
			vk.CmdBlitImage(cb,
				image.Handle, vk.ImageLayoutTransferSrcOptimal,
				image.Handle, vk.ImageLayoutTransferDstOptimal,
				1, []vk.ImageBlit{blit}, vk.FilterLinear)

			image.transition(cb, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal, mip-1, 1)
			image.transition(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal, mip, 1)
		}
	})
}

func (image *VulkanImage) create(context *VulkanContext) error {
	usage := vk.ImageUsageFlags(vk.ImageUsageSampledBit) |
		vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit) |
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    image.Format,
		Extent: vk.Extent3D{
			Width:  image.Shape.Width,
			Height: image.Shape.Height,
			Depth:  1,
		},
		MipLevels:     image.Shape.MipLevels,
		ArrayLayers:   image.Shape.Layers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	imageCreateInfo.Deref()

	if res := vk.CreateImage(context.LogicalDevice, &imageCreateInfo, context.Allocator, &image.Handle); res != vk.Success {
		return resultError("vkCreateImage", res)
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.LogicalDevice, image.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryType == -1 {
		return fmt.Errorf("required memory type not found, image not valid: %w", core.ErrResourceExhausted)
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if res := vk.AllocateMemory(context.LogicalDevice, &memoryAllocateInfo, context.Allocator, &image.Memory); res != vk.Success {
		return resultError("vkAllocateMemory", res)
	}
	if res := vk.BindImageMemory(context.LogicalDevice, image.Handle, image.Memory, 0); res != vk.Success {
		return resultError("vkBindImageMemory", res)
	}

	viewType := vk.ImageViewType2d
	if image.Shape.Layers > 1 {
		viewType = vk.ImageViewType2dArray
	}
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: viewType,
		Format:   image.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     image.aspect(),
			BaseMipLevel:   0,
			LevelCount:     image.Shape.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     image.Shape.Layers,
		},
	}
	viewCreateInfo.Deref()

	if res := vk.CreateImageView(context.LogicalDevice, &viewCreateInfo, context.Allocator, &image.View); res != vk.Success {
		return resultError("vkCreateImageView", res)
	}
	return nil
}

func (image *VulkanImage) destroy(context *VulkanContext) {
	if image.View != nil {
		vk.DestroyImageView(context.LogicalDevice, image.View, context.Allocator)
		image.View = nil
	}
	if image.Memory != nil {
		vk.FreeMemory(context.LogicalDevice, image.Memory, context.Allocator)
		image.Memory = nil
	}
	if image.Handle != nil {
		vk.DestroyImage(context.LogicalDevice, image.Handle, context.Allocator)
		image.Handle = nil
	}
}

func (image *VulkanImage) aspect() vk.ImageAspectFlags {
	if image.Shape.Format.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// transition records a layout change of count levels starting at base, on
// every layer.
func (image *VulkanImage) transition(cb vk.CommandBuffer, from, to vk.ImageLayout, base, count uint32) {
	srcAccess, srcStage := layoutAccess(from)
	dstAccess, dstStage := layoutAccess(to)

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     image.aspect(),
			BaseMipLevel:   base,
			LevelCount:     count,
			BaseArrayLayer: 0,
			LayerCount:     image.Shape.Layers,
		},
	}
	barrier.Deref()

	vk.CmdPipelineBarrier(cb, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// layoutAccess is the access and stage that touch an image in layout.
func layoutAccess(layout vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch layout {
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit) | vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	default:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}
