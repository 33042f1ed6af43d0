package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type VulkanRenderPass struct {
	Handle vk.RenderPass
}

// CreateRenderPass builds a single subpass pass. Every color attachment is
// written by the subpass; at most one depth attachment is allowed.
func (vb *VulkanBackend) CreateRenderPass(d metadata.RenderPassDescription) (metadata.RenderPassHandle, error) {
	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, len(d.Attachments))
	var colorReferences []vk.AttachmentReference
	var depthReference *vk.AttachmentReference
	for i, a := range d.Attachments {
		format, err := vulkanFormat(a.Format)
		if err != nil {
			return metadata.InvalidHandle, err
		}
		attachment := vk.AttachmentDescription{
			Format:         format,
			Samples:        sampleCount(a.Samples),
			LoadOp:         loadOp(a.Load),
			StoreOp:        storeOp(a.Store),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined, // Do not expect any particular layout before render pass starts.
			FinalLayout:    finalLayout(a.FinalLayout),
		}
		if a.Load == metadata.LoadOpLoad {
			attachment.InitialLayout = finalLayout(a.FinalLayout)
		}
		attachment.Deref()
		attachmentDescriptions[i] = attachment

		if a.Format.IsDepth() {
			if depthReference != nil {
				return metadata.InvalidHandle, fmt.Errorf("render pass with more than one depth attachment: %w", core.ErrInvalidConfiguration)
			}
			depthReference = &vk.AttachmentReference{
				Attachment: uint32(i),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
			depthReference.Deref()
			continue
		}
		colorReferences = append(colorReferences, vk.AttachmentReference{
			Attachment: uint32(i), // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	subpass.ColorAttachmentCount = uint32(len(colorReferences))
	subpass.PColorAttachments = colorReferences
	subpass.PDepthStencilAttachment = depthReference
	subpass.Deref()

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}
	dependency.Deref()

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	renderpassCreateInfo.Deref()

	pass := &VulkanRenderPass{}
	if err := vb.locks.SafeCall(RenderpassManagement, func() error {
		return resultError("vkCreateRenderPass",
			vk.CreateRenderPass(vb.context.LogicalDevice, &renderpassCreateInfo, vb.context.Allocator, &pass.Handle))
	}); err != nil {
		return metadata.InvalidHandle, err
	}
	return metadata.RenderPassHandle(vb.acquire(pass)), nil
}

func (vb *VulkanBackend) DestroyRenderPass(h metadata.RenderPassHandle) error {
	pass, err := lookup[*VulkanRenderPass](vb, uint64(h), "render pass")
	if err != nil {
		return err
	}
	vb.locks.SafeCall(RenderpassManagement, func() error {
		vk.DestroyRenderPass(vb.context.LogicalDevice, pass.Handle, vb.context.Allocator)
		return nil
	})
	return vb.release(uint64(h))
}
