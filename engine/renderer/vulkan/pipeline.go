package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type VulkanPipelineLayout struct {
	Handle vk.PipelineLayout
}

/**
 * @brief Holds a Vulkan pipeline. The layout it was built with is owned by
 * the cache, not by the pipeline.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
}

func (vb *VulkanBackend) CreatePipelineLayout(d metadata.PipelineLayoutDescription) (metadata.PipelineLayoutHandle, error) {
	setLayouts := make([]vk.DescriptorSetLayout, len(d.SetLayouts))
	for i, ref := range d.SetLayouts {
		if !ref.IsHandle() {
			return metadata.InvalidHandle, fmt.Errorf("pipeline layout set %d is not resolved: %w", i, core.ErrLogic)
		}
		l, err := lookup[*VulkanDescriptorSetLayout](vb, uint64(ref.Handle()), "descriptor set layout")
		if err != nil {
			return metadata.InvalidHandle, err
		}
		setLayouts[i] = l.Handle
	}

	// NOTE: 32 ranges is the most 128 bytes of 4-byte aligned push constants can hold.
	if len(d.PushConstants) > 32 {
		return metadata.InvalidHandle, fmt.Errorf("cannot have more than 32 push constant ranges, got %d: %w", len(d.PushConstants), core.ErrInvalidConfiguration)
	}
	ranges := make([]vk.PushConstantRange, len(d.PushConstants))
	for i, r := range d.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: shaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
		ranges[i].Deref()
	}

	createInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	createInfo.Deref()

	layout := &VulkanPipelineLayout{}
	if err := vb.locks.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreatePipelineLayout",
			vk.CreatePipelineLayout(vb.context.LogicalDevice, &createInfo, vb.context.Allocator, &layout.Handle))
	}); err != nil {
		return metadata.InvalidHandle, err
	}
	return metadata.PipelineLayoutHandle(vb.acquire(layout)), nil
}

func (vb *VulkanBackend) DestroyPipelineLayout(h metadata.PipelineLayoutHandle) error {
	layout, err := lookup[*VulkanPipelineLayout](vb, uint64(h), "pipeline layout")
	if err != nil {
		return err
	}
	vb.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineLayout(vb.context.LogicalDevice, layout.Handle, vb.context.Allocator)
		return nil
	})
	return vb.release(uint64(h))
}

// CreateGraphicsPipeline builds a pipeline with dynamic viewport and
// scissor. Every reference in d must already be a handle.
func (vb *VulkanBackend) CreateGraphicsPipeline(d metadata.GraphicsPipelineDescription) (metadata.PipelineHandle, error) {
	if !d.Layout.IsHandle() || !d.Pass.IsHandle() {
		return metadata.InvalidHandle, fmt.Errorf("pipeline with unresolved layout or render pass: %w", core.ErrLogic)
	}
	layout, err := lookup[*VulkanPipelineLayout](vb, uint64(d.Layout.Handle()), "pipeline layout")
	if err != nil {
		return metadata.InvalidHandle, err
	}
	pass, err := lookup[*VulkanRenderPass](vb, uint64(d.Pass.Handle()), "render pass")
	if err != nil {
		return metadata.InvalidHandle, err
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(d.Stages))
	for i, s := range d.Stages {
		if !s.Module.IsHandle() {
			return metadata.InvalidHandle, fmt.Errorf("pipeline stage %d is not resolved: %w", i, core.ErrLogic)
		}
		module, err := lookup[*VulkanShaderModule](vb, uint64(s.Module.Handle()), "shader module")
		if err != nil {
			return metadata.InvalidHandle, err
		}
		if stages[i], err = module.stage(s); err != nil {
			return metadata.InvalidHandle, err
		}
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(d.Attributes))
	for i, a := range d.Attributes {
		format, err := vulkanFormat(a.Format)
		if err != nil {
			return metadata.InvalidHandle, err
		}
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   format,
			Offset:   a.Offset,
		}
		attributes[i].Deref()
	}

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	viewportState.Deref()

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                cullMode(d.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if d.Wireframe {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}
	rasterizerCreateInfo.Deref()

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	multisamplingCreateInfo.Deref()

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if d.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
	}
	if d.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}
	depthStencil.Deref()

	colorBlendAttachmentState := blendState(d.Blend)
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}
	colorBlendStateCreateInfo.Deref()

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateLineWidth,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}
	dynamicStateCreateInfo.Deref()

	// Vertex input
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	if d.VertexStride > 0 {
		bindingDescription := vk.VertexInputBindingDescription{
			Binding:   0,
			Stride:    d.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}
		bindingDescription.Deref()
		vertexInputInfo.VertexBindingDescriptionCount = 1
		vertexInputInfo.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{bindingDescription}
	}
	vertexInputInfo.Deref()

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topology(d.Topology),
		PrimitiveRestartEnable: vk.False,
	}
	inputAssembly.Deref()

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              layout.Handle,
		RenderPass:          pass.Handle,
		Subpass:             d.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	pipelineCreateInfo.Deref()

	pPipelines := make([]vk.Pipeline, 1)
	if err := vb.locks.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			vb.context.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			vb.context.Allocator,
			pPipelines))
	}); err != nil {
		return metadata.InvalidHandle, err
	}

	core.LogDebug("Graphics pipeline created!")
	return metadata.PipelineHandle(vb.acquire(&VulkanPipeline{Handle: pPipelines[0]})), nil
}

func (vb *VulkanBackend) DestroyGraphicsPipeline(h metadata.PipelineHandle) error {
	pipeline, err := lookup[*VulkanPipeline](vb, uint64(h), "pipeline")
	if err != nil {
		return err
	}
	vb.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(vb.context.LogicalDevice, pipeline.Handle, vb.context.Allocator)
		return nil
	})
	return vb.release(uint64(h))
}

func blendState(mode metadata.BlendMode) vk.PipelineColorBlendAttachmentState {
	state := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	switch mode {
	case metadata.BlendModeOpaque:
		state.BlendEnable = vk.False
	case metadata.BlendModeAdditive:
		state.DstColorBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorOne
	}
	state.Deref()
	return state
}
