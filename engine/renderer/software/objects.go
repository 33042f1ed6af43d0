package software

import (
	"fmt"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

func (b *Backend) CreateDescriptorSetLayout(d metadata.DescriptorSetLayoutDescription) (metadata.DescriptorSetLayoutHandle, error) {
	if err := b.enter("CreateDescriptorSetLayout"); err != nil {
		return metadata.InvalidHandle, err
	}
	for _, binding := range d.Bindings {
		if binding.Kind == metadata.DescriptorKindCombinedImageSampler && binding.Count > b.options.Limits.MaxSampledImages {
			return metadata.InvalidHandle, fmt.Errorf("binding %d holds %d images, limit is %d: %w",
				binding.Binding, binding.Count, b.options.Limits.MaxSampledImages, core.ErrResourceExhausted)
		}
	}
	h := metadata.DescriptorSetLayoutHandle(b.acquire(d))
	b.layouts[h] = d
	return h, nil
}

func (b *Backend) DestroyDescriptorSetLayout(h metadata.DescriptorSetLayoutHandle) error {
	if _, ok := b.layouts[h]; !ok {
		return fmt.Errorf("descriptor set layout %d: %w", h, core.ErrLogic)
	}
	delete(b.layouts, h)
	return b.release(uint64(h))
}

func (b *Backend) CreatePipelineLayout(d metadata.PipelineLayoutDescription) (metadata.PipelineLayoutHandle, error) {
	if err := b.enter("CreatePipelineLayout"); err != nil {
		return metadata.InvalidHandle, err
	}
	for i, set := range d.SetLayouts {
		if _, ok := b.layouts[set.Handle()]; !ok {
			return metadata.InvalidHandle, fmt.Errorf("set %d uses unknown layout %d: %w", i, set.Handle(), core.ErrNotFound)
		}
	}
	h := metadata.PipelineLayoutHandle(b.acquire(d))
	b.pipelineLayouts[h] = d
	return h, nil
}

func (b *Backend) DestroyPipelineLayout(h metadata.PipelineLayoutHandle) error {
	if _, ok := b.pipelineLayouts[h]; !ok {
		return fmt.Errorf("pipeline layout %d: %w", h, core.ErrLogic)
	}
	delete(b.pipelineLayouts, h)
	return b.release(uint64(h))
}

func (b *Backend) CreateShaderModule(d metadata.ShaderModuleDescription) (metadata.ShaderModuleHandle, error) {
	if err := b.enter("CreateShaderModule"); err != nil {
		return metadata.InvalidHandle, err
	}
	if len(d.Code) == 0 {
		return metadata.InvalidHandle, fmt.Errorf("shader module without code")
	}
	h := metadata.ShaderModuleHandle(b.acquire(d))
	b.shaders[h] = d
	return h, nil
}

func (b *Backend) DestroyShaderModule(h metadata.ShaderModuleHandle) error {
	if _, ok := b.shaders[h]; !ok {
		return fmt.Errorf("shader module %d: %w", h, core.ErrLogic)
	}
	delete(b.shaders, h)
	return b.release(uint64(h))
}

func (b *Backend) CreateRenderPass(d metadata.RenderPassDescription) (metadata.RenderPassHandle, error) {
	if err := b.enter("CreateRenderPass"); err != nil {
		return metadata.InvalidHandle, err
	}
	h := metadata.RenderPassHandle(b.acquire(d))
	b.passes[h] = d
	return h, nil
}

func (b *Backend) DestroyRenderPass(h metadata.RenderPassHandle) error {
	if _, ok := b.passes[h]; !ok {
		return fmt.Errorf("render pass %d: %w", h, core.ErrLogic)
	}
	delete(b.passes, h)
	return b.release(uint64(h))
}

func (b *Backend) CreateSampler(d metadata.SamplerDescription) (metadata.SamplerHandle, error) {
	if err := b.enter("CreateSampler"); err != nil {
		return metadata.InvalidHandle, err
	}
	h := metadata.SamplerHandle(b.acquire(d))
	b.samplers[h] = d
	return h, nil
}

func (b *Backend) DestroySampler(h metadata.SamplerHandle) error {
	if _, ok := b.samplers[h]; !ok {
		return fmt.Errorf("sampler %d: %w", h, core.ErrLogic)
	}
	delete(b.samplers, h)
	return b.release(uint64(h))
}

func (b *Backend) CreateGraphicsPipeline(d metadata.GraphicsPipelineDescription) (metadata.PipelineHandle, error) {
	if err := b.enter("CreateGraphicsPipeline"); err != nil {
		return metadata.InvalidHandle, err
	}
	for _, stage := range d.Stages {
		if _, ok := b.shaders[stage.Module.Handle()]; !ok {
			return metadata.InvalidHandle, fmt.Errorf("pipeline stage uses unknown shader module %d: %w", stage.Module.Handle(), core.ErrNotFound)
		}
	}
	if _, ok := b.pipelineLayouts[d.Layout.Handle()]; !ok {
		return metadata.InvalidHandle, fmt.Errorf("pipeline uses unknown layout %d: %w", d.Layout.Handle(), core.ErrNotFound)
	}
	if _, ok := b.passes[d.Pass.Handle()]; !ok {
		return metadata.InvalidHandle, fmt.Errorf("pipeline uses unknown render pass %d: %w", d.Pass.Handle(), core.ErrNotFound)
	}
	h := metadata.PipelineHandle(b.acquire(d))
	b.pipelines[h] = d
	return h, nil
}

func (b *Backend) DestroyGraphicsPipeline(h metadata.PipelineHandle) error {
	if _, ok := b.pipelines[h]; !ok {
		return fmt.Errorf("graphics pipeline %d: %w", h, core.ErrLogic)
	}
	delete(b.pipelines, h)
	return b.release(uint64(h))
}
