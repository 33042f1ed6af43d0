// Package cache deduplicates the creation of immutable GPU objects. Every
// description is reduced to a structural key and equal keys share one handle.
//
// References inside descriptions (a set layout inside a pipeline layout, a
// render pass inside a pipeline) are resolved to handles before the outer
// description is hashed, so asking with a nested description or with the
// handle it produced leads to the same entry.
package cache

import (
	"errors"
	"slices"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// Backend creates and destroys the objects Storage caches. Descriptions
// passed to it have every reference resolved to a handle.
type Backend interface {
	CreateDescriptorSetLayout(d metadata.DescriptorSetLayoutDescription) (metadata.DescriptorSetLayoutHandle, error)
	DestroyDescriptorSetLayout(h metadata.DescriptorSetLayoutHandle) error
	CreatePipelineLayout(d metadata.PipelineLayoutDescription) (metadata.PipelineLayoutHandle, error)
	DestroyPipelineLayout(h metadata.PipelineLayoutHandle) error
	CreateShaderModule(d metadata.ShaderModuleDescription) (metadata.ShaderModuleHandle, error)
	DestroyShaderModule(h metadata.ShaderModuleHandle) error
	CreateRenderPass(d metadata.RenderPassDescription) (metadata.RenderPassHandle, error)
	DestroyRenderPass(h metadata.RenderPassHandle) error
	CreateSampler(d metadata.SamplerDescription) (metadata.SamplerHandle, error)
	DestroySampler(h metadata.SamplerHandle) error
	CreateGraphicsPipeline(d metadata.GraphicsPipelineDescription) (metadata.PipelineHandle, error)
	DestroyGraphicsPipeline(h metadata.PipelineHandle) error
}

// Storage owns one Category per kind of cached object.
type Storage struct {
	Layouts         *Category[metadata.DescriptorSetLayoutDescription, metadata.DescriptorSetLayoutHandle]
	PipelineLayouts *Category[metadata.PipelineLayoutDescription, metadata.PipelineLayoutHandle]
	Shaders         *Category[metadata.ShaderModuleDescription, metadata.ShaderModuleHandle]
	RenderPasses    *Category[metadata.RenderPassDescription, metadata.RenderPassHandle]
	Samplers        *Category[metadata.SamplerDescription, metadata.SamplerHandle]
	Pipelines       *Category[metadata.GraphicsPipelineDescription, metadata.PipelineHandle]
}

func NewStorage(backend Backend, metrics *core.Metrics) *Storage {
	return &Storage{
		Layouts:         NewCategory("descriptor_set_layout", backend.CreateDescriptorSetLayout, backend.DestroyDescriptorSetLayout, metrics),
		PipelineLayouts: NewCategory("pipeline_layout", backend.CreatePipelineLayout, backend.DestroyPipelineLayout, metrics),
		Shaders:         NewCategory("shader_module", backend.CreateShaderModule, backend.DestroyShaderModule, metrics),
		RenderPasses:    NewCategory("render_pass", backend.CreateRenderPass, backend.DestroyRenderPass, metrics),
		Samplers:        NewCategory("sampler", backend.CreateSampler, backend.DestroySampler, metrics),
		Pipelines:       NewCategory("graphics_pipeline", backend.CreateGraphicsPipeline, backend.DestroyGraphicsPipeline, metrics),
	}
}

func (s *Storage) DescriptorSetLayout(d metadata.DescriptorSetLayoutDescription) (metadata.DescriptorSetLayoutHandle, error) {
	return s.Layouts.GetOrCreate(d)
}

func (s *Storage) PipelineLayout(d metadata.PipelineLayoutDescription) (metadata.PipelineLayoutHandle, error) {
	resolved, err := s.resolvePipelineLayout(d)
	if err != nil {
		return metadata.InvalidHandle, err
	}
	return s.PipelineLayouts.GetOrCreate(resolved)
}

func (s *Storage) ShaderModule(d metadata.ShaderModuleDescription) (metadata.ShaderModuleHandle, error) {
	return s.Shaders.GetOrCreate(d)
}

func (s *Storage) RenderPass(d metadata.RenderPassDescription) (metadata.RenderPassHandle, error) {
	return s.RenderPasses.GetOrCreate(d)
}

func (s *Storage) Sampler(d metadata.SamplerDescription) (metadata.SamplerHandle, error) {
	return s.Samplers.GetOrCreate(d)
}

func (s *Storage) GraphicsPipeline(d metadata.GraphicsPipelineDescription) (metadata.PipelineHandle, error) {
	d.Stages = slices.Clone(d.Stages)
	for i := range d.Stages {
		h, err := d.Stages[i].Module.Resolve(s.ShaderModule)
		if err != nil {
			return metadata.InvalidHandle, err
		}
		d.Stages[i].Module = metadata.ShaderByHandle(h)
	}

	layout, err := d.Layout.Resolve(s.PipelineLayout)
	if err != nil {
		return metadata.InvalidHandle, err
	}
	d.Layout = metadata.PipelineLayoutByHandle(layout)

	pass, err := d.Pass.Resolve(s.RenderPass)
	if err != nil {
		return metadata.InvalidHandle, err
	}
	d.Pass = metadata.RenderPassByHandle(pass)

	return s.Pipelines.GetOrCreate(d)
}

func (s *Storage) resolvePipelineLayout(d metadata.PipelineLayoutDescription) (metadata.PipelineLayoutDescription, error) {
	sets := make([]metadata.LayoutRef, len(d.SetLayouts))
	for i, ref := range d.SetLayouts {
		h, err := ref.Resolve(s.DescriptorSetLayout)
		if err != nil {
			return d, err
		}
		sets[i] = metadata.LayoutByHandle(h)
	}
	d.SetLayouts = sets
	return d, nil
}

// ReleaseAll destroys every cached object, dependents before the objects
// they were built from. Calling it again is a no-op.
func (s *Storage) ReleaseAll() error {
	return errors.Join(
		s.Pipelines.ReleaseAll(),
		s.PipelineLayouts.ReleaseAll(),
		s.RenderPasses.ReleaseAll(),
		s.Shaders.ReleaseAll(),
		s.Samplers.ReleaseAll(),
		s.Layouts.ReleaseAll(),
	)
}

// Len is the number of live entries over all categories.
func (s *Storage) Len() int {
	return s.Layouts.Len() + s.PipelineLayouts.Len() + s.Shaders.Len() +
		s.RenderPasses.Len() + s.Samplers.Len() + s.Pipelines.Len()
}
