// Package software is an in-process renderer backend. Objects live in host
// memory, descriptor pools enforce their capacities and texture levels are
// plain pixel buffers. It backs the demo and the tests of the packages that
// sit on top of a backend.
package software

import (
	"fmt"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type Options struct {
	Limits metadata.Limits
}

func DefaultOptions() Options {
	return Options{
		Limits: metadata.Limits{
			MaxSampledImages:    4096,
			MaxTextureDimension: 8192,
			MaxTextureLayers:    256,
		},
	}
}

type Backend struct {
	options Options
	ids     *core.IdentifierPool

	layouts         map[metadata.DescriptorSetLayoutHandle]metadata.DescriptorSetLayoutDescription
	pipelineLayouts map[metadata.PipelineLayoutHandle]metadata.PipelineLayoutDescription
	shaders         map[metadata.ShaderModuleHandle]metadata.ShaderModuleDescription
	passes          map[metadata.RenderPassHandle]metadata.RenderPassDescription
	samplers        map[metadata.SamplerHandle]metadata.SamplerDescription
	pipelines       map[metadata.PipelineHandle]metadata.GraphicsPipelineDescription
	pools           map[metadata.DescriptorPoolHandle]*descriptorPool
	sets            map[metadata.DescriptorSetHandle]*descriptorSet
	textures        map[metadata.TextureHandle]*texture
	bound           map[metadata.BindPoint]boundSet

	calls    map[string]int
	failures map[string]error
}

func New(options Options) *Backend {
	return &Backend{
		options:         options,
		ids:             core.NewIdentifierPool(64),
		layouts:         make(map[metadata.DescriptorSetLayoutHandle]metadata.DescriptorSetLayoutDescription),
		pipelineLayouts: make(map[metadata.PipelineLayoutHandle]metadata.PipelineLayoutDescription),
		shaders:         make(map[metadata.ShaderModuleHandle]metadata.ShaderModuleDescription),
		passes:          make(map[metadata.RenderPassHandle]metadata.RenderPassDescription),
		samplers:        make(map[metadata.SamplerHandle]metadata.SamplerDescription),
		pipelines:       make(map[metadata.PipelineHandle]metadata.GraphicsPipelineDescription),
		pools:           make(map[metadata.DescriptorPoolHandle]*descriptorPool),
		sets:            make(map[metadata.DescriptorSetHandle]*descriptorSet),
		textures:        make(map[metadata.TextureHandle]*texture),
		bound:           make(map[metadata.BindPoint]boundSet),
		calls:           make(map[string]int),
		failures:        make(map[string]error),
	}
}

func (b *Backend) Limits() metadata.Limits {
	return b.options.Limits
}

// FailNext makes the next call of the named method return err instead of
// doing anything.
func (b *Backend) FailNext(method string, err error) {
	b.failures[method] = err
}

// Calls returns how many times the named method ran, failed calls included.
func (b *Backend) Calls(method string) int {
	return b.calls[method]
}

// Live is the number of objects of every kind the backend still holds.
func (b *Backend) Live() int {
	return b.ids.Len()
}

func (b *Backend) enter(method string) error {
	b.calls[method]++
	if err, ok := b.failures[method]; ok {
		delete(b.failures, method)
		return err
	}
	return nil
}

// handles are ids shifted by one so that zero stays invalid
func (b *Backend) acquire(owner interface{}) uint64 {
	return uint64(b.ids.Acquire(owner)) + 1
}

func (b *Backend) release(h uint64) error {
	if h == metadata.InvalidHandle {
		return fmt.Errorf("release of the invalid handle: %w", core.ErrLogic)
	}
	return b.ids.Release(uint32(h - 1))
}
