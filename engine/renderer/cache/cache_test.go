package cache

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// recorder is a Backend that issues increasing handles and remembers calls.
type recorder struct {
	next      uint64
	created   map[string]int
	destroyed []string
	failNext  error
}

func newRecorder() *recorder {
	return &recorder{created: map[string]int{}}
}

func (r *recorder) issue(kind string) (uint64, error) {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return 0, err
	}
	r.next++
	r.created[kind]++
	return r.next, nil
}

func (r *recorder) drop(kind string, h uint64) error {
	r.destroyed = append(r.destroyed, fmt.Sprintf("%s:%d", kind, h))
	return nil
}

func (r *recorder) CreateDescriptorSetLayout(metadata.DescriptorSetLayoutDescription) (metadata.DescriptorSetLayoutHandle, error) {
	h, err := r.issue("layout")
	return metadata.DescriptorSetLayoutHandle(h), err
}

func (r *recorder) DestroyDescriptorSetLayout(h metadata.DescriptorSetLayoutHandle) error {
	return r.drop("layout", uint64(h))
}

func (r *recorder) CreatePipelineLayout(metadata.PipelineLayoutDescription) (metadata.PipelineLayoutHandle, error) {
	h, err := r.issue("pipeline_layout")
	return metadata.PipelineLayoutHandle(h), err
}

func (r *recorder) DestroyPipelineLayout(h metadata.PipelineLayoutHandle) error {
	return r.drop("pipeline_layout", uint64(h))
}

func (r *recorder) CreateShaderModule(metadata.ShaderModuleDescription) (metadata.ShaderModuleHandle, error) {
	h, err := r.issue("shader")
	return metadata.ShaderModuleHandle(h), err
}

func (r *recorder) DestroyShaderModule(h metadata.ShaderModuleHandle) error {
	return r.drop("shader", uint64(h))
}

func (r *recorder) CreateRenderPass(metadata.RenderPassDescription) (metadata.RenderPassHandle, error) {
	h, err := r.issue("pass")
	return metadata.RenderPassHandle(h), err
}

func (r *recorder) DestroyRenderPass(h metadata.RenderPassHandle) error {
	return r.drop("pass", uint64(h))
}

func (r *recorder) CreateSampler(metadata.SamplerDescription) (metadata.SamplerHandle, error) {
	h, err := r.issue("sampler")
	return metadata.SamplerHandle(h), err
}

func (r *recorder) DestroySampler(h metadata.SamplerHandle) error {
	return r.drop("sampler", uint64(h))
}

func (r *recorder) CreateGraphicsPipeline(metadata.GraphicsPipelineDescription) (metadata.PipelineHandle, error) {
	h, err := r.issue("pipeline")
	return metadata.PipelineHandle(h), err
}

func (r *recorder) DestroyGraphicsPipeline(h metadata.PipelineHandle) error {
	return r.drop("pipeline", uint64(h))
}

func layout(count uint32) metadata.DescriptorSetLayoutDescription {
	return metadata.NewDescriptorSetLayout().
		AddBinding(0, metadata.DescriptorKindCombinedImageSampler, count, metadata.ShaderStageFragment)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	backend := newRecorder()
	s := NewStorage(backend, nil)

	first, err := s.DescriptorSetLayout(layout(4))
	require.NoError(t, err)
	second, err := s.DescriptorSetLayout(layout(4))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.created["layout"])
	assert.Equal(t, 1, s.Layouts.Len())
}

func TestDistinctCountsGiveDistinctHandles(t *testing.T) {
	backend := newRecorder()
	s := NewStorage(backend, nil)

	four, err := s.DescriptorSetLayout(layout(4))
	require.NoError(t, err)
	seven, err := s.DescriptorSetLayout(layout(7))
	require.NoError(t, err)

	assert.NotEqual(t, four, seven)
	k4, _ := s.Layouts.Key(four)
	k7, _ := s.Layouts.Key(seven)
	assert.NotEqual(t, k4, k7)
	assert.Equal(t, 2, backend.created["layout"])
}

func TestNearEqualDescriptionsDoNotCollide(t *testing.T) {
	backend := newRecorder()
	s := NewStorage(backend, nil)

	seen := map[metadata.DescriptorSetLayoutHandle]bool{}
	for binding := uint32(0); binding < 8; binding++ {
		for count := uint32(1); count <= 8; count++ {
			d := metadata.NewDescriptorSetLayout().
				AddBinding(binding, metadata.DescriptorKindSampledImage, count, metadata.ShaderStageFragment)
			h, err := s.DescriptorSetLayout(d)
			require.NoError(t, err)
			require.False(t, seen[h], "binding %d count %d reused a handle", binding, count)
			seen[h] = true
		}
	}
	assert.Equal(t, 64, s.Layouts.Len())
}

func TestFailedCreateRecordsNothing(t *testing.T) {
	backend := newRecorder()
	s := NewStorage(backend, nil)

	backend.failNext = core.ErrResourceExhausted
	_, err := s.Sampler(metadata.DefaultSampler())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrResourceExhausted))
	assert.Zero(t, s.Samplers.Len())

	h, err := s.Sampler(metadata.DefaultSampler())
	require.NoError(t, err)
	assert.NotEqual(t, metadata.SamplerHandle(metadata.InvalidHandle), h)
	assert.Equal(t, 1, backend.created["sampler"])
}

func TestDescriptionLookup(t *testing.T) {
	s := NewStorage(newRecorder(), nil)

	h, err := s.DescriptorSetLayout(layout(4))
	require.NoError(t, err)
	d, err := s.Layouts.Description(h)
	require.NoError(t, err)
	assert.Equal(t, layout(4).Hash(), d.Hash())

	_, err = s.Layouts.Description(h + 100)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRelease(t *testing.T) {
	backend := newRecorder()
	s := NewStorage(backend, nil)

	h, err := s.DescriptorSetLayout(layout(4))
	require.NoError(t, err)
	require.NoError(t, s.Layouts.Release(h))
	assert.Zero(t, s.Layouts.Len())
	assert.ErrorIs(t, s.Layouts.Release(h), core.ErrLogic)

	again, err := s.DescriptorSetLayout(layout(4))
	require.NoError(t, err)
	assert.NotEqual(t, h, again)
	assert.Equal(t, 2, backend.created["layout"])
}

func TestReferencesResolveToTheSameKey(t *testing.T) {
	backend := newRecorder()
	s := NewStorage(backend, nil)

	byDesc, err := s.PipelineLayout(metadata.NewPipelineLayout(metadata.LayoutByDescription(layout(4))))
	require.NoError(t, err)
	set, err := s.DescriptorSetLayout(layout(4))
	require.NoError(t, err)
	byHandle, err := s.PipelineLayout(metadata.NewPipelineLayout(metadata.LayoutByHandle(set)))
	require.NoError(t, err)

	assert.Equal(t, byDesc, byHandle)
	assert.Equal(t, 1, backend.created["layout"])
	assert.Equal(t, 1, backend.created["pipeline_layout"])
}

func pipeline(entry string) metadata.GraphicsPipelineDescription {
	vs := metadata.ShaderModuleDescription{Stage: metadata.ShaderStageVertex, Code: []byte("vs")}
	fs := metadata.ShaderModuleDescription{Stage: metadata.ShaderStageFragment, Code: []byte("fs")}
	return metadata.GraphicsPipelineDescription{
		Stages: []metadata.ShaderStageDescription{
			{Stage: metadata.ShaderStageVertex, Module: metadata.ShaderByDescription(vs), EntryPoint: "main"},
			{Stage: metadata.ShaderStageFragment, Module: metadata.ShaderByDescription(fs), EntryPoint: entry},
		},
		CullMode: metadata.FaceCullModeBack,
		Layout:   metadata.PipelineLayoutByDescription(metadata.NewPipelineLayout(metadata.LayoutByDescription(layout(4)))),
		Pass: metadata.RenderPassByDescription(metadata.NewRenderPass().AddAttachment(metadata.AttachmentDescription{
			Format:      metadata.FormatBGRA8Unorm,
			Samples:     1,
			Load:        metadata.LoadOpClear,
			Store:       metadata.StoreOpStore,
			FinalLayout: metadata.FinalLayoutPresent,
		})),
	}
}

func TestGraphicsPipelineSharesDependencies(t *testing.T) {
	backend := newRecorder()
	s := NewStorage(backend, nil)

	a, err := s.GraphicsPipeline(pipeline("main"))
	require.NoError(t, err)
	b, err := s.GraphicsPipeline(pipeline("main"))
	require.NoError(t, err)
	c, err := s.GraphicsPipeline(pipeline("alt"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 2, backend.created["pipeline"])
	assert.Equal(t, 2, backend.created["shader"])
	assert.Equal(t, 1, backend.created["pass"])
	assert.Equal(t, 1, backend.created["pipeline_layout"])
	assert.Equal(t, 1, backend.created["layout"])

	// The stored description holds handles only.
	d, err := s.Pipelines.Description(a)
	require.NoError(t, err)
	assert.True(t, d.Layout.IsHandle())
	assert.True(t, d.Pass.IsHandle())
	assert.True(t, d.Stages[0].Module.IsHandle())
}

func TestReleaseAllOrderAndIdempotence(t *testing.T) {
	backend := newRecorder()
	s := NewStorage(backend, nil)

	_, err := s.GraphicsPipeline(pipeline("main"))
	require.NoError(t, err)
	_, err = s.Sampler(metadata.DefaultSampler())
	require.NoError(t, err)

	require.NoError(t, s.ReleaseAll())
	assert.Zero(t, s.Len())
	require.Len(t, backend.destroyed, 7)
	assert.Contains(t, backend.destroyed[0], "pipeline:")
	assert.Contains(t, backend.destroyed[1], "pipeline_layout:")
	assert.Contains(t, backend.destroyed[6], "layout:")

	require.NoError(t, s.ReleaseAll())
	assert.Len(t, backend.destroyed, 7)
}

func TestCategoryReleaseAllNewestFirst(t *testing.T) {
	var destroyed []metadata.SamplerHandle
	next := metadata.SamplerHandle(0)
	c := NewCategory("sampler",
		func(metadata.SamplerDescription) (metadata.SamplerHandle, error) {
			next++
			return next, nil
		},
		func(h metadata.SamplerHandle) error {
			destroyed = append(destroyed, h)
			return nil
		},
		nil,
	)

	for i := 0; i < 3; i++ {
		d := metadata.DefaultSampler()
		d.MaxLod = float32(i)
		_, err := c.GetOrCreate(d)
		require.NoError(t, err)
	}
	require.NoError(t, c.ReleaseAll())
	assert.Equal(t, []metadata.SamplerHandle{3, 2, 1}, destroyed)
}

func TestCacheMetrics(t *testing.T) {
	metrics := core.NewMetrics(prometheus.NewRegistry())
	s := NewStorage(newRecorder(), metrics)

	for i := 0; i < 3; i++ {
		_, err := s.DescriptorSetLayout(layout(4))
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("descriptor_set_layout", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("descriptor_set_layout", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheEntries.WithLabelValues("descriptor_set_layout")))
}
