package pool

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
	"github.com/spaghettifunk/resident/engine/renderer/software"
)

var (
	uniform = metadata.DescriptorKindUniformBuffer
	images  = metadata.DescriptorKindCombinedImageSampler
)

func smallProfile() Profile {
	return Profile{
		MaxSets: 4,
		Sizes: []metadata.PoolSize{
			{Kind: uniform, Count: 4},
			{Kind: images, Count: 8},
		},
		Flags: metadata.DescriptorPoolFlagFreeSets,
	}
}

type fixture struct {
	backend *software.Backend
	alloc   *Allocator
	layouts []metadata.DescriptorSetLayoutDescription
	handles []metadata.DescriptorSetLayoutHandle
}

func newFixture(t *testing.T, profile Profile, metrics *core.Metrics) *fixture {
	t.Helper()
	backend := software.New(software.DefaultOptions())
	alloc, err := New(backend, profile, metrics)
	require.NoError(t, err)

	f := &fixture{backend: backend, alloc: alloc}
	for _, d := range []metadata.DescriptorSetLayoutDescription{
		metadata.NewDescriptorSetLayout().AddBinding(0, uniform, 1, metadata.ShaderStageVertex),
		metadata.NewDescriptorSetLayout().AddBinding(0, images, 3, metadata.ShaderStageFragment),
		metadata.NewDescriptorSetLayout().
			AddBinding(0, uniform, 1, metadata.ShaderStageVertex).
			AddBinding(1, images, 2, metadata.ShaderStageFragment),
	} {
		h, err := backend.CreateDescriptorSetLayout(d)
		require.NoError(t, err)
		f.layouts = append(f.layouts, d)
		f.handles = append(f.handles, h)
	}
	return f
}

func (f *fixture) allocate(i int) (*Allocation, error) {
	return f.alloc.Allocate(f.handles[i], f.layouts[i].PoolSizes())
}

func TestFirstFitAndGrowth(t *testing.T) {
	f := newFixture(t, smallProfile(), nil)

	// three image sets of 3 need two pools of 8
	a, err := f.allocate(1)
	require.NoError(t, err)
	b, err := f.allocate(1)
	require.NoError(t, err)
	assert.Equal(t, a.Pool(), b.Pool())
	c, err := f.allocate(1)
	require.NoError(t, err)
	assert.NotEqual(t, a.Pool(), c.Pool())
	assert.Equal(t, 2, f.alloc.PoolCount())

	// a uniform-only set still fits the first pool
	d, err := f.allocate(0)
	require.NoError(t, err)
	assert.Equal(t, a.Pool(), d.Pool())
	assert.NotEqual(t, a.ID, d.ID)
}

func TestRequestLargerThanProfile(t *testing.T) {
	f := newFixture(t, smallProfile(), nil)
	_, err := f.alloc.Allocate(f.handles[1], []metadata.PoolSize{{Kind: images, Count: 9}})
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
	_, err = f.alloc.Allocate(f.handles[1], []metadata.PoolSize{{Kind: metadata.DescriptorKindStorageImage, Count: 1}})
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
	assert.Zero(t, f.alloc.PoolCount())
}

func TestInvalidProfile(t *testing.T) {
	_, err := New(software.New(software.DefaultOptions()), Profile{}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestBackendFailureRollsBack(t *testing.T) {
	f := newFixture(t, smallProfile(), nil)
	_, err := f.allocate(2)
	require.NoError(t, err)
	before := f.alloc.Stats()

	f.backend.FailNext("AllocateDescriptorSet", core.ErrResourceExhausted)
	_, err = f.allocate(2)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrResourceExhausted)

	assert.Equal(t, before, f.alloc.Stats())
	assert.Equal(t, 1, f.alloc.Live())
}

func TestFailureOnNewPoolDestroysIt(t *testing.T) {
	metrics := core.NewMetrics(prometheus.NewRegistry())
	f := newFixture(t, smallProfile(), metrics)
	_, err := f.allocate(1)
	require.NoError(t, err)
	_, err = f.allocate(1)
	require.NoError(t, err)
	before := f.alloc.Stats()

	f.backend.FailNext("AllocateDescriptorSet", core.ErrResourceExhausted)
	_, err = f.allocate(1)
	assert.ErrorIs(t, err, core.ErrResourceExhausted)

	assert.Equal(t, 1, f.alloc.PoolCount())
	assert.Equal(t, before, f.alloc.Stats())
	assert.Equal(t, 2, f.alloc.Live())
	assert.Equal(t, 2, f.backend.Calls("CreateDescriptorPool"))
	assert.Equal(t, 1, f.backend.Calls("DestroyDescriptorPool"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DescriptorPools))

	c, err := f.allocate(1)
	require.NoError(t, err)
	assert.Equal(t, 2, f.alloc.PoolCount())
	_, ok := f.backend.PoolRemaining(c.Pool())
	assert.True(t, ok)
}

func TestFreeUntracked(t *testing.T) {
	f := newFixture(t, smallProfile(), nil)
	a, err := f.allocate(0)
	require.NoError(t, err)
	_, err = f.allocate(0)
	require.NoError(t, err)

	require.NoError(t, f.alloc.Free(a))
	assert.ErrorIs(t, f.alloc.Free(a), core.ErrLogic)
	assert.ErrorIs(t, f.alloc.Free(&Allocation{}), core.ErrLogic)
	assert.ErrorIs(t, f.alloc.Free(nil), core.ErrLogic)
}

func TestPoolResetWhenEmpty(t *testing.T) {
	metrics := core.NewMetrics(prometheus.NewRegistry())
	f := newFixture(t, smallProfile(), metrics)

	a, err := f.allocate(2)
	require.NoError(t, err)
	b, err := f.allocate(2)
	require.NoError(t, err)

	require.NoError(t, f.alloc.Free(a))
	assert.Equal(t, 1, f.backend.Calls("FreeDescriptorSet"))
	assert.Zero(t, f.backend.Calls("ResetDescriptorPool"))

	require.NoError(t, f.alloc.Free(b))
	assert.Equal(t, 1, f.backend.Calls("FreeDescriptorSet"))
	assert.Equal(t, 1, f.backend.Calls("ResetDescriptorPool"))
	assert.Equal(t, 1, f.alloc.PoolCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PoolResets))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PoolAllocations))

	s := f.alloc.Stats()[0]
	assert.Equal(t, s.Capacity, s.Remaining)
	assert.Equal(t, s.MaxSets, s.RemainingSets)

	// the reset pool serves the next request
	c, err := f.allocate(2)
	require.NoError(t, err)
	assert.Equal(t, a.Pool(), c.Pool())
	assert.Equal(t, 1, f.alloc.PoolCount())
}

func TestConservation(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	f := newFixture(t, smallProfile(), nil)

	var live []*Allocation
	for step := 0; step < 2000; step++ {
		if len(live) > 0 && rng.IntN(3) == 0 {
			i := rng.IntN(len(live))
			require.NoError(t, f.alloc.Free(live[i]))
			live = append(live[:i], live[i+1:]...)
		} else {
			a, err := f.allocate(rng.IntN(len(f.layouts)))
			require.NoError(t, err)
			live = append(live, a)
		}

		for _, s := range f.alloc.Stats() {
			for kind, capacity := range s.Capacity {
				require.Equal(t, capacity, s.Remaining[kind]+s.Consumed[kind], "step %d pool %d kind %s", step, s.Handle, kind)
			}
			require.Equal(t, s.MaxSets, s.RemainingSets+uint32(s.Live))
		}
	}
	require.Equal(t, len(live), f.alloc.Live())

	// the backend agrees with the allocator
	for _, s := range f.alloc.Stats() {
		remaining, ok := f.backend.PoolRemaining(s.Handle)
		require.True(t, ok)
		for kind := range s.Capacity {
			assert.Equal(t, s.Remaining[kind], remaining[kind])
		}
	}
}

func TestDestroy(t *testing.T) {
	f := newFixture(t, smallProfile(), nil)
	for i := 0; i < 6; i++ {
		_, err := f.allocate(1)
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.alloc.PoolCount())
	require.NoError(t, f.alloc.Destroy())
	assert.Zero(t, f.alloc.PoolCount())
	assert.Zero(t, f.alloc.Live())
	// only the three layouts are left
	assert.Equal(t, 3, f.backend.Live())
}

func TestPoolCreationFailure(t *testing.T) {
	f := newFixture(t, smallProfile(), nil)
	boom := errors.New("out of device memory")
	f.backend.FailNext("CreateDescriptorPool", boom)
	_, err := f.allocate(0)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, f.alloc.PoolCount())
}
