package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierPoolReusesLowestId(t *testing.T) {
	p := NewIdentifierPool(2)
	a := p.Acquire("a")
	b := p.Acquire("b")
	c := p.Acquire("c")
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{a, b, c})
	assert.Equal(t, 3, p.Len())

	require.NoError(t, p.Release(b))
	_, ok := p.Owner(b)
	assert.False(t, ok)
	assert.Equal(t, uint32(1), p.Acquire("d"))
	owner, ok := p.Owner(1)
	require.True(t, ok)
	assert.Equal(t, "d", owner)

	assert.ErrorIs(t, p.Release(9), ErrLogic)
	require.NoError(t, p.Release(a))
	assert.ErrorIs(t, p.Release(a), ErrLogic)
	assert.Equal(t, 2, p.Len())
	assert.Panics(t, func() { p.Acquire(nil) })
}

func TestClock(t *testing.T) {
	now := time.Unix(1000, 0)
	c := &Clock{now: func() time.Time { return now }}

	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	now = now.Add(1500 * time.Millisecond)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)
}

func TestMetricsAreNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheLookup("layout", "hit")
		m.SetCacheEntries("layout", 1)
		m.AddDescriptorPools(1)
		m.AddPoolAllocations(1)
		m.PoolReset()
		m.SetSlots(1, 1)
		m.ViewSynced(3)
		m.FrameUpdate(0.016)
	})
	fps, ms := m.Frame()
	assert.Zero(t, fps)
	assert.Zero(t, ms)
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CacheLookup("sampler", "miss")
	m.CacheLookup("sampler", "hit")
	m.CacheLookup("sampler", "hit")
	m.ViewSynced(4)
	m.ViewSynced(2)
	m.AddDescriptorPools(2)
	m.AddDescriptorPools(-1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheLookups.WithLabelValues("sampler", "hit")))
	assert.Equal(t, float64(6), testutil.ToFloat64(m.DescriptorWrites))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ViewSyncs))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DescriptorPools))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.NotZero(t, count)
}

func TestFrameTiming(t *testing.T) {
	m := NewMetrics(nil)
	for i := 0; i < int(AVG_COUNT); i++ {
		m.FrameUpdate(1.0 / 64)
	}
	_, ms := m.Frame()
	assert.InDelta(t, 15.625, ms, 1e-9)

	// the 65th frame of 15.625ms crosses one second
	for i := 0; i < 35; i++ {
		m.FrameUpdate(1.0 / 64)
	}
	fps, _ := m.Frame()
	assert.Equal(t, float64(64), fps)
	assert.Equal(t, float64(64), testutil.ToFloat64(m.FramesPerSecond))
}

func TestLogLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(nopWriter{})

	require.NoError(t, SetLogLevel("warn"))
	LogInfo("hidden %d", 1)
	LogWarn("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")
	assert.Equal(t, "warn", LogLevel())

	assert.Error(t, SetLogLevel("loud"))
	require.NoError(t, SetLogLevel("info"))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
