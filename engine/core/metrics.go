package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

const AVG_COUNT uint8 = 30

// Metrics holds the prometheus collectors of the engine. Every method is safe
// to call on a nil *Metrics, which turns reporting off.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	CacheEntries     *prometheus.GaugeVec
	DescriptorPools  prometheus.Gauge
	PoolAllocations  prometheus.Gauge
	PoolResets       prometheus.Counter
	Slots            *prometheus.GaugeVec
	DescriptorWrites prometheus.Counter
	ViewSyncs        prometheus.Counter
	FrameTime        prometheus.Gauge
	FramesPerSecond  prometheus.Gauge

	frame frameState
}

type frameState struct {
	avgCounter         uint8
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resident_cache_lookups_total",
				Help: "Resource cache lookups by category and result (hit, miss, error)",
			},
			[]string{"category", "result"},
		),
		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "resident_cache_entries",
				Help: "Live resource cache entries by category",
			},
			[]string{"category"},
		),
		DescriptorPools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resident_descriptor_pools",
			Help: "Descriptor pools created by the pool allocators",
		}),
		PoolAllocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resident_descriptor_allocations",
			Help: "Live descriptor set allocations",
		}),
		PoolResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resident_descriptor_pool_resets_total",
			Help: "Descriptor pools recycled after every allocation was returned",
		}),
		Slots: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "resident_bindless_slots",
				Help: "Bindless texture slots by state (used, free)",
			},
			[]string{"state"},
		),
		DescriptorWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resident_descriptor_writes_total",
			Help: "Descriptor writes issued while syncing views",
		}),
		ViewSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resident_view_syncs_total",
			Help: "Descriptor view syncs that applied at least one pending slot",
		}),
		FrameTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resident_frame_time_ms",
			Help: "Average frame time in milliseconds",
		}),
		FramesPerSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resident_frames_per_second",
			Help: "Frames counted over the last second",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.CacheLookups, m.CacheEntries, m.DescriptorPools, m.PoolAllocations,
			m.PoolResets, m.Slots, m.DescriptorWrites, m.ViewSyncs,
			m.FrameTime, m.FramesPerSecond,
		)
	}
	return m
}

func (m *Metrics) CacheLookup(category, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(category, result).Inc()
}

func (m *Metrics) SetCacheEntries(category string, n int) {
	if m == nil {
		return
	}
	m.CacheEntries.WithLabelValues(category).Set(float64(n))
}

func (m *Metrics) AddDescriptorPools(delta int) {
	if m == nil {
		return
	}
	m.DescriptorPools.Add(float64(delta))
}

func (m *Metrics) AddPoolAllocations(delta int) {
	if m == nil {
		return
	}
	m.PoolAllocations.Add(float64(delta))
}

func (m *Metrics) PoolReset() {
	if m == nil {
		return
	}
	m.PoolResets.Inc()
}

func (m *Metrics) SetSlots(used, free int) {
	if m == nil {
		return
	}
	m.Slots.WithLabelValues("used").Set(float64(used))
	m.Slots.WithLabelValues("free").Set(float64(free))
}

func (m *Metrics) ViewSynced(writes int) {
	if m == nil {
		return
	}
	m.ViewSyncs.Inc()
	m.DescriptorWrites.Add(float64(writes))
}

// FrameUpdate records the duration of the last frame in seconds.
func (m *Metrics) FrameUpdate(frameElapsedTime float64) {
	if m == nil {
		return
	}
	s := &m.frame

	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	s.msTimes[s.avgCounter] = frameMS
	if s.avgCounter == AVG_COUNT-1 {
		s.msAvg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			s.msAvg += s.msTimes[i]
		}
		s.msAvg /= float64(AVG_COUNT)
		m.FrameTime.Set(s.msAvg)
	}
	s.avgCounter++
	s.avgCounter %= AVG_COUNT

	// Calculate frames per second.
	s.accumulatedFrameMS += frameMS
	if s.accumulatedFrameMS > 1000 {
		s.fps = float64(s.frames)
		s.accumulatedFrameMS -= 1000
		s.frames = 0
		m.FramesPerSecond.Set(s.fps)
	}

	s.frames++
}

// Frame returns the last computed FPS and average frame time.
func (m *Metrics) Frame() (float64, float64) {
	if m == nil {
		return 0, 0
	}
	return m.frame.fps, m.frame.msAvg
}
