package vulkan

import "sync"

type LockGroup string

const (
	SamplerManagement       LockGroup = "sampler_management"
	DescriptorManagement    LockGroup = "descriptor_management"
	CommandBufferManagement LockGroup = "command_buffer_management"
	RenderpassManagement    LockGroup = "renderpass_management"
	ImageManagement         LockGroup = "image_management"
	PipelineManagement      LockGroup = "pipeline_management"
	MemoryManagement        LockGroup = "memory_management"
	ShaderManagement        LockGroup = "shader_management"
)

// VulkanLockPool serializes calls per object family. Calls of different
// families may run at the same time; the queue has its own lock.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex

	queue sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	l, ok := vs.locks[group]
	if !ok {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	return l
}

// SafeCall runs fn holding the lock of group.
func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

// SafeQueueCall runs fn holding the queue lock.
func (vs *VulkanLockPool) SafeQueueCall(fn func() error) error {
	vs.queue.Lock()
	defer vs.queue.Unlock()

	return fn()
}
