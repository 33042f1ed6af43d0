package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// SPIR-V modules start with this word.
const spirvMagic = 0x07230203

/**
 * @brief A compiled shader module and the stage it was compiled for.
 */
type VulkanShaderModule struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	Stage  metadata.ShaderStage
}

// CodeSize is in bytes while PCode holds the same code as words.
func shaderModuleCreateInfo(raw []byte, words []uint32) vk.ShaderModuleCreateInfo {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(raw)),
		PCode:    words,
	}
	createInfo.Deref()
	return createInfo
}

func (vb *VulkanBackend) CreateShaderModule(d metadata.ShaderModuleDescription) (metadata.ShaderModuleHandle, error) {
	code, err := bytesToBytecode(d.Code)
	if err != nil {
		return metadata.InvalidHandle, err
	}

	createInfo := shaderModuleCreateInfo(d.Code, code)

	module := &VulkanShaderModule{Stage: d.Stage}
	if err := vb.locks.SafeCall(ShaderManagement, func() error {
		return resultError("vkCreateShaderModule",
			vk.CreateShaderModule(vb.context.LogicalDevice, &createInfo, vb.context.Allocator, &module.Handle))
	}); err != nil {
		return metadata.InvalidHandle, err
	}
	return metadata.ShaderModuleHandle(vb.acquire(module)), nil
}

func (vb *VulkanBackend) DestroyShaderModule(h metadata.ShaderModuleHandle) error {
	module, err := lookup[*VulkanShaderModule](vb, uint64(h), "shader module")
	if err != nil {
		return err
	}
	vb.locks.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(vb.context.LogicalDevice, module.Handle, vb.context.Allocator)
		return nil
	})
	return vb.release(uint64(h))
}

// stage fills the pipeline stage info for s, which must run the stage the
// module was compiled for.
func (m *VulkanShaderModule) stage(s metadata.ShaderStageDescription) (vk.PipelineShaderStageCreateInfo, error) {
	if s.Stage != m.Stage {
		return vk.PipelineShaderStageCreateInfo{}, fmt.Errorf("module compiled for stage %#x used as %#x: %w", int(m.Stage), int(s.Stage), core.ErrInvalidConfiguration)
	}
	bit, err := shaderStageBit(s.Stage)
	if err != nil {
		return vk.PipelineShaderStageCreateInfo{}, err
	}
	entry := s.EntryPoint
	if entry == "" {
		entry = "main"
	}
	info := vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  bit,
		Module: m.Handle,
		PName:  VulkanSafeString(entry),
	}
	info.Deref()
	return info, nil
}

// bytesToBytecode reads little endian SPIR-V words.
func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("shader code of %d bytes is not a whole number of words: %w", len(b), core.ErrInvalidConfiguration)
	}
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}
	if byteCode[0] != spirvMagic {
		return nil, fmt.Errorf("shader code does not start with the SPIR-V magic number: %w", core.ErrInvalidConfiguration)
	}
	return byteCode, nil
}
