package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/resident/engine/core"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorFragmentation:        "VK_ERROR_FRAGMENTATION",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

var resultDescriptions = map[vk.Result]string{
	vk.ErrorOutOfHostMemory:   "A host memory allocation has failed.",
	vk.ErrorOutOfDeviceMemory: "A device memory allocation has failed.",
	vk.ErrorDeviceLost:        "The logical or physical device has been lost.",
	vk.ErrorFragmentedPool:    "A pool allocation has failed due to fragmentation of the pool's memory.",
	vk.ErrorOutOfPoolMemory:   "A pool memory allocation has failed.",
	vk.ErrorFragmentation:     "A descriptor pool creation has failed due to fragmentation.",
}

// VulkanResultString names result, with a short description when extended
// is set and one is known.
func VulkanResultString(result vk.Result, extended bool) string {
	name, ok := resultNames[result]
	if !ok {
		name = fmt.Sprintf("VkResult(%d)", int32(result))
	}
	if desc, ok := resultDescriptions[result]; ok && extended {
		return name + " " + desc
	}
	return name
}

// VulkanResultIsSuccess reports whether result is one of the success codes,
// which are all non-negative.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

// resultError turns a failed call into an error. Pool and memory exhaustion
// wrap core.ErrResourceExhausted so callers can tell it apart from misuse.
func resultError(op string, result vk.Result) error {
	if VulkanResultIsSuccess(result) {
		return nil
	}
	switch result {
	case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool, vk.ErrorFragmentation,
		vk.ErrorOutOfDeviceMemory, vk.ErrorOutOfHostMemory, vk.ErrorTooManyObjects:
		return fmt.Errorf("%s failed with %s: %w", op, VulkanResultString(result, false), core.ErrResourceExhausted)
	case vk.ErrorFormatNotSupported, vk.ErrorFeatureNotPresent, vk.ErrorExtensionNotPresent:
		return fmt.Errorf("%s failed with %s: %w", op, VulkanResultString(result, false), core.ErrInvalidConfiguration)
	}
	return fmt.Errorf("%s failed with %s", op, VulkanResultString(result, true))
}

var end = "\x00"
var endChar byte = '\x00'

// VulkanSafeString null terminates s for the C side.
func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}
