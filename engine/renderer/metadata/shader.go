package metadata

import (
	"github.com/spaghettifunk/resident/engine/renderer/hashing"
)

/**
 * @brief Describes a compiled shader module. The code is SPIR-V (or whatever
 * the backend consumes) and is hashed by content.
 */
type ShaderModuleDescription struct {
	/** @brief The stage this module is compiled for. */
	Stage ShaderStage
	/** @brief The compiled code. */
	Code []byte
}

func (d ShaderModuleDescription) Hash() hashing.Key {
	h := hashing.New()
	hashing.Integer(h, d.Stage)
	h.Bytes(d.Code)
	return h.Sum()
}

/** @brief One programmable stage of a pipeline. */
type ShaderStageDescription struct {
	Stage      ShaderStage
	Module     ShaderRef
	EntryPoint string
}
