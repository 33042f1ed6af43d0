package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

const spirvMagic uint32 = 0x07230203

// ShaderLoader reads compiled SPIR-V. The stage comes from the name, as in
// "basic.frag.spv".
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (interface{}, error) {
	stage, err := StageFromName(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("shader %s is %d bytes, not whole SPIR-V words: %w", path, len(data), core.ErrInvalidConfiguration)
	}
	if binary.LittleEndian.Uint32(data) != spirvMagic {
		return nil, fmt.Errorf("shader %s is not SPIR-V: %w", path, core.ErrInvalidConfiguration)
	}
	return metadata.ShaderModuleDescription{Stage: stage, Code: data}, nil
}

func StageFromName(path string) (metadata.ShaderStage, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch filepath.Ext(base) {
	case ".vert":
		return metadata.ShaderStageVertex, nil
	case ".frag":
		return metadata.ShaderStageFragment, nil
	case ".comp":
		return metadata.ShaderStageCompute, nil
	case ".geom":
		return metadata.ShaderStageGeometry, nil
	default:
		return 0, fmt.Errorf("shader %s has no stage in its name: %w", path, core.ErrInvalidConfiguration)
	}
}
