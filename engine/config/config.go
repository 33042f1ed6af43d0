// Package config loads the engine configuration from TOML.
//
//	[log]
//	level = "info"
//
//	[bindless]
//	frames_in_flight = 2
//	max_textures = 1024
//	binding = 0
//
//	[bindless.sampler]
//	filter = "linear"
//	repeat = "repeat"
//	anisotropy = 1.0
//
//	[pool]
//	max_sets = 256
//	[pool.sizes]
//	uniform_buffer = 256
//	combined_image_sampler = 1024
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

type Config struct {
	Log      Log      `toml:"log"`
	Bindless Bindless `toml:"bindless"`
	Pool     Pool     `toml:"pool"`
	Assets   Assets   `toml:"assets"`
}

type Log struct {
	Level string `toml:"level"`
}

type Bindless struct {
	// FramesInFlight is the number of descriptor views, one per frame the
	// device may still be reading.
	FramesInFlight int     `toml:"frames_in_flight"`
	MaxTextures    uint32  `toml:"max_textures"`
	Binding        uint32  `toml:"binding"`
	Sampler        Sampler `toml:"sampler"`
}

type Sampler struct {
	Filter     string  `toml:"filter"`
	Repeat     string  `toml:"repeat"`
	Anisotropy float32 `toml:"anisotropy"`
}

type Pool struct {
	MaxSets uint32            `toml:"max_sets"`
	Sizes   map[string]uint32 `toml:"sizes"`
}

type Assets struct {
	// Directory is watched for texture changes. Empty disables watching.
	Directory string `toml:"directory"`
}

func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		Bindless: Bindless{
			FramesInFlight: 2,
			MaxTextures:    1024,
			Binding:        0,
			Sampler: Sampler{
				Filter:     "linear",
				Repeat:     "repeat",
				Anisotropy: 1,
			},
		},
		Pool: Pool{
			MaxSets: 256,
			Sizes: map[string]uint32{
				metadata.DescriptorKindUniformBuffer.String():        256,
				metadata.DescriptorKindCombinedImageSampler.String(): 1024,
				metadata.DescriptorKindStorageBuffer.String():        128,
			},
		},
	}
}

// Load reads path on top of the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data on top of the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%s: %w", strings.TrimSpace(strict.String()), core.ErrInvalidConfiguration)
		}
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, core.ErrInvalidConfiguration)
	}
	if err := c.Bindless.Validate(); err != nil {
		return err
	}
	if _, err := c.Pool.PoolSizes(); err != nil {
		return err
	}
	if c.Pool.MaxSets == 0 {
		return fmt.Errorf("pool max_sets must be positive: %w", core.ErrInvalidConfiguration)
	}
	return nil
}

func (b Bindless) Validate() error {
	if b.FramesInFlight < 2 || b.FramesInFlight > 3 {
		return fmt.Errorf("bindless frames_in_flight %d outside [2, 3]: %w", b.FramesInFlight, core.ErrInvalidConfiguration)
	}
	if b.MaxTextures == 0 {
		return fmt.Errorf("bindless max_textures must be positive: %w", core.ErrInvalidConfiguration)
	}
	if _, err := b.Sampler.Description(); err != nil {
		return err
	}
	return nil
}

// Description turns the sampler settings into a sampler description.
func (s Sampler) Description() (metadata.SamplerDescription, error) {
	d := metadata.DefaultSampler()
	switch s.Filter {
	case "linear", "":
		d.FilterMinify, d.FilterMagnify, d.FilterMip = metadata.TextureFilterModeLinear, metadata.TextureFilterModeLinear, metadata.TextureFilterModeLinear
	case "nearest":
		d.FilterMinify, d.FilterMagnify, d.FilterMip = metadata.TextureFilterModeNearest, metadata.TextureFilterModeNearest, metadata.TextureFilterModeNearest
	default:
		return d, fmt.Errorf("sampler filter %q: %w", s.Filter, core.ErrInvalidConfiguration)
	}

	var repeat metadata.TextureRepeat
	switch s.Repeat {
	case "repeat", "":
		repeat = metadata.TextureRepeatRepeat
	case "mirrored_repeat":
		repeat = metadata.TextureRepeatMirroredRepeat
	case "clamp_to_edge":
		repeat = metadata.TextureRepeatClampToEdge
	case "clamp_to_border":
		repeat = metadata.TextureRepeatClampToBorder
	default:
		return d, fmt.Errorf("sampler repeat %q: %w", s.Repeat, core.ErrInvalidConfiguration)
	}
	d.RepeatU, d.RepeatV, d.RepeatW = repeat, repeat, repeat

	if s.Anisotropy < 0 {
		return d, fmt.Errorf("sampler anisotropy %v: %w", s.Anisotropy, core.ErrInvalidConfiguration)
	}
	d.MaxAnisotropy = max(s.Anisotropy, 1)
	return d, nil
}

// PoolSizes returns the configured sizes ordered by kind.
func (p Pool) PoolSizes() ([]metadata.PoolSize, error) {
	sizes := make([]metadata.PoolSize, 0, len(p.Sizes))
	for name, count := range p.Sizes {
		kind, ok := metadata.ParseDescriptorKind(name)
		if !ok {
			return nil, fmt.Errorf("pool size for unknown descriptor kind %q: %w", name, core.ErrInvalidConfiguration)
		}
		if count > 0 {
			sizes = append(sizes, metadata.PoolSize{Kind: kind, Count: count})
		}
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("pool has no descriptor sizes: %w", core.ErrInvalidConfiguration)
	}
	slices.SortFunc(sizes, func(a, b metadata.PoolSize) int { return int(a.Kind) - int(b.Kind) })
	return sizes, nil
}
