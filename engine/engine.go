// Package engine boots the renderer core from a configuration and drives it
// one frame at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spaghettifunk/resident/engine/assets"
	"github.com/spaghettifunk/resident/engine/config"
	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer"
	"github.com/spaghettifunk/resident/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it owned
	EngineStageStopped
)

const targetFrameSeconds float64 = 1.0 / 60.0

type Options struct {
	// ConfigPath is loaded and watched for log level changes when set.
	ConfigPath string
	// Config is used when ConfigPath is empty. Nil means config.Default().
	Config *config.Config
	// Backend is the device the renderer drives.
	Backend renderer.Backend
	// Registerer receives the engine metrics. Nil turns metrics off.
	Registerer prometheus.Registerer
	// Workers decode textures in the background. Zero decodes inline.
	Workers int
	// LimitFrames sleeps away what is left of a 60Hz frame in Run.
	LimitFrames bool
}

type Engine struct {
	currentStage Stage
	options      Options
	config       config.Config

	metrics      *core.Metrics
	renderer     *renderer.Renderer
	jobs         *systems.JobSystem
	textures     *systems.TextureSystem
	assetManager *assets.AssetManager

	clock      *core.Clock
	lastTime   float64
	frameCount uint64
}

func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("engine without a renderer backend: %w", core.ErrInvalidConfiguration)
	}
	cfg := config.Default()
	switch {
	case opts.ConfigPath != "":
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			core.LogError(err.Error())
			return nil, err
		}
		cfg = loaded
	case opts.Config != nil:
		if err := opts.Config.Validate(); err != nil {
			return nil, err
		}
		cfg = *opts.Config
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	var metrics *core.Metrics
	if opts.Registerer != nil {
		metrics = core.NewMetrics(opts.Registerer)
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		options:      opts,
		config:       cfg,
		metrics:      metrics,
		clock:        core.NewClock(),
	}, nil
}

func (e *Engine) Initialize() (err error) {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("initialize in stage %s: %w", e.currentStage, core.ErrLogic)
	}
	e.currentStage = EngineStageInitializing
	defer func() {
		if err != nil {
			core.LogError("engine initialization failed: %s", err)
			err = errors.Join(err, e.shutdown())
		}
	}()

	if e.renderer, err = renderer.New(e.config, e.options.Backend, e.metrics); err != nil {
		return err
	}
	if e.options.Workers > 0 {
		if e.jobs, err = systems.NewJobSystem(e.options.Workers, int(e.config.Bindless.MaxTextures)); err != nil {
			return err
		}
	}
	if e.textures, err = systems.NewTextureSystem(systems.TextureSystemConfig{
		MaxTextureCount: e.config.Bindless.MaxTextures,
	}, e.renderer.Textures(), e.jobs); err != nil {
		return err
	}
	if err = e.textures.Initialize(); err != nil {
		return err
	}

	if e.config.Assets.Directory != "" || e.options.ConfigPath != "" {
		if e.assetManager, err = assets.NewAssetManager(); err != nil {
			return err
		}
		if dir := e.config.Assets.Directory; dir != "" {
			if err = e.assetManager.Initialize(dir); err != nil {
				return err
			}
		}
		if e.options.ConfigPath != "" {
			if err = e.assetManager.WatchFile(e.options.ConfigPath); err != nil {
				return err
			}
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized")
	return nil
}

// Frame runs one frame: finished background loads, queued asset changes and
// the renderer frame signal, in this order.
func (e *Engine) Frame() error {
	switch e.currentStage {
	case EngineStageInitialized:
		e.clock.Start()
		e.lastTime = 0
		e.currentStage = EngineStageRunning
	case EngineStageRunning:
	default:
		return fmt.Errorf("frame in stage %s: %w", e.currentStage, core.ErrLogic)
	}
	frameStartTime := time.Now()

	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := currentTime - e.lastTime

	if e.jobs != nil {
		e.jobs.Update()
	}
	e.applyAssetChanges()
	if err := e.renderer.BeginFrame(); err != nil {
		core.LogError("frame %d: %s", e.frameCount, err)
		return err
	}

	e.metrics.FrameUpdate(time.Since(frameStartTime).Seconds())
	e.frameCount++
	e.lastTime = currentTime
	if e.frameCount%600 == 0 {
		fps, ms := e.metrics.Frame()
		core.LogDebug("frame %d: delta %.4fs, %.0f fps, %.3f ms", e.frameCount, delta, fps, ms)
	}
	return nil
}

// Run calls Frame until ctx is done or maxFrames frames ran. Zero means no
// limit.
func (e *Engine) Run(ctx context.Context, maxFrames uint64) error {
	for maxFrames == 0 || e.frameCount < maxFrames {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		frameStartTime := time.Now()
		if err := e.Frame(); err != nil {
			return err
		}
		remaining := targetFrameSeconds - time.Since(frameStartTime).Seconds()
		if e.options.LimitFrames && remaining > 0 {
			// If there is time left, give it back to the OS.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(remaining * float64(time.Second))):
			}
		}
	}
	return nil
}

// LoadTexture loads the indexed image asset name into a texture of the same
// name. Later edits of the file are reloaded by Frame.
func (e *Engine) LoadTexture(name string) (*systems.Texture, error) {
	if e.textures == nil {
		return nil, fmt.Errorf("load of texture '%s' before initialize: %w", name, core.ErrLogic)
	}
	if e.assetManager == nil {
		return nil, fmt.Errorf("texture '%s' with no asset directory: %w", name, core.ErrNotFound)
	}
	info, ok := e.assetManager.Lookup(name)
	if !ok || info.Kind != assets.KindImage {
		return nil, fmt.Errorf("image asset '%s': %w", name, core.ErrNotFound)
	}
	return e.textures.Load(name, info.Path)
}

func (e *Engine) applyAssetChanges() {
	if e.assetManager == nil {
		return
	}
	for _, c := range e.assetManager.Changes() {
		switch c.Asset.Kind {
		case assets.KindImage:
			if c.Op == assets.ChangeRemoved {
				continue
			}
			if _, ok := e.textures.Get(c.Asset.Name); !ok {
				continue
			}
			if err := e.textures.Reload(c.Asset.Name, c.Asset.Path); err != nil {
				core.LogError("reload of texture '%s': %s", c.Asset.Name, err)
			}
		case assets.KindConfig:
			if c.Op == assets.ChangeRemoved {
				continue
			}
			e.reloadConfig(c.Asset.Path)
		}
	}
}

// reloadConfig applies the log level of the file at path. The other sections
// only take effect on restart.
func (e *Engine) reloadConfig(path string) {
	cfg, err := config.Load(path)
	if err != nil {
		core.LogWarn("config reload ignored: %s", err)
		return
	}
	if cfg.Log.Level == e.config.Log.Level {
		return
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		core.LogWarn("config reload ignored: %s", err)
		return
	}
	core.LogInfo("log level changed from %s to %s", e.config.Log.Level, cfg.Log.Level)
	e.config.Log = cfg.Log
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageStopped {
		return nil
	}
	return e.shutdown()
}

func (e *Engine) shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error
	if e.assetManager != nil {
		errs = append(errs, e.assetManager.Close())
	}
	if e.jobs != nil {
		errs = append(errs, e.jobs.Shutdown())
	}
	if e.textures != nil {
		errs = append(errs, e.textures.Shutdown())
	}
	if e.renderer != nil {
		errs = append(errs, e.renderer.Shutdown())
	}
	e.clock.Stop()
	e.currentStage = EngineStageStopped
	core.LogInfo("engine stopped after %d frames", e.frameCount)
	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Config() config.Config {
	return e.config
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Textures() *systems.TextureSystem {
	return e.textures
}

// Assets is nil when neither an asset directory nor a config file is watched.
func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func (e *Engine) FrameCount() uint64 {
	return e.frameCount
}

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	default:
		return "stopped"
	}
}
