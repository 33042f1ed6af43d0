/*
This is an example of application that will use the
engine package on the software backend and print what it did
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spaghettifunk/resident/engine"
	"github.com/spaghettifunk/resident/engine/assets"
	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/software"
)

func main() {
	configPath := flag.String("config", "", "TOML configuration, watched for log level changes")
	frames := flag.Uint64("frames", 120, "frames to run, 0 runs until interrupted")
	metricsAddr := flag.String("metrics", "", "address to serve prometheus metrics on, e.g. :9090")
	flag.Parse()

	if err := run(*configPath, *frames, *metricsAddr); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}

func run(configPath string, frames uint64, metricsAddr string) error {
	reg := prometheus.NewRegistry()
	backend := software.New(software.DefaultOptions())
	e, err := engine.New(engine.Options{
		ConfigPath:  configPath,
		Backend:     backend,
		Registerer:  reg,
		Workers:     2,
		LimitFrames: true,
	})
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				core.LogError("metrics server: %s", err)
			}
		}()
		defer srv.Close()
	}

	if am := e.Assets(); am != nil {
		for _, info := range am.Assets(assets.KindImage) {
			if _, err := e.LoadTexture(info.Name); err != nil {
				core.LogWarn("skipping texture %s: %s", info.Name, err)
			}
		}
	}

	// capture sigterm and other system call here
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := e.Run(ctx, frames)
	textures := e.Renderer().Textures()
	fmt.Printf("frames:           %d\n", e.FrameCount())
	fmt.Printf("textures:         %d (%d slots, %d free)\n", e.Textures().Len(), textures.Len(), textures.FreeCount())
	fmt.Printf("cached objects:   %d\n", e.Renderer().Storage().Len())
	fmt.Printf("descriptor pools: %d\n", e.Renderer().Pools().PoolCount())
	fmt.Printf("backend objects:  %d\n", backend.Live())
	return errors.Join(runErr, e.Shutdown())
}
