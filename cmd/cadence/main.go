package main

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gobuffalo/envy"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	"golang.org/x/sync/errgroup"

	"github.com/cadence-vk/cadence"
	"github.com/cadence-vk/cadence/render"
)

func configFromEnv() render.Config {
	cfg := render.DefaultConfig()
	cfg.AppName = envy.Get("CADENCE_APP_NAME", cfg.AppName)
	cfg.ShaderDir = envy.Get("CADENCE_SHADER_DIR", cfg.ShaderDir)
	cfg.MeshPath = envy.Get("CADENCE_MESH", cfg.MeshPath)
	cfg.MaterialPath = envy.Get("CADENCE_MATERIAL", cfg.MaterialPath)
	cfg.TexturePath = envy.Get("CADENCE_TEXTURE", cfg.TexturePath)
	cfg.PipelineCachePath = envy.Get("CADENCE_PIPELINE_CACHE", cfg.PipelineCachePath)

	if frames, err := strconv.Atoi(envy.Get("CADENCE_FRAMES_IN_FLIGHT", "")); err == nil && frames > 0 {
		cfg.FramesInFlight = frames
	}
	if validation, err := strconv.ParseBool(envy.Get("CADENCE_VALIDATION", "true")); err == nil {
		cfg.EnableValidation = validation
	}

	return cfg
}

func windowSizeFromEnv() (int32, int32) {
	width, err := strconv.Atoi(envy.Get("CADENCE_WINDOW_WIDTH", "800"))
	if err != nil || width <= 0 {
		width = 800
	}
	height, err := strconv.Atoi(envy.Get("CADENCE_WINDOW_HEIGHT", "600"))
	if err != nil || height <= 0 {
		height = 600
	}
	return int32(width), int32(height)
}

// renderLoop drives the frame scheduler until Stop is raised or a frame
// fails. It runs on its own goroutine; the main thread owns the SDL event
// queue.
func renderLoop(ctx context.Context, sched *cadence.Scheduler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		image, ok, err := sched.BeginFrame()
		if errors.Is(err, cadence.ErrStopped) {
			return nil
		}
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if err := sched.EndFrame(image); err != nil {
			return err
		}
	}
}

func run() error {
	if level, err := log.ParseLevel(envy.Get("CADENCE_LOG_LEVEL", "info")); err == nil {
		log.SetLevel(level)
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return err
	}
	defer sdl.Quit()

	cfg := configFromEnv()

	width, height := windowSizeFromEnv()
	window, err := sdl.CreateWindow(cfg.AppName, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		width, height, sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return err
	}
	defer window.Destroy()

	renderer, err := render.New(window, cfg)
	if err != nil {
		return err
	}
	defer renderer.Close()

	sched, err := cadence.NewScheduler(cadence.Config{
		Device:         renderer,
		Swapchain:      renderer,
		Resources:      renderer,
		Platform:       renderer,
		FramesInFlight: cfg.FramesInFlight,
	})
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(context.Background())
	group.Go(func() error {
		return renderLoop(ctx, sched)
	})

	// The window's thread owns the event queue. Resize and restore events
	// only flip the scheduler's stale flag; the render goroutine does the
	// actual rebuild at its next frame boundary. Quit raises Stop, which the
	// render goroutine observes even while parked on a minimized window.
eventLoop:
	for {
		if ctx.Err() != nil {
			break
		}

		event := sdl.WaitEventTimeout(50)
		if event == nil {
			continue
		}

		switch e := event.(type) {
		case *sdl.QuitEvent:
			break eventLoop
		case *sdl.WindowEvent:
			switch e.Event {
			case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
				sched.MarkStale()
			}
		}
	}
	sched.Stop()

	return group.Wait()
}

func main() {
	// SDL event handling must stay on the thread that initialized it.
	runtime.LockOSThread()

	if err := run(); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}
