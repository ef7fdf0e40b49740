package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"runtime"
	"time"

	"meshpipe/internal/block"
	"meshpipe/internal/chunk"
	"meshpipe/internal/config"
	"meshpipe/internal/gpu/glbackend"
	"meshpipe/internal/logger"
	"meshpipe/internal/profiling"
	"meshpipe/internal/storage"
	"meshpipe/internal/terrain"
	"meshpipe/internal/world"

	"github.com/faiface/mainthread"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xlab/closer"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	frames     = flag.Int("frames", 0, "stop after this many frames (0 runs until the window closes)")
	orbit      = flag.Int("orbit", 24, "radius in chunks of the focus path")
	editEvery  = flag.Int("edit-every", 120, "frames between scripted block edits (0 disables)")
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

func main() {
	flag.Parse()
	mainthread.Run(run)
}

func run() {
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalln("config:", err)
	}
	lg, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalln("logger:", err)
	}
	defer lg.Sync()

	var window *glfw.Window
	mainthread.Call(func() { window, err = setupWindow() })
	if err != nil {
		lg.Fatal("window setup failed", zap.Error(err))
	}

	stats := profiling.NewStats()
	if cfg.Metrics.Addr != "" {
		serveMetrics(cfg.Metrics.Addr, stats, lg)
	}

	saver, err := storage.Open(cfg.Storage.Path, stats, lg)
	if err != nil {
		lg.Fatal("open chunk storage", zap.Error(err))
	}
	gen := terrain.NewGenerator(cfg.World.Seed, cfg.Terrain)

	sys, err := world.NewSystem(cfg, world.Deps{
		Device:    glbackend.New(),
		Generator: gen,
		Saver:     saver,
		Logger:    lg,
		Stats:     stats,
	})
	if err != nil {
		lg.Fatal("world setup failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	closer.Bind(func() {
		cancel()
		shutdown, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		mainthread.Call(func() {
			if err := sys.Close(shutdown); err != nil {
				lg.Error("saving chunks on shutdown", zap.Error(err))
			}
			window.Destroy()
			glfw.Terminate()
		})
		if err := saver.Close(); err != nil {
			lg.Error("closing chunk storage", zap.Error(err))
		}
		lg.Info("bye")
	})

	loop(ctx, window, sys, gen, stats, lg)
	closer.Close()
}

func loop(ctx context.Context, window *glfw.Window, sys *world.System, gen *terrain.Generator, stats *profiling.Stats, lg *zap.Logger) {
	start := time.Now()
	lastReport := start
	frameCount := 0
	for frame := 0; *frames == 0 || frame < *frames; frame++ {
		if ctx.Err() != nil {
			return
		}
		var shouldClose bool
		mainthread.Call(func() { shouldClose = window.ShouldClose() })
		if shouldClose {
			return
		}

		stats.ResetFrame()
		focus := focusAt(time.Since(start), *orbit)
		res := sys.Update(ctx, focus)
		for _, err := range res.Errors {
			lg.Warn("chunk kept resident", zap.Error(err))
		}

		if *editEvery > 0 && frame > 0 && frame%*editEvery == 0 {
			scriptedEdit(sys, gen, focus, frame, lg)
		}

		var uploaded, drawn int
		mainthread.Call(func() {
			uploaded = sys.ProcessFrame()
			drawn = len(sys.Renderables())
			gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
			window.SwapBuffers()
			glfw.PollEvents()
		})

		frameCount++
		if time.Since(lastReport) >= time.Second {
			lg.Info("frame",
				zap.Int("fps", frameCount),
				zap.Stringer("focus", focus),
				zap.Int("chunks", sys.Store().Len()),
				zap.Int("drawn", drawn),
				zap.Int("uploaded", uploaded),
				zap.Int("requested", res.Requested),
				zap.Int("meshing", res.Meshing),
				zap.Int("unloaded", res.Unloaded),
				zap.String("top", stats.TopN(5)))
			frameCount = 0
			lastReport = time.Now()
		}
	}
}

// focusAt walks the focus around a circle so chunks stream in and out.
func focusAt(elapsed time.Duration, radius int) chunk.Coord {
	angle := elapsed.Seconds() * 0.05
	return chunk.Coord{
		X: int(math.Round(float64(radius) * math.Cos(angle))),
		Z: int(math.Round(float64(radius) * math.Sin(angle))),
	}
}

// scriptedEdit places a sand pillar on the chunk corner next to the focus,
// which touches up to three chunks.
func scriptedEdit(sys *world.System, gen *terrain.Generator, focus chunk.Coord, frame int, lg *zap.Logger) {
	x, z := focus.X*chunk.Width, focus.Z*chunk.Depth
	y := gen.HeightAt(x, z) + 1
	for i := 0; i < 3; i++ {
		err := sys.SetBlock(x, y+i, z, block.Sand)
		if errors.Is(err, world.ErrChunkNotLoaded) {
			return
		}
		if err != nil {
			lg.Warn("scripted edit failed", zap.Int("frame", frame), zap.Error(err))
			return
		}
	}
}

func setupWindow() (*glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize glfw: %w", err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(640, 480, "meshview", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	glfw.SwapInterval(0)
	gl.Enable(gl.DEPTH_TEST)
	gl.ClearColor(0.53, 0.81, 0.92, 1)
	return window, nil
}

func serveMetrics(addr string, stats *profiling.Stats, lg *zap.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(profiling.NewCollector(stats))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		lg.Info("metrics listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
