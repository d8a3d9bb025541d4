// Command glassrender renders the glass scene headlessly and writes the
// final frame to a PNG file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/refract"
	"github.com/soypat/refract/scene"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML scene configuration. Defaults are used if empty.")
		output     = flag.String("o", "glass.png", "output PNG file")
		frames     = flag.Int("frames", 1, "number of frames to render")
		meshPath   = flag.String("mesh", "", "mesh file to import, overrides the configuration")
		width      = flag.Int("width", 0, "viewport width, overrides the configuration")
		height     = flag.Int("height", 0, "viewport height, overrides the configuration")
		timeout    = flag.Duration("timeout", time.Minute, "time to wait for the mesh import")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	refract.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*configPath, *output, *meshPath, *frames, *width, *height, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "glassrender:", err)
		os.Exit(1)
	}
}

func run(configPath, output, meshPath string, frames, width, height int, timeout time.Duration) error {
	cfg := refract.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = refract.LoadConfig(configPath)
		if err != nil {
			return err
		}
	}
	if meshPath != "" {
		cfg.Mesh.Path = meshPath
	}
	if width > 0 {
		cfg.Viewport.Width = width
	}
	if height > 0 {
		cfg.Viewport.Height = height
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	s, err := refract.Build(ctx, cfg, nil)
	if s == nil {
		return err
	} else if err != nil {
		refract.Logger().Error("continuing without glass", slog.String("err", err.Error()))
	}
	defer s.Close()

	if s.Mesh != nil {
		// Continuations run in order, so this one follows the scene insert.
		inserted := make(chan struct{})
		s.Mesh.Then(func(*scene.Node, error) { close(inserted) })
		select {
		case <-inserted:
		case <-time.After(timeout):
			refract.Logger().Warn("mesh import timed out", slog.String("path", cfg.Mesh.Path))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	start := time.Now()
	err = s.Pipeline.Run(ctx, &refract.FrameLimit{Frames: frames})
	if err != nil {
		return err
	}
	st := s.Pipeline.Stats()
	refract.Logger().Info("rendered",
		slog.Uint64("frames", st.Rendered),
		slog.Uint64("dropped", st.Dropped),
		slog.Duration("elapsed", time.Since(start)),
	)
	if st.Rendered == 0 {
		return fmt.Errorf("no frame rendered")
	}
	if err := fauxgl.SavePNG(output, s.Device.Surface().Image()); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	return nil
}
