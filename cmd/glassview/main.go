//go:build !tinygo && cgo

// Command glassview shows the glass scene in a window. The scene is rendered
// in software and the resulting surface is drawn as a fullscreen texture.
//
// Drag with the left button to orbit, with the right button to pan and
// scroll to zoom.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"runtime"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/refract"
	"github.com/soypat/refract/render"
)

func init() {
	runtime.LockOSThread() // For GL.
}

const quadVertex = `#version 460
in vec2 aPos;
out vec2 vTexCoord;
void main() {
	// Image rows start at the top.
	vTexCoord = vec2(aPos.x * 0.5 + 0.5, 0.5 - aPos.y * 0.5);
	gl_Position = vec4(aPos, 0.0, 1.0);
}
` + "\x00"

const quadFragment = `#version 460
in vec2 vTexCoord;
out vec4 fragColor;
uniform sampler2D uSurface;
void main() {
	fragColor = texture(uSurface, vTexCoord);
}
` + "\x00"

func main() {
	var (
		configPath = flag.String("config", "", "TOML scene configuration. Defaults are used if empty.")
		meshPath   = flag.String("mesh", "", "mesh file to import, overrides the configuration")
		watch      = flag.Bool("watch", false, "reimport the mesh when its file changes")
		fps        = flag.Float64("fps", 30, "frame rate")
	)
	flag.Parse()
	refract.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg := refract.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = refract.LoadConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if *meshPath != "" {
		cfg.Mesh.Path = *meshPath
	}
	if err := run(cfg, *watch, *fps); err != nil {
		fmt.Fprintln(os.Stderr, "glassview:", err)
		os.Exit(1)
	}
}

func run(cfg refract.Config, watch bool, fps float64) error {
	window, term, err := startGLFW(cfg.Viewport.Width, cfg.Viewport.Height)
	if err != nil {
		return err
	}
	defer term()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The window decides the pixel ratio.
	cfg.Viewport.PixelRatio = pixelRatio(window)
	s, err := refract.Build(ctx, cfg, nil)
	if s == nil {
		return err
	} else if err != nil {
		refract.Logger().Error("continuing without glass", slog.String("err", err.Error()))
	}
	defer s.Close()
	if watch {
		if err := s.WatchMesh(ctx); err != nil {
			return err
		}
	}

	q, err := newQuad()
	if err != nil {
		return err
	}
	bindInput(window, s)
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		winW, winH := w.GetSize()
		s.Pipeline.RequestResize(refract.Viewport{Width: winW, Height: winH, PixelRatio: pixelRatio(w)})
	})

	ticker := refract.NewTicker(fps)
	defer ticker.Stop()
	for !window.ShouldClose() {
		if err := ticker.Next(ctx); err != nil {
			return err
		}
		glfw.PollEvents()
		s.Controls.Update()
		if err := s.Pipeline.Frame(); err != nil {
			refract.Logger().Warn("frame dropped", slog.String("err", err.Error()))
			continue
		}
		fbW, fbH := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(fbW), int32(fbH))
		q.draw(s.Device.Surface())
		window.SwapBuffers()
	}
	return nil
}

func pixelRatio(w *glfw.Window) float64 {
	winW, _ := w.GetSize()
	fbW, _ := w.GetFramebufferSize()
	if winW <= 0 {
		return 1
	}
	return float64(fbW) / float64(winW)
}

// bindInput maps mouse input onto the orbit controls.
func bindInput(window *glfw.Window, s *refract.Setup) {
	var (
		lastX, lastY     float64
		rotating, panned bool
	)
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		pressed := action == glfw.Press
		switch button {
		case glfw.MouseButtonLeft:
			rotating = pressed
		case glfw.MouseButtonRight:
			panned = pressed
		}
		lastX, lastY = w.GetCursorPos()
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		dx, dy := xpos-lastX, ypos-lastY
		lastX, lastY = xpos, ypos
		_, height := w.GetSize()
		switch {
		case rotating:
			s.Controls.RotatePixels(dx, dy, height)
		case panned && height > 0:
			s.Controls.Pan(dx/float64(height), dy/float64(height))
		}
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		s.Controls.Dolly(math.Pow(0.95, yoff))
	})
}

type quad struct {
	prog    glgl.Program
	vao     uint32
	tex     uint32
	surface int32
}

func newQuad() (*quad, error) {
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   quadVertex,
		Fragment: quadFragment,
	})
	if err != nil {
		return nil, err
	}
	prog.Bind()
	q := &quad{prog: prog}
	gl.GenVertexArrays(1, &q.vao)
	gl.BindVertexArray(q.vao)
	var vbo uint32
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	vertices := []float32{
		-1.0, -1.0,
		1.0, -1.0,
		-1.0, 1.0,
		-1.0, 1.0,
		1.0, -1.0,
		1.0, 1.0,
	}
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)
	posAttrib, err := prog.AttribLocation("aPos\x00")
	if err != nil {
		return nil, err
	}
	gl.EnableVertexAttribArray(posAttrib)
	gl.VertexAttribPointer(posAttrib, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))
	q.surface, err = prog.UniformLocation("uSurface\x00")
	if err != nil {
		return nil, err
	}

	gl.GenTextures(1, &q.tex)
	gl.BindTexture(gl.TEXTURE_2D, q.tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	return q, nil
}

// draw uploads the surface and draws it over the whole framebuffer.
func (q *quad) draw(surface *render.Target) {
	img := surface.Image()
	if img == nil {
		return
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	q.prog.Bind()
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, q.tex)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.Uniform1i(q.surface, 0)
	gl.BindVertexArray(q.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
}

func startGLFW(width, height int) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err = glfw.CreateWindow(width, height, "glass", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
