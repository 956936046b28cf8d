package opengl

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"runtime"
	"time"

	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/soerenfi/raytracing/log"
	"github.com/soerenfi/raytracing/renderer"
	"github.com/soerenfi/raytracing/types"
)

const (
	// Height in pixels for stacked series widgets
	stackedSeriesHeight = 40

	// Max delay between the clicks of a double click.
	doubleClickDelay = 300 * time.Millisecond
)

func init() {
	// glfw event handling must run on the main thread
	runtime.LockOSThread()
}

// Window presents the images produced by a renderer and forwards window
// input to it.
type Window struct {
	logger log.Logger
	r      *renderer.Renderer

	// opengl handles
	window *glfw.Window
	tex    uint32
	texFbo uint32
	texW   int
	texH   int

	title     string
	lastClick time.Time

	// Render and tonemap time per frame
	timeSeries *stackedSeries
}

// Open a w x h window that drives r.
func NewWindow(r *renderer.Renderer, w, h int) (*Window, error) {
	win := &Window{
		logger: log.New("window"),
		r:      r,
	}

	if err := win.initGL(w, h); err != nil {
		win.Close()
		return nil, err
	}
	win.timeSeries = makeStackedSeries(2, w)
	return win, nil
}

func (w *Window) initGL(width, height int) error {
	var err error
	if err = glfw.Init(); err != nil {
		return fmt.Errorf("opengl: failed to initialize glfw: %s", err.Error())
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	w.window, err = glfw.CreateWindow(width, height, "raytracing", nil, nil)
	if err != nil {
		return fmt.Errorf("opengl: could not create window: %s", err.Error())
	}
	w.window.MakeContextCurrent()
	glfw.SwapInterval(0)

	if err = gl.Init(); err != nil {
		return fmt.Errorf("opengl: could not init opengl: %s", err.Error())
	}

	// Setup texture for image data
	gl.GenTextures(1, &w.tex)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, w.tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	w.allocTexture(width, height)

	// Attach texture to FBO
	gl.GenFramebuffers(1, &w.texFbo)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, w.texFbo)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, w.tex, 0)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	// Bind event callbacks
	w.window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	w.window.SetKeyCallback(w.onKeyEvent)
	w.window.SetMouseButtonCallback(w.onMouseEvent)
	w.window.SetCursorPosCallback(w.onCursorPosEvent)
	w.window.SetDropCallback(w.onDropEvent)
	w.window.SetFramebufferSizeCallback(w.onResizeEvent)

	w.setupOrtho(width, height)
	return nil
}

func (w *Window) allocTexture(width, height int) {
	w.texW, w.texH = width, height
	gl.BindTexture(gl.TEXTURE_2D, w.tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
}

// Setup ortho projection for UI bits
func (w *Window) setupOrtho(width, height int) {
	gl.Disable(gl.DEPTH_TEST)
	gl.MatrixMode(gl.PROJECTION)
	gl.LoadIdentity()
	gl.Ortho(0, float64(width), float64(height), 0, -1, 1)
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.MatrixMode(gl.MODELVIEW)
	gl.LoadIdentity()
}

// Run the render loop until the window is closed, the user quits or ctx is
// cancelled.
func (w *Window) Run(ctx context.Context) error {
	for !w.window.ShouldClose() && !w.r.ShouldQuit() {
		glfw.PollEvents()

		res, err := w.r.Frame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		w.present(res.Image)
		if w.r.ShowStats() && !res.Busy {
			w.renderUI(res.Image.Rect.Dx(), res.Image.Rect.Dy())
		}

		if title := w.r.Title(); title != w.title {
			w.title = title
			w.window.SetTitle(title)
		}
		w.window.SwapBuffers()
	}
	return nil
}

// Upload img and blit it to the default framebuffer.
func (w *Window) present(img *image.RGBA) {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	if width != w.texW || height != w.texH {
		w.allocTexture(width, height)
	}

	gl.BindTexture(gl.TEXTURE_2D, w.tex)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))

	// The image is stored top-down; flip Y while copying
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, w.texFbo)
	gl.BlitFramebuffer(0, 0, int32(width), int32(height), 0, int32(height), int32(width), 0, gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
}

func (w *Window) renderUI(width, height int) {
	stats := w.r.Stats()
	w.timeSeries.Append(0, float32(stats.RenderTime.Microseconds()))
	w.timeSeries.Append(1, float32(stats.TonemapTime.Microseconds()))

	// Outline the render region
	region := w.r.Region()
	gl.LineWidth(2.0)
	gl.Color3f(1, 1, 0)
	gl.Begin(gl.LINE_LOOP)
	gl.Vertex2i(int32(region.X), int32(region.Y))
	gl.Vertex2i(int32(region.X+region.W-1), int32(region.Y))
	gl.Vertex2i(int32(region.X+region.W-1), int32(region.Y+region.H-1))
	gl.Vertex2i(int32(region.X), int32(region.Y+region.H-1))
	gl.End()

	w.timeSeries.Render(height-stackedSeriesHeight, stackedSeriesHeight)
}

// Release the window. Safe to call on a partially initialized window.
func (w *Window) Close() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	glfw.Terminate()
}

func (w *Window) onKeyEvent(win *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	w.r.OnKey(mapKey(key), mapAction(action))
	if w.r.ShouldQuit() {
		win.SetShouldClose(true)
	}
}

func (w *Window) onMouseEvent(win *glfw.Window, button glfw.MouseButton, action glfw.Action, mod glfw.ModifierKey) {
	var mapped renderer.MouseButton
	switch button {
	case glfw.MouseButtonLeft:
		mapped = renderer.MouseLeft
	case glfw.MouseButtonMiddle:
		mapped = renderer.MouseMiddle
	case glfw.MouseButtonRight:
		mapped = renderer.MouseRight
	default:
		return
	}

	xPos, yPos := win.GetCursorPos()
	w.r.OnCursor(float32(xPos), float32(yPos))
	w.r.OnMouseButton(mapped, mapAction(action))

	if action == glfw.Press && mapped == renderer.MouseLeft {
		now := time.Now()
		if now.Sub(w.lastClick) < doubleClickDelay {
			w.r.OnDoubleClick()
		}
		w.lastClick = now
	}
}

func (w *Window) onCursorPosEvent(win *glfw.Window, xPos, yPos float64) {
	w.r.OnCursor(float32(xPos), float32(yPos))
}

// Only the first dropped file is loaded.
func (w *Window) onDropEvent(win *glfw.Window, names []string) {
	if len(names) == 0 {
		return
	}
	if len(names) > 1 {
		w.logger.Warningf("ignoring %d additional dropped files", len(names)-1)
	}
	if err := w.r.LoadAsset(names[0]); err != nil {
		w.logger.Warningf("could not load %s: %s", names[0], err.Error())
	}
}

func (w *Window) onResizeEvent(win *glfw.Window, width, height int) {
	if width < 1 || height < 1 {
		return
	}
	w.r.Resize(width, height)
	w.setupOrtho(width, height)
	w.timeSeries = makeStackedSeries(2, width)
}

func mapAction(action glfw.Action) renderer.Action {
	switch action {
	case glfw.Press:
		return renderer.Press
	case glfw.Repeat:
		return renderer.Repeat
	}
	return renderer.Release
}

func mapKey(key glfw.Key) renderer.Key {
	switch key {
	case glfw.KeyHome:
		return renderer.KeyHome
	case glfw.KeyF:
		return renderer.KeyF
	case glfw.KeySpace:
		return renderer.KeySpace
	case glfw.KeyR:
		return renderer.KeyR
	case glfw.KeyTab:
		return renderer.KeyTab
	case glfw.KeyA:
		return renderer.KeyA
	case glfw.Key1:
		return renderer.Key1
	case glfw.Key2:
		return renderer.Key2
	case glfw.KeyH:
		return renderer.KeyH
	case glfw.KeyD:
		return renderer.KeyD
	case glfw.KeyS:
		return renderer.KeyS
	case glfw.KeyEqual, glfw.KeyKPAdd:
		return renderer.KeyPlus
	case glfw.KeyMinus, glfw.KeyKPSubtract:
		return renderer.KeyMinus
	case glfw.KeyEscape:
		return renderer.KeyEscape
	}
	return renderer.KeyUnknown
}

type stackedSeries struct {
	series [][]float32
	colors []types.Vec3
}

func makeStackedSeries(numSeries, histCount int) *stackedSeries {
	s := &stackedSeries{
		series: make([][]float32, numSeries),
		colors: make([]types.Vec3, numSeries),
	}

	for sIndex := 0; sIndex < numSeries; sIndex++ {
		s.series[sIndex] = make([]float32, histCount)
		s.colors[sIndex] = types.Vec3{rand.Float32(), rand.Float32(), 1.0}
	}

	return s
}

// Shift series values and append new value at the end.
func (s *stackedSeries) Append(seriesIndex int, val float32) {
	s.series[seriesIndex] = append(s.series[seriesIndex][1:], val)
}

func (s *stackedSeries) Render(rY, rHeight int) {
	gl.LineWidth(1.0)
	gl.Begin(gl.LINES)
	for x := 0; x < len(s.series[0]); x++ {
		var sum float32 = 0
		var scale float32 = 1.0
		for seriesIndex := 0; seriesIndex < len(s.series); seriesIndex++ {
			sum += s.series[seriesIndex][x]
		}
		if sum > 0.0 {
			scale = float32(rHeight) / sum
		}

		var y float32 = float32(rY)
		for seriesIndex := 0; seriesIndex < len(s.series); seriesIndex++ {
			sH := s.series[seriesIndex][x] * scale
			gl.Color3fv(&s.colors[seriesIndex][0])
			gl.Vertex2f(float32(x), y)
			gl.Vertex2f(float32(x), y+sH)
			y += sH
		}
	}
	gl.End()
}
