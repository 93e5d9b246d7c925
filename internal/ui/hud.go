//go:build ebiten

// Package ui draws the viewer's parameter panel.
package ui

import (
	"image"
	"image/color"
	"strconv"

	"isingsim/internal/core"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"
)

// HUD renders adjustable parameters with -/+ buttons and a list of
// read-outs to the right of the lattice.
type HUD struct {
	sim     core.Sim
	tunable core.Tunable
	width   int

	panel      *ebiten.Image
	lastHeight int
	pixel      *ebiten.Image

	controls     []controlState
	readouts     []core.Parameter
	panelOffsetX int
	title        string
}

type controlState struct {
	control   core.ParameterControl
	value     float64
	top       int
	minusRect image.Rectangle
	plusRect  image.Rectangle
}

const (
	panelPadding   = 12
	lineHeight     = 36
	readoutHeight  = 18
	buttonSize     = 24
	buttonGap      = 6
	headerBaseline = 14
	controlsTop    = 32
	labelBaseline  = 22
)

var (
	panelBg   = color.RGBA{R: 16, G: 16, B: 20, A: 255}
	titleFg   = color.RGBA{R: 200, G: 200, B: 210, A: 255}
	labelFg   = color.RGBA{R: 220, G: 220, B: 230, A: 255}
	readoutFg = color.RGBA{R: 160, G: 170, B: 180, A: 255}
)

// NewHUD constructs a HUD of the given width. Sims that do not implement
// core.Tunable get a title only.
func NewHUD(sim core.Sim, width int) *HUD {
	h := &HUD{sim: sim, width: max(width, 0), title: sim.Name()}
	if h.width > 0 {
		h.pixel = ebiten.NewImage(1, 1)
		h.pixel.Fill(color.White)
	}
	if t, ok := sim.(core.Tunable); ok {
		h.tunable = t
		for i, c := range t.ParameterControls() {
			top := controlsTop + i*lineHeight
			buttonY := top + (lineHeight-buttonSize)/2
			plus := image.Rect(h.width-panelPadding-buttonSize, buttonY, h.width-panelPadding, buttonY+buttonSize)
			minus := image.Rect(plus.Min.X-buttonGap-buttonSize, buttonY, plus.Min.X-buttonGap, buttonY+buttonSize)
			h.controls = append(h.controls, controlState{control: c, top: top, minusRect: minus, plusRect: plus})
		}
	}
	return h
}

// Update refreshes values and handles clicks on the buttons.
func (h *HUD) Update(panelOffsetX int) {
	if h == nil || h.tunable == nil {
		return
	}
	h.panelOffsetX = panelOffsetX
	for i := range h.controls {
		if v, ok := h.tunable.FloatParameter(h.controls[i].control.Key); ok {
			h.controls[i].value = v
		}
	}
	h.readouts = h.tunable.Parameters()

	if !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return
	}
	mx, my := ebiten.CursorPosition()
	px := mx - h.panelOffsetX
	for i := range h.controls {
		st := &h.controls[i]
		switch {
		case pointInRect(px, my, st.minusRect):
			h.adjust(st, -1)
			return
		case pointInRect(px, my, st.plusRect):
			h.adjust(st, 1)
			return
		}
	}
}

func (h *HUD) adjust(st *controlState, direction int) {
	if !st.control.CanStep(st.value, direction) {
		return
	}
	target := st.control.Clamp(st.value + float64(direction)*st.control.Step)
	if h.tunable.SetFloatParameter(st.control.Key, target) {
		st.value = target
	}
}

// Draw paints the panel at offsetX.
func (h *HUD) Draw(screen *ebiten.Image, offsetX, scale int) {
	if h == nil || h.width <= 0 {
		return
	}
	height := h.sim.Size().H * max(scale, 1)
	if height <= 0 {
		return
	}
	if h.panel == nil || h.lastHeight != height {
		h.panel = ebiten.NewImage(h.width, height)
		h.lastHeight = height
	}
	h.panel.Fill(panelBg)

	face := basicfont.Face7x13
	text.Draw(h.panel, h.title, face, panelPadding, panelPadding+headerBaseline, titleFg)
	for i := range h.controls {
		st := &h.controls[i]
		y := st.top + labelBaseline
		text.Draw(h.panel, st.control.Label, face, panelPadding, y, labelFg)
		value := strconv.FormatFloat(st.value, 'f', 2, 64)
		valueX := st.minusRect.Min.X - buttonGap - text.BoundString(face, value).Dx()
		text.Draw(h.panel, value, face, valueX, y, labelFg)
		h.drawButton(st.minusRect, "-", st.control.CanStep(st.value, -1))
		h.drawButton(st.plusRect, "+", st.control.CanStep(st.value, 1))
	}

	y := controlsTop + len(h.controls)*lineHeight + readoutHeight
	for _, p := range h.readouts {
		text.Draw(h.panel, p.Label+": "+p.Value, face, panelPadding, y, readoutFg)
		y += readoutHeight
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(offsetX), 0)
	screen.DrawImage(h.panel, op)
}

func (h *HUD) drawButton(rect image.Rectangle, label string, enabled bool) {
	bg := color.RGBA{R: 54, G: 56, B: 64, A: 255}
	fg := color.RGBA{R: 230, G: 230, B: 240, A: 255}
	if !enabled {
		bg = color.RGBA{R: 32, G: 34, B: 40, A: 255}
		fg = color.RGBA{R: 120, G: 120, B: 130, A: 255}
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(rect.Dx()), float64(rect.Dy()))
	op.GeoM.Translate(float64(rect.Min.X), float64(rect.Min.Y))
	op.ColorScale.ScaleWithColor(bg)
	h.panel.DrawImage(h.pixel, op)

	face := basicfont.Face7x13
	b := text.BoundString(face, label)
	x := rect.Min.X + (rect.Dx()-b.Dx())/2
	y := rect.Min.Y + (rect.Dy()-b.Dy())/2 + b.Dy()
	text.Draw(h.panel, label, face, x, y, fg)
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}
