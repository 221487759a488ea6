package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/KikinaStudio/kikiscroll/pkg/engine"
	"github.com/KikinaStudio/kikiscroll/pkg/smooth"
)

const meterWidth = 30

var (
	styleTitle = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleText  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleDim   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleMeter = tcell.StyleDefault.Foreground(tcell.NewRGBColor(100, 150, 255))
	styleFade  = tcell.StyleDefault.Foreground(tcell.NewRGBColor(255, 200, 80))
	styleCam   = tcell.StyleDefault.Foreground(tcell.NewRGBColor(50, 255, 50))
)

func (u *ui) draw(s engine.Snapshot, v smooth.View) {
	u.screen.Clear()
	story := u.engine.Config()

	y := 0
	u.text(0, y, styleTitle, fmt.Sprintf("kikiscroll · %s", s.Narrative))
	y += 2

	for i, sec := range story.Sections {
		style := styleDim
		marker := "  "
		if i == s.Section {
			style, marker = styleTitle, "▶ "
		}
		u.text(0, y, style, fmt.Sprintf("%s%d %-14s %s", marker, i, sec.Key, sec.Title))
		y++
	}
	y++

	u.text(0, y, styleText, "progress ")
	u.meter(9, y, s.Progress, styleMeter)
	u.text(10+meterWidth, y, styleText, fmt.Sprintf("%.2f", s.Progress))
	y++
	u.text(0, y, styleText, "page     ")
	u.meter(9, y, s.Scroll, styleMeter)
	u.text(10+meterWidth, y, styleText, fmt.Sprintf("%.2f", s.Scroll))
	y += 2

	state := fmt.Sprintf("isolation %-9s density %d", s.Isolation, s.Density)
	if s.Environment >= 0 {
		state += fmt.Sprintf("  environment %d", s.Environment)
	}
	u.text(0, y, styleText, state)
	y++
	camStyle, cam := styleDim, "off"
	if s.Camera {
		camStyle, cam = styleCam, "on · "+s.Signal
	}
	u.text(0, y, camStyle, "camera "+cam)
	y += 2

	if !s.Started {
		u.text(0, y, styleFade, "press space to start the sound")
		y += 2
	}

	for _, t := range s.Tracks {
		style := styleMeter
		if t.Fading {
			style = styleFade
		}
		u.text(0, y, styleText, fmt.Sprintf("%-15s", t.Track))
		u.meter(16, y, t.Volume, style)
		u.text(17+meterWidth, y, styleText, fmt.Sprintf("%.2f → %.2f", t.Volume, t.Target))
		y++
	}
	y++

	for _, b := range v.Blobs {
		r, g, bl := b.Color.RGB255()
		swatch := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(bl)))
		u.text(0, y, swatch, "●")
		u.text(2, y, styleText, fmt.Sprintf("blob %d  scale %.2f  pos %+.2f %+.2f %+.2f  rot %5.1f°  deform %.2f",
			b.Index, b.Scale, b.Position.X, b.Position.Y, b.Position.Z,
			math.Mod(b.Rotation*180/math.Pi, 360), b.Deform))
		y++
	}
	y++

	u.text(0, y, styleDim, fmt.Sprintf("camera z %.2f  shader scroll %.2f", v.Camera.Position.Z, v.ShaderScroll))
	y += 2

	if u.status != "" {
		u.text(0, y, styleDim, u.status)
		y++
	}
	u.text(0, y, styleDim, "↑/↓ j/k wheel scroll · PgUp/PgDn page · space start · c camera · q quit")

	u.screen.Show()
}

func (u *ui) text(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		u.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func (u *ui) meter(x, y int, v float64, style tcell.Style) {
	filled := int(math.Round(math.Max(0, math.Min(1, v)) * meterWidth))
	for i := range meterWidth {
		r := '░'
		if i < filled {
			r = '█'
		}
		u.screen.SetContent(x+i, y, r, nil, style)
	}
}
