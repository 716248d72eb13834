package export

import (
	"image/color"
	"io"
	"strconv"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// RenderPNG rasterizes s. Text uses the fixed 7x13 face regardless of the
// mark's font size.
func RenderPNG(w io.Writer, s *scene.Scene) error {
	dc := gg.NewContext(px(s.Width), px(s.Height))
	if s.Background != "" {
		dc.SetColor(ParseColor(s.Background, 1))
		dc.Clear()
	}
	dc.SetFontFace(basicfont.Face7x13)
	for _, m := range s.Marks {
		drawMarkPNG(dc, m)
	}
	return dc.EncodePNG(w)
}

func drawMarkPNG(dc *gg.Context, m scene.Mark) {
	switch m.Kind {
	case scene.KindRect:
		if m.R > 0 {
			dc.DrawRoundedRectangle(m.X, m.Y, m.W, m.H, m.R)
		} else {
			dc.DrawRectangle(m.X, m.Y, m.W, m.H)
		}
		fillAndStroke(dc, m.Attrs)
	case scene.KindCircle:
		dc.DrawCircle(m.X, m.Y, m.R)
		fillAndStroke(dc, m.Attrs)
	case scene.KindLine:
		dc.SetColor(ParseColor(m.Stroke, m.Opacity))
		dc.SetLineWidth(lineWidth(m.StrokeWidth))
		dc.DrawLine(m.X, m.Y, m.X2, m.Y2)
		dc.Stroke()
	case scene.KindPath:
		if len(m.Points) < 2 || m.Stroke == "" {
			return
		}
		dc.MoveTo(m.Points[0][0], m.Points[0][1])
		for _, p := range m.Points[1:] {
			dc.LineTo(p[0], p[1])
		}
		dc.SetColor(ParseColor(m.Stroke, m.Opacity*m.StrokeOpacity))
		dc.SetLineWidth(lineWidth(m.StrokeWidth))
		dc.Stroke()
	case scene.KindText:
		drawTextPNG(dc, m)
	}
}

func fillAndStroke(dc *gg.Context, a scene.Attrs) {
	stroke := a.Stroke != "" && a.StrokeWidth > 0
	if a.Fill != "" && a.Fill != "none" {
		dc.SetColor(ParseColor(a.Fill, a.Opacity))
		if stroke {
			dc.FillPreserve()
		} else {
			dc.Fill()
		}
	}
	if stroke {
		dc.SetColor(ParseColor(a.Stroke, a.Opacity))
		dc.SetLineWidth(a.StrokeWidth)
		dc.Stroke()
	}
	dc.ClearPath()
}

func drawTextPNG(dc *gg.Context, m scene.Mark) {
	ax := 0.0
	switch m.Anchor {
	case "middle":
		ax = 0.5
	case "end":
		ax = 1
	}
	dc.SetColor(ParseColor(m.Fill, m.Opacity))
	dc.Push()
	if m.Rotate != 0 {
		dc.RotateAbout(gg.Radians(m.Rotate), m.X, m.Y)
	}
	for i, line := range strings.Split(m.Text, "\n") {
		dc.DrawStringAnchored(line, m.X, m.Y+float64(i)*15, ax, 0)
	}
	dc.Pop()
}

func lineWidth(w float64) float64 {
	if w <= 0 {
		return 1
	}
	return w
}

var namedColors = map[string]color.RGBA{
	"black": {0, 0, 0, 0xff},
	"white": {0xff, 0xff, 0xff, 0xff},
}

// ParseColor reads #rgb, #rrggbb or a few names. Unknown values are black.
func ParseColor(s string, opacity float64) color.NRGBA {
	c, ok := namedColors[strings.ToLower(s)]
	if !ok {
		c = color.RGBA{A: 0xff}
		hex := strings.TrimPrefix(s, "#")
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 {
			if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
				c = color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
			}
		}
	}
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(opacity*255 + 0.5)}
}
