package export

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/ajstarks/svgo"

	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// RenderSVG writes s as a standalone SVG document. Every mark carries a
// data-key attribute so tests and pages can find it by identity. id, when
// non-empty, becomes the root element's id.
func RenderSVG(w io.Writer, s *scene.Scene, id string) error {
	canvas := svg.New(w)
	width, height := px(s.Width), px(s.Height)
	if id != "" {
		canvas.Start(width, height, attr("id", id))
	} else {
		canvas.Start(width, height)
	}
	if s.Background != "" {
		canvas.Rect(0, 0, width, height, "fill:"+s.Background)
	}
	for _, m := range s.Marks {
		drawMarkSVG(canvas, m)
	}
	canvas.End()
	return nil
}

func drawMarkSVG(canvas *svg.SVG, m scene.Mark) {
	key := attr("data-key", string(m.Key))
	switch m.Kind {
	case scene.KindRect:
		st := fillStyle(m.Attrs)
		if m.R > 0 {
			canvas.Roundrect(px(m.X), px(m.Y), px(m.W), px(m.H), px(m.R), px(m.R), st, key)
			return
		}
		canvas.Rect(px(m.X), px(m.Y), px(m.W), px(m.H), st, key)
	case scene.KindCircle:
		canvas.Circle(px(m.X), px(m.Y), px(m.R), fillStyle(m.Attrs), key)
	case scene.KindLine:
		canvas.Line(px(m.X), px(m.Y), px(m.X2), px(m.Y2), strokeStyle(m.Attrs), key)
	case scene.KindPath:
		canvas.Path(m.Path, pathStyle(m.Attrs), key)
	case scene.KindText:
		drawTextSVG(canvas, m, key)
	}
}

func drawTextSVG(canvas *svg.SVG, m scene.Mark, key string) {
	st := textStyle(m.Attrs)
	lines := strings.Split(m.Text, "\n")
	lineHeight := px(m.FontSize * 1.2)
	if m.Rotate != 0 {
		canvas.TranslateRotate(px(m.X), px(m.Y), m.Rotate)
		for i, line := range lines {
			canvas.Text(0, i*lineHeight, line, st, key)
		}
		canvas.Gend()
		return
	}
	for i, line := range lines {
		canvas.Text(px(m.X), px(m.Y)+i*lineHeight, line, st, key)
	}
}

func fillStyle(a scene.Attrs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fill:%s;opacity:%s", orNone(a.Fill), model.Fixed(a.Opacity, 2))
	if a.Stroke != "" && a.StrokeWidth > 0 {
		fmt.Fprintf(&b, ";stroke:%s;stroke-width:%s", a.Stroke, model.Fixed(a.StrokeWidth, 2))
	}
	return b.String()
}

func strokeStyle(a scene.Attrs) string {
	width := a.StrokeWidth
	if width <= 0 {
		width = 1
	}
	return fmt.Sprintf("stroke:%s;stroke-width:%s;opacity:%s", orNone(a.Stroke), model.Fixed(width, 2), model.Fixed(a.Opacity, 2))
}

func pathStyle(a scene.Attrs) string {
	return fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%s;stroke-opacity:%s;opacity:%s",
		orNone(a.Fill), orNone(a.Stroke), model.Fixed(a.StrokeWidth, 2),
		model.Fixed(a.StrokeOpacity, 2), model.Fixed(a.Opacity, 2))
}

func textStyle(a scene.Attrs) string {
	anchor := a.Anchor
	if anchor == "" {
		anchor = "start"
	}
	return fmt.Sprintf("fill:%s;font-size:%spx;font-family:sans-serif;text-anchor:%s;opacity:%s",
		orNone(a.Fill), model.Fixed(a.FontSize, 0), anchor, model.Fixed(a.Opacity, 2))
}

func orNone(c string) string {
	if c == "" {
		return "none"
	}
	return c
}

// attr builds a raw attribute; svgo passes strings containing '=' through
// unchanged.
func attr(name, value string) string {
	return fmt.Sprintf(`%s="%s"`, name, html.EscapeString(value))
}

func px(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}
