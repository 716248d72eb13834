package chart

import (
	"math"

	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/scale"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

const tickSize = 6

// bandAxis draws a bottom axis for a band scale. Ticks are keyed by category
// so that reordering animates them with the bars.
func bandAxis(layer string, b *scale.Band, r0, r1, y float64, rotate bool) []scene.Mark {
	marks := []scene.Mark{axisDomain(layer, r0, y, r1, y, 0, tickSize)}
	domain := b.Domain()
	for _, v := range domain {
		x, _ := b.Center(v)
		marks = append(marks, scene.Line(scene.MakeKey(layer, "tick-"+v), x, y, x, y+tickSize, TextColor))
		label := scene.Text(scene.MakeKey(layer, "label-"+v), x, y+tickSize+3+0.71*tickFontSize, v, TextColor, "middle", tickFontSize)
		if rotate {
			label.Anchor = "end"
			label.Rotate = -45
		}
		marks = append(marks, label)
	}
	return marks
}

// bottomAxis draws a linear bottom axis.
func bottomAxis(layer string, s *scale.Linear, y float64, count int) []scene.Mark {
	r0, r1 := s.Range()
	marks := []scene.Mark{axisDomain(layer, r0, y, r1, y, 0, tickSize)}
	d0, d1 := s.Domain()
	decimals := tickDecimals(d0, d1, count)
	for _, v := range s.Ticks(count) {
		x := s.Scale(v)
		text := model.Fixed(v, decimals)
		marks = append(marks,
			scene.Line(scene.MakeKey(layer, "tick-"+text), x, y, x, y+tickSize, TextColor),
			scene.Text(scene.MakeKey(layer, "label-"+text), x, y+tickSize+3+0.71*tickFontSize, text, TextColor, "middle", tickFontSize),
		)
	}
	return marks
}

// leftAxis draws a linear left axis at x.
func leftAxis(layer string, s *scale.Linear, x float64, count int) []scene.Mark {
	r0, r1 := s.Range()
	marks := []scene.Mark{axisDomain(layer, x, r0, x, r1, -tickSize, 0)}
	d0, d1 := s.Domain()
	decimals := tickDecimals(d0, d1, count)
	for _, v := range s.Ticks(count) {
		y := s.Scale(v)
		text := model.Fixed(v, decimals)
		marks = append(marks,
			scene.Line(scene.MakeKey(layer, "tick-"+text), x-tickSize, y, x, y, TextColor),
			scene.Text(scene.MakeKey(layer, "label-"+text), x-tickSize-3, y+0.32*tickFontSize, text, TextColor, "end", tickFontSize),
		)
	}
	return marks
}

// axisDomain is the axis baseline with outer ticks. (dx, dy) is the direction
// of the outer ticks.
func axisDomain(layer string, x0, y0, x1, y1, dx, dy float64) scene.Mark {
	var d string
	if dy != 0 {
		d = "M" + num(x0) + "," + num(y0+dy) + "V" + num(y0) + "H" + num(x1) + "V" + num(y1+dy)
	} else {
		d = "M" + num(x0+dx) + "," + num(y0) + "H" + num(x0) + "V" + num(y1) + "H" + num(x1+dx)
	}
	pts := [][2]float64{{x0 + dx, y0 + dy}, {x0, y0}, {x1, y1}, {x1 + dx, y1 + dy}}
	return scene.Path(scene.MakeKey(layer, "domain"), d, pts, TextColor, 1)
}

func tickDecimals(d0, d1 float64, count int) int {
	inc := scale.TickIncrement(math.Min(d0, d1), math.Max(d0, d1), count)
	if inc >= 0 || math.IsNaN(inc) {
		return 0
	}
	return int(math.Ceil(math.Log10(-inc) - 1e-9))
}

func num(v float64) string {
	return model.Fixed(v, 2)
}

// title draws a centered chart title.
func title(layer string, width, y float64, text string, size float64) scene.Mark {
	return scene.Text(scene.MakeKey(layer, "title"), width/2, y, text, TextColor, "middle", size)
}
