package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/mxmh/pkg/export"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// Cell is one terminal character of a rasterized scene.
type Cell struct {
	Ch    rune
	Color string // #rrggbb, empty for the terminal default
}

// Canvas is a scene rasterized onto a grid of terminal cells.
type Canvas struct {
	Cols, Rows int
	sx, sy     float64
	cells      []Cell
}

// Rasterize draws s onto a cols×rows grid. Marks are painted in scene order,
// so later marks overwrite earlier ones just as they do in the SVG.
func Rasterize(s *scene.Scene, cols, rows int) *Canvas {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	c := &Canvas{Cols: cols, Rows: rows, cells: make([]Cell, cols*rows)}
	for i := range c.cells {
		c.cells[i].Ch = ' '
	}
	if s == nil || s.Width <= 0 || s.Height <= 0 {
		c.sx, c.sy = 1, 1
		return c
	}
	c.sx = s.Width / float64(cols)
	c.sy = s.Height / float64(rows)
	for _, m := range s.Marks {
		if m.Opacity <= 0.05 {
			continue
		}
		switch m.Kind {
		case scene.KindRect:
			c.drawRect(m)
		case scene.KindCircle:
			c.drawCircle(m)
		case scene.KindLine:
			c.drawLine(m)
		case scene.KindPath:
			c.drawPath(m)
		case scene.KindText:
			c.drawText(m)
		}
	}
	return c
}

// At returns the cell at (col, row); out of range yields a blank cell.
func (c *Canvas) At(col, row int) Cell {
	if col < 0 || row < 0 || col >= c.Cols || row >= c.Rows {
		return Cell{Ch: ' '}
	}
	return c.cells[row*c.Cols+col]
}

// ToScene maps a cell to the scene coordinates of its center.
func (c *Canvas) ToScene(col, row int) (float64, float64) {
	return (float64(col) + 0.5) * c.sx, (float64(row) + 0.5) * c.sy
}

func (c *Canvas) set(col, row int, ch rune, color string) {
	if col < 0 || row < 0 || col >= c.Cols || row >= c.Rows {
		return
	}
	c.cells[row*c.Cols+col] = Cell{Ch: ch, Color: color}
}

func (c *Canvas) cellOf(x, y float64) (int, int) {
	return int(math.Floor(x / c.sx)), int(math.Floor(y / c.sy))
}

func shade(opacity float64) rune {
	switch {
	case opacity >= 0.75:
		return '█'
	case opacity >= 0.5:
		return '▓'
	case opacity >= 0.3:
		return '▒'
	default:
		return '░'
	}
}

func (c *Canvas) drawRect(m scene.Mark) {
	if m.W <= 0 || m.H <= 0 {
		return
	}
	color, ch := hexColor(m.Fill), shade(m.Opacity)
	if m.Fill == "" || m.Fill == "none" {
		color, ch = hexColor(m.Stroke), '▫'
	}
	painted := false
	for row := 0; row < c.Rows; row++ {
		cy := (float64(row) + 0.5) * c.sy
		if cy < m.Y || cy > m.Y+m.H {
			continue
		}
		for col := 0; col < c.Cols; col++ {
			cx := (float64(col) + 0.5) * c.sx
			if cx < m.X || cx > m.X+m.W {
				continue
			}
			c.set(col, row, ch, color)
			painted = true
		}
	}
	if !painted {
		// thinner than a cell; keep it visible
		col, row := c.cellOf(m.X+m.W/2, m.Y+m.H/2)
		c.set(col, row, ch, color)
	}
}

func (c *Canvas) drawCircle(m scene.Mark) {
	ch := '●'
	if m.Opacity < 0.5 {
		ch = '○'
	}
	col, row := c.cellOf(m.X, m.Y)
	c.set(col, row, ch, hexColor(m.Fill))
}

func (c *Canvas) drawLine(m scene.Mark) {
	ch := '·'
	switch {
	case m.Y == m.Y2:
		ch = '─'
	case m.X == m.X2:
		ch = '│'
	}
	c.segment(m.X, m.Y, m.X2, m.Y2, ch, hexColor(m.Stroke))
}

func (c *Canvas) drawPath(m scene.Mark) {
	ch := '░'
	if m.StrokeOpacity >= 0.5 {
		ch = '▒'
	}
	color := hexColor(m.Stroke)
	for i := 1; i < len(m.Points); i++ {
		a, b := m.Points[i-1], m.Points[i]
		c.segment(a[0], a[1], b[0], b[1], ch, color)
	}
}

// segment samples a line at half-cell steps.
func (c *Canvas) segment(x0, y0, x1, y1 float64, ch rune, color string) {
	step := math.Min(c.sx, c.sy) / 2
	n := int(math.Hypot(x1-x0, y1-y0)/step) + 1
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		col, row := c.cellOf(x0+(x1-x0)*t, y0+(y1-y0)*t)
		c.set(col, row, ch, color)
	}
}

func (c *Canvas) drawText(m scene.Mark) {
	color := hexColor(m.Fill)
	lines := strings.Split(m.Text, "\n")
	if math.Abs(math.Abs(m.Rotate)-90) < 1 {
		// axis titles: one character per row, centered on the anchor
		text := strings.Join(lines, " ")
		col, row := c.cellOf(m.X, m.Y)
		row -= runewidth.StringWidth(text) / 2
		for i, r := range text {
			c.set(col, row+i, r, color)
		}
		return
	}
	lineHeight := math.Max(m.FontSize*1.2, c.sy)
	for i, line := range lines {
		// Y is the baseline; the glyph body sits above it
		col, row := c.cellOf(m.X, m.Y+float64(i)*lineHeight-m.FontSize/3)
		w := runewidth.StringWidth(line)
		switch m.Anchor {
		case "middle":
			col -= w / 2
		case "end":
			col -= w
		}
		for _, r := range line {
			c.set(col, row, r, color)
			col += runewidth.RuneWidth(r)
		}
	}
}

// Plain returns the canvas text without colors.
func (c *Canvas) Plain() string {
	var b strings.Builder
	for row := 0; row < c.Rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := 0; col < c.Cols; col++ {
			b.WriteRune(c.At(col, row).Ch)
		}
	}
	return b.String()
}

// Render returns the canvas with runs of equal color styled through r.
func (c *Canvas) Render(r *lipgloss.Renderer) string {
	var b strings.Builder
	styles := make(map[string]lipgloss.Style)
	style := func(color string) lipgloss.Style {
		s, ok := styles[color]
		if !ok {
			s = r.NewStyle().Foreground(ThemeFg(color))
			styles[color] = s
		}
		return s
	}
	for row := 0; row < c.Rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		runColor := ""
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runColor == "" {
				b.WriteString(run.String())
			} else {
				b.WriteString(style(runColor).Render(run.String()))
			}
			run.Reset()
		}
		for col := 0; col < c.Cols; col++ {
			cell := c.At(col, row)
			if cell.Color != runColor {
				flush()
				runColor = cell.Color
			}
			run.WriteRune(cell.Ch)
		}
		flush()
	}
	return b.String()
}

// hexColor normalizes a scene color to #rrggbb. Black maps to the terminal
// default since the charts draw on a black background.
func hexColor(s string) string {
	if s == "" || s == "none" {
		return ""
	}
	n := export.ParseColor(s, 1)
	if n.R == 0 && n.G == 0 && n.B == 0 {
		return ""
	}
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}
