package sankey

import "fmt"

// RibbonPath returns the SVG path of a horizontal link: a cubic curve from the
// right edge of the source node to the left edge of the target, with both
// control points at the horizontal midpoint. Stroke it with Width.
func RibbonPath(g *Graph, l PlacedLink) string {
	x0 := g.Nodes[l.Source].X1
	x1 := g.Nodes[l.Target].X0
	xm := (x0 + x1) / 2
	return fmt.Sprintf("M%s,%sC%s,%s,%s,%s,%s,%s",
		num(x0), num(l.Y0), num(xm), num(l.Y0), num(xm), num(l.Y1), num(x1), num(l.Y1))
}

// RibbonPoints samples the ribbon center line; raster hosts draw it point by
// point.
func RibbonPoints(g *Graph, l PlacedLink, samples int) [][2]float64 {
	if samples < 2 {
		samples = 2
	}
	x0 := g.Nodes[l.Source].X1
	x1 := g.Nodes[l.Target].X0
	xm := (x0 + x1) / 2
	pts := make([][2]float64, samples)
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(samples-1)
		pts[i] = [2]float64{
			cubic(x0, xm, xm, x1, t),
			cubic(l.Y0, l.Y0, l.Y1, l.Y1, t),
		}
	}
	return pts
}

func cubic(p0, p1, p2, p3, t float64) float64 {
	u := 1 - t
	return u*u*u*p0 + 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t*p3
}

func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
