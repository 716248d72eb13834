package scale

import "math"

// Band divides a continuous range into uniform bands, one per domain value.
type Band struct {
	domain       []string
	index        map[string]int
	r0, r1       float64
	paddingInner float64
	paddingOuter float64
	align        float64

	step      float64
	bandwidth float64
	start     float64
}

// NewBand returns a band scale over domain with equal inner and outer padding.
func NewBand(domain []string, r0, r1, padding float64) *Band {
	b := &Band{r0: r0, r1: r1, paddingInner: padding, paddingOuter: padding, align: 0.5}
	b.SetDomain(domain)
	return b
}

// SetDomain replaces the domain order and recomputes band positions.
func (b *Band) SetDomain(domain []string) {
	b.domain = append([]string(nil), domain...)
	b.index = make(map[string]int, len(domain))
	for i, d := range b.domain {
		if _, ok := b.index[d]; !ok {
			b.index[d] = i
		}
	}
	b.rescale()
}

func (b *Band) rescale() {
	n := float64(len(b.domain))
	start, stop := b.r0, b.r1
	if stop < start {
		start, stop = stop, start
	}
	b.step = (stop - start) / math.Max(1, n-b.paddingInner+b.paddingOuter*2)
	b.start = start + (stop-start-b.step*(n-b.paddingInner))*b.align
	b.bandwidth = b.step * (1 - b.paddingInner)
}

// Domain returns the current band order.
func (b *Band) Domain() []string {
	return append([]string(nil), b.domain...)
}

// Scale returns the left edge of the band for v.
func (b *Band) Scale(v string) (float64, bool) {
	i, ok := b.index[v]
	if !ok {
		return 0, false
	}
	if b.r1 < b.r0 {
		i = len(b.domain) - 1 - i
	}
	return b.start + b.step*float64(i), true
}

// Center returns the midpoint of the band for v.
func (b *Band) Center(v string) (float64, bool) {
	x, ok := b.Scale(v)
	return x + b.bandwidth/2, ok
}

// Bandwidth returns the width of each band.
func (b *Band) Bandwidth() float64 { return b.bandwidth }

// Step returns the distance between the starts of adjacent bands.
func (b *Band) Step() float64 { return b.step }

// Lookup returns the domain value whose band contains x.
func (b *Band) Lookup(x float64) (string, bool) {
	for _, d := range b.domain {
		x0, _ := b.Scale(d)
		if x >= x0 && x <= x0+b.bandwidth {
			return d, true
		}
	}
	return "", false
}
