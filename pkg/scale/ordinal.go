package scale

// Tableau10 is the ten-color categorical palette used by the bar and scatter views.
var Tableau10 = []string{
	"#4e79a7", "#f28e2c", "#e15759", "#76b7b2", "#59a14f",
	"#edc949", "#af7aa1", "#ff9da7", "#9c755f", "#bab0ab",
}

// Set3 is the twelve-color pastel palette used by the Sankey ribbons.
var Set3 = []string{
	"#8dd3c7", "#ffffb3", "#bebada", "#fb8072", "#80b1d3", "#fdb462",
	"#b3de69", "#fccde5", "#d9d9d9", "#bc80bd", "#ccebc5", "#ffed6f",
}

// Ordinal assigns palette colors to category labels, cycling the palette when
// there are more labels than colors. Color may grow the domain, so an Ordinal
// must not be shared between goroutines.
type Ordinal struct {
	index   map[string]int
	palette []string
}

// NewOrdinal fixes the category order once. Unknown labels encountered later
// are appended to the domain, so colors already handed out never move.
func NewOrdinal(domain []string, palette []string) *Ordinal {
	o := &Ordinal{index: make(map[string]int, len(domain)), palette: palette}
	for _, d := range domain {
		if _, ok := o.index[d]; !ok {
			o.index[d] = len(o.index)
		}
	}
	return o
}

// Color returns the palette color for label.
func (o *Ordinal) Color(label string) string {
	if len(o.palette) == 0 {
		return "#000000"
	}
	i, ok := o.index[label]
	if !ok {
		i = len(o.index)
		o.index[label] = i
	}
	return o.palette[i%len(o.palette)]
}
