package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# Music & Mental Health

Three linked views of the MxMH survey.

## Bar chart
Mean depression per favorite genre. Change the **sort** control to reorder
the bars. Click a bar to select it; selected bars stay highlighted.

## Scatter plot
Hours of listening per day against depression. Pick genres with the
**genre** control. Drag on the plot to brush a region and read the point
count and averages in the panel; click outside the brush to clear it.

## Sankey diagram
How each genre's listeners report music affects them. Hover a ribbon or a
node for counts and shares. The **genre** control filters the flows.

## Keys
| key | action |
|---|---|
| tab / shift+tab | move between charts |
| c | next control of the chart |
| ← → | move through the control's options |
| space | select the option |
| mouse | hover, click and drag on the chart |
| y | copy the tooltip or brush readout |
| e | export SVG snapshots |
| r | reload the data file |
| q | quit |
`

// renderHelp renders the help overlay for width columns, falling back to the
// raw markdown when glamour cannot build a renderer.
func renderHelp(width int) string {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	// Strip trailing whitespace/newlines that glamour adds
	return strings.TrimRight(out, " \n")
}
