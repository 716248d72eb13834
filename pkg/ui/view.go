package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
)

func (m Model) View() string {
	if m.showHelp {
		return m.theme.Pane.
			BorderForeground(m.theme.Primary).
			Width(max(m.width-2, 10)).
			Render(m.helpVP.View())
	}

	now := m.opts.Dashboard.Clock()
	rects := m.layout()
	panes := make(map[string]string, len(dashboard.Mounts))
	for i, id := range dashboard.Mounts {
		panes[id] = m.renderPane(id, rects[id], i == m.focus, now)
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panes[dashboard.MountBar], panes[dashboard.MountScatter]))
	b.WriteByte('\n')
	b.WriteString(panes[dashboard.MountSankey])
	b.WriteByte('\n')
	b.WriteString(m.renderStatus())
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader() string {
	title := "Music & Mental Health"
	if m.dash.Basic() {
		title += " (basic)"
	}
	return m.theme.Header.Render(truncate(title, max(m.width-2, 1)))
}

func (m Model) renderStatus() string {
	if m.statusMsg != "" {
		style := m.theme.Status
		if m.statusIsErr {
			style = m.theme.Error
		}
		return style.Render(truncate(m.statusMsg, m.width))
	}
	parts := []string{
		humanize.Comma(int64(m.table.Len())) + " records",
		humanize.Comma(int64(len(m.table.Genres()))) + " genres",
	}
	if m.source != "" {
		parts = append(parts, m.source)
	}
	return m.theme.Footer.Render(truncate(strings.Join(parts, " · "), m.width))
}

func (m Model) renderPane(id string, r rect, focused bool, now time.Time) string {
	c := r.canvas()
	title := m.theme.PaneTitle.Render(truncate(paneTitles[id], c.w))
	controls := m.renderControls(id, focused, c.w)

	var body string
	if frame, err := m.dash.Frame(id, now); err == nil {
		body = Rasterize(frame, c.w, c.h).Render(m.theme.Renderer)
	}

	style := m.theme.Pane
	if focused {
		style = m.theme.PaneActive
	}
	return style.
		Width(c.w).
		Height(r.h - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, controls, body))
}

// renderControls draws a pane's selects on one line. The focused control
// shows the option under the cursor.
func (m Model) renderControls(id string, focused bool, width int) string {
	ctls := m.dash.Controls(id)
	if len(ctls) == 0 {
		return ""
	}
	var parts []string
	for i, c := range ctls {
		active := focused && i == m.control
		value := selectedLabel(c)
		if active && m.option < len(c.Options) {
			cursor := c.Options[m.option].Label
			if c.Multiple && containsValue(c.Selected, c.Options[m.option].Value) {
				cursor = "✓ " + cursor
			}
			value = "‹" + cursor + "›"
			if c.Multiple {
				value += " [" + selectedLabel(c) + "]"
			}
			parts = append(parts, m.theme.ControlOn.Render(c.Label+" "+value))
			continue
		}
		parts = append(parts, m.theme.Control.Render(c.Label+" "+value))
	}
	return joinFit(parts, "  ", width)
}

func selectedLabel(c chart.Control) string {
	var labels []string
	for _, o := range c.Options {
		if containsValue(c.Selected, o.Value) {
			labels = append(labels, o.Label)
		}
	}
	return strings.Join(labels, ", ")
}

func containsValue(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
