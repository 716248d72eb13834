package export

import (
	"io"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/metrics"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/version"
)

// Summary is the machine-readable digest printed by --robot-summary. Values
// that are not finite are encoded as null.
type Summary struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Version     string                `json:"version"`
	DataHash    string                `json:"data_hash"`
	Source      string                `json:"source,omitempty"`
	Records     int                   `json:"records"`
	Genres      []string              `json:"genres"`
	Bar         BarSummary            `json:"bar"`
	Scatter     ScatterSummary        `json:"scatter"`
	Flows       []chart.Flow          `json:"flows"`
	Shares      []ShareSummary        `json:"shares"`
	Timings     []metrics.TimingStats `json:"timings,omitempty"`
}

// BarSummary is the bar view's aggregates in display order.
type BarSummary struct {
	Sort       string             `json:"sort"`
	Aggregates []AggregateSummary `json:"aggregates"`
	Selected   []string           `json:"selected,omitempty"`
}

// AggregateSummary is one bar.
type AggregateSummary struct {
	Genre          string   `json:"genre"`
	MeanDepression *float64 `json:"mean_depression"`
}

// ScatterSummary describes the scatter view's filter and brush.
type ScatterSummary struct {
	Filter   []string      `json:"filter"`
	Rendered int           `json:"rendered"`
	Brush    *BrushReadout `json:"brush,omitempty"`
}

// BrushReadout is a finished brush's statistics.
type BrushReadout struct {
	Points        int      `json:"points"`
	AvgHours      *float64 `json:"avg_hours"`
	AvgDepression *float64 `json:"avg_depression"`
}

// ShareSummary is a genre node's outflow split in percent.
type ShareSummary struct {
	Genre    string   `json:"genre"`
	Total    int      `json:"total"`
	Improve  *float64 `json:"improve_pct"`
	NoEffect *float64 `json:"no_effect_pct"`
	Worsen   *float64 `json:"worsen_pct"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// pct rounds with the same formatter as the tooltips so both agree.
func pct(part, total float64) *float64 {
	if total == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(model.Percent(part, total), 64)
	if err != nil {
		return nil
	}
	return finite(v)
}

// BuildSummary digests the dashboard's current state.
func BuildSummary(d *dashboard.Dashboard, dataHash, source string) Summary {
	t := d.Table()
	s := Summary{
		GeneratedAt: time.Now().UTC(),
		Version:     version.Version,
		DataHash:    dataHash,
		Source:      source,
		Records:     t.Len(),
		Genres:      t.Genres(),
		Flows:       d.Sankey.Flows(),
	}
	if metrics.Enabled() {
		s.Timings = metrics.AllStats()
	}
	if s.Genres == nil {
		s.Genres = []string{}
	}
	if s.Flows == nil {
		s.Flows = []chart.Flow{}
	}

	bs := d.Bar.State()
	s.Bar.Sort = string(bs.Sort)
	for _, g := range d.Bar.Order() {
		m, _ := d.Bar.Mean(g)
		s.Bar.Aggregates = append(s.Bar.Aggregates, AggregateSummary{Genre: g, MeanDepression: finite(m)})
	}
	s.Bar.Selected = d.Bar.Selected()

	ss := d.Scatter.State()
	s.Scatter.Filter = ss.Filter.Values()
	s.Scatter.Rendered = len(d.Scatter.Rendered())
	if sum, ok := d.Scatter.Summary(); ok {
		s.Scatter.Brush = &BrushReadout{
			Points:        sum.Points,
			AvgHours:      finite(sum.AvgHours),
			AvgDepression: finite(sum.AvgDepression),
		}
	}

	s.Shares = []ShareSummary{}
	for _, g := range t.Genres() {
		sh, ok := d.Sankey.Shares(g)
		if !ok {
			continue
		}
		s.Shares = append(s.Shares, ShareSummary{
			Genre:    g,
			Total:    int(sh.Total),
			Improve:  pct(sh.Improve, sh.Total),
			NoEffect: pct(sh.NoEffect, sh.Total),
			Worsen:   pct(sh.Worsen, sh.Total),
		})
	}
	return s
}

// WriteSummary encodes s as indented JSON.
func WriteSummary(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
