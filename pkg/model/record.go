// Package model defines the survey record table shared by every dashboard view.
package model

import (
	"errors"
	"math"
)

// ErrEmpty reports a table with no usable rows after cleaning.
var ErrEmpty = errors.New("no survey records after cleaning")

// Effect is the self-reported effect of music on the respondent's mental health.
type Effect string

const (
	EffectImprove  Effect = "Improve"
	EffectNoEffect Effect = "No effect"
	EffectWorsen   Effect = "Worsen"
)

// Effects lists the known effect labels in display order.
var Effects = []Effect{EffectImprove, EffectNoEffect, EffectWorsen}

// IsKnown reports whether e is one of the three survey answers.
func (e Effect) IsKnown() bool {
	switch e {
	case EffectImprove, EffectNoEffect, EffectWorsen:
		return true
	default:
		return false
	}
}

// String returns the label as written in the survey.
func (e Effect) String() string {
	return string(e)
}

// Record is one cleaned survey response.
type Record struct {
	Genre      string  `json:"genre"`
	Effect     Effect  `json:"effect"`
	Hours      float64 `json:"hours"`
	Depression float64 `json:"depression"` // NaN when the cell could not be coerced
	Anxiety    float64 `json:"anxiety"`
}

// HasDepression reports whether the depression score is a usable number.
func (r Record) HasDepression() bool {
	return !math.IsNaN(r.Depression) && !math.IsInf(r.Depression, 0)
}

// Plottable reports whether the record has finite coordinates for the scatter plot.
func (r Record) Plottable() bool {
	return r.HasDepression() && !math.IsNaN(r.Hours) && !math.IsInf(r.Hours, 0)
}
