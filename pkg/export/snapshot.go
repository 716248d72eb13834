// Package export renders dashboard scenes to files: SVG and PNG snapshots,
// a static HTML page, a JSON summary and a SQLite snapshot database.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/debug"
	"github.com/vanderheijden86/mxmh/pkg/metrics"
	"github.com/vanderheijden86/mxmh/pkg/scene"
)

// Snapshot formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatHTML = "html"
)

// ErrUnsupportedFormat is returned for an unknown snapshot format.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat normalizes a format name; "" means svg.
func ParseFormat(s string) (string, error) {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch f {
	case "":
		return FormatSVG, nil
	case FormatSVG, FormatPNG, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q (want svg, png or html)", ErrUnsupportedFormat, s)
	}
}

// Frames captures the settled scene of every mount. The dashboard is not
// safe for concurrent use, so capture happens on the caller's goroutine.
func Frames(d *dashboard.Dashboard) (map[string]*scene.Scene, error) {
	d.Settle()
	now := time.Now()
	out := make(map[string]*scene.Scene, len(dashboard.Mounts))
	for _, m := range dashboard.Mounts {
		f, err := d.Frame(m, now)
		if err != nil {
			return nil, err
		}
		out[m] = f
	}
	return out, nil
}

// ControlsOf collects the current controls of every mount.
func ControlsOf(d *dashboard.Dashboard) map[string][]chart.Control {
	out := make(map[string][]chart.Control, len(dashboard.Mounts))
	for _, m := range dashboard.Mounts {
		out[m] = d.Controls(m)
	}
	return out
}

// SaveSnapshots writes one file per mount into dir, rendering the three
// scenes in parallel. For FormatHTML a single index.html embeds the three
// SVGs. It returns the written paths in mount order.
func SaveSnapshots(ctx context.Context, d *dashboard.Dashboard, dir, format string) ([]string, error) {
	defer metrics.Timer(metrics.SnapshotExport)()
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	frames, err := Frames(d)
	if err != nil {
		return nil, err
	}

	if format == FormatHTML {
		path := filepath.Join(dir, "index.html")
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := WritePage(f, frames, PageOptions{Basic: d.Basic(), Controls: ControlsOf(d)}); err != nil {
			return nil, fmt.Errorf("write page: %w", err)
		}
		return []string{path}, nil
	}

	paths := make([]string, len(dashboard.Mounts))
	g, ctx := errgroup.WithContext(ctx)
	for i, mount := range dashboard.Mounts {
		i, mount := i, mount
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			var err error
			if format == FormatPNG {
				err = RenderPNG(&buf, frames[mount])
			} else {
				err = RenderSVG(&buf, frames[mount], mount)
			}
			if err != nil {
				return fmt.Errorf("render %s: %w", mount, err)
			}
			path := filepath.Join(dir, mount+"."+format)
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	debug.Log("export: wrote %d %s snapshots to %s", len(paths), format, dir)
	return paths, nil
}
