package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/model"
)

// WizardConfig holds the answers of the export wizard.
type WizardConfig struct {
	Format       string   `json:"format"`
	OutputPath   string   `json:"output_path"`
	Sort         string   `json:"sort"`
	ScatterGenre string   `json:"scatter_genre"`
	SankeyGenres []string `json:"sankey_genres"`
}

// DefaultWizardConfig is the starting point when nothing was saved.
func DefaultWizardConfig() WizardConfig {
	return WizardConfig{
		Format:       FormatSVG,
		OutputPath:   "./mxmh-export",
		Sort:         string(chart.SortAlphabetical),
		ScatterGenre: model.AllLabel,
		SankeyGenres: []string{model.AllLabel},
	}
}

// Wizard walks the user through a snapshot export.
type Wizard struct {
	config WizardConfig
	genres []string
}

// NewWizard creates a wizard offering the genres of t.
func NewWizard(t *model.Table) *Wizard {
	w := &Wizard{config: DefaultWizardConfig(), genres: t.Genres()}
	if saved, err := LoadWizardConfig(); err == nil && saved != nil {
		w.config = *saved
	}
	return w
}

// Config returns the current answers.
func (w *Wizard) Config() WizardConfig {
	return w.config
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm falls back to accessible mode without a TTY.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

func (w *Wizard) genreOptions(withAll bool) []huh.Option[string] {
	var opts []huh.Option[string]
	if withAll {
		opts = append(opts, huh.NewOption(model.AllLabel, model.AllLabel))
	}
	for _, g := range w.genres {
		opts = append(opts, huh.NewOption(g, g))
	}
	return opts
}

// Collect runs the interactive forms.
func (w *Wizard) Collect() error {
	fmt.Println("mxmh snapshot export")
	fmt.Println("────────────────────")

	var sortOpts []huh.Option[string]
	for _, m := range chart.SortModes {
		sortOpts = append(sortOpts, huh.NewOption(m.Label(), string(m)))
	}

	form := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Format").
				Options(
					huh.NewOption("SVG (one file per chart)", FormatSVG),
					huh.NewOption("PNG (one file per chart)", FormatPNG),
					huh.NewOption("HTML page", FormatHTML),
				).
				Value(&w.config.Format),
			huh.NewInput().
				Title("Output directory").
				Value(&w.config.OutputPath).
				Placeholder(DefaultWizardConfig().OutputPath),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Sort by:").
				Options(sortOpts...).
				Value(&w.config.Sort),
			huh.NewSelect[string]().
				Title("Scatter plot genre").
				Options(w.genreOptions(true)...).
				Value(&w.config.ScatterGenre),
			huh.NewMultiSelect[string]().
				Title("Sankey genres").
				Options(w.genreOptions(true)...).
				Value(&w.config.SankeyGenres),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	if w.config.OutputPath == "" {
		w.config.OutputPath = DefaultWizardConfig().OutputPath
	}
	return nil
}

// Apply pushes the answers into d as control events.
func (w *Wizard) Apply(d *dashboard.Dashboard) error {
	cfg := w.config
	events := []dashboard.Event{
		dashboard.Select(dashboard.MountBar, chart.BarControlSort, cfg.Sort),
		dashboard.Select(dashboard.MountScatter, chart.ScatterControlGenre, cfg.ScatterGenre),
		dashboard.Select(dashboard.MountSankey, chart.SankeyControlGenre, cfg.SankeyGenres...),
	}
	var errs []error
	for _, ev := range events {
		if _, err := d.Dispatch(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run collects answers, applies them, exports and saves the answers for the
// next run.
func (w *Wizard) Run(ctx context.Context, d *dashboard.Dashboard) ([]string, error) {
	if err := w.Collect(); err != nil {
		return nil, err
	}
	if err := w.Apply(d); err != nil {
		return nil, err
	}
	paths, err := SaveSnapshots(ctx, d, w.config.OutputPath, w.config.Format)
	if err != nil {
		return nil, err
	}
	if err := SaveWizardConfig(&w.config); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save wizard settings: %v\n", err)
	}
	return paths, nil
}

// WizardConfigPath returns where wizard answers are saved.
func WizardConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mxmh", "export-wizard.json")
}

// LoadWizardConfig loads saved answers; nil when none exist.
func LoadWizardConfig() (*WizardConfig, error) {
	path := WizardConfigPath()
	if path == "" {
		return nil, fmt.Errorf("could not determine config path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var config WizardConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveWizardConfig saves answers for future runs.
func SaveWizardConfig(config *WizardConfig) error {
	path := WizardConfigPath()
	if path == "" {
		return fmt.Errorf("could not determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
