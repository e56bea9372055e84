// Package style centralizes doarch's terminal appearance.
//
// Semantic styles live in an embedded YAML definition using adaptive
// colors, so every command renders consistently on light and dark
// terminals. Style names are semantic ("success", "path"), never
// visual ("green", "italic-blue").
package style

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"
)

//go:embed styles.yaml
var stylesYAML []byte

// ColorDef is an adaptive color definition in YAML
type ColorDef struct {
	Light string `yaml:"light"`
	Dark  string `yaml:"dark"`
}

// StyleDef is a style definition in YAML
type StyleDef struct {
	Bold        bool   `yaml:"bold,omitempty"`
	Italic      bool   `yaml:"italic,omitempty"`
	Underline   bool   `yaml:"underline,omitempty"`
	Foreground  string `yaml:"foreground,omitempty"`
	Background  string `yaml:"background,omitempty"`
	PaddingLeft int    `yaml:"paddingLeft,omitempty"`
}

type definition struct {
	Colors map[string]ColorDef `yaml:"colors"`
	Styles map[string]StyleDef `yaml:"styles"`
}

var registry map[string]lipgloss.Style

func init() {
	if err := load(stylesYAML); err != nil {
		// the embedded definition is compile-time constant
		panic(fmt.Sprintf("broken embedded styles: %v", err))
	}
}

func load(data []byte) error {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("failed to parse styles: %w", err)
	}

	colors := make(map[string]lipgloss.AdaptiveColor, len(def.Colors))
	for name, c := range def.Colors {
		colors[name] = lipgloss.AdaptiveColor{Light: c.Light, Dark: c.Dark}
	}

	registry = make(map[string]lipgloss.Style, len(def.Styles))
	for name, d := range def.Styles {
		registry[name] = buildStyle(d, colors)
	}
	return nil
}

func buildStyle(def StyleDef, colors map[string]lipgloss.AdaptiveColor) lipgloss.Style {
	s := lipgloss.NewStyle()
	if def.Bold {
		s = s.Bold(true)
	}
	if def.Italic {
		s = s.Italic(true)
	}
	if def.Underline {
		s = s.Underline(true)
	}
	if color, ok := colors[def.Foreground]; ok {
		s = s.Foreground(color)
	}
	if color, ok := colors[def.Background]; ok {
		s = s.Background(color)
	}
	if def.PaddingLeft > 0 {
		s = s.PaddingLeft(def.PaddingLeft)
	}
	return s
}

// Get returns the named style. Unknown names get a neutral style so
// callers never branch on presence.
func Get(name string) lipgloss.Style {
	if s, ok := registry[name]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

// ColorsEnabled reports whether styled output makes sense on f:
// NO_COLOR wins, pipes and dumb terminals stay plain.
func ColorsEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return termenv.ColorProfile() != termenv.Ascii
}

// Status classifies a step outcome in run summaries
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Mark returns the styled glyph for a status
func Mark(s Status) string {
	switch s {
	case StatusOK:
		return Get("success").Render("✓")
	case StatusWarning:
		return Get("warning").Render("!")
	case StatusFailed:
		return Get("error").Render("✗")
	case StatusSkipped:
		return Get("muted").Render("-")
	default:
		return Get("muted").Render("•")
	}
}
