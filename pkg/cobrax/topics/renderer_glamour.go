package topics

import (
	"github.com/charmbracelet/glamour"
)

// GlamourRenderer renders markdown topics through glamour. Files with
// other extensions pass through untouched.
type GlamourRenderer struct {
	// Style is a glamour style name or path; empty or "auto" detects
	// from the terminal
	Style string
	// Width wraps output; 0 lets glamour decide
	Width int
}

// NewGlamourRenderer creates a markdown renderer with auto-detection
func NewGlamourRenderer() *GlamourRenderer {
	return &GlamourRenderer{Style: "auto"}
}

func (r *GlamourRenderer) Render(content string, format string) string {
	if format != ".md" {
		return content
	}

	var options []glamour.TermRendererOption
	if r.Style != "" && r.Style != "auto" {
		options = append(options, glamour.WithStylePath(r.Style))
	} else {
		options = append(options, glamour.WithAutoStyle())
	}
	if r.Width > 0 {
		options = append(options, glamour.WithWordWrap(r.Width))
	}

	// Topic text is better plain than absent, so rendering problems
	// fall back to the raw markdown
	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
