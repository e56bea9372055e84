package provision

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/style"
)

// StepRecord captures one step's outcome for the run summary
type StepRecord struct {
	Name     string       `json:"name"`
	Status   style.Status `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Summary is the record of one provisioning run. It is printed when
// the run ends and persisted as JSON so doarch status can report the
// last run without re-running anything.
type Summary struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Timestamp  string       `json:"timestamp"`
	Profile    string       `json:"profile"`
	Users      []string     `json:"users,omitempty"`
	Steps      []StepRecord `json:"steps"`
	Fatal      string       `json:"fatal,omitempty"`
}

// Warnings counts warnings across all steps
func (s *Summary) Warnings() int {
	total := 0
	for _, step := range s.Steps {
		total += len(step.Warnings)
	}
	return total
}

// Render formats the closing report for the terminal
func (s *Summary) Render() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(style.Get("header").Render("Run summary"))
	b.WriteString("\n")

	for _, step := range s.Steps {
		b.WriteString(fmt.Sprintf("  %s %s", style.Mark(step.Status), step.Name))
		if step.Detail != "" {
			b.WriteString(style.Get("muted").Render(": " + step.Detail))
		}
		b.WriteString("\n")
		for _, w := range step.Warnings {
			b.WriteString("      " + style.Get("warning").Render("! ") + w + "\n")
		}
	}

	if s.Fatal != "" {
		b.WriteString("  " + style.Get("error").Render("aborted: "+s.Fatal) + "\n")
	}
	b.WriteString(fmt.Sprintf("  %d steps, %d warnings\n", len(s.Steps), s.Warnings()))
	return b.String()
}

// Write persists the summary
func (s *Summary) Write(fsys filesystem.FS, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode run summary")
	}

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create state directory %s", dir)
	}
	if err := fsys.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write run summary %s", path)
	}
	return nil
}

// ReadSummary loads a previously persisted run summary
func ReadSummary(fsys filesystem.FS, path string) (*Summary, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileNotFound, "no run summary at %s", path)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "failed to decode run summary %s", path)
	}
	return &s, nil
}
