// Package topics provides a topic-based help system for cobra
// applications. It extends the default help to serve arbitrary topics
// from a file tree, typically embedded in the binary so the CLI stays
// self-documenting on machines with nothing else installed yet.
package topics

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// Topic is one help topic
type Topic struct {
	Name string
	// Format is the source file's extension; it drives rendering
	Format  string
	Content string
}

// Options configures the topic system
type Options struct {
	// Extensions considered topic files; defaults to .txt and .md
	Extensions []string

	// Renderer formats topic content; defaults to PlainRenderer
	Renderer Renderer
}

// Manager holds the loaded topics for one application
type Manager struct {
	topics       map[string]*Topic
	extensions   []string
	renderer     Renderer
	originalHelp func(*cobra.Command, []string)
}

// New creates a Manager and loads every topic found in fsys
func New(fsys fs.FS, opts Options) (*Manager, error) {
	m := &Manager{
		topics:     make(map[string]*Topic),
		extensions: opts.Extensions,
		renderer:   opts.Renderer,
	}
	if len(m.extensions) == 0 {
		m.extensions = []string{".txt", ".md"}
	}
	if m.renderer == nil {
		m.renderer = &PlainRenderer{}
	}

	if err := m.load(fsys); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := path.Ext(p)
		if !m.supported(ext) {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}

		name := strings.TrimSuffix(path.Base(p), ext)
		m.topics[name] = &Topic{Name: name, Format: ext, Content: string(content)}
		return nil
	})
}

func (m *Manager) supported(ext string) bool {
	for _, e := range m.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Get retrieves a topic by name. Flag-style spellings resolve through
// the option- file name convention: --verbose finds option-verbose.
func (m *Manager) Get(name string) (*Topic, bool) {
	name = strings.TrimPrefix(name, "--")
	name = strings.TrimPrefix(name, "-")

	if t, ok := m.topics[name]; ok {
		return t, true
	}
	t, ok := m.topics["option-"+name]
	return t, ok
}

// Names returns all topic names, sorted
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.topics))
	for name := range m.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Install wires the topic system into rootCmd: a help command that
// understands topics as well as commands, and a matching help
// function so --help style requests find topics too.
func Install(rootCmd *cobra.Command, fsys fs.FS, opts Options) error {
	m, err := New(fsys, opts)
	if err != nil {
		return fmt.Errorf("failed to load help topics: %w", err)
	}
	m.originalHelp = rootCmd.HelpFunc()

	helpCmd := &cobra.Command{
		Use:   "help [command or topic]",
		Short: "Help about any command or topic",
		Long: fmt.Sprintf(`Help provides help for any command or topic.
Type %[1]s help [command or topic] for full details.

To see all available help topics:
  %[1]s help topics`, rootCmd.Name()),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			completions := []string{"topics"}
			for _, c := range rootCmd.Commands() {
				if !c.Hidden {
					completions = append(completions, c.Name())
				}
			}
			completions = append(completions, m.Names()...)
			return completions, cobra.ShellCompDirectiveNoFileComp
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				m.originalHelp(rootCmd, nil)
				return
			}
			if args[0] == "topics" {
				m.printIndex(out, rootCmd.Name())
				return
			}
			if t, ok := m.Get(args[0]); ok {
				fmt.Fprint(out, m.renderer.Render(t.Content, t.Format))
				return
			}

			// Not a topic, so it is a command or a typo
			target, _, err := rootCmd.Find(args)
			if target == nil || err != nil {
				m.originalHelp(rootCmd, args)
				return
			}
			_ = target.Help()
		},
	}

	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "help" {
			rootCmd.RemoveCommand(cmd)
			break
		}
	}
	rootCmd.AddCommand(helpCmd)

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if len(args) > 0 {
			if t, ok := m.Get(args[0]); ok {
				fmt.Fprint(cmd.OutOrStdout(), m.renderer.Render(t.Content, t.Format))
				return
			}
		}
		m.originalHelp(cmd, args)
	})

	return nil
}

// printIndex lists all topics, option topics under their flag spelling
func (m *Manager) printIndex(out io.Writer, app string) {
	names := m.Names()
	if len(names) == 0 {
		fmt.Fprintln(out, "No help topics available.")
		return
	}

	var general, options []string
	for _, name := range names {
		if strings.HasPrefix(name, "option-") {
			options = append(options, strings.TrimPrefix(name, "option-"))
		} else {
			general = append(general, name)
		}
	}

	fmt.Fprintln(out, "Available help topics:")
	for _, name := range general {
		fmt.Fprintf(out, "  %s\n", name)
	}
	if len(options) > 0 {
		fmt.Fprintln(out, "\nOption topics:")
		for _, name := range options {
			fmt.Fprintf(out, "  --%s\n", name)
		}
	}
	fmt.Fprintf(out, "\nUse '%s help <topic>' to read about a specific topic.\n", app)
}
