package doarch

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/arthur-debert/doarch/internal/version"
	"github.com/arthur-debert/doarch/pkg/cobrax/topics"
	"github.com/arthur-debert/doarch/pkg/config"
	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/arthur-debert/doarch/pkg/paths"
	"github.com/arthur-debert/doarch/pkg/pkgmgr"
	"github.com/arthur-debert/doarch/pkg/provision"
	"github.com/arthur-debert/doarch/pkg/style"
	"github.com/arthur-debert/doarch/pkg/users"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

//go:embed topics
var topicFiles embed.FS

// Swapped by tests to run against a memory filesystem and scripted
// commands.
var (
	osFS      = filesystem.NewOS()
	cmdRunner = executor.New()
	geteuid   = os.Geteuid
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	// Initialize custom template formatting functions
	initTemplateFormatting()

	var verbosity int

	rootCmd := &cobra.Command{
		Use:     "doarch",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging based on verbosity
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// If we get here, no subcommand was provided
			// Show help but return an error to indicate incorrect usage
			_ = cmd.Help()
			return fmt.Errorf("no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	// Global flags
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().String("profile", "", MsgFlagProfile)

	// Disable automatic help command (we'll use our custom one from topics)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Define command groups
	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "COMMANDS:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "misc",
		Title: "MISC:",
	})

	// Set custom help template
	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	// Add all commands
	rootCmd.AddCommand(newProvisionCmd())
	rootCmd.AddCommand(newBootstrapCmd())
	rootCmd.AddCommand(newPackagesCmd())
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newUsersCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newGenconfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newTopicsCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Initialize topic-based help. Topics ship inside the binary so a
	// freshly provisioned machine has the docs before anything else.
	if docs, err := fs.Sub(topicFiles, "topics"); err == nil {
		opts := topics.Options{
			Extensions: []string{".txt", ".md"},
			// Always use Glamour renderer for markdown files
			Renderer: topics.NewGlamourRenderer(),
		}
		_ = topics.Install(rootCmd, docs, opts)
	}

	return rootCmd
}

// initPaths resolves the profile root and warns when the working
// directory fallback kicked in
func initPaths(cmd *cobra.Command) (paths.Paths, error) {
	profile, _ := cmd.Root().PersistentFlags().GetString("profile")

	p, err := paths.New(profile)
	if err != nil {
		return nil, err
	}

	if !filesystem.IsDir(osFS, p.ProfileRoot()) {
		return nil, errors.Newf(errors.ErrProfileNotFound,
			"profile directory does not exist: %s", p.ProfileRoot())
	}

	if p.UsedFallback() {
		fmt.Fprintf(cmd.ErrOrStderr(), MsgFallbackWarning, p.ProfileRoot())
	}

	return p, nil
}

// loadRun resolves paths and layered configuration for one command
func loadRun(cmd *cobra.Command) (paths.Paths, *config.Config, error) {
	p, err := initPaths(cmd)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(p)
	if err != nil {
		return nil, nil, err
	}

	return p, cfg, nil
}

// requireRoot rejects commands that mutate the system unless the
// process runs with effective UID 0
func requireRoot() error {
	if geteuid() != 0 {
		return errors.New(errors.ErrPrivilege, MsgErrNeedRoot)
	}
	return nil
}

// narratorFor picks styled output on a terminal and plain output
// everywhere else (pipes, tests)
func narratorFor(cmd *cobra.Command) *style.Narrator {
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return style.NewNarrator(f)
	}
	return style.NewPlainNarrator(cmd.OutOrStdout())
}

func targetFilter(cfg *config.Config) users.Filter {
	return users.Filter{
		MinUID:  cfg.Users.MinUID,
		Include: cfg.Users.Include,
		Exclude: cfg.Users.Exclude,
	}
}

// userNamesCompletion provides shell completion for target user names
func userNamesCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	_, cfg, err := loadRun(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	targets, err := users.Targets(osFS, targetFilter(cfg))
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	// Filter out already specified users
	var available []string
	for _, u := range targets {
		found := false
		for _, arg := range args {
			if arg == u.Name {
				found = true
				break
			}
		}
		if !found {
			available = append(available, u.Name)
		}
	}

	return available, cobra.ShellCompDirectiveNoFileComp
}

func newProvisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "provision",
		Short:   MsgProvisionShort,
		Long:    MsgProvisionLong,
		Example: MsgProvisionExample,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}

			p, cfg, err := loadRun(cmd)
			if err != nil {
				return err
			}

			log.Info().
				Str("profile", p.ProfileRoot()).
				Msg("Provisioning from profile")

			prov := provision.New(cfg, p, osFS, cmdRunner, narratorFor(cmd))
			_, err = prov.Run(cmd.Context())
			return err
		},
	}
}

func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "bootstrap",
		Short:   MsgBootstrapShort,
		Long:    MsgBootstrapLong,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}

			p, cfg, err := loadRun(cmd)
			if err != nil {
				return err
			}

			log.Info().
				Str("helper", cfg.Helper.Name).
				Msg("Bootstrapping AUR helper")

			prov := provision.New(cfg, p, osFS, cmdRunner, narratorFor(cmd))
			rec, err := prov.Bootstrap(cmd.Context())
			if err != nil {
				return err
			}

			prov.Report(rec)
			return nil
		},
	}
}

func newPackagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "packages",
		Short:   MsgPackagesShort,
		Long:    MsgPackagesLong,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}

			p, cfg, err := loadRun(cmd)
			if err != nil {
				return err
			}

			log.Info().
				Str("profile", p.ProfileRoot()).
				Msg("Installing package manifest")

			prov := provision.New(cfg, p, osFS, cmdRunner, narratorFor(cmd))
			rec, err := prov.InstallPackages(cmd.Context())
			if err != nil {
				return err
			}

			prov.Report(rec)
			return nil
		},
	}
}

func newDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "deploy [user...]",
		Short:             MsgDeployShort,
		Long:              MsgDeployLong,
		Example:           MsgDeployExample,
		GroupID:           "core",
		ValidArgsFunction: userNamesCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}

			p, cfg, err := loadRun(cmd)
			if err != nil {
				return err
			}

			log.Info().
				Str("profile", p.ProfileRoot()).
				Strs("users", args).
				Msg("Deploying user configuration")

			prov := provision.New(cfg, p, osFS, cmdRunner, narratorFor(cmd))
			rec, err := prov.DeployUsers(cmd.Context(), args)
			if err != nil {
				return err
			}

			prov.Report(rec)
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "users",
		Short:   MsgUsersShort,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadRun(cmd)
			if err != nil {
				return err
			}

			targets, err := users.Targets(osFS, targetFilter(cfg))
			if err != nil {
				return err
			}

			if len(targets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoUsers)
				return nil
			}

			data := pterm.TableData{{"USER", "UID", "HOME", "SHELL"}}
			for _, u := range targets {
				data = append(data, []string{u.Name, strconv.Itoa(u.UID), u.Home, u.Shell})
			}

			return pterm.DefaultTable.
				WithHasHeader().
				WithWriter(cmd.OutOrStdout()).
				WithData(data).
				Render()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   MsgStatusShort,
		Long:    MsgStatusLong,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadRun(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%-9s %s\n", "profile:", p.ProfileRoot())
			fmt.Fprintf(out, "%-9s %s\n", "helper:", describeHelper(cmd, cfg.Helper.Name))
			fmt.Fprintf(out, "%-9s %s\n", "users:", describeTargets(cfg))
			fmt.Fprintf(out, "%-9s %s\n", "last run:", describeLastRun(p))

			return nil
		},
	}
}

// describeHelper reports the helper's install state without failing
// status over a broken query
func describeHelper(cmd *cobra.Command, name string) string {
	state, err := pkgmgr.NewPacman(cmdRunner).Installed(cmd.Context(), name)
	if err != nil {
		return MsgHelperQueryFailed
	}
	if !state.Found {
		return MsgHelperNotInstalled
	}
	if state.Version == "" {
		return name
	}
	return name + " " + state.Version
}

func describeTargets(cfg *config.Config) string {
	targets, err := users.Targets(osFS, targetFilter(cfg))
	if err != nil {
		return fmt.Sprintf("unknown (%v)", err)
	}
	if len(targets) == 0 {
		return "none"
	}

	names := make([]string, len(targets))
	for i, u := range targets {
		names[i] = u.Name
	}
	return strings.Join(names, ", ")
}

func describeLastRun(p paths.Paths) string {
	summary, err := provision.ReadSummary(osFS, p.SummaryPath())
	if err != nil {
		return MsgNeverRan
	}

	line := fmt.Sprintf("%s, %d steps, %d warnings",
		summary.FinishedAt.Format("2006-01-02 15:04:05"),
		len(summary.Steps), summary.Warnings())
	if summary.Fatal != "" {
		line += fmt.Sprintf(" (aborted: %s)", summary.Fatal)
	}
	return line
}

func newGenconfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "genconfig",
		Short:   MsgGenconfigShort,
		Long:    MsgGenconfigLong,
		GroupID: "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			commented, _ := cmd.Flags().GetBool("commented")
			if commented {
				content, err := config.GenerateConfigContent(true)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			}

			_, err := cmd.OutOrStdout().Write(config.DefaultTOML())
			return err
		},
	}

	cmd.Flags().BoolP("commented", "c", false, "Comment out every value, leaving a template to uncomment")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat,
				version.Version, version.Commit, version.Date)
		},
	}
}

func newTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "topics",
		Short:   MsgTopicsShort,
		Long:    MsgTopicsLong,
		GroupID: "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Find the help command and execute it with "topics" argument
			if helpCmd, _, err := cmd.Root().Find([]string{"help"}); err == nil {
				if helpCmd.RunE != nil {
					return helpCmd.RunE(helpCmd, []string{"topics"})
				} else if helpCmd.Run != nil {
					helpCmd.Run(helpCmd, []string{"topics"})
					return nil
				}
			}
			return fmt.Errorf("help command not found")
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		GroupID:               "misc",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

// formatBold returns the string formatted as bold using pterm
func formatBold(s string) string {
	// Only apply formatting if output is a terminal
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return s
	}
	return pterm.Bold.Sprint(s)
}

// formatBoldUpper returns the string in uppercase and bold
func formatBoldUpper(s string) string {
	upper := strings.ToUpper(s)
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return upper
	}
	return pterm.Bold.Sprint(upper)
}

// initTemplateFormatting adds custom formatting functions to Cobra templates
func initTemplateFormatting() {
	cobra.AddTemplateFuncs(template.FuncMap{
		"bold":      formatBold,
		"boldUpper": formatBoldUpper,
	})
}
