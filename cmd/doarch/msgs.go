package doarch

// Short messages (one-liners)
const (
	MsgRootShort      = "Arch Linux post-install provisioning"
	MsgProvisionShort = "Run the full provisioning sequence"
	MsgBootstrapShort = "Install the AUR helper only"
	MsgPackagesShort  = "Install the profile's package manifest only"
	MsgDeployShort    = "Deploy configuration templates to user homes"
	MsgUsersShort     = "List the users provisioning would target"
	MsgStatusShort    = "Show helper, profile and last-run state"
	MsgGenconfigShort = "Print the default configuration"
	MsgVersionShort   = "Print version information"
	MsgTopicsShort    = "Display available documentation topics"
	MsgTopicsLong     = "Display a list of all help topics that provide documentation beyond command help."

	MsgCompletionShort = "Generate shell completion script"

	// Flag descriptions
	MsgFlagVerbose = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagProfile = "Profile directory (overrides DOARCH_PROFILE and git discovery)"

	// Status output
	MsgNoUsers  = "No target users found."
	MsgNeverRan = "never"

	MsgHelperNotInstalled = "not installed"
	MsgHelperQueryFailed  = "unknown (query failed)"

	// Error messages
	MsgErrNeedRoot = "this command must run as root (try sudo)"
)

// Formats
const (
	MsgVersionFormat = "doarch version %s\n  commit: %s\n  built:  %s\n"

	MsgFallbackWarning = "Warning: no profile configured, using %s\nSet DOARCH_PROFILE or pass --profile to silence this.\n\n"
)

// MsgUsageTemplate is the root usage template. bold and boldUpper are
// registered by initTemplateFormatting.
const MsgUsageTemplate = `{{boldUpper "Usage:"}}{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

{{boldUpper "Aliases:"}}
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

{{boldUpper "Examples:"}}
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

{{boldUpper "Available Commands:"}}{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{bold .Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

{{boldUpper "Additional Commands:"}}{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

{{boldUpper "Flags:"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

{{boldUpper "Global Flags:"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

// Long messages
const (
	MsgRootLong = `doarch takes a freshly installed Arch Linux machine to a configured
desktop in one run: it updates the system, bootstraps an AUR helper
with fallback acquisition strategies, installs the profile's package
manifest, applies system configuration, and deploys per-user
configuration templates with timestamped backups.

The profile directory (manifest, templates, assets) is found through
--profile, the DOARCH_PROFILE environment variable, or the enclosing
git repository.`

	MsgProvisionLong = `Provision runs the whole sequence in order: system update, build
prerequisites, AUR helper bootstrap, system configuration, package
manifest, per-user template deployment, default applications, Blender
presets and wallpapers.

Steps the rest of the run depends on abort it; everything else
degrades to warnings collected in the run summary. The summary is
printed at the end and persisted for doarch status.`

	MsgProvisionExample = `  # Provision using the profile found via DOARCH_PROFILE or git
  sudo doarch provision

  # Provision from an explicit profile directory
  sudo doarch provision --profile /srv/profiles/workstation`

	MsgBootstrapLong = `Bootstrap installs the configured AUR helper and nothing else. The
helper is acquired by trying each strategy in order (AUR git clone,
AUR snapshot tarball, upstream mirror build) with bounded retries,
built as the unprivileged build user, and installed system-wide.

Already-installed helpers are detected and left alone.`

	MsgPackagesLong = `Packages installs the profile's package manifest and nothing else.
Entries install through the AUR helper when it is available, falling
back to pacman otherwise. A failing package is a warning, not a stop.`

	MsgDeployLong = `Deploy copies the profile's template tree into each target user's
home and nothing else. Top-level entries land dot-prefixed (config
becomes ~/.config) unless an override maps them elsewhere. Existing
destinations are backed up first with the run's timestamp; trees are
replaced, never merged. Everything deployed ends up owned by the user.

Without arguments, target users come from configuration (explicit
include list, or discovery by UID and interactive shell). Naming
users on the command line deploys exactly those users instead.`

	MsgDeployExample = `  # Deploy to all target users
  sudo doarch deploy

  # Deploy to specific users only
  sudo doarch deploy kim alex`

	MsgStatusLong = `Status reports without changing anything: the resolved profile
directory, whether the AUR helper is installed and its version, the
target users, and the outcome of the last provisioning run.`

	MsgCompletionLong = `To load completions:

Bash:
  $ source <(doarch completion bash)
  # To load completions for each session, execute once:
  $ doarch completion bash > /etc/bash_completion.d/doarch

Zsh:
  $ doarch completion zsh > "${fpath[1]}/_doarch"

Fish:
  $ doarch completion fish | source
  # To load completions for each session, execute once:
  $ doarch completion fish > ~/.config/fish/completions/doarch.fish`

	MsgGenconfigLong = `Genconfig prints the built-in default configuration as TOML,
comments included. Redirect it to /etc/doarch/doarch.toml or to
doarch.toml inside a profile and edit from there; both files may be
partial, and every key falls back to these defaults.`
)
