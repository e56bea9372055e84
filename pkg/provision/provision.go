// Package provision orchestrates a full doarch run: system update,
// AUR helper bootstrap, system configuration, manifest installation
// and per-user deployment, in a fixed order. Steps that must hold for
// the rest of the run to make sense abort it; everything else degrades
// to warnings collected in the run summary.
package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/doarch/pkg/blender"
	"github.com/arthur-debert/doarch/pkg/bootstrap"
	"github.com/arthur-debert/doarch/pkg/config"
	"github.com/arthur-debert/doarch/pkg/deploy"
	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/firewall"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/arthur-debert/doarch/pkg/manifest"
	"github.com/arthur-debert/doarch/pkg/mimeapps"
	"github.com/arthur-debert/doarch/pkg/paths"
	"github.com/arthur-debert/doarch/pkg/pkgmgr"
	"github.com/arthur-debert/doarch/pkg/style"
	"github.com/arthur-debert/doarch/pkg/system"
	"github.com/arthur-debert/doarch/pkg/users"
)

// prereqs are installed before anything touches the AUR. They cover
// every acquisition path: git for cloning, base-devel for makepkg and
// its toolchain. The configured helper build_deps come on top of these.
var prereqs = []string{"base-devel", "git"}

// Provisioner runs the provisioning sequence
type Provisioner struct {
	cfg      *config.Config
	paths    paths.Paths
	fs       filesystem.FS
	runner   executor.Runner
	narrator *style.Narrator
	logger   zerolog.Logger

	// Now supplies the run timestamp; one run shares a single one
	Now func() time.Time

	// BuildRoot overrides where helper builds stage their work
	BuildRoot string
}

// New creates a Provisioner for one run
func New(cfg *config.Config, p paths.Paths, fsys filesystem.FS, runner executor.Runner, narrator *style.Narrator) *Provisioner {
	return &Provisioner{
		cfg:      cfg,
		paths:    p,
		fs:       fsys,
		runner:   runner,
		narrator: narrator,
		logger:   logging.GetLogger("provision"),
		Now:      time.Now,
	}
}

// step is one numbered unit of the run. A fatal step's error aborts
// the sequence; any other error folds into the step's record as a
// warning.
type step struct {
	name  string
	fatal bool
	run   func(ctx context.Context) (StepRecord, error)
}

// Run executes the full sequence. The summary comes back in every
// case, aborted runs included, so callers can always report what
// happened.
func (p *Provisioner) Run(ctx context.Context) (*Summary, error) {
	started := p.Now()
	summary := &Summary{
		StartedAt: started,
		Timestamp: paths.RunTimestamp(started),
		Profile:   p.paths.ProfileRoot(),
	}

	targets, err := users.Targets(p.fs, p.filter())
	if err != nil {
		return p.abort(summary, "Resolve target users", err)
	}
	for _, u := range targets {
		summary.Users = append(summary.Users, u.Name)
	}

	build, haveBuild, err := p.resolveBuildUser(targets)
	if err != nil {
		return p.abort(summary, "Resolve build user", err)
	}

	p.logger.Info().
		Str("profile", summary.Profile).
		Strs("users", summary.Users).
		Str("timestamp", summary.Timestamp).
		Msg("starting provisioning run")

	pac := pkgmgr.NewPacman(p.runner)
	steps := []step{
		{name: "Update system packages", fatal: true, run: p.updateStep(pac)},
		{name: "Install build prerequisites", fatal: true, run: p.prereqStep(pac)},
		{name: "Bootstrap " + p.cfg.Helper.Name, fatal: true, run: p.bootstrapStep(pac, build, haveBuild)},
		{name: "Apply system configuration", run: p.systemStep(build, haveBuild)},
		{name: "Install package manifest", run: p.manifestStep(pac, build, haveBuild)},
		{name: "Deploy user configuration", run: p.deployStep(targets, summary.Timestamp)},
		{name: "Register default applications", run: p.mimeStep(targets)},
		{name: "Deploy Blender presets", run: p.blenderStep(targets, summary.Timestamp)},
		{name: "Install wallpapers", run: p.wallpaperStep()},
	}

	total := len(steps)
	for i, s := range steps {
		if ctx.Err() != nil {
			err := errors.Wrap(ctx.Err(), errors.ErrInternal, "provisioning run cancelled")
			return p.abort(summary, s.name, err)
		}

		p.narrator.Step(i+1, total, s.name)
		record, err := s.run(ctx)
		record.Name = s.name

		if err != nil && s.fatal {
			record.Status = style.StatusFailed
			record.Detail = err.Error()
			summary.Steps = append(summary.Steps, record)
			p.narrator.Fail("%v", err)
			summary.Fatal = err.Error()
			p.finish(summary)
			return summary, err
		}
		if err != nil {
			record.Status = style.StatusWarning
			record.Warnings = append(record.Warnings, err.Error())
		}
		summary.Steps = append(summary.Steps, record)
		p.narrate(record)
	}

	p.finish(summary)
	return summary, nil
}

// abort records a failure that happened outside any step's own
// handling and finalizes the summary
func (p *Provisioner) abort(summary *Summary, name string, err error) (*Summary, error) {
	p.narrator.Fail("%v", err)
	summary.Steps = append(summary.Steps, StepRecord{
		Name:   name,
		Status: style.StatusFailed,
		Detail: err.Error(),
	})
	summary.Fatal = err.Error()
	p.finish(summary)
	return summary, err
}

// finish stamps the summary, persists it for doarch status and prints
// the closing report
func (p *Provisioner) finish(summary *Summary) {
	summary.FinishedAt = p.Now()
	if err := summary.Write(p.fs, p.paths.SummaryPath()); err != nil {
		p.logger.Warn().Err(err).Msg("failed to persist run summary")
	}
	p.narrator.Print(summary.Render())
	p.logger.Info().
		Int("steps", len(summary.Steps)).
		Int("warnings", summary.Warnings()).
		Str("fatal", summary.Fatal).
		Msg("provisioning run finished")
}

// narrate reports a completed step's record
func (p *Provisioner) narrate(r StepRecord) {
	switch r.Status {
	case style.StatusSkipped:
		p.narrator.Skip("%s", r.Detail)
	case style.StatusWarning:
		if r.Detail != "" {
			p.narrator.Warn("%s", r.Detail)
			return
		}
		p.narrator.Warn("completed with %d warnings", len(r.Warnings))
	default:
		if r.Detail != "" {
			p.narrator.Success("%s", r.Detail)
			return
		}
		p.narrator.Success("done")
	}
}

// Report narrates a step record, for commands that run a single step
// outside the numbered sequence
func (p *Provisioner) Report(r StepRecord) {
	p.narrate(r)
}

// filter is the configured target-user selection
func (p *Provisioner) filter() users.Filter {
	return users.Filter{
		MinUID:  p.cfg.Users.MinUID,
		Include: p.cfg.Users.Include,
		Exclude: p.cfg.Users.Exclude,
	}
}

// Bootstrap runs only the helper bootstrap portion of the sequence,
// for doarch bootstrap
func (p *Provisioner) Bootstrap(ctx context.Context) (StepRecord, error) {
	targets, err := users.Targets(p.fs, p.filter())
	if err != nil {
		return StepRecord{}, err
	}
	build, haveBuild, err := p.resolveBuildUser(targets)
	if err != nil {
		return StepRecord{}, err
	}
	return p.bootstrapStep(pkgmgr.NewPacman(p.runner), build, haveBuild)(ctx)
}

// InstallPackages runs only the manifest installation, for doarch
// packages
func (p *Provisioner) InstallPackages(ctx context.Context) (StepRecord, error) {
	targets, err := users.Targets(p.fs, p.filter())
	if err != nil {
		return StepRecord{}, err
	}
	build, haveBuild, err := p.resolveBuildUser(targets)
	if err != nil {
		return StepRecord{}, err
	}
	return p.manifestStep(pkgmgr.NewPacman(p.runner), build, haveBuild)(ctx)
}

// DeployUsers runs only the template deployment, for doarch deploy.
// Explicitly named users replace discovery entirely, configured
// excludes included; naming an account is taken at face value.
func (p *Provisioner) DeployUsers(ctx context.Context, names []string) (StepRecord, error) {
	filter := p.filter()
	if len(names) > 0 {
		filter.Include = names
		filter.Exclude = nil
	}
	targets, err := users.Targets(p.fs, filter)
	if err != nil {
		return StepRecord{}, err
	}
	return p.deployStep(targets, paths.RunTimestamp(p.Now()))(ctx)
}

// resolveBuildUser picks the unprivileged account acquisition and
// builds run as: the configured one when set, else the first target
// user. A configured name that does not resolve is a configuration
// error. Having no candidate at all is not, because a pre-installed
// helper needs no builds.
func (p *Provisioner) resolveBuildUser(targets []users.User) (executor.Cred, bool, error) {
	name := p.cfg.Helper.BuildUser
	if name == "" {
		if len(targets) == 0 {
			return executor.Cred{}, false, nil
		}
		return asCred(targets[0]), true, nil
	}

	u, err := users.Lookup(p.fs, name)
	if err != nil {
		return executor.Cred{}, false, errors.Wrapf(err, errors.ErrBuildUser,
			"configured build user %s not found", name)
	}
	return asCred(u), true, nil
}

func asCred(u users.User) executor.Cred {
	return executor.Cred{Username: u.Name, UID: u.UID, GID: u.GID, Home: u.Home}
}

// stepOutcome grades a warn-and-continue step from its collected
// warnings
func stepOutcome(warnings []string, okDetail string) StepRecord {
	if len(warnings) > 0 {
		return StepRecord{Status: style.StatusWarning, Warnings: warnings}
	}
	return StepRecord{Status: style.StatusOK, Detail: okDetail}
}

func (p *Provisioner) updateStep(pac *pkgmgr.Pacman) func(context.Context) (StepRecord, error) {
	return func(ctx context.Context) (StepRecord, error) {
		if err := pac.Update(ctx); err != nil {
			return StepRecord{}, err
		}
		return StepRecord{Status: style.StatusOK, Detail: "system is up to date"}, nil
	}
}

func (p *Provisioner) prereqStep(pac *pkgmgr.Pacman) func(context.Context) (StepRecord, error) {
	return func(ctx context.Context) (StepRecord, error) {
		if err := pac.Install(ctx, prereqs...); err != nil {
			return StepRecord{}, err
		}
		return StepRecord{Status: style.StatusOK, Detail: strings.Join(prereqs, ", ")}, nil
	}
}

func (p *Provisioner) bootstrapStep(pac *pkgmgr.Pacman, build executor.Cred, haveBuild bool) func(context.Context) (StepRecord, error) {
	return func(ctx context.Context) (StepRecord, error) {
		if !haveBuild {
			// Nothing can build the helper, but a pre-installed one
			// still satisfies the run.
			state, err := pac.Installed(ctx, p.cfg.Helper.Name)
			if err != nil {
				return StepRecord{}, err
			}
			if state.Found {
				return StepRecord{
					Status: style.StatusOK,
					Detail: installedDetail(p.cfg.Helper.Name, state.Version),
				}, nil
			}
			return StepRecord{}, errors.Newf(errors.ErrBuildUser,
				"no build user available to build %s", p.cfg.Helper.Name)
		}

		b := bootstrap.New(p.cfg.Helper, build, p.runner, pac, p.fs)
		if p.BuildRoot != "" {
			b.TempRoot = p.BuildRoot
		}
		report, err := b.Run(ctx)
		if err != nil {
			return StepRecord{}, err
		}
		if report.AlreadyInstalled {
			return StepRecord{
				Status: style.StatusOK,
				Detail: installedDetail(p.cfg.Helper.Name, report.Version),
			}, nil
		}
		return StepRecord{
			Status: style.StatusOK,
			Detail: fmt.Sprintf("%s installed via %s", p.cfg.Helper.Name, report.Strategy),
		}, nil
	}
}

func installedDetail(name, version string) string {
	if version == "" {
		return name + " already installed"
	}
	return fmt.Sprintf("%s %s already installed", name, version)
}

func (p *Provisioner) systemStep(build executor.Cred, haveBuild bool) func(context.Context) (StepRecord, error) {
	return func(ctx context.Context) (StepRecord, error) {
		var warnings []string
		warn := func(format string, args ...interface{}) {
			p.narrator.Warn(format, args...)
			warnings = append(warnings, fmt.Sprintf(format, args...))
		}

		sys := system.New(p.fs, p.runner)
		if err := sys.WriteSysctl(ctx); err != nil {
			warn("kernel tuning: %v", err)
		}

		buildUser := ""
		if haveBuild {
			buildUser = build.Username
		}
		if err := sys.WriteSudoers(ctx, buildUser); err != nil {
			warn("sudoers policy: %v", err)
		}

		fw := firewall.New(p.cfg.Firewall, p.fs, p.runner)
		fwWarnings, err := fw.Apply(ctx)
		if err != nil {
			warn("firewall: %v", err)
		}
		for _, w := range fwWarnings {
			warn("firewall: %s", w)
		}

		for _, unit := range sys.EnableServices(ctx, p.cfg.System.Services) {
			warn("service %s failed to enable", unit)
		}
		for _, line := range sys.RunSetupCommands(ctx, p.cfg.System.SetupCommands) {
			warn("setup command failed: %s", line)
		}

		return stepOutcome(warnings, "system configuration applied"), nil
	}
}

func (p *Provisioner) manifestStep(pac *pkgmgr.Pacman, build executor.Cred, haveBuild bool) func(context.Context) (StepRecord, error) {
	return func(ctx context.Context) (StepRecord, error) {
		if p.cfg.Profile.Manifest == "" {
			return StepRecord{Status: style.StatusSkipped, Detail: "no package manifest configured"}, nil
		}
		path := p.paths.InProfile(p.cfg.Profile.Manifest)
		if !filesystem.Exists(p.fs, path) {
			return StepRecord{Status: style.StatusSkipped, Detail: "profile has no package manifest"}, nil
		}

		m, err := manifest.Load(p.fs, path)
		if err != nil {
			p.narrator.Warn("%v", err)
			return StepRecord{Status: style.StatusWarning, Warnings: []string{err.Error()}}, nil
		}
		if m.Len() == 0 {
			return StepRecord{Status: style.StatusSkipped, Detail: "package manifest is empty"}, nil
		}

		// The helper resolves AUR names as well as repository names,
		// so it handles the whole manifest when it is available. The
		// pacman fallback covers helper-less runs at the price of AUR
		// entries failing.
		var helper *pkgmgr.Helper
		if haveBuild {
			if h := pkgmgr.NewHelper(p.runner, p.cfg.Helper.Name, build); h.Present() {
				helper = h
			}
		}
		if helper == nil {
			p.logger.Warn().Str("helper", p.cfg.Helper.Name).Msg("helper unavailable, installing manifest with pacman")
		}

		var warnings []string
		installed := 0
		for _, name := range m.Packages {
			var err error
			if helper != nil {
				err = helper.Install(ctx, name)
			} else {
				err = pac.Install(ctx, name)
			}
			if err != nil {
				p.narrator.Warn("package %s failed", name)
				p.logger.Warn().Err(err).Str("package", name).Msg("package install failed")
				warnings = append(warnings, "package "+name+" failed")
				continue
			}
			installed++
		}

		record := stepOutcome(warnings, "")
		record.Detail = fmt.Sprintf("%d of %d packages installed", installed, m.Len())
		return record, nil
	}
}

func (p *Provisioner) deployStep(targets []users.User, timestamp string) func(context.Context) (StepRecord, error) {
	return func(ctx context.Context) (StepRecord, error) {
		if p.cfg.Profile.Templates == "" {
			return StepRecord{Status: style.StatusSkipped, Detail: "no template tree configured"}, nil
		}
		templates := p.paths.InProfile(p.cfg.Profile.Templates)
		if !filesystem.IsDir(p.fs, templates) {
			return StepRecord{Status: style.StatusSkipped, Detail: "profile has no template tree"}, nil
		}
		if len(targets) == 0 {
			return StepRecord{Status: style.StatusSkipped, Detail: "no target users"}, nil
		}

		d := deploy.New(p.fs, p.cfg.Deploy.Overrides)
		return p.userOutcome(d.Run(templates, targets, timestamp), "configuration deployed"), nil
	}
}

func (p *Provisioner) mimeStep(targets []users.User) func(context.Context) (StepRecord, error) {
	return func(ctx context.Context) (StepRecord, error) {
		if len(p.cfg.Mime.Defaults) == 0 {
			return StepRecord{Status: style.StatusSkipped, Detail: "no default applications configured"}, nil
		}
		if len(targets) == 0 {
			return StepRecord{Status: style.StatusSkipped, Detail: "no target users"}, nil
		}

		var warnings []string
		for _, w := range mimeapps.New(p.runner).Apply(ctx, p.cfg.Mime.Defaults, targets) {
			p.narrator.Warn("%s", w)
			warnings = append(warnings, w)
		}
		return stepOutcome(warnings, "default applications registered"), nil
	}
}

func (p *Provisioner) blenderStep(targets []users.User, timestamp string) func(context.Context) (StepRecord, error) {
	return func(ctx context.Context) (StepRecord, error) {
		if p.cfg.Profile.Blender == "" {
			return StepRecord{Status: style.StatusSkipped, Detail: "no Blender presets configured"}, nil
		}
		presets := p.paths.InProfile(p.cfg.Profile.Blender)
		if !filesystem.IsDir(p.fs, presets) {
			return StepRecord{Status: style.StatusSkipped, Detail: "profile has no Blender presets"}, nil
		}
		if len(targets) == 0 {
			return StepRecord{Status: style.StatusSkipped, Detail: "no target users"}, nil
		}

		b := blender.New(p.cfg.Blender, p.fs)
		return p.userOutcome(b.Apply(presets, targets, timestamp), "presets deployed"), nil
	}
}

func (p *Provisioner) wallpaperStep() func(context.Context) (StepRecord, error) {
	return func(ctx context.Context) (StepRecord, error) {
		if p.cfg.Profile.Wallpapers == "" {
			return StepRecord{Status: style.StatusSkipped, Detail: "no wallpapers configured"}, nil
		}
		src := p.paths.InProfile(p.cfg.Profile.Wallpapers)
		if !filesystem.IsDir(p.fs, src) {
			return StepRecord{Status: style.StatusSkipped, Detail: "profile has no wallpapers"}, nil
		}

		if err := filesystem.CopyTree(p.fs, src, paths.WallpaperInstallDir); err != nil {
			p.narrator.Warn("%v", err)
			return StepRecord{Status: style.StatusWarning, Warnings: []string{err.Error()}}, nil
		}
		return StepRecord{Status: style.StatusOK, Detail: "wallpapers installed to " + paths.WallpaperInstallDir}, nil
	}
}

// userOutcome grades a per-user step from its reports. Failed users
// become warnings; skipped users are narrated but do not degrade the
// step.
func (p *Provisioner) userOutcome(reports []deploy.UserReport, what string) StepRecord {
	var warnings []string
	done := 0
	for _, r := range reports {
		switch {
		case r.Err != nil:
			p.narrator.Warn("%s: %v", r.User.Name, r.Err)
			warnings = append(warnings, fmt.Sprintf("%s: %v", r.User.Name, r.Err))
		case r.Skipped:
			p.narrator.Skip("%s: %s", r.User.Name, r.Reason)
		default:
			done++
		}
	}

	record := stepOutcome(warnings, "")
	record.Detail = fmt.Sprintf("%s for %d of %d users", what, done, len(reports))
	return record
}
