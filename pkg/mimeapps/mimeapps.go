// Package mimeapps registers per-user default applications through the
// desktop session's registry. Registration runs as each user so the
// association lands in that user's own mimeapps.list.
package mimeapps

import (
	"context"
	"fmt"

	"github.com/arthur-debert/doarch/pkg/config"
	"github.com/arthur-debert/doarch/pkg/executor"
	"github.com/arthur-debert/doarch/pkg/logging"
	"github.com/arthur-debert/doarch/pkg/users"
	"github.com/rs/zerolog"
)

// Registrar applies default-application associations
type Registrar struct {
	runner executor.Runner
	logger zerolog.Logger
}

// New creates a Registrar on the given runner
func New(runner executor.Runner) *Registrar {
	return &Registrar{runner: runner, logger: logging.GetLogger("mimeapps")}
}

// Apply registers every configured association for every target user.
// A failing association is a warning, never a stop; the failed ones
// come back as "user: type -> desktop" descriptors for the summary.
func (r *Registrar) Apply(ctx context.Context, defaults []config.MimeDefault, targets []users.User) []string {
	var warnings []string
	for _, user := range targets {
		cred := executor.Cred{
			Username: user.Name,
			UID:      user.UID,
			GID:      user.GID,
			Home:     user.Home,
		}
		for _, def := range defaults {
			for _, mimeType := range def.Types {
				as := cred
				_, err := r.runner.Run(ctx, executor.Command{
					Name: "xdg-mime",
					Args: []string{"default", def.Desktop, mimeType},
					As:   &as,
				})
				if err != nil {
					r.logger.Warn().Err(err).
						Str("user", user.Name).
						Str("type", mimeType).
						Str("desktop", def.Desktop).
						Msg("failed to register default application")
					warnings = append(warnings, fmt.Sprintf("%s: %s -> %s", user.Name, mimeType, def.Desktop))
				}
			}
		}
	}
	return warnings
}
