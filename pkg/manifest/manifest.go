// Package manifest parses the profile's package list.
//
// The format is deliberately plain: one package identifier per line,
// blank lines and #-comment lines skipped, inline comments after the
// identifier stripped. Order is meaningful and duplicates are kept as
// written; the installer decides what a repeated install means.
package manifest

import (
	"strings"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/filesystem"
)

// Manifest is the ordered list of packages to install
type Manifest struct {
	// Path is where the manifest was loaded from, for messages
	Path string
	// Packages in file order
	Packages []string
}

// Len returns the number of installable entries
func (m Manifest) Len() int {
	return len(m.Packages)
}

// Parse reads manifest content into its installable entries
func Parse(data []byte) Manifest {
	var packages []string

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Inline comment: a '#' preceded by whitespace
		if i := strings.IndexByte(line, '#'); i > 0 && (line[i-1] == ' ' || line[i-1] == '\t') {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		packages = append(packages, line)
	}

	return Manifest{Packages: packages}
}

// Load reads and parses the manifest file
func Load(fsys filesystem.FS, path string) (Manifest, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, errors.ErrManifestRead,
			"failed to read package manifest %s", path)
	}

	m := Parse(data)
	m.Path = path
	return m, nil
}
