// Package users reads existing OS accounts for provisioning.
// Accounts are only ever read; doarch never creates or modifies them.
package users

import (
	"sort"
	"strconv"
	"strings"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/logging"
)

// PasswdPath is the account database parsed for discovery
const PasswdPath = "/etc/passwd"

// nonInteractiveShells mark system accounts during discovery
var nonInteractiveShells = map[string]bool{
	"":                  true,
	"/bin/false":        true,
	"/usr/bin/false":    true,
	"/bin/nologin":      true,
	"/sbin/nologin":     true,
	"/usr/bin/nologin":  true,
	"/usr/sbin/nologin": true,
}

// User is an existing OS account targeted by provisioning
type User struct {
	Name  string
	UID   int
	GID   int
	Home  string
	Shell string
}

// Filter selects provisioning targets from the account database
type Filter struct {
	// MinUID is the lowest UID treated as a human account
	MinUID int
	// Include names users explicitly, replacing discovery
	Include []string
	// Exclude removes users from the result regardless of origin
	Exclude []string
}

// List parses the account database into all known accounts
func List(fsys filesystem.FS) ([]User, error) {
	data, err := fsys.ReadFile(PasswdPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrUserLookup, "failed to read %s", PasswdPath)
	}

	var all []User
	for _, line := range strings.Split(string(data), "\n") {
		if u, ok := parseLine(line); ok {
			all = append(all, u)
		}
	}
	return all, nil
}

// parseLine reads one passwd entry: name:x:uid:gid:gecos:home:shell.
// Malformed lines are dropped rather than failing the whole database.
func parseLine(line string) (User, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return User{}, false
	}

	fields := strings.Split(line, ":")
	if len(fields) != 7 {
		return User{}, false
	}

	uid, err := strconv.Atoi(fields[2])
	if err != nil {
		return User{}, false
	}
	gid, err := strconv.Atoi(fields[3])
	if err != nil {
		return User{}, false
	}

	return User{
		Name:  fields[0],
		UID:   uid,
		GID:   gid,
		Home:  fields[5],
		Shell: fields[6],
	}, true
}

// Lookup finds a single account by name
func Lookup(fsys filesystem.FS, name string) (User, error) {
	all, err := List(fsys)
	if err != nil {
		return User{}, err
	}

	for _, u := range all {
		if u.Name == name {
			return u, nil
		}
	}
	return User{}, errors.Newf(errors.ErrUserLookup, "no such user: %s", name)
}

// Targets returns the users provisioning applies to. With Include set,
// each named user must exist and discovery is skipped entirely;
// otherwise discovery keeps accounts with an interactive shell and a
// UID at or above MinUID, ordered by UID. Excluded names are removed
// either way.
func Targets(fsys filesystem.FS, f Filter) ([]User, error) {
	logger := logging.GetLogger("users")

	excluded := make(map[string]bool, len(f.Exclude))
	for _, name := range f.Exclude {
		excluded[name] = true
	}

	var targets []User

	if len(f.Include) > 0 {
		for _, name := range f.Include {
			if excluded[name] {
				continue
			}
			u, err := Lookup(fsys, name)
			if err != nil {
				return nil, err
			}
			targets = append(targets, u)
		}
	} else {
		all, err := List(fsys)
		if err != nil {
			return nil, err
		}
		for _, u := range all {
			if u.UID < f.MinUID || nonInteractiveShells[u.Shell] || excluded[u.Name] {
				continue
			}
			targets = append(targets, u)
		}
		// Discovery order follows UIDs; an explicit include list keeps
		// its configured order instead
		sort.Slice(targets, func(i, j int) bool { return targets[i].UID < targets[j].UID })
	}

	names := make([]string, len(targets))
	for i, u := range targets {
		names[i] = u.Name
	}
	logger.Debug().Strs("users", names).Msg("resolved target users")

	return targets, nil
}
