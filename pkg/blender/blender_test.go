package blender_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/doarch/pkg/blender"
	"github.com/arthur-debert/doarch/pkg/config"
	"github.com/arthur-debert/doarch/pkg/filesystem"
	"github.com/arthur-debert/doarch/pkg/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runStamp = "20240309-140502"

var kim = users.User{Name: "kim", UID: 1000, GID: 1000, Home: "/home/kim"}

func writeTree(t *testing.T, fsys filesystem.FS, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if strings.HasSuffix(path, "/") {
			require.NoError(t, fsys.MkdirAll(strings.TrimSuffix(path, "/"), 0755))
			continue
		}
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, fsys.WriteFile(path, []byte(content), 0644))
	}
}

func readFile(t *testing.T, fsys filesystem.FS, path string) string {
	t.Helper()
	data, err := fsys.ReadFile(path)
	require.NoError(t, err, "expected %s to exist", path)
	return string(data)
}

func TestApplyPicksNewestVersion(t *testing.T) {
	fs := filesystem.NewMemory()
	writeTree(t, fs, map[string]string{
		"/profile/blender/startup.blend":      "preset",
		"/home/kim/.config/blender/3.6/":      "",
		"/home/kim/.config/blender/4.2/":      "",
		"/home/kim/.config/blender/4.10/":     "",
		"/home/kim/.config/blender/backups/":  "",
		"/home/kim/.config/blender/notes.txt": "not a version",
	})

	reports := blender.New(config.Blender{}, fs).Apply("/profile/blender", []users.User{kim}, runStamp)
	require.Len(t, reports, 1)
	require.NoError(t, reports[0].Err)
	assert.False(t, reports[0].Skipped)

	// 4.10 is newer than 4.2: versions compare numerically, not as strings
	assert.Equal(t, "preset",
		readFile(t, fs, "/home/kim/.config/blender/4.10/config/startup.blend"))
	assert.False(t, filesystem.Exists(fs, "/home/kim/.config/blender/4.2/config"))
}

func TestApplyBacksUpExistingConfig(t *testing.T) {
	fs := filesystem.NewMemory()
	writeTree(t, fs, map[string]string{
		"/profile/blender/startup.blend":                      "preset",
		"/home/kim/.config/blender/4.1/config/userpref.blend": "user prefs",
	})

	reports := blender.New(config.Blender{}, fs).Apply("/profile/blender", []users.User{kim}, runStamp)
	require.NoError(t, reports[0].Err)

	backup := "/home/kim/.config/blender/4.1/config.bak." + runStamp
	assert.Equal(t, "user prefs", readFile(t, fs, backup+"/userpref.blend"))
	assert.Equal(t, "preset",
		readFile(t, fs, "/home/kim/.config/blender/4.1/config/startup.blend"))
	require.Len(t, reports[0].Targets, 1)
	assert.True(t, reports[0].Targets[0].BackedUp)
}

func TestApplyCreatesPinnedVersion(t *testing.T) {
	fs := filesystem.NewMemory()
	writeTree(t, fs, map[string]string{
		"/profile/blender/startup.blend": "preset",
		"/home/kim/":                     "",
	})

	reports := blender.New(config.Blender{Version: "4.1"}, fs).Apply("/profile/blender", []users.User{kim}, runStamp)
	require.NoError(t, reports[0].Err)
	assert.False(t, reports[0].Skipped)
	assert.Equal(t, "preset",
		readFile(t, fs, "/home/kim/.config/blender/4.1/config/startup.blend"))
}

func TestApplySkipsUserWithoutBlender(t *testing.T) {
	fs := filesystem.NewMemory()
	writeTree(t, fs, map[string]string{
		"/profile/blender/startup.blend": "preset",
		"/home/kim/":                     "",
	})

	reports := blender.New(config.Blender{}, fs).Apply("/profile/blender", []users.User{kim}, runStamp)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Skipped)
	assert.NoError(t, reports[0].Err)
	assert.False(t, filesystem.Exists(fs, "/home/kim/.config/blender"))
}

func TestApplySkipsMissingHome(t *testing.T) {
	fs := filesystem.NewMemory()
	writeTree(t, fs, map[string]string{"/profile/blender/startup.blend": "preset"})
	ghost := users.User{Name: "ghost", UID: 1001, GID: 1001, Home: "/home/ghost"}

	reports := blender.New(config.Blender{Version: "4.1"}, fs).Apply("/profile/blender", []users.User{ghost}, runStamp)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Skipped)
	assert.False(t, filesystem.Exists(fs, "/home/ghost"))
}

func TestApplyWithoutPresetsIsSkip(t *testing.T) {
	fs := filesystem.NewMemory()
	writeTree(t, fs, map[string]string{"/home/kim/.config/blender/4.1/": ""})

	reports := blender.New(config.Blender{}, fs).Apply("/profile/absent", []users.User{kim}, runStamp)
	assert.Nil(t, reports)
}
