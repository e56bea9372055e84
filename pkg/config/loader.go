package config

import (
	_ "embed"
	"os"
	"strings"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/arthur-debert/doarch/pkg/paths"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvPrefix is the prefix for configuration environment variables.
// A double underscore separates sections from keys so snake_case key
// names survive: DOARCH_HELPER__BUILD_USER -> helper.build_user.
const EnvPrefix = "DOARCH_"

// DefaultTOML returns the embedded default configuration verbatim,
// comments included. doarch genconfig prints exactly this.
func DefaultTOML() []byte {
	return defaultConfig
}

// Load loads the layered configuration for a run rooted at the given
// profile: embedded defaults, then the machine config, then the
// profile config, then DOARCH_* environment variables. Missing files
// are skipped; the embedded defaults guarantee a complete result.
func Load(p paths.Paths) (*Config, error) {
	return LoadFiles(paths.SystemConfigFile, p.ProfileConfigPath())
}

// LoadFiles loads configuration from explicit candidate files, in
// order, each overriding the previous. Files that do not exist are
// skipped silently.
func LoadFiles(files ...string) (*Config, error) {
	return parse(files, true)
}

func parse(files []string, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(rawbytes.Provider(defaultConfig), toml.Parser()); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load built-in defaults")
	}

	// 2. Config files, each layer overriding the previous
	for _, path := range files {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", path)
		}
	}

	// 3. Environment variables
	if withEnv {
		err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
			return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
		}), nil)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load environment variables")
		}
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
