package config

import (
	"strings"

	"github.com/arthur-debert/doarch/pkg/errors"
	"github.com/pelletier/go-toml/v2"
)

// GenerateConfigContent renders the default configuration as TOML.
// With commented true every value line is commented out, giving a
// template the user can uncomment selectively.
func GenerateConfigContent(commented bool) (string, error) {
	data, err := toml.Marshal(Default())
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrInternal, "failed to marshal default configuration")
	}

	content := string(data)
	if commented {
		content = commentOutConfigValues(content)
	}
	return content, nil
}

// commentOutConfigValues comments out every assignment line, keeping
// blank lines, existing comments and section headers as-is
func commentOutConfigValues(content string) string {
	lines := strings.Split(content, "\n")
	var result []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			result = append(result, line)
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			result = append(result, line)
			continue
		}

		// Section headers ([helper], [[firewall.ports]]) stay visible
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			result = append(result, line)
			continue
		}

		result = append(result, "# "+line)
	}

	return strings.Join(result, "\n")
}
