package plan

import (
	"fmt"
	"strings"
)

// Configuration identifies a build configuration produced by a multi-config
// build system.
type Configuration string

const (
	Debug          Configuration = "Debug"
	Release        Configuration = "Release"
	MinSizeRel     Configuration = "MinSizeRel"
	RelWithDebInfo Configuration = "RelWithDebInfo"
)

// ConfigPlaceholder marks the spot in a source path or file name where the
// selected configuration's lowercase name is substituted.
const ConfigPlaceholder = "@CONFIG@"

var configurations = []Configuration{Debug, Release, MinSizeRel, RelWithDebInfo}

// ParseConfiguration resolves a configuration name case-insensitively and
// returns the canonical spelling.
func ParseConfiguration(name string) (Configuration, bool) {
	trimmed := strings.TrimSpace(name)
	for _, cfg := range configurations {
		if strings.EqualFold(trimmed, string(cfg)) {
			return cfg, true
		}
	}
	return "", false
}

// ConfigurationNames returns the canonical names in declaration order.
func ConfigurationNames() []string {
	names := make([]string, len(configurations))
	for i, cfg := range configurations {
		names[i] = string(cfg)
	}
	return names
}

// SelectConfiguration picks the active configuration: an explicit request
// wins, then the plan default, then Release.
func SelectConfiguration(requested, planDefault string) (Configuration, error) {
	if strings.TrimSpace(requested) != "" {
		cfg, ok := ParseConfiguration(requested)
		if !ok {
			return "", fmt.Errorf("unknown build configuration %q (known: %s)",
				requested, strings.Join(ConfigurationNames(), ", "))
		}
		return cfg, nil
	}
	if strings.TrimSpace(planDefault) != "" {
		cfg, ok := ParseConfiguration(planDefault)
		if !ok {
			return "", fmt.Errorf("plan default configuration %q is not one of %s",
				planDefault, strings.Join(ConfigurationNames(), ", "))
		}
		return cfg, nil
	}
	return Release, nil
}

func (c Configuration) String() string {
	return string(c)
}

// Lower returns the lowercase form used in per-configuration file names.
func (c Configuration) Lower() string {
	return strings.ToLower(string(c))
}

// ExpandPlaceholders substitutes the configuration into every occurrence of
// ConfigPlaceholder.
func ExpandPlaceholders(value string, cfg Configuration) string {
	return strings.ReplaceAll(value, ConfigPlaceholder, cfg.Lower())
}
