package plan

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validate checks a normalized plan for structural problems.
func (p *Plan) Validate() error {
	if p.Project.Name == "" {
		return errors.New("project.name must be set")
	}
	if !slugPattern.MatchString(p.Project.Name) {
		return fmt.Errorf("project.name %q must be a lowercase slug", p.Project.Name)
	}
	if p.Project.Version == "" {
		return errors.New("project.version must be set")
	}
	if p.DefaultConfig != "" {
		if _, ok := ParseConfiguration(p.DefaultConfig); !ok {
			return fmt.Errorf("default_config %q is not one of %s",
				p.DefaultConfig, strings.Join(ConfigurationNames(), ", "))
		}
	}
	if len(p.Artifacts) == 0 {
		return errors.New("plan has no artifacts")
	}

	targets := make(map[string]int, len(p.Artifacts))
	for i, a := range p.Artifacts {
		if err := p.validateArtifact(a); err != nil {
			return fmt.Errorf("artifact %d (%s): %w", i+1, describeArtifact(a), err)
		}
		target := path.Join(p.DestinationDir(a), a.TargetName())
		if prev, dup := targets[target]; dup {
			return fmt.Errorf("artifact %d (%s): duplicate install target %q (also produced by artifact %d)",
				i+1, describeArtifact(a), target, prev)
		}
		targets[target] = i + 1
	}
	return nil
}

func (p *Plan) validateArtifact(a Artifact) error {
	if a.Source == "" {
		return errors.New("source must be set")
	}
	if !isTreeRelative(a.Source) {
		return fmt.Errorf("source %q must stay inside the build tree", a.Source)
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("kind %q is not one of %s", a.Kind, strings.Join(kindNames(), ", "))
	}
	if a.Dest != "" && !isTreeRelative(a.Dest) {
		return fmt.Errorf("dest %q must stay inside the prefix", a.Dest)
	}
	if strings.ContainsAny(a.Rename, "/\\") {
		return fmt.Errorf("rename %q must be a bare file name", a.Rename)
	}
	if a.Mode != "" {
		value, err := strconv.ParseUint(a.Mode, 8, 32)
		if err != nil || value > 0o7777 {
			return fmt.Errorf("mode %q must be an octal file mode", a.Mode)
		}
	}
	if !slugPattern.MatchString(a.Component) {
		return fmt.Errorf("component %q must be a lowercase slug", a.Component)
	}
	for _, name := range a.Configs {
		if _, ok := ParseConfiguration(name); !ok {
			return fmt.Errorf("configs entry %q is not one of %s",
				name, strings.Join(ConfigurationNames(), ", "))
		}
	}
	return nil
}

// isTreeRelative rejects absolute paths and paths that climb out of their
// root after cleaning.
func isTreeRelative(value string) bool {
	if value == "" || strings.HasPrefix(value, "/") || strings.HasPrefix(value, "\\") {
		return false
	}
	cleaned := path.Clean(value)
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

func describeArtifact(a Artifact) string {
	if a.Source != "" {
		return a.Source
	}
	return string(a.Kind)
}
