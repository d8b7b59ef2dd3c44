package plan

import (
	_ "embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultFileName is the plan file looked for at a build tree root.
const DefaultFileName = "install.toml"

//go:embed sample_plan.toml
var samplePlan string

// Kind classifies an installable artifact and determines its default
// destination, mode, and component.
type Kind string

const (
	KindStaticLib   Kind = "static-lib"
	KindSharedLib   Kind = "shared-lib"
	KindExecutable  Kind = "executable"
	KindHeader      Kind = "header"
	KindPkgConfig   Kind = "pkgconfig"
	KindCMakeExport Kind = "cmake-export"
	KindCMakeConfig Kind = "cmake-config"
	KindData        Kind = "data"
)

var kinds = []Kind{
	KindStaticLib,
	KindSharedLib,
	KindExecutable,
	KindHeader,
	KindPkgConfig,
	KindCMakeExport,
	KindCMakeConfig,
	KindData,
}

// Valid reports whether the kind is one of the known artifact kinds.
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// DefaultMode returns the file mode applied when an entry does not set one.
func (k Kind) DefaultMode() fs.FileMode {
	switch k {
	case KindSharedLib, KindExecutable:
		return 0o755
	default:
		return 0o644
	}
}

// DefaultComponent returns the component an entry belongs to when it does
// not name one.
func (k Kind) DefaultComponent() string {
	switch k {
	case KindHeader, KindPkgConfig, KindCMakeExport, KindCMakeConfig:
		return "development"
	default:
		return "runtime"
	}
}

func kindNames() []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

// Project describes the software the plan installs.
type Project struct {
	Name        string `toml:"name"`
	DisplayName string `toml:"display_name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
}

// Layout maps artifact kinds to prefix-relative directories. Empty fields
// take repository defaults during normalization.
type Layout struct {
	LibDir       string `toml:"libdir"`
	IncludeDir   string `toml:"includedir"`
	PkgConfigDir string `toml:"pkgconfigdir"`
	CMakeDir     string `toml:"cmakedir"`
	BinDir       string `toml:"bindir"`
	DataDir      string `toml:"datadir"`
}

// Artifact is one installable entry of a plan.
type Artifact struct {
	Source    string   `toml:"source"`
	Kind      Kind     `toml:"kind"`
	Dest      string   `toml:"dest"`
	Rename    string   `toml:"rename"`
	Mode      string   `toml:"mode"`
	Component string   `toml:"component"`
	Configs   []string `toml:"configs"`
	Optional  bool     `toml:"optional"`
}

// Plan is a parsed install plan.
type Plan struct {
	DefaultConfig string     `toml:"default_config"`
	Project       Project    `toml:"project"`
	Layout        Layout     `toml:"layout"`
	Artifacts     []Artifact `toml:"artifact"`
}

// Load reads and parses a plan file.
func Load(pathValue string) (*Plan, error) {
	data, err := os.ReadFile(pathValue)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", pathValue, err)
	}
	return p, nil
}

// Parse decodes, normalizes, and validates plan TOML.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Locate returns the plan file inside a build tree. A path naming a file is
// returned as-is; a directory resolves to its DefaultFileName.
func Locate(buildTree string) (string, error) {
	info, err := os.Stat(buildTree)
	if err != nil {
		return "", fmt.Errorf("stat build tree: %w", err)
	}
	if !info.IsDir() {
		return buildTree, nil
	}
	planPath := filepath.Join(buildTree, DefaultFileName)
	if _, err := os.Stat(planPath); err != nil {
		return "", fmt.Errorf("no %s in %s: %w", DefaultFileName, buildTree, err)
	}
	return planPath, nil
}

func (p *Plan) normalize() {
	p.DefaultConfig = strings.TrimSpace(p.DefaultConfig)
	p.Project.Name = strings.TrimSpace(p.Project.Name)
	p.Project.DisplayName = strings.TrimSpace(p.Project.DisplayName)
	p.Project.Version = strings.TrimSpace(p.Project.Version)
	if p.Project.DisplayName == "" {
		p.Project.DisplayName = deriveDisplayName(p.Project.Name)
	}
	p.Layout = p.Layout.withDefaults(p.Project.DisplayName)
	for i := range p.Artifacts {
		a := &p.Artifacts[i]
		a.Source = strings.TrimSpace(a.Source)
		a.Dest = strings.Trim(strings.TrimSpace(a.Dest), "/")
		a.Rename = strings.TrimSpace(a.Rename)
		a.Mode = strings.TrimSpace(a.Mode)
		a.Component = strings.ToLower(strings.TrimSpace(a.Component))
		if a.Component == "" {
			a.Component = a.Kind.DefaultComponent()
		}
	}
}

func (l Layout) withDefaults(displayName string) Layout {
	clean := func(value, fallback string) string {
		value = strings.Trim(strings.TrimSpace(value), "/")
		if value == "" {
			return fallback
		}
		return value
	}
	l.LibDir = clean(l.LibDir, "lib")
	l.IncludeDir = clean(l.IncludeDir, "include")
	l.PkgConfigDir = clean(l.PkgConfigDir, path.Join(l.LibDir, "pkgconfig"))
	l.CMakeDir = clean(l.CMakeDir, path.Join(l.LibDir, "cmake", displayName))
	l.BinDir = clean(l.BinDir, "bin")
	l.DataDir = clean(l.DataDir, "share")
	return l
}

func deriveDisplayName(slug string) string {
	if slug == "" {
		return ""
	}
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	titled := cases.Title(language.Und)
	for i, word := range words {
		words[i] = titled.String(word)
	}
	return strings.Join(words, "")
}

// DestinationDir returns the prefix-relative directory an entry installs
// into, honoring a per-entry override before the kind default.
func (p *Plan) DestinationDir(a Artifact) string {
	if a.Dest != "" {
		return a.Dest
	}
	switch a.Kind {
	case KindStaticLib, KindSharedLib:
		return p.Layout.LibDir
	case KindExecutable:
		return p.Layout.BinDir
	case KindHeader:
		return path.Join(p.Layout.IncludeDir, p.Project.Name)
	case KindPkgConfig:
		return p.Layout.PkgConfigDir
	case KindCMakeExport, KindCMakeConfig:
		return p.Layout.CMakeDir
	default:
		return p.Layout.DataDir
	}
}

// TargetName returns the installed basename of an entry before configuration
// placeholders are expanded.
func (a Artifact) TargetName() string {
	if a.Rename != "" {
		return a.Rename
	}
	return path.Base(a.Source)
}

// FileMode returns the entry's effective mode. Validation guarantees the
// mode string parses.
func (a Artifact) FileMode() fs.FileMode {
	if a.Mode == "" {
		return a.Kind.DefaultMode()
	}
	value, err := strconv.ParseUint(a.Mode, 8, 32)
	if err != nil {
		return a.Kind.DefaultMode()
	}
	return fs.FileMode(value)
}

// AppliesTo reports whether the entry installs under the given
// configuration.
func (a Artifact) AppliesTo(cfg Configuration) bool {
	if len(a.Configs) == 0 {
		return true
	}
	for _, name := range a.Configs {
		if parsed, ok := ParseConfiguration(name); ok && parsed == cfg {
			return true
		}
	}
	return false
}

// Components returns the sorted set of component names used by the plan.
func (p *Plan) Components() []string {
	seen := make(map[string]struct{}, len(p.Artifacts))
	for _, a := range p.Artifacts {
		seen[a.Component] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasComponent reports whether any entry belongs to the named component.
func (p *Plan) HasComponent(name string) bool {
	for _, a := range p.Artifacts {
		if a.Component == name {
			return true
		}
	}
	return false
}

// Sample returns the embedded sample plan.
func Sample() string {
	return samplePlan
}

// CreateSample writes the embedded sample plan to the given path.
func CreateSample(pathValue string) error {
	if dir := filepath.Dir(pathValue); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create plan directory: %w", err)
		}
	}
	if err := os.WriteFile(pathValue, []byte(samplePlan), 0o644); err != nil {
		return fmt.Errorf("write sample plan: %w", err)
	}
	return nil
}
