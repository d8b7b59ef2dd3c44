package dropmon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"stagehand/internal/plan"
)

// Fingerprint derives a stable identity for a dropped build tree from the
// plan identity and a stat signature of every artifact source. Editing the
// plan or rebuilding an artifact changes the fingerprint; re-dropping an
// unchanged tree does not.
func Fingerprint(tree string, p *plan.Plan) (string, error) {
	if p == nil {
		return "", fmt.Errorf("fingerprint: plan is required")
	}

	cfg, err := plan.SelectConfiguration("", p.DefaultConfig)
	if err != nil {
		return "", fmt.Errorf("fingerprint configuration: %w", err)
	}

	h := sha256.New()
	field := func(value string) {
		_, _ = h.Write([]byte(value))
		_, _ = h.Write([]byte{0})
	}

	field(p.Project.Name)
	field(p.Project.Version)
	field(cfg.String())

	for _, artifact := range p.Artifacts {
		source := plan.ExpandPlaceholders(artifact.Source, cfg)
		field(source)

		info, err := os.Stat(filepath.Join(tree, filepath.FromSlash(source)))
		if err != nil {
			if os.IsNotExist(err) {
				field("absent")
				continue
			}
			return "", fmt.Errorf("stat %s: %w", source, err)
		}
		field(strconv.FormatInt(info.Size(), 10))
		field(strconv.FormatInt(info.ModTime().UnixNano(), 10))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
