package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"docwatch/internal/models"

	"gopkg.in/yaml.v3"
)

// Manifest lists the snapshot pairs of a batch run.
//
//	tables:
//	  - name: 项目进度表
//	    baseline: snapshots/2025-01-01/progress.csv
//	    current: snapshots/2025-01-08/progress.csv
type Manifest struct {
	Tables []ManifestEntry `yaml:"tables"`
}

// ManifestEntry is one table in a manifest. Relative paths resolve against
// the manifest's directory.
type ManifestEntry struct {
	Name     string `yaml:"name"`
	Baseline string `yaml:"baseline"`
	Current  string `yaml:"current"`
}

// LoadManifest reads a manifest and the snapshots it names.
func LoadManifest(path string) ([]models.TablePair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Tables) == 0 {
		return nil, fmt.Errorf("manifest %s lists no tables", path)
	}

	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	seen := make(map[string]bool)
	pairs := make([]models.TablePair, 0, len(m.Tables))
	for i, entry := range m.Tables {
		if entry.Baseline == "" || entry.Current == "" {
			return nil, fmt.Errorf("manifest entry %d: baseline and current are required", i)
		}
		baseline, err := LoadCSV(resolve(entry.Baseline))
		if err != nil {
			return nil, err
		}
		current, err := LoadCSV(resolve(entry.Current))
		if err != nil {
			return nil, err
		}

		name := entry.Name
		if name == "" {
			name = current.Name
		}
		if seen[name] {
			return nil, errors.New("manifest lists table " + name + " twice")
		}
		seen[name] = true

		pairs = append(pairs, models.TablePair{Name: name, Baseline: baseline, Current: current})
	}
	return pairs, nil
}
