package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"anything/internal/plugin"
)

// Manifest declares the plugin keys one plugin file provides. Manifests are
// small YAML documents dropped into the plugin directory:
//
//	keys:
//	  - journal
//	enabled: true
type Manifest struct {
	Keys    []string `yaml:"keys"`
	Enabled *bool    `yaml:"enabled"`
}

// readManifest parses a manifest file and returns its validated keys. A
// manifest with enabled=false contributes no keys. Invalid keys fail the
// whole manifest; the loader boundary is where key hygiene is enforced.
func readManifest(path string) ([]plugin.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}
	if manifest.Enabled != nil && !*manifest.Enabled {
		return nil, nil
	}

	keys := make([]plugin.Key, 0, len(manifest.Keys))
	seen := make(map[plugin.Key]struct{}, len(manifest.Keys))
	for _, raw := range manifest.Keys {
		key, err := plugin.ParseKey(raw)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", filepath.Base(path), err)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}

// isManifestPath reports whether a directory entry looks like a manifest.
func isManifestPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
