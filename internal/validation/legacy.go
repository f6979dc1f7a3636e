package validation

import (
	"encoding/json"

	"github.com/spf13/afero"
)

// LegacyManifest is the shape of the pre-existing per-file cache manifest
// at <config-root>/han/repos/<repo-slug>/cache/<plugin>_<hook>.json. It is
// read-only: new writes always go through Store.
type LegacyManifest struct {
	Files map[string]string `json:"files"`
}

// LoadLegacyManifest reads a legacy manifest file if present. A missing or
// unparseable file is not an error at this layer; callers treat an empty
// result the same as "no legacy data".
func LoadLegacyManifest(fs afero.Fs, path string) (LegacyManifest, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		return LegacyManifest{}, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return LegacyManifest{}, nil
	}
	var m LegacyManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return LegacyManifest{}, nil
	}
	return m, nil
}
