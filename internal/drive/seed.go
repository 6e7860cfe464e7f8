package drive

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk format of a drive seed: a YAML list of files.
type seedFile struct {
	Files []File `yaml:"files"`
}

// LoadSeed reads a YAML seed file and creates every listed file in store
// whose id is not present yet. It returns the number of files created.
func LoadSeed(ctx context.Context, store Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("drive: reading seed %s: %w", path, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("drive: parsing seed %s: %w", path, err)
	}

	created := 0
	for i, f := range seed.Files {
		if f.Name == "" {
			return created, fmt.Errorf("drive: seed %s: files[%d]: name is required", path, i)
		}
		if f.ID != "" {
			if _, err := store.Get(ctx, f.ID); err == nil {
				continue
			} else if !errors.Is(err, ErrFileNotFound) {
				return created, err
			}
		}
		if _, err := store.Create(ctx, f); err != nil {
			return created, fmt.Errorf("drive: seed %s: files[%d]: %w", path, i, err)
		}
		created++
	}
	return created, nil
}
