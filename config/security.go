package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/c360/beancontainer/errors"
)

// Limits on what a layer or an override may contain. A complete configuration
// is a few kilobytes and nests at most five levels (components.<name>.env.<key>
// holding a list or map), so the bounds leave room without accepting junk.
const (
	maxLayerSize  = 1 << 20
	maxLayerDepth = 16
	maxEnvValue   = 4096
)

var layerExtensions = []string{".json", ".yaml", ".yml"}

// readLayer reads one configuration layer after checking its name and size
func readLayer(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.Newf(errors.ErrInvalidConfig, "empty layer path")
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		return nil, errors.Newf(errors.ErrInvalidConfig, "layer path %s leaves its directory", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); !slices.Contains(layerExtensions, ext) {
		return nil, errors.Newf(errors.ErrInvalidConfig, "layer %s must be JSON or YAML", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Newf(errors.ErrInvalidConfig, "layer %s is not a regular file", path)
	}
	if info.Size() > maxLayerSize {
		return nil, errors.Newf(errors.ErrInvalidConfig, "layer %s is %d bytes, limit %d", path, info.Size(), maxLayerSize)
	}
	return os.ReadFile(path)
}

// checkNesting rejects decoded documents nested deeper than maxLayerDepth
func checkNesting(v any, depth int) error {
	if depth > maxLayerDepth {
		return errors.Newf(errors.ErrInvalidConfig, "layer nests deeper than %d levels", maxLayerDepth)
	}
	switch val := v.(type) {
	case map[string]any:
		for _, child := range val {
			if err := checkNesting(child, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range val {
			if err := checkNesting(child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkEnvValue(key, value string) error {
	if len(value) > maxEnvValue {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", errors.ErrInvalidConfig, key, len(value), maxEnvValue)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%w: null byte in %s", errors.ErrInvalidConfig, key)
	}
	return nil
}
