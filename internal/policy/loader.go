package policy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// LoadRegoFiles reads every .rego module from the mission-policy bundle
// directory. Non-rego files (READMEs, editor droppings) are ignored so ops
// can keep notes next to the bundle.
func LoadRegoFiles(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read bundle dir %s: %w", dir, err)
	}

	modules := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".rego" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read policy module %s: %w", entry.Name(), err)
		}
		modules[entry.Name()] = string(data)
		slog.Debug("policy module read", "module", entry.Name(), "bytes", len(data))
	}
	return modules, nil
}
