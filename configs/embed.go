// Package configs embeds the default bridge configuration.
package configs

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

// Default is the embedded configuration used when no file is given.
const Default = "bridge.yaml"

//go:embed *.yaml
var embeddedConfigs embed.FS

// Names returns the embedded YAML config filenames.
func Names() []string {
	entries, err := fs.Glob(embeddedConfigs, "*.yaml")
	if err != nil {
		return nil
	}
	sort.Strings(entries)
	return entries
}

// Load returns the embedded YAML config by filename.
func Load(name string) ([]byte, error) {
	if name == "" {
		name = Default
	}
	data, err := fs.ReadFile(embeddedConfigs, name)
	if err != nil {
		return nil, fmt.Errorf("read embedded config %q: %w", name, err)
	}
	return data, nil
}
