package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadProject reads a schema document. Files ending in .yaml/.yml are parsed
// as YAML, everything else as JSON.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseProject(data, filepath.Ext(path))
}

func ParseProject(data []byte, ext string) (*Project, error) {
	var p Project
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse YAML schema: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse JSON schema: %w", err)
		}
	}
	return &p, nil
}

func SaveProject(path string, p *Project) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(p)
	default:
		data, err = json.MarshalIndent(p, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create schema directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

func sortFKs(fks []ForeignKey) {
	sort.SliceStable(fks, func(i, j int) bool {
		if fks[i].ChildColumn != fks[j].ChildColumn {
			return fks[i].ChildColumn < fks[j].ChildColumn
		}
		return fks[i].ParentTable < fks[j].ParentTable
	})
}
