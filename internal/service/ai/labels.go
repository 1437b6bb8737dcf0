package ai

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadLabels reads class names from a data.yaml style file. `names` may be a
// list or an index to name mapping.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}

	switch doc.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, fmt.Errorf("failed to decode names: %w", err)
		}
		return names, nil
	case yaml.MappingNode:
		var byIndex map[int]string
		if err := doc.Names.Decode(&byIndex); err != nil {
			return nil, fmt.Errorf("failed to decode names: %w", err)
		}
		max := -1
		for idx := range byIndex {
			if idx < 0 {
				return nil, fmt.Errorf("negative class index %d", idx)
			}
			if idx > max {
				max = idx
			}
		}
		names := make([]string, max+1)
		for idx, name := range byIndex {
			names[idx] = name
		}
		return names, nil
	}
	return nil, fmt.Errorf("labels file %s has no names", path)
}

// LabelFor maps a class ID to its name, falling back to class<N>.
func LabelFor(labels []string, classID int) string {
	if classID >= 0 && classID < len(labels) && labels[classID] != "" {
		return labels[classID]
	}
	return fmt.Sprintf("class%d", classID)
}
