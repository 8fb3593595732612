package patients

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// catalogEntry is one record of a seed file. follow_up_questions may be a
// mapping of category to questions, or a list of QuestionGroup.
type catalogEntry struct {
	Symptom   string    `yaml:"symptom"`
	Name      string    `yaml:"name"`
	FollowUps yaml.Node `yaml:"follow_up_questions"`
}

// ParseCatalog decodes a YAML or JSON symptom seed file. Category order in
// mapping form is preserved as written.
func ParseCatalog(data []byte) ([]Symptom, error) {
	var entries []catalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("patients: decode catalog: %w", err)
	}

	out := make([]Symptom, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		name := strings.TrimSpace(entry.Symptom)
		if name == "" {
			name = strings.TrimSpace(entry.Name)
		}
		if name == "" {
			return nil, fmt.Errorf("patients: catalog entry %d has no symptom name", i)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("patients: duplicate catalog entry %q", name)
		}
		seen[strings.ToLower(name)] = true

		groups, err := decodeGroups(&entry.FollowUps)
		if err != nil {
			return nil, fmt.Errorf("patients: catalog entry %q: %w", name, err)
		}
		out = append(out, Symptom{Name: name, FollowUps: groups})
	}
	return out, nil
}

func decodeGroups(node *yaml.Node) ([]QuestionGroup, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.MappingNode:
		groups := make([]QuestionGroup, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var questions []string
			if err := node.Content[i+1].Decode(&questions); err != nil {
				return nil, fmt.Errorf("category %q: %w", node.Content[i].Value, err)
			}
			groups = append(groups, QuestionGroup{Category: node.Content[i].Value, Questions: questions})
		}
		return groups, nil
	case yaml.SequenceNode:
		var groups []QuestionGroup
		if err := node.Decode(&groups); err != nil {
			return nil, err
		}
		return groups, nil
	default:
		return nil, errors.New("follow_up_questions must be a mapping or a list")
	}
}
