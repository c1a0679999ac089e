package unit

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter is the YAML header of a SKILL.md document.
type frontmatter struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	AllowedTools toolList `yaml:"allowed-tools"`
	Metadata     struct {
		DisplayName string `yaml:"display-name"`
		Icon        string `yaml:"icon"`
	} `yaml:"metadata"`
}

// toolList accepts either a YAML sequence or a whitespace-separated scalar,
// since both spellings appear in unit documents.
type toolList []string

func (t *toolList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*t = trimAll(items)
		return nil
	case yaml.ScalarNode:
		*t = trimAll(strings.Fields(value.Value))
		return nil
	default:
		return fmt.Errorf("allowed-tools must be a list or a string")
	}
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseFrontmatter extracts the YAML header from a SKILL.md document.
// A document without a frontmatter block yields an empty frontmatter rather
// than an error; the folder name then provides the identity.
func parseFrontmatter(content string) (frontmatter, error) {
	var fm frontmatter

	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "---") {
		return fm, nil
	}

	lines := strings.Split(content, "\n")
	var headerLines []string
	closed := false
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		headerLines = append(headerLines, line)
	}
	if !closed {
		return fm, nil
	}

	if err := yaml.Unmarshal([]byte(strings.Join(headerLines, "\n")), &fm); err != nil {
		return fm, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return fm, nil
}
