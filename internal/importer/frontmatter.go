package importer

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter is the optional YAML header of a knowledge markdown file.
type frontmatter struct {
	Slug     string   `yaml:"slug"`
	Title    string   `yaml:"title"`
	Tags     []string `yaml:"tags"`
	Synonyms []string `yaml:"synonyms"`
	Active   *bool    `yaml:"active"`
}

// parseFrontmatter splits an optional leading "---" YAML block from the
// markdown body. Files without a block return zero metadata and the raw
// content unchanged.
func parseFrontmatter(raw string) (frontmatter, string) {
	var fm frontmatter
	if !strings.HasPrefix(raw, "---") {
		return fm, raw
	}
	rest := raw[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm, raw
	}
	block := rest[:end]
	body := strings.TrimLeft(rest[end+4:], "\r\n")
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return frontmatter{}, raw
	}
	return fm, body
}

// firstHeading returns the text of the first markdown H1, or "".
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}
