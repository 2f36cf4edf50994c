package crawler

import (
	"regexp"
	"strings"
)

// ResourceType selects which pattern rules are applied to a page.
type ResourceType string

// Recognized resource types.
const (
	TypeJPG ResourceType = "jpg"
	TypeMP3 ResourceType = "mp3"
	TypePDF ResourceType = "pdf"
	TypePNG ResourceType = "png"
)

// AllTypes is the selection used when none is given.
var AllTypes = []ResourceType{TypeJPG, TypeMP3, TypePNG, TypePDF}

// Each rule captures exactly one reference per match. The leading ".*" is
// greedy, so a rule matches at most once per line, as the rules always have.
var patternTable = map[ResourceType][]*regexp.Regexp{
	TypeJPG: {
		regexp.MustCompile(`<i.*src="?([^" ]+\.jpg)`),
		regexp.MustCompile(`<a.*href="?([^" ]+\.jpg)`),
	},
	TypeMP3: {
		regexp.MustCompile(`<a.*src="?([^" ]+\.mp3)`),
		regexp.MustCompile(`<a.*href="?([^" ]+\.mp3)`),
	},
	TypePDF: {
		regexp.MustCompile(`<a.*href="?([^" ]+\.pdf)`),
	},
	TypePNG: {
		regexp.MustCompile(`<i.*src="?([^" ]+\.png)`),
		regexp.MustCompile(`<a.*href="?([^" ]+\.png)`),
	},
}

// Rules returns the ordered pattern rules for t. Unrecognized types have none.
func Rules(t ResourceType) []*regexp.Regexp {
	return patternTable[t]
}

// Recognized reports whether t has at least one pattern rule.
func (t ResourceType) Recognized() bool {
	return len(patternTable[t]) > 0
}

// ParseTypes converts selectors such as "jpg,png" into resource types.
// Selectors are split on commas, trimmed and lowercased; blanks are skipped.
// Unknown selectors are kept and later match nothing.
func ParseTypes(selectors []string) []ResourceType {
	out := make([]ResourceType, 0, len(selectors))
	for _, raw := range selectors {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			out = append(out, ResourceType(part))
		}
	}
	return out
}
