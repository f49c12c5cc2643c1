package extract

import (
	"regexp"
	"strings"

	"github.com/use-agent/profilr/models"
)

// Entry parsing assumes the visual line order of a list item: line 0 is the
// title (or school), line 1 the company (or degree), and everything from
// descriptionOffset on is free text. Dates and locations are picked out by
// pattern wherever they appear. A change in the page's line order silently
// misattributes fields; the diagnostics dump is the way to spot it.
const descriptionOffset = 4

var (
	yearPattern         = regexp.MustCompile(`\d{4}`)
	locationPattern     = regexp.MustCompile(`(?i)location|remote`)
	fieldOfStudyPattern = regexp.MustCompile(`(?i)field of study|major`)
)

// SplitLines splits rendered text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// ParseExperience maps the lines of one experience item to its fields.
func ParseExperience(lines []string) models.Experience {
	return models.Experience{
		Title:       lineAt(lines, 0),
		Company:     lineAt(lines, 1),
		Duration:    firstMatch(lines, yearPattern),
		Location:    firstMatch(lines, locationPattern),
		Description: joinFrom(lines, descriptionOffset),
	}
}

// ParseEducation maps the lines of one education item to its fields.
func ParseEducation(lines []string) models.Education {
	return models.Education{
		School:       lineAt(lines, 0),
		Degree:       lineAt(lines, 1),
		Years:        firstMatch(lines, yearPattern),
		FieldOfStudy: firstMatch(lines, fieldOfStudyPattern),
	}
}

// ParseSkills drops section chrome, deduplicates preserving first
// occurrence, and keeps at most limit entries.
func ParseSkills(lines []string, limit int) []string {
	skills := []string{}
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if len(skills) >= limit {
			break
		}
		if isSkillsChrome(l) {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		skills = append(skills, l)
	}
	return skills
}

func isSkillsChrome(line string) bool {
	return strings.EqualFold(line, "Skills") ||
		strings.HasPrefix(strings.ToLower(line), "show all")
}

func lineAt(lines []string, i int) *string {
	if i < len(lines) {
		return models.Str(lines[i])
	}
	return nil
}

func firstMatch(lines []string, re *regexp.Regexp) *string {
	for _, l := range lines {
		if re.MatchString(l) {
			return models.Str(l)
		}
	}
	return nil
}

func joinFrom(lines []string, offset int) *string {
	if len(lines) <= offset {
		return nil
	}
	return models.Str(strings.Join(lines[offset:], " "))
}
