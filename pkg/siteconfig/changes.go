package siteconfig

import "strings"

const bulletMarkers = "-•*"

// ParseChanges turns the body of a <changes> block into one entry per line,
// with a leading bullet marker removed and blank lines dropped. A marker
// directly followed by another marker character ("**bold**", "--") is text.
func ParseChanges(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(trimBullet(line))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func trimBullet(line string) string {
	for _, m := range bulletMarkers {
		rest, ok := strings.CutPrefix(line, string(m))
		if !ok {
			continue
		}
		if rest != "" && strings.ContainsRune(bulletMarkers, []rune(rest)[0]) {
			return line
		}
		return rest
	}
	return line
}
