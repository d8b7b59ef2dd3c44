package textutil

import "strings"

// SanitizeFileName renders a name safe for use as a file name. Path
// separators, whitespace, and other characters hostile to file names
// become dashes, runs of dashes collapse, and leading or trailing dashes
// and dots are trimmed. Case and embedded dots survive, so version
// strings like "1.5.2" come through intact.
func SanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\t':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	for strings.Contains(mapped, "--") {
		mapped = strings.ReplaceAll(mapped, "--", "-")
	}
	return strings.Trim(mapped, "-.")
}

// SanitizeToken lowers a name into a token usable inside a generated file
// name. Letters are lowercased, digits, dashes, and underscores pass
// through, everything else becomes an underscore, and leading or trailing
// separators are trimmed. An empty or fully-stripped input yields "".
func SanitizeToken(value string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '_'
	}, strings.TrimSpace(value))
	return strings.Trim(mapped, "_-")
}
