package install

import "strings"

// renderPkgConfig rewrites the first prefix= assignment in a pkg-config file
// to the install prefix, leaving every other byte untouched. The second
// return reports whether a prefix line was found.
func renderPkgConfig(data []byte, prefix string) ([]byte, bool) {
	lines := strings.SplitAfter(string(data), "\n")
	for i, line := range lines {
		body := strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(body, "prefix=") {
			continue
		}
		suffix := line[len(body):]
		lines[i] = "prefix=" + prefix + suffix
		return []byte(strings.Join(lines, "")), true
	}
	return data, false
}
