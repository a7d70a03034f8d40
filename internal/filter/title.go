package filter

import (
	"regexp"
	"strconv"
	"strings"
)

// space and digit are the Unicode White_Space and decimal digit classes.
// RE2's \s and \d are ASCII only.
const (
	space = `[\t-\r\x{85}\p{Z}]`
	digit = `\p{Nd}`
)

// titlePattern matches everything up to the trailing run of metadata groups.
// Group 1 is the title, group 2 an optional dedicated "(Rev N)" group.
var titlePattern = regexp.MustCompile(
	`^(.*?)(?:` + space + `*\([^)]*(?:Rev` + space + `*` + digit + `+|USA|Europe|World|Japan)[^)]*\))*` +
		`(?:` + space + `*\(Rev` + space + `*(` + digit + `+)\))?(?:` + space + `*\([^)]*\))*(?:\..*)?$`)

// revisionPattern finds a "(Rev N)" group anywhere in a filename.
var revisionPattern = regexp.MustCompile(`\(Rev` + space + `*(` + digit + `+)\)`)

// ExtractTags returns the contents of every parenthesized group in filename,
// left to right. Nested parentheses are not supported: an inner "(" restarts
// the current tag.
func ExtractTags(filename string) []string {
	var tags []string
	var current strings.Builder
	inside := false

	for _, r := range filename {
		switch {
		case r == '(':
			inside = true
			current.Reset()
		case r == ')':
			if inside {
				tags = append(tags, current.String())
				inside = false
			}
		case inside:
			current.WriteRune(r)
		}
	}
	return tags
}

// SplitTitleAndRevision derives the canonical title and revision of a
// release filename. ok is false when the filename carries no usable revision.
// Filenames the pattern cannot match come back verbatim.
func SplitTitleAndRevision(filename string) (title string, rev int, ok bool) {
	m := titlePattern.FindStringSubmatch(filename)
	if m == nil {
		return filename, 0, false
	}

	title = strings.TrimSpace(m[1])
	if m[2] != "" {
		if n, err := strconv.ParseInt(m[2], 10, 32); err == nil {
			return title, int(n), true
		}
	}

	// Fall back to a revision group anywhere in the name.
	if fm := revisionPattern.FindStringSubmatch(filename); fm != nil {
		if n, err := strconv.ParseInt(fm[1], 10, 32); err == nil {
			return title, int(n), true
		}
	}
	return title, 0, false
}
