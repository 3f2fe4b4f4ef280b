package analyzer

import "strings"

// stripShortcodes removes enclosing [tag ...]...[/tag] spans, then any
// remaining standalone [tag ...] or [/tag] tokens. Doubled brackets
// ([[tag]]) are an escape and are left as literal text.
func stripShortcodes(s string) string {
	if !strings.Contains(s, "[") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		open := strings.IndexByte(s[i:], '[')
		if open < 0 {
			b.WriteString(s[i:])
			break
		}
		open += i
		b.WriteString(s[i:open])

		if open+1 < len(s) && s[open+1] == '[' {
			end := strings.Index(s[open:], "]]")
			if end < 0 {
				b.WriteString(s[open:])
				break
			}
			// Unescape [[tag]] to [tag], the way the host renders it.
			b.WriteString(s[open+1 : open+end+1])
			i = open + end + 2
			continue
		}

		name, closing, tagEnd, ok := parseShortcodeTag(s, open)
		if !ok {
			b.WriteByte('[')
			i = open + 1
			continue
		}
		if closing || s[tagEnd-2] == '/' {
			i = tagEnd
			continue
		}

		// Enclosing form: drop through the matching closer when there is one.
		closer := "[/" + name + "]"
		if c := strings.Index(s[tagEnd:], closer); c >= 0 {
			i = tagEnd + c + len(closer)
			continue
		}
		i = tagEnd
	}

	return b.String()
}

// parseShortcodeTag reads a shortcode token starting at s[open] == '['.
// It returns the tag name, whether it is a closing tag, and the index just
// past the closing ']'.
func parseShortcodeTag(s string, open int) (name string, closing bool, end int, ok bool) {
	j := open + 1
	if j < len(s) && s[j] == '/' {
		closing = true
		j++
	}
	start := j
	if j >= len(s) || !(s[j] == '_' || (s[j] >= 'a' && s[j] <= 'z') || (s[j] >= 'A' && s[j] <= 'Z')) {
		return "", false, 0, false
	}
	for j < len(s) && isShortcodeNameByte(s[j]) {
		j++
	}
	if j == start {
		return "", false, 0, false
	}
	name = s[start:j]

	// Name must be followed by whitespace, '/', or ']'.
	if j < len(s) && s[j] != ']' && s[j] != '/' && s[j] != ' ' && s[j] != '\t' && s[j] != '\n' && s[j] != '\r' {
		return "", false, 0, false
	}
	rel := strings.IndexByte(s[j:], ']')
	if rel < 0 {
		return "", false, 0, false
	}
	// Markup inside the brackets means this is not a shortcode.
	if strings.ContainsAny(s[j:j+rel], "[<") {
		return "", false, 0, false
	}
	return name, closing, j + rel + 1, true
}

func isShortcodeNameByte(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
