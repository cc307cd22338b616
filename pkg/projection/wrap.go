package projection

import "strings"

// Wrap breaks text into lines no wider than maxWidth, as measured by measure.
//
// Characters are appended greedily. When the next character would overflow
// the line, a space simply ends the line; any other character breaks the line
// at its last space, or at the character itself if the line has no space.
// A newline always ends the line. Empty text has no lines.
func Wrap(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	var current strings.Builder

	emit := func(s string) {
		lines = append(lines, s)
	}

	for _, ch := range text {
		if ch == '\n' {
			emit(current.String())
			current.Reset()
			continue
		}

		line := current.String()
		if measure(line+string(ch)) <= maxWidth {
			current.WriteRune(ch)
			continue
		}

		if ch == ' ' {
			emit(line)
			current.Reset()
			continue
		}
		current.Reset()
		if i := strings.LastIndexByte(line, ' '); i >= 0 {
			emit(line[:i])
			current.WriteString(line[i+1:])
		} else {
			emit(line)
		}
		current.WriteRune(ch)
	}

	if current.Len() > 0 {
		emit(current.String())
	}
	return lines
}
