// utils/valid.go
package utils

import (
	"strings"
	"unicode"
)

// SanitizeName trims a display name, drops control characters and collapses
// runs of whitespace.
func SanitizeName(input string) string {
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)
	return strings.Join(strings.Fields(input), " ")
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
)

// EscapeMarkdown keeps user supplied text from being rendered as Discord
// markdown inside embeds.
func EscapeMarkdown(input string) string {
	return markdownEscaper.Replace(input)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
