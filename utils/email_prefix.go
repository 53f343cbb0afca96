// utils/email_prefix.go
package utils

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var (
	studentPrefixRegex = regexp.MustCompile(`^[a-z]{2,}[0-9]{7}$`)
	shortLettersRegex  = regexp.MustCompile(`^[a-z]{1,2}$`)
	lettersRegex       = regexp.MustCompile(`^[a-z]+$`)
	partialRollRegex   = regexp.MustCompile(`^[a-z]+[0-9]{1,7}$`)
	batchTokenRegex    = regexp.MustCompile(`^[a-z]+([0-9]{2})[0-9]{5}$`)
)

// IsStudentPrefix reports whether s has the nameRoll shape of a KUET
// student address, e.g. zihad2107071.
func IsStudentPrefix(s string) bool {
	return studentPrefixRegex.MatchString(s)
}

// EmailPrefix lowercases input and strips anything from the first '@'.
func EmailPrefix(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if i := strings.IndexByte(input, '@'); i >= 0 {
		input = input[:i]
	}
	return input
}

// PrefixSuggestions builds the autocomplete choices for a partially typed
// email prefix. Discord rejects empty choice values, so blank input gets no
// choices at all.
func PrefixSuggestions(input, domain string) []*discordgo.ApplicationCommandOptionChoice {
	prefix := EmailPrefix(input)
	if prefix == "" {
		return []*discordgo.ApplicationCommandOptionChoice{}
	}

	var name string
	switch {
	case studentPrefixRegex.MatchString(prefix):
		name = prefix + domain
	case shortLettersRegex.MatchString(prefix):
		name = prefix + " (your email prefix)"
	case lettersRegex.MatchString(prefix):
		name = prefix + " (nameRoll)"
	case partialRollRegex.MatchString(prefix):
		name = prefix + " (Full Roll)"
	default:
		name = prefix + " (invalid format)"
	}
	return []*discordgo.ApplicationCommandOptionChoice{{Name: name, Value: prefix}}
}
