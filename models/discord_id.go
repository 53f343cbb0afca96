package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDiscordID validates a Discord snowflake and returns its canonical
// decimal string form. Snowflakes exceed 2^53 so they are never handled as
// floating point numbers.
func ParseDiscordID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid discord id %q: %w", raw, err)
	}
	return strconv.FormatUint(v, 10), nil
}
