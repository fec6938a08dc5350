package utils

import "strings"

const (
	maskRune      = '*'
	anonymousName = "Anonymous"
)

// MaskName hides the middle of a name for public leaderboards. Runes, not
// bytes, are counted so multi-byte names keep their first and last letter.
//
//	"Ahmad" → "A***d"
//	"Li"    → "L*"
//	"A"     → "A*"
//	""      → "Anonymous"
func MaskName(name string) string {
	r := []rune(strings.TrimSpace(name))
	switch {
	case len(r) == 0:
		return anonymousName
	case len(r) <= 2:
		return string(r[0]) + string(maskRune)
	default:
		return string(r[0]) + strings.Repeat(string(maskRune), len(r)-2) + string(r[len(r)-1])
	}
}

// DisplayName picks the public name of a leaderboard entry: the alias when
// set, the real name when the user opted in, otherwise the masked name.
func DisplayName(fullName, alias string, showRealName bool) string {
	if a := strings.TrimSpace(alias); a != "" {
		return a
	}
	if showRealName && strings.TrimSpace(fullName) != "" {
		return strings.TrimSpace(fullName)
	}
	return MaskName(fullName)
}
