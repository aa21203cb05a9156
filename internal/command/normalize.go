package command

import (
	"strconv"
	"strings"
)

func normalise(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	var b strings.Builder
	lastSpace := false
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if r == '-' && !lastSpace && b.Len() > 0 {
			// Inner hyphens separate words; a leading one is a sign.
			b.WriteByte(' ')
			lastSpace = true
			continue
		}
		if r == '-' {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if r == ' ' || r == '\t' || r == '_' || r == '/' || r == '\'' {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenise(normalised string) []string {
	return strings.Fields(normalised)
}

func parseNumber(token string) (float64, bool) {
	v, err := strconv.ParseFloat(token, 64)
	return v, err == nil
}

// mapDirection accepts words, compass points and WASD keys.
func mapDirection(token string) string {
	switch token {
	case "up", "u", "n", "north", "w", "forward":
		return "up"
	case "down", "s", "south", "back", "backward":
		return "down"
	case "left", "l", "west", "a":
		return "left"
	case "right", "r", "d", "e", "east":
		return "right"
	case "stop", "halt", "x":
		return "stop"
	default:
		return ""
	}
}
