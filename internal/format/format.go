// Package format provides small display helpers shared by the table
// output and the dashboard.
package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Age formats a duration as a compact age string: "now", "5m", "2h",
// "3d", "2w", "3mo".
func Age(d time.Duration) string {
	if d < time.Minute {
		return "now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}
	if days < 30 {
		return fmt.Sprintf("%dw", days/7)
	}
	return fmt.Sprintf("%dmo", days/30)
}

// Initials derives an author monogram: first letters of the first two
// name parts, or the first two letters of a single-part name.
func Initials(name string) string {
	parts := strings.Fields(name)
	switch {
	case len(parts) >= 2:
		return strings.ToUpper(firstRunes(parts[0], 1) + firstRunes(parts[1], 1))
	case len(parts) == 1:
		return strings.ToUpper(firstRunes(parts[0], 2))
	}
	return "??"
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
