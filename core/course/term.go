package course

import (
	"fmt"
	"regexp"
	"time"
)

var termRegex = regexp.MustCompile(`^(WINTER|SPRING|SUMMER|FALL)[0-9]{4}$`)

// CurrentTerm returns the academic term t falls in, e.g. "FALL2026".
// Winter runs through March 25th, spring through June 16th and summer through September.
func CurrentTerm(t time.Time) string {
	month, day := t.Month(), t.Day()

	var season string
	switch {
	case month < time.March || (month == time.March && day <= 25):
		season = "WINTER"
	case month < time.June || (month == time.June && day <= 16):
		season = "SPRING"
	case month <= time.September:
		season = "SUMMER"
	default:
		season = "FALL"
	}
	return fmt.Sprintf("%s%d", season, t.Year())
}

func IsValidTerm(term string) bool {
	return termRegex.MatchString(term)
}
