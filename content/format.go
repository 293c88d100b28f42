package content

import (
	"fmt"
	"strings"
	"time"
)

// WordsPerMinute is the reading speed used for ReadingTime.
const WordsPerMinute = 200

var ptBRMonths = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// FormatDate formats t as "15 mar 2021" with Brazilian Portuguese month names.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d %s %d", t.Day(), ptBRMonths[t.Month()-1], t.Year())
}

// FormatEdited formats t as "* editado em 15 mar 2021, às 19:25".
func FormatEdited(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("* editado em %s, às %02d:%02d", FormatDate(t), t.Hour(), t.Minute())
}

// ReadingTime converts a word count to whole minutes, rounding up.
func ReadingTime(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}

func splitWords(s string) []string {
	return strings.Fields(s)
}
