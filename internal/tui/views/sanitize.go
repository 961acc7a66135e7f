package views

import (
	"strings"
	"time"

	"github.com/rivo/tview"
)

// clean prepares user text for a tview cell or text view: it drops
// codepoints that tcell renders with the wrong width and control characters
// other than newline, then escapes color tags.
func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if dropRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return tview.Escape(b.String())
}

// oneLine is clean for single-line cells.
func oneLine(s string) string {
	return clean(strings.ReplaceAll(s, "\n", " "))
}

func dropRune(r rune) bool {
	switch {
	case r == '\n':
		return false
	case r < 0x20 || r == 0x7F:
		return true
	// Skin tone modifiers.
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	// Zero width joiner.
	case r == 0x200D:
		return true
	// Variation selectors.
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}

// formatTime shows the clock for today and the date otherwise.
func formatTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
