package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo displays the application name in the header.
type Logo struct {
	*tview.TextView
	theme *Theme
}

// NewLogo creates a new logo component.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{
		TextView: tv,
		theme:    theme,
	}
	title := Tag(theme.TitleColor)
	_, _ = fmt.Fprintf(l,
		"[%s::b]╦  ╦╦╔╗ ╔═╗[-:-:-]\n"+
			"[%s::b]╚╗╔╝║╠╩╗║╣ [-:-:-]\n"+
			"[%s::b] ╚╝ ╩╚═╝╚═╝[-:-:-]\n"+
			"[%s]chat[-:-:-]",
		title, title, title, Tag(theme.FgColor),
	)
	return l
}
