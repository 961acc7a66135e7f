package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Crumbs shows the page stack, prefixed by the profile name.
type Crumbs struct {
	*tview.TextView
	theme   *Theme
	profile string
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme, profile string) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
		profile:  profile,
	}
}

// Update renders the trail. The last name is the active page.
func (c *Crumbs) Update(names []string) {
	c.Clear()
	inactive := fmt.Sprintf("[%s:%s:]", Tag(c.theme.CrumbInactiveFg), Tag(c.theme.CrumbInactiveBg))
	active := fmt.Sprintf("[%s:%s:b]", Tag(c.theme.CrumbActiveFg), Tag(c.theme.CrumbActiveBg))

	_, _ = fmt.Fprintf(c, "%s <%s> [-:-:-]", inactive, tview.Escape(c.profile))
	for i, name := range names {
		style := inactive
		if i == len(names)-1 {
			style = active
		}
		_, _ = fmt.Fprintf(c, " %s %s [-:-:-]", style, tview.Escape(name))
	}
}
