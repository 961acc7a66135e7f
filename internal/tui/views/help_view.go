package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
	"github.com/vibein/vibechat/internal/tui/ui"
)

// HelpView displays the key and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	_, _ = fmt.Fprint(hv, helpText(theme))
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

var helpSections = []struct {
	title string
	rows  [][2]string
}{
	{"Global", [][2]string{
		{":", "Command mode"},
		{"Esc", "Back"},
		{"n", "Notifications"},
		{"?", "This help"},
		{"q", "Quit from the conversation list, back elsewhere"},
		{"Ctrl-C", "Quit"},
	}},
	{"Conversations", [][2]string{
		{"1 2 3", "All, requests, unread"},
		{"Enter", "Open conversation"},
		{"/", "Filter by name or message"},
		{"a / x", "Accept / decline a request"},
		{"d", "Details"},
		{"r", "Refresh from the server"},
	}},
	{"Thread", [][2]string{
		{"i", "Focus composer (Enter sends, Esc leaves)"},
		{"r", "Retry the last failed message"},
		{"d", "Details"},
	}},
	{"Notifications", [][2]string{
		{"Enter", "Mark seen and open the conversation"},
		{"/", "Full-text search"},
		{"u", "Toggle unseen only"},
	}},
	{"Commands", [][2]string{
		{":open <user>", "Open a conversation"},
		{":search <text>", "Search notifications"},
		{":images <file>...", "Send images to the open conversation"},
		{":accept / :decline <user>", "Answer a connection request"},
		{":invite", "Show your invite QR code"},
		{":refresh", "Refresh conversations"},
		{":quit", "Quit"},
	}},
}

func helpText(theme *ui.Theme) string {
	kc := ui.Tag(theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, r := range s.rows {
			fmt.Fprintf(&b, "  [%s]%-28s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
	return b.String()
}
