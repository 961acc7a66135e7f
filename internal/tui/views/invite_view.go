package views

import (
	"fmt"

	"github.com/rivo/tview"
	"github.com/vibein/vibechat/internal/invite"
	"github.com/vibein/vibechat/internal/tui/ui"
)

// InviteView shows the user's invite link and its QR code.
type InviteView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewInviteView creates a new invite view.
func NewInviteView(theme *ui.Theme) *InviteView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Invite ")
	tv.SetTitleColor(theme.TitleColor)

	return &InviteView{TextView: tv, theme: theme}
}

// Name implements Component.
func (iv *InviteView) Name() string { return "Invite" }

// Show renders the invite link for userID on backendURL.
func (iv *InviteView) Show(backendURL, userID string) {
	iv.Clear()
	link, err := invite.Link(backendURL, userID)
	if err != nil {
		iv.ShowMessage("No invite link: " + err.Error())
		return
	}
	qr, err := invite.Render(link, "  ")
	if err != nil {
		iv.ShowMessage("QR generation failed: " + err.Error())
		return
	}
	_, _ = fmt.Fprintf(iv, "\nScan to connect with [%s::b]%s[-:-:-]\n\n%s\n%s\n",
		ui.Tag(iv.theme.CounterColor), tview.Escape(userID), qr, tview.Escape(link))
}

// ShowMessage replaces the content with a status line.
func (iv *InviteView) ShowMessage(msg string) {
	iv.Clear()
	_, _ = fmt.Fprintf(iv, "\n\n%s", tview.Escape(msg))
}
