package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/tui/ui"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Update renders conversation details.
func (ci *ConversationInfo) Update(c conversation.Conversation) {
	ci.Clear()

	label := ui.Tag(ci.theme.MenuKeyColor)
	value := ui.Tag(ci.theme.FgColor)
	last := "-"
	if !c.Timestamp.IsZero() {
		last = c.Timestamp.Local().Format(time.DateTime)
	}
	picture := c.ProfilePicture
	if picture == "" {
		picture = "-"
	}

	rows := [][2]string{
		{"Name", c.Name},
		{"User ID", c.OtherUserID},
		{"Connection", string(c.ConnectionStatus)},
		{"Unread", fmt.Sprint(c.UnreadCount)},
		{"Last message", c.LastMessage},
		{"Last activity", last},
		{"Picture", picture},
	}
	_, _ = fmt.Fprintln(ci)
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, "  [%s::b]%-14s[-:-:-] [%s]%s[-]\n", label, r[0], value, oneLine(r[1]))
	}
	if c.ConnectionStatus == conversation.Pending {
		_, _ = fmt.Fprintf(ci, "\n  [%s]Connection request: press a to accept, x to decline.[-]\n", ui.Tag(ci.theme.RequestColor))
	}
}
