package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData is what the header shows about the daemon.
type SessionData struct {
	Profile       string
	UserID        string
	Link          string
	LinkDetail    string
	Conversations int
	Unseen        int
	Uptime        time.Duration
}

// SessionInfo displays daemon state in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	label := Tag(si.theme.FgColor)
	value := Tag(si.theme.CounterColor)
	link := data.Link
	if data.LinkDetail != "" {
		link += " (" + data.LinkDetail + ")"
	}
	user := data.UserID
	if user == "" {
		user = "-"
	}

	rows := [][2]string{
		{"Profile", data.Profile},
		{"User", user},
		{"Push", link},
		{"Chats", fmt.Sprint(data.Conversations)},
		{"Unseen", fmt.Sprint(data.Unseen)},
		{"Uptime", formatUptime(data.Uptime)},
	}
	for i, r := range rows {
		if i > 0 {
			_, _ = fmt.Fprintln(si)
		}
		_, _ = fmt.Fprintf(si, "[%s::b]%-8s[-:-:-] [%s]%s[-]", label, r[0]+":", value, tview.Escape(r[1]))
	}
}

func formatUptime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
