package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/message"
	"github.com/vibein/vibechat/internal/tui/ui"
)

// MessageThread displays one conversation and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	name     string
	snap     api.ThreadSnapshot
	onSend   func(text string)
	now      func() time.Time
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		now:      time.Now,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := strings.TrimSpace(composer.GetText())
		if text == "" {
			return
		}
		composer.SetText("")
		mt.onSend(text)
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.name != "" {
		return mt.name
	}
	return "Messages"
}

// Open switches the view to a conversation and clears what was shown.
func (mt *MessageThread) Open(otherUserID, name string) {
	if name == "" {
		name = otherUserID
	}
	mt.name = name
	mt.snap = api.ThreadSnapshot{OtherUserID: otherUserID}
	mt.messages.SetTitle(fmt.Sprintf(" %s ", oneLine(name)))
	mt.composer.SetText("")
	mt.render()
}

// OtherUserID returns the conversation shown.
func (mt *MessageThread) OtherUserID() string { return mt.snap.OtherUserID }

// SetOnSend sets the callback when the composer is submitted.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders a snapshot of the shown conversation. Snapshots of other
// conversations are ignored.
func (mt *MessageThread) Update(snap api.ThreadSnapshot) {
	if snap.OtherUserID != mt.snap.OtherUserID {
		return
	}
	mt.snap = snap
	mt.render()
}

// LastFailed returns the temp id of the newest failed message, if any.
func (mt *MessageThread) LastFailed() string {
	for i := len(mt.snap.Messages) - 1; i >= 0; i-- {
		if m := mt.snap.Messages[i]; m.Status == message.Failed {
			return m.TempID
		}
	}
	return ""
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

func (mt *MessageThread) render() {
	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, renderThread(mt.theme, mt.snap, mt.now()))
	mt.messages.ScrollToEnd()
}

// renderThread draws the messages oldest first, each outgoing one followed
// by its delivery mark.
func renderThread(theme *ui.Theme, snap api.ThreadSnapshot, now time.Time) string {
	var b strings.Builder
	switch snap.History {
	case "pending":
		fmt.Fprintf(&b, "[%s]loading history...[-]\n\n", ui.Tag(theme.PendingColor))
	case "failed":
		fmt.Fprintf(&b, "[%s]history unavailable: %s[-]\n\n", ui.Tag(theme.FailedColor), oneLine(snap.HistoryError))
	}
	for _, m := range snap.Messages {
		outgoing := m.SenderID != snap.OtherUserID
		who, color := oneLine(m.SenderID), theme.IncomingColor
		if outgoing {
			who, color = "You", theme.OutgoingColor
		}
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]", ui.Tag(color), who, formatTime(m.Timestamp, now))
		if outgoing {
			b.WriteString(" " + statusMark(theme, m))
		}
		b.WriteString("\n")
		b.WriteString(body(m))
		b.WriteString("\n\n")
	}
	return b.String()
}

func body(m message.Message) string {
	if m.Type != message.TypeImage {
		return clean(m.Content)
	}
	urls, err := m.Images()
	if err != nil {
		return "[image]"
	}
	lines := make([]string, len(urls))
	for i, u := range urls {
		lines[i] = "[image] " + oneLine(u)
	}
	return strings.Join(lines, "\n")
}

func statusMark(theme *ui.Theme, m message.Message) string {
	switch m.Status {
	case message.Sending:
		return fmt.Sprintf("[%s]sending...[-]", ui.Tag(theme.PendingColor))
	case message.Sent:
		return fmt.Sprintf("[%s]✓[-]", ui.Tag(theme.PendingColor))
	case message.Delivered:
		return fmt.Sprintf("[%s]✓✓[-]", ui.Tag(theme.PendingColor))
	case message.Read:
		return fmt.Sprintf("[%s]✓✓[-]", ui.Tag(theme.ReadColor))
	case message.Failed:
		reason := "failed"
		if m.FailReason != "" {
			reason = "failed: " + oneLine(m.FailReason)
		}
		return fmt.Sprintf("[%s::b]! %s (r to retry)[-:-:-]", ui.Tag(theme.FailedColor), reason)
	}
	return ""
}
