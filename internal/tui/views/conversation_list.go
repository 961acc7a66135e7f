package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/tui/ui"
)

// ConversationList is the conversation table with its filter tabs.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	list    api.ConversationList
	visible []conversation.Conversation
	filter  string
	now     func() time.Time
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{
		Table: table,
		theme: theme,
		list:  api.ConversationList{Filter: string(conversation.All)},
		now:   time.Now,
	}
	cl.render()
	return cl
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Mode returns the filter mode currently shown.
func (cl *ConversationList) Mode() string { return cl.list.Filter }

// Update replaces the list with a new snapshot and keeps the cursor on the
// same conversation when it is still visible.
func (cl *ConversationList) Update(list api.ConversationList) {
	prev := cl.Selected()
	cl.list = list
	cl.render()
	if prev == nil {
		return
	}
	for i, c := range cl.visible {
		if c.OtherUserID == prev.OtherUserID {
			cl.Select(i+1, 0)
			return
		}
	}
}

// SetFilter narrows the shown rows to names or messages containing text.
func (cl *ConversationList) SetFilter(text string) {
	cl.filter = strings.ToLower(strings.TrimSpace(text))
	cl.render()
	cl.Select(1, 0)
}

// Filter returns the text filter.
func (cl *ConversationList) Filter() string { return cl.filter }

// Selected returns the conversation under the cursor, or nil.
func (cl *ConversationList) Selected() *conversation.Conversation {
	row, _ := cl.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(cl.visible) {
		return nil
	}
	c := cl.visible[idx]
	return &c
}

// Find returns the loaded conversation with the other user's id.
func (cl *ConversationList) Find(otherUserID string) (conversation.Conversation, bool) {
	for _, c := range cl.list.Conversations {
		if c.OtherUserID == otherUserID {
			return c, true
		}
	}
	return conversation.Conversation{}, false
}

func (cl *ConversationList) matches(c conversation.Conversation) bool {
	if cl.filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), cl.filter) ||
		strings.Contains(strings.ToLower(c.OtherUserID), cl.filter) ||
		strings.Contains(strings.ToLower(c.LastMessage), cl.filter)
}

func (cl *ConversationList) render() {
	cl.Clear()
	cl.SetTitle(cl.title())

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" STATUS", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.visible = cl.visible[:0]
	now := cl.now()
	for _, c := range cl.list.Conversations {
		if !cl.matches(c) {
			continue
		}
		cl.visible = append(cl.visible, c)
		row := len(cl.visible)

		name := c.Name
		if name == "" {
			name = c.OtherUserID
		}
		name = oneLine(name)
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("(%d) %s", c.UnreadCount, name)
		}
		fg := cl.theme.FgColor
		status := ""
		if c.ConnectionStatus == conversation.Pending {
			fg = cl.theme.RequestColor
			status = "REQUEST"
		} else if c.ConnectionStatus == conversation.Declined {
			status = "DECLINED"
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+name).SetExpansion(1).SetTextColor(fg))
		cl.SetCell(row, 1, tview.NewTableCell(" "+oneLine(c.LastMessage)).SetExpansion(2).SetMaxWidth(60).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTime(c.Timestamp, now)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(" "+status).SetTextColor(fg).SetAlign(tview.AlignRight))
	}
	if len(cl.visible) == 0 {
		empty := " no conversations"
		switch {
		case cl.list.Load == "pending":
			empty = " loading..."
		case cl.list.Error != "":
			empty = " " + oneLine(cl.list.Error)
		}
		cl.SetCell(1, 0, tview.NewTableCell(empty).SetSelectable(false).SetTextColor(cl.theme.PendingColor))
	}
}

// title renders the filter tabs with their counts, the active one
// highlighted.
func (cl *ConversationList) title() string {
	var b strings.Builder
	for i, m := range conversation.Modes {
		label := fmt.Sprintf("%d:%s(%d)", i+1, m, cl.list.Counts[string(m)])
		if string(m) == cl.list.Filter {
			fmt.Fprintf(&b, " [%s::b]%s[-:-:-]", ui.Tag(cl.theme.CounterColor), label)
		} else {
			fmt.Fprintf(&b, " %s", label)
		}
	}
	if cl.list.Load == "failed" {
		fmt.Fprintf(&b, " [%s]refresh failed[-]", ui.Tag(cl.theme.FailedColor))
	}
	if cl.filter != "" {
		fmt.Fprintf(&b, " /%s", tview.Escape(cl.filter))
	}
	b.WriteString(" ")
	return b.String()
}
