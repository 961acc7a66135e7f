package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/tui/ui"
)

// NotificationView lists stored notifications and runs full-text search
// over them.
type NotificationView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
	data    []api.Notification
	now     func() time.Time
}

// NewNotificationView creates a new notification view.
func NewNotificationView(theme *ui.Theme) *NotificationView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitle(" Notifications ")
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, false).
		AddItem(results, 0, 1, true)

	nv := &NotificationView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
		now:     time.Now,
	}
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && nv.onQuery != nil {
			nv.onQuery(input.GetText())
		}
	})
	return nv
}

// Name implements Component.
func (nv *NotificationView) Name() string { return "Notifications" }

// SetOnQuery sets the callback for a submitted search. An empty query
// means the plain list.
func (nv *NotificationView) SetOnQuery(fn func(query string)) {
	nv.onQuery = fn
}

// Query returns the text in the search field.
func (nv *NotificationView) Query() string {
	return nv.input.GetText()
}

// Update shows a page of notifications under a title.
func (nv *NotificationView) Update(title string, list *api.NotificationList) {
	nv.data = list.Notifications
	nv.results.Clear()
	more := ""
	if list.HasMore {
		more = "+"
	}
	nv.results.SetTitle(fmt.Sprintf(" %s (%d%s) ", tview.Escape(title), len(nv.data), more))

	headers := []string{" ", " FROM", " MESSAGE", " TIME"}
	for col, h := range headers {
		nv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(nv.theme.TableHeaderFg).
			SetBackgroundColor(nv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	now := nv.now()
	for i, n := range nv.data {
		row := i + 1
		mark := " "
		if !n.Seen {
			mark = "*"
		}
		text := n.Body
		if n.Snippet != "" {
			text = n.Snippet
		}
		nv.results.SetCell(row, 0, tview.NewTableCell(" "+mark).SetTextColor(nv.theme.CounterColor))
		nv.results.SetCell(row, 1, tview.NewTableCell(" "+oneLine(n.Title)).SetMaxWidth(25).SetTextColor(nv.theme.FgColor))
		nv.results.SetCell(row, 2, tview.NewTableCell(" "+oneLine(text)).SetExpansion(1).SetTextColor(nv.theme.FgColor))
		nv.results.SetCell(row, 3, tview.NewTableCell(" "+formatTime(n.CreatedAt, now)).SetTextColor(nv.theme.FgColor))
	}
}

// Selected returns the notification under the cursor, or nil.
func (nv *NotificationView) Selected() *api.Notification {
	row, _ := nv.results.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(nv.data) {
		return nil
	}
	n := nv.data[idx]
	return &n
}

// MarkSeen clears the unseen marker of a shown notification.
func (nv *NotificationView) MarkSeen(id int64) {
	for i := range nv.data {
		if nv.data[i].ID == id {
			nv.data[i].Seen = true
			nv.results.SetCell(i+1, 0, tview.NewTableCell("  "))
		}
	}
}

// Input returns the search input field.
func (nv *NotificationView) Input() *tview.InputField {
	return nv.input
}

// Results returns the results table.
func (nv *NotificationView) Results() *tview.Table {
	return nv.results
}
