// Package tui is the terminal client of the daemon.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/vibein/vibechat/internal/client"
	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/tui/keys"
	"github.com/vibein/vibechat/internal/tui/model"
	"github.com/vibein/vibechat/internal/tui/ui"
	"github.com/vibein/vibechat/internal/tui/views"
)

const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageNotifications = "notifications"
	pageDetails       = "details"
	pageInvite        = "invite"
	pageHelp          = "help"
)

var modeLabels = map[conversation.Mode]string{
	conversation.All:      "All",
	conversation.Requests: "Requests",
	conversation.Unread:   "Unread",
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	registry *keys.Registry

	pages    *ui.Pages
	body     *tview.Flex
	info     *ui.SessionInfo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	prompt   *ui.Prompt
	flashBar *ui.FlashBar

	convs   *views.ConversationList
	thread  *views.MessageThread
	notes   *views.NotificationView
	details *views.ConversationInfo
	invite  *views.InviteView
	help    *views.HelpView

	profile     string
	backendURL  string
	statusAt    time.Time
	unseenOnly  bool
	detailsUser string

	ctx          context.Context
	cancel       context.CancelFunc
	listCancel   context.CancelFunc
	threadCancel context.CancelFunc
}

// NewApp creates the TUI application. backendURL is used for the invite
// link only.
func NewApp(c *client.Client, profile, backendURL string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:        tview.NewApplication(),
		theme:      theme,
		vm:         model.NewViewModel(c),
		registry:   keys.NewRegistry(),
		pages:      ui.NewPages(),
		body:       tview.NewFlex().SetDirection(tview.FlexRow),
		info:       ui.NewSessionInfo(theme),
		menu:       ui.NewMenu(theme),
		crumbs:     ui.NewCrumbs(theme, profile),
		prompt:     ui.NewPrompt(theme),
		flashBar:   ui.NewFlashBar(theme),
		convs:      views.NewConversationList(theme),
		thread:     views.NewMessageThread(theme),
		notes:      views.NewNotificationView(theme),
		details:    views.NewConversationInfo(theme),
		invite:     views.NewInviteView(theme),
		help:       views.NewHelpView(theme),
		profile:    profile,
		backendURL: backendURL,
		ctx:        ctx,
		cancel:     cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	r := a.registry

	r.AddGlobal(keys.Rune(':', "Command", func() { a.activatePrompt(ui.PromptCommand) }))
	r.AddGlobal(keys.Rune('n', "Notifications", func() { a.showNotifications("") }))
	r.AddGlobal(keys.Rune('?', "Help", func() { a.show(pageHelp) }))
	r.AddGlobal(keys.Key(tcell.KeyEscape, "Back", a.back))
	r.AddGlobal(keys.Rune('q', "Quit", func() {
		if a.pages.Depth() > 1 {
			a.back()
			return
		}
		a.Stop()
	}))

	for i, m := range conversation.Modes {
		mode := string(m)
		act := keys.Rune(rune('1'+i), modeLabels[m], func() { a.startList(mode) })
		act.Numeric = true
		r.AddView(pageConversations, act)
	}
	r.AddView(pageConversations, keys.Key(tcell.KeyEnter, "Open", func() {
		if sel := a.convs.Selected(); sel != nil {
			a.openThread(sel.OtherUserID)
		}
	}))
	r.AddView(pageConversations, keys.Rune('/', "Filter", func() { a.activatePrompt(ui.PromptFilter) }))
	r.AddView(pageConversations, keys.Rune('a', "Accept", func() { a.respondSelected(true) }))
	r.AddView(pageConversations, keys.Rune('x', "Decline", func() { a.respondSelected(false) }))
	r.AddView(pageConversations, keys.Rune('d', "Details", func() {
		if sel := a.convs.Selected(); sel != nil {
			a.showDetails(*sel)
		}
	}))
	r.AddView(pageConversations, keys.Rune('r', "Refresh", a.refresh))

	r.AddView(pageThread, keys.Rune('i', "Compose", func() { a.app.SetFocus(a.thread.Composer()) }))
	r.AddView(pageThread, keys.Rune('r', "Retry", a.retry))
	r.AddView(pageThread, keys.Rune('d', "Details", func() {
		c, ok := a.convs.Find(a.thread.OtherUserID())
		if !ok {
			c = conversation.Conversation{OtherUserID: a.thread.OtherUserID()}
		}
		a.showDetails(c)
	}))

	r.AddView(pageDetails, keys.Rune('a', "Accept", func() { a.respondDetails(true) }))
	r.AddView(pageDetails, keys.Rune('x', "Decline", func() { a.respondDetails(false) }))

	r.AddView(pageNotifications, keys.Key(tcell.KeyEnter, "Open", a.openNotification))
	r.AddView(pageNotifications, keys.Rune('/', "Search", func() { a.app.SetFocus(a.notes.Input()) }))
	r.AddView(pageNotifications, keys.Rune('u', "Unseen only", func() {
		a.unseenOnly = !a.unseenOnly
		a.loadNotifications(a.notes.Query())
	}))

	a.prompt.SetCommands(commandNames)
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(names []string) {
		a.crumbs.Update(names)
		a.menu.Update(a.registry.Hints(a.pages.Current()))
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Send(a.ctx, text); err != nil {
				a.vm.Flash.Err("send", err)
			}
		}()
	})

	a.notes.SetOnQuery(func(query string) {
		a.loadNotifications(query)
		a.app.SetFocus(a.notes.Results())
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.convs.SetFilter(text)
		case ui.PromptCommand:
			if text != "" {
				a.runCommand(ParseCommand(text))
			}
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	a.pages.Add(pageConversations, a.convs)
	a.pages.Add(pageThread, a.thread)
	a.pages.Add(pageNotifications, a.notes)
	a.pages.Add(pageDetails, a.details)
	a.pages.Add(pageInvite, a.invite)
	a.pages.Add(pageHelp, a.help)
	a.pages.Reset(pageConversations)

	header := tview.NewFlex().
		AddItem(a.info, 34, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 14, 0, false)

	a.body.AddItem(a.pages, 0, 1, true)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.body, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.capture)
}

func (a *App) capture(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}

	// Text fields get every key; Esc leaves them, except the prompt which
	// handles Esc itself.
	if field, ok := a.app.GetFocus().(*tview.InputField); ok {
		if ev.Key() == tcell.KeyEscape && field != a.prompt.InputField {
			a.focusPage()
			return nil
		}
		return ev
	}

	if a.registry.HandleEvent(a.pages.Current(), ev) {
		return nil
	}
	return ev
}

// show pushes a page. Leaving the thread for anything but an overlay stops
// watching it, so pushes from that user raise notifications again.
func (a *App) show(id string) {
	if a.pages.Current() == pageThread && id != pageDetails && id != pageHelp {
		a.closeThread()
		a.pages.Pop()
	}
	a.pages.Push(id)
	a.focusPage()
}

func (a *App) back() {
	if a.pages.Current() == pageThread {
		a.closeThread()
	}
	a.pages.Pop()
	a.focusPage()
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageNotifications:
		a.app.SetFocus(a.notes.Results())
	default:
		a.app.SetFocus(a.pages.Top())
	}
}

func (a *App) activatePrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	if mode == ui.PromptFilter {
		a.prompt.SetText(a.convs.Filter())
	}
	a.body.Clear()
	a.body.AddItem(a.prompt, 3, 0, true)
	a.body.AddItem(a.pages, 0, 1, false)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.body.Clear()
	a.body.AddItem(a.pages, 0, 1, true)
	a.focusPage()
}

// startList switches the conversation stream to another filter mode.
func (a *App) startList(mode string) {
	if a.listCancel != nil {
		a.listCancel()
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.listCancel = cancel
	go func() {
		if err := a.vm.WatchConversations(ctx, mode); err != nil {
			a.vm.Flash.Err("conversations", err)
		}
	}()
}

func (a *App) openThread(otherUserID string) {
	a.closeThread()
	name := otherUserID
	if c, ok := a.convs.Find(otherUserID); ok && c.Name != "" {
		name = c.Name
	}
	a.thread.Open(otherUserID, name)
	a.show(pageThread)

	ctx, cancel := context.WithCancel(a.ctx)
	a.threadCancel = cancel
	go func() {
		if err := a.vm.WatchThread(ctx, otherUserID); err != nil {
			a.vm.Flash.Err("thread", err)
		}
	}()
}

func (a *App) closeThread() {
	if a.threadCancel != nil {
		a.threadCancel()
		a.threadCancel = nil
	}
}

func (a *App) retry() {
	tempID := a.thread.LastFailed()
	if tempID == "" {
		a.vm.Flash.Info("nothing to retry")
		return
	}
	go func() {
		if err := a.vm.Retry(a.ctx, tempID); err != nil {
			a.vm.Flash.Err("retry", err)
		}
	}()
}

func (a *App) refresh() {
	go func() {
		n, err := a.vm.Refresh(a.ctx)
		if err != nil {
			a.vm.Flash.Err("refresh", err)
			return
		}
		a.vm.Flash.Info("%d conversations", n)
	}()
}

func (a *App) respondSelected(accept bool) {
	sel := a.convs.Selected()
	if sel == nil {
		return
	}
	a.respond(*sel, accept)
}

func (a *App) respondDetails(accept bool) {
	if c, ok := a.detailsOf(); ok {
		a.respond(c, accept)
	}
}

func (a *App) respond(c conversation.Conversation, accept bool) {
	if c.ConnectionStatus != conversation.Pending {
		a.vm.Flash.Warn("%s has no pending request", c.OtherUserID)
		return
	}
	a.respondTo(c.OtherUserID, accept)
}

func (a *App) respondTo(otherUserID string, accept bool) {
	verb := "declined"
	if accept {
		verb = "accepted"
	}
	go func() {
		if err := a.vm.Respond(a.ctx, otherUserID, accept); err != nil {
			a.vm.Flash.Err("respond", err)
			return
		}
		a.vm.Flash.Info("%s %s", verb, otherUserID)
	}()
}

func (a *App) showDetails(c conversation.Conversation) {
	a.details.Update(c)
	a.detailsUser = c.OtherUserID
	a.show(pageDetails)
}

func (a *App) detailsOf() (conversation.Conversation, bool) {
	return a.convs.Find(a.detailsUser)
}

func (a *App) showNotifications(query string) {
	a.notes.Input().SetText(query)
	a.show(pageNotifications)
	a.loadNotifications(query)
}

func (a *App) loadNotifications(query string) {
	unseen := a.unseenOnly
	title := "Notifications"
	switch {
	case query != "":
		title = "Search: " + query
	case unseen:
		title = "Unseen"
	}
	go func() {
		list, err := a.vm.Notifications(a.ctx, query, unseen)
		if err != nil {
			a.vm.Flash.Err("notifications", err)
			return
		}
		a.app.QueueUpdateDraw(func() { a.notes.Update(title, list) })
	}()
}

func (a *App) openNotification() {
	n := a.notes.Selected()
	if n == nil {
		return
	}
	if !n.Seen {
		id := n.ID
		a.notes.MarkSeen(id)
		go func() {
			if err := a.vm.MarkSeen(a.ctx, id); err != nil {
				a.vm.Flash.Err("mark seen", err)
			}
		}()
	}
	if n.SenderID != "" {
		a.openThread(n.SenderID)
	}
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "open":
		if cmd.Arg() == "" {
			a.vm.Flash.Warn("usage: open <user>")
			return
		}
		a.openThread(cmd.Arg())
	case "search":
		a.showNotifications(cmd.Arg())
	case "notifications":
		a.showNotifications("")
	case "images":
		if a.pages.Current() != pageThread || len(cmd.Args) == 0 {
			a.vm.Flash.Warn("usage: images <file>... (in a conversation)")
			return
		}
		paths := cmd.Args
		go func() {
			if err := a.vm.SendImages(a.ctx, paths); err != nil {
				a.vm.Flash.Err("send images", err)
			}
		}()
	case "accept", "decline":
		if cmd.Arg() == "" {
			a.vm.Flash.Warn("usage: %s <user>", cmd.Name)
			return
		}
		a.respondTo(cmd.Arg(), cmd.Name == "accept")
	case "invite":
		user := ""
		if st := a.vm.Status(); st != nil {
			user = st.UserID
		}
		a.invite.Show(a.backendURL, user)
		a.show(pageInvite)
	case "refresh":
		a.refresh()
	case "help":
		a.show(pageHelp)
	case "quit":
		a.Stop()
	default:
		a.vm.Flash.Warn("unknown command %q", cmd.Name)
	}
}

// apply redraws what a view model refresh touched. Runs on the UI goroutine.
func (a *App) apply(r model.Refresh) {
	switch r {
	case model.RefreshList:
		a.convs.Update(a.vm.List())
		a.drawInfo()
	case model.RefreshThread:
		a.thread.Update(a.vm.Thread())
	case model.RefreshStatus:
		a.statusAt = time.Now()
		a.drawInfo()
	}
}

func (a *App) drawInfo() {
	data := &ui.SessionData{Profile: a.profile, Link: "connecting"}
	if st := a.vm.Status(); st != nil {
		data.UserID = st.UserID
		data.Link = st.Link
		data.LinkDetail = st.LinkDetail
		data.Unseen = st.Unseen
		data.Uptime = time.Duration(st.UptimeMs)*time.Millisecond + time.Since(a.statusAt)
	}
	data.Conversations = a.vm.List().Counts[string(conversation.All)]
	a.info.Update(data)
}

func (a *App) drawFlash() {
	a.flashBar.Update(a.vm.Flash.Current())
}

// loop forwards view model changes to the UI goroutine.
func (a *App) loop() {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case r := <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(func() { a.apply(r) })
		case <-a.vm.Flash.Watch():
			a.app.QueueUpdateDraw(a.drawFlash)
		case <-tick.C:
			a.app.QueueUpdateDraw(func() {
				a.drawFlash()
				a.drawInfo()
			})
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	defer a.cancel()

	a.drawInfo()
	a.startList(string(conversation.All))
	go a.loop()
	go func() {
		if err := a.vm.LoadStatus(a.ctx); err != nil {
			a.vm.Flash.Err("status", err)
		}
		if err := a.vm.WatchStatus(a.ctx); err != nil {
			a.vm.Flash.Err("events", err)
		}
	}()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
