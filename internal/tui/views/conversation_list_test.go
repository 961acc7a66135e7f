package views

import (
	"strings"
	"testing"
	"time"

	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/tui/ui"
)

func sampleList() api.ConversationList {
	return api.ConversationList{
		Filter: "all",
		Load:   "succeeded",
		Counts: map[string]int{"all": 3, "requests": 1, "unread": 1},
		Conversations: []conversation.Conversation{
			{OtherUserID: "alice", Name: "Alice", LastMessage: "lunch?", UnreadCount: 2, ConnectionStatus: conversation.Accepted},
			{OtherUserID: "bob", Name: "Bob", LastMessage: "hey", ConnectionStatus: conversation.Pending},
			{OtherUserID: "carol", LastMessage: "see you", ConnectionStatus: conversation.Accepted},
		},
	}
}

func TestConversationListTitleShowsCounts(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update(sampleList())
	title := cl.title()
	for _, want := range []string{"1:all(3)", "2:requests(1)", "3:unread(1)"} {
		if !strings.Contains(title, want) {
			t.Errorf("title %q missing %q", title, want)
		}
	}
	if cl.Mode() != "all" {
		t.Errorf("mode = %q", cl.Mode())
	}
}

func TestConversationListFilterAndSelection(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	cl.Update(sampleList())

	cl.Select(2, 0)
	if sel := cl.Selected(); sel == nil || sel.OtherUserID != "bob" {
		t.Fatalf("selected = %+v", sel)
	}

	cl.SetFilter("SEE")
	if len(cl.visible) != 1 || cl.visible[0].OtherUserID != "carol" {
		t.Fatalf("visible = %+v", cl.visible)
	}
	if sel := cl.Selected(); sel == nil || sel.OtherUserID != "carol" {
		t.Errorf("selected after filter = %+v", sel)
	}

	cl.SetFilter("")
	if len(cl.visible) != 3 {
		t.Errorf("visible after clearing = %d", len(cl.visible))
	}
}

func TestConversationListKeepsCursorAcrossUpdates(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update(sampleList())
	cl.Select(3, 0)

	next := sampleList()
	next.Conversations = append([]conversation.Conversation{{OtherUserID: "dave", Name: "Dave"}}, next.Conversations...)
	cl.Update(next)
	if sel := cl.Selected(); sel == nil || sel.OtherUserID != "carol" {
		t.Errorf("selected = %+v, want carol", sel)
	}
	if _, ok := cl.Find("dave"); !ok {
		t.Error("Find(dave) failed")
	}
}

func TestCleanDropsControlAndEscapes(t *testing.T) {
	got := clean("a\x07b[blue]c👍🏻\nd")
	if got != "ab[blue[]c👍\nd" {
		t.Errorf("clean = %q", got)
	}
	if oneLine("x\ny") != "x y" {
		t.Errorf("oneLine = %q", oneLine("x\ny"))
	}
}
