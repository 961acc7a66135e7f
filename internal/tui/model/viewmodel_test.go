package model

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/message"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStreamErr(t *testing.T) {
	ctx := context.Background()
	if streamErr(ctx, io.EOF) != nil {
		t.Error("EOF should end cleanly")
	}
	if streamErr(ctx, status.Error(codes.Canceled, "bye")) != nil {
		t.Error("canceled should end cleanly")
	}
	boom := status.Error(codes.Unavailable, "gone")
	if !errors.Is(streamErr(ctx, boom), boom) {
		t.Error("unavailable should surface")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if streamErr(cancelled, boom) != nil {
		t.Error("errors after cancel should be swallowed")
	}
}

func TestFailReason(t *testing.T) {
	snap := &api.ThreadSnapshot{
		Failure: "t2",
		Messages: []message.Message{
			{TempID: "t1", FailReason: "old"},
			{TempID: "t2", FailReason: "timeout"},
		},
	}
	if got := failReason(snap); got != "timeout" {
		t.Errorf("failReason = %q", got)
	}
	snap.Failure = "t9"
	if got := failReason(snap); got != "send failed" {
		t.Errorf("failReason = %q", got)
	}
}

func TestSendNeedsActiveConversation(t *testing.T) {
	vm := NewViewModel(nil)
	if err := vm.Send(context.Background(), "hi"); err == nil {
		t.Error("send without an open conversation should fail")
	}
	if err := vm.Retry(context.Background(), "t1"); err == nil {
		t.Error("retry without an open conversation should fail")
	}
}

func TestAffectsStatus(t *testing.T) {
	for kind, want := range map[string]bool{
		"link.status_changed": true,
		"notification.posted": true,
		"message.received":    false,
		"inbox.changed":       false,
	} {
		if got := affectsStatus(kind); got != want {
			t.Errorf("affectsStatus(%q) = %v", kind, got)
		}
	}
}
