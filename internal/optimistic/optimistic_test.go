package optimistic

import (
	"context"
	"errors"
	"testing"
)

func TestRunCommits(t *testing.T) {
	state := "pending"
	err := Run(context.Background(), Mutation{
		Apply:    func() { state = "accepted" },
		Rollback: func() { state = "pending" },
	}, func(context.Context) error {
		if state != "accepted" {
			t.Errorf("commit saw state %q, want accepted (apply runs first)", state)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if state != "accepted" {
		t.Errorf("state = %q, want accepted", state)
	}
}

func TestRunRollsBackOnFailure(t *testing.T) {
	boom := errors.New("server said no")
	state := "pending"
	err := Run(context.Background(), Mutation{
		Apply:    func() { state = "accepted" },
		Rollback: func() { state = "pending" },
	}, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapping %v", err, boom)
	}
	if state != "pending" {
		t.Errorf("state = %q, want pending after rollback", state)
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	rolledBack := false
	err := Run(ctx, Mutation{
		Apply:    func() {},
		Rollback: func() { rolledBack = true },
	}, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("commit ran on a canceled context")
	}
	if !rolledBack {
		t.Error("mutation was not rolled back")
	}
}
