package message

import "testing"

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
	}{
		{Sending, Sent},
		{Sending, Failed},
		{Sent, Delivered},
		{Sent, Read},
		{Delivered, Read},
		{Failed, Sending},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if err := Transition(tt.from, tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
	}{
		{Sending, Delivered},
		{Sending, Read},
		{Failed, Sent},
		{Read, Delivered},
		{Delivered, Sent},
		{Read, Sending},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if CanTransition(tt.from, tt.to) {
				t.Errorf("CanTransition(%s -> %s) = true, want false", tt.from, tt.to)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		current  Status
		incoming Status
		want     Status
	}{
		{"sent then delivered", Sent, Delivered, Delivered},
		{"delivered then read", Delivered, Read, Read},
		{"read skips delivered", Sent, Read, Read},
		{"stale delivered after read", Read, Delivered, Read},
		{"duplicate read", Read, Read, Read},
		{"duplicate delivered", Delivered, Delivered, Delivered},
		{"receipt on sending", Sending, Read, Sending},
		{"receipt on failed", Failed, Delivered, Failed},
		{"non-receipt incoming", Sent, Failed, Sent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Merge(tt.current, tt.incoming); got != tt.want {
				t.Errorf("Merge(%s, %s) = %s, want %s", tt.current, tt.incoming, got, tt.want)
			}
		})
	}
}

// TestReceiptOrderIndependence verifies that DELIVERED and READ converge on
// READ whichever arrives first.
func TestReceiptOrderIndependence(t *testing.T) {
	a := Message{Status: Sent}
	a.ApplyReceipt(Delivered)
	a.ApplyReceipt(Read)

	b := Message{Status: Sent}
	b.ApplyReceipt(Read)
	if changed := b.ApplyReceipt(Delivered); changed {
		t.Error("stale DELIVERED reported a change")
	}

	if a.Status != Read || b.Status != Read {
		t.Fatalf("statuses = %s, %s, want READ, READ", a.Status, b.Status)
	}
	if !b.IsDelivered || !b.IsRead {
		t.Errorf("flags = delivered:%v read:%v, want both true", b.IsDelivered, b.IsRead)
	}
}

func TestParseReceipt(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"delivered", Delivered, false},
		{"READ", Read, false},
		{" read ", Read, false},
		{"sent", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseReceipt(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseReceipt(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseReceipt(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
