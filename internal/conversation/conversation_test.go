package conversation

import (
	"slices"
	"testing"
)

func sample() []Conversation {
	return []Conversation{
		{OtherUserID: "u1", ConnectionStatus: Accepted, UnreadCount: 2},
		{OtherUserID: "u2", ConnectionStatus: Pending},
		{OtherUserID: "u3", ConnectionStatus: Accepted},
		{OtherUserID: "u4", ConnectionStatus: None, UnreadCount: 5},
		{OtherUserID: "u5", ConnectionStatus: Declined},
		{OtherUserID: "u6", ConnectionStatus: Accepted, UnreadCount: 1},
	}
}

func ids(cs []Conversation) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.OtherUserID)
	}
	return out
}

func TestFilterModes(t *testing.T) {
	tests := []struct {
		mode Mode
		want []string
	}{
		{All, []string{"u1", "u3", "u6"}},
		{Requests, []string{"u2", "u4", "u5"}},
		{Unread, []string{"u1", "u6"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got := ids(Filter(sample(), tt.mode))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Filter(%s) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

// TestFilterPartition checks that ALL and REQUESTS split the list exactly and
// UNREAD is a subset of ALL.
func TestFilterPartition(t *testing.T) {
	src := sample()
	all := Filter(src, All)
	req := Filter(src, Requests)
	unread := Filter(src, Unread)

	if len(all)+len(req) != len(src) {
		t.Fatalf("len(all)+len(requests) = %d, want %d", len(all)+len(req), len(src))
	}
	seen := map[string]int{}
	for _, c := range append(slices.Clone(all), req...) {
		seen[c.OtherUserID]++
	}
	for _, c := range src {
		if seen[c.OtherUserID] != 1 {
			t.Errorf("%s appears %d times across all+requests", c.OtherUserID, seen[c.OtherUserID])
		}
	}
	allIDs := ids(all)
	for _, c := range unread {
		if !slices.Contains(allIDs, c.OtherUserID) {
			t.Errorf("unread %s not in all", c.OtherUserID)
		}
	}
}

func TestFilterDoesNotMutateSource(t *testing.T) {
	src := sample()
	before := slices.Clone(src)
	out := Filter(src, Unread)
	if len(out) > 0 {
		out[0].UnreadCount = 99
	}
	if !slices.Equal(src, before) {
		t.Error("Filter mutated its source")
	}
}

func TestFilterIdempotent(t *testing.T) {
	once := Filter(sample(), Unread)
	twice := Filter(once, Unread)
	if !slices.Equal(ids(once), ids(twice)) {
		t.Errorf("filter not idempotent: %v vs %v", ids(once), ids(twice))
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", All, false},
		{"all", All, false},
		{"REQUESTS", Requests, false},
		{" unread ", Unread, false},
		{"archived", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFromWireNormalizesStatus(t *testing.T) {
	c := FromWire(Wire{OtherUserID: "u1", ConnectionStatus: "ACCEPTED", Timestamp: 1700000000})
	if c.ConnectionStatus != Accepted {
		t.Errorf("status = %s, want accepted", c.ConnectionStatus)
	}
	if c.Timestamp.Unix() != 1700000000 {
		t.Errorf("timestamp = %v", c.Timestamp)
	}
	if got := FromWire(Wire{ConnectionStatus: "blocked"}).ConnectionStatus; got != None {
		t.Errorf("unknown status mapped to %s, want none", got)
	}
}

func TestFromWireMillisTimestamp(t *testing.T) {
	c := FromWire(Wire{OtherUserID: "u1", Timestamp: 1700000000123})
	if c.Timestamp.UnixMilli() != 1700000000123 {
		t.Errorf("timestamp = %v", c.Timestamp)
	}
	if !FromWire(Wire{}).Timestamp.IsZero() {
		t.Error("zero timestamp should stay zero")
	}
}
