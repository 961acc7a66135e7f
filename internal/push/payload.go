// Package push turns backend push payloads into thread, inbox and
// notification updates.
package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vibein/vibechat/internal/message"
)

// ErrMalformed is returned for payloads that cannot be interpreted.
var ErrMalformed = errors.New("malformed push payload")

// Kind is the type of a push payload.
type Kind string

const (
	KindNewMessage   Kind = "new_message"
	KindStatusUpdate Kind = "status_update"
)

// Payload is a parsed push. Exactly one of Message and Receipt is set.
type Payload struct {
	Kind       Kind
	Message    *message.Message
	SenderName string
	Receipt    *Receipt
}

// Receipt is a delivered or read acknowledgement for messages the user sent.
type Receipt struct {
	MessageIDs []string
	Status     message.Status
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Parse interprets a push data map. The kind comes from the "type" key and
// is inferred from the keys present when that is missing.
func Parse(data map[string]string) (Payload, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(data["type"])))
	if kind == "" {
		switch {
		case data["message_ids"] != "":
			kind = KindStatusUpdate
		case data["message_id"] != "":
			kind = KindNewMessage
		}
	}
	switch kind {
	case KindNewMessage:
		return parseNewMessage(data)
	case KindStatusUpdate:
		return parseStatusUpdate(data)
	case "":
		return Payload{}, malformed("no type")
	}
	return Payload{}, malformed("unknown type %q", kind)
}

func parseNewMessage(data map[string]string) (Payload, error) {
	sender, id := strings.TrimSpace(data["sender_id"]), strings.TrimSpace(data["message_id"])
	if sender == "" || id == "" {
		return Payload{}, malformed("new_message needs sender_id and message_id")
	}
	typ, err := message.ParseType(strings.ToLower(data["message_type"]))
	if err != nil {
		return Payload{}, malformed("%v", err)
	}
	ts := time.Now()
	if raw := strings.TrimSpace(data["timestamp"]); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ts = message.UnixAuto(v)
		} else if t, err := time.Parse(time.RFC3339, raw); err == nil {
			ts = t
		}
	}
	return Payload{
		Kind: KindNewMessage,
		Message: &message.Message{
			MessageID: id,
			SenderID:  sender,
			Type:      typ,
			Content:   data["message"],
			Timestamp: ts,
			Status:    message.Sent,
		},
		SenderName: data["sender_name"],
	}, nil
}

func parseStatusUpdate(data map[string]string) (Payload, error) {
	st, err := message.ParseReceipt(data["status"])
	if err != nil {
		return Payload{}, malformed("%v", err)
	}
	ids, err := parseIDs(data["message_ids"])
	if err != nil {
		return Payload{}, err
	}
	if len(ids) == 0 {
		return Payload{}, malformed("status_update without message ids")
	}
	return Payload{Kind: KindStatusUpdate, Receipt: &Receipt{MessageIDs: ids, Status: st}}, nil
}

// parseIDs decodes a JSON list of ids, strings or numbers alike.
func parseIDs(raw string) ([]string, error) {
	var items []message.ID
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, malformed("message_ids: %v", err)
	}
	out := make([]string, 0, len(items))
	for _, id := range items {
		if id != "" {
			out = append(out, id.String())
		}
	}
	return out, nil
}

// Preview is the one-line text shown for a message in notifications and
// the conversation list.
func Preview(m *message.Message) string {
	if m.Type == message.TypeImage {
		urls, _ := m.Images()
		if len(urls) > 1 {
			return fmt.Sprintf("[%d photos]", len(urls))
		}
		return "[photo]"
	}
	s := strings.Join(strings.Fields(m.Content), " ")
	if r := []rune(s); len(r) > 100 {
		return string(r[:99]) + "…"
	}
	return s
}
