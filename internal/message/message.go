// Package message holds the chat message entity and its delivery status rules.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type is the kind of payload a message carries.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
)

// ParseType validates a wire message type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeText, TypeImage:
		return Type(s), nil
	case "":
		return TypeText, nil
	}
	return "", fmt.Errorf("unknown message type %q", s)
}

// Message is a chat message as held in a thread.
//
// MessageID is empty until the server has confirmed the message. TempID is
// assigned locally when the user initiates a send and survives confirmation,
// so the placeholder and the confirmed entry are the same row.
type Message struct {
	MessageID   string    `json:"message_id,omitempty"`
	TempID      string    `json:"temp_id,omitempty"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id"`
	Type        Type      `json:"message_type"`
	Content     string    `json:"message_content"`
	Timestamp   time.Time `json:"timestamp"`
	IsDelivered bool      `json:"is_delivered"`
	IsRead      bool      `json:"is_read"`
	Status      Status    `json:"status"`
	// FailReason is set while Status is FAILED.
	FailReason string `json:"fail_reason,omitempty"`
}

// Key returns the identity used to find the message in a list: the server id
// when known, otherwise the temp id.
func (m *Message) Key() string {
	if m.MessageID != "" {
		return m.MessageID
	}
	return m.TempID
}

// Outgoing reports whether self sent the message.
func (m *Message) Outgoing(self string) bool {
	return m.SenderID == self
}

// Images decodes the media URLs of an image message.
func (m *Message) Images() ([]string, error) {
	if m.Type != TypeImage {
		return nil, nil
	}
	return DecodeImages(m.Content)
}

// Wire is the server representation of a message.
type Wire struct {
	MessageID   ID     `json:"message_id"`
	SenderID    ID     `json:"sender_id"`
	ReceiverID  ID     `json:"receiver_id"`
	Type        string `json:"message_type"`
	Content     string `json:"message_content"`
	Timestamp   int64  `json:"timestamp"`
	IsDelivered bool   `json:"is_delivered"`
	IsRead      bool   `json:"is_read"`
}

// FromWire converts a fetched message. Status is derived from the receipt
// flags as they were at fetch time.
func FromWire(w Wire) Message {
	typ, err := ParseType(w.Type)
	if err != nil {
		typ = TypeText
	}
	st := Sent
	switch {
	case w.IsRead:
		st = Read
	case w.IsDelivered:
		st = Delivered
	}
	return Message{
		MessageID:   w.MessageID.String(),
		SenderID:    w.SenderID.String(),
		ReceiverID:  w.ReceiverID.String(),
		Type:        typ,
		Content:     w.Content,
		Timestamp:   UnixAuto(w.Timestamp),
		IsDelivered: w.IsDelivered || w.IsRead,
		IsRead:      w.IsRead,
		Status:      st,
	}
}

// UnixAuto converts a timestamp given in seconds or milliseconds since the epoch.
func UnixAuto(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	if ts > 1e12 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}

// ErrNoImages is returned when an image message has no URLs.
var ErrNoImages = errors.New("image message has no media")

// EncodeImages builds the content of an image message.
func EncodeImages(urls []string) (string, error) {
	if len(urls) == 0 {
		return "", ErrNoImages
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeImages parses the content of an image message.
func DecodeImages(content string) ([]string, error) {
	var urls []string
	if err := json.Unmarshal([]byte(content), &urls); err != nil {
		return nil, fmt.Errorf("decode image content: %w", err)
	}
	if len(urls) == 0 {
		return nil, ErrNoImages
	}
	return urls, nil
}
