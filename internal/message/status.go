package message

import (
	"fmt"
	"slices"
	"strings"
)

// Status is the UI lifecycle state of a message.
type Status string

const (
	Sending   Status = "SENDING"
	Sent      Status = "SENT"
	Failed    Status = "FAILED"
	Delivered Status = "DELIVERED"
	Read      Status = "READ"
)

// validTransitions defines the lifecycle. Receipts only move forward and a
// failed message comes back only through an explicit retry.
var validTransitions = map[Status][]Status{
	Sending:   {Sent, Failed},
	Sent:      {Delivered, Read},
	Delivered: {Read},
	Failed:    {Sending},
	Read:      {},
}

// CanTransition reports whether from -> to is part of the lifecycle.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Transition returns an error if from -> to is not allowed.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid status transition from %s to %s", from, to)
	}
	return nil
}

// receiptRank orders the receipt-driven states. Sending and Failed are not
// ranked: receipts never apply to them.
var receiptRank = map[Status]int{
	Sent:      1,
	Delivered: 2,
	Read:      3,
}

// Merge applies a receipt status to the current one and returns the result.
// The merge is monotonic: the result is the higher of the two ranks, so a
// stale DELIVERED after READ changes nothing and duplicates are no-ops.
// READ implies DELIVERED.
func Merge(current, incoming Status) Status {
	cur, ok := receiptRank[current]
	if !ok {
		return current
	}
	in, ok := receiptRank[incoming]
	if !ok || in <= cur {
		return current
	}
	return incoming
}

// ParseReceipt parses a push receipt status ("delivered" or "read").
func ParseReceipt(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case Delivered:
		return Delivered, nil
	case Read:
		return Read, nil
	}
	return "", fmt.Errorf("unknown receipt status %q", s)
}

// ApplyReceipt merges st into m and keeps the receipt flags in step.
// It reports whether anything changed.
func (m *Message) ApplyReceipt(st Status) bool {
	next := Merge(m.Status, st)
	if next == m.Status {
		return false
	}
	m.Status = next
	switch next {
	case Read:
		m.IsRead = true
		m.IsDelivered = true
	case Delivered:
		m.IsDelivered = true
	}
	return true
}
