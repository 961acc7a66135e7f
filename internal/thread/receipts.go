package thread

import (
	"sync"

	"github.com/vibein/vibechat/internal/message"
)

// receiptBuffer parks receipts that arrive before the send they refer to
// has been confirmed. It keeps at most max ids, evicting the oldest.
type receiptBuffer struct {
	mu    sync.Mutex
	max   int
	order []string
	byID  map[string]message.Status
}

func newReceiptBuffer(max int) *receiptBuffer {
	return &receiptBuffer{max: max, byID: make(map[string]message.Status)}
}

func (b *receiptBuffer) put(id string, st message.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.byID[id]; ok {
		b.byID[id] = message.Merge(cur, st)
		return
	}
	if len(b.order) >= b.max {
		delete(b.byID, b.order[0])
		b.order = b.order[1:]
	}
	b.order = append(b.order, id)
	b.byID[id] = message.Merge(message.Sent, st)
}

func (b *receiptBuffer) take(id string) (message.Status, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.byID[id]
	if !ok {
		return "", false
	}
	delete(b.byID, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return st, true
}

func (b *receiptBuffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byID)
}
