package mtproto

import "sync"

// ackBuffer accumulates remote msg_ids pending acknowledgement.
// Mutated only under the coordinator's send/receive mutex; its own
// mutex exists so tests can inspect it without reaching into the
// coordinator.
type ackBuffer struct {
	mu  sync.Mutex
	ids []int64
}

func (a *ackBuffer) add(msgID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, msgID)
}

// drain returns and clears the buffered ids, atomically, so they can
// be sent as the first element of the next outbound transmission.
func (a *ackBuffer) drain() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.ids) == 0 {
		return nil
	}
	ids := a.ids
	a.ids = nil
	return ids
}

func (a *ackBuffer) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ids)
}
