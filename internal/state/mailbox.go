package state

import "sync"

// Mailbox holds at most one pending servo command. A new command overwrites
// an unconsumed one; there is no queue. The mailbox does not validate the
// position, that is the endpoint's job.
type Mailbox struct {
	mu       sync.Mutex
	position int
	pending  bool
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

func (m *Mailbox) SetPending(position int) {
	m.mu.Lock()
	m.position = position
	m.pending = true
	m.mu.Unlock()
}

// PollAndClear consumes the pending command. The returned bool distinguishes
// "no request" from a valid position 0; clearing happens under the same lock
// so two pollers can never both receive the command.
func (m *Mailbox) PollAndClear() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.pending {
		return 0, false
	}
	m.pending = false
	return m.position, true
}
