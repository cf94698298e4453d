// Package store provides the ledger's durable channel storage: an
// in-memory store for embedded use and tests, and a PostgreSQL store
// for operators who need state to survive restarts.
package store

import (
	"sync"

	"github.com/potchannel/potchannel/internal/channel"
)

// Memory is a mutex-guarded in-process store. The ledger already
// serializes writers; the lock here only guards against concurrent
// readers of the map itself.
type Memory struct {
	mu       sync.RWMutex
	channels map[uint64]*channel.Channel
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{channels: make(map[uint64]*channel.Channel)}
}

func (m *Memory) Get(id uint64) (*channel.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, channel.ErrChannelNotFound
	}
	return ch, nil
}

func (m *Memory) Put(ch *channel.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID] = ch
	return nil
}

func (m *Memory) Delete(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, id)
	return nil
}

// Len reports the number of stored channels.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}
