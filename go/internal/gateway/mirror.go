package gateway

import (
	"sync"
)

// Mirror propagates frames published on one listener to the other listeners serving the
// same clients
type Mirror interface {
	// Join adds a listener to the mirror group
	Join(cm *ConnectionManager)
	// Forward delivers frame to every member except origin
	Forward(origin *ConnectionManager, channel Channel, frame []byte)
}

// LocalMirror links the listeners of a single process
type LocalMirror struct {
	mu      sync.RWMutex
	members []*ConnectionManager
}

// NewLocalMirror creates an empty mirror group
func NewLocalMirror() *LocalMirror {
	return &LocalMirror{}
}

// Join adds cm to the group
func (m *LocalMirror) Join(cm *ConnectionManager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, cm)
}

// Forward delivers frame to every member but origin. Mirrored frames are not forwarded again.
func (m *LocalMirror) Forward(origin *ConnectionManager, channel Channel, frame []byte) {
	m.mu.RLock()
	members := append([]*ConnectionManager(nil), m.members...)
	m.mu.RUnlock()

	for _, member := range members {
		if member == origin {
			continue
		}
		member.deliver(channel, frame, nil)
	}
}

// Members returns the listeners in the group
func (m *LocalMirror) Members() []*ConnectionManager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*ConnectionManager(nil), m.members...)
}
