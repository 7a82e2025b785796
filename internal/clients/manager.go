// Package clients groups live connections by the client id they announced,
// so a new input connection can displace the previous one for that client.
package clients

import (
	"io"
	"sync"
)

// DefaultID groups connections that did not name a client.
const DefaultID = "default"

// Conn is a registered connection.
type Conn = io.Closer

// Client is the set of connections belonging to one logical client.
type Client struct {
	Input Conn
	Views []Conn
}

// Manager tracks clients keyed by client id.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewManager() *Manager {
	return &Manager{clients: make(map[string]*Client)}
}

func (m *Manager) getOrCreate(id string) *Client {
	if id == "" {
		id = DefaultID
	}
	c, ok := m.clients[id]
	if !ok {
		c = &Client{}
		m.clients[id] = c
	}
	return c
}

// dropIfEmpty must be called with mu held.
func (m *Manager) dropIfEmpty(id string) {
	if c, ok := m.clients[id]; ok && c.Input == nil && len(c.Views) == 0 {
		delete(m.clients, id)
	}
}

// SetInput registers conn as the input connection for id and returns the
// connection it displaced, if any. The caller closes the displaced one.
func (m *Manager) SetInput(id string, conn Conn) (old Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.getOrCreate(id)
	if c.Input != nil && c.Input != conn {
		old = c.Input
	}
	c.Input = conn
	return
}

// RemoveInput unregisters conn if it is still the input connection for id.
func (m *Manager) RemoveInput(id string, conn Conn) {
	if id == "" {
		id = DefaultID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return
	}
	if c.Input == conn {
		c.Input = nil
	}
	m.dropIfEmpty(id)
}

// AddView registers a frame connection for id.
func (m *Manager) AddView(id string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.getOrCreate(id)
	c.Views = append(c.Views, conn)
}

// RemoveView unregisters a frame connection for id.
func (m *Manager) RemoveView(id string, conn Conn) {
	if id == "" {
		id = DefaultID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return
	}
	for i, v := range c.Views {
		if v == conn {
			c.Views = append(c.Views[:i], c.Views[i+1:]...)
			break
		}
	}
	m.dropIfEmpty(id)
}

// Count returns the number of clients and connections registered.
func (m *Manager) Count() (clients, conns int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.Input != nil {
			conns++
		}
		conns += len(c.Views)
	}
	return len(m.clients), conns
}

// CloseAll closes every registered connection. Handlers unregister
// themselves as their read loops end.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	var conns []Conn
	for _, c := range m.clients {
		if c.Input != nil {
			conns = append(conns, c.Input)
		}
		conns = append(conns, c.Views...)
	}
	m.mu.RUnlock()
	for _, c := range conns {
		_ = c.Close()
	}
}
