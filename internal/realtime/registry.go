package realtime

import "sync"

// Registry tracks which live connections are subscribed to which topics.
// Subscriptions are in-memory only; a reconnecting user loses nothing
// because the notification store and ledger are authoritative.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Connection
	conns  map[string]map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[string]map[string]*Connection),
		conns:  make(map[string]map[string]bool),
	}
}

func (r *Registry) Add(topic string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.topics[topic] == nil {
		r.topics[topic] = make(map[string]*Connection)
	}
	r.topics[topic][conn.ID] = conn

	if r.conns[conn.ID] == nil {
		r.conns[conn.ID] = make(map[string]bool)
	}
	r.conns[conn.ID][topic] = true
}

func (r *Registry) Remove(topic, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(topic, connID)
}

// RemoveConnection releases every topic membership held by the connection.
func (r *Registry) RemoveConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic := range r.conns[connID] {
		r.remove(topic, connID)
	}
	delete(r.conns, connID)
}

func (r *Registry) remove(topic, connID string) {
	if members := r.topics[topic]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.topics, topic)
		}
	}
	if topics := r.conns[connID]; topics != nil {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(r.conns, connID)
		}
	}
}

// Subscribers returns a snapshot of the connections currently subscribed to
// the topic.
func (r *Registry) Subscribers(topic string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.topics[topic]
	if len(members) == 0 {
		return nil
	}
	conns := make([]*Connection, 0, len(members))
	for _, conn := range members {
		conns = append(conns, conn)
	}
	return conns
}

// Subscribed reports whether the connection is a member of the topic.
func (r *Registry) Subscribed(topic, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connID][topic]
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
