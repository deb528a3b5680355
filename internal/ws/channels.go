package ws

import (
	"log"
	"sync"
)

// Channels is the fan-out membership table. Personal channels are keyed by
// user id, conversation channels by conversation id; the two namespaces never
// mix. Membership is in-memory only and dropped wholesale on disconnect.
type Channels struct {
	mu            sync.RWMutex
	personal      map[int]map[*Conn]struct{}
	conversations map[int]map[*Conn]struct{}
}

// NewChannels creates an empty channel table.
func NewChannels() *Channels {
	return &Channels{
		personal:      make(map[int]map[*Conn]struct{}),
		conversations: make(map[int]map[*Conn]struct{}),
	}
}

// JoinPersonal subscribes the connection to a user's personal channel.
// Idempotent.
func (c *Channels) JoinPersonal(userID int, conn *Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	join(c.personal, userID, conn)
}

// JoinConversation subscribes the connection to a conversation channel.
// Idempotent.
func (c *Channels) JoinConversation(conversationID int, conn *Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	join(c.conversations, conversationID, conn)
}

// Drop removes the connection from every channel it joined.
func (c *Channels) Drop(conn *Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, members := range c.personal {
		delete(members, conn)
		if len(members) == 0 {
			delete(c.personal, key)
		}
	}
	for key, members := range c.conversations {
		delete(members, conn)
		if len(members) == 0 {
			delete(c.conversations, key)
		}
	}
}

// PublishPersonal delivers the event to every member of a personal channel.
func (c *Channels) PublishPersonal(userID int, event any) {
	c.mu.RLock()
	conns := snapshot(c.personal[userID])
	c.mu.RUnlock()
	c.deliver(conns, event)
}

// PublishConversation delivers the event to every member of a conversation
// channel.
func (c *Channels) PublishConversation(conversationID int, event any) {
	c.mu.RLock()
	conns := snapshot(c.conversations[conversationID])
	c.mu.RUnlock()
	c.deliver(conns, event)
}

// PublishConversationExcept delivers to every member except one connection;
// used to echo a message to the sender's other sessions.
func (c *Channels) PublishConversationExcept(conversationID int, skip *Conn, event any) {
	c.mu.RLock()
	conns := snapshot(c.conversations[conversationID])
	c.mu.RUnlock()
	for _, conn := range conns {
		if conn == skip {
			continue
		}
		c.send(conn, event)
	}
}

// deliver writes outside the table lock; a member may have closed in between,
// which is a per-connection no-op for the publisher and never aborts the
// remaining fan-out.
func (c *Channels) deliver(conns []*Conn, event any) {
	for _, conn := range conns {
		c.send(conn, event)
	}
}

func (c *Channels) send(conn *Conn, event any) {
	if err := conn.Send(event); err != nil {
		log.Printf("websocket write error conn=%s: %v", conn.ID, err)
		conn.Close()
		c.Drop(conn)
	}
}

func join(table map[int]map[*Conn]struct{}, key int, conn *Conn) {
	members, ok := table[key]
	if !ok {
		members = make(map[*Conn]struct{})
		table[key] = members
	}
	members[conn] = struct{}{}
}

func snapshot(members map[*Conn]struct{}) []*Conn {
	if len(members) == 0 {
		return nil
	}
	conns := make([]*Conn, 0, len(members))
	for conn := range members {
		conns = append(conns, conn)
	}
	return conns
}
