package ws

import (
	"context"
	"log"
	"time"

	"relay-service/internal/repositories"
)

// PresencePublisher reacts to registry edges: it persists the presence
// columns and announces the transition to every live connection. The fan-out
// is deliberately global rather than scoped to the user's contacts; that is
// the service's known scalability ceiling, not something this layer corrects.
type PresencePublisher struct {
	users    repositories.UserRepository
	registry *Registry
}

// NewPresencePublisher constructs a PresencePublisher.
func NewPresencePublisher(users repositories.UserRepository, registry *Registry) *PresencePublisher {
	return &PresencePublisher{users: users, registry: registry}
}

// Online handles a user's 0->1 connection edge.
func (p *PresencePublisher) Online(ctx context.Context, userID int) {
	p.publish(ctx, userID, true)
}

// Offline handles a user's 1->0 connection edge.
func (p *PresencePublisher) Offline(ctx context.Context, userID int) {
	p.publish(ctx, userID, false)
}

// publish favors delivery over consistency with the store: a persistence
// failure is logged and the broadcast still goes out.
func (p *PresencePublisher) publish(ctx context.Context, userID int, online bool) {
	now := time.Now().UTC()
	if err := p.users.SetPresence(ctx, userID, online, now); err != nil {
		log.Printf("presence persist failed user=%d online=%t: %v", userID, online, err)
	}

	event := NewPresenceEvent(userID, online, now)
	for _, conn := range p.registry.All() {
		if err := conn.Send(event); err != nil {
			log.Printf("presence broadcast skipped conn=%s: %v", conn.ID, err)
		}
	}
}
