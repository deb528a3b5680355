package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"relay-service/internal/auth"
	"relay-service/internal/observability"
	"relay-service/internal/repositories"
	"relay-service/internal/telemetry"
)

var ErrAuthRequired = errors.New("authentication required")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway upgrades websocket connections and runs each connection's event
// loop. A missing or invalid credential token downgrades the connection to
// anonymous instead of rejecting it; anonymous connections are limited to the
// availability probe and channel registration.
type Gateway struct {
	registry      *Registry
	channels      *Channels
	presence      *PresencePublisher
	relay         *MessageRelay
	receipts      *ReadReceipts
	probe         *AvailabilityProbe
	conversations repositories.ConversationRepository
	verifier      *auth.Verifier
	dispatcher    *Dispatcher
}

// NewGateway constructs the gateway and wires the dispatch table.
func NewGateway(
	registry *Registry,
	channels *Channels,
	presence *PresencePublisher,
	relay *MessageRelay,
	receipts *ReadReceipts,
	probe *AvailabilityProbe,
	conversations repositories.ConversationRepository,
	verifier *auth.Verifier,
	audit *telemetry.AuditEmitter,
) *Gateway {
	g := &Gateway{
		registry:      registry,
		channels:      channels,
		presence:      presence,
		relay:         relay,
		receipts:      receipts,
		probe:         probe,
		conversations: conversations,
		verifier:      verifier,
		dispatcher:    NewDispatcher(audit),
	}

	g.dispatcher.Handle(KindRegister, g.handleRegister)
	g.dispatcher.Handle(KindJoinConversation, g.handleJoinConversation)
	g.dispatcher.Handle(KindSendMessage, g.handleSendMessage)
	g.dispatcher.Handle(KindMarkRead, g.handleMarkRead)
	g.dispatcher.Handle(KindCheckEmail, g.handleCheckEmail)
	g.dispatcher.Handle(KindCheckPhone, g.handleCheckPhone)
	return g
}

// Handle upgrades the connection, registers it, and starts the read loop.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("relay-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := 0
	if token := auth.TokenFromRequest(c.Request); token != "" {
		id, err := g.verifier.UserID(token)
		if err != nil {
			log.Printf("ws auth downgraded to anonymous: %v", err)
		} else {
			userID = id
		}
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := NewConn(sock, userID)
	conn.DeviceID = observability.DeviceIDFromRequest(c.Request)
	conn.IP = observability.IPFromRequest(c.Request)
	conn.RequestID = observability.RequestIDFromRequest(c.Request)
	conn.TraceID = span.SpanContext().TraceID().String()

	first := g.registry.Register(conn)
	observability.IncWSActive(conn.Anonymous())
	g.publishLifecycle(ctx, conn, "ws_connect", "")

	if first {
		g.presence.Online(ctx, conn.UserID)
	}

	go g.readLoop(conn, sock)
}

// readLoop feeds inbound frames to the dispatcher until the peer goes away,
// then tears the connection down: channel memberships are dropped, the
// registry entry is removed, and a 1->0 edge publishes offline presence. The
// closed connection is immediately and permanently excluded from lookups.
func (g *Gateway) readLoop(conn *Conn, sock *websocket.Conn) {
	// The handshake request context dies with the HTTP handler; connection
	// lifetime work runs on its own context.
	ctx := context.Background()

	var closeReason string
	defer func() {
		g.channels.Drop(conn)
		userID, last := g.registry.Unregister(conn)
		observability.DecWSActive(conn.Anonymous())
		g.publishLifecycle(ctx, conn, "ws_disconnect", closeReason)
		conn.Close()
		if last {
			g.presence.Offline(ctx, userID)
		}
	}()

	for {
		_, frame, err := sock.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.publishLifecycle(ctx, conn, "ws_error", closeReason)
			}
			return
		}
		g.dispatcher.Dispatch(ctx, conn, frame)
	}
}

func (g *Gateway) handleRegister(ctx context.Context, conn *Conn, payload json.RawMessage) Result {
	var p RegisterPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return Rejected(err)
		}
	}

	// The authenticated identity wins; the claimed id only serves anonymous
	// onboarding sessions, matching the service's historical behavior.
	target := conn.UserID
	if target == 0 {
		target = p.UserID
	}
	if target == 0 {
		return Rejected(ErrAuthRequired)
	}

	g.channels.JoinPersonal(target, conn)
	return OK()
}

func (g *Gateway) handleJoinConversation(ctx context.Context, conn *Conn, payload json.RawMessage) Result {
	if conn.Anonymous() {
		return Rejected(ErrAuthRequired)
	}

	var p JoinConversationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Rejected(err)
	}
	if p.ConversationID == 0 {
		return Rejected(ErrNoConversation)
	}

	member, err := g.conversations.IsParticipant(ctx, p.ConversationID, conn.UserID)
	if err != nil {
		return PersistenceErr(err)
	}
	if !member {
		return Rejected(ErrNotParticipant)
	}

	g.channels.JoinConversation(p.ConversationID, conn)
	return OK()
}

func (g *Gateway) handleSendMessage(ctx context.Context, conn *Conn, payload json.RawMessage) Result {
	if conn.Anonymous() {
		return Rejected(ErrAuthRequired)
	}

	var p SendMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Rejected(err)
	}

	if _, err := g.relay.Send(ctx, conn, conn.UserID, p.ConversationID, p.Content, p.TempID); err != nil {
		if errors.Is(err, ErrEmptyContent) || errors.Is(err, ErrNoConversation) ||
			errors.Is(err, ErrNotParticipant) || errors.Is(err, repositories.ErrConversationNotFound) {
			return Rejected(err)
		}
		return PersistenceErr(err)
	}
	return OK()
}

func (g *Gateway) handleMarkRead(ctx context.Context, conn *Conn, payload json.RawMessage) Result {
	if conn.Anonymous() {
		return Rejected(ErrAuthRequired)
	}

	var p MarkReadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Rejected(err)
	}

	if err := g.receipts.MarkRead(ctx, p.ConversationID, conn.UserID); err != nil {
		if errors.Is(err, ErrNoConversation) {
			return Rejected(err)
		}
		return PersistenceErr(err)
	}
	return OK()
}

func (g *Gateway) handleCheckEmail(ctx context.Context, conn *Conn, payload json.RawMessage) Result {
	var p CheckEmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Rejected(err)
	}

	if err := conn.Send(g.probe.CheckEmail(ctx, p.Email)); err != nil {
		return TransientErr(err)
	}
	return OK()
}

func (g *Gateway) handleCheckPhone(ctx context.Context, conn *Conn, payload json.RawMessage) Result {
	var p CheckPhonePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Rejected(err)
	}

	if err := conn.Send(g.probe.CheckPhone(ctx, p.Phone)); err != nil {
		return TransientErr(err)
	}
	return OK()
}

func (g *Gateway) publishLifecycle(ctx context.Context, conn *Conn, event string, reason string) {
	observability.IncWSLifecycle(event)
	_ = observability.PublishEvent(ctx, "ws_events.relay", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     conn.ID,
				"duration_ms": time.Since(conn.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   conn.UserID,
				"device_id": conn.DeviceID,
				"ip":        conn.IP,
			},
		},
	}, observability.BuildHeaders(conn.RequestID, conn.TraceID))
}
