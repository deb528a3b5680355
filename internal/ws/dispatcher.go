package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"relay-service/internal/observability"
	"relay-service/internal/telemetry"
)

// ResultKind classifies the outcome of one dispatched event, mirroring the
// failure taxonomy: rejected input, persistence failure, transient delivery
// failure, or an unknown event kind. Handlers detect failures; the
// dispatcher decides what to do about them.
type ResultKind string

const (
	ResultOK          ResultKind = "ok"
	ResultRejected    ResultKind = "rejected"
	ResultPersistence ResultKind = "persistence_error"
	ResultTransient   ResultKind = "transient_error"
	ResultUnknown     ResultKind = "unknown_kind"
)

// Result is a handler's explicit outcome.
type Result struct {
	Kind ResultKind
	Err  error
}

func OK() Result                      { return Result{Kind: ResultOK} }
func Rejected(err error) Result       { return Result{Kind: ResultRejected, Err: err} }
func PersistenceErr(err error) Result { return Result{Kind: ResultPersistence, Err: err} }
func TransientErr(err error) Result   { return Result{Kind: ResultTransient, Err: err} }

// HandlerFunc processes one inbound event on behalf of a connection.
type HandlerFunc func(ctx context.Context, conn *Conn, payload json.RawMessage) Result

// Dispatcher routes inbound frames through an explicit table keyed by event
// kind and supervises the results: logging, metrics, and audit emission live
// here, not in the handlers. No result ever terminates the process or the
// read loop.
type Dispatcher struct {
	handlers map[InboundKind]HandlerFunc
	audit    *telemetry.AuditEmitter
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher(audit *telemetry.AuditEmitter) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[InboundKind]HandlerFunc),
		audit:    audit,
	}
}

// Handle registers the handler for one event kind.
func (d *Dispatcher) Handle(kind InboundKind, fn HandlerFunc) {
	d.handlers[kind] = fn
}

// Dispatch decodes the frame, runs the matching handler, and supervises the
// outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *Conn, frame []byte) Result {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return d.supervise(ctx, conn, "malformed", Rejected(fmt.Errorf("decode frame: %w", err)))
	}

	fn, ok := d.handlers[in.Type]
	if !ok {
		return d.supervise(ctx, conn, in.Type, Result{Kind: ResultUnknown, Err: fmt.Errorf("unknown event kind %q", in.Type)})
	}

	return d.supervise(ctx, conn, in.Type, fn(ctx, conn, in.Payload))
}

func (d *Dispatcher) supervise(ctx context.Context, conn *Conn, kind InboundKind, result Result) Result {
	observability.IncWSEvent(string(kind), string(result.Kind))
	if result.Kind == ResultOK {
		return result
	}

	log.Printf("ws event %s failed conn=%s user=%d: %s: %v", kind, conn.ID, conn.UserID, result.Kind, result.Err)

	var userID *string
	if !conn.Anonymous() {
		id := strconv.Itoa(conn.UserID)
		userID = &id
	}
	d.audit.Emit(ctx, "WARN", fmt.Sprintf("ws %s: %s: %v", kind, result.Kind, result.Err), conn.RequestID, userID)
	return result
}
