package protocol

import (
	"context"
	"fmt"

	"github.com/protrack-edu/protrack-server/internal/logger"
	"github.com/protrack-edu/protrack-server/internal/session"
)

// Conn is what the dispatcher needs from the transport: the ability to push
// one text message back to the client. The connection value itself is the
// key into the session registry.
type Conn interface {
	Send(text string) error
}

// Dispatcher parses inbound messages, resolves them against the action
// registry, enforces the session's authorization, and sends exactly one
// response per message. A failure at any stage is converted into an error
// envelope; nothing escapes to the transport.
type Dispatcher struct {
	registry *Registry
	sessions *session.Registry
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher over the given registries
func NewDispatcher(registry *Registry, sessions *session.Registry, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		sessions: sessions,
		log:      log,
	}
}

// Dispatch processes one inbound message and sends its response. Messages
// for one connection must be fed in arrival order; the transport calls this
// synchronously from its read loop, so a message runs to completion before
// the next one on the same connection starts.
func (d *Dispatcher) Dispatch(ctx context.Context, conn Conn, raw []byte) {
	req, err := ParseRequest(raw)
	if err != nil {
		d.log.Warn("Malformed message: %v", err)
		d.respond(conn, ErrorResponse(MsgInvalidJSON))
		return
	}

	action := req.Action()
	if action == "" {
		d.respond(conn, ErrorResponse(MsgMissingAction))
		return
	}

	act, ok := d.registry.Resolve(action)
	if !ok {
		d.respond(conn, ErrorResponse(fmt.Sprintf(MsgUnknownActionF, action)))
		return
	}

	// A connection without a session means the transport never registered
	// it: a protocol violation, answered rather than crashed on.
	sess, ok := d.sessions.Lookup(conn)
	if !ok {
		d.log.Warn("Message for action %q on a connection with no session", action)
		d.respond(conn, ErrorResponse(MsgNoSession))
		return
	}

	if act.requiresAuth() && !session.Authorized(sess, act.Roles) {
		d.respond(conn, ErrorResponse(act.deniedMessage()))
		return
	}

	for _, f := range act.Required {
		if !req.Has(f.Name) {
			d.respond(conn, ErrorResponse(f.Message))
			return
		}
	}

	d.respond(conn, d.invoke(ctx, act, sess, req))
}

// invoke runs the handler, converting a panic or a nil envelope into a
// generic internal error. Raw failure detail is logged server-side only.
func (d *Dispatcher) invoke(ctx context.Context, act *Action, sess *session.Session, req *Request) (env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Handler for %q panicked: %v", act.Name, r)
			env = ErrorResponse(MsgInternalError)
		}
	}()

	env = act.Handle(ctx, sess, req)
	if env == nil {
		d.log.Error("Handler for %q returned no envelope", act.Name)
		env = ErrorResponse(MsgInternalError)
	}
	return env
}

// respond encodes and sends one envelope. A send failure leaves the
// connection silent; the transport will notice the broken connection itself.
func (d *Dispatcher) respond(conn Conn, env *Envelope) {
	text, err := Encode(env)
	if err != nil {
		d.log.Error("Failed to encode response: %v", err)
		text, _ = Encode(ErrorResponse(MsgInternalError))
	}

	if err := conn.Send(text); err != nil {
		d.log.Warn("Failed to send response: %v", err)
	}
}
