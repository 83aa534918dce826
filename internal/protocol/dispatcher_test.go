package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protrack-edu/protrack-server/internal/logger"
	"github.com/protrack-edu/protrack-server/internal/session"
)

// fakeConn records the responses sent to it
type fakeConn struct {
	sent    []string
	sendErr error
}

func (c *fakeConn) Send(text string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeConn) lastEnvelope(t *testing.T) Envelope {
	t.Helper()
	require.NotEmpty(t, c.sent)
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(c.sent[len(c.sent)-1]), &env))
	return env
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.LevelNone, "", "")
	require.NoError(t, err)
	return log
}

// testSetup builds a dispatcher with a registry recording handler calls
type testSetup struct {
	dispatcher *Dispatcher
	sessions   *session.Registry
	calls      []string
}

func newTestSetup(t *testing.T) *testSetup {
	ts := &testSetup{sessions: session.NewRegistry()}

	registry := NewRegistry()
	registry.Register(Action{
		Name: "ping",
		Handle: func(ctx context.Context, sess *session.Session, req *Request) *Envelope {
			ts.calls = append(ts.calls, "ping")
			return SuccessResponse("pong")
		},
	})
	registry.Register(Action{
		Name:   "solo_asesor",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para crear proyectos.",
		Handle: func(ctx context.Context, sess *session.Session, req *Request) *Envelope {
			ts.calls = append(ts.calls, "solo_asesor")
			return SuccessResponse("ok")
		},
	})
	registry.Register(Action{
		Name:          "autenticado",
		Authenticated: true,
		Handle: func(ctx context.Context, sess *session.Session, req *Request) *Envelope {
			ts.calls = append(ts.calls, "autenticado")
			return SuccessResponse("ok")
		},
	})
	registry.Register(Action{
		Name:     "con_campos",
		Required: []Field{{Name: "id_proyecto", Message: "Falta el ID del proyecto."}},
		Handle: func(ctx context.Context, sess *session.Session, req *Request) *Envelope {
			ts.calls = append(ts.calls, "con_campos")
			return SuccessResponse("ok")
		},
	})
	registry.Register(Action{
		Name: "explota",
		Handle: func(ctx context.Context, sess *session.Session, req *Request) *Envelope {
			panic("handler bug")
		},
	})
	registry.Register(Action{
		Name: "sin_respuesta",
		Handle: func(ctx context.Context, sess *session.Session, req *Request) *Envelope {
			return nil
		},
	})

	ts.dispatcher = NewDispatcher(registry, ts.sessions, testLogger(t))
	return ts
}

func TestDispatchMalformedJSON(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{bad json`))

	env := conn.lastEnvelope(t)
	assert.Equal(t, EstadoError, env.Estado)
	assert.Equal(t, MsgInvalidJSON, env.Datos)

	// The connection stays usable for the next message
	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"ping"}`))
	assert.Equal(t, EstadoExito, conn.lastEnvelope(t).Estado)
	assert.Len(t, conn.sent, 2)
}

func TestDispatchMissingAction(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"datos":{}}`))

	env := conn.lastEnvelope(t)
	assert.Equal(t, EstadoError, env.Estado)
	assert.Equal(t, MsgMissingAction, env.Datos)
}

func TestDispatchUnknownAction(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"foo"}`))

	env := conn.lastEnvelope(t)
	assert.Equal(t, EstadoError, env.Estado)
	assert.Equal(t, "Acción desconocida: foo", env.Datos)
}

func TestDispatchActionCaseInsensitive(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"PiNg"}`))

	assert.Equal(t, EstadoExito, conn.lastEnvelope(t).Estado)
	assert.Equal(t, []string{"ping"}, ts.calls)
}

func TestDispatchNoSessionRegistered(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	// Deliberately not registered in the session registry

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"ping"}`))

	env := conn.lastEnvelope(t)
	assert.Equal(t, EstadoError, env.Estado)
	assert.Equal(t, MsgNoSession, env.Datos)
	assert.Empty(t, ts.calls)
}

func TestDispatchUnauthenticatedDenied(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"solo_asesor"}`))

	env := conn.lastEnvelope(t)
	assert.Equal(t, EstadoError, env.Estado)
	assert.Equal(t, "No autorizado para crear proyectos.", env.Datos)
	// The handler never ran, so no store statement could have been issued
	assert.Empty(t, ts.calls)
}

func TestDispatchWrongRoleDenied(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	sess := ts.sessions.Register(conn)
	sess.Authenticate(1, "alumno1", session.RoleAlumno)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"solo_asesor"}`))

	env := conn.lastEnvelope(t)
	assert.Equal(t, EstadoError, env.Estado)
	// The denial names the operation, never the required role
	assert.Equal(t, "No autorizado para crear proyectos.", env.Datos)
	assert.NotContains(t, fmt.Sprint(env.Datos), session.RoleAsesor)
	assert.Empty(t, ts.calls)
}

func TestDispatchAuthorizedRole(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	sess := ts.sessions.Register(conn)
	sess.Authenticate(2, "asesor1", "asesor") // stored role casing varies

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"solo_asesor"}`))

	assert.Equal(t, EstadoExito, conn.lastEnvelope(t).Estado)
	assert.Equal(t, []string{"solo_asesor"}, ts.calls)
}

func TestDispatchAuthenticatedOnlyAction(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"autenticado"}`))
	assert.Equal(t, EstadoError, conn.lastEnvelope(t).Estado)

	sess, _ := ts.sessions.Lookup(conn)
	sess.Authenticate(3, "u", session.RoleAlumno)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"autenticado"}`))
	assert.Equal(t, EstadoExito, conn.lastEnvelope(t).Estado)
}

func TestDispatchRequiredFieldMissing(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"con_campos"}`))

	env := conn.lastEnvelope(t)
	assert.Equal(t, EstadoError, env.Estado)
	assert.Equal(t, "Falta el ID del proyecto.", env.Datos)
	assert.Empty(t, ts.calls)

	// Present either nested or top-level
	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"con_campos","id_proyecto":4}`))
	assert.Equal(t, EstadoExito, conn.lastEnvelope(t).Estado)
}

func TestDispatchHandlerPanicRecovered(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	assert.NotPanics(t, func() {
		ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"explota"}`))
	})

	env := conn.lastEnvelope(t)
	assert.Equal(t, EstadoError, env.Estado)
	assert.Equal(t, MsgInternalError, env.Datos)

	// The connection survives for the next message
	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"ping"}`))
	assert.Equal(t, EstadoExito, conn.lastEnvelope(t).Estado)
}

func TestDispatchNilEnvelopeBecomesInternalError(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"sin_respuesta"}`))

	env := conn.lastEnvelope(t)
	assert.Equal(t, EstadoError, env.Estado)
	assert.Equal(t, MsgInternalError, env.Datos)
}

func TestDispatchExactlyOneResponsePerMessage(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{}
	ts.sessions.Register(conn)

	messages := [][]byte{
		[]byte(`{"accion":"ping"}`),
		[]byte(`{bad`),
		[]byte(`{"accion":"nope"}`),
		[]byte(`{"accion":"explota"}`),
	}
	for _, m := range messages {
		ts.dispatcher.Dispatch(context.Background(), conn, m)
	}

	assert.Len(t, conn.sent, len(messages))
}

func TestDispatchSendFailureStaysSilent(t *testing.T) {
	ts := newTestSetup(t)
	conn := &fakeConn{sendErr: errors.New("broken pipe")}
	ts.sessions.Register(conn)

	assert.NotPanics(t, func() {
		ts.dispatcher.Dispatch(context.Background(), conn, []byte(`{"accion":"ping"}`))
	})
	assert.Empty(t, conn.sent)
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(Action{Name: "a", Handle: func(context.Context, *session.Session, *Request) *Envelope { return nil }})

	assert.Panics(t, func() {
		r.Register(Action{Name: "A", Handle: func(context.Context, *session.Session, *Request) *Envelope { return nil }})
	})
	assert.Panics(t, func() {
		r.Register(Action{Name: ""})
	})
}
