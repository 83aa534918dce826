package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protrack-edu/protrack-server/internal/config"
	"github.com/protrack-edu/protrack-server/internal/logger"
	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/session"
)

// newTestServer wires a server over a stub action registry: no database, just
// enough actions to exercise the transport, the session registry and the
// dispatcher together.
func newTestServer(t *testing.T, maxConns int) (*Server, *httptest.Server) {
	t.Helper()

	log, err := logger.New(logger.LevelNone, "", "")
	require.NoError(t, err)

	sessions := session.NewRegistry()

	registry := protocol.NewRegistry()
	registry.Register(protocol.Action{
		Name: "eco",
		Handle: func(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
			return protocol.SuccessResponse(req.Value("n"))
		},
	})
	registry.Register(protocol.Action{
		Name: "entrar",
		Handle: func(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
			sess.Authenticate(1, req.Value("usuario"), session.RoleAlumno)
			return protocol.SuccessResponse("dentro")
		},
	})
	registry.Register(protocol.Action{
		Name:          "quien",
		Authenticated: true,
		Handle: func(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
			return protocol.SuccessResponse(sess.Username)
		},
	})

	cfg := config.Default()
	cfg.MaxConnections = maxConns

	srv := New(cfg, protocol.NewDispatcher(registry, sessions, log), sessions, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return srv, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func sendJSON(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}

func TestResponsesArriveInRequestOrder(t *testing.T) {
	_, ts := newTestServer(t, 0)
	conn := dialWS(t, ts)

	const n = 25
	for i := 0; i < n; i++ {
		sendJSON(t, conn, fmt.Sprintf(`{"accion":"eco","datos":{"n":%d}}`, i))
	}
	for i := 0; i < n; i++ {
		env := readEnvelope(t, conn)
		assert.Equal(t, protocol.EstadoExito, env.Estado)
		assert.Equal(t, fmt.Sprint(i), env.Datos)
	}
}

func TestSessionsAreIsolatedPerConnection(t *testing.T) {
	_, ts := newTestServer(t, 0)
	connA := dialWS(t, ts)
	connB := dialWS(t, ts)

	sendJSON(t, connA, `{"accion":"entrar","datos":{"usuario":"maria"}}`)
	assert.Equal(t, protocol.EstadoExito, readEnvelope(t, connA).Estado)

	sendJSON(t, connA, `{"accion":"quien"}`)
	env := readEnvelope(t, connA)
	assert.Equal(t, protocol.EstadoExito, env.Estado)
	assert.Equal(t, "maria", env.Datos)

	// The login on connA leaks nothing into connB
	sendJSON(t, connB, `{"accion":"quien"}`)
	assert.Equal(t, protocol.EstadoError, readEnvelope(t, connB).Estado)
}

func TestMalformedMessageKeepsConnectionAlive(t *testing.T) {
	_, ts := newTestServer(t, 0)
	conn := dialWS(t, ts)

	sendJSON(t, conn, `{esto no es json`)
	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.EstadoError, env.Estado)
	assert.Equal(t, protocol.MsgInvalidJSON, env.Datos)

	sendJSON(t, conn, `{"accion":"eco","datos":{"n":1}}`)
	assert.Equal(t, protocol.EstadoExito, readEnvelope(t, conn).Estado)
}

func TestDisconnectRemovesClientAndSession(t *testing.T) {
	srv, ts := newTestServer(t, 0)
	conn := dialWS(t, ts)

	require.Eventually(t, func() bool {
		return srv.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return srv.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnectionLimit(t *testing.T) {
	srv, ts := newTestServer(t, 2)
	dialWS(t, ts)
	dialWS(t, ts)

	require.Eventually(t, func() bool {
		return srv.ClientCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestStopClosesClients(t *testing.T) {
	srv, ts := newTestServer(t, 0)
	srv.cfg.Listen.Port = 0 // ephemeral port, the client dials ts instead
	require.NoError(t, srv.Start())

	conn := dialWS(t, ts)

	require.Eventually(t, func() bool {
		return srv.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, srv.ClientCount())
}
