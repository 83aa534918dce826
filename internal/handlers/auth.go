package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/protrack-edu/protrack-server/internal/audit"
	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/session"
	"github.com/protrack-edu/protrack-server/internal/store"
)

// loginData is the datos payload of a successful login response
type loginData struct {
	IDUsuario     int    `json:"id_usuario"`
	NombreUsuario string `json:"nombre_usuario"`
	Rol           string `json:"rol"`
}

// Login authenticates the connection's session against the UsuariosSistema
// table and records the login in the audit trail. The session is mutated
// only here, and only on success.
func (h *Handlers) Login(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	usuario := req.Value("usuario")
	contrasena := req.Value("contrasena")

	if usuario == "" || contrasena == "" {
		return protocol.Response(protocol.EstadoLoginFail, "Usuario o contraseña faltante")
	}

	rows, err := h.store.Query(ctx,
		`SELECT id_usuario, nombre_usuario, rol
		 FROM UsuariosSistema
		 WHERE nombre_usuario = $1 AND contrasena = $2`,
		usuario, contrasena)
	if err != nil {
		return h.internalError("login", err, "Error interno al iniciar sesión.")
	}

	if len(rows) == 0 {
		return protocol.Response(protocol.EstadoLoginFail, "Credenciales inválidas")
	}

	row := rows[0]
	userID, err := strconv.Atoi(row.Get("id_usuario"))
	if err != nil {
		return h.internalError("login", err, "Error interno al iniciar sesión.")
	}

	sess.Authenticate(userID, row.Get("nombre_usuario"), row.Get("rol"))

	// An audit failure is logged but does not block the login response
	_ = h.audit.Record(ctx, userID, audit.KindLogin, "Inicio de sesión de "+sess.Username, 0)

	return protocol.Response(protocol.EstadoLoginOK, loginData{
		IDUsuario:     userID,
		NombreUsuario: sess.Username,
		Rol:           sess.Role,
	})
}

// CambiarContrasena verifies the caller's current password and updates it,
// both inside one transaction scope.
func (h *Handlers) CambiarContrasena(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	actual := req.Value("contrasena_actual")
	nueva := req.Value("contrasena_nueva")

	err := h.store.WithTx(ctx, func(tx store.Tx) error {
		stored, err := tx.QueryValue(ctx,
			"SELECT contrasena FROM UsuariosSistema WHERE id_usuario = $1", sess.UserID)
		if err != nil {
			return err
		}
		if stored != actual {
			return errWrongPassword
		}

		n, err := tx.Exec(ctx,
			"UPDATE UsuariosSistema SET contrasena = $1 WHERE id_usuario = $2",
			nueva, sess.UserID)
		if err != nil {
			return err
		}
		if n == 0 {
			return errNoRowsAffected
		}

		return h.audit.RecordTx(ctx, tx, sess.UserID, audit.KindUpdate,
			"Cambio de contraseña de "+sess.Username, 0)
	})

	if errors.Is(err, errWrongPassword) {
		return protocol.ErrorResponse("La contraseña actual es incorrecta.")
	}
	if err != nil {
		return h.internalError("cambiar_contrasena", err, "Error interno al cambiar la contraseña.")
	}

	return protocol.SuccessResponse("Contraseña actualizada correctamente.")
}

// AuditoriaLogout records a logout in the audit trail. The write is
// fire-and-forget: a failure is logged but the client still gets a success
// response, since the connection is about to close either way.
func (h *Handlers) AuditoriaLogout(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	_ = h.audit.Record(ctx, sess.UserID, audit.KindLogout, "Cierre de sesión de "+sess.Username, 0)
	return protocol.SuccessResponse("Sesión cerrada.")
}
