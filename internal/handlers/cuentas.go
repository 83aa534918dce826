package handlers

import (
	"context"
	"strconv"

	"github.com/protrack-edu/protrack-server/internal/audit"
	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/session"
	"github.com/protrack-edu/protrack-server/internal/store"
)

// ListarEstudiantes lists every student with their account name
func (h *Handlers) ListarEstudiantes(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	rows, err := h.store.Query(ctx,
		`SELECT a.id_alumno, u.nombre_usuario, a.nombre, a.correo
		 FROM Alumnos a
		 JOIN UsuariosSistema u ON u.id_usuario = a.id_usuario
		 ORDER BY a.nombre`)
	if err != nil {
		return h.internalError("listar_estudiantes", err, "Error interno al listar estudiantes.")
	}
	return protocol.DataResponse(rows)
}

// InsertarEstudiante creates a student account: a UsuariosSistema row whose
// generated id feeds the Alumnos profile row, plus the audit entry, all in
// one transaction.
func (h *Handlers) InsertarEstudiante(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	return h.insertarCuenta(ctx, sess, req, cuentaSpec{
		action:  "insertar_estudiante",
		rol:     session.RoleAlumno,
		perfil:  "INSERT INTO Alumnos (id_usuario, nombre, correo) VALUES ($1, $2, $3) RETURNING id_alumno",
		descr:   "Registro del alumno ",
		success: "Estudiante registrado correctamente.",
		fail:    "Error interno al registrar el estudiante.",
	})
}

// InsertarAsesor creates an advisor account the same way as a student one,
// with the profile row going to Asesores.
func (h *Handlers) InsertarAsesor(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	return h.insertarCuenta(ctx, sess, req, cuentaSpec{
		action:  "insertar_asesor",
		rol:     session.RoleAsesor,
		perfil:  "INSERT INTO Asesores (id_usuario, nombre, correo) VALUES ($1, $2, $3) RETURNING id_asesor",
		descr:   "Registro del asesor ",
		success: "Asesor registrado correctamente.",
		fail:    "Error interno al registrar el asesor.",
	})
}

// cuentaSpec parameterizes account creation across the two profile tables
type cuentaSpec struct {
	action  string
	rol     string
	perfil  string
	descr   string
	success string
	fail    string
}

func (h *Handlers) insertarCuenta(ctx context.Context, sess *session.Session, req *protocol.Request, spec cuentaSpec) *protocol.Envelope {
	usuario := req.Value("usuario")

	err := h.store.WithTx(ctx, func(tx store.Tx) error {
		idUsuario, err := tx.QueryValue(ctx,
			`INSERT INTO UsuariosSistema (nombre_usuario, contrasena, rol)
			 VALUES ($1, $2, $3) RETURNING id_usuario`,
			usuario, req.Value("contrasena"), spec.rol)
		if err != nil {
			return err
		}

		idPerfil, err := tx.QueryValue(ctx, spec.perfil,
			idUsuario, req.Value("nombre"), req.Value("correo"))
		if err != nil {
			return err
		}

		entityID, _ := strconv.Atoi(idPerfil)
		return h.audit.RecordTx(ctx, tx, sess.UserID, audit.KindCreate,
			spec.descr+usuario, entityID)
	})

	if store.IsUniqueViolation(err) {
		return protocol.ErrorResponse("El nombre de usuario ya existe.")
	}
	if err != nil {
		return h.internalError(spec.action, err, spec.fail)
	}

	return protocol.SuccessResponse(spec.success)
}

// ActualizarEstudiante updates a student's profile data
func (h *Handlers) ActualizarEstudiante(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	n, err := h.store.Exec(ctx,
		"UPDATE Alumnos SET nombre = $1, correo = $2 WHERE id_alumno = $3",
		req.Value("nombre"), req.Value("correo"), req.Value("id_alumno"))
	if err != nil {
		return h.internalError("actualizar_estudiante", err, "Error interno al actualizar el estudiante.")
	}
	if n == 0 {
		return protocol.ErrorResponse("No se encontró el estudiante.")
	}

	return protocol.SuccessResponse("Estudiante actualizado correctamente.")
}
