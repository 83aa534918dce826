package handlers

import (
	"context"
	"errors"

	"github.com/protrack-edu/protrack-server/internal/audit"
	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/session"
	"github.com/protrack-edu/protrack-server/internal/store"
)

// GetProjects returns the id/nombre listing of every project. Kept for the
// legacy client screen that still requests it.
func (h *Handlers) GetProjects(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	rows, err := h.store.Query(ctx, "SELECT id_proyecto AS id, nombre FROM Proyectos ORDER BY id_proyecto")
	if err != nil {
		return h.internalError("getprojects", err, "Error interno al listar proyectos.")
	}
	return protocol.Response(protocol.EstadoGetProjects, rows)
}

// CrearProyecto inserts a project owned by the calling advisor. The advisor
// profile lookup and the insert share one transaction; the audit entry rolls
// back with them.
func (h *Handlers) CrearProyecto(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	err := h.store.WithTx(ctx, func(tx store.Tx) error {
		idAsesor, err := asesorID(ctx, tx, sess.UserID)
		if err != nil {
			return err
		}

		n, err := tx.Exec(ctx,
			`INSERT INTO Proyectos (nombre, descripcion, fecha_inicio, fecha_estimada_entrega, estatus, id_asesor)
			 VALUES ($1, $2, to_date($3, 'YYYY-MM-DD'), to_date($4, 'YYYY-MM-DD'), $5, $6)`,
			req.Value("nombre"), req.Value("descripcion"),
			req.Value("fecha_inicio"), req.Value("fecha_estimada_entrega"),
			req.Value("estatus"), idAsesor)
		if err != nil {
			return err
		}
		if n == 0 {
			return errNoRowsAffected
		}

		return h.audit.RecordTx(ctx, tx, sess.UserID, audit.KindCreate,
			"Creación del proyecto "+req.Value("nombre"), 0)
	})

	if errors.Is(err, errNoAsesor) {
		return protocol.ErrorResponse(msgNoAsesor)
	}
	if errors.Is(err, errNoRowsAffected) {
		return protocol.ErrorResponse("Error al crear el proyecto.")
	}
	if err != nil {
		return h.internalError("crear_proyecto", err, "Error interno al crear el proyecto.")
	}

	return protocol.SuccessResponse("Proyecto creado correctamente.")
}

// ListarProyectosAlumno lists the projects the calling student is assigned to
func (h *Handlers) ListarProyectosAlumno(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	rows, err := h.store.Query(ctx,
		`SELECT p.id_proyecto, p.nombre, p.descripcion,
			to_char(p.fecha_inicio, 'YYYY-MM-DD') AS fecha_inicio,
			to_char(p.fecha_estimada_entrega, 'YYYY-MM-DD') AS fecha_estimada_entrega,
			p.estatus
		 FROM Proyectos p
		 JOIN ProyectosAlumnos pa ON pa.id_proyecto = p.id_proyecto
		 JOIN Alumnos a ON a.id_alumno = pa.id_alumno
		 WHERE a.id_usuario = $1
		 ORDER BY p.id_proyecto`,
		sess.UserID)
	if err != nil {
		return h.internalError("listar_proyectos_alumno", err, "Error interno al listar proyectos.")
	}
	return protocol.DataResponse(rows)
}

// ListarProyectosAsesor lists the projects owned by the calling advisor. The
// advisor profile id is resolved first; a user without an advisor row gets a
// specific error rather than an empty list.
func (h *Handlers) ListarProyectosAsesor(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	idAsesor, err := asesorID(ctx, h.store, sess.UserID)
	if errors.Is(err, errNoAsesor) {
		return protocol.ErrorResponse(msgNoAsesor)
	}
	if err != nil {
		return h.internalError("listar_proyectos_asesor", err, "Error interno al listar proyectos.")
	}

	rows, err := h.store.Query(ctx,
		`SELECT id_proyecto, nombre, descripcion,
			to_char(fecha_inicio, 'YYYY-MM-DD') AS fecha_inicio,
			to_char(fecha_estimada_entrega, 'YYYY-MM-DD') AS fecha_estimada_entrega,
			estatus
		 FROM Proyectos
		 WHERE id_asesor = $1
		 ORDER BY id_proyecto`,
		idAsesor)
	if err != nil {
		return h.internalError("listar_proyectos_asesor", err, "Error interno al listar proyectos.")
	}
	return protocol.DataResponse(rows)
}

// ProyectoAsesor returns the detail of one project, validating that the
// calling advisor owns it.
func (h *Handlers) ProyectoAsesor(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	idAsesor, err := asesorID(ctx, h.store, sess.UserID)
	if errors.Is(err, errNoAsesor) {
		return protocol.ErrorResponse(msgNoAsesor)
	}
	if err != nil {
		return h.internalError("proyecto_asesor", err, "Error interno al consultar el proyecto.")
	}

	rows, err := h.store.Query(ctx,
		`SELECT id_proyecto, nombre, descripcion,
			to_char(fecha_inicio, 'YYYY-MM-DD') AS fecha_inicio,
			to_char(fecha_estimada_entrega, 'YYYY-MM-DD') AS fecha_estimada_entrega,
			estatus
		 FROM Proyectos
		 WHERE id_proyecto = $1 AND id_asesor = $2`,
		req.Value("id_proyecto"), idAsesor)
	if err != nil {
		return h.internalError("proyecto_asesor", err, "Error interno al consultar el proyecto.")
	}
	if len(rows) == 0 {
		return protocol.ErrorResponse("Proyecto no encontrado.")
	}
	return protocol.DataResponse(rows[0])
}

// AsignarProyectoEstudiante links a student to one of the calling advisor's
// projects. Ownership check, insert and audit entry are one atomic scope; a
// duplicate assignment is reported specifically.
func (h *Handlers) AsignarProyectoEstudiante(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	idProyecto := req.Value("id_proyecto")
	idAlumno := req.Value("id_alumno")

	err := h.store.WithTx(ctx, func(tx store.Tx) error {
		idAsesor, err := asesorID(ctx, tx, sess.UserID)
		if err != nil {
			return err
		}

		_, err = tx.QueryValue(ctx,
			"SELECT id_proyecto FROM Proyectos WHERE id_proyecto = $1 AND id_asesor = $2",
			idProyecto, idAsesor)
		if errors.Is(err, store.ErrNoRows) {
			return errProjectNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO ProyectosAlumnos (id_proyecto, id_alumno) VALUES ($1, $2)",
			idProyecto, idAlumno); err != nil {
			return err
		}

		return h.audit.RecordTx(ctx, tx, sess.UserID, audit.KindCreate,
			"Asignación del alumno "+idAlumno+" al proyecto "+idProyecto, 0)
	})

	if errors.Is(err, errNoAsesor) {
		return protocol.ErrorResponse(msgNoAsesor)
	}
	if errors.Is(err, errProjectNotFound) {
		return protocol.ErrorResponse("Proyecto no encontrado.")
	}
	if store.IsUniqueViolation(err) {
		return protocol.ErrorResponse("El alumno ya está asignado a ese proyecto.")
	}
	if err != nil {
		return h.internalError("asignar_proyecto_estudiante", err, "Error interno al asignar el proyecto.")
	}

	return protocol.SuccessResponse("Alumno asignado al proyecto correctamente.")
}
