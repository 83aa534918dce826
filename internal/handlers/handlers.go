// Package handlers implements the action catalog of the ProTrack protocol:
// authentication, project management, avances, entregas, students, advisors,
// audit queries and reports. Each handler turns one validated request into
// exactly one response envelope, issuing its store statements under the
// transactional guarantees the operation needs.
package handlers

import (
	"context"
	"errors"

	"github.com/protrack-edu/protrack-server/internal/audit"
	"github.com/protrack-edu/protrack-server/internal/logger"
	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/session"
	"github.com/protrack-edu/protrack-server/internal/store"
)

// Sentinel errors used inside transaction scopes to pick the client-facing
// message after rollback.
var (
	errNoRowsAffected  = errors.New("no rows affected")
	errWrongPassword   = errors.New("current password mismatch")
	errNoAsesor        = errors.New("no advisor linked to user")
	errProjectNotFound = errors.New("project not found or not owned")
)

// Field messages shared across actions
const (
	msgMissingProjectID = "Falta el ID del proyecto."
	msgAllFieldsNeeded  = "Todos los campos son obligatorios."
	msgNoAsesor         = "No se encontró un asesor vinculado al usuario."
)

// Handlers holds the collaborators every action handler needs
type Handlers struct {
	store store.Store
	audit *audit.Recorder
	log   *logger.Logger
}

// New creates the handler set over the given store and audit recorder
func New(s store.Store, a *audit.Recorder, log *logger.Logger) *Handlers {
	return &Handlers{store: s, audit: a, log: log}
}

// Registry assembles the full action catalog with its role policies and
// declarative input schemas.
func (h *Handlers) Registry() *protocol.Registry {
	r := protocol.NewRegistry()

	r.Register(protocol.Action{
		Name:   "login",
		Handle: h.Login,
	})
	r.Register(protocol.Action{
		Name:          "cambiar_contrasena",
		Authenticated: true,
		Denied:        "No autorizado para cambiar la contraseña.",
		Required: []protocol.Field{
			{Name: "contrasena_actual", Message: msgAllFieldsNeeded},
			{Name: "contrasena_nueva", Message: msgAllFieldsNeeded},
		},
		Handle: h.CambiarContrasena,
	})
	r.Register(protocol.Action{
		Name:          "getprojects",
		Authenticated: true,
		Denied:        "No autorizado para consultar proyectos.",
		Handle:        h.GetProjects,
	})
	r.Register(protocol.Action{
		Name:   "crear_proyecto",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para crear proyectos.",
		Required: []protocol.Field{
			{Name: "nombre", Message: msgAllFieldsNeeded},
			{Name: "descripcion", Message: msgAllFieldsNeeded},
			{Name: "fecha_inicio", Message: msgAllFieldsNeeded},
			{Name: "fecha_estimada_entrega", Message: msgAllFieldsNeeded},
			{Name: "estatus", Message: msgAllFieldsNeeded},
		},
		Handle: h.CrearProyecto,
	})
	r.Register(protocol.Action{
		Name:   "listar_proyectos_alumno",
		Roles:  []string{session.RoleAlumno},
		Denied: "No autorizado para ver proyectos de alumno.",
		Handle: h.ListarProyectosAlumno,
	})
	r.Register(protocol.Action{
		Name:   "listar_proyectos_asesor",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para ver proyectos de asesor.",
		Handle: h.ListarProyectosAsesor,
	})
	r.Register(protocol.Action{
		Name:     "proyecto_asesor",
		Roles:    []string{session.RoleAsesor},
		Denied:   "No autorizado para ver proyectos de asesor.",
		Required: []protocol.Field{{Name: "id_proyecto", Message: msgMissingProjectID}},
		Handle:   h.ProyectoAsesor,
	})
	r.Register(protocol.Action{
		Name:     "listar_avances",
		Roles:    []string{session.RoleAsesor},
		Denied:   "No autorizado para consultar avances.",
		Required: []protocol.Field{{Name: "id_proyecto", Message: msgMissingProjectID}},
		Handle:   h.ListarAvances,
	})
	r.Register(protocol.Action{
		Name:   "insertar_avance",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para registrar avances.",
		Required: []protocol.Field{
			{Name: "id_proyecto", Message: msgMissingProjectID},
			{Name: "descripcion", Message: msgAllFieldsNeeded},
			{Name: "fecha", Message: msgAllFieldsNeeded},
		},
		Handle: h.InsertarAvance,
	})
	r.Register(protocol.Action{
		Name:   "actualizar_avance",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para actualizar avances.",
		Required: []protocol.Field{
			{Name: "id_avance", Message: "Falta el ID del avance."},
			{Name: "descripcion", Message: msgAllFieldsNeeded},
		},
		Handle: h.ActualizarAvance,
	})
	r.Register(protocol.Action{
		Name:     "listar_entregas",
		Roles:    []string{session.RoleAsesor},
		Denied:   "No autorizado para consultar entregas.",
		Required: []protocol.Field{{Name: "id_proyecto", Message: msgMissingProjectID}},
		Handle:   h.ListarEntregas,
	})
	r.Register(protocol.Action{
		Name:   "insertar_entrega",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para registrar entregas.",
		Required: []protocol.Field{
			{Name: "id_proyecto", Message: msgMissingProjectID},
			{Name: "titulo", Message: msgAllFieldsNeeded},
			{Name: "fecha_entrega", Message: msgAllFieldsNeeded},
		},
		Handle: h.InsertarEntrega,
	})
	r.Register(protocol.Action{
		Name:   "actualizar_entrega",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para actualizar entregas.",
		Required: []protocol.Field{
			{Name: "id_entrega", Message: "Falta el ID de la entrega."},
			{Name: "estatus", Message: msgAllFieldsNeeded},
		},
		Handle: h.ActualizarEntrega,
	})
	r.Register(protocol.Action{
		Name:   "listar_estudiantes",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para consultar estudiantes.",
		Handle: h.ListarEstudiantes,
	})
	r.Register(protocol.Action{
		Name:   "insertar_estudiante",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para registrar estudiantes.",
		Required: []protocol.Field{
			{Name: "usuario", Message: msgAllFieldsNeeded},
			{Name: "contrasena", Message: msgAllFieldsNeeded},
			{Name: "nombre", Message: msgAllFieldsNeeded},
			{Name: "correo", Message: msgAllFieldsNeeded},
		},
		Handle: h.InsertarEstudiante,
	})
	r.Register(protocol.Action{
		Name:   "actualizar_estudiante",
		Roles:  []string{session.RoleAdmin},
		Denied: "No autorizado para actualizar estudiantes.",
		Required: []protocol.Field{
			{Name: "id_alumno", Message: "Falta el ID del alumno."},
			{Name: "nombre", Message: msgAllFieldsNeeded},
			{Name: "correo", Message: msgAllFieldsNeeded},
		},
		Handle: h.ActualizarEstudiante,
	})
	r.Register(protocol.Action{
		Name:   "insertar_asesor",
		Roles:  []string{session.RoleAdmin},
		Denied: "No autorizado para registrar asesores.",
		Required: []protocol.Field{
			{Name: "usuario", Message: msgAllFieldsNeeded},
			{Name: "contrasena", Message: msgAllFieldsNeeded},
			{Name: "nombre", Message: msgAllFieldsNeeded},
			{Name: "correo", Message: msgAllFieldsNeeded},
		},
		Handle: h.InsertarAsesor,
	})
	r.Register(protocol.Action{
		Name:   "asignar_proyecto_estudiante",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para asignar proyectos.",
		Required: []protocol.Field{
			{Name: "id_proyecto", Message: msgMissingProjectID},
			{Name: "id_alumno", Message: "Falta el ID del alumno."},
		},
		Handle: h.AsignarProyectoEstudiante,
	})
	r.Register(protocol.Action{
		Name:          "auditoria_logout",
		Authenticated: true,
		Denied:        "No autorizado.",
		Handle:        h.AuditoriaLogout,
	})
	r.Register(protocol.Action{
		Name:   "auditoria_asesor",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para consultar la auditoría.",
		Handle: h.AuditoriaAsesor,
	})
	r.Register(protocol.Action{
		Name:   "reporte_entregas_proximas",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para consultar reportes.",
		Handle: h.ReporteEntregasProximas,
	})
	r.Register(protocol.Action{
		Name:   "reporte_proyectos_inactivos",
		Roles:  []string{session.RoleAsesor},
		Denied: "No autorizado para consultar reportes.",
		Handle: h.ReporteProyectosInactivos,
	})

	return r
}

// valueQuerier is satisfied by both store.Store and store.Tx
type valueQuerier interface {
	QueryValue(ctx context.Context, query string, args ...any) (string, error)
}

// asesorID resolves the advisor profile id for a user account. Returns
// errNoAsesor when the user has no advisor row.
func asesorID(ctx context.Context, q valueQuerier, userID int) (string, error) {
	id, err := q.QueryValue(ctx, "SELECT id_asesor FROM Asesores WHERE id_usuario = $1", userID)
	if errors.Is(err, store.ErrNoRows) {
		return "", errNoAsesor
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// internalError logs the failure with full context and returns the generic
// per-action message. Raw store errors never reach the client.
func (h *Handlers) internalError(action string, err error, message string) *protocol.Envelope {
	h.log.Error("Error in %s: %v", action, err)
	return protocol.ErrorResponse(message)
}
