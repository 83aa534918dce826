package handlers

import (
	"context"

	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/session"
)

// ListarAvances lists the progress records of a project
func (h *Handlers) ListarAvances(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	rows, err := h.store.Query(ctx,
		`SELECT id_avance, id_proyecto, descripcion,
			to_char(fecha, 'YYYY-MM-DD') AS fecha,
			porcentaje
		 FROM Avances
		 WHERE id_proyecto = $1
		 ORDER BY fecha, id_avance`,
		req.Value("id_proyecto"))
	if err != nil {
		return h.internalError("listar_avances", err, "Error interno al listar avances.")
	}
	return protocol.DataResponse(rows)
}

// InsertarAvance records a progress update for a project. Porcentaje is
// optional; an absent value is stored as NULL.
func (h *Handlers) InsertarAvance(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	var porcentaje any
	if req.Has("porcentaje") {
		porcentaje = req.Value("porcentaje")
	}

	n, err := h.store.Exec(ctx,
		`INSERT INTO Avances (id_proyecto, descripcion, fecha, porcentaje)
		 VALUES ($1, $2, to_date($3, 'YYYY-MM-DD'), $4)`,
		req.Value("id_proyecto"), req.Value("descripcion"), req.Value("fecha"), porcentaje)
	if err != nil {
		return h.internalError("insertar_avance", err, "Error interno al registrar el avance.")
	}
	if n == 0 {
		return protocol.ErrorResponse("Error al registrar el avance.")
	}

	return protocol.SuccessResponse("Avance registrado correctamente.")
}

// ActualizarAvance updates the description (and optionally the percentage)
// of an existing progress record.
func (h *Handlers) ActualizarAvance(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	var porcentaje any
	if req.Has("porcentaje") {
		porcentaje = req.Value("porcentaje")
	}

	n, err := h.store.Exec(ctx,
		`UPDATE Avances
		 SET descripcion = $1, porcentaje = COALESCE($2, porcentaje)
		 WHERE id_avance = $3`,
		req.Value("descripcion"), porcentaje, req.Value("id_avance"))
	if err != nil {
		return h.internalError("actualizar_avance", err, "Error interno al actualizar el avance.")
	}
	if n == 0 {
		return protocol.ErrorResponse("No se encontró el avance.")
	}

	return protocol.SuccessResponse("Avance actualizado correctamente.")
}
