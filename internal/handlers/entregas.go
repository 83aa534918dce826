package handlers

import (
	"context"

	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/session"
)

// ListarEntregas lists the deliveries of a project
func (h *Handlers) ListarEntregas(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	rows, err := h.store.Query(ctx,
		`SELECT id_entrega, id_proyecto, titulo,
			to_char(fecha_entrega, 'YYYY-MM-DD') AS fecha_entrega,
			estatus
		 FROM Entregas
		 WHERE id_proyecto = $1
		 ORDER BY fecha_entrega, id_entrega`,
		req.Value("id_proyecto"))
	if err != nil {
		return h.internalError("listar_entregas", err, "Error interno al listar entregas.")
	}
	return protocol.DataResponse(rows)
}

// InsertarEntrega records a delivery for a project. Estatus defaults to
// "pendiente" when not sent.
func (h *Handlers) InsertarEntrega(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	estatus := req.Value("estatus")
	if estatus == "" {
		estatus = "pendiente"
	}

	n, err := h.store.Exec(ctx,
		`INSERT INTO Entregas (id_proyecto, titulo, fecha_entrega, estatus)
		 VALUES ($1, $2, to_date($3, 'YYYY-MM-DD'), $4)`,
		req.Value("id_proyecto"), req.Value("titulo"), req.Value("fecha_entrega"), estatus)
	if err != nil {
		return h.internalError("insertar_entrega", err, "Error interno al registrar la entrega.")
	}
	if n == 0 {
		return protocol.ErrorResponse("Error al registrar la entrega.")
	}

	return protocol.SuccessResponse("Entrega registrada correctamente.")
}

// ActualizarEntrega updates the status of an existing delivery
func (h *Handlers) ActualizarEntrega(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	n, err := h.store.Exec(ctx,
		"UPDATE Entregas SET estatus = $1 WHERE id_entrega = $2",
		req.Value("estatus"), req.Value("id_entrega"))
	if err != nil {
		return h.internalError("actualizar_entrega", err, "Error interno al actualizar la entrega.")
	}
	if n == 0 {
		return protocol.ErrorResponse("No se encontró la entrega.")
	}

	return protocol.SuccessResponse("Entrega actualizada correctamente.")
}
