package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/session"
)

// AuditoriaAsesor lists the audit trail of the calling advisor's own actions
func (h *Handlers) AuditoriaAsesor(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	rows, err := h.store.Query(ctx,
		`SELECT id_auditoria, accion, descripcion,
			to_char(fecha, 'YYYY-MM-DD HH24:MI:SS') AS fecha
		 FROM Auditoria
		 WHERE id_usuario = $1
		 ORDER BY fecha DESC`,
		sess.UserID)
	if err != nil {
		return h.internalError("auditoria_asesor", err, "Error interno al consultar la auditoría.")
	}
	return protocol.DataResponse(rows)
}

// ReporteEntregasProximas reports the advisor's deliveries due within the
// requested window (default 7 days). The computation lives in the
// reporte_entregas_proximas stored procedure.
func (h *Handlers) ReporteEntregasProximas(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	dias := 7
	if req.Has("dias") {
		n, err := strconv.Atoi(req.Value("dias"))
		if err != nil || n <= 0 {
			return protocol.ErrorResponse("El número de días no es válido.")
		}
		dias = n
	}

	idAsesor, err := asesorID(ctx, h.store, sess.UserID)
	if errors.Is(err, errNoAsesor) {
		return protocol.ErrorResponse(msgNoAsesor)
	}
	if err != nil {
		return h.internalError("reporte_entregas_proximas", err, "Error interno al generar el reporte.")
	}

	rows, err := h.store.CallProcedure(ctx, "reporte_entregas_proximas", idAsesor, dias)
	if err != nil {
		return h.internalError("reporte_entregas_proximas", err, "Error interno al generar el reporte.")
	}
	return protocol.DataResponse(rows)
}

// ReporteProyectosInactivos reports the advisor's projects with no progress
// recorded in the last 30 days.
func (h *Handlers) ReporteProyectosInactivos(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Envelope {
	idAsesor, err := asesorID(ctx, h.store, sess.UserID)
	if errors.Is(err, errNoAsesor) {
		return protocol.ErrorResponse(msgNoAsesor)
	}
	if err != nil {
		return h.internalError("reporte_proyectos_inactivos", err, "Error interno al generar el reporte.")
	}

	rows, err := h.store.Query(ctx,
		`SELECT p.id_proyecto, p.nombre, p.estatus,
			to_char(MAX(av.fecha), 'YYYY-MM-DD') AS ultimo_avance
		 FROM Proyectos p
		 LEFT JOIN Avances av ON av.id_proyecto = p.id_proyecto
		 WHERE p.id_asesor = $1
		 GROUP BY p.id_proyecto, p.nombre, p.estatus
		 HAVING MAX(av.fecha) IS NULL
		     OR MAX(av.fecha) < CURRENT_DATE - INTERVAL '30 days'
		 ORDER BY p.id_proyecto`,
		idAsesor)
	if err != nil {
		return h.internalError("reporte_proyectos_inactivos", err, "Error interno al generar el reporte.")
	}
	return protocol.DataResponse(rows)
}
