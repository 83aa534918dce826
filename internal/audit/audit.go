// Package audit appends entries to the Auditoria table for security-relevant
// actions: logins, logouts, and creation or modification of records.
package audit

import (
	"context"

	"github.com/protrack-edu/protrack-server/internal/logger"
	"github.com/protrack-edu/protrack-server/internal/store"
)

// Action kinds recorded in the audit trail
const (
	KindLogin  = "LOGIN"
	KindLogout = "LOGOUT"
	KindCreate = "CREACION"
	KindUpdate = "MODIFICACION"
)

const insertSQL = `INSERT INTO Auditoria (id_usuario, accion, descripcion, id_entidad, fecha)
	VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)`

// Recorder writes audit entries. Record commits independently; RecordTx
// joins the caller's transaction and is rolled back with it.
type Recorder struct {
	store store.Store
	log   *logger.Logger
}

// NewRecorder creates an audit recorder over the given store
func NewRecorder(s store.Store, log *logger.Logger) *Recorder {
	return &Recorder{store: s, log: log}
}

// Record appends a standalone audit entry. entityID 0 means the entry is
// not tied to a specific record and is stored as NULL.
func (r *Recorder) Record(ctx context.Context, actorID int, kind, description string, entityID int) error {
	_, err := r.store.Exec(ctx, insertSQL, actorID, kind, description, nullableID(entityID))
	if err != nil {
		r.log.Error("Failed to write audit entry (%s, actor %d): %v", kind, actorID, err)
		return err
	}
	return nil
}

// RecordTx appends an audit entry inside the caller's transaction scope
func (r *Recorder) RecordTx(ctx context.Context, tx store.Tx, actorID int, kind, description string, entityID int) error {
	_, err := tx.Exec(ctx, insertSQL, actorID, kind, description, nullableID(entityID))
	return err
}

func nullableID(id int) any {
	if id == 0 {
		return nil
	}
	return id
}
