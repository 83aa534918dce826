package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protrack-edu/protrack-server/internal/logger"
	"github.com/protrack-edu/protrack-server/internal/store"
)

// recordingStore captures the statements issued through it
type recordingStore struct {
	queries [][]any
	execErr error
}

func (r *recordingStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	r.queries = append(r.queries, args)
	if r.execErr != nil {
		return 0, r.execErr
	}
	return 1, nil
}

func (r *recordingStore) Query(ctx context.Context, query string, args ...any) ([]store.Row, error) {
	return nil, nil
}

func (r *recordingStore) QueryValue(ctx context.Context, query string, args ...any) (string, error) {
	return "", store.ErrNoRows
}

func (r *recordingStore) CallProcedure(ctx context.Context, name string, args ...any) ([]store.Row, error) {
	return nil, nil
}

func (r *recordingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(r)
}

func newTestRecorder(t *testing.T) (*Recorder, *recordingStore) {
	t.Helper()
	log, err := logger.New(logger.LevelNone, "", "")
	require.NoError(t, err)

	rs := &recordingStore{}
	return NewRecorder(rs, log), rs
}

func TestRecord(t *testing.T) {
	rec, rs := newTestRecorder(t)

	err := rec.Record(context.Background(), 7, KindLogin, "Inicio de sesión de maria", 0)
	require.NoError(t, err)

	require.Len(t, rs.queries, 1)
	args := rs.queries[0]
	require.Len(t, args, 4)
	assert.Equal(t, 7, args[0])
	assert.Equal(t, KindLogin, args[1])
	assert.Equal(t, "Inicio de sesión de maria", args[2])
	assert.Nil(t, args[3])
}

func TestRecordWithEntity(t *testing.T) {
	rec, rs := newTestRecorder(t)

	err := rec.Record(context.Background(), 7, KindCreate, "Registro del alumno juan", 12)
	require.NoError(t, err)

	require.Len(t, rs.queries, 1)
	assert.Equal(t, 12, rs.queries[0][3])
}

func TestRecordReturnsStoreError(t *testing.T) {
	rec, rs := newTestRecorder(t)
	rs.execErr = errors.New("connection lost")

	err := rec.Record(context.Background(), 7, KindLogout, "Cierre de sesión", 0)
	assert.ErrorIs(t, err, rs.execErr)
}

func TestRecordTx(t *testing.T) {
	rec, rs := newTestRecorder(t)

	err := rec.RecordTx(context.Background(), rs, 7, KindUpdate, "Cambio de contraseña", 0)
	require.NoError(t, err)
	require.Len(t, rs.queries, 1)
	assert.Equal(t, KindUpdate, rs.queries[0][1])
}
