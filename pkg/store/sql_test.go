package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ubl-gate/core/pkg/receipts"
	"github.com/ubl-gate/core/pkg/tenant"
)

func TestSQL_PutReceipt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQL(db)
	r, err := receipts.NewReceipt(receipts.KindWA, "t1", map[string]any{"x": int64(1)}, "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO ubl_receipts").
		WithArgs("t1", r.BodyCID, string(r.Kind), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = s.PutReceipt(context.Background(), tenant.ID("t1"), r)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_GetReceiptNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQL(db)
	mock.ExpectQuery("SELECT payload FROM ubl_receipts").
		WithArgs("t1", "b3:missing").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err = s.GetReceipt(context.Background(), tenant.ID("t1"), "b3:missing")
	require.ErrorIs(t, err, ErrNotFound)
}
