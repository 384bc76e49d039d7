package database

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T, driver string) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	logger := zerolog.New(io.Discard)
	return wrap(sqlDB, driver, &logger), mock
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()

	t.Run("GetSlots", func(t *testing.T) {
		_, err := db.GetSlots(ctx, "P1", []string{"2024-03-01"})
		assert.Error(t, err)
	})
	t.Run("CreateOrderWithReservation", func(t *testing.T) {
		err := db.CreateOrderWithReservation(ctx, testOrder("O1", "P1"), []string{"2024-03-01"})
		assert.Error(t, err)
	})
	t.Run("ListOrders", func(t *testing.T) {
		_, err := db.ListOrders(ctx, models.OrderFilter{})
		assert.Error(t, err)
	})
	t.Run("UpsertUser", func(t *testing.T) {
		assert.Error(t, db.UpsertUser(ctx, &models.User{UID: "U1"}))
	})
	t.Run("CreateOutboxTask", func(t *testing.T) {
		assert.Error(t, db.CreateOutboxTask(ctx, &models.OutboxTask{}))
	})
	t.Run("ClaimOutboxTask", func(t *testing.T) {
		_, err := db.ClaimOutboxTask(ctx, "x")
		assert.Error(t, err)
	})
}

func TestCreateOrderWithReservation_Mock(t *testing.T) {
	ctx := context.Background()
	reserve := regexp.QuoteMeta(`UPDATE inventory SET available = ?, order_id = ?`)

	t.Run("BeginFails", func(t *testing.T) {
		db, mock := newMockDB(t, DriverSQLite)
		mock.ExpectBegin().WillReturnError(errors.New("locked"))

		err := db.CreateOrderWithReservation(ctx, testOrder("O1", "P1"), []string{"2024-03-01"})
		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SecondDayConflictRollsBack", func(t *testing.T) {
		db, mock := newMockDB(t, DriverSQLite)
		mock.ExpectBegin()
		mock.ExpectExec(reserve).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(reserve).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := db.CreateOrderWithReservation(ctx, testOrder("O1", "P1"), []string{"2024-03-01", "2024-03-02"})
		var conflict *domain.ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "2024-03-02", conflict.Date)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsertFailsRollsBack", func(t *testing.T) {
		db, mock := newMockDB(t, DriverSQLite)
		mock.ExpectBegin()
		mock.ExpectExec(reserve).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO orders`)).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := db.CreateOrderWithReservation(ctx, testOrder("O1", "P1"), []string{"2024-03-01"})
		assert.ErrorContains(t, err, "failed to insert order")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CommitFails", func(t *testing.T) {
		db, mock := newMockDB(t, DriverSQLite)
		mock.ExpectBegin()
		mock.ExpectExec(reserve).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO orders`)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(errors.New("io error"))

		err := db.CreateOrderWithReservation(ctx, testOrder("O1", "P1"), []string{"2024-03-01"})
		assert.ErrorContains(t, err, "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresPlaceholders_Mock(t *testing.T) {
	db, mock := newMockDB(t, DriverPostgres)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox SET status = $1, locked_at = $2 WHERE id = $3 AND status IN ($4, $5)`)).
		WithArgs(models.OutboxProcessing, sqlmock.AnyArg(), "T1", models.OutboxPending, models.OutboxRetry).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := db.ClaimOutboxTask(context.Background(), "T1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOrderPaid_OutboxFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t, DriverSQLite)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET payment_status = ?`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox`)).WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	task := &models.OutboxTask{TaskType: models.TaskLedgerOrder, AggregateID: "O1", Payload: "{}"}
	applied, err := db.MarkOrderPaid(context.Background(), "O1", "O1", time.Now(), []*models.OutboxTask{task})
	assert.False(t, applied)
	assert.ErrorContains(t, err, "failed to create outbox task")
	assert.NoError(t, mock.ExpectationsWereMet())
}
