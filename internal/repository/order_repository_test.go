package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant_ordering/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestWithinTxLocksInIDOrderAndCommits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "menu_items" WHERE branch_id = \$1 AND id IN \(\$2,\$3\) ORDER BY id FOR UPDATE`).
		WithArgs(1, 3, 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "branch_id", "name", "price", "stock", "available"}).
			AddRow(3, 1, "Truffle", 10.0, 5, true).
			AddRow(7, 1, "Praline", 4.5, 9, true))
	mock.ExpectQuery(`INSERT INTO "orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectQuery(`INSERT INTO "order_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100).AddRow(101))
	mock.ExpectExec(`UPDATE "menu_items" SET "stock"=stock \+ \$1 WHERE id = \$2 AND branch_id = \$3`).
		WithArgs(-2, 3, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "menu_items" SET "stock"=stock \+ \$1 WHERE id = \$2 AND branch_id = \$3`).
		WithArgs(-1, 7, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var orderID uint
	err := repo.WithinTx(context.Background(), func(tx OrderTx) error {
		items, err := tx.LockMenuItems(1, []uint{3, 7})
		if err != nil {
			return err
		}
		require.Len(t, items, 2)
		assert.Equal(t, uint(3), items[0].ID)

		order := &models.Order{BranchID: 1, Total: 24.5, Status: models.OrderOpen, Active: true, OrderTime: time.Now()}
		if err := tx.InsertOrder(order); err != nil {
			return err
		}
		orderID = order.ID

		id3, id7 := uint(3), uint(7)
		lines := []models.OrderItem{
			{OrderID: order.ID, ItemID: &id3, Qty: 2, PriceAtTime: 10},
			{OrderID: order.ID, ItemID: &id7, Qty: 1, PriceAtTime: 4.5},
		}
		if err := tx.InsertOrderItems(lines); err != nil {
			return err
		}
		if err := tx.AdjustStock(1, 3, -2); err != nil {
			return err
		}
		return tx.AdjustStock(1, 7, -1)
	})

	require.NoError(t, err)
	assert.Equal(t, uint(42), orderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "menu_items" .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "branch_id", "name", "price", "stock", "available"}).
			AddRow(3, 1, "Truffle", 10.0, 0, true))
	mock.ExpectRollback()

	rejected := errors.New("out of stock")
	err := repo.WithinTx(context.Background(), func(tx OrderTx) error {
		if _, err := tx.LockMenuItems(1, []uint{3}); err != nil {
			return err
		}
		return rejected
	})

	require.ErrorIs(t, err, rejected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustStockMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "menu_items" SET "stock"=stock \+ \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx OrderTx) error {
		return tx.AdjustStock(1, 99, 2)
	})

	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummarizeUsesListingPredicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	branchID := uint(2)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS count, COALESCE\(SUM\(total\), 0\) AS amount FROM "orders" WHERE branch_id = \$1 AND status IN \(\$2\) AND order_time >= \$3 AND order_time < \$4`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "amount"}).AddRow(3, 57.5))

	summary, err := repo.Summarize(context.Background(), OrderQuery{
		BranchID: &branchID,
		Statuses: []models.OrderStatus{models.OrderCompleted},
		From:     &from,
		To:       &to,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Count)
	assert.Equal(t, 57.5, summary.Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockOrderNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 AND branch_id = \$2 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	branchID := uint(1)
	err := repo.WithinTx(context.Background(), func(tx OrderTx) error {
		_, err := tx.LockOrder(5, &branchID)
		return err
	})

	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
