package repository

import (
	"context"
	"errors"
	"time"

	"restaurant_ordering/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderQuery narrows order listings. A nil BranchID means every branch.
type OrderQuery struct {
	BranchID *uint
	Statuses []models.OrderStatus
	From     *time.Time // inclusive
	To       *time.Time // exclusive
	Limit    int
	Offset   int
}

type OrderSummary struct {
	Count  int64   `gorm:"column:count"`
	Amount float64 `gorm:"column:amount"`
}

// OrderTx is the set of statements the order engine runs inside one database transaction.
type OrderTx interface {
	// LockMenuItems reads the given rows of one branch with an exclusive row lock, in id order.
	LockMenuItems(branchID uint, itemIDs []uint) ([]models.MenuItem, error)
	InsertOrder(order *models.Order) error
	InsertOrderItems(items []models.OrderItem) error
	AdjustStock(branchID, itemID uint, delta int) error
	// LockOrder reads one order with an exclusive row lock; branchID nil skips branch scoping.
	LockOrder(orderID uint, branchID *uint) (*models.Order, error)
	OrderItems(orderID uint) ([]models.OrderItem, error)
	SetOrderStatus(orderID uint, status models.OrderStatus, closedAt *time.Time) error
}

type OrderRepository interface {
	// WithinTx runs fn in a transaction; a non-nil error from fn rolls everything back.
	WithinTx(ctx context.Context, fn func(tx OrderTx) error) error
	List(ctx context.Context, q OrderQuery) ([]models.Order, error)
	Summarize(ctx context.Context, q OrderQuery) (OrderSummary, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithinTx(ctx context.Context, fn func(tx OrderTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&orderTx{db: tx})
	})
}

func (r *orderRepository) List(ctx context.Context, q OrderQuery) ([]models.Order, error) {
	var orders []models.Order
	tx := applyOrderQuery(r.db.WithContext(ctx).Model(&models.Order{}), q).
		Order("order_time DESC").Order("id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit).Offset(q.Offset)
	}
	err := tx.Find(&orders).Error
	return orders, err
}

func (r *orderRepository) Summarize(ctx context.Context, q OrderQuery) (OrderSummary, error) {
	var summary OrderSummary
	err := applyOrderQuery(r.db.WithContext(ctx).Model(&models.Order{}), q).
		Select("COUNT(*) AS count, COALESCE(SUM(total), 0) AS amount").
		Scan(&summary).Error
	return summary, err
}

func applyOrderQuery(tx *gorm.DB, q OrderQuery) *gorm.DB {
	if q.BranchID != nil {
		tx = tx.Where("branch_id = ?", *q.BranchID)
	}
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", q.Statuses)
	}
	if q.From != nil {
		tx = tx.Where("order_time >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("order_time < ?", *q.To)
	}
	return tx
}

type orderTx struct {
	db *gorm.DB
}

func (t *orderTx) LockMenuItems(branchID uint, itemIDs []uint) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if len(itemIDs) == 0 {
		return items, nil
	}
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND id IN ?", branchID, itemIDs).
		Order("id").
		Find(&items).Error
	return items, err
}

func (t *orderTx) InsertOrder(order *models.Order) error {
	return t.db.Omit(clause.Associations).Create(order).Error
}

func (t *orderTx) InsertOrderItems(items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return t.db.Omit(clause.Associations).Create(&items).Error
}

func (t *orderTx) AdjustStock(branchID, itemID uint, delta int) error {
	res := t.db.Model(&models.MenuItem{}).
		Where("id = ? AND branch_id = ?", itemID, branchID).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *orderTx) LockOrder(orderID uint, branchID *uint) (*models.Order, error) {
	var order models.Order
	tx := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", orderID)
	if branchID != nil {
		tx = tx.Where("branch_id = ?", *branchID)
	}
	err := tx.Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (t *orderTx) OrderItems(orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := t.db.Where("order_id = ?", orderID).Order("id").Find(&items).Error
	return items, err
}

func (t *orderTx) SetOrderStatus(orderID uint, status models.OrderStatus, closedAt *time.Time) error {
	return t.db.Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumns(map[string]interface{}{
			"status":    status,
			"active":    status.IsActive(),
			"closed_at": closedAt,
		}).Error
}
