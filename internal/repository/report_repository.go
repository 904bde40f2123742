package repository

import (
	"context"
	"time"

	"restaurant_ordering/internal/models"

	"gorm.io/gorm"
)

type RevenuePoint struct {
	OrderTime time.Time
	Total     float64
}

type TopItem struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	TotalQty int64  `json:"totalQty"`
}

type StatusCount struct {
	Status models.OrderStatus
	Count  int64
}

type ReportRepository interface {
	Revenue(ctx context.Context, branchID *uint, from, to *time.Time) (float64, error)
	CountOrders(ctx context.Context, branchID *uint) (int64, error)
	CompletedSince(ctx context.Context, branchID *uint, since time.Time) ([]RevenuePoint, error)
	TopItems(ctx context.Context, branchID *uint, limit int) ([]TopItem, error)
	StatusCounts(ctx context.Context, branchID *uint, since time.Time) ([]StatusCount, error)
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// Revenue sums completed orders in [from, to).
func (r *reportRepository) Revenue(ctx context.Context, branchID *uint, from, to *time.Time) (float64, error) {
	var revenue float64
	q := OrderQuery{BranchID: branchID, Statuses: []models.OrderStatus{models.OrderCompleted}, From: from, To: to}
	err := applyOrderQuery(r.db.WithContext(ctx).Model(&models.Order{}), q).
		Select("COALESCE(SUM(total), 0)").
		Scan(&revenue).Error
	return revenue, err
}

func (r *reportRepository) CountOrders(ctx context.Context, branchID *uint) (int64, error) {
	var count int64
	err := applyOrderQuery(r.db.WithContext(ctx).Model(&models.Order{}), OrderQuery{BranchID: branchID}).
		Count(&count).Error
	return count, err
}

func (r *reportRepository) CompletedSince(ctx context.Context, branchID *uint, since time.Time) ([]RevenuePoint, error) {
	var points []RevenuePoint
	q := OrderQuery{BranchID: branchID, Statuses: []models.OrderStatus{models.OrderCompleted}, From: &since}
	err := applyOrderQuery(r.db.WithContext(ctx).Model(&models.Order{}), q).
		Select("order_time, total").
		Order("order_time").
		Scan(&points).Error
	return points, err
}

// TopItems ranks items by quantity sold; cancelled orders returned their stock and do not count.
func (r *reportRepository) TopItems(ctx context.Context, branchID *uint, limit int) ([]TopItem, error) {
	var items []TopItem
	tx := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("m.id, m.name, SUM(oi.qty) AS total_qty").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Joins("JOIN menu_items m ON m.id = oi.item_id").
		Where("o.status <> ?", models.OrderCancelled)
	if branchID != nil {
		tx = tx.Where("o.branch_id = ?", *branchID)
	}
	err := tx.Group("m.id, m.name").
		Order("total_qty DESC, m.id ASC").
		Limit(limit).
		Scan(&items).Error
	return items, err
}

func (r *reportRepository) StatusCounts(ctx context.Context, branchID *uint, since time.Time) ([]StatusCount, error) {
	var counts []StatusCount
	err := applyOrderQuery(r.db.WithContext(ctx).Model(&models.Order{}), OrderQuery{BranchID: branchID, From: &since}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	return counts, err
}
