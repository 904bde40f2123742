package repository

import (
	"context"

	"gorm.io/gorm"
)

// OrderLine is an order item joined with whatever is left of its menu item.
// Name and Photo are nil once the menu item has been deleted.
type OrderLine struct {
	OrderID     uint    `json:"-"`
	ItemID      *uint   `json:"itemId"`
	Qty         int     `json:"qty"`
	PriceAtTime float64 `json:"priceAtTime"`
	Name        *string `json:"name"`
	Photo       *string `json:"photo"`
}

type OrderItemRepository interface {
	LinesForOrders(ctx context.Context, orderIDs []uint) ([]OrderLine, error)
}

type orderItemRepository struct {
	db *gorm.DB
}

func NewOrderItemRepository(db *gorm.DB) OrderItemRepository {
	return &orderItemRepository{db: db}
}

func (r *orderItemRepository) LinesForOrders(ctx context.Context, orderIDs []uint) ([]OrderLine, error) {
	var lines []OrderLine
	if len(orderIDs) == 0 {
		return lines, nil
	}
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.order_id, oi.item_id, oi.qty, oi.price_at_time, m.name, m.photo").
		Joins("LEFT JOIN menu_items m ON m.id = oi.item_id").
		Where("oi.order_id IN ?", orderIDs).
		Order("oi.order_id, oi.id").
		Scan(&lines).Error
	return lines, err
}
