package models

import (
	"time"
)

type Order struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	BranchID  uint        `json:"branchId" gorm:"not null;index:idx_order_branch"`
	Branch    *Branch     `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	UserID    *uint       `json:"userId" gorm:"index"`
	User      *User       `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Total     float64     `json:"total" gorm:"type:decimal(10,2);not null;default:0"`
	Status    OrderStatus `json:"status" gorm:"size:20;not null;default:'open';index"`
	Active    bool        `json:"active" gorm:"not null;default:true;index:idx_active"`
	OrderTime time.Time   `json:"orderTime" gorm:"not null;index:idx_order_time"`
	ClosedAt  *time.Time  `json:"closedAt"`
	TableID   *int        `json:"tableId" gorm:"index:idx_table_id"`
	Notes     *string     `json:"notes" gorm:"type:text"`
	Items     []OrderItem `json:"-" gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// OrderStatus replaces the single active flag; Active stays as the compatibility column.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderPreparing OrderStatus = "preparing"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderOpen:      {OrderPreparing, OrderCompleted, OrderCancelled},
	OrderPreparing: {OrderCompleted, OrderCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderOpen, OrderPreparing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// IsActive is the legacy mapping: open and preparing orders are active=1.
func (s OrderStatus) IsActive() bool {
	return s == OrderOpen || s == OrderPreparing
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
