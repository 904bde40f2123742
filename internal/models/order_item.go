package models

type OrderItem struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	OrderID     uint      `json:"orderId" gorm:"not null;index:idx_order_id"`
	ItemID      *uint     `json:"itemId" gorm:"index:idx_item_id"`
	MenuItem    *MenuItem `json:"-" gorm:"foreignKey:ItemID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Qty         int       `json:"qty" gorm:"not null"`
	PriceAtTime float64   `json:"priceAtTime" gorm:"type:decimal(10,2);not null"`
}

// Subtotal is the line value at the captured price.
func (i OrderItem) Subtotal() float64 {
	return i.PriceAtTime * float64(i.Qty)
}
