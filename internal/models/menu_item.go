package models

type MenuItem struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	BranchID    uint      `json:"branchId" gorm:"not null;index:idx_menu_branch"`
	Branch      *Branch   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Name        string    `json:"name" gorm:"size:200;not null"`
	Description *string   `json:"description" gorm:"type:text"`
	Photo       *string   `json:"photo" gorm:"size:255"`
	CategoryID  *uint     `json:"categoryId" gorm:"index"`
	Category    *Category `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Price       float64   `json:"price" gorm:"type:decimal(10,2);not null"`
	Stock       int       `json:"stock" gorm:"not null;default:0;check:chk_menu_items_stock,stock >= 0"`
	Available   bool      `json:"available" gorm:"not null;default:false"`
}

// Orderable reports whether a customer can put the item in a basket at all.
func (m *MenuItem) Orderable() bool {
	return m.Available && m.Stock > 0
}

// MenuItemView is a menu row joined with its category for menu pages.
type MenuItemView struct {
	MenuItem
	CategoryName      *string `json:"categoryName"`
	CategorySortOrder *int    `json:"categorySortOrder"`
}
