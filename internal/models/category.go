package models

type Category struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	BranchID  uint    `json:"branchId" gorm:"not null;uniqueIndex:u_branch_name,priority:1;index:idx_sort,priority:1"`
	Branch    *Branch `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Name      string  `json:"name" gorm:"size:100;not null;uniqueIndex:u_branch_name,priority:2"`
	SortOrder int     `json:"sortOrder" gorm:"not null;default:0;index:idx_sort,priority:2"`
}

// CategoryWithCount is a category row joined with the number of menu items filed under it.
type CategoryWithCount struct {
	Category
	ItemCount int64 `json:"itemCount"`
}
