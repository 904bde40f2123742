package repository

import (
	"context"
	"errors"
	"fmt"

	"restaurant_ordering/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MenuItemRepository interface {
	Create(ctx context.Context, item *models.MenuItem) error
	Update(ctx context.Context, item *models.MenuItem, columns ...string) error
	GetByID(ctx context.Context, id, branchID uint) (*models.MenuItem, error)
	ListByBranch(ctx context.Context, branchID uint) ([]models.MenuItemView, error)
	ListAvailableByCategory(ctx context.Context, branchID, categoryID uint) ([]models.MenuItemView, error)
	SetPhoto(ctx context.Context, id, branchID uint, photo string) error
	Delete(ctx context.Context, id, branchID uint) error
	CountUncategorized(ctx context.Context, branchID uint) (int64, error)
}

// MenuItemDetailColumns are the columns an admin edit rewrites unconditionally.
var MenuItemDetailColumns = []string{"name", "description", "category_id", "price", "available"}

type menuItemRepository struct {
	db *gorm.DB
}

func NewMenuItemRepository(db *gorm.DB) MenuItemRepository {
	return &menuItemRepository{db: db}
}

func (r *menuItemRepository) Create(ctx context.Context, item *models.MenuItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

// Update writes the given editable columns of an item within its branch. With no
// columns it writes name, description, category_id, price and available; stock is
// only written when listed, so an edit never overwrites a concurrent sale.
func (r *menuItemRepository) Update(ctx context.Context, item *models.MenuItem, columns ...string) error {
	if len(columns) == 0 {
		columns = MenuItemDetailColumns
	}
	editable := map[string]interface{}{
		"name":        item.Name,
		"description": item.Description,
		"category_id": item.CategoryID,
		"price":       item.Price,
		"stock":       item.Stock,
		"available":   item.Available,
	}
	values := make(map[string]interface{}, len(columns))
	for _, col := range columns {
		v, ok := editable[col]
		if !ok {
			return fmt.Errorf("menu item column %q is not editable", col)
		}
		values[col] = v
	}

	res := r.db.WithContext(ctx).Model(&models.MenuItem{}).
		Where("id = ? AND branch_id = ?", item.ID, item.BranchID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *menuItemRepository) GetByID(ctx context.Context, id, branchID uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.db.WithContext(ctx).Where("id = ? AND branch_id = ?", id, branchID).Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *menuItemRepository) menuView(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("menu_items AS m").
		Select("m.*, c.name AS category_name, c.sort_order AS category_sort_order").
		Joins("LEFT JOIN categories c ON m.category_id = c.id")
}

func (r *menuItemRepository) ListByBranch(ctx context.Context, branchID uint) ([]models.MenuItemView, error) {
	var items []models.MenuItemView
	err := r.menuView(ctx).
		Where("m.branch_id = ?", branchID).
		Order("c.sort_order IS NULL ASC, c.sort_order ASC, c.name ASC, m.name ASC").
		Scan(&items).Error
	return items, err
}

func (r *menuItemRepository) ListAvailableByCategory(ctx context.Context, branchID, categoryID uint) ([]models.MenuItemView, error) {
	var items []models.MenuItemView
	err := r.menuView(ctx).
		Where("m.category_id = ? AND m.branch_id = ? AND m.available = ?", categoryID, branchID, true).
		Order("c.sort_order ASC, m.name ASC").
		Scan(&items).Error
	return items, err
}

func (r *menuItemRepository) SetPhoto(ctx context.Context, id, branchID uint, photo string) error {
	res := r.db.WithContext(ctx).Model(&models.MenuItem{}).
		Where("id = ? AND branch_id = ?", id, branchID).
		UpdateColumn("photo", photo)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *menuItemRepository) Delete(ctx context.Context, id, branchID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND branch_id = ?", id, branchID).Delete(&models.MenuItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *menuItemRepository) CountUncategorized(ctx context.Context, branchID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MenuItem{}).
		Where("branch_id = ? AND category_id IS NULL", branchID).
		Count(&count).Error
	return count, err
}
