package repository

import (
	"context"
	"errors"

	"restaurant_ordering/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	Rename(ctx context.Context, id, branchID uint, name string) error
	GetByID(ctx context.Context, id, branchID uint) (*models.Category, error)
	GetWithCount(ctx context.Context, id, branchID uint) (*models.CategoryWithCount, error)
	ListWithCounts(ctx context.Context, branchID *uint) ([]models.CategoryWithCount, error)
	NextSortOrder(ctx context.Context, branchID uint) (int, error)
	Reorder(ctx context.Context, branchID uint, orderedIDs []uint) error
	CountItems(ctx context.Context, id uint) (int64, error)
	Delete(ctx context.Context, id, branchID uint) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(category).Error
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *categoryRepository) Rename(ctx context.Context, id, branchID uint, name string) error {
	res := r.db.WithContext(ctx).Model(&models.Category{}).
		Where("id = ? AND branch_id = ?", id, branchID).
		UpdateColumn("name", name)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id, branchID uint) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Where("id = ? AND branch_id = ?", id, branchID).Take(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) withCounts(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("categories AS c").
		Select("c.id, c.branch_id, c.name, c.sort_order, COUNT(mi.id) AS item_count").
		Joins("LEFT JOIN menu_items mi ON mi.category_id = c.id").
		Group("c.id, c.branch_id, c.name, c.sort_order")
}

func (r *categoryRepository) GetWithCount(ctx context.Context, id, branchID uint) (*models.CategoryWithCount, error) {
	var rows []models.CategoryWithCount
	err := r.withCounts(ctx).Where("c.id = ? AND c.branch_id = ?", id, branchID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (r *categoryRepository) ListWithCounts(ctx context.Context, branchID *uint) ([]models.CategoryWithCount, error) {
	var rows []models.CategoryWithCount
	tx := r.withCounts(ctx)
	if branchID != nil {
		tx = tx.Where("c.branch_id = ?", *branchID)
	}
	err := tx.Order("c.sort_order ASC, c.name ASC").Scan(&rows).Error
	return rows, err
}

func (r *categoryRepository) NextSortOrder(ctx context.Context, branchID uint) (int, error) {
	var maxSort int
	err := r.db.WithContext(ctx).Model(&models.Category{}).
		Where("branch_id = ?", branchID).
		Select("COALESCE(MAX(sort_order), -1)").
		Scan(&maxSort).Error
	return maxSort + 1, err
}

// Reorder assigns sort positions 0..n-1 following orderedIDs, all in one transaction.
func (r *categoryRepository) Reorder(ctx context.Context, branchID uint, orderedIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range orderedIDs {
			err := tx.Model(&models.Category{}).
				Where("id = ? AND branch_id = ?", id, branchID).
				UpdateColumn("sort_order", i).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *categoryRepository) CountItems(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MenuItem{}).Where("category_id = ?", id).Count(&count).Error
	return count, err
}

func (r *categoryRepository) Delete(ctx context.Context, id, branchID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND branch_id = ?", id, branchID).Delete(&models.Category{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
