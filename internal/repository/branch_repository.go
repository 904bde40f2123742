package repository

import (
	"context"
	"errors"

	"restaurant_ordering/internal/models"

	"gorm.io/gorm"
)

type BranchRepository interface {
	Create(ctx context.Context, branch *models.Branch) error
	GetByID(ctx context.Context, id uint) (*models.Branch, error)
	GetByCode(ctx context.Context, code string) (*models.Branch, error)
	List(ctx context.Context) ([]models.Branch, error)
	UpdateSettings(ctx context.Context, id uint, settings models.BranchSettings) error
}

type branchRepository struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) Create(ctx context.Context, branch *models.Branch) error {
	err := r.db.WithContext(ctx).Create(branch).Error
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *branchRepository) GetByID(ctx context.Context, id uint) (*models.Branch, error) {
	var branch models.Branch
	err := r.db.WithContext(ctx).First(&branch, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &branch, nil
}

func (r *branchRepository) GetByCode(ctx context.Context, code string) (*models.Branch, error) {
	var branch models.Branch
	err := r.db.WithContext(ctx).Where("code = ?", code).Take(&branch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &branch, nil
}

func (r *branchRepository) List(ctx context.Context) ([]models.Branch, error) {
	var branches []models.Branch
	err := r.db.WithContext(ctx).Order("id ASC").Find(&branches).Error
	return branches, err
}

func (r *branchRepository) UpdateSettings(ctx context.Context, id uint, s models.BranchSettings) error {
	res := r.db.WithContext(ctx).Model(&models.Branch{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"menu_default_stock":          s.MenuDefaultStock,
			"menu_default_price":          s.MenuDefaultPrice,
			"stock_warn_enabled":          s.StockWarnEnabled,
			"stock_warn_threshold":        s.StockWarnThreshold,
			"show_inactive_menu_items":    s.ShowInactiveMenuItems,
			"show_out_of_stock_items":     s.ShowOutOfStockItems,
			"orders_auto_refresh_enabled": s.OrdersAutoRefreshEnabled,
			"orders_auto_refresh_seconds": s.OrdersAutoRefreshSeconds,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
