package repository

import (
	"context"
	"errors"
	"time"

	"restaurant_ordering/internal/models"

	"gorm.io/gorm"
)

type PendingUserRepository interface {
	Create(ctx context.Context, pending *models.PendingUser) error
	GetByToken(ctx context.Context, token string) (*models.PendingUser, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Delete(ctx context.Context, id uint) error
	DeleteByToken(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pendingUserRepository struct {
	db *gorm.DB
}

func NewPendingUserRepository(db *gorm.DB) PendingUserRepository {
	return &pendingUserRepository{db: db}
}

func (r *pendingUserRepository) Create(ctx context.Context, pending *models.PendingUser) error {
	err := r.db.WithContext(ctx).Create(pending).Error
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *pendingUserRepository) GetByToken(ctx context.Context, token string) (*models.PendingUser, error) {
	var pending models.PendingUser
	err := r.db.WithContext(ctx).Where("verification_token = ?", token).Take(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pending, nil
}

func (r *pendingUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PendingUser{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (r *pendingUserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.PendingUser{}, id).Error
}

func (r *pendingUserRepository) DeleteByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("verification_token = ?", token).Delete(&models.PendingUser{}).Error
}

func (r *pendingUserRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("token_expiry < ?", now).Delete(&models.PendingUser{})
	return res.RowsAffected, res.Error
}
