package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/repository"

	"github.com/sirupsen/logrus"
)

const branchCacheTTL = 10 * time.Minute

// SettingsInput is the admin settings form. Omitted numbers fall back to the column defaults.
type SettingsInput struct {
	MenuDefaultStock         *int     `json:"menuDefaultStock"`
	MenuDefaultPrice         *float64 `json:"menuDefaultPrice"`
	StockWarnEnabled         bool     `json:"stockWarnEnabled"`
	StockWarnThreshold       *int     `json:"stockWarnThreshold"`
	ShowInactiveMenuItems    bool     `json:"showInactiveMenuItems"`
	ShowOutOfStockItems      bool     `json:"showOutOfStockItems"`
	OrdersAutoRefreshEnabled bool     `json:"ordersAutoRefreshEnabled"`
	OrdersAutoRefreshSeconds *int     `json:"ordersAutoRefreshSeconds"`
}

type CreateBranchInput struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

type BranchService interface {
	List(ctx context.Context) ([]models.Branch, error)
	Get(ctx context.Context, id uint) (*models.Branch, error)
	Create(ctx context.Context, in CreateBranchInput) (*models.Branch, error)
	UpdateSettings(ctx context.Context, id uint, in SettingsInput) (*models.Branch, error)
}

type branchService struct {
	branchRepo repository.BranchRepository
	cache      Cache
	log        logrus.FieldLogger
}

func NewBranchService(branchRepo repository.BranchRepository, cache Cache, log logrus.FieldLogger) BranchService {
	return &branchService{branchRepo: branchRepo, cache: cache, log: log}
}

func (s *branchService) List(ctx context.Context) ([]models.Branch, error) {
	var branches []models.Branch
	if s.cache != nil && s.cache.GetJSON(ctx, branchListKey, &branches) == nil {
		return branches, nil
	}
	branches, err := s.branchRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	s.store(ctx, branchListKey, branches)
	return branches, nil
}

func (s *branchService) Get(ctx context.Context, id uint) (*models.Branch, error) {
	var branch models.Branch
	if s.cache != nil && s.cache.GetJSON(ctx, branchSettingsKey(id), &branch) == nil {
		return &branch, nil
	}
	found, err := s.branchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundError("branch not found")
		}
		return nil, fmt.Errorf("failed to load branch: %w", err)
	}
	s.store(ctx, branchSettingsKey(id), found)
	return found, nil
}

func (s *branchService) Create(ctx context.Context, in CreateBranchInput) (*models.Branch, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, validationError("code and name are required")
	}
	branch := &models.Branch{
		Code:           code,
		Name:           name,
		Country:        strings.TrimSpace(in.Country),
		Timezone:       strings.TrimSpace(in.Timezone),
		Currency:       strings.ToUpper(strings.TrimSpace(in.Currency)),
		Active:         true,
		BranchSettings: models.DefaultBranchSettings(),
	}
	if branch.Timezone == "" {
		branch.Timezone = "Europe/Istanbul"
	}
	if _, err := time.LoadLocation(branch.Timezone); err != nil {
		return nil, validationError("unknown timezone: %s", branch.Timezone)
	}
	if branch.Currency == "" {
		branch.Currency = "TRY"
	}

	if err := s.branchRepo.Create(ctx, branch); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflictError("branch code %s already exists", code)
		}
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}
	invalidate(ctx, s.cache, s.log, branchListKey)
	return branch, nil
}

func (s *branchService) UpdateSettings(ctx context.Context, id uint, in SettingsInput) (*models.Branch, error) {
	settings := in.resolve()
	if settings.MenuDefaultStock < 0 || settings.MenuDefaultPrice < 0 || settings.StockWarnThreshold < 0 {
		return nil, validationError("settings must not be negative")
	}
	if settings.OrdersAutoRefreshSeconds < 1 {
		return nil, validationError("ordersAutoRefreshSeconds must be at least 1")
	}

	if err := s.branchRepo.UpdateSettings(ctx, id, settings); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundError("branch not found")
		}
		return nil, fmt.Errorf("failed to update branch settings: %w", err)
	}
	invalidate(ctx, s.cache, s.log, branchSettingsKey(id), branchListKey)

	branch, err := s.branchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload branch: %w", err)
	}
	return branch, nil
}

func (s *branchService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, branchCacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func (in SettingsInput) resolve() models.BranchSettings {
	out := models.DefaultBranchSettings()
	if in.MenuDefaultStock != nil {
		out.MenuDefaultStock = *in.MenuDefaultStock
	}
	if in.MenuDefaultPrice != nil {
		out.MenuDefaultPrice = *in.MenuDefaultPrice
	}
	if in.StockWarnThreshold != nil {
		out.StockWarnThreshold = *in.StockWarnThreshold
	}
	if in.OrdersAutoRefreshSeconds != nil {
		out.OrdersAutoRefreshSeconds = *in.OrdersAutoRefreshSeconds
	}
	out.StockWarnEnabled = in.StockWarnEnabled
	out.ShowInactiveMenuItems = in.ShowInactiveMenuItems
	out.ShowOutOfStockItems = in.ShowOutOfStockItems
	out.OrdersAutoRefreshEnabled = in.OrdersAutoRefreshEnabled
	return out
}
