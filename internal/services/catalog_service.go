package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/repository"

	"github.com/sirupsen/logrus"
)

const uploadURLPrefix = "/uploads/"

var photoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// MenuItemInput is the admin menu form. A zero ID creates a new item.
type MenuItemInput struct {
	ID          uint     `json:"id"`
	BranchID    *uint    `json:"branchId"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	CategoryID  *uint    `json:"categoryId"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	Available   bool     `json:"available"`
}

type CategoryInput struct {
	ID       uint   `json:"id"`
	BranchID *uint  `json:"branchId"`
	Name     string `json:"name"`
}

type CatalogService interface {
	ListMenu(ctx context.Context, actor Actor, branchID *uint) ([]models.MenuItemView, error)
	ListMenuByCategory(ctx context.Context, actor Actor, branchID *uint, categoryID uint) ([]models.MenuItemView, error)
	SaveMenuItem(ctx context.Context, actor Actor, in MenuItemInput) (*models.MenuItem, error)
	SetMenuPhoto(ctx context.Context, actor Actor, branchID *uint, id uint, filename string, content io.Reader) (string, error)
	DeleteMenuItem(ctx context.Context, actor Actor, branchID *uint, id uint) error

	ListCategories(ctx context.Context, branchID *uint) ([]models.CategoryWithCount, error)
	UncategorizedCount(ctx context.Context, actor Actor, branchID *uint) (int64, error)
	ReorderCategories(ctx context.Context, actor Actor, branchID *uint, orderedIDs []uint) error
	SaveCategory(ctx context.Context, actor Actor, in CategoryInput) (*models.CategoryWithCount, error)
	DeleteCategory(ctx context.Context, actor Actor, branchID *uint, id uint) error
}

type catalogService struct {
	menuRepo     repository.MenuItemRepository
	categoryRepo repository.CategoryRepository
	branchRepo   repository.BranchRepository
	uploadDir    string
	log          logrus.FieldLogger
}

func NewCatalogService(menuRepo repository.MenuItemRepository, categoryRepo repository.CategoryRepository, branchRepo repository.BranchRepository, uploadDir string, log logrus.FieldLogger) CatalogService {
	return &catalogService{
		menuRepo:     menuRepo,
		categoryRepo: categoryRepo,
		branchRepo:   branchRepo,
		uploadDir:    uploadDir,
		log:          log,
	}
}

// ListMenu returns the branch menu. Guests only see what the branch settings allow.
func (s *catalogService) ListMenu(ctx context.Context, actor Actor, branchID *uint) ([]models.MenuItemView, error) {
	target, err := actor.TargetBranch(branchID)
	if err != nil {
		return nil, err
	}
	items, err := s.menuRepo.ListByBranch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu: %w", err)
	}
	if actor.IsStaff() {
		return nonNilViews(items), nil
	}

	branch, err := s.branchRepo.GetByID(ctx, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundError("branch not found")
		}
		return nil, fmt.Errorf("failed to load branch: %w", err)
	}
	visible := items[:0]
	for _, it := range items {
		if !it.Available && !branch.ShowInactiveMenuItems {
			continue
		}
		if it.Stock <= 0 && !branch.ShowOutOfStockItems {
			continue
		}
		visible = append(visible, it)
	}
	return nonNilViews(visible), nil
}

func (s *catalogService) ListMenuByCategory(ctx context.Context, actor Actor, branchID *uint, categoryID uint) ([]models.MenuItemView, error) {
	target, err := actor.TargetBranch(branchID)
	if err != nil {
		return nil, err
	}
	items, err := s.menuRepo.ListAvailableByCategory(ctx, target, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list category items: %w", err)
	}
	return nonNilViews(items), nil
}

func (s *catalogService) SaveMenuItem(ctx context.Context, actor Actor, in MenuItemInput) (*models.MenuItem, error) {
	target, err := actor.TargetBranch(in.BranchID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if in.Price != nil && *in.Price < 0 {
		return nil, validationError("price must not be negative")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return nil, validationError("stock must not be negative")
	}
	if in.CategoryID != nil && *in.CategoryID == 0 {
		in.CategoryID = nil
	}
	if in.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, *in.CategoryID, target); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, validationError("category does not belong to this branch")
			}
			return nil, fmt.Errorf("failed to load category: %w", err)
		}
	}

	if in.ID != 0 {
		item, err := s.menuRepo.GetByID(ctx, in.ID, target)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFoundError("menu item not found in this branch")
			}
			return nil, fmt.Errorf("failed to load menu item: %w", err)
		}
		item.Name = name
		item.Description = trimmedOrNil(in.Description)
		item.CategoryID = in.CategoryID
		item.Available = in.Available
		if in.Price != nil {
			item.Price = *in.Price
		}
		columns := repository.MenuItemDetailColumns
		if in.Stock != nil {
			item.Stock = *in.Stock
			columns = append(append([]string(nil), columns...), "stock")
		}
		if err := s.menuRepo.Update(ctx, item, columns...); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFoundError("menu item not found in this branch")
			}
			return nil, fmt.Errorf("failed to update menu item: %w", err)
		}
		saved, err := s.menuRepo.GetByID(ctx, item.ID, target)
		if err != nil {
			return nil, fmt.Errorf("failed to reload menu item: %w", err)
		}
		return saved, nil
	}

	branch, err := s.branchRepo.GetByID(ctx, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationError("unknown branch")
		}
		return nil, fmt.Errorf("failed to load branch: %w", err)
	}
	item := &models.MenuItem{
		BranchID:    target,
		Name:        name,
		Description: trimmedOrNil(in.Description),
		CategoryID:  in.CategoryID,
		Price:       branch.MenuDefaultPrice,
		Stock:       branch.MenuDefaultStock,
		Available:   in.Available,
	}
	if in.Price != nil {
		item.Price = *in.Price
	}
	if in.Stock != nil {
		item.Stock = *in.Stock
	}
	if err := s.menuRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create menu item: %w", err)
	}
	return item, nil
}

// SetMenuPhoto stores the upload as UPLOAD_DIR/menu_<id><ext> and returns its public path.
func (s *catalogService) SetMenuPhoto(ctx context.Context, actor Actor, branchID *uint, id uint, filename string, content io.Reader) (string, error) {
	target, err := actor.TargetBranch(branchID)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !photoExtensions[ext] {
		return "", validationError("unsupported image type %q", ext)
	}

	item, err := s.menuRepo.GetByID(ctx, id, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", notFoundError("menu item not found in this branch")
		}
		return "", fmt.Errorf("failed to load menu item: %w", err)
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	base := fmt.Sprintf("menu_%d%s", item.ID, ext)
	dst, err := os.Create(filepath.Join(s.uploadDir, base))
	if err != nil {
		return "", fmt.Errorf("failed to create photo file: %w", err)
	}
	if _, err := io.Copy(dst, content); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to write photo file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to write photo file: %w", err)
	}

	photo := uploadURLPrefix + base
	if err := s.menuRepo.SetPhoto(ctx, item.ID, target, photo); err != nil {
		return "", fmt.Errorf("failed to save photo path: %w", err)
	}
	if item.Photo != nil && *item.Photo != photo {
		s.removePhoto(*item.Photo)
	}
	return photo, nil
}

func (s *catalogService) DeleteMenuItem(ctx context.Context, actor Actor, branchID *uint, id uint) error {
	target, err := actor.TargetBranch(branchID)
	if err != nil {
		return err
	}
	item, err := s.menuRepo.GetByID(ctx, id, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("menu item not found")
		}
		return fmt.Errorf("failed to load menu item: %w", err)
	}
	if err := s.menuRepo.Delete(ctx, item.ID, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("menu item not found")
		}
		return fmt.Errorf("failed to delete menu item: %w", err)
	}
	if item.Photo != nil {
		s.removePhoto(*item.Photo)
	}
	return nil
}

// removePhoto deletes an uploaded file; failures are only logged.
func (s *catalogService) removePhoto(photo string) {
	if !strings.HasPrefix(photo, uploadURLPrefix) {
		return
	}
	path := filepath.Join(s.uploadDir, filepath.Base(photo))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.WithError(err).WithField("path", path).Warn("failed to remove photo")
	}
}

func (s *catalogService) ListCategories(ctx context.Context, branchID *uint) ([]models.CategoryWithCount, error) {
	rows, err := s.categoryRepo.ListWithCounts(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if rows == nil {
		rows = []models.CategoryWithCount{}
	}
	return rows, nil
}

func (s *catalogService) UncategorizedCount(ctx context.Context, actor Actor, branchID *uint) (int64, error) {
	target, err := actor.TargetBranch(branchID)
	if err != nil {
		return 0, err
	}
	n, err := s.menuRepo.CountUncategorized(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("failed to count uncategorized items: %w", err)
	}
	return n, nil
}

func (s *catalogService) ReorderCategories(ctx context.Context, actor Actor, branchID *uint, orderedIDs []uint) error {
	target, err := actor.TargetBranch(branchID)
	if err != nil {
		return err
	}
	seen := make(map[uint]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if id == 0 || seen[id] {
			return validationError("order must list distinct category ids")
		}
		seen[id] = true
	}
	if err := s.categoryRepo.Reorder(ctx, target, orderedIDs); err != nil {
		return fmt.Errorf("failed to reorder categories: %w", err)
	}
	return nil
}

func (s *catalogService) SaveCategory(ctx context.Context, actor Actor, in CategoryInput) (*models.CategoryWithCount, error) {
	target, err := actor.TargetBranch(in.BranchID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}

	id := in.ID
	if id != 0 {
		if err := s.categoryRepo.Rename(ctx, id, target, name); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return nil, notFoundError("category not found in this branch")
			case errors.Is(err, repository.ErrDuplicate):
				return nil, conflictError("category already exists for this branch")
			}
			return nil, fmt.Errorf("failed to rename category: %w", err)
		}
	} else {
		next, err := s.categoryRepo.NextSortOrder(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to compute sort order: %w", err)
		}
		category := &models.Category{BranchID: target, Name: name, SortOrder: next}
		if err := s.categoryRepo.Create(ctx, category); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, conflictError("category already exists for this branch")
			}
			return nil, fmt.Errorf("failed to create category: %w", err)
		}
		id = category.ID
	}

	saved, err := s.categoryRepo.GetWithCount(ctx, id, target)
	if err != nil {
		return nil, fmt.Errorf("failed to reload category: %w", err)
	}
	return saved, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, actor Actor, branchID *uint, id uint) error {
	target, err := actor.TargetBranch(branchID)
	if err != nil {
		return err
	}
	category, err := s.categoryRepo.GetByID(ctx, id, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("category not found in this branch")
		}
		return fmt.Errorf("failed to load category: %w", err)
	}
	n, err := s.categoryRepo.CountItems(ctx, category.ID)
	if err != nil {
		return fmt.Errorf("failed to count category items: %w", err)
	}
	if n > 0 {
		return validationError("category %q still has %d menu items", category.Name, n)
	}
	if err := s.categoryRepo.Delete(ctx, category.ID, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("category not found in this branch")
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func nonNilViews(items []models.MenuItemView) []models.MenuItemView {
	if items == nil {
		return []models.MenuItemView{}
	}
	return items
}
