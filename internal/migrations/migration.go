package migrations

import (
	"context"
	"errors"
	"fmt"

	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
	defaultCategoryName  = "Chocolate"
)

// schema lists tables in dependency order; DropTable walks it backwards.
var schema = []interface{}{
	&models.Branch{},
	&models.User{},
	&models.PendingUser{},
	&models.Category{},
	&models.MenuItem{},
	&models.Order{},
	&models.OrderItem{},
}

var defaultBranches = []models.Branch{
	{Code: "IST", Name: "Istanbul", Country: "Turkey", Timezone: "Europe/Istanbul", Currency: "TRY"},
	{Code: "MLA", Name: "Malta", Country: "Malta", Timezone: "Europe/Malta", Currency: "EUR"},
}

// RunMigrations brings the schema up to date and seeds default data. With reset set,
// every table is dropped first.
func RunMigrations(ctx context.Context, db *gorm.DB, log logrus.FieldLogger, reset bool) error {
	log.Info("Running database migrations...")

	if reset {
		log.Warn("Dropping existing tables...")
		reversed := make([]interface{}, 0, len(schema))
		for i := len(schema) - 1; i >= 0; i-- {
			reversed = append(reversed, schema[i])
		}
		if err := db.WithContext(ctx).Migrator().DropTable(reversed...); err != nil {
			log.WithError(err).Warn("Error dropping tables")
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(schema...); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	if err := createDefaultData(ctx, db, log); err != nil {
		log.WithError(err).Warn("Failed to create default data")
	}

	log.Info("Database migrations completed successfully!")
	return nil
}

// createDefaultData seeds the two launch branches, one category each and the admin account.
// Existing rows are left alone, so it is safe on every boot.
func createDefaultData(ctx context.Context, db *gorm.DB, log logrus.FieldLogger) error {
	branchRepo := repository.NewBranchRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	userRepo := repository.NewUserRepository(db)

	for _, seed := range defaultBranches {
		branch, err := branchRepo.GetByCode(ctx, seed.Code)
		if errors.Is(err, repository.ErrNotFound) {
			branch = &models.Branch{
				Code:           seed.Code,
				Name:           seed.Name,
				Country:        seed.Country,
				Timezone:       seed.Timezone,
				Currency:       seed.Currency,
				Active:         true,
				BranchSettings: models.DefaultBranchSettings(),
			}
			if err := branchRepo.Create(ctx, branch); err != nil && !errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("seed branch %s: %w", seed.Code, err)
			}
			log.WithField("branch", seed.Code).Info("Created default branch")
		} else if err != nil {
			return fmt.Errorf("load branch %s: %w", seed.Code, err)
		}

		category := &models.Category{BranchID: branch.ID, Name: defaultCategoryName}
		if err := categoryRepo.Create(ctx, category); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("seed category for %s: %w", seed.Code, err)
		}
	}

	exists, err := userRepo.ExistsByUsername(ctx, defaultAdminUsername)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if exists {
		log.Info("Admin user already exists")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := &models.User{
		Username:     defaultAdminUsername,
		PasswordHash: string(hash),
		Role:         string(models.RoleAdmin),
		Active:       true,
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.WithField("username", defaultAdminUsername).Warn("Created default admin user; change its password")
	return nil
}
