package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"synagogue/internal/config"
	"synagogue/internal/db"
	"synagogue/internal/logging"
	"synagogue/internal/model"
	"synagogue/internal/repository"
)

const defaultSynagogueName = "Main Synagogue"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting seed script")

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.Migrate(gormDB, false, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations completed")

	ctx := context.Background()

	created, err := seedAdmin(ctx, repository.NewUserRepository(gormDB), cfg)
	if err != nil {
		logger.Fatal("failed to seed admin", zap.Error(err))
	}
	if created {
		logger.Info("admin account created", zap.String("phone", cfg.SeedAdminPhone))
	} else {
		logger.Info("admin account already present", zap.String("phone", cfg.SeedAdminPhone))
	}

	created, err = seedSynagogue(ctx, repository.NewSynagogueRepository(gormDB), cfg)
	if err != nil {
		logger.Fatal("failed to seed synagogue", zap.Error(err))
	}
	if created {
		logger.Info("default synagogue created")
	}

	logger.Info("seed completed successfully")
}

// seedAdmin creates the bootstrap admin unless a user with that phone exists.
// An existing user with the phone is promoted to admin.
func seedAdmin(ctx context.Context, repo repository.UserRepository, cfg *config.Config) (bool, error) {
	if cfg.SeedAdminPhone == "" || cfg.SeedAdminPassword == "" {
		return false, fmt.Errorf("SEED_ADMIN_PHONE and SEED_ADMIN_PASSWORD are required")
	}

	existing, err := repo.FindByPhone(ctx, cfg.SeedAdminPhone)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("error checking admin %s: %w", cfg.SeedAdminPhone, err)
	}
	if existing != nil {
		if existing.Role != model.RoleAdmin {
			if err := repo.UpdateRole(ctx, existing.ID, model.RoleAdmin); err != nil {
				return false, fmt.Errorf("error promoting %s: %w", cfg.SeedAdminPhone, err)
			}
		}
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SeedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	first, last := splitName(cfg.SeedAdminName)
	admin := &model.User{
		Phone:        cfg.SeedAdminPhone,
		FirstName:    first,
		LastName:     last,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return false, fmt.Errorf("error creating admin: %w", err)
	}
	return true, nil
}

// seedSynagogue adds a default synagogue when none exist yet.
func seedSynagogue(ctx context.Context, repo repository.SynagogueRepository, cfg *config.Config) (bool, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return false, fmt.Errorf("error listing synagogues: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	synagogue := &model.Synagogue{
		Name:      defaultSynagogueName,
		GeonameID: cfg.DefaultGeonameID,
		Prayers: []model.PrayerTime{
			{Name: "Shacharit", Time: "06:30", Days: []string{"sun", "mon", "tue", "wed", "thu", "fri"}},
			{Name: "Mincha", Time: "13:30", Days: []string{"sun", "mon", "tue", "wed", "thu"}},
			{Name: "Shacharit", Time: "08:30", Days: []string{"sat"}},
		},
	}
	if err := repo.Create(ctx, synagogue); err != nil {
		return false, fmt.Errorf("error creating synagogue: %w", err)
	}
	return true, nil
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "Admin", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
