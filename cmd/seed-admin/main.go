package main

import (
	"context"
	"errors"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/config"
	"github.com/you/projectsvc/internal/infrastructure/audit"
	"github.com/you/projectsvc/internal/infrastructure/auth"
	"github.com/you/projectsvc/internal/infrastructure/database"
	"github.com/you/projectsvc/internal/infrastructure/repositories"
	"github.com/you/projectsvc/internal/logging"
	"github.com/you/projectsvc/internal/services"
)

// Creates the first admin account. Credentials come from ADMIN_EMAIL and
// ADMIN_PASSWORD; an existing account is left untouched.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	db, err := database.Open(cfg.DSN)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("failed to run auto-migration", zap.Error(err))
	}

	users := services.NewUserService(
		repositories.NewUserRepository(db),
		auth.NewPasswordService(cfg.BcryptCost),
		audit.NewZapAuditLogger(logger),
	)
	user, err := users.Register(context.Background(), domain.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      domain.RoleAdmin,
	})
	switch {
	case errors.Is(err, domain.ErrUserAlreadyExists):
		logger.Info("admin account already exists", zap.String("email", email))
	case err != nil:
		logger.Fatal("failed to create admin account", zap.Error(err))
	default:
		logger.Info("admin account created", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	}
}
