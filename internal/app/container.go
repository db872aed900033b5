package app

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/config"
	httpx "github.com/you/projectsvc/internal/http"
	"github.com/you/projectsvc/internal/http/handlers"
	"github.com/you/projectsvc/internal/http/middleware"
	"github.com/you/projectsvc/internal/infrastructure/audit"
	"github.com/you/projectsvc/internal/infrastructure/auth"
	"github.com/you/projectsvc/internal/infrastructure/database"
	"github.com/you/projectsvc/internal/infrastructure/repositories"
	"github.com/you/projectsvc/internal/metrics"
	"github.com/you/projectsvc/internal/services"
)

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	Enforcer    *casbin.Enforcer
	Metrics     *metrics.Metrics

	// Repositories
	UserRepo    domain.UserRepository
	SessionRepo domain.SessionRepository

	// Services
	PasswordSvc   domain.PasswordService
	TokenSvc      domain.TokenService
	AuditLogger   domain.AuditLogger
	Authenticator domain.CredentialAuthenticator
	AuthSvc       domain.AuthService
	UserSvc       domain.UserService
	PolicySvc     *services.PolicyServiceImpl
	Sweeper       *services.SessionSweeper
}

// NewContainer connects to Postgres and Redis and builds every dependency
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	db, err := database.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	rdb, err := database.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, dialTimeout)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	c, err := Build(cfg, db, rdb, logger)
	if err != nil {
		_ = rdb.Close()
		closeDB(db)
		return nil, err
	}
	return c, nil
}

// Build wires the service graph on top of already opened connections. It
// migrates the schema and seeds the configured RBAC rules.
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		RedisClient: rdb,
		Metrics:     metrics.New(),
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	c.initRepositories()
	if err := c.initServices(); err != nil {
		return nil, err
	}

	if err := c.initPolicies(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Container) initRepositories() {
	c.UserRepo = repositories.NewUserRepository(c.DB)
	c.SessionRepo = repositories.NewSessionRepository(c.RedisClient, c.Config.SessionMaxTTL)
}

func (c *Container) initServices() error {
	c.PasswordSvc = auth.NewPasswordService(c.Config.BcryptCost)
	c.TokenSvc = auth.NewJWTService(
		c.Config.JWTSecret,
		c.Config.JWTIssuer,
		c.Config.AccessTTL,
		c.Config.RefreshTTL,
	)
	c.AuditLogger = audit.NewZapAuditLogger(c.Logger)

	authenticator, err := services.NewCredentialAuthenticator(c.UserRepo, c.PasswordSvc)
	if err != nil {
		return err
	}
	c.Authenticator = authenticator
	c.UserSvc = services.NewUserService(c.UserRepo, c.PasswordSvc, c.AuditLogger)
	c.AuthSvc = services.NewAuthService(
		c.Authenticator,
		c.UserRepo,
		c.SessionRepo,
		c.TokenSvc,
		c.AuditLogger,
		c.Metrics,
		c.Logger,
		services.AuthConfig{
			SessionMaxTTL:     c.Config.SessionMaxTTL,
			BindToAccessToken: c.Config.SessionBindToAccess,
		},
	)
	c.Sweeper = services.NewSessionSweeper(c.SessionRepo, c.Config.SessionSweepInterval, c.Metrics, c.Logger)
	return nil
}

func (c *Container) initPolicies() error {
	e, err := auth.NewCasbinEnforcer(c.DB, c.Config.CasbinModelPath)
	if err != nil {
		return err
	}
	c.Enforcer = e
	c.PolicySvc = services.NewPolicyService(e)

	added, err := c.PolicySvc.Seed(c.Config.Policies)
	if err != nil {
		return fmt.Errorf("failed to seed policies: %w", err)
	}
	if added > 0 {
		c.Logger.Info("casbin: seeded policies", zap.Int("count", added))
	}
	return nil
}

// Router builds the HTTP handler for the container's services
func (c *Container) Router() *gin.Engine {
	h := httpx.Handlers{
		Auth:     handlers.NewAuthHandlers(c.AuthSvc, c.UserSvc),
		Sessions: handlers.NewSessionHandlers(c.AuthSvc),
		Policies: handlers.NewPolicyHandlers(c.PolicySvc),
	}
	jwtMW := middleware.NewAuthMW(c.AuthSvc)
	casbinMW := middleware.NewCasbinMW(c.PolicySvc, c.AuditLogger, c.Logger)

	return httpx.BuildRouter(h, jwtMW, casbinMW, c.Metrics, c.Logger)
}

// Close closes all connections
func (c *Container) Close() error {
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
