package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/shadowdev/shadowbot/internal/database"
	"github.com/shadowdev/shadowbot/internal/database/migrations"
	"github.com/shadowdev/shadowbot/internal/redis"
	"github.com/shadowdev/shadowbot/internal/setup/config"
	"github.com/shadowdev/shadowbot/internal/setup/logger"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// App bundles the core dependencies of a process.
type App struct {
	Config       *config.Config  // Application configuration
	Logger       *zap.Logger     // Main application logger
	DBLogger     *zap.Logger     // Database-specific logger
	DB           database.Client // Database connection pool
	RedisManager *redis.Manager  // Redis connection manager
	LogManager   *logger.Manager // Log file management
}

// InitializeApp loads the configuration and opens every connection in
// dependency order.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging comes next so setup issues are captured
	logManager := logger.NewManager(logDir, &cfg.Common.Debug)

	mainLogger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Common.Redis, mainLogger)

	db, err := checkAndRunMigrations(ctx, &cfg.Common.PostgreSQL, dbLogger)
	if err != nil {
		redisManager.Close()
		return nil, err
	}

	mainLogger.Info("Application initialized",
		zap.String("sessionDir", logManager.SessionDir()))

	return &App{
		Config:       cfg,
		Logger:       mainLogger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		LogManager:   logManager,
	}, nil
}

// Cleanup shuts components down in reverse initialization order.
// Failures are logged so every component still gets its turn.
func (s *App) Cleanup() {
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Redis goes last since other components may still use it while closing
	s.RedisManager.Close()
}

// checkAndRunMigrations opens the database and asks before applying pending migrations.
func checkAndRunMigrations(ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger) (database.Client, error) {
	db, err := database.NewConnection(ctx, cfg, dbLogger, false)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(db.DB(), migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	unapplied := ms.Unapplied()
	if len(unapplied) == 0 {
		return db, nil
	}

	log.Printf("%d database migrations are pending. Would you like to run them now? (y/N)", len(unapplied))

	var response string

	_, _ = fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		_ = db.Close()
		log.Fatalf("Closing program due to incomplete migrations")
	}

	if err := database.Migrate(ctx, db.DB(), dbLogger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
