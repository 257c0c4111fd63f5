package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/razikuljoni/crud-express/internal/config"
	"github.com/razikuljoni/crud-express/internal/repository"
	"github.com/razikuljoni/crud-express/internal/repository/memory"
	mongorepo "github.com/razikuljoni/crud-express/internal/repository/mongo"
	"github.com/razikuljoni/crud-express/internal/repository/postgres"
	"github.com/razikuljoni/crud-express/pkg/database"
)

// Directory owns the connection behind the user directory selected by
// DIRECTORY_DRIVER.
type Directory struct {
	Users repository.UserRepository

	driver    string
	logger    *slog.Logger
	mongo     *database.MongoConnector
	mongoRepo *mongorepo.UserRepository
	pool      *pgxpool.Pool
}

// OpenDirectory connects to the configured directory. Pool metrics are
// registered on reg when the driver is postgres and reg is not nil.
func OpenDirectory(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*Directory, error) {
	d := &Directory{driver: cfg.DirectoryDriver, logger: logger}

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	switch cfg.DirectoryDriver {
	case config.DriverMongo:
		d.mongo = database.NewMongoConnector(cfg.Mongo(), logger)
		db, err := d.mongo.Connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		d.mongoRepo = mongorepo.NewUserRepository(db)
		d.Users = d.mongoRepo

	case config.DriverPostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", pgCfg.Host),
			slog.Int("port", pgCfg.Port),
			slog.String("database", pgCfg.DBName),
		)
		if reg != nil {
			if err := database.RegisterPoolMetrics(reg, pool, "users"); err != nil {
				pool.Close()
				return nil, fmt.Errorf("register pool metrics: %w", err)
			}
		}
		d.pool = pool
		d.Users = postgres.NewUserRepository(pool)

	case config.DriverMemory:
		logger.Warn("using in-memory user directory, data is lost on exit")
		d.Users = memory.NewUserRepository()

	default:
		return nil, fmt.Errorf("unknown directory driver %q", cfg.DirectoryDriver)
	}

	return d, nil
}

// Driver reports the configured driver name.
func (d *Directory) Driver() string {
	return d.driver
}

// Migrate ensures the mongo indexes or applies the postgres migrations.
// Both are idempotent.
func (d *Directory) Migrate(ctx context.Context) error {
	switch {
	case d.mongoRepo != nil:
		if err := d.mongoRepo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure mongo indexes: %w", err)
		}
		d.logger.Info("mongo indexes ensured")
	case d.pool != nil:
		if err := database.RunMigrations(ctx, d.pool, postgres.Migrations(), d.logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		d.logger.Info("database migrations completed")
	}
	return nil
}

// Ping checks the directory is reachable. The memory directory always is.
func (d *Directory) Ping(ctx context.Context) error {
	switch {
	case d.mongo != nil:
		return d.mongo.Ping(ctx)
	case d.pool != nil:
		ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "Ping", "SELECT 1")
		err := d.pool.Ping(ctx)
		end(err)
		return err
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (d *Directory) Close(ctx context.Context) error {
	if d.mongo != nil {
		return d.mongo.Close(ctx)
	}
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}
