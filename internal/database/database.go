package database

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wrenfield/vintrack/api/internal/config"
	"github.com/wrenfield/vintrack/api/internal/models"
)

// Database wraps the GORM handle and provides lifecycle operations.
type Database struct {
	DB *gorm.DB
}

// New opens a database connection for the configured driver, tunes the
// underlying connection pool, and verifies connectivity with a ping.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.PoolMin)
	sqlDB.SetMaxOpenConns(cfg.PoolMax)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Migrate creates or updates the schema for every entity.
func (d *Database) Migrate() error {
	err := d.DB.AutoMigrate(
		&models.WineColour{},
		&models.Variety{},
		&models.Status{},
		&models.Vineyard{},
		&models.ManagementUnit{},
		&models.GrowthStage{},
		&models.ChemicalGroup{},
		&models.Chemical{},
		&models.SprayProgram{},
		&models.Spray{},
		&models.SprayChemical{},
		&models.User{},
		&models.SprayRecord{},
		&models.SprayRecordChemical{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping checks if the database connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close gracefully closes the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
