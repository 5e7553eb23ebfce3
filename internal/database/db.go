package database

import (
	"context"
	"creator-coach/config"
	"creator-coach/internal/database/model"
	"creator-coach/pkg/logger"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

var (
	DB *gorm.DB
	mu sync.Mutex
)

// connect opens the DB, registers read replicas and applies pool configuration
func connect() (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if config.Cfg.LogLevel == config.Debug {
		gcfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}
	db, err := gorm.Open(mysql.Open(config.Cfg.Dns), gcfg)
	if err != nil {
		return nil, err
	}

	if len(config.Cfg.Database.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(config.Cfg.Database.Replicas))
		for _, dsn := range config.Cfg.Database.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		// chunk listing on the serving path goes to replicas, ingestion commits stay on the source
		if err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(config.Cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.Cfg.Database.MaxOpenConns)
	lifetime := time.Duration(config.Cfg.Database.MaxLifetime) * time.Minute
	sqlDB.SetConnMaxIdleTime(lifetime)
	sqlDB.SetConnMaxLifetime(lifetime)

	return db, nil
}

// ensureConnection verifies DB connectivity and reconnects if needed
func ensureConnection() error {
	mu.Lock()
	defer mu.Unlock()

	if DB == nil {
		newDB, err := connect()
		if err != nil {
			logger.Error(err, "database: failed to connect")
			return err
		}
		DB = newDB
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		logger.Error(err, "database: failed to get database connection")
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		newDB, err := connect()
		if err != nil {
			logger.Error(err, "database: failed to reconnect")
			return err
		}
		DB = newDB
	}
	return nil
}

// GetDB returns a healthy *gorm.DB, attempting reconnect if necessary
func GetDB() (*gorm.DB, error) {
	if err := ensureConnection(); err != nil {
		return nil, err
	}
	return DB, nil
}

// Migrate creates or updates the documents and chunks tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Document{}, &model.Chunk{})
}

// Ping checks the primary connection, reconnecting first when it was lost.
func Ping(ctx context.Context) error {
	db, err := GetDB()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
