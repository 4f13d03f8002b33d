package main

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/damoang/angple-forum/internal/config"
	"github.com/damoang/angple-forum/internal/presence"
	pkglogger "github.com/damoang/angple-forum/pkg/logger"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const dbConnectTimeout = 30 * time.Second

// openDB connects to the configured database, retrying while it comes up
func openDB(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.Database)
	if err != nil {
		return nil, err
	}

	logLevel := gormlogger.Warn
	if cfg.Server.Mode == "debug" {
		logLevel = gormlogger.Info
	}

	var db *gorm.DB
	connect := func() error {
		var openErr error
		db, openErr = gorm.Open(dialector, &gorm.Config{
			Logger:         gormlogger.Default.LogMode(logLevel),
			TranslateError: true,
		})
		if openErr != nil {
			pkglogger.Warn("DB 연결 실패, 재시도: %v", openErr)
		}
		return openErr
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = dbConnectTimeout
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite 는 단일 writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}

	pkglogger.Info("Connected to %s", cfg.Database.Driver)
	return db, nil
}

func dialectorFor(d config.DatabaseConfig) (gorm.Dialector, error) {
	switch d.Driver {
	case "mysql":
		mysqlCfg, err := mysqldriver.ParseDSN(d.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("DSN 파싱 실패: %w", err)
		}
		if mysqlCfg.Params == nil {
			mysqlCfg.Params = map[string]string{}
		}
		mysqlCfg.Params["time_zone"] = "'+00:00'"
		return mysql.Open(mysqlCfg.FormatDSN()), nil
	case "sqlite":
		return sqlite.Open(d.Path + "?_foreign_keys=on&_busy_timeout=5000"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", d.Driver)
	}
}

// newPresenceStore picks the online-registry backend; redis falls back to gorm when unavailable
func newPresenceStore(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) presence.Store {
	switch cfg.Presence.Store {
	case "redis":
		if redisClient != nil {
			return presence.NewRedisStore(redisClient)
		}
		pkglogger.Warn("presence store redis requested without Redis, using database")
		return presence.NewGormStore(db)
	case "gorm", "database":
		return presence.NewGormStore(db)
	default:
		return presence.NewMemoryStore()
	}
}
