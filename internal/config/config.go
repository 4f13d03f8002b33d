package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/damoang/angple-forum/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	JWT         JWTConfig         `yaml:"jwt"`
	CORS        CORSConfig        `yaml:"cors"`
	Forum       ForumConfig       `yaml:"forum"`
	Presence    PresenceConfig    `yaml:"presence"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Port            int    `yaml:"port"`
	Mode            string `yaml:"mode"` // debug, release, test
	Env             string `yaml:"env"`  // local, development, staging, production
	ShutdownTimeout int    `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // mysql, sqlite
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	Path            string `yaml:"path"` // sqlite file
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
}

// GetDSN returns the MySQL DSN
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"`
	RefreshIn int    `yaml:"refresh_in"`
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"`
}

// ForumConfig forum engine limits and moderator settings
type ForumConfig struct {
	TopicsPerPage     int      `yaml:"topics_per_page"`
	MessagesPerPage   int      `yaml:"messages_per_page"`
	MaxPageSize       int      `yaml:"max_page_size"`
	MaxPollChoices    int      `yaml:"max_poll_choices"`
	ModeratorIDs      []uint64 `yaml:"moderator_ids"`
	AdminLevel        int      `yaml:"admin_level"`
	ReadOnlyBoards    []uint64 `yaml:"read_only_boards"`
	ModeratorCacheSec int      `yaml:"moderator_cache_seconds"`
}

// PresenceConfig "who is online" settings
type PresenceConfig struct {
	Store         string `yaml:"store"` // memory, gorm, redis
	WindowMinutes int    `yaml:"window_minutes"`
	SweepSeconds  int    `yaml:"sweep_seconds"`
	WorkerPool    int    `yaml:"worker_pool"`
}

// Window returns the online window duration
func (p PresenceConfig) Window() time.Duration {
	return time.Duration(p.WindowMinutes) * time.Minute
}

// SweepInterval returns the sweep interval
func (p PresenceConfig) SweepInterval() time.Duration {
	return time.Duration(p.SweepSeconds) * time.Second
}

type MaintenanceConfig struct {
	ReconcileMinutes int `yaml:"reconcile_minutes"` // 0 disables scheduled reconciliation
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// IsDevelopment reports whether the server runs in a local/dev environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "" || c.Server.Env == "local" || c.Server.Env == "development" || c.Server.Env == "dev"
}

// Load reads a YAML file, expands ${VAR} placeholders and applies defaults.
// A missing file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal([]byte(expandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Server.Env = env
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8082
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Path == "" {
		c.Database.Path = "forum.db"
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 300
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.JWT.ExpiresIn == 0 {
		c.JWT.ExpiresIn = 900
	}
	if c.JWT.RefreshIn == 0 {
		c.JWT.RefreshIn = 604800
	}
	if c.Forum.TopicsPerPage == 0 {
		c.Forum.TopicsPerPage = 20
	}
	if c.Forum.MessagesPerPage == 0 {
		c.Forum.MessagesPerPage = 15
	}
	if c.Forum.MaxPageSize == 0 {
		c.Forum.MaxPageSize = 100
	}
	if c.Forum.MaxPollChoices == 0 {
		c.Forum.MaxPollChoices = 20
	}
	if c.Forum.AdminLevel == 0 {
		c.Forum.AdminLevel = 10
	}
	if c.Forum.ModeratorCacheSec == 0 {
		c.Forum.ModeratorCacheSec = 60
	}
	if c.Presence.Store == "" {
		c.Presence.Store = "memory"
	}
	if c.Presence.WindowMinutes == 0 {
		c.Presence.WindowMinutes = 15
	}
	if c.Presence.SweepSeconds == 0 {
		c.Presence.SweepSeconds = 60
	}
	if c.Presence.WorkerPool == 0 {
		c.Presence.WorkerPool = 64
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnv replaces ${VAR} and ${VAR:-default}
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := envPattern.FindStringSubmatch(m)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[2]
	})
}

// LogResolved prints the effective configuration with secrets masked
func LogResolved(cfg *Config) {
	logger.Info("config: env=%s port=%d mode=%s", cfg.Server.Env, cfg.Server.Port, cfg.Server.Mode)
	logger.Info("config: database driver=%s host=%s:%d db=%s user=%s password=%s",
		cfg.Database.Driver, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, cfg.Database.User, mask(cfg.Database.Password))
	logger.Info("config: redis enabled=%v host=%s:%d db=%d", cfg.Redis.Enabled, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB)
	logger.Info("config: jwt secret=%s expires_in=%ds", mask(cfg.JWT.Secret), cfg.JWT.ExpiresIn)
	logger.Info("config: presence store=%s window=%dm sweep=%ds", cfg.Presence.Store, cfg.Presence.WindowMinutes, cfg.Presence.SweepSeconds)
	logger.Info("config: moderators=%v read_only_boards=%v reconcile=%dm",
		cfg.Forum.ModeratorIDs, cfg.Forum.ReadOnlyBoards, cfg.Maintenance.ReconcileMinutes)
}

func mask(s string) string {
	if s == "" {
		return "(empty)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****"
}
