package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the application's configuration values.
type Config struct {
	AppName string `mapstructure:"appname" json:"appname"`
	AppEnv  string `mapstructure:"appenv" json:"appenv"`
	AppPort uint16 `mapstructure:"appport" json:"appport"`
	GinMode string `mapstructure:"ginmode" json:"ginmode"`

	DBDriver string `mapstructure:"dbdriver" json:"dbdriver"`
	DBHost   string `mapstructure:"dbhost" json:"dbhost"`
	DBPort   uint16 `mapstructure:"dbport" json:"dbport"`
	DBName   string `mapstructure:"dbname" json:"dbname"`
	DBUser   string `mapstructure:"dbuser" json:"dbuser"`
	DBPass   string `mapstructure:"dbpass" json:"-"`

	StoreBackend string `mapstructure:"store_backend" json:"store_backend"`
	LevelDBPath  string `mapstructure:"leveldb_path" json:"leveldb_path"`

	RedisAddr string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPass string `mapstructure:"redis_pass" json:"-"`
	RedisDB   int    `mapstructure:"redis_db" json:"redis_db"`

	ImportCodeStrategy string `mapstructure:"import_code_strategy" json:"import_code_strategy"`

	BackupDir      string `mapstructure:"backup_dir" json:"backup_dir"`
	BackupSchedule string `mapstructure:"backup_schedule" json:"backup_schedule"`
	BackupKeep     int    `mapstructure:"backup_keep" json:"backup_keep"`

	AdminEmail      string        `mapstructure:"admin_email" json:"admin_email"`
	LogLevel        string        `mapstructure:"log_level" json:"log_level"`
	AccountCacheTTL time.Duration `mapstructure:"account_cache_ttl" json:"account_cache_ttl"`
}

// Store backends.
const (
	BackendSQL     = "sql"
	BackendLevelDB = "leveldb"
)

var defaults = map[string]interface{}{
	"appname":              "clinic-records",
	"appenv":               "development",
	"appport":              8080,
	"ginmode":              "debug",
	"dbdriver":             "mysql",
	"dbhost":               "localhost",
	"dbport":               3306,
	"dbname":               "clinic",
	"dbuser":               "root",
	"dbpass":               "",
	"store_backend":        BackendSQL,
	"leveldb_path":         "data/patients.db",
	"redis_addr":           "",
	"redis_pass":           "",
	"redis_db":             0,
	"import_code_strategy": "batch",
	"backup_dir":           "backups",
	"backup_schedule":      "",
	"backup_keep":          14,
	"admin_email":          "",
	"log_level":            "info",
	"account_cache_ttl":    "5m",
}

var config *Config
var once sync.Once

// LoadConfig loads the environment variables (from a .env file when one
// exists) and returns a singleton Config instance.
func LoadConfig() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			panic(fmt.Sprintf("load config: %v", err))
		}
		config = cfg
	})
	return config
}

// Load builds a fresh Config from the environment. Unset keys take their
// defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	return cfg, nil
}

// IsTestEnv reports whether the process runs with APPENV=test.
func IsTestEnv() bool {
	return os.Getenv("APPENV") == "test"
}

// ConnectDatabase opens the SQL database selected by DBDRIVER. With
// APPENV=test it opens a private in-memory SQLite database instead.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{TranslateError: true}

	if IsTestEnv() || cfg.AppEnv == "test" {
		gormCfg.Logger = logger.Default.LogMode(logger.Silent)
		dsn := fmt.Sprintf("file:clinic_%d?mode=memory&cache=shared", time.Now().UnixNano())
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(dialector, gormCfg)
}

func dialectorFor(cfg *Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "mysql":
		// Build the Data Source Name (DSN) using the configuration values.
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.DBName), nil
	}
	return nil, fmt.Errorf("unsupported DBDRIVER %q", cfg.DBDriver)
}
