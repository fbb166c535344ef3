// internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Pipeline PipelineConfig
	Report   ReportConfig
	Drive    DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

// DatabaseConfig selects the SQL backend. URL wins over the host fields; with
// neither set the sqlite file at SQLitePath is used.
type DatabaseConfig struct {
	Driver      string
	URL         string
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SQLitePath  string
	AutoMigrate bool
}

type StorageConfig struct {
	Backend   string // local, memory, minio, sevalla
	LocalDir  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

type CacheConfig struct {
	Enabled             bool
	RedisURL            string
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	DashboardTTLSeconds int
}

type PipelineConfig struct {
	SafetyFactor   float64
	ChartChunkSize int
	MaxUploadMB    int64
	WorkerCount    int
}

type ReportConfig struct {
	ChromeRemoteURL string
	NoSandbox       bool
	Timeout         time.Duration
}

type DriveConfig struct {
	CredentialsJSON string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults(viper.GetViper())

		// Read from environment variables
		viper.AutomaticEnv()

		instance = fromViper(viper.GetViper())

		if instance.Storage.Backend == "local" {
			ensureDir(instance.Storage.LocalDir)
		}
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DB_DRIVER", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "inventariate")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "./data/inventariate.db")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "./data/artifacts")
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "inventariate")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_PREFIX", "")
	v.SetDefault("STORAGE_USE_SSL", true)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_DASHBOARD_TTL_SECONDS", 300)

	v.SetDefault("PIPELINE_SAFETY_FACTOR", 0.05)
	v.SetDefault("PIPELINE_CHART_CHUNK_SIZE", 10)
	v.SetDefault("PIPELINE_MAX_UPLOAD_MB", 20)
	v.SetDefault("PIPELINE_WORKER_COUNT", 4)

	v.SetDefault("REPORT_CHROME_REMOTE_URL", "")
	v.SetDefault("REPORT_NO_SANDBOX", true)
	v.SetDefault("REPORT_TIMEOUT", "30s")

	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:      v.GetString("DB_DRIVER"),
			URL:         v.GetString("DATABASE_URL"),
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetString("DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			DBName:      v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
			SQLitePath:  v.GetString("DB_SQLITE_PATH"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		Storage: StorageConfig{
			Backend:   v.GetString("STORAGE_BACKEND"),
			LocalDir:  v.GetString("STORAGE_LOCAL_DIR"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Cache: CacheConfig{
			Enabled:             v.GetBool("CACHE_ENABLED"),
			RedisURL:            v.GetString("REDIS_URL"),
			RedisHost:           v.GetString("REDIS_HOST"),
			RedisPort:           v.GetString("REDIS_PORT"),
			RedisPassword:       v.GetString("REDIS_PASSWORD"),
			RedisDB:             v.GetInt("REDIS_DB"),
			DashboardTTLSeconds: v.GetInt("CACHE_DASHBOARD_TTL_SECONDS"),
		},
		Pipeline: PipelineConfig{
			SafetyFactor:   v.GetFloat64("PIPELINE_SAFETY_FACTOR"),
			ChartChunkSize: v.GetInt("PIPELINE_CHART_CHUNK_SIZE"),
			MaxUploadMB:    v.GetInt64("PIPELINE_MAX_UPLOAD_MB"),
			WorkerCount:    v.GetInt("PIPELINE_WORKER_COUNT"),
		},
		Report: ReportConfig{
			ChromeRemoteURL: v.GetString("REPORT_CHROME_REMOTE_URL"),
			NoSandbox:       v.GetBool("REPORT_NO_SANDBOX"),
			Timeout:         v.GetDuration("REPORT_TIMEOUT"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
		},
	}
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
