package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	APIPrefix string
	Origins   []string
}

type StorageConfig struct {
	DataDir       string
	DatabasePath  string
	VideoDir      string
	SubtitleDir   string
	ScreenshotDir string
	ExportDir     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // minutes
}

type RateLimitConfig struct {
	JobsPerHour    int
	ExportsPerHour int
	UploadsPerHour int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.api_prefix", "/api/")
	viper.SetDefault("server.origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	viper.SetDefault("storage.data_dir", ".")
	viper.SetDefault("storage.database", "database.db")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 60)
	viper.SetDefault("ratelimit.jobs_per_hour", 60)
	viper.SetDefault("ratelimit.exports_per_hour", 20)
	viper.SetDefault("ratelimit.uploads_per_hour", 50)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	dataDir := viper.GetString("storage.data_dir")

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			APIPrefix: viper.GetString("server.api_prefix"),
			Origins:   viper.GetStringSlice("server.origins"),
		},
		Storage: StorageConfig{
			DataDir:       dataDir,
			DatabasePath:  filepath.Join(dataDir, viper.GetString("storage.database")),
			VideoDir:      filepath.Join(dataDir, "uploads", "videos"),
			SubtitleDir:   filepath.Join(dataDir, "uploads", "subtitles"),
			ScreenshotDir: filepath.Join(dataDir, "uploads", "screenshots"),
			ExportDir:     filepath.Join(dataDir, "uploads", "exports"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour:    viper.GetInt("ratelimit.jobs_per_hour"),
			ExportsPerHour: viper.GetInt("ratelimit.exports_per_hour"),
			UploadsPerHour: viper.GetInt("ratelimit.uploads_per_hour"),
		},
	}

	return cfg, nil
}

// EnsureDirectories creates the upload tree if it does not exist yet.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.VideoDir,
		c.Storage.SubtitleDir,
		c.Storage.ScreenshotDir,
		c.Storage.ExportDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ProjectScreenshotDir returns the screenshot asset directory for a project.
func (c *Config) ProjectScreenshotDir(projectID string) string {
	return filepath.Join(c.Storage.ScreenshotDir, projectID)
}
