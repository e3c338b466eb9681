package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort     string `yaml:"port"`
	DatabaseType   string `yaml:"database_type"`
	DatabaseURL    string `yaml:"database_url"`
	DatabasePath   string `yaml:"database_path"`
	MigrationsPath string `yaml:"migrations_path"`

	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	InvitationTTL  time.Duration `yaml:"invitation_ttl"`
	LoginRateLimit int           `yaml:"login_rate_limit"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
	Debug    bool   `yaml:"debug"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	AWSRegion    string `yaml:"aws_region"`
	SESFromEmail string `yaml:"ses_from_email"`
	SESFromName  string `yaml:"ses_from_name"`
	AppBaseURL   string `yaml:"app_base_url"`

	BackupS3Bucket    string `yaml:"backup_s3_bucket"`
	BackupS3Endpoint  string `yaml:"backup_s3_endpoint"`
	BackupS3PathStyle bool   `yaml:"backup_s3_path_style"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		ServerPort:     "8080",
		DatabaseType:   "sqlite",
		DatabasePath:   "./visitas.db",
		MigrationsPath: "./migrations",
		TokenTTL:       7 * 24 * time.Hour,
		InvitationTTL:  7 * 24 * time.Hour,
		LoginRateLimit: 10,
		LogLevel:       "info",
		NATSSubject:    "visitas.timeline",
		AWSRegion:      "us-east-1",
		SESFromName:    "Visitas",
		AppBaseURL:     "http://localhost:8080",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence. A .env file in the
// working directory, if present, is loaded into the environment first and
// never overrides variables that are already set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from file into the environment. A missing
// file is not an error.
func LoadDotEnv(file string) error {
	if _, err := os.Stat(file); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("failed to load %s: %w", file, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerPort = getEnv("PORT", c.ServerPort)
	c.DatabaseType = getEnv("DATABASE_TYPE", c.DatabaseType)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.MigrationsPath = getEnv("MIGRATIONS_PATH", c.MigrationsPath)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.TokenTTL = getEnvDuration("TOKEN_TTL", c.TokenTTL)
	c.InvitationTTL = getEnvDuration("INVITATION_TTL", c.InvitationTTL)
	c.LoginRateLimit = getEnvInt("LOGIN_RATE_LIMIT", c.LoginRateLimit)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogJSON = getEnvBool("LOG_JSON", c.LogJSON)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSSubject = getEnv("NATS_SUBJECT", c.NATSSubject)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.SESFromEmail = getEnv("SES_FROM_EMAIL", c.SESFromEmail)
	c.SESFromName = getEnv("SES_FROM_NAME", c.SESFromName)
	c.AppBaseURL = getEnv("APP_BASE_URL", c.AppBaseURL)
	c.BackupS3Bucket = getEnv("BACKUP_S3_BUCKET", c.BackupS3Bucket)
	c.BackupS3Endpoint = getEnv("BACKUP_S3_ENDPOINT", c.BackupS3Endpoint)
	c.BackupS3PathStyle = getEnvBool("BACKUP_S3_PATH_STYLE", c.BackupS3PathStyle)
}

// Validate checks that the configuration can be used to start the server
func (c *Config) Validate() error {
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "sqlite-purego", "postgres", "postgresql", "pgx", "mysql", "":
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
	if c.JWTSecret == "" && !c.Debug {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	return nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
