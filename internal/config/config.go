package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Completion CompletionConfig `mapstructure:"completion"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSNString       string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.DSNString
	}
	return c.Path
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Dimensions int    `mapstructure:"dimensions"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type CompletionConfig struct {
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type EmbeddingConfig struct {
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type PipelineConfig struct {
	UploadDir        string        `mapstructure:"upload_dir"`
	TopK             int           `mapstructure:"top_k"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	ReadinessTimeout time.Duration `mapstructure:"readiness_timeout"`
}

type IngestConfig struct {
	Workers     int    `mapstructure:"workers"`
	BatchSize   int    `mapstructure:"batch_size"`
	CatalogPath string `mapstructure:"catalog_path"`
	ImageDir    string `mapstructure:"image_dir"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/catalog.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.dimensions", 768)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "catalog-images")
	v.SetDefault("completion.model", "llama-3.2-11b-vision-preview")
	v.SetDefault("completion.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("embedding.model", "text-embedding-004")
	v.SetDefault("embedding.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("pipeline.upload_dir", "./data/user_images")
	v.SetDefault("pipeline.top_k", 3)
	v.SetDefault("pipeline.call_timeout", 60*time.Second)
	v.SetDefault("pipeline.readiness_timeout", 30*time.Second)
	v.SetDefault("ingest.workers", 5)
	v.SetDefault("ingest.batch_size", 50)
	v.SetDefault("ingest.catalog_path", "./data/catalog.json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("qdrant.collection", "QDRANT_COLLECTION")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.use_ssl", "STORAGE_USE_SSL")
	v.BindEnv("completion.api_key", "GROQ_API_KEY")
	v.BindEnv("completion.base_url", "GROQ_BASE_URL")
	v.BindEnv("completion.model", "COMPLETION_MODEL")
	v.BindEnv("embedding.api_key", "GOOGLE_API_KEY")
	v.BindEnv("database.dsn", "DATABASE_DSN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required secrets and identifiers are present.
// A missing value is startup-fatal: the process must not serve requests.
func (c *Config) Validate() error {
	var missing []string
	if c.Completion.APIKey == "" {
		missing = append(missing, "GROQ_API_KEY")
	}
	if c.Embedding.APIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}
	if c.Qdrant.APIKey == "" {
		missing = append(missing, "QDRANT_API_KEY")
	}
	if c.Qdrant.Collection == "" {
		missing = append(missing, "QDRANT_COLLECTION")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
