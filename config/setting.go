package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3/log"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type serverConfig struct {
	Port           int    `koanf:"port" validate:"required"`
	Mode           string `koanf:"mode" validate:"required"`
	Concurrency    int    `koanf:"concurrency" validate:"required,min=1"`
	BodyLimit      int    `koanf:"body_limit" validate:"required,min=1"`
	AppName        string `koanf:"app_name" validate:"required"`
	RequestTimeout int    `koanf:"request_timeout_seconds" validate:"min=0"`
}

type logLevel string

const (
	Debug logLevel = "debug"
	Info  logLevel = "info"
	Warn  logLevel = "warn"
	Error logLevel = "error"
	Fatal logLevel = "fatal"
	Panic logLevel = "panic"
)

type Module string

const (
	ModuleMilvus    Module = "milvus"
	ModuleIngest    Module = "ingest"
	ModuleDatabase  Module = "database"
	ModuleOpenAI    Module = "openai"
	ModuleS3        Module = "s3"
	ModuleServer    Module = "server"
	ModuleSetting   Module = "setting"
	ModuleDocuments Module = "documents"
	ModuleAdvice    Module = "advice"
	ModuleRetriever Module = "retriever"
	ModuleQuery     Module = "query"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type databaseConfig struct {
	Driver       string   `koanf:"driver" validate:"required,oneof=mysql memory"`
	Host         string   `koanf:"host" validate:"required_if=Driver mysql"`
	Port         int      `koanf:"port" validate:"required_if=Driver mysql"`
	User         string   `koanf:"user" validate:"required_if=Driver mysql"`
	Password     string   `koanf:"password"`
	Name         string   `koanf:"name" validate:"required_if=Driver mysql"`
	MaxIdleConns int      `koanf:"max_idle_conns" validate:"min=0"`
	MaxOpenConns int      `koanf:"max_open_conns" validate:"min=0"`
	MaxLifetime  int      `koanf:"max_lifetime" validate:"min=0"`
	Replicas     []string `koanf:"replicas"`
	AutoMigrate  bool     `koanf:"auto_migrate"`
}

type openaiConfig struct {
	Key            string `koanf:"key"`
	BaseURL        string `koanf:"base_url"`
	Model          string `koanf:"model" validate:"required"`
	EmbeddingModel string `koanf:"embedding_model" validate:"required"`
	EmbeddingDim   int    `koanf:"embedding_dim" validate:"required,min=1"`
}

type milvusConfig struct {
	Enabled         bool            `koanf:"enabled"`
	Address         string          `koanf:"address" validate:"required_if=Enabled true"`
	Collection      string          `koanf:"collection" validate:"required_if=Enabled true"`
	IndexHNSWConfig indexHNSWConfig `koanf:"index_hnsw_config"`
}

type indexHNSWConfig struct {
	MetricType     string `koanf:"metric_type" validate:"required"`
	M              int    `koanf:"m" validate:"required"`
	EfConstruction int    `koanf:"ef_construction" validate:"required"`
	Ef             int    `koanf:"ef"`
}

type s3Config struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
	Bucket    string `koanf:"bucket" validate:"required_if=Enabled true"`
}

type ingestConfig struct {
	MaxFileBytes     int64   `koanf:"max_file_bytes" validate:"required,min=1"`
	MaxWords         int     `koanf:"max_words" validate:"required,min=1"`
	OverlapWords     int     `koanf:"overlap_words" validate:"min=0"`
	MaxChunks        int     `koanf:"max_chunks" validate:"required,min=1"`
	EmbedConcurrency int     `koanf:"embed_concurrency" validate:"min=0"`
	EmbedRPS         float64 `koanf:"embed_rps" validate:"min=0"`
	TimeoutSeconds   int     `koanf:"timeout_seconds" validate:"min=0"`
}

type adviceConfig struct {
	TitlePrefix string `koanf:"title_prefix" validate:"required"`
	ListLimit   int    `koanf:"list_limit" validate:"required,min=1"`
}

type config struct {
	Server   serverConfig   `koanf:"server"`
	Database databaseConfig `koanf:"database"`
	OpenAI   openaiConfig   `koanf:"openai"`
	LogLevel logLevel       `koanf:"log_level"`
	Dns      string         `koanf:"dns"`
	S3       s3Config       `koanf:"s3"`
	Milvus   milvusConfig   `koanf:"milvus"`
	Ingest   ingestConfig   `koanf:"ingest"`
	Advice   adviceConfig   `koanf:"advice"`
}

func buildMySQLDSN(cfg databaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)
}

var defaultConfig = config{
	Server: serverConfig{
		Port:           8000,
		Mode:           "release",
		Concurrency:    256,
		BodyLimit:      12 * 1024 * 1024,
		AppName:        "creator-coach",
		RequestTimeout: 120,
	},
	Database: databaseConfig{
		Driver:       DriverMySQL,
		Host:         "127.0.0.1",
		Port:         3306,
		User:         "root",
		Password:     "",
		Name:         "coach",
		MaxIdleConns: 5,
		MaxOpenConns: 20,
		MaxLifetime:  30,
		AutoMigrate:  true,
	},
	OpenAI: openaiConfig{
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		EmbeddingDim:   1536,
	},
	LogLevel: Info,
	S3: s3Config{
		Endpoint:  "http://localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
		Bucket:    "uploads",
	},
	Milvus: milvusConfig{
		Address:    "localhost:19530",
		Collection: "advice_chunks",
		IndexHNSWConfig: indexHNSWConfig{
			MetricType:     "COSINE",
			M:              16,
			EfConstruction: 200,
			Ef:             64,
		},
	},
	Ingest: ingestConfig{
		MaxFileBytes:     10 * 1024 * 1024,
		MaxWords:         260,
		OverlapWords:     40,
		MaxChunks:        120,
		EmbedConcurrency: 1,
		TimeoutSeconds:   60,
	},
	Advice: adviceConfig{
		TitlePrefix: "advice",
		ListLimit:   200,
	},
}

var (
	Cfg  = defaultConfig
	once sync.Once
)

func init() {
	once.Do(func() {
		if err := Init("config.yaml"); err != nil {
			log.Error(err.Error())
		}
	})
}

// Init resets Cfg to defaults and layers the yaml file at path and APP_ env vars on top.
// A missing file is not an error.
func Init(path string) error {
	k := koanf.New(".")
	validate := validator.New()

	Cfg = defaultConfig

	if e := k.Load(file.Provider(path), yaml.Parser()); e != nil && !os.IsNotExist(e) {
		return fmt.Errorf("%v: load %s: %w", ModuleSetting, path, e)
	}

	// env APP_INGEST__MAX_WORDS -> ingest.max_words
	if e := k.Load(env.Provider("APP_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "APP_")), "__", ".")
	}), nil); e != nil {
		return fmt.Errorf("%v: load env: %w", ModuleSetting, e)
	}

	if e := k.Unmarshal("", &Cfg); e != nil {
		return fmt.Errorf("%v: unmarshal: %w", ModuleSetting, e)
	}

	if Cfg.Dns == "" && Cfg.Database.Driver == DriverMySQL {
		Cfg.Dns = buildMySQLDSN(Cfg.Database)
	}

	if err := validate.Struct(Cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("%v Config validation failed:\n", ModuleSetting))

			for _, e := range errs {
				sb.WriteString(
					fmt.Sprintf("  • %s: failed '%s' (value: %v)\n", e.Field(), e.Tag(), e.Value()),
				)
			}

			return fmt.Errorf("%s", sb.String())
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
