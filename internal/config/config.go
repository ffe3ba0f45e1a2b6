package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Azure       AzureOpenAIConfig `yaml:"azure" mapstructure:"azure"`
	DocIntel    DocIntelConfig    `yaml:"docintel" mapstructure:"docintel"`
	Harvest     HarvestConfig     `yaml:"harvest" mapstructure:"harvest"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Consistency ConsistencyConfig `yaml:"consistency" mapstructure:"consistency"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// AzureOpenAIConfig holds Azure OpenAI chat-completion settings.
type AzureOpenAIConfig struct {
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	Deployment string `yaml:"deployment" mapstructure:"deployment"`
	Key        string `yaml:"key" mapstructure:"key"`
	APIVersion string `yaml:"api_version" mapstructure:"api_version"`
}

// DocIntelConfig holds Azure Document Intelligence settings.
type DocIntelConfig struct {
	Endpoint         string `yaml:"endpoint" mapstructure:"endpoint"`
	Key              string `yaml:"key" mapstructure:"key"`
	Model            string `yaml:"model" mapstructure:"model"`
	PollIntervalSecs int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollTimeoutSecs  int    `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
}

// HarvestConfig holds the Harvest file-proxy settings. The proxy sits on an
// internal host with a self-signed certificate, hence the insecure toggle.
type HarvestConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Insecure    bool   `yaml:"insecure" mapstructure:"insecure"`
}

// StoreConfig configures the run-ledger database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PathsConfig holds filesystem roots for loan artifacts and guidelines.
type PathsConfig struct {
	LoanDocs   string `yaml:"loan_docs" mapstructure:"loan_docs"`
	Guidelines string `yaml:"guidelines" mapstructure:"guidelines"`
	Aggregate  string `yaml:"aggregate" mapstructure:"aggregate"`
}

// LLMConfig bounds chat-completion traffic.
type LLMConfig struct {
	MaxConcurrent     int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// ConsistencyConfig exposes the aggregation weights and classification
// thresholds as configuration defaults rather than hard-coded literals.
type ConsistencyConfig struct {
	HighWeight      float64 `yaml:"high_weight" mapstructure:"high_weight"`
	MediumWeight    float64 `yaml:"medium_weight" mapstructure:"medium_weight"`
	LowWeight       float64 `yaml:"low_weight" mapstructure:"low_weight"`
	HighThreshold   float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold" mapstructure:"medium_threshold"`
}

// BatchConfig configures multi-loan batch processing.
type BatchConfig struct {
	MaxConcurrentLoans int    `yaml:"max_concurrent_loans" mapstructure:"max_concurrent_loans"`
	AnalysisRuns       int    `yaml:"analysis_runs" mapstructure:"analysis_runs"`
	FailedQueuePath    string `yaml:"failed_queue_path" mapstructure:"failed_queue_path"`
}

// ServerConfig configures the artifact viewer server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOANPROC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so the env bindings register.
	v.SetDefault("azure.endpoint", "")
	v.SetDefault("azure.deployment", "")
	v.SetDefault("azure.key", "")
	v.SetDefault("azure.api_version", "2024-02-15-preview")
	v.SetDefault("docintel.endpoint", "")
	v.SetDefault("docintel.key", "")
	v.SetDefault("docintel.model", "prebuilt-layout")
	v.SetDefault("docintel.poll_interval_secs", 2)
	v.SetDefault("docintel.poll_timeout_secs", 300)
	v.SetDefault("harvest.base_url", "https://harvestapi.firstkeyholdings.net:60000")
	v.SetDefault("harvest.timeout_secs", 60)
	v.SetDefault("harvest.insecure", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "loanproc.db")
	v.SetDefault("paths.loan_docs", "loan_docs")
	v.SetDefault("paths.guidelines", "guidelines")
	v.SetDefault("paths.aggregate", "aggregate_data")
	v.SetDefault("llm.max_concurrent", 5)
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("consistency.high_weight", 1.0)
	v.SetDefault("consistency.medium_weight", 0.7)
	v.SetDefault("consistency.low_weight", 0.4)
	v.SetDefault("consistency.high_threshold", 0.8)
	v.SetDefault("consistency.medium_threshold", 0.5)
	v.SetDefault("batch.max_concurrent_loans", 5)
	v.SetDefault("batch.analysis_runs", 3)
	v.SetDefault("batch.failed_queue_path", "failed_loans.jsonl")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
