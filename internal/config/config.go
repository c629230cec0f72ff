package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider names accepted in PROVIDER_ORDER.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
)

type Config struct {
	HTTPAddr    string
	CORSOrigins []string
	// HTTPH2C serves cleartext HTTP/2 for proxies that speak it upstream.
	HTTPH2C bool

	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	JWTSecret string
	TokenTTL  time.Duration

	LogLevel  string
	LogFormat string

	ProviderOrder   []string
	ProviderTimeout time.Duration

	OpenAI      ProviderConfig
	HuggingFace ProviderConfig
	Anthropic   ProviderConfig

	// AllowOrphanEdits lets any authenticated user edit sub-goals of
	// sessions that have no owner.
	AllowOrphanEdits bool
	HistoryLimit     int
	HistoryCacheTTL  time.Duration
}

type ProviderConfig struct {
	Enabled bool
	APIKey  string
	Model   string
	BaseURL string
}

// Load reads configuration from defaults, an optional config file, a .env
// file in the working directory and the environment, in increasing order
// of precedence.
func Load(configFile string) (*Config, error) {
	// .env is optional; real environment wins over it
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		HTTPAddr:    v.GetString("http_addr"),
		CORSOrigins: splitList(v.GetString("cors_origins")),
		HTTPH2C:     v.GetBool("http_h2c"),

		DBDriver:   strings.ToLower(v.GetString("db_driver")),
		DBHost:     v.GetString("db_host"),
		DBPort:     v.GetInt("db_port"),
		DBUser:     v.GetString("db_user"),
		DBPassword: v.GetString("db_password"),
		DBName:     v.GetString("db_name"),
		DBSSLMode:  v.GetString("db_sslmode"),
		SQLitePath: v.GetString("sqlite_path"),

		JWTSecret: v.GetString("jwt_secret"),
		TokenTTL:  v.GetDuration("token_ttl"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		ProviderOrder:   splitList(strings.ToLower(v.GetString("provider_order"))),
		ProviderTimeout: v.GetDuration("provider_timeout"),

		OpenAI: ProviderConfig{
			Enabled: v.GetBool("use_openai"),
			APIKey:  v.GetString("openai_api_key"),
			Model:   v.GetString("openai_model"),
			BaseURL: v.GetString("openai_base_url"),
		},
		HuggingFace: ProviderConfig{
			Enabled: v.GetBool("use_hf"),
			APIKey:  v.GetString("hf_api_key"),
			Model:   v.GetString("hf_model"),
			BaseURL: v.GetString("hf_base_url"),
		},
		Anthropic: ProviderConfig{
			Enabled: v.GetBool("use_anthropic"),
			APIKey:  v.GetString("anthropic_api_key"),
			Model:   v.GetString("anthropic_model"),
			BaseURL: v.GetString("anthropic_base_url"),
		},

		AllowOrphanEdits: v.GetBool("allow_orphan_edits"),
		HistoryLimit:     v.GetInt("history_limit"),
		HistoryCacheTTL:  v.GetDuration("history_cache_ttl"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("http_h2c", false)

	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("sqlite_path", "data/goals.db")

	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 30*24*time.Hour)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("provider_order", "huggingface,openai,anthropic")
	v.SetDefault("provider_timeout", 10*time.Second)

	v.SetDefault("use_openai", false)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", "gpt-4.1-mini")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")

	v.SetDefault("use_hf", false)
	v.SetDefault("hf_api_key", "")
	v.SetDefault("hf_model", "Qwen/Qwen2.5-VL-7B-Instruct")
	v.SetDefault("hf_base_url", "https://router.huggingface.co/v1")

	v.SetDefault("use_anthropic", false)
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("anthropic_base_url", "")

	v.SetDefault("allow_orphan_edits", false)
	v.SetDefault("history_limit", 50)
	v.SetDefault("history_cache_ttl", 30*time.Second)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	for _, name := range c.ProviderOrder {
		switch name {
		case ProviderHuggingFace, ProviderOpenAI, ProviderAnthropic:
		default:
			errs = append(errs, fmt.Errorf("unknown provider %q in PROVIDER_ORDER", name))
		}
	}

	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// Provider returns the settings for a provider name from PROVIDER_ORDER.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case ProviderHuggingFace:
		return c.HuggingFace, true
	case ProviderOpenAI:
		return c.OpenAI, true
	case ProviderAnthropic:
		return c.Anthropic, true
	}
	return ProviderConfig{}, false
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.ConnString()
}

func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
