package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/warp/fund-returns/annotate"
	"github.com/warp/fund-returns/fund"
	"github.com/warp/fund-returns/report"
	"github.com/warp/fund-returns/store/sqlite"
)

type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Log       LogConfig           `mapstructure:"log"`
	DB        sqlite.Config       `mapstructure:"db"`
	Auth      AuthConfig          `mapstructure:"auth"`
	Annotator annotate.Config     `mapstructure:"annotator"`
	Ingest    IngestConfig        `mapstructure:"ingest"`
	Report    report.RenderConfig `mapstructure:"report"`
}

type ServerConfig struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// AuthConfig holds the optional shared passwords. Empty disables the check.
type AuthConfig struct {
	AccessPassword string `mapstructure:"access_password"`
	AdminPassword  string `mapstructure:"admin_password"`
}

type IngestConfig struct {
	Columns fund.SourceColumns `mapstructure:"columns"`
}

// Load reads the YAML file at path (skipped when envOnly) and applies
// FUND_-prefixed environment overrides, e.g. FUND_DB_PATH.
func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", sqlite.DriverCGO)
	v.SetDefault("db.path", "fund_returns.db")
	v.SetDefault("auth.access_password", "")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("annotator.api_key", "")
	v.SetDefault("annotator.base_url", "")
	v.SetDefault("annotator.model", annotate.DefaultModel)
	v.SetDefault("annotator.max_tokens", annotate.DefaultMaxTokens)
	v.SetDefault("annotator.temperature", annotate.DefaultTemperature)
	v.SetDefault("annotator.password", "")
	v.SetDefault("annotator.timeout", "0s")
	v.SetDefault("annotator.language", annotate.DefaultLanguage)
	v.SetDefault("ingest.columns.manager", "")
	v.SetDefault("ingest.columns.product_name", "")
	v.SetDefault("ingest.columns.total_amount", "")
	v.SetDefault("report.font_path", "")
	v.SetDefault("report.width", report.DefaultWidth)
	v.SetDefault("report.height", report.DefaultHeight)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Annotator.APIKey == "" {
		cfg.Annotator.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	columns, err := normalizeColumns(cfg.Ingest.Columns)
	if err != nil {
		return Config{}, err
	}
	cfg.Ingest.Columns = columns
	return cfg, nil
}

// normalizeColumns re-keys the return labels; viper lowercases map keys, so
// "1Y" arrives as "1y".
func normalizeColumns(c fund.SourceColumns) (fund.SourceColumns, error) {
	if len(c.Returns) == 0 {
		return c.WithDefaults(), nil
	}
	returns := make(map[fund.Period]string, len(c.Returns))
	for key, label := range c.Returns {
		p, err := fund.ParsePeriod(string(key))
		if err != nil {
			return c, fmt.Errorf("ingest.columns.returns: %w", err)
		}
		returns[p] = label
	}
	c.Returns = returns
	return c.WithDefaults(), nil
}
