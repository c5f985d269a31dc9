package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rewired-gh/macrocorr/internal/models"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Assets     []models.Asset   `mapstructure:"assets" validate:"min=1,dive"`
	Inflation  InflationConfig  `mapstructure:"inflation"`
	Decoupling DecouplingConfig `mapstructure:"decoupling"`
	Yahoo      YahooConfig      `mapstructure:"yahoo"`
	FRED       FREDConfig       `mapstructure:"fred"`
	Charts     ChartsConfig     `mapstructure:"charts"`
	Report     ReportConfig     `mapstructure:"report"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AnalysisConfig holds the date range shared by both pipelines
type AnalysisConfig struct {
	Start string `mapstructure:"start" validate:"required,datetime=2006-01-02"`
	End   string `mapstructure:"end" validate:"required,datetime=2006-01-02"`
}

// InflationConfig holds the inflation pipeline parameters
type InflationConfig struct {
	SeriesID         string `mapstructure:"series_id" validate:"required"`
	YoYLag           int    `mapstructure:"yoy_lag" validate:"min=1"`
	ReturnLag        int    `mapstructure:"return_lag" validate:"min=1"`
	RollingWindow    int    `mapstructure:"rolling_window" validate:"min=2"`
	RollingAsset     string `mapstructure:"rolling_asset" validate:"required"`
	RollingBenchmark string `mapstructure:"rolling_benchmark" validate:"required,nefield=RollingAsset"`
}

// DecouplingConfig holds the decoupling pipeline parameters
type DecouplingConfig struct {
	Assets        []string         `mapstructure:"assets" validate:"min=1,dive,required"`
	Benchmark     string           `mapstructure:"benchmark" validate:"required"`
	RollingWindow int              `mapstructure:"rolling_window" validate:"min=2"`
	Early         models.YearRange `mapstructure:"early"`
	Late          models.YearRange `mapstructure:"late"`
}

// YahooConfig holds the price provider configuration
type YahooConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=1s"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// FREDConfig holds the macro index provider configuration
type FREDConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url" validate:"required,url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=1s"`
}

// ChartsConfig holds chart rendering configuration. Sizes are in inches.
type ChartsConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	OutputDir string  `mapstructure:"output_dir" validate:"required_if=Enabled true"`
	Width     float64 `mapstructure:"width" validate:"gt=0"`
	Height    float64 `mapstructure:"height" validate:"gt=0"`
	DPI       int     `mapstructure:"dpi" validate:"min=36,max=600"`
}

// ReportConfig holds console and spreadsheet report configuration
type ReportConfig struct {
	Color    bool   `mapstructure:"color"`
	XLSXPath string `mapstructure:"xlsx_path"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	Enabled    bool   `mapstructure:"enabled"`
	SendCharts bool   `mapstructure:"send_charts"`
}

// StorageConfig holds the run archive configuration
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path" validate:"required_if=Enabled true"`
	// ShiftThreshold is the smallest statistic change versus the previous run that is
	// reported; significance flips are always reported.
	ShiftThreshold float64 `mapstructure:"shift_threshold" validate:"gte=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// LoadEnv loads KEY=VALUE pairs from an env file into the process environment.
// Variables already set are left alone. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	// MACROCORR_FRED_API_KEY overrides fred.api_key, and so on.
	v.SetEnvPrefix("MACROCORR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider credentials also come from their conventional names.
	if err := v.BindEnv("fred.api_key", "MACROCORR_FRED_API_KEY", "FRED_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind fred api key: %w", err)
	}
	if err := v.BindEnv("telegram.bot_token", "MACROCORR_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind telegram bot token: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Analysis defaults
	v.SetDefault("analysis.start", "2018-01-01")
	v.SetDefault("analysis.end", "2025-11-01")

	// Asset defaults
	v.SetDefault("assets", []map[string]any{
		{"ticker": "BTC-USD", "label": "Bitcoin", "short": "BTC"},
		{"ticker": "ETH-USD", "label": "Ethereum", "short": "ETH"},
		{"ticker": "^GSPC", "label": "S&P 500", "short": "S&P500"},
	})

	// Inflation defaults
	v.SetDefault("inflation.series_id", "CPIAUCSL")
	v.SetDefault("inflation.yoy_lag", 12)
	v.SetDefault("inflation.return_lag", 1)
	v.SetDefault("inflation.rolling_window", 12)
	v.SetDefault("inflation.rolling_asset", "BTC-USD")
	v.SetDefault("inflation.rolling_benchmark", "^GSPC")

	// Decoupling defaults
	v.SetDefault("decoupling.assets", []string{"BTC-USD", "ETH-USD"})
	v.SetDefault("decoupling.benchmark", "^GSPC")
	v.SetDefault("decoupling.rolling_window", 90)
	v.SetDefault("decoupling.early.from", 2020)
	v.SetDefault("decoupling.early.to", 2021)
	v.SetDefault("decoupling.late.from", 2022)
	v.SetDefault("decoupling.late.to", 2025)

	// Provider defaults
	v.SetDefault("yahoo.api_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.timeout", "30s")
	v.SetDefault("yahoo.user_agent", "Mozilla/5.0 (compatible; macrocorr/1.0)")
	v.SetDefault("fred.api_base_url", "https://api.stlouisfed.org")
	v.SetDefault("fred.api_key", "")
	v.SetDefault("fred.timeout", "30s")

	// Presentation defaults
	v.SetDefault("charts.enabled", true)
	v.SetDefault("charts.output_dir", "./charts")
	v.SetDefault("charts.width", 10)
	v.SetDefault("charts.height", 5)
	v.SetDefault("charts.dpi", 100)
	v.SetDefault("report.color", true)
	v.SetDefault("report.xlsx_path", "")

	// Sink defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.send_charts", true)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.db_path", "./data/macrocorr.db")
	v.SetDefault("storage.shift_threshold", 0.1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config keys rather than Go names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return describe(fieldErrs[0])
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	r, err := c.Range()
	if err != nil {
		return err
	}
	if !r.From.Before(r.To) {
		return fmt.Errorf("analysis.start must be before analysis.end")
	}

	seen := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if seen[a.Ticker] {
			return fmt.Errorf("assets: ticker %s is listed twice", a.Ticker)
		}
		seen[a.Ticker] = true
	}
	for _, ticker := range []string{c.Inflation.RollingAsset, c.Inflation.RollingBenchmark, c.Decoupling.Benchmark} {
		if !seen[ticker] {
			return fmt.Errorf("ticker %s is not listed in assets", ticker)
		}
	}
	for _, ticker := range c.Decoupling.Assets {
		if !seen[ticker] {
			return fmt.Errorf("decoupling.assets: ticker %s is not listed in assets", ticker)
		}
		if ticker == c.Decoupling.Benchmark {
			return fmt.Errorf("decoupling.assets must not contain the benchmark %s", ticker)
		}
	}

	if !c.Decoupling.Early.Valid() {
		return fmt.Errorf("decoupling.early must be a valid year range, got %s", c.Decoupling.Early)
	}
	if !c.Decoupling.Late.Valid() {
		return fmt.Errorf("decoupling.late must be a valid year range, got %s", c.Decoupling.Late)
	}
	if c.Decoupling.Early.Overlaps(c.Decoupling.Late) {
		return fmt.Errorf("decoupling.early (%s) and decoupling.late (%s) must not overlap", c.Decoupling.Early, c.Decoupling.Late)
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	return nil
}

// RequireFRED checks the settings only the inflation analysis needs. Commands that
// never query the macro index provider skip it.
func (c *Config) RequireFRED() error {
	if c.FRED.APIKey == "" {
		return fmt.Errorf("fred.api_key is required (set FRED_API_KEY in the environment or .env)")
	}
	return nil
}

// describe turns a validator field error into a message keyed by config path.
func describe(fe validator.FieldError) error {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "required_if":
		return fmt.Errorf("%s is required when %s", field, strings.ReplaceAll(fe.Param(), " ", " is "))
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Errorf("%s must contain at least %s entries", field, fe.Param())
		}
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Errorf("%s must be a date in YYYY-MM-DD format", field)
	case "url":
		return fmt.Errorf("%s must be a valid URL", field)
	case "nefield":
		return fmt.Errorf("%s must differ from %s", field, fe.Param())
	default:
		return fmt.Errorf("%s failed %s validation", field, fe.Tag())
	}
}

// Range returns the analysis window as an inclusive date range.
func (c *Config) Range() (models.DateRange, error) {
	from, err := time.Parse(time.DateOnly, c.Analysis.Start)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("analysis.start: %w", err)
	}
	to, err := time.Parse(time.DateOnly, c.Analysis.End)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("analysis.end: %w", err)
	}
	return models.DateRange{From: from, To: to}, nil
}

// Asset looks up a configured asset by ticker.
func (c *Config) Asset(ticker string) (models.Asset, bool) {
	for _, a := range c.Assets {
		if a.Ticker == ticker {
			return a, true
		}
	}
	return models.Asset{}, false
}

// MustAssets resolves tickers that Validate has already checked.
func (c *Config) MustAssets(tickers ...string) []models.Asset {
	out := make([]models.Asset, 0, len(tickers))
	for _, t := range tickers {
		a, ok := c.Asset(t)
		if !ok {
			panic(fmt.Sprintf("config: unknown ticker %s", t))
		}
		out = append(out, a)
	}
	return out
}
