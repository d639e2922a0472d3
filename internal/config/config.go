// Package config loads the CLI and server settings from a YAML file and the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STATEGRAPH_"

// Quote source names.
const (
	QuotesStatic = "static"
	QuotesYahoo  = "yahoo"
)

// Config is the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Quotes    QuotesConfig    `yaml:"quotes"`
	Redis     RedisConfig     `yaml:"redis"`
	Store     StoreConfig     `yaml:"store"`
	HTTP      HTTPConfig      `yaml:"http"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type EngineConfig struct {
	MaxSteps int  `yaml:"max_steps"`
	Tracing  bool `yaml:"tracing"`
}

// PortfolioConfig holds the rates of the portfolio and currency graphs.
type PortfolioConfig struct {
	Markup  float64 `yaml:"markup"`
	TaxRate float64 `yaml:"tax_rate"`
	USDINR  float64 `yaml:"usd_inr"`
	USDEUR  float64 `yaml:"usd_eur"`
}

type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	Retries     int     `yaml:"retries"`
}

type QuotesConfig struct {
	Source string `yaml:"source"`
}

// RedisConfig enables the Redis session store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	TTL      string `yaml:"ttl"`
}

// StoreConfig selects the file store and the snapshot middlewares.
// Keys are base64 encoded 32 byte AES keys.
type StoreConfig struct {
	Dir           string   `yaml:"dir"`
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	Mask          []string `yaml:"mask"`
}

// Keys decodes the active and fallback keys. A nil active key disables encryption.
func (s StoreConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{MaxSteps: 25},
		Portfolio: PortfolioConfig{
			Markup:  1.08,
			TaxRate: 0.6,
			USDINR:  85,
			USDEUR:  0.89,
		},
		Gemini: GeminiConfig{Model: "gemini-2.5-flash", Retries: 1},
		Quotes: QuotesConfig{Source: QuotesStatic},
		HTTP:   HTTPConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file; a missing explicit file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str(EnvPrefix+"LOG_LEVEL", &c.Log.Level)
	str(EnvPrefix+"LOG_FORMAT", &c.Log.Format)
	integer(EnvPrefix+"MAX_STEPS", &c.Engine.MaxSteps)
	if v, ok := lookup(EnvPrefix + "TRACING"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTRACING: %w", EnvPrefix, err))
		} else {
			c.Engine.Tracing = b
		}
	}
	num(EnvPrefix+"MARKUP", &c.Portfolio.Markup)
	num(EnvPrefix+"TAX_RATE", &c.Portfolio.TaxRate)
	num(EnvPrefix+"USD_INR", &c.Portfolio.USDINR)
	num(EnvPrefix+"USD_EUR", &c.Portfolio.USDEUR)
	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str(EnvPrefix+"GEMINI_MODEL", &c.Gemini.Model)
	str(EnvPrefix+"QUOTES", &c.Quotes.Source)
	str(EnvPrefix+"REDIS_ADDR", &c.Redis.Addr)
	str(EnvPrefix+"REDIS_PASSWORD", &c.Redis.Password)
	str(EnvPrefix+"HTTP_ADDR", &c.HTTP.Addr)
	str(EnvPrefix+"STORE_DIR", &c.Store.Dir)
	str(EnvPrefix+"ENCRYPTION_KEY", &c.Store.EncryptionKey)

	return errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if c.Engine.MaxSteps < 0 {
		errs = append(errs, errors.New("engine.max_steps must not be negative"))
	}
	for name, v := range map[string]float64{
		"portfolio.markup":  c.Portfolio.Markup,
		"portfolio.usd_inr": c.Portfolio.USDINR,
		"portfolio.usd_eur": c.Portfolio.USDEUR,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Portfolio.TaxRate < 0 {
		errs = append(errs, errors.New("portfolio.tax_rate must not be negative"))
	}
	switch c.Quotes.Source {
	case QuotesStatic, QuotesYahoo:
	default:
		errs = append(errs, fmt.Errorf("quotes.source %q must be %s or %s", c.Quotes.Source, QuotesStatic, QuotesYahoo))
	}
	if c.Redis.TTL != "" {
		if _, err := time.ParseDuration(c.Redis.TTL); err != nil {
			errs = append(errs, fmt.Errorf("redis.ttl: %w", err))
		}
	}
	if _, _, err := c.Store.Keys(); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.Addr != "" && c.Store.Dir != "" {
		errs = append(errs, errors.New("redis.addr and store.dir are mutually exclusive"))
	}
	if c.Gemini.Retries < 0 {
		errs = append(errs, errors.New("gemini.retries must not be negative"))
	}
	return errors.Join(errs...)
}

// SessionTTL is the parsed redis.ttl, zero when unset or invalid.
func (r RedisConfig) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(r.TTL)
	return d
}
