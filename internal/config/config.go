package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from a YAML file with a
// handful of environment overrides for credentials and the config path.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Sources   SourcesConfig   `yaml:"sources"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig configures the analytical PostgreSQL sink.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	Table    string `yaml:"table"`
}

// ConnectionString builds a lib/pq DSN.
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// CacheConfig configures the Redis live sink.
type CacheConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	Database int           `yaml:"database"`
	TTL      time.Duration `yaml:"ttl"`
}

// SchedulerConfig governs cycle cadence and the failure model. The floor is
// enforced independently of per-source intervals: anything tighter is coerced
// up, never dropped.
type SchedulerConfig struct {
	MinIntervalFloor time.Duration `yaml:"min_interval_floor"`
	BackoffBase      time.Duration `yaml:"backoff_base"`
	BackoffMax       time.Duration `yaml:"backoff_max"`
	BatchLimit       int           `yaml:"batch_limit"`
	PendingLimit     int           `yaml:"pending_limit"`
	RollupInterval   time.Duration `yaml:"rollup_interval"`
}

// SourcesConfig holds per-source settings. An interval of zero disables the
// source entirely.
type SourcesConfig struct {
	Binance     BinanceConfig   `yaml:"binance"`
	Protocols   DefiLlamaConfig `yaml:"defillama_protocols"`
	Chains      DefiLlamaConfig `yaml:"defillama_chains"`
	Stablecoins DefiLlamaConfig `yaml:"defillama_stables"`
	Synthetic   SyntheticConfig `yaml:"synthetic"`
}

// BinanceConfig configures the market-tick source.
type BinanceConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Symbols        []string      `yaml:"symbols"`
	Interval       time.Duration `yaml:"interval"`
	OrderbookDepth int           `yaml:"orderbook_depth"`
	KlineLimit     int           `yaml:"kline_limit"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DefiLlamaConfig configures one of the DefiLlama-backed sources.
type DefiLlamaConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Interval time.Duration `yaml:"interval"`
	TopN     int           `yaml:"top_n"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SyntheticConfig configures the generated no-network source used in test
// deployments.
type SyntheticConfig struct {
	Symbols  []string      `yaml:"symbols"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads configuration from CONFIG_FILE (default configs/config.yaml),
// applies environment overrides, validates, and coerces intervals to the
// minimum floor.
func Load() (*Config, error) {
	path := "configs/config.yaml"
	if env := os.Getenv("CONFIG_FILE"); env != "" {
		path = env
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, overrides, validates and normalizes a raw YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, SSLMode: "disable", Table: "snapshots",
		},
		Cache: CacheConfig{Host: "localhost", Port: 6379, TTL: 5 * time.Minute},
		Scheduler: SchedulerConfig{
			MinIntervalFloor: 10 * time.Second,
			BackoffBase:      5 * time.Second,
			BackoffMax:       10 * time.Minute,
			BatchLimit:       500,
			PendingLimit:     5000,
			RollupInterval:   time.Minute,
		},
		Sources: SourcesConfig{
			Binance: BinanceConfig{
				BaseURL:        "https://api.binance.com",
				Symbols:        []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"},
				Interval:       time.Minute,
				OrderbookDepth: 5,
				KlineLimit:     120,
				Timeout:        10 * time.Second,
			},
			Protocols: DefiLlamaConfig{
				BaseURL: "https://api.llama.fi", Interval: time.Hour, TopN: 100, Timeout: 30 * time.Second,
			},
			Chains: DefiLlamaConfig{
				BaseURL: "https://api.llama.fi", Interval: time.Hour, Timeout: 30 * time.Second,
			},
			Stablecoins: DefiLlamaConfig{
				BaseURL: "https://api.llama.fi", Interval: time.Hour, Timeout: 30 * time.Second,
			},
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Password = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
		if len(symbols) > 0 {
			c.Sources.Binance.Symbols = symbols
		}
	}
}

// Validate rejects configurations the scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Scheduler.MinIntervalFloor <= 0 {
		return fmt.Errorf("scheduler.min_interval_floor must be positive")
	}
	if c.Scheduler.BackoffBase <= 0 {
		return fmt.Errorf("scheduler.backoff_base must be positive")
	}
	if c.Scheduler.BackoffMax < c.Scheduler.BackoffBase {
		return fmt.Errorf("scheduler.backoff_max below backoff_base")
	}
	if c.Scheduler.BatchLimit < 1 {
		return fmt.Errorf("scheduler.batch_limit must be at least 1")
	}
	if c.Scheduler.PendingLimit < c.Scheduler.BatchLimit {
		return fmt.Errorf("scheduler.pending_limit below batch_limit")
	}
	if c.Scheduler.RollupInterval < 0 {
		return fmt.Errorf("scheduler.rollup_interval must not be negative")
	}
	if len(c.Sources.Binance.Symbols) == 0 && c.Sources.Binance.Interval > 0 {
		return fmt.Errorf("sources.binance.symbols empty with source enabled")
	}
	return nil
}

// normalize coerces every enabled source interval up to the floor and
// canonicalizes symbol lists. Intervals are never silently sped up or dropped.
func (c *Config) normalize() {
	floor := c.Scheduler.MinIntervalFloor
	coerce := func(d *time.Duration) {
		if *d > 0 && *d < floor {
			*d = floor
		}
	}
	coerce(&c.Sources.Binance.Interval)
	coerce(&c.Sources.Protocols.Interval)
	coerce(&c.Sources.Chains.Interval)
	coerce(&c.Sources.Stablecoins.Interval)
	coerce(&c.Sources.Synthetic.Interval)

	// Duplicate symbols would produce duplicate natural keys within one batch
	// and redundant fetches.
	c.Sources.Binance.Symbols = dedupeSymbols(c.Sources.Binance.Symbols)
	c.Sources.Synthetic.Symbols = dedupeSymbols(c.Sources.Synthetic.Symbols)
}

func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := symbols[:0]
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
