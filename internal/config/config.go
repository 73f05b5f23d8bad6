package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"market-hierarchy/internal/hierarchy"
	"market-hierarchy/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the refresh cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
}

// EngineConfig tunes the hierarchy cache and arbitrage thresholds.
type EngineConfig struct {
	CacheMaxSize    int           `mapstructure:"cache_max_size"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	PriceQuantum    float64       `mapstructure:"price_quantum"`
	VolumeQuantum   float64       `mapstructure:"volume_quantum"`
	WindowCapacity  int           `mapstructure:"window_capacity"`
	VWAPWindow      int           `mapstructure:"vwap_window"`
	MinSpread       float64       `mapstructure:"min_spread"`
	MinSportsMargin float64       `mapstructure:"min_sports_margin"`
	Workers         int           `mapstructure:"workers"`
	Categories      []string      `mapstructure:"categories"`
	LatencyCeiling  time.Duration `mapstructure:"latency_ceiling"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
}

// ExchangeConfig selects and parameterises the snapshot source.
type ExchangeConfig struct {
	Kind           string            `mapstructure:"kind"`
	ID             string            `mapstructure:"id"`
	BaseURL        string            `mapstructure:"base_url"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	UserAgent      string            `mapstructure:"user_agent"`
	File           string            `mapstructure:"file"`
	Simulated      SimulatedConfig   `mapstructure:"simulated"`
	OnChain        OnChainConfig     `mapstructure:"onchain"`
	ProbeURLs      map[string]string `mapstructure:"probe_urls"`
}

// SimulatedConfig drives the random-walk exchange.
type SimulatedConfig struct {
	Seed       int64    `mapstructure:"seed"`
	Exchanges  []string `mapstructure:"exchanges"`
	Symbols    []string `mapstructure:"symbols"`
	Regions    []string `mapstructure:"regions"`
	Fixtures   int      `mapstructure:"fixtures"`
	Volatility float64  `mapstructure:"volatility"`
}

// OnChainConfig covers ERC-4626 vault pricing over Ethereum RPC.
type OnChainConfig struct {
	RPCURL       string        `mapstructure:"rpc_url"`
	VaultAddress string        `mapstructure:"vault_address"`
	Symbol       string        `mapstructure:"symbol"`
	Region       string        `mapstructure:"region"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	MinSpread float64        `mapstructure:"min_spread"`
	Cooldown  time.Duration  `mapstructure:"cooldown"`
	Channels  []string       `mapstructure:"channels"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	NATS      NATSConfig     `mapstructure:"nats"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// NATSConfig 描述 NATS 告警参数。
type NATSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	Subject        string        `mapstructure:"subject"`
	ClientName     string        `mapstructure:"client_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HIERARCHY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hierarchyctl")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x70686531))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("engine.cache_max_size", hierarchy.DefaultMaxSize)
	v.SetDefault("engine.cache_ttl", hierarchy.DefaultTTL.String())
	v.SetDefault("engine.price_quantum", 0.01)
	v.SetDefault("engine.volume_quantum", 1.0)
	v.SetDefault("engine.window_capacity", 256)
	v.SetDefault("engine.vwap_window", 0)
	v.SetDefault("engine.min_spread", hierarchy.DefaultMinSpread)
	v.SetDefault("engine.min_sports_margin", 0.0)
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.categories", []string{"spot", "sports"})
	v.SetDefault("engine.latency_ceiling", "10s")
	v.SetDefault("engine.probe_timeout", "5s")

	v.SetDefault("exchange.kind", "simulated")
	v.SetDefault("exchange.id", "sim")
	v.SetDefault("exchange.request_timeout", "10s")
	v.SetDefault("exchange.user_agent", "hierarchyctl/1.0")
	v.SetDefault("exchange.simulated.seed", 42)
	v.SetDefault("exchange.simulated.exchanges", []string{"exchange_0", "exchange_1", "exchange_2", "exchange_3"})
	v.SetDefault("exchange.simulated.symbols", []string{"BTC", "ETH"})
	v.SetDefault("exchange.simulated.regions", []string{"us", "eu", "ap"})
	v.SetDefault("exchange.simulated.fixtures", 2)
	v.SetDefault("exchange.simulated.volatility", 0.002)
	v.SetDefault("exchange.onchain.symbol", "SUSDE")
	v.SetDefault("exchange.onchain.region", "ethereum")
	v.SetDefault("exchange.onchain.timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_spread", 0.005)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.nats.enabled", false)
	v.SetDefault("alerting.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("alerting.nats.subject", "hierarchy.arbitrage")
	v.SetDefault("alerting.nats.client_name", "hierarchyctl")
	v.SetDefault("alerting.nats.connect_timeout", "5s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Engine.CacheMaxSize <= 0 {
		return fmt.Errorf("engine.cache_max_size must be greater than zero")
	}
	if c.Engine.CacheTTL <= 0 {
		return fmt.Errorf("engine.cache_ttl must be greater than zero")
	}
	if c.Engine.MinSpread < 0 || c.Engine.MinSportsMargin < 0 {
		return fmt.Errorf("engine thresholds cannot be negative")
	}
	if _, err := hierarchy.ParseCategories(c.Engine.Categories); err != nil {
		return fmt.Errorf("engine.categories: %w", err)
	}
	switch c.Exchange.Kind {
	case "simulated", "static":
	case "http":
		if c.Exchange.BaseURL == "" {
			return fmt.Errorf("exchange.base_url is required for kind=http")
		}
	case "file":
		if c.Exchange.File == "" {
			return fmt.Errorf("exchange.file is required for kind=file")
		}
	case "onchain":
		if c.Exchange.OnChain.RPCURL == "" || c.Exchange.OnChain.VaultAddress == "" {
			return fmt.Errorf("exchange.onchain.rpc_url and vault_address are required for kind=onchain")
		}
	default:
		return fmt.Errorf("exchange.kind %q is not supported", c.Exchange.Kind)
	}
	if c.Alerting.MinSpread < 0 {
		return fmt.Errorf("alerting.min_spread cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Alerting.NATS.Enabled && c.Alerting.NATS.Subject == "" {
		return fmt.Errorf("alerting.nats.subject 必须配置")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// EngineOptions maps the engine section onto hierarchy.Options.
func (c *Config) EngineOptions() hierarchy.Options {
	categories, _ := hierarchy.ParseCategories(c.Engine.Categories)
	return hierarchy.Options{
		MaxSize: c.Engine.CacheMaxSize,
		TTL:     c.Engine.CacheTTL,
		Quantizer: hierarchy.Quantizer{
			PriceQuantum:  c.Engine.PriceQuantum,
			VolumeQuantum: c.Engine.VolumeQuantum,
		},
		WindowCapacity:  c.Engine.WindowCapacity,
		VWAPWindow:      c.Engine.VWAPWindow,
		MinSpread:       c.Engine.MinSpread,
		MinSportsMargin: c.Engine.MinSportsMargin,
		Workers:         c.Engine.Workers,
		Categories:      categories,
		LatencyCeiling:  c.Engine.LatencyCeiling,
	}
}
