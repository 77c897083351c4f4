package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`

	Paper     PaperConfig     `mapstructure:"paper"`
	CopyTrade CopyTradeConfig `mapstructure:"copy_trade"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Gamma     GammaConfig     `mapstructure:"gamma"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Cron      CronConfig      `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// PaperConfig centralizes the simulated-ledger defaults that used to be
// duplicated across call sites.
type PaperConfig struct {
	StartingBalance      float64 `mapstructure:"starting_balance"`
	DefaultFixedAmount   float64 `mapstructure:"default_fixed_amount"`
	MaxOpenPositions     int     `mapstructure:"max_open_positions"`
	SlippageTolerancePct float64 `mapstructure:"slippage_tolerance_pct"`
}

type CopyTradeConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	StopLossInterval  time.Duration `mapstructure:"stop_loss_interval"`
	SnapshotInterval  time.Duration `mapstructure:"snapshot_interval"`
	MinTradesForKelly int           `mapstructure:"min_trades_for_kelly"`
}

type FeedConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	URL     string   `mapstructure:"url"`
	Wallets []string `mapstructure:"wallets"`
}

type GammaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type NotifyConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	APIBase  string        `mapstructure:"api_base"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type CronConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	PortfolioSnapshot string `mapstructure:"portfolio_snapshot"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("paper.starting_balance", 1000)
	v.SetDefault("paper.default_fixed_amount", 10)
	v.SetDefault("paper.max_open_positions", 0)
	v.SetDefault("paper.slippage_tolerance_pct", 0)

	v.SetDefault("copy_trade.enabled", true)
	v.SetDefault("copy_trade.stop_loss_interval", "30s")
	v.SetDefault("copy_trade.snapshot_interval", "1h")
	v.SetDefault("copy_trade.min_trades_for_kelly", 5)

	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.url", "")

	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.timeout", "15s")

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.api_base", "https://api.telegram.org")
	v.SetDefault("notify.timeout", "5s")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.portfolio_snapshot", "@every 1h")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
