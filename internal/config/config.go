package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pollkeeper/internal/token"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Indexer     IndexerConfig     `mapstructure:"indexer"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	Convergence ConvergenceConfig `mapstructure:"convergence"`
	Funding     FundingConfig     `mapstructure:"funding"`

	// Tokens maps chain scope -> symbol -> descriptor.
	Tokens          map[string]map[string]TokenConfig `mapstructure:"tokens"`
	TrackedCreators []TrackedCreator                  `mapstructure:"tracked_creators"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	// AuthToken guards /api/* with a static bearer token. Empty leaves it open.
	AuthToken       string        `mapstructure:"auth_token"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
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

type CronConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TrackedSync string `mapstructure:"tracked_sync"`
}

// RedisConfig selects the result cache backend. Empty Addr means in-memory.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type IndexerConfig struct {
	// Endpoints maps chain scope -> GraphQL URL.
	Endpoints map[string]string `mapstructure:"endpoints"`
	PageSize  int               `mapstructure:"page_size"`
	Timeout   time.Duration     `mapstructure:"timeout"`
}

type LedgerConfig struct {
	Chains          []LedgerChainConfig `mapstructure:"chains"`
	ReadConcurrency int                 `mapstructure:"read_concurrency"`
	DialTimeout     time.Duration       `mapstructure:"dial_timeout"`
}

type LedgerChainConfig struct {
	Name         string `mapstructure:"name"`
	RPCURL       string `mapstructure:"rpc_url"`
	PollContract string `mapstructure:"poll_contract"`
}

type ReconcileConfig struct {
	LedgerWindow int `mapstructure:"ledger_window"`
	IndexerLimit int `mapstructure:"indexer_limit"`
}

type ConvergenceConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Interval     time.Duration `mapstructure:"interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

type FundingConfig struct {
	GasReserve string `mapstructure:"gas_reserve"`
}

type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
	Native   bool   `mapstructure:"native"`
}

type TrackedCreator struct {
	Creator string `mapstructure:"creator"`
	Chain   string `mapstructure:"chain"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.shutdown_timeout", "10s")
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
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.tracked_sync", "@every 1m")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "15s")
	v.SetDefault("indexer.page_size", 100)
	v.SetDefault("indexer.timeout", "10s")
	v.SetDefault("ledger.read_concurrency", 8)
	v.SetDefault("ledger.dial_timeout", "10s")
	v.SetDefault("reconcile.ledger_window", 100)
	v.SetDefault("reconcile.indexer_limit", 1000)
	v.SetDefault("convergence.initial_delay", "5s")
	v.SetDefault("convergence.interval", "5s")
	v.SetDefault("convergence.max_attempts", 12)
	v.SetDefault("funding.gas_reserve", "0.01")

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

// TokenRegistry builds the per-chain token mapping from the tokens section.
func (c Config) TokenRegistry() (*token.Registry, error) {
	reg := token.NewRegistry()
	for chain, symbols := range c.Tokens {
		for symbol, tc := range symbols {
			d := token.Descriptor{
				Symbol:   symbol,
				Decimals: tc.Decimals,
				Native:   tc.Native,
				Address:  tc.Address,
			}
			if err := reg.Register(chain, d); err != nil {
				return nil, fmt.Errorf("tokens.%s.%s: %w", chain, symbol, err)
			}
		}
	}
	// Funding on a ledger chain needs at least one token to resolve.
	known := map[string]bool{}
	for _, chain := range reg.Chains() {
		known[chain] = true
	}
	for _, lc := range c.Ledger.Chains {
		name := strings.ToLower(strings.TrimSpace(lc.Name))
		if !known[name] {
			return nil, fmt.Errorf("ledger.chains: %q has no tokens configured", lc.Name)
		}
	}
	return reg, nil
}
