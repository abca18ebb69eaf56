// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Chains      ChainsConfig      `mapstructure:"chains"`
	Dex         DexConfig         `mapstructure:"dex"`
	Quotes      QuotesConfig      `mapstructure:"quotes"`
	Reference   ReferenceConfig   `mapstructure:"reference"`
	Aggregators AggregatorsConfig `mapstructure:"aggregators"`
	Store       StoreConfig       `mapstructure:"store"`
	Watch       WatchConfig       `mapstructure:"watch"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Health      HealthConfig      `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ChainConfig holds the read-only RPC settings of one chain.
// A chain with an empty RPCURL is disabled.
type ChainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	RequestDelay   time.Duration `mapstructure:"request_delay"`
}

// Enabled returns true when the chain has an RPC endpoint.
func (c ChainConfig) Enabled() bool {
	return c.RPCURL != ""
}

// ChainsConfig holds per-chain RPC configuration.
type ChainsConfig struct {
	Ethereum ChainConfig `mapstructure:"ethereum"`
	BSC      ChainConfig `mapstructure:"bsc"`
	Solana   ChainConfig `mapstructure:"solana"`
}

// DexConfig holds the venue contracts and programs the locator queries.
type DexConfig struct {
	UniswapV4StateView string `mapstructure:"uniswap_v4_state_view"`
	UniswapV3Factory   string `mapstructure:"uniswap_v3_factory"`
	UniswapV3FeeTiers  []int  `mapstructure:"uniswap_v3_fee_tiers"`
	UniswapV2Factory   string `mapstructure:"uniswap_v2_factory"`

	PancakeV3Factory  string `mapstructure:"pancake_v3_factory"`
	PancakeV3FeeTiers []int  `mapstructure:"pancake_v3_fee_tiers"`
	PancakeV2Factory  string `mapstructure:"pancake_v2_factory"`

	RaydiumAMMv4Program string   `mapstructure:"raydium_amm_v4_program"`
	RaydiumCPMMProgram  string   `mapstructure:"raydium_cpmm_program"`
	RaydiumCPMMConfigs  []string `mapstructure:"raydium_cpmm_configs"`
}

// UniswapV4StateViewAddress returns the StateView lens as common.Address.
func (c *DexConfig) UniswapV4StateViewAddress() common.Address {
	return common.HexToAddress(c.UniswapV4StateView)
}

// UniswapV3FactoryAddress returns the V3 factory as common.Address.
func (c *DexConfig) UniswapV3FactoryAddress() common.Address {
	return common.HexToAddress(c.UniswapV3Factory)
}

// UniswapV2FactoryAddress returns the V2 factory as common.Address.
func (c *DexConfig) UniswapV2FactoryAddress() common.Address {
	return common.HexToAddress(c.UniswapV2Factory)
}

// PancakeV3FactoryAddress returns the PancakeSwap V3 factory as common.Address.
func (c *DexConfig) PancakeV3FactoryAddress() common.Address {
	return common.HexToAddress(c.PancakeV3Factory)
}

// PancakeV2FactoryAddress returns the PancakeSwap V2 factory as common.Address.
func (c *DexConfig) PancakeV2FactoryAddress() common.Address {
	return common.HexToAddress(c.PancakeV2Factory)
}

// QuotesConfig lists the stable quote assets per chain, by symbol, in
// lookup order. The native quote is always tried first.
type QuotesConfig struct {
	Ethereum []string `mapstructure:"ethereum"`
	BSC      []string `mapstructure:"bsc"`
	Solana   []string `mapstructure:"solana"`
}

// ReferenceConfig holds the quote-currency cache settings.
type ReferenceConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	ETHHomePool string        `mapstructure:"eth_home_pool"`
}

// AggregatorsConfig holds the external price services.
type AggregatorsConfig struct {
	Order           []string      `mapstructure:"order"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DexScreenerURL  string        `mapstructure:"dexscreener_url"`
	JupiterURL      string        `mapstructure:"jupiter_url"`
	CoinGeckoURL    string        `mapstructure:"coingecko_url"`
	CoinGeckoAPIKey string        `mapstructure:"coingecko_api_key"`
	CoinGeckoRPM    int           `mapstructure:"coingecko_rpm"`
	BinanceURL      string        `mapstructure:"binance_url"`
}

// StoreConfig selects the pool info store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory | postgres
	DSN    string `mapstructure:"dsn"`
}

// WatchConfig holds the polling watcher settings.
type WatchConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Parallelism int           `mapstructure:"parallelism"`
	Tokens      []string      `mapstructure:"tokens"` // chain:identifier
	TUIMode     bool          `mapstructure:"-"`      // Set at runtime, not from config file
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("PRICED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "PRICED_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "PRICED_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "PRICED_LOG_LEVEL", "LOG_LEVEL")

	// Chains
	v.BindEnv("chains.ethereum.rpc_url", "PRICED_ETH_RPC_URL", "ETH_RPC_URL")
	v.BindEnv("chains.bsc.rpc_url", "PRICED_BSC_RPC_URL", "BSC_RPC_URL")
	v.BindEnv("chains.solana.rpc_url", "PRICED_SOLANA_RPC_URL", "SOLANA_RPC_URL")
	v.BindEnv("chains.solana.request_delay", "PRICED_SOLANA_REQUEST_DELAY")

	// Aggregators
	v.BindEnv("aggregators.coingecko_api_key", "PRICED_COINGECKO_API_KEY", "COINGECKO_API_KEY")

	// Store
	v.BindEnv("store.driver", "PRICED_STORE_DRIVER")
	v.BindEnv("store.dsn", "PRICED_DATABASE_URL", "DATABASE_URL")

	// Watch
	v.BindEnv("watch.tokens", "PRICED_WATCH_TOKENS")

	// Telemetry
	v.BindEnv("telemetry.enabled", "PRICED_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "PRICED_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "PRICED_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "token-price-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Chain defaults
	v.SetDefault("chains.ethereum.timeout", "10s")
	v.SetDefault("chains.ethereum.max_concurrency", 8)
	v.SetDefault("chains.bsc.timeout", "10s")
	v.SetDefault("chains.bsc.max_concurrency", 8)
	v.SetDefault("chains.solana.timeout", "15s")
	v.SetDefault("chains.solana.max_concurrency", 2)
	v.SetDefault("chains.solana.request_delay", "250ms") // public RPC throttles bursts

	// Mainnet venue defaults
	v.SetDefault("dex.uniswap_v4_state_view", "0x7fFE42C4a5DEeA5b0feC41C94C136Cf115597227")
	v.SetDefault("dex.uniswap_v3_factory", "0x1F98431c8aD98523631AE4a59f267346ea31F984")
	v.SetDefault("dex.uniswap_v3_fee_tiers", []int{100, 500, 3000, 10000})
	v.SetDefault("dex.uniswap_v2_factory", "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	v.SetDefault("dex.pancake_v3_factory", "0x0BFbCF9fa4f9C56B0F40a671Ad40E0805A091865")
	v.SetDefault("dex.pancake_v3_fee_tiers", []int{100, 500, 2500, 10000})
	v.SetDefault("dex.pancake_v2_factory", "0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73")
	v.SetDefault("dex.raydium_amm_v4_program", "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	v.SetDefault("dex.raydium_cpmm_program", "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	v.SetDefault("dex.raydium_cpmm_configs", []string{"D4FPEruKEHrG5TenZ2mpDGEfu1iUvTiqBxvpU8HLBvC2"})

	// Quote asset defaults
	v.SetDefault("quotes.ethereum", []string{"USDC", "USDT"})
	v.SetDefault("quotes.bsc", []string{"USDT", "USDC"})
	v.SetDefault("quotes.solana", []string{"USDC", "USDT"})

	// Reference defaults
	v.SetDefault("reference.ttl", "60s")
	v.SetDefault("reference.eth_home_pool", "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640") // USDC/WETH 0.05%

	// Aggregator defaults
	v.SetDefault("aggregators.order", []string{"dexscreener", "jupiter", "coingecko"})
	v.SetDefault("aggregators.timeout", "8s")
	v.SetDefault("aggregators.dexscreener_url", "https://api.dexscreener.com")
	v.SetDefault("aggregators.jupiter_url", "https://api.jup.ag/price/v2")
	v.SetDefault("aggregators.coingecko_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("aggregators.coingecko_rpm", 30)
	v.SetDefault("aggregators.binance_url", "https://api.binance.com")

	// Store defaults
	v.SetDefault("store.driver", "memory")

	// Watch defaults
	v.SetDefault("watch.interval", "30s")
	v.SetDefault("watch.parallelism", 4)
	v.SetDefault("watch.tokens", []string{
		"ethereum:0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", // UNI
		"bsc:0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82",      // CAKE
		"solana:4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", // RAY
	})

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "token-price-engine")
	v.SetDefault("telemetry.trace_provider", "empty")
	v.SetDefault("telemetry.prometheus_port", 9090)

	// Health defaults
	v.SetDefault("health.port", 8080)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Chains.Ethereum.Enabled() && !c.Chains.BSC.Enabled() && !c.Chains.Solana.Enabled() {
		return fmt.Errorf("at least one of chains.{ethereum,bsc,solana}.rpc_url is required")
	}

	for name, chain := range map[string]ChainConfig{
		"ethereum": c.Chains.Ethereum,
		"bsc":      c.Chains.BSC,
		"solana":   c.Chains.Solana,
	} {
		if chain.Enabled() && chain.MaxConcurrency <= 0 {
			return fmt.Errorf("chains.%s.max_concurrency must be positive", name)
		}
	}

	for key, addr := range map[string]string{
		"dex.uniswap_v4_state_view": c.Dex.UniswapV4StateView,
		"dex.uniswap_v3_factory":    c.Dex.UniswapV3Factory,
		"dex.uniswap_v2_factory":    c.Dex.UniswapV2Factory,
		"dex.pancake_v3_factory":    c.Dex.PancakeV3Factory,
		"dex.pancake_v2_factory":    c.Dex.PancakeV2Factory,
		"reference.eth_home_pool":   c.Reference.ETHHomePool,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s: %s", key, addr)
		}
	}

	programs := append([]string{c.Dex.RaydiumAMMv4Program, c.Dex.RaydiumCPMMProgram}, c.Dex.RaydiumCPMMConfigs...)
	for _, p := range programs {
		if raw, err := base58.Decode(p); err != nil || len(raw) != 32 {
			return fmt.Errorf("invalid solana address in dex config: %s", p)
		}
	}

	if c.Reference.TTL <= 0 {
		return fmt.Errorf("reference.ttl must be positive")
	}

	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q (memory|postgres)", c.Store.Driver)
	}

	if c.Watch.Parallelism <= 0 {
		return fmt.Errorf("watch.parallelism must be positive")
	}
	return nil
}
