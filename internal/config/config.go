package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Volatility  VolatilityConfig `mapstructure:"volatility"`
	Slippage    SlippageConfig   `mapstructure:"slippage"`
	Optimizer   OptimizerConfig  `mapstructure:"optimizer"`
	Orders      OrdersConfig     `mapstructure:"orders"`
	Swaps       SwapsConfig      `mapstructure:"swaps"`
	Security    SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type VolatilityConfig struct {
	ConfidenceFloor      int64 `mapstructure:"confidence_floor"`
	ReliabilityDecrement int64 `mapstructure:"reliability_decrement"`
	ReliabilityFloor     int64 `mapstructure:"reliability_floor"`
	DefaultVolatility    int64 `mapstructure:"default_volatility"`
	FallbackConfidence   int64 `mapstructure:"fallback_confidence"`
	HistoryCapacity      int   `mapstructure:"history_capacity"`
	MinSourceWeight      int64 `mapstructure:"min_source_weight"`
	MaxSourceWeight      int64 `mapstructure:"max_source_weight"`
}

type SlippageConfig struct {
	MinBps                int64 `mapstructure:"min_bps"`
	MaxBps                int64 `mapstructure:"max_bps"`
	DefaultBaseBps        int64 `mapstructure:"default_base_bps"`
	VolatilityMultiplier  int64 `mapstructure:"volatility_multiplier"`
	EMAAlphaBps           int64 `mapstructure:"ema_alpha_bps"`
	StdDevWindow          int   `mapstructure:"stddev_window"`
	PriceHistoryCapacity  int   `mapstructure:"price_history_capacity"`
	HighLiquidityRatioPct int64 `mapstructure:"high_liquidity_ratio_pct"`
	MidLiquidityRatioPct  int64 `mapstructure:"mid_liquidity_ratio_pct"`
}

type OptimizerConfig struct {
	VolatilityBuckets    int   `mapstructure:"volatility_buckets"`
	SizeBuckets          int   `mapstructure:"size_buckets"`
	HistoryCapacity      int   `mapstructure:"history_capacity"`
	MinSamples           int64 `mapstructure:"min_samples"`
	LearningRate         int64 `mapstructure:"learning_rate"`
	Momentum             int64 `mapstructure:"momentum"`
	ErrorThresholdBps    int64 `mapstructure:"error_threshold_bps"`
	FloorBps             int64 `mapstructure:"floor_bps"`
	CeilingBps           int64 `mapstructure:"ceiling_bps"`
	ConfidenceSaturation int64 `mapstructure:"confidence_saturation"`
}

type OrdersConfig struct {
	RefreshIntervalSec int64 `mapstructure:"refresh_interval_sec"`
	FillAttemptLimit   int64 `mapstructure:"fill_attempt_limit"`
	RetryStepBps       int64 `mapstructure:"retry_step_bps"`
	SafetyCeilingBps   int64 `mapstructure:"safety_ceiling_bps"`
	MaxOrderAgeSec     int64 `mapstructure:"max_order_age_sec"`
	SlippageStaleSec   int64 `mapstructure:"slippage_stale_sec"`
	HistoryCapacity    int   `mapstructure:"history_capacity"`
}

type SwapsConfig struct {
	DefaultTimelockSec int64  `mapstructure:"default_timelock_sec"`
	RelayAccount       string `mapstructure:"relay_account"`
}

type SecurityConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	AdminSecretHash string `mapstructure:"admin_secret_hash" json:"-" yaml:"-"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Environment != "development" && config.Security.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	if config.Security.AdminSecretHash != "" {
		// The stored hash must be a valid bcrypt digest or admin auth can never succeed.
		if _, err := bcrypt.Cost([]byte(config.Security.AdminSecretHash)); err != nil {
			return nil, fmt.Errorf("invalid admin secret hash: %w", err)
		}
	}

	if err := config.Slippage.Validate(); err != nil {
		return nil, err
	}
	if err := config.Optimizer.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate enforces min <= base <= max and a sane multiplier range.
func (c SlippageConfig) Validate() error {
	if c.MinBps < 0 || c.MaxBps <= 0 || c.MinBps > c.MaxBps {
		return fmt.Errorf("slippage bounds invalid: min=%d max=%d", c.MinBps, c.MaxBps)
	}
	if c.DefaultBaseBps < c.MinBps || c.DefaultBaseBps > c.MaxBps {
		return fmt.Errorf("base slippage %d outside [%d, %d]", c.DefaultBaseBps, c.MinBps, c.MaxBps)
	}
	if c.VolatilityMultiplier <= 0 || c.VolatilityMultiplier > 1000 {
		return fmt.Errorf("volatility multiplier %d out of range (0, 1000]", c.VolatilityMultiplier)
	}
	if c.EMAAlphaBps <= 0 || c.EMAAlphaBps > 10000 {
		return fmt.Errorf("ema alpha %d out of range (0, 10000]", c.EMAAlphaBps)
	}
	return nil
}

func (c OptimizerConfig) Validate() error {
	if c.FloorBps < 0 || c.CeilingBps <= c.FloorBps {
		return fmt.Errorf("optimizer bounds invalid: floor=%d ceiling=%d", c.FloorBps, c.CeilingBps)
	}
	if c.VolatilityBuckets <= 0 || c.SizeBuckets <= 0 {
		return fmt.Errorf("bucket counts must be positive: volatility=%d size=%d", c.VolatilityBuckets, c.SizeBuckets)
	}
	if c.Momentum < 0 || c.Momentum > 100 {
		return fmt.Errorf("momentum %d out of range [0, 100]", c.Momentum)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "swapcore")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.enabled", false)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.enabled", false)

	viper.SetDefault("volatility.confidence_floor", 50)
	viper.SetDefault("volatility.reliability_decrement", 10)
	viper.SetDefault("volatility.reliability_floor", 30)
	viper.SetDefault("volatility.default_volatility", 100)
	viper.SetDefault("volatility.fallback_confidence", 25)
	viper.SetDefault("volatility.history_capacity", 100)
	viper.SetDefault("volatility.min_source_weight", 1)
	viper.SetDefault("volatility.max_source_weight", 100)

	viper.SetDefault("slippage.min_bps", 5)
	viper.SetDefault("slippage.max_bps", 1000)
	viper.SetDefault("slippage.default_base_bps", 50)
	viper.SetDefault("slippage.volatility_multiplier", 100)
	viper.SetDefault("slippage.ema_alpha_bps", 2000)
	viper.SetDefault("slippage.stddev_window", 20)
	viper.SetDefault("slippage.price_history_capacity", 200)
	viper.SetDefault("slippage.high_liquidity_ratio_pct", 10)
	viper.SetDefault("slippage.mid_liquidity_ratio_pct", 1)

	viper.SetDefault("optimizer.volatility_buckets", 10)
	viper.SetDefault("optimizer.size_buckets", 3)
	viper.SetDefault("optimizer.history_capacity", 1000)
	viper.SetDefault("optimizer.min_samples", 5)
	viper.SetDefault("optimizer.learning_rate", 50)
	viper.SetDefault("optimizer.momentum", 30)
	viper.SetDefault("optimizer.error_threshold_bps", 50)
	viper.SetDefault("optimizer.floor_bps", 5)
	viper.SetDefault("optimizer.ceiling_bps", 1000)
	viper.SetDefault("optimizer.confidence_saturation", 10)

	viper.SetDefault("orders.refresh_interval_sec", 300)
	viper.SetDefault("orders.fill_attempt_limit", 10)
	viper.SetDefault("orders.retry_step_bps", 25)
	viper.SetDefault("orders.safety_ceiling_bps", 1500)
	viper.SetDefault("orders.max_order_age_sec", 86400)
	viper.SetDefault("orders.slippage_stale_sec", 1800)
	viper.SetDefault("orders.history_capacity", 100)

	viper.SetDefault("swaps.default_timelock_sec", 86400)
	viper.SetDefault("swaps.relay_account", "bridge-relay")

	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.admin_secret_hash", "")
}
