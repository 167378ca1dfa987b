package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Trading   TradingConfig   `yaml:"trading"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"` // sqlite file
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
	Dir    string `yaml:"dir"`
}

// TradingConfig holds the rules enforced by the trade engine and the sweeper
type TradingConfig struct {
	PayoutRate         float64       `yaml:"payout_rate"`
	MinAmount          float64       `yaml:"min_amount"`
	MaxAmount          float64       `yaml:"max_amount"`
	MinDurationMinutes int           `yaml:"min_duration_minutes"`
	MaxDurationMinutes int           `yaml:"max_duration_minutes"`
	StartingBalance    float64       `yaml:"starting_balance"`
	MaxDeposit         float64       `yaml:"max_deposit"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	SweepConcurrency   int           `yaml:"sweep_concurrency"`
	SweepBatchSize     int           `yaml:"sweep_batch_size"`
	OpenRatePerSecond  float64       `yaml:"open_rate_per_second"`
	OpenRateBurst      int           `yaml:"open_rate_burst"`
}

// SimulatorConfig holds the settings of the simulated price feed
type SimulatorConfig struct {
	Enabled        bool          `yaml:"enabled"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	Volatility     float64       `yaml:"volatility"`
	Precision      int32         `yaml:"precision"`
	CandleInterval time.Duration `yaml:"candle_interval"`
	SeedDefaults   bool          `yaml:"seed_defaults"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a .env file, the YAML file and environment variables
func Load(path string) (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	cfg := &Config{}

	// Load from YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Override with environment variables if present
	cfg.loadFromEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Path == "" {
		c.Database.Path = "options.db"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	t := &c.Trading
	if t.PayoutRate == 0 {
		t.PayoutRate = 0.8
	}
	if t.MinAmount == 0 {
		t.MinAmount = 1
	}
	if t.MaxAmount == 0 {
		t.MaxAmount = 10000
	}
	if t.MinDurationMinutes == 0 {
		t.MinDurationMinutes = 1
	}
	if t.MaxDurationMinutes == 0 {
		t.MaxDurationMinutes = 1440
	}
	if t.StartingBalance == 0 {
		t.StartingBalance = 1000
	}
	if t.MaxDeposit == 0 {
		t.MaxDeposit = 100000
	}
	if t.SweepInterval == 0 {
		t.SweepInterval = time.Second
	}
	if t.SweepConcurrency == 0 {
		t.SweepConcurrency = 4
	}
	if t.SweepBatchSize == 0 {
		t.SweepBatchSize = 500
	}
	if t.OpenRatePerSecond == 0 {
		t.OpenRatePerSecond = 5
	}
	if t.OpenRateBurst == 0 {
		t.OpenRateBurst = 10
	}

	s := &c.Simulator
	if s.TickInterval == 0 {
		s.TickInterval = 3 * time.Second
	}
	if s.Volatility == 0 {
		s.Volatility = 0.001
	}
	if s.Precision == 0 {
		s.Precision = 4
	}
	if s.CandleInterval == 0 {
		s.CandleInterval = time.Minute
	}
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}

	t := c.Trading
	if t.PayoutRate <= 0 {
		errs = append(errs, errors.New("trading.payout_rate must be positive"))
	}
	if t.MinAmount <= 0 {
		errs = append(errs, errors.New("trading.min_amount must be positive"))
	}
	if t.MaxAmount < t.MinAmount {
		errs = append(errs, errors.New("trading.max_amount must not be below trading.min_amount"))
	}
	if t.MinDurationMinutes < 1 {
		errs = append(errs, errors.New("trading.min_duration_minutes must be at least 1"))
	}
	if t.MaxDurationMinutes < t.MinDurationMinutes {
		errs = append(errs, errors.New("trading.max_duration_minutes must not be below trading.min_duration_minutes"))
	}
	if t.StartingBalance < 0 {
		errs = append(errs, errors.New("trading.starting_balance must not be negative"))
	}
	if t.SweepInterval <= 0 {
		errs = append(errs, errors.New("trading.sweep_interval must be positive"))
	}
	if t.SweepConcurrency < 1 {
		errs = append(errs, errors.New("trading.sweep_concurrency must be at least 1"))
	}

	s := c.Simulator
	if s.TickInterval <= 0 {
		errs = append(errs, errors.New("simulator.tick_interval must be positive"))
	}
	if s.Volatility < 0 {
		errs = append(errs, errors.New("simulator.volatility must not be negative"))
	}
	if s.CandleInterval <= 0 {
		errs = append(errs, errors.New("simulator.candle_interval must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v
	}

	// Database
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		c.Database.SSLMode = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Database.Path = v
	}

	// Redis
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	// Log
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		c.Log.Dir = v
	}

	// Trading
	if v := os.Getenv("TRADING_PAYOUT_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.Trading.PayoutRate = rate
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Trading.SweepInterval = d
		}
	}

	// Simulator
	if v := os.Getenv("PRICE_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Simulator.TickInterval = d
		}
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
