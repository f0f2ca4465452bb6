package config

import (
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"

	"github.com/taskwell/workpool/pkg/errors"
	"github.com/taskwell/workpool/pkg/pool"
)

type Server struct {
	// Mode selects gin's mode, "dev" or "prod".
	Mode string `default:"dev" mapstructure:"mode"`
	Port int    `default:"8000" mapstructure:"port"`
}

type Pool struct {
	MinWorkers    int `default:"0" mapstructure:"minWorkers"`
	MaxWorkers    int `default:"3" mapstructure:"maxWorkers"`
	QueueCapacity int `default:"64" mapstructure:"queueCapacity"`
	// Admission is "reject" or "block".
	Admission   string        `default:"reject" mapstructure:"admission"`
	IdleTimeout time.Duration `default:"30s" mapstructure:"idleTimeout"`
	// DispatchInterval is how often the runner delivers queued messages.
	DispatchInterval time.Duration `default:"100ms" mapstructure:"dispatchInterval"`
}

type Store struct {
	// Path is the DuckDB database file. ":memory:" keeps history in memory.
	Path string `default:":memory:" mapstructure:"path"`
}

type Configuration struct {
	Server    Server `mapstructure:"server"`
	Pool      Pool   `mapstructure:"pool"`
	Store     Store  `mapstructure:"store"`
	LogLevel  string `default:"info" mapstructure:"logLevel"`
	LogFormat string `default:"console" mapstructure:"logFormat"`
}

// New returns a Configuration populated with defaults.
func New() (*Configuration, error) {
	cfg := &Configuration{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config file at path on top of the defaults. Environment
// variables prefixed with WORKPOOL_ override file values, with dots mapped
// to underscores (WORKPOOL_SERVER_PORT). An empty path skips the file.
func Load(path string) (*Configuration, error) {
	cfg, err := New()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("WORKPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so seed
	// every key from the defaults or env overrides are ignored when the key
	// is absent from the file.
	v.SetDefault("server.mode", cfg.Server.Mode)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("pool.minWorkers", cfg.Pool.MinWorkers)
	v.SetDefault("pool.maxWorkers", cfg.Pool.MaxWorkers)
	v.SetDefault("pool.queueCapacity", cfg.Pool.QueueCapacity)
	v.SetDefault("pool.admission", cfg.Pool.Admission)
	v.SetDefault("pool.idleTimeout", cfg.Pool.IdleTimeout)
	v.SetDefault("pool.dispatchInterval", cfg.Pool.DispatchInterval)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("logLevel", cfg.LogLevel)
	v.SetDefault("logFormat", cfg.LogFormat)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) Validate() error {
	if c.Server.Mode != "dev" && c.Server.Mode != "prod" {
		return errors.NewInvalidConfigError("unknown server mode %q", c.Server.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.NewInvalidConfigError("invalid server port %d", c.Server.Port)
	}
	if _, err := pool.ParseAdmissionPolicy(c.Pool.Admission); err != nil {
		return err
	}
	if c.Pool.DispatchInterval <= 0 {
		return errors.NewInvalidConfigError("dispatch interval must be positive")
	}
	return nil
}

// PoolConfig converts the pool section into the pool package's Config.
func (c *Configuration) PoolConfig() pool.Config {
	admission, _ := pool.ParseAdmissionPolicy(c.Pool.Admission)
	return pool.Config{
		MinWorkers:    c.Pool.MinWorkers,
		MaxWorkers:    c.Pool.MaxWorkers,
		QueueCapacity: c.Pool.QueueCapacity,
		Admission:     admission,
		IdleTimeout:   c.Pool.IdleTimeout,
	}
}
