// Package config loads the wdrc configuration file.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/viper"
)

//go:embed schema.json
var schemaJSON []byte

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrConfig is matched by every ConfigError.
var ErrConfig = errors.New("invalid configuration")

// ConfigError reports a config file that is missing, unreadable, or invalid.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// StoreConfig describes a database connection. DSN wins over the discrete fields.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// Config is the decoded configuration file.
type Config struct {
	Wikidata         StoreConfig   `mapstructure:"wikidata"`
	Store            StoreConfig   `mapstructure:"wdrc"`
	MaxRecentChanges int           `mapstructure:"max_recent_changes"`
	Logging          bool          `mapstructure:"logging"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	LogFile          string        `mapstructure:"log_file"`
	APIURL           string        `mapstructure:"api_url"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	BatchSize        int           `mapstructure:"batch_size"`
	CycleInterval    time.Duration `mapstructure:"cycle_interval"`
	BackoffInitial   time.Duration `mapstructure:"backoff_initial"`
	BackoffMax       time.Duration `mapstructure:"backoff_max"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wikidata.driver", DriverMySQL)
	v.SetDefault("wdrc.driver", DriverSQLite)
	v.SetDefault("max_recent_changes", 500)
	v.SetDefault("logging", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("api_url", "https://www.wikidata.org/w/api.php")
	v.SetDefault("user_agent", "wdrc/0.1.0 (https://github.com/choplin/wdrc)")
	v.SetDefault("max_concurrent", 50)
	v.SetDefault("fetch_timeout", "30s")
	v.SetDefault("batch_size", 500)
	v.SetDefault("cycle_interval", "0s")
	v.SetDefault("backoff_initial", "1s")
	v.SetDefault("backoff_max", "1m")
}

// Load reads, validates and decodes the configuration file at path. An empty path
// selects the default lookup of ResolvePath. WDRC_* environment variables override
// file values.
func Load(path string) (*Config, error) {
	resolved := ResolvePath(path)
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &ConfigError{Path: resolved, Err: err}
	}
	return Parse(resolved, data)
}

// Parse validates and decodes configuration content. name is used in errors only.
func Parse(name string, data []byte) (*Config, error) {
	if err := validate(data); err != nil {
		return nil, &ConfigError{Path: name, Err: err}
	}

	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)
	v.SetEnvPrefix("WDRC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, &ConfigError{Path: name, Err: fmt.Errorf("failed to read config: %w", err)}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Path: name, Err: fmt.Errorf("failed to decode config: %w", err)}
	}
	cfg.Path = name
	if err := cfg.check(); err != nil {
		return nil, &ConfigError{Path: name, Err: err}
	}
	return &cfg, nil
}

func validate(data []byte) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("failed to load config schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("wdrc-config.json", schemaDoc); err != nil {
		return fmt.Errorf("failed to load config schema: %w", err)
	}
	schema, err := compiler.Compile("wdrc-config.json")
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	return nil
}

func (c *Config) check() error {
	if c.Store.Driver == DriverMySQL {
		return fmt.Errorf("wdrc: driver %q is not supported for the change store", c.Store.Driver)
	}
	if c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("backoff_max %s is shorter than backoff_initial %s", c.BackoffMax, c.BackoffInitial)
	}
	return nil
}

// DataSourceName returns the driver-specific connection string.
func (s StoreConfig) DataSourceName() (string, error) {
	if s.DSN != "" {
		return s.DSN, nil
	}
	switch s.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = s.User
		mc.Passwd = s.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(s.Host, s.Port, 3306)
		mc.DBName = s.Database
		return mc.FormatDSN(), nil
	case DriverPostgres:
		u := &url.URL{
			Scheme: "postgres",
			Host:   hostPort(s.Host, s.Port, 5432),
			Path:   "/" + s.Database,
		}
		if s.User != "" {
			if s.Password != "" {
				u.User = url.UserPassword(s.User, s.Password)
			} else {
				u.User = url.User(s.User)
			}
		}
		return u.String(), nil
	case DriverSQLite:
		if s.Database == "" {
			return GetDefaultDBPath(), nil
		}
		return s.Database, nil
	default:
		return "", fmt.Errorf("%w: unknown driver %q", ErrConfig, s.Driver)
	}
}

func hostPort(host string, port, fallback int) string {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = fallback
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
