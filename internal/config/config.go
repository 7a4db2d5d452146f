package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "README_SERVICE_CONFIG"
	addrEnv         = "PORT"
	logModeEnv      = "LOG_MODE"
	tokenEnv        = "FIGSHARE_TOKEN"
	stageTokenEnv   = "FIGSHARE_STAGE_TOKEN"
	storeDriverEnv  = "STORE_DRIVER"
	storePathEnv    = "STORE_PATH"
	storeDSNEnv     = "STORE_DSN"
	redisAddrEnv    = "REDIS_ADDR"
	tracingEnv      = "TRACING_ENABLED"
	defaultPageSize = 1000
)

// ErrMissingCredential is returned by Validate when an upstream token cannot be found.
var ErrMissingCredential = errors.New("missing figshare credential")

// Config holds every setting the service reads at startup. It is read-only after Load.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Figshare FigshareConfig `yaml:"figshare"`
	Store    StoreConfig    `yaml:"store"`
	Cache    CacheConfig    `yaml:"cache"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig describes the inbound HTTP listener.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	GinMode     string   `yaml:"ginMode"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// LoggingConfig selects the zap preset ("dev" or "prod").
type LoggingConfig struct {
	Mode string `yaml:"mode"`
}

// FigshareConfig describes both upstream deployments.
type FigshareConfig struct {
	ProductionURL  string        `yaml:"productionUrl"`
	StageURL       string        `yaml:"stageUrl"`
	Token          string        `yaml:"token"`
	StageToken     string        `yaml:"stageToken"`
	TokenFile      string        `yaml:"tokenFile"`
	StageTokenFile string        `yaml:"stageTokenFile"`
	Timeout        time.Duration `yaml:"timeout"`
	RateLimit      float64       `yaml:"rateLimit"`
	PageSize       int           `yaml:"pageSize"`
}

// StoreConfig picks the intake store backend.
type StoreConfig struct {
	Driver string      `yaml:"driver"`
	Path   string      `yaml:"path"`
	DSN    string      `yaml:"dsn"`
	Mongo  MongoConfig `yaml:"mongo"`
}

// MongoConfig names the database and collection used by the mongo driver.
type MongoConfig struct {
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// CacheConfig enables the redis cache for public article payloads when Addr is set.
type CacheConfig struct {
	RedisAddr string        `yaml:"redisAddr"`
	TTL       time.Duration `yaml:"ttl"`
}

// TracingConfig toggles the OpenTelemetry stdout exporter.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
}

// Load reads .env (if present), the YAML file named by README_SERVICE_CONFIG (if set),
// then applies environment overrides and token-file fallbacks.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	if err := cfg.applyTokenFiles(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports configuration that makes startup impossible.
func (c Config) Validate() error {
	if c.Figshare.Token == "" {
		return fmt.Errorf("%w: production token (set %s or figshare.tokenFile)", ErrMissingCredential, tokenEnv)
	}
	if c.Figshare.StageToken == "" {
		return fmt.Errorf("%w: stage token (set %s or figshare.stageTokenFile)", ErrMissingCredential, stageTokenEnv)
	}
	switch c.Store.Driver {
	case "jsonfile", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for driver %s", c.Store.Driver)
		}
	case "postgres", "mongo":
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(addrEnv); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv(logModeEnv); v != "" {
		c.Logging.Mode = v
	}
	if v := os.Getenv(tokenEnv); v != "" {
		c.Figshare.Token = v
	}
	if v := os.Getenv(stageTokenEnv); v != "" {
		c.Figshare.StageToken = v
	}
	if v := os.Getenv(storeDriverEnv); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(storePathEnv); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(storeDSNEnv); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv(tracingEnv); v != "" {
		c.Tracing.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
}

// applyTokenFiles fills credentials still empty after env overrides from their files.
func (c *Config) applyTokenFiles() error {
	var err error
	if c.Figshare.Token == "" && c.Figshare.TokenFile != "" {
		if c.Figshare.Token, err = readToken(c.Figshare.TokenFile); err != nil {
			return err
		}
	}
	if c.Figshare.StageToken == "" && c.Figshare.StageTokenFile != "" {
		if c.Figshare.StageToken, err = readToken(c.Figshare.StageTokenFile); err != nil {
			return err
		}
	}
	return nil
}

func readToken(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("config: read token file %s: %w", path, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.GinMode != "" {
		base.Server.GinMode = override.Server.GinMode
	}
	if len(override.Server.CORSOrigins) > 0 {
		base.Server.CORSOrigins = override.Server.CORSOrigins
	}

	if override.Logging.Mode != "" {
		base.Logging.Mode = override.Logging.Mode
	}

	f := override.Figshare
	if f.ProductionURL != "" {
		base.Figshare.ProductionURL = f.ProductionURL
	}
	if f.StageURL != "" {
		base.Figshare.StageURL = f.StageURL
	}
	if f.Token != "" {
		base.Figshare.Token = f.Token
	}
	if f.StageToken != "" {
		base.Figshare.StageToken = f.StageToken
	}
	if f.TokenFile != "" {
		base.Figshare.TokenFile = f.TokenFile
	}
	if f.StageTokenFile != "" {
		base.Figshare.StageTokenFile = f.StageTokenFile
	}
	if f.Timeout > 0 {
		base.Figshare.Timeout = f.Timeout
	}
	if f.RateLimit > 0 {
		base.Figshare.RateLimit = f.RateLimit
	}
	if f.PageSize > 0 {
		base.Figshare.PageSize = f.PageSize
	}

	if override.Store.Driver != "" {
		base.Store.Driver = override.Store.Driver
	}
	if override.Store.Path != "" {
		base.Store.Path = override.Store.Path
	}
	if override.Store.DSN != "" {
		base.Store.DSN = override.Store.DSN
	}
	if override.Store.Mongo.Database != "" {
		base.Store.Mongo.Database = override.Store.Mongo.Database
	}
	if override.Store.Mongo.Collection != "" {
		base.Store.Mongo.Collection = override.Store.Mongo.Collection
	}

	if override.Cache.RedisAddr != "" {
		base.Cache.RedisAddr = override.Cache.RedisAddr
	}
	if override.Cache.TTL > 0 {
		base.Cache.TTL = override.Cache.TTL
	}

	if override.Tracing.Enabled {
		base.Tracing.Enabled = true
	}
	if override.Tracing.ServiceName != "" {
		base.Tracing.ServiceName = override.Tracing.ServiceName
	}

	return base
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8000", GinMode: "release"},
		Logging: LoggingConfig{Mode: "dev"},
		Figshare: FigshareConfig{
			ProductionURL:  "https://api.figshare.com",
			StageURL:       "https://api.figsh.com",
			TokenFile:      "figshare_token",
			StageTokenFile: "figshare_stage_token",
			Timeout:        30 * time.Second,
			PageSize:       defaultPageSize,
		},
		Store: StoreConfig{
			Driver: "jsonfile",
			Path:   "intake.json",
			Mongo:  MongoConfig{Database: "readme", Collection: "intake"},
		},
		Cache:   CacheConfig{TTL: 10 * time.Minute},
		Tracing: TracingConfig{ServiceName: "readme-service"},
	}
}
