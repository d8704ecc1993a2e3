package tilecache

import (
	"fmt"
	"net/url"
	"os"

	"github.com/always-cache/tile-cache/store"

	redis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

const (
	ProviderSQLite = "sqlite"
	ProviderRedis  = "redis"
	ProviderMemory = "memory"
	ProviderNone   = "none"
)

// FileConfig is the configuration file of the tile-cache command.
type FileConfig struct {
	Port   int         `yaml:"port"`
	Origin string      `yaml:"origin"`
	Store  StoreConfig `yaml:"store"`
	Cache  CacheConfig `yaml:"cache"`
	Log    LogConfig   `yaml:"log"`
}

type StoreConfig struct {
	// One of sqlite, redis, memory or none.
	Provider    string `yaml:"provider"`
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisPrefix string `yaml:"redisPrefix"`
}

type CacheConfig struct {
	Namespace      string `yaml:"namespace"`
	Limit          int    `yaml:"limit"`
	CheckThreshold int    `yaml:"checkThreshold"`
	IgnoreSearch   bool   `yaml:"ignoreSearch"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Trace bool   `yaml:"trace"`
}

// DefaultFileConfig returns the configuration used for anything a file leaves out.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Port: 8080,
		Store: StoreConfig{
			Provider: ProviderSQLite,
			Path:     "cache.db",
		},
		Cache: CacheConfig{
			Namespace:      DefaultNamespace,
			Limit:          DefaultLimit,
			CheckThreshold: DefaultCheckThreshold,
		},
	}
}

// LoadConfig reads the YAML configuration file, on top of the defaults.
func LoadConfig(filename string) (FileConfig, error) {
	config := DefaultFileConfig()
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("could not read config: %w", err)
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("could not parse config %s: %w", filename, err)
	}
	return config, nil
}

func (f FileConfig) Validate() error {
	if f.Port <= 0 || f.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, f.Port)
	}
	if _, err := f.OriginURL(); err != nil {
		return err
	}
	switch f.Store.Provider {
	case ProviderSQLite, ProviderMemory, ProviderNone:
	case ProviderRedis:
		if f.Store.RedisAddr == "" {
			return fmt.Errorf("%w: redis provider needs redisAddr", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store provider %q", ErrInvalidConfig, f.Store.Provider)
	}
	if f.Cache.Limit < 0 || f.Cache.CheckThreshold < 0 {
		return fmt.Errorf("%w: limit and checkThreshold must not be negative", ErrInvalidConfig)
	}
	return nil
}

// OriginURL parses the origin, which must be an absolute http(s) URL without a path.
func (f FileConfig) OriginURL() (*url.URL, error) {
	if f.Origin == "" {
		return nil, fmt.Errorf("%w: origin not set", ErrInvalidConfig)
	}
	u, err := url.Parse(f.Origin)
	if err != nil {
		return nil, fmt.Errorf("%w: origin: %v", ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: origin %q is not an absolute http(s) URL", ErrInvalidConfig, f.Origin)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("%w: origin %q has a path", ErrInvalidConfig, f.Origin)
	}
	return u, nil
}

// OpenStore creates the configured store provider.
// The returned function closes it; the provider is nil for the none provider.
func (s StoreConfig) OpenStore() (store.Provider, func() error, error) {
	noop := func() error { return nil }
	switch s.Provider {
	case ProviderSQLite:
		db, err := store.NewSQLite(s.Path)
		if err != nil {
			return nil, noop, err
		}
		return db, db.Close, nil
	case ProviderRedis:
		r := store.NewRedis(redis.NewClient(&redis.Options{Addr: s.RedisAddr}), s.RedisPrefix)
		return r, r.Close, nil
	case ProviderMemory:
		m := store.NewMemory()
		return m, m.Close, nil
	case ProviderNone:
		return nil, noop, nil
	}
	return nil, noop, fmt.Errorf("%w: unknown store provider %q", ErrInvalidConfig, s.Provider)
}

// TileCacheConfig returns the cache configuration for the given store.
func (f FileConfig) TileCacheConfig(provider store.Provider) Config {
	return Config{
		Store:          provider,
		Namespace:      f.Cache.Namespace,
		Limit:          f.Cache.Limit,
		CheckThreshold: f.Cache.CheckThreshold,
		IgnoreSearch:   f.Cache.IgnoreSearch,
	}
}
