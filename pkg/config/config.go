// Package config loads service configuration from a TOML file, applying
// defaults for every omitted field so an empty or missing file yields a
// working single-instance setup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Store backend kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

// Config is the full service configuration.
type Config struct {
	Server Server `toml:"server"`
	Index  Index  `toml:"index"`
	Cache  Cache  `toml:"cache"`
	Store  Store  `toml:"store"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `toml:"addr"`
}

// Index configures the upstream package index and outbound request behavior.
type Index struct {
	URL               string `toml:"url"`
	UserAgent         string `toml:"user_agent"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	Attempts          int    `toml:"attempts"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	MinIntervalMillis int    `toml:"min_interval_ms"`
}

// Cache configures per-tier lifetimes, in minutes.
type Cache struct {
	PackageTTLMinutes   int `toml:"package_ttl_minutes"`
	SearchTTLMinutes    int `toml:"search_ttl_minutes"`
	IndexListTTLMinutes int `toml:"index_list_ttl_minutes"`
}

// Store selects and configures the persistence backend.
type Store struct {
	Backend string `toml:"backend"`

	// File backend.
	Dir string `toml:"dir"`

	// Redis backend.
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// Mongo backend.
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Index: Index{
			URL:               "https://pypi.org",
			TimeoutSeconds:    30,
			Attempts:          3,
			RequestsPerMinute: 30,
			MinIntervalMillis: 200,
		},
		Cache: Cache{
			PackageTTLMinutes:   6 * 60,
			SearchTTLMinutes:    60,
			IndexListTTLMinutes: 12 * 60,
		},
		Store: Store{
			Backend:         StoreMemory,
			Dir:             defaultStoreDir(),
			RedisAddr:       "localhost:6379",
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   "reqforge",
			MongoCollection: "cache",
		},
	}
}

func defaultStoreDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/reqforge"
	}
	return ".reqforge-cache"
}

// Load reads a TOML config file over the defaults. An empty path returns the
// defaults unchanged; a missing file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis, StoreMongo:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Index.URL == "" {
		return fmt.Errorf("index url must not be empty")
	}
	return nil
}

// Timeout returns the outbound request timeout.
func (i Index) Timeout() time.Duration { return time.Duration(i.TimeoutSeconds) * time.Second }

// MinInterval returns the minimum spacing between outbound requests.
func (i Index) MinInterval() time.Duration {
	return time.Duration(i.MinIntervalMillis) * time.Millisecond
}

// PackageTTL returns the package tier lifetime.
func (c Cache) PackageTTL() time.Duration { return time.Duration(c.PackageTTLMinutes) * time.Minute }

// SearchTTL returns the search and resolution tier lifetime.
func (c Cache) SearchTTL() time.Duration { return time.Duration(c.SearchTTLMinutes) * time.Minute }

// IndexListTTL returns the index-listing tier lifetime.
func (c Cache) IndexListTTL() time.Duration {
	return time.Duration(c.IndexListTTLMinutes) * time.Minute
}
