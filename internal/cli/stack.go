package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/reqforge/reqforge/pkg/cache"
	"github.com/reqforge/reqforge/pkg/config"
	"github.com/reqforge/reqforge/pkg/pypi"
	"github.com/reqforge/reqforge/pkg/resolver"
	"github.com/reqforge/reqforge/pkg/store"
)

// stack is the assembled service: store, cache, client, and resolver, with a
// close function releasing backend resources.
type stack struct {
	cfg     config.Config
	store   store.Store
	cache   *cache.Manager
	service *resolver.Service
}

// loadConfig reads the root --config flag and loads the file, or defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	return config.Load(path)
}

// buildStack constructs the full service from configuration. A store
// initialization failure is the only fatal error in the system.
func buildStack(ctx context.Context, cfg config.Config, logger *log.Logger) (*stack, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("initializing %s store: %w", cfg.Store.Backend, err)
	}

	c := cache.New(st, cache.TTLs{
		Package:   cfg.Cache.PackageTTL(),
		Search:    cfg.Cache.SearchTTL(),
		IndexList: cfg.Cache.IndexListTTL(),
	}, logger)

	client := pypi.NewClient(pypi.Options{
		IndexURL:           cfg.Index.URL,
		UserAgent:          cfg.Index.UserAgent,
		Timeout:            cfg.Index.Timeout(),
		Attempts:           cfg.Index.Attempts,
		RequestsPerMinute:  cfg.Index.RequestsPerMinute,
		MinRequestInterval: cfg.Index.MinInterval(),
		Logger:             logger,
	})

	return &stack{
		cfg:     cfg,
		store:   st,
		cache:   c,
		service: resolver.NewService(client, c, logger),
	}, nil
}

func (s *stack) close() {
	if err := s.store.Close(); err != nil {
		log.Default().Warn("closing store", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreFile:
		return store.NewFileStore(cfg.Dir)
	case config.StoreRedis:
		return store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case config.StoreMongo:
		return store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
