package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/ai"
	"github.com/spigell/nanny-match/internal/ai/gemini"
	"github.com/spigell/nanny-match/internal/api"
	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/lifecycle"
	"github.com/spigell/nanny-match/internal/logger"
	"github.com/spigell/nanny-match/internal/matching"
	"github.com/spigell/nanny-match/internal/metrics"
	"github.com/spigell/nanny-match/internal/nannies"
	"github.com/spigell/nanny-match/internal/ranking"
	"github.com/spigell/nanny-match/internal/scoring"
	"github.com/spigell/nanny-match/internal/secrets"
	"github.com/spigell/nanny-match/internal/store"
	"github.com/spigell/nanny-match/internal/store/memcache"
	"github.com/spigell/nanny-match/internal/store/postgres"
	"github.com/spigell/nanny-match/internal/store/sqlite"
)

// application is everything a command needs, wired from Config.
type application struct {
	config  *Config
	logger  *zap.Logger
	metrics *metrics.Manager

	requestStore *store.DualWrite[domain.ParentRequest]
	nannyStore   *store.DualWrite[domain.NannyProfile]

	requests *lifecycle.Service
	nannies  *nannies.Service
	matcher  *matching.Matcher

	closers []func()
}

// mustApplication builds the application or exits, the way every command
// starts.
func mustApplication(ctx context.Context) *application {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	a, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the application", zap.Error(err))
	}
	return a
}

func newApplication(ctx context.Context, config *Config, log *zap.Logger) (*application, error) {
	a := &application{
		config:  config,
		logger:  log,
		metrics: metrics.New(),
	}

	cache, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}

	storeOpts := []store.Option{
		store.WithLogger(log),
		store.WithMetrics(a.metrics),
		store.WithRetries(config.Database.MaxRetries, config.Database.RetryDelay),
	}
	if remote := a.openRemote(ctx); remote != nil {
		storeOpts = append(storeOpts, store.WithRemote(remote))
	}

	a.requestStore, err = store.NewDualWrite[domain.ParentRequest](store.CollectionRequests, cache, storeOpts...)
	if err != nil {
		return nil, err
	}
	a.nannyStore, err = store.NewDualWrite[domain.NannyProfile](store.CollectionNannies, cache, storeOpts...)
	if err != nil {
		return nil, err
	}

	a.requests = lifecycle.New(a.requestStore, lifecycle.WithLogger(log), lifecycle.WithMetrics(a.metrics))
	a.nannies = nannies.New(a.nannyStore, log)

	policy := scoring.DefaultPolicy()
	if path := strings.TrimSpace(config.Scoring.PolicyFile); path != "" {
		policy, err = scoring.LoadPolicy(path)
		if err != nil {
			return nil, fmt.Errorf("loading scoring policy: %w", err)
		}
		log.Info("loaded scoring policy", zap.String("file", path))
	}
	ranker := ranking.New(scoring.New(scoring.WithPolicy(policy)), config.Scoring.ShortlistSize)

	refinerOpts := []matching.RefinerOption{matching.WithMetrics(a.metrics)}
	if config.AI != nil {
		refinerOpts = append(refinerOpts, matching.WithTimeout(config.AI.Timeout))
		if config.AI.Gemini != nil {
			refinerOpts = append(refinerOpts, matching.WithMaxLogLength(config.AI.Gemini.MaxLogLength))
		}
	}

	generator, err := newGenerator(ctx, config.AI, log)
	if err != nil {
		log.Warn("ai refinement disabled", zap.Error(err))
	}

	a.matcher = matching.NewMatcher(ranker, matching.NewRefiner(generator, log, refinerOpts...), log, a.metrics)

	return a, nil
}

func (a *application) openCache(ctx context.Context) (store.Cache, error) {
	path := strings.TrimSpace(a.config.Cache.Path)
	if path == "" {
		a.logger.Debug("using in-memory cache")
		return memcache.New(), nil
	}

	cache, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %q: %w", path, err)
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.logger.Debug("using sqlite cache", zap.String("path", path))
	return cache, nil
}

// openRemote returns nil when no database is configured or it cannot be
// reached; the service then runs on the local cache alone.
func (a *application) openRemote(ctx context.Context) store.Remote {
	db := a.config.Database
	if strings.TrimSpace(db.DSN) == "" && strings.TrimSpace(db.DSNFile) == "" {
		return nil
	}

	dsn, err := secrets.Load(secrets.Source{Name: "database dsn", Value: db.DSN, File: db.DSNFile})
	if err != nil {
		a.logger.Warn("remote store disabled", zap.Error(err))
		return nil
	}

	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		a.logger.Warn("remote store unavailable, running on local cache", zap.Error(err))
		return nil
	}

	remote := postgres.New(pool, db.TablePrefix)
	if err := remote.EnsureSchema(ctx, store.CollectionRequests, store.CollectionNannies); err != nil {
		pool.Close()
		a.logger.Warn("remote store schema", zap.Error(err))
		return nil
	}

	a.closers = append(a.closers, pool.Close)
	return remote
}

func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Generator, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != ai.ProviderGemini {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, gemini.MatchResultSchema(), log)
	if err != nil {
		return nil, err
	}
	return generator, nil
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

func (a *application) clearers() []api.Clearer {
	return []api.Clearer{a.requestStore, a.nannyStore}
}

// redacted hides secrets before the config is logged.
func redacted(c *Config) *Config {
	if c == nil {
		return nil
	}
	out := *c
	if out.Database.DSN != "" {
		out.Database.DSN = "***"
	}
	if out.AI != nil && out.AI.Gemini != nil && out.AI.Gemini.APIKey != "" {
		aiCfg := *out.AI
		gem := *aiCfg.Gemini
		gem.APIKey = "***"
		aiCfg.Gemini = &gem
		out.AI = &aiCfg
	}
	return &out
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
