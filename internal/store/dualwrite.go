package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/nanny-match/internal/domain"
	"github.com/spigell/nanny-match/internal/logger"
	"github.com/spigell/nanny-match/internal/metrics"
	"github.com/spigell/nanny-match/internal/util"
)

const (
	defaultRetryBase  = 200 * time.Millisecond
	defaultRetryLimit = 5 * time.Second
)

type options struct {
	remote       Remote
	logger       *zap.Logger
	metrics      *metrics.Manager
	maxRetries   int
	retryBase    time.Duration
	testPrefixes []string
}

// Option configures a DualWrite store.
type Option func(*options)

// WithRemote enables mirroring to r. A nil Remote keeps the store local-only.
func WithRemote(r Remote) Option {
	return func(o *options) { o.remote = r }
}

// WithLogger sets the logger for fallback warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics counts remote failures and cache corruption.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *options) { o.metrics = m }
}

// WithRetries retries failed remote writes up to n extra times with
// exponential backoff starting at base.
func WithRetries(n int, base time.Duration) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
		if base > 0 {
			o.retryBase = base
		}
	}
}

// WithTestPrefixes overrides DefaultTestPrefixes.
func WithTestPrefixes(prefixes ...string) Option {
	return func(o *options) {
		if len(prefixes) > 0 {
			o.testPrefixes = prefixes
		}
	}
}

// DualWrite stores entities of one collection locally and mirrors them to
// the remote store. Remote failures never surface to callers; they are
// logged and the local state stands.
type DualWrite[T Entity] struct {
	collection string
	cache      Cache
	opts       options
	logger     *zap.Logger

	mu       sync.Mutex
	versions map[string]uint64
}

// NewDualWrite returns a store for one collection kept in cache.
func NewDualWrite[T Entity](collection string, cache Cache, opts ...Option) (*DualWrite[T], error) {
	if collection == "" {
		return nil, errors.New("collection name is required")
	}
	if cache == nil {
		return nil, errors.New("local cache is required")
	}

	o := options{
		retryBase:    defaultRetryBase,
		testPrefixes: DefaultTestPrefixes,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &DualWrite[T]{
		collection: collection,
		cache:      cache,
		opts:       o,
		logger:     logger.WithFields(o.logger, zap.String(logger.FieldCollection, collection)),
		versions:   make(map[string]uint64),
	}, nil
}

// Collection returns the collection name.
func (s *DualWrite[T]) Collection() string { return s.collection }

// Save upserts entity locally, then remotely. The remote copy replaces the
// local one unless the same id was written again in the meantime.
func (s *DualWrite[T]) Save(ctx context.Context, entity T) (T, error) {
	id := entity.EntityID()
	if id == "" {
		var zero T
		return zero, domain.NewValidationError("id", "must not be empty")
	}

	s.mu.Lock()
	items, err := s.loadLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		var zero T
		return zero, err
	}
	items = upsert(items, entity)
	if err := s.storeLocked(ctx, items); err != nil {
		s.mu.Unlock()
		var zero T
		return zero, err
	}
	s.versions[id]++
	version := s.versions[id]
	s.mu.Unlock()

	if s.opts.remote == nil {
		return entity, nil
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return entity, fmt.Errorf("marshal %s %s: %w", s.collection, id, err)
	}

	var rec Record
	err = s.retry(ctx, "upsert", func(ctx context.Context) error {
		var err error
		rec, err = s.opts.remote.Upsert(ctx, s.collection, id, payload)
		return err
	})
	if err != nil {
		s.remoteFailed("upsert", err, zap.String("id", id))
		return entity, nil
	}

	remote, err := decode[T](rec.Payload)
	if err != nil {
		s.logger.Warn("ignoring undecodable remote payload", zap.String("id", id), zap.Error(err))
		return entity, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.versions[id] != version {
		s.logger.Debug("discarding stale remote response", zap.String("id", id))
		return entity, nil
	}

	items, err = s.loadLocked(ctx)
	if err != nil {
		return remote, nil
	}
	if err := s.storeLocked(ctx, upsert(items, remote)); err != nil {
		s.logger.Warn("caching remote response", zap.String("id", id), zap.Error(err))
	}

	return remote, nil
}

// Get reads the local cache and falls back to the remote store on a miss.
func (s *DualWrite[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	s.mu.Lock()
	items, err := s.loadLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return zero, err
	}

	if i := slices.IndexFunc(items, func(item T) bool { return item.EntityID() == id }); i >= 0 {
		return items[i], nil
	}

	if s.opts.remote == nil {
		return zero, fmt.Errorf("%s %s: %w", s.collection, id, domain.ErrNotFound)
	}

	rec, err := s.opts.remote.Get(ctx, s.collection, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.remoteFailed("get", err, zap.String("id", id))
		}
		return zero, fmt.Errorf("%s %s: %w", s.collection, id, domain.ErrNotFound)
	}

	entity, err := decode[T](rec.Payload)
	if err != nil {
		s.logger.Warn("ignoring undecodable remote payload", zap.String("id", id), zap.Error(err))
		return zero, fmt.Errorf("%s %s: %w", s.collection, id, domain.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if items, err := s.loadLocked(ctx); err == nil {
		if !slices.ContainsFunc(items, func(item T) bool { return item.EntityID() == id }) {
			if err := s.storeLocked(ctx, upsert(items, entity)); err != nil {
				s.logger.Warn("caching remote entity", zap.String("id", id), zap.Error(err))
			}
		}
	}

	return entity, nil
}

// List returns all entities, newest first. A successful remote read replaces
// the local cache.
func (s *DualWrite[T]) List(ctx context.Context) ([]T, error) {
	if s.opts.remote != nil {
		records, err := s.opts.remote.List(ctx, s.collection)
		if err == nil {
			items := make([]T, 0, len(records))
			for _, rec := range records {
				entity, err := decode[T](rec.Payload)
				if err != nil {
					s.logger.Warn("skipping undecodable remote payload", zap.String("id", rec.ID), zap.Error(err))
					continue
				}
				items = append(items, entity)
			}
			sortNewestFirst(items)

			s.mu.Lock()
			if err := s.storeLocked(ctx, items); err != nil {
				s.logger.Warn("caching remote list", zap.Error(err))
			}
			s.mu.Unlock()

			return items, nil
		}
		s.remoteFailed("list", err)
	}

	s.mu.Lock()
	items, err := s.loadLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sortNewestFirst(items)
	return items, nil
}

// Clear deletes every entity, or only those with a test id prefix when
// testOnly is set. It reports the larger of the local and remote counts.
func (s *DualWrite[T]) Clear(ctx context.Context, testOnly bool) (int, error) {
	s.mu.Lock()
	items, err := s.loadLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	kept := make([]T, 0, len(items))
	for _, item := range items {
		if testOnly && !IsTestID(item.EntityID(), s.opts.testPrefixes) {
			kept = append(kept, item)
			continue
		}
		s.versions[item.EntityID()]++
	}
	removed := len(items) - len(kept)

	if err := s.storeLocked(ctx, kept); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	if s.opts.remote == nil {
		return removed, nil
	}

	var remoteRemoved int
	err = s.retry(ctx, "delete", func(ctx context.Context) error {
		var err error
		if testOnly {
			remoteRemoved, err = s.opts.remote.DeleteByPrefix(ctx, s.collection, s.opts.testPrefixes)
		} else {
			remoteRemoved, err = s.opts.remote.DeleteAll(ctx, s.collection)
		}
		return err
	})
	if err != nil {
		s.remoteFailed("delete", err, zap.Bool("test_only", testOnly))
		return removed, nil
	}

	s.logger.Info("cleared collection",
		zap.Bool("test_only", testOnly),
		zap.Int("local", removed),
		zap.Int("remote", remoteRemoved),
	)

	return max(removed, remoteRemoved), nil
}

func (s *DualWrite[T]) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.opts.maxRetries; attempt++ {
		if attempt > 0 {
			delay := util.Backoff(s.opts.retryBase, defaultRetryLimit, attempt)
			s.logger.Debug("retrying remote call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if waitErr := util.WaitFor(ctx, delay); waitErr != nil {
				return errors.Join(err, waitErr)
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

func (s *DualWrite[T]) remoteFailed(op string, err error, fields ...zap.Field) {
	s.opts.metrics.RecordRemoteFailure(s.collection, op)
	s.logger.Warn("remote store unavailable, using local cache",
		append(fields, zap.String("op", op), zap.Error(err))...,
	)
}

// loadLocked reads the collection blob. A blob that does not parse is
// treated as an empty collection.
func (s *DualWrite[T]) loadLocked(ctx context.Context) ([]T, error) {
	data, err := s.cache.Load(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("load %s from cache: %w", s.collection, err)
	}
	if len(data) == 0 {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		s.opts.metrics.RecordCacheCorruption(s.collection)
		s.logger.Warn("local cache is corrupted, treating as empty",
			zap.Int("bytes", len(data)),
			zap.String("preview", util.TruncateForLog(string(data), 80)),
			zap.Error(err),
		)
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (s *DualWrite[T]) storeLocked(ctx context.Context, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.collection, err)
	}
	if err := s.cache.Store(ctx, s.collection, data); err != nil {
		return fmt.Errorf("store %s in cache: %w", s.collection, err)
	}
	return nil
}

func upsert[T Entity](items []T, entity T) []T {
	id := entity.EntityID()
	if i := slices.IndexFunc(items, func(item T) bool { return item.EntityID() == id }); i >= 0 {
		out := slices.Clone(items)
		out[i] = entity
		return out
	}
	return append([]T{entity}, items...)
}

func decode[T Entity](payload []byte) (T, error) {
	var entity T
	if err := json.Unmarshal(payload, &entity); err != nil {
		return entity, err
	}
	return entity, nil
}

func sortNewestFirst[T Entity](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return b.EntityCreatedAt().Compare(a.EntityCreatedAt())
	})
}
