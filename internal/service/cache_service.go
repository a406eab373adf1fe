package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-platform-api/internal/aggregate"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values matching the pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateStudent drops every cached analytics payload derived from a
// student's activity, including the class reports of the given classes.
func (s *CacheService) InvalidateStudent(ctx context.Context, studentID string, classIDs ...string) {
	if !s.Enabled() {
		return
	}
	patterns := []string{
		fmt.Sprintf("reports:student:%s:*", studentID),
		fmt.Sprintf("practice:stats:%s:*", studentID),
		fmt.Sprintf("practice:progress:%s:*", studentID),
	}
	for _, classID := range classIDs {
		if classID != "" {
			patterns = append(patterns, fmt.Sprintf("reports:class:%s:*", classID))
		}
	}
	for _, pattern := range patterns {
		_ = s.Invalidate(ctx, pattern)
	}
}

// cacheAside serves key from the cache, otherwise builds the value and stores it.
// The bool reports a cache hit. Cache failures never fail the call.
func cacheAside[T any](ctx context.Context, cache *CacheService, key string, ttl time.Duration, build func(context.Context) (*T, error)) (*T, bool, error) {
	var cached T
	if hit, _ := cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}
	value, err := build(ctx)
	if err != nil {
		return nil, false, err
	}
	_ = cache.Set(ctx, key, value, ttl)
	return value, false, nil
}

func studentReportKey(studentID string, w aggregate.Window) string {
	return fmt.Sprintf("reports:student:%s:%s", studentID, w.CacheKey())
}

func classReportKey(classID string, w aggregate.Window) string {
	return fmt.Sprintf("reports:class:%s:%s", classID, w.CacheKey())
}

func practiceStatsKey(studentID string, w aggregate.Window) string {
	return fmt.Sprintf("practice:stats:%s:%s", studentID, w.CacheKey())
}

func practiceProgressKey(studentID string, w aggregate.Window) string {
	return fmt.Sprintf("practice:progress:%s:%s", studentID, w.CacheKey())
}
