package ruleparser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Cache is the subset of the cache service the parser needs.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedParser memoises successful parses keyed by text and staff context.
type CachedParser struct {
	next   Parser
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedParser wraps next with a result cache.
func NewCachedParser(next Parser, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedParser{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Parse implements Parser. Failed parses are never cached.
func (p *CachedParser) Parse(ctx context.Context, text string, staff map[string]string) (*ParseResult, error) {
	if p.cache == nil {
		return p.next.Parse(ctx, text, staff)
	}
	key := CacheKey(text, staff)

	var cached ParseResult
	if hit, err := p.cache.Get(ctx, key, &cached); err == nil && hit && cached.Success && cached.Constraint != nil {
		return &cached, nil
	}

	res, err := p.next.Parse(ctx, text, staff)
	if err != nil || res == nil || !res.Success {
		return res, err
	}
	if err := p.cache.Set(ctx, key, res, p.ttl); err != nil {
		p.logger.Warn("rule parse cache write failed", zap.Error(err))
	}
	return res, nil
}

// CacheKey hashes normalised text plus the sorted staff context.
func CacheKey(text string, staff map[string]string) string {
	ids := make([]string, 0, len(staff))
	for id := range staff {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(text), " "))))
	for _, id := range ids {
		h.Write([]byte{0})
		h.Write([]byte(id))
		h.Write([]byte{'='})
		h.Write([]byte(staff[id]))
	}
	return "cafe-roster:rule-parse:" + hex.EncodeToString(h.Sum(nil))
}
