package storage

import (
	"context"

	"github.com/rs/zerolog"

	"court-notifier/types"
)

// CourtSource is where court metadata ultimately lives.
type CourtSource interface {
	ListCourts(ctx context.Context, club string) ([]types.CourtRef, error)
}

// CourtCache is a best-effort cache in front of a CourtSource.
type CourtCache interface {
	GetCourts(ctx context.Context, club string) ([]types.CourtRef, error)
	SaveCourts(ctx context.Context, club string, courts []types.CourtRef) error
}

// Catalog reads courts through the cache. Cache failures are logged and
// never fail the lookup.
type Catalog struct {
	source CourtSource
	cache  CourtCache
	log    zerolog.Logger
}

func NewCatalog(source CourtSource, cache CourtCache, log zerolog.Logger) *Catalog {
	return &Catalog{source: source, cache: cache, log: log}
}

func (c *Catalog) ListCourts(ctx context.Context, club string) ([]types.CourtRef, error) {
	if c.cache != nil {
		cached, err := c.cache.GetCourts(ctx, club)
		if err == nil && cached != nil {
			c.log.Debug().Str("club", club).Int("courts", len(cached)).Msg("🎾 Loaded courts from cache")
			return cached, nil
		}
		if err != nil {
			c.log.Warn().Err(err).Str("club", club).Msg("⚠️ Court cache read failed")
		}
	}

	courts, err := c.source.ListCourts(ctx, club)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.SaveCourts(ctx, club, courts); err != nil {
			c.log.Warn().Err(err).Str("club", club).Msg("⚠️ Failed to cache courts")
		}
	}
	return courts, nil
}
