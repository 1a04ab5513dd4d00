package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nikolayk812/marketplace-checkout/internal/address"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var _ port.PostalLookup = (*PostalLookup)(nil)

const sharedLoadTimeout = 10 * time.Second

// PostalLookup is a read-through cache in front of another PostalLookup. Concurrent misses
// for the same key share one backend call. Cache errors never fail a lookup.
type PostalLookup struct {
	next  port.PostalLookup
	cache *RedisCache
	log   logrus.FieldLogger
	group singleflight.Group
}

func NewPostalLookup(next port.PostalLookup, cache *RedisCache, log logrus.FieldLogger) *PostalLookup {
	return &PostalLookup{
		next:  next,
		cache: cache,
		log:   log,
	}
}

func (p *PostalLookup) NeighborhoodsByPostalCode(ctx context.Context, postalCode string) ([]domain.Neighborhood, error) {
	code := strings.TrimSpace(postalCode)
	return p.lookup(ctx, postalCodeKey(code), func(ctx context.Context) ([]domain.Neighborhood, error) {
		return p.next.NeighborhoodsByPostalCode(ctx, code)
	})
}

func (p *PostalLookup) NeighborhoodsByCity(ctx context.Context, cityName string) ([]domain.Neighborhood, error) {
	return p.lookup(ctx, cityKey(address.Normalize(cityName)), func(ctx context.Context) ([]domain.Neighborhood, error) {
		return p.next.NeighborhoodsByCity(ctx, cityName)
	})
}

// Invalidate drops cached entries, e.g. after a catalog import.
func (p *PostalLookup) Invalidate(ctx context.Context, postalCodes []string, cityNames []string) error {
	keys := make([]string, 0, len(postalCodes)+len(cityNames))
	for _, code := range postalCodes {
		keys = append(keys, postalCodeKey(strings.TrimSpace(code)))
	}
	for _, name := range cityNames {
		keys = append(keys, cityKey(address.Normalize(name)))
	}
	return p.cache.Delete(ctx, keys...)
}

func (p *PostalLookup) lookup(ctx context.Context, key string, load func(ctx context.Context) ([]domain.Neighborhood, error)) ([]domain.Neighborhood, error) {
	ch := p.group.DoChan(key, func() (interface{}, error) {
		// the shared load outlives a caller that gives up
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		nbs, err := p.cache.Get(ctx, key)
		if err == nil {
			return nbs, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			p.log.WithError(err).WithField("key", key).Warn("postal cache get failed")
		}

		nbs, err = load(ctx)
		if err != nil {
			return nil, err
		}

		// empty answers are cached too, the catalog has no entry for the key
		if err := p.cache.Set(ctx, key, nbs); err != nil {
			p.log.WithError(err).WithField("key", key).Warn("postal cache set failed")
		}

		return nbs, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("lookup[%s]: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("lookup[%s]: %w", key, res.Err)
		}
		return res.Val.([]domain.Neighborhood), nil
	}
}
