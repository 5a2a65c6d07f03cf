package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/logger"
)

// CandidateLister loads the stored identities of one role.
type CandidateLister interface {
	ListCandidates(ctx context.Context, role Role) ([]Candidate, error)
}

// Pool caches candidate lists per role so repeated matches within a
// session do not reload and decode every stored vector.
type Pool struct {
	lister CandidateLister
	cache  *cache.Cache
	mu     sync.Mutex // serializes loads so concurrent misses hit the store once
}

// NewPool returns a Pool backed by lister. A ttl of 0 uses cache.NoExpiration.
func NewPool(lister CandidateLister, ttl, cleanup time.Duration) *Pool {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Pool{
		lister: lister,
		cache:  cache.New(ttl, cleanup),
	}
}

// Candidates returns the cached pool for role, loading it on a miss.
func (p *Pool) Candidates(ctx context.Context, role Role) ([]Candidate, error) {
	if cached, found := p.cache.Get(string(role)); found {
		if candidates, ok := cached.([]Candidate); ok {
			return candidates, nil
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, found := p.cache.Get(string(role)); found {
		if candidates, ok := cached.([]Candidate); ok {
			return candidates, nil
		}
	}

	candidates, err := p.lister.ListCandidates(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("load %s candidates: %w", role, err)
	}

	p.cache.Set(string(role), candidates, cache.DefaultExpiration)
	GetLogger().Debug("candidate pool loaded",
		logger.String("role", string(role)),
		logger.Int("count", len(candidates)))

	return candidates, nil
}

// Identify matches query against the pool for role.
func (p *Pool) Identify(ctx context.Context, role Role, query biometric.FeatureVector, threshold float64) (Result, bool, error) {
	candidates, err := p.Candidates(ctx, role)
	if err != nil {
		return Result{}, false, err
	}

	res, ok, err := FindMatch(query, candidates, threshold)
	if err != nil {
		GetLogger().Error("stored vector has wrong dimension",
			logger.String("role", string(role)),
			logger.Error(err))
		return Result{}, false, err
	}

	if ok {
		GetLogger().Debug("match accepted",
			logger.String("role", string(role)),
			logger.String("person_id", res.PersonID),
			logger.Float64("distance", res.Distance))
	}
	return res, ok, nil
}

// Invalidate drops the cached pool for role, e.g. after a registration.
func (p *Pool) Invalidate(role Role) {
	p.cache.Delete(string(role))
}
