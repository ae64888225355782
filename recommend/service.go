package recommend

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// DefaultPoolSize bounds how many candidates a feed request scores.
const DefaultPoolSize = 500

// Catalog serves candidate movies.
type Catalog interface {
	// Candidates returns up to limit movies, most popular first.
	Candidates(ctx context.Context, limit int) ([]Movie, error)
	// ByIDs resolves TMDB ids; unknown ids are skipped.
	ByIDs(ctx context.Context, ids []int64) ([]Movie, error)
}

// Library is a user's stored movie ids.
type Library struct {
	Watched  []int64
	Liked    []int64
	Disliked []int64
}

// Service builds feeds from a Catalog.
type Service struct {
	catalog  Catalog
	poolSize int
}

// NewService returns a Service. poolSize <= 0 selects DefaultPoolSize.
func NewService(catalog Catalog, poolSize int) (*Service, error) {
	if catalog == nil {
		return nil, errors.New("recommend: catalog is required")
	}
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Service{catalog: catalog, poolSize: poolSize}, nil
}

// Feed resolves lib against the catalog and ranks the candidate pool.
func (s *Service) Feed(ctx context.Context, lib Library, limit int) ([]Scored, error) {
	ids := make([]int64, 0, len(lib.Watched)+len(lib.Liked)+len(lib.Disliked))
	ids = append(ids, lib.Watched...)
	ids = append(ids, lib.Liked...)
	ids = append(ids, lib.Disliked...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var known []Movie
	if len(ids) > 0 {
		var err error
		if known, err = s.catalog.ByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}
	byID := make(map[int64]Movie, len(known))
	for _, m := range known {
		byID[m.ID] = m
	}
	resolve := func(ids []int64) []Movie {
		out := make([]Movie, 0, len(ids))
		for _, id := range ids {
			if m, ok := byID[id]; ok {
				out = append(out, m)
			} else {
				out = append(out, Movie{ID: id})
			}
		}
		return out
	}

	pool, err := s.catalog.Candidates(ctx, s.poolSize)
	if err != nil {
		return nil, err
	}

	profile := Profile{
		Watched:  resolve(lib.Watched),
		Liked:    resolve(lib.Liked),
		Disliked: resolve(lib.Disliked),
	}
	return Score(profile, pool, limit), nil
}

// MemoryCatalog is a fixed in-process catalog.
type MemoryCatalog struct {
	mu     sync.RWMutex
	movies []Movie
}

// NewMemoryCatalog copies movies and keeps them ordered by popularity.
func NewMemoryCatalog(movies []Movie) *MemoryCatalog {
	c := &MemoryCatalog{}
	c.Replace(movies)
	return c
}

// Replace swaps the catalog contents.
func (c *MemoryCatalog) Replace(movies []Movie) {
	sorted := slices.Clone(movies)
	slices.SortStableFunc(sorted, byPopularity)
	c.mu.Lock()
	c.movies = sorted
	c.mu.Unlock()
}

func (c *MemoryCatalog) Candidates(_ context.Context, limit int) ([]Movie, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.movies[:min(limit, len(c.movies))]), nil
}

func (c *MemoryCatalog) ByIDs(_ context.Context, ids []int64) ([]Movie, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Movie
	for _, m := range c.movies {
		if _, ok := want[m.ID]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
