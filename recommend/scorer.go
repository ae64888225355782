package recommend

import (
	"cmp"
	"slices"
)

const (
	LikedBoost      = 3.0
	WatchedBoost    = 1.0
	DislikedPenalty = 2.0
	KeywordWeight   = 0.5
	ScoreScale      = 10.0

	DefaultLimit = 20
)

// Movie is a catalog entry. ID is the TMDB id.
type Movie struct {
	ID          int64    `bson:"tmdbId" json:"id"`
	Title       string   `bson:"title" json:"title"`
	Genres      []string `bson:"genres" json:"genres"`
	Keywords    []string `bson:"keywords" json:"keywords,omitempty"`
	Popularity  float64  `bson:"popularity" json:"popularity"`
	VoteAverage float64  `bson:"voteAverage" json:"voteAverage"`
	PosterPath  string   `bson:"posterPath,omitempty" json:"posterPath,omitempty"`
	ReleaseDate string   `bson:"releaseDate,omitempty" json:"releaseDate,omitempty"`
}

// Profile holds the resolved movies behind a user's lists.
type Profile struct {
	Watched  []Movie
	Liked    []Movie
	Disliked []Movie
}

// Scored is a ranked candidate. Affinity is the unscaled genre and keyword
// match; Score adds the popularity and rating terms.
type Scored struct {
	Movie
	Affinity float64 `json:"affinity"`
	Score    float64 `json:"score"`
}

type weights struct {
	genres   map[string]float64
	keywords map[string]float64
	excluded map[string]float64
}

func (w *weights) add(m Movie, boost float64) {
	for _, g := range m.Genres {
		w.genres[g] += boost
	}
	for _, k := range m.Keywords {
		w.keywords[k] += boost
	}
}

func profileWeights(p Profile) weights {
	w := weights{
		genres:   make(map[string]float64),
		keywords: make(map[string]float64),
		excluded: make(map[string]float64),
	}
	for _, m := range p.Watched {
		w.add(m, WatchedBoost)
	}
	for _, m := range p.Liked {
		w.add(m, LikedBoost)
	}
	for _, m := range p.Disliked {
		for _, g := range m.Genres {
			w.excluded[g] += DislikedPenalty
		}
	}
	return w
}

// Score ranks pool for p and returns at most limit movies. Watched and
// disliked movies never appear. When no candidate has positive affinity the
// result is the pool ordered by popularity. A non-positive limit selects
// DefaultLimit.
func Score(p Profile, pool []Movie, limit int) []Scored {
	if limit <= 0 {
		limit = DefaultLimit
	}

	seen := make(map[int64]struct{}, len(p.Watched)+len(p.Disliked))
	for _, m := range p.Watched {
		seen[m.ID] = struct{}{}
	}
	for _, m := range p.Disliked {
		seen[m.ID] = struct{}{}
	}

	candidates := make([]Movie, 0, len(pool))
	for _, m := range pool {
		if _, skip := seen[m.ID]; !skip {
			candidates = append(candidates, m)
		}
	}

	maxPop := 0.0
	for _, m := range candidates {
		maxPop = max(maxPop, m.Popularity)
	}

	w := profileWeights(p)
	scored := make([]Scored, 0, len(candidates))
	positive := false
	for _, m := range candidates {
		affinity := 0.0
		for _, g := range m.Genres {
			affinity += w.genres[g] - w.excluded[g]
		}
		for _, k := range m.Keywords {
			affinity += KeywordWeight * w.keywords[k]
		}
		if affinity > 0 {
			positive = true
		}

		score := affinity * ScoreScale
		if maxPop > 0 {
			score += m.Popularity / maxPop
		}
		score += m.VoteAverage / 10

		scored = append(scored, Scored{Movie: m, Affinity: affinity, Score: score})
	}

	if !positive {
		return Popular(pool, p, limit)
	}

	slices.SortStableFunc(scored, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return byPopularity(a.Movie, b.Movie)
	})
	return scored[:min(limit, len(scored))]
}

// Popular orders pool by popularity, leaving out movies p watched or
// disliked unless that would leave nothing.
func Popular(pool []Movie, p Profile, limit int) []Scored {
	if limit <= 0 {
		limit = DefaultLimit
	}

	seen := make(map[int64]struct{}, len(p.Watched)+len(p.Disliked))
	for _, m := range append(slices.Clone(p.Watched), p.Disliked...) {
		seen[m.ID] = struct{}{}
	}

	out := make([]Movie, 0, len(pool))
	for _, m := range pool {
		if _, skip := seen[m.ID]; !skip {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = slices.Clone(pool)
	}

	slices.SortStableFunc(out, byPopularity)

	res := make([]Scored, 0, min(limit, len(out)))
	for _, m := range out[:min(limit, len(out))] {
		res = append(res, Scored{Movie: m, Score: m.VoteAverage / 10})
	}
	return res
}

func byPopularity(a, b Movie) int {
	if c := cmp.Compare(b.Popularity, a.Popularity); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
