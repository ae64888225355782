package mongo

import (
	"context"
	"fmt"

	"github.com/MrEthical07/reelauth/recommend"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const moviesCollection = "movies"

// Movies serves the recommendation catalog from db.movies.
type Movies struct {
	coll *mongo.Collection
}

// NewMovies returns a catalog on db.movies.
func NewMovies(db *mongo.Database) *Movies {
	return &Movies{coll: db.Collection(moviesCollection)}
}

// EnsureIndexes creates the tmdbId and popularity indexes.
func (m *Movies) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tmdbId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "popularity", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo movies index: %w", err)
	}
	return nil
}

func (m *Movies) Candidates(ctx context.Context, limit int) ([]recommend.Movie, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "popularity", Value: -1}, {Key: "tmdbId", Value: 1}}).
		SetLimit(int64(limit))
	return m.find(ctx, bson.D{}, opts)
}

func (m *Movies) ByIDs(ctx context.Context, ids []int64) ([]recommend.Movie, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return m.find(ctx, bson.D{{Key: "tmdbId", Value: bson.D{{Key: "$in", Value: ids}}}}, options.Find())
}

// Upsert inserts or replaces movies by tmdbId.
func (m *Movies) Upsert(ctx context.Context, movies []recommend.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(movies))
	for _, mv := range movies {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "tmdbId", Value: mv.ID}}).
			SetReplacement(mv).
			SetUpsert(true))
	}
	if _, err := m.coll.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("mongo upsert movies: %w", err)
	}
	return nil
}

func (m *Movies) find(ctx context.Context, filter bson.D, opts *options.FindOptionsBuilder) ([]recommend.Movie, error) {
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find movies: %w", err)
	}
	var out []recommend.Movie
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo decode movies: %w", err)
	}
	return out, nil
}

var _ recommend.Catalog = (*Movies)(nil)
