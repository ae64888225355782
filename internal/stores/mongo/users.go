package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/reelauth"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

type userDoc struct {
	ID            bson.ObjectID                `bson:"_id,omitempty"`
	Email         string                       `bson:"email"`
	PasswordHash  string                       `bson:"passwordHash"`
	EmailVerified bool                         `bson:"emailVerified"`
	DisplayName   string                       `bson:"displayName"`
	RefreshTokens []reelauth.RefreshTokenEntry `bson:"refreshTokens"`
	Watched       []int64                      `bson:"watched"`
	ToWatch       []int64                      `bson:"toWatch"`
	Liked         []int64                      `bson:"liked"`
	Disliked      []int64                      `bson:"disliked"`
	CreatedAt     time.Time                    `bson:"createdAt"`
	UpdatedAt     time.Time                    `bson:"updatedAt"`
}

func newUserDoc(u *reelauth.User, now time.Time) userDoc {
	created := u.CreatedAt
	if created.IsZero() {
		created = now
	}
	nonNil := func(v []int64) []int64 {
		if v == nil {
			return []int64{}
		}
		return v
	}
	tokens := u.RefreshTokens
	if tokens == nil {
		tokens = []reelauth.RefreshTokenEntry{}
	}
	return userDoc{
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		RefreshTokens: tokens,
		Watched:       nonNil(u.Watched),
		ToWatch:       nonNil(u.ToWatch),
		Liked:         nonNil(u.Liked),
		Disliked:      nonNil(u.Disliked),
		CreatedAt:     created.UTC(),
		UpdatedAt:     now.UTC(),
	}
}

func (d userDoc) user() *reelauth.User {
	return &reelauth.User{
		ID:            d.ID.Hex(),
		Email:         d.Email,
		PasswordHash:  d.PasswordHash,
		EmailVerified: d.EmailVerified,
		DisplayName:   d.DisplayName,
		RefreshTokens: d.RefreshTokens,
		Watched:       d.Watched,
		ToWatch:       d.ToWatch,
		Liked:         d.Liked,
		Disliked:      d.Disliked,
		CreatedAt:     d.CreatedAt,
	}
}

// Users implements reelauth.UserStore on a MongoDB collection.
type Users struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewUsers returns a store on db.users.
func NewUsers(db *mongo.Database) *Users {
	return &Users{coll: db.Collection(usersCollection), now: time.Now}
}

// EnsureIndexes creates the unique email index.
func (s *Users) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("mongo users index: %w", err)
	}
	return nil
}

func (s *Users) CreateUser(ctx context.Context, user *reelauth.User) (string, error) {
	doc := newUserDoc(user, s.now())
	doc.ID = bson.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", reelauth.ErrEmailTaken
		}
		return "", fmt.Errorf("mongo insert user: %w", err)
	}
	return doc.ID.Hex(), nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*reelauth.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Users) FindByID(ctx context.Context, id string) (*reelauth.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, reelauth.ErrUserNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *Users) findOne(ctx context.Context, filter bson.D) (*reelauth.User, error) {
	var doc userDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reelauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return doc.user(), nil
}

func (s *Users) MarkEmailVerified(ctx context.Context, id string) error {
	return s.updateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{{Key: "emailVerified", Value: true}}}})
}

func (s *Users) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{{Key: "passwordHash", Value: hash}}}})
}

func (s *Users) ResetPassword(ctx context.Context, id, hash string) error {
	return s.updateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "passwordHash", Value: hash},
		{Key: "refreshTokens", Value: bson.A{}},
	}}})
}

func (s *Users) PushRefreshToken(ctx context.Context, id string, entry reelauth.RefreshTokenEntry, max int) error {
	return s.updateByID(ctx, id, pushTokenUpdate(entry, max))
}

func (s *Users) PullRefreshToken(ctx context.Context, id, jti string) error {
	return s.updateByID(ctx, id, bson.D{{Key: "$pull", Value: bson.D{
		{Key: "refreshTokens", Value: bson.D{{Key: "jti", Value: jti}}},
	}}})
}

// ReplaceRefreshToken drops the oldJTI entry and appends entry at the tail
// in one pipeline update, so array order stays oldest-first for the
// $slice in PushRefreshToken. The filter includes oldJTI, so only one
// concurrent caller can match it.
func (s *Users) ReplaceRefreshToken(ctx context.Context, id, oldJTI string, entry reelauth.RefreshTokenEntry) (bool, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	filter := bson.D{{Key: "_id", Value: oid}, {Key: "refreshTokens.jti", Value: oldJTI}}
	res, err := s.coll.UpdateOne(ctx, filter, rotateTokenPipeline(oldJTI, entry, s.now().UTC()))
	if err != nil {
		return false, fmt.Errorf("mongo rotate refresh token: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Users) ClearRefreshTokens(ctx context.Context, id string) error {
	return s.updateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{{Key: "refreshTokens", Value: bson.A{}}}}})
}

func (s *Users) AddToList(ctx context.Context, id string, list reelauth.List, movieID int64) error {
	field, err := listField(list)
	if err != nil {
		return err
	}
	return s.updateByID(ctx, id, bson.D{{Key: "$addToSet", Value: bson.D{{Key: field, Value: movieID}}}})
}

func (s *Users) RemoveFromList(ctx context.Context, id string, list reelauth.List, movieID int64) error {
	field, err := listField(list)
	if err != nil {
		return err
	}
	return s.updateByID(ctx, id, bson.D{{Key: "$pull", Value: bson.D{{Key: field, Value: movieID}}}})
}

func (s *Users) SetReaction(ctx context.Context, id string, movieID int64, reaction reelauth.Reaction) error {
	update, err := reactionUpdate(movieID, reaction)
	if err != nil {
		return err
	}
	return s.updateByID(ctx, id, update)
}

func (s *Users) updateByID(ctx context.Context, id string, update bson.D) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return reelauth.ErrUserNotFound
	}
	update = append(update, bson.E{Key: "$currentDate", Value: bson.D{{Key: "updatedAt", Value: true}}})
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return fmt.Errorf("mongo update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return reelauth.ErrUserNotFound
	}
	return nil
}

// pushTokenUpdate appends entry and keeps only the newest max entries.
func pushTokenUpdate(entry reelauth.RefreshTokenEntry, max int) bson.D {
	each := bson.D{{Key: "$each", Value: bson.A{entry}}}
	if max > 0 {
		each = append(each, bson.E{Key: "$slice", Value: -max})
	}
	return bson.D{{Key: "$push", Value: bson.D{{Key: "refreshTokens", Value: each}}}}
}

// rotateTokenPipeline filters oldJTI out of refreshTokens and concatenates
// entry after the survivors. Values go through $literal: bcrypt hashes
// begin with "$".
func rotateTokenPipeline(oldJTI string, entry reelauth.RefreshTokenEntry, now time.Time) mongo.Pipeline {
	kept := bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: "$refreshTokens"},
		{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this.jti", bson.D{{Key: "$literal", Value: oldJTI}}}}}},
	}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "refreshTokens", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				kept,
				bson.A{bson.D{{Key: "$literal", Value: entry}}},
			}}}},
			{Key: "updatedAt", Value: now},
		}}},
	}
}

func listField(list reelauth.List) (string, error) {
	switch list {
	case reelauth.ListWatched:
		return "watched", nil
	case reelauth.ListToWatch:
		return "toWatch", nil
	}
	return "", reelauth.ErrInvalidList
}

// reactionUpdate adds movieID to one reaction set and pulls it from the
// other in the same document update.
func reactionUpdate(movieID int64, reaction reelauth.Reaction) (bson.D, error) {
	switch reaction {
	case reelauth.ReactionLike:
		return bson.D{
			{Key: "$addToSet", Value: bson.D{{Key: "liked", Value: movieID}}},
			{Key: "$pull", Value: bson.D{{Key: "disliked", Value: movieID}}},
		}, nil
	case reelauth.ReactionDislike:
		return bson.D{
			{Key: "$addToSet", Value: bson.D{{Key: "disliked", Value: movieID}}},
			{Key: "$pull", Value: bson.D{{Key: "liked", Value: movieID}}},
		}, nil
	case reelauth.ReactionNone:
		return bson.D{
			{Key: "$pull", Value: bson.D{{Key: "liked", Value: movieID}, {Key: "disliked", Value: movieID}}},
		}, nil
	}
	return nil, reelauth.ErrInvalidReaction
}

var _ reelauth.UserStore = (*Users)(nil)
