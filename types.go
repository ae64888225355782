package reelauth

import (
	"context"
	"time"

	"github.com/MrEthical07/reelauth/internal/ledger"
)

// List names a per-user movie list.
type List string

const (
	ListWatched List = "watched"
	ListToWatch List = "to-watch"
)

// Valid reports whether l is a known list.
func (l List) Valid() bool {
	return l == ListWatched || l == ListToWatch
}

// Reaction is a user's opinion of a movie. Like and dislike are mutually
// exclusive; ReactionNone clears both.
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
	ReactionNone    Reaction = "none"
)

// Valid reports whether r is a known reaction.
func (r Reaction) Valid() bool {
	return r == ReactionLike || r == ReactionDislike || r == ReactionNone
}

// RefreshTokenEntry is one active session in the user's ledger.
type RefreshTokenEntry = ledger.Entry

// User is the stored account record. ID is a 24-hex ObjectID string and
// Email is always normalized (trimmed, lowercased).
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	EmailVerified bool
	DisplayName   string
	RefreshTokens []RefreshTokenEntry
	Watched       []int64
	ToWatch       []int64
	Liked         []int64
	Disliked      []int64
	CreatedAt     time.Time
}

// PublicUser is the client-facing view of a user.
type PublicUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Public returns the client-facing view of u.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// UserStore persists users. Implementations return ErrUserNotFound for
// missing users and ErrEmailTaken when the unique email constraint trips.
//
// ReplaceRefreshToken must match the user and the old jti in a single
// conditional update and report false when nothing matched.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) (string, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	MarkEmailVerified(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	ResetPassword(ctx context.Context, id, hash string) error

	PushRefreshToken(ctx context.Context, id string, entry RefreshTokenEntry, max int) error
	PullRefreshToken(ctx context.Context, id, jti string) error
	ReplaceRefreshToken(ctx context.Context, id, oldJTI string, entry RefreshTokenEntry) (bool, error)
	ClearRefreshTokens(ctx context.Context, id string) error

	AddToList(ctx context.Context, id string, list List, movieID int64) error
	RemoveFromList(ctx context.Context, id string, list List, movieID int64) error
	SetReaction(ctx context.Context, id string, movieID int64, reaction Reaction) error
}

// Notifier delivers account mail. Implementations should not block on
// delivery.
type Notifier interface {
	NotifyVerification(ctx context.Context, to, displayName, link string) error
	NotifyPasswordReset(ctx context.Context, to, displayName, link string) error
}

// RegisterRequest is the input to [Engine.Register].
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// RegisterResult identifies a newly created account.
type RegisterResult struct {
	UserID      string
	Email       string
	DisplayName string
}

// LoginResult is returned by [Engine.Login] and [Engine.Refresh].
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         PublicUser
}

// Identity is the authenticated caller derived from an access token.
type Identity struct {
	UserID string
	Email  string
}
