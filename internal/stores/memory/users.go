// Package memory is an in-process reelauth.UserStore for tests and local
// development.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrEthical07/reelauth"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Users keeps every account in a map guarded by one lock. Returned users
// are copies.
type Users struct {
	mu      sync.RWMutex
	byID    map[string]*reelauth.User
	byEmail map[string]string
}

// NewUsers returns an empty store.
func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]*reelauth.User),
		byEmail: make(map[string]string),
	}
}

func (s *Users) CreateUser(_ context.Context, user *reelauth.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return "", reelauth.ErrEmailTaken
	}

	u := clone(user)
	u.ID = bson.NewObjectID().Hex()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u.ID, nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (*reelauth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, reelauth.ErrUserNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Users) FindByID(_ context.Context, id string) (*reelauth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, reelauth.ErrUserNotFound
	}
	return clone(u), nil
}

func (s *Users) MarkEmailVerified(_ context.Context, id string) error {
	return s.update(id, func(u *reelauth.User) {
		u.EmailVerified = true
	})
}

func (s *Users) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update(id, func(u *reelauth.User) {
		u.PasswordHash = hash
	})
}

// ResetPassword sets the hash and drops every refresh token in one step.
func (s *Users) ResetPassword(_ context.Context, id, hash string) error {
	return s.update(id, func(u *reelauth.User) {
		u.PasswordHash = hash
		u.RefreshTokens = nil
	})
}

// PushRefreshToken appends entry and trims the oldest entries beyond max.
func (s *Users) PushRefreshToken(_ context.Context, id string, entry reelauth.RefreshTokenEntry, max int) error {
	return s.update(id, func(u *reelauth.User) {
		u.RefreshTokens = append(u.RefreshTokens, entry)
		if max > 0 && len(u.RefreshTokens) > max {
			u.RefreshTokens = slices.Clone(u.RefreshTokens[len(u.RefreshTokens)-max:])
		}
	})
}

func (s *Users) PullRefreshToken(_ context.Context, id, jti string) error {
	return s.update(id, func(u *reelauth.User) {
		u.RefreshTokens = slices.DeleteFunc(u.RefreshTokens, func(e reelauth.RefreshTokenEntry) bool {
			return e.JTI == jti
		})
	})
}

// ReplaceRefreshToken swaps the oldJTI entry for entry under the write lock.
// It reports false when oldJTI is no longer present.
func (s *Users) ReplaceRefreshToken(_ context.Context, id, oldJTI string, entry reelauth.RefreshTokenEntry) (bool, error) {
	replaced := false
	err := s.update(id, func(u *reelauth.User) {
		i := slices.IndexFunc(u.RefreshTokens, func(e reelauth.RefreshTokenEntry) bool {
			return e.JTI == oldJTI
		})
		if i < 0 {
			return
		}
		u.RefreshTokens = append(slices.Delete(u.RefreshTokens, i, i+1), entry)
		replaced = true
	})
	return replaced, err
}

func (s *Users) ClearRefreshTokens(_ context.Context, id string) error {
	return s.update(id, func(u *reelauth.User) {
		u.RefreshTokens = nil
	})
}

func (s *Users) AddToList(_ context.Context, id string, list reelauth.List, movieID int64) error {
	return s.update(id, func(u *reelauth.User) {
		ids := listOf(u, list)
		if ids == nil || slices.Contains(*ids, movieID) {
			return
		}
		*ids = append(*ids, movieID)
	})
}

func (s *Users) RemoveFromList(_ context.Context, id string, list reelauth.List, movieID int64) error {
	return s.update(id, func(u *reelauth.User) {
		ids := listOf(u, list)
		if ids == nil {
			return
		}
		*ids = slices.DeleteFunc(*ids, func(v int64) bool { return v == movieID })
	})
}

// SetReaction keeps Liked and Disliked disjoint.
func (s *Users) SetReaction(_ context.Context, id string, movieID int64, reaction reelauth.Reaction) error {
	return s.update(id, func(u *reelauth.User) {
		drop := func(v int64) bool { return v == movieID }
		u.Liked = slices.DeleteFunc(u.Liked, drop)
		u.Disliked = slices.DeleteFunc(u.Disliked, drop)
		switch reaction {
		case reelauth.ReactionLike:
			u.Liked = append(u.Liked, movieID)
		case reelauth.ReactionDislike:
			u.Disliked = append(u.Disliked, movieID)
		}
	})
}

// update applies fn to the stored user under the write lock.
func (s *Users) update(id string, fn func(*reelauth.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return reelauth.ErrUserNotFound
	}
	fn(u)
	return nil
}

func listOf(u *reelauth.User, list reelauth.List) *[]int64 {
	switch list {
	case reelauth.ListWatched:
		return &u.Watched
	case reelauth.ListToWatch:
		return &u.ToWatch
	}
	return nil
}

func clone(u *reelauth.User) *reelauth.User {
	out := *u
	out.RefreshTokens = slices.Clone(u.RefreshTokens)
	out.Watched = slices.Clone(u.Watched)
	out.ToWatch = slices.Clone(u.ToWatch)
	out.Liked = slices.Clone(u.Liked)
	out.Disliked = slices.Clone(u.Disliked)
	return &out
}

var _ reelauth.UserStore = (*Users)(nil)
