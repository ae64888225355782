package reelauth

import "context"

// AddToList adds movieID to one of the user's lists. Adding twice is a
// no-op.
func (e *Engine) AddToList(ctx context.Context, userID string, list List, movieID int64) error {
	if err := e.checkLibraryArgs(userID, movieID); err != nil {
		return err
	}
	if !list.Valid() {
		return ErrInvalidList
	}
	return e.store.AddToList(ctx, userID, list, movieID)
}

// RemoveFromList removes movieID from one of the user's lists.
func (e *Engine) RemoveFromList(ctx context.Context, userID string, list List, movieID int64) error {
	if err := e.checkLibraryArgs(userID, movieID); err != nil {
		return err
	}
	if !list.Valid() {
		return ErrInvalidList
	}
	return e.store.RemoveFromList(ctx, userID, list, movieID)
}

// SetReaction records a like or dislike, replacing the opposite one.
// ReactionNone clears both.
func (e *Engine) SetReaction(ctx context.Context, userID string, movieID int64, reaction Reaction) error {
	if err := e.checkLibraryArgs(userID, movieID); err != nil {
		return err
	}
	if !reaction.Valid() {
		return ErrInvalidReaction
	}
	return e.store.SetReaction(ctx, userID, movieID, reaction)
}

func (e *Engine) checkLibraryArgs(userID string, movieID int64) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !ValidUserID(userID) {
		return ErrInvalidUserID
	}
	if movieID <= 0 {
		return ErrInvalidMovieID
	}
	return nil
}
