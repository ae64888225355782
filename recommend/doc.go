// Package recommend ranks catalog movies for a user from the genres and
// keywords of what they watched, liked and disliked.
//
// [Score] is pure and deterministic. [Service] adds catalog access so an
// HTTP handler can build a feed from a user's stored lists.
package recommend
