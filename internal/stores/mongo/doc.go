// Package mongo persists users and the movie catalog in MongoDB.
//
// Every mutation is a single UpdateOne with an explicit operator document;
// refresh-token rotation matches the old jti in the filter so a replaced or
// revoked entry can never be rotated twice.
package mongo
