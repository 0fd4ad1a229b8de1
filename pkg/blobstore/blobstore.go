// Package blobstore stores photo assets in two buckets: a private one holding
// originals, reachable only through signed URLs, and a public one holding the
// obscured derivatives.
package blobstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("blobstore: object not found")

// Store is the write side shared by both buckets.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Private is a bucket whose objects are only reachable through signed URLs.
type Private interface {
	Store
	// SignedURL returns a read-only URL valid for ttl. Implementations clamp
	// ttl to their own maximum.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Public is a bucket whose objects are served at stable URLs.
type Public interface {
	Store
	URL(key string) string
}

// MaxSignedURLTTL is the longest lifetime S3 SigV4 presigning accepts. Every
// Private implementation clamps to it so behaviour does not depend on backend.
const MaxSignedURLTTL = 7 * 24 * time.Hour

func clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > MaxSignedURLTTL {
		return MaxSignedURLTTL
	}
	return ttl
}
