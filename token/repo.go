package token

import (
	"context"
	"time"
)

// Repo stores the records of a single Kind.
//
// Insert and DeleteByID must be atomic per record. DeleteByID reports true only
// to the caller that actually removed the record; concurrent callers deleting
// the same record must see false.
type Repo interface {
	// GetCandidates returns records whose ValidTo is after notExpiredAfter,
	// restricted to RedirectURI == filterKey unless filterKey is empty.
	GetCandidates(ctx context.Context, filterKey string, notExpiredAfter time.Time) ([]*Record, error)
	Insert(ctx context.Context, record *Record) (*Record, error)
	DeleteByID(ctx context.Context, record *Record) (bool, error)
	DeleteByClientRedirectSubject(ctx context.Context, clientID, redirectURI, subject string) (int, error)
	// DeleteExpired removes records whose ValidTo is at or before before.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
