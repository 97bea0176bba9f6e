package docstore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/pkg/errors"
)

var errDuplicate = errors.New("record already exists")

type TokenRepo struct {
	store      *Store
	kind       token.Kind
	entityKind string
}

var _ token.Repo = (*TokenRepo)(nil)

func (r *TokenRepo) GetCandidates(ctx context.Context, filterKey string, notExpiredAfter time.Time) ([]*token.Record, error) {
	query := r.store.query(r.entityKind).FilterField("valid_to", ">", notExpiredAfter)
	if filterKey != "" {
		query = query.FilterField("redirect_uri", "=", filterKey)
	}
	var entities []TokenEntity
	if _, err := r.store.client.GetAll(ctx, query, &entities); err != nil {
		return nil, errors.Wrapf(err, "[docstore] %s candidates", r.kind)
	}

	records := make([]*token.Record, 0, len(entities))
	for i := range entities {
		records = append(records, entities[i].toRecord(r.kind))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (r *TokenRepo) Insert(ctx context.Context, record *token.Record) (*token.Record, error) {
	key := r.store.namespacedKey(r.entityKind, record.ID)
	_, err := r.store.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing TokenEntity
		err := tx.Get(key, &existing)
		if err == nil {
			return errDuplicate
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		_, err = tx.Put(key, recordToEntity(record, key))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[docstore] insert %s %s", r.kind, record.ID)
	}
	stored := record.Clone()
	stored.Kind = r.kind
	return stored, nil
}

func (r *TokenRepo) DeleteByID(ctx context.Context, record *token.Record) (bool, error) {
	deleted, err := r.store.deleteIfPresent(ctx, r.store.namespacedKey(r.entityKind, record.ID), &TokenEntity{})
	if err != nil {
		return false, errors.Wrapf(err, "[docstore] delete %s %s", r.kind, record.ID)
	}
	return deleted, nil
}

func (r *TokenRepo) DeleteByClientRedirectSubject(ctx context.Context, clientID, redirectURI, subject string) (int, error) {
	query := r.store.query(r.entityKind).
		FilterField("client_id", "=", clientID).
		FilterField("redirect_uri", "=", redirectURI).
		FilterField("subject", "=", subject).
		KeysOnly()
	return r.deleteMatching(ctx, query)
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	query := r.store.query(r.entityKind).FilterField("valid_to", "<=", before).KeysOnly()
	return r.deleteMatching(ctx, query)
}

func (r *TokenRepo) deleteMatching(ctx context.Context, query *datastore.Query) (int, error) {
	keys, err := r.store.client.GetAll(ctx, query, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "[docstore] query %s", r.kind)
	}
	count := 0
	for _, key := range keys {
		deleted, err := r.store.deleteIfPresent(ctx, key, &TokenEntity{})
		if err != nil {
			return count, errors.Wrapf(err, "[docstore] delete %s %s", r.kind, key.Name)
		}
		if deleted {
			count++
		}
	}
	return count, nil
}
