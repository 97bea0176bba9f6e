package redisstore

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// TokenRepo is the token.Repo for one kind.
type TokenRepo struct {
	store *Store
	kind  token.Kind
}

var _ token.Repo = (*TokenRepo)(nil)

func (r *TokenRepo) recordKey(id string) string {
	return r.store.key(string(r.kind), "rec", id)
}

func (r *TokenRepo) expiryKey() string {
	return r.store.key(string(r.kind), "exp")
}

func (r *TokenRepo) redirectKey(redirectURI string) string {
	return r.store.key(string(r.kind), "redirect", redirectURI)
}

// tripleKey escapes each part so that "|" inside a value cannot shift the
// field boundaries.
func (r *TokenRepo) tripleKey(clientID, redirectURI, subject string) string {
	triple := url.QueryEscape(clientID) + "|" + url.QueryEscape(redirectURI) + "|" + url.QueryEscape(subject)
	return r.store.key(string(r.kind), "triple", triple)
}

func (r *TokenRepo) GetCandidates(ctx context.Context, filterKey string, notExpiredAfter time.Time) ([]*token.Record, error) {
	var ids []string
	var err error
	if filterKey != "" {
		ids, err = r.store.client.SMembers(ctx, r.redirectKey(filterKey)).Result()
	} else {
		// Scores are truncated to ms; the exact bound is applied below.
		ids, err = r.store.client.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
			Min: strconv.FormatInt(notExpiredAfter.UnixMilli(), 10),
			Max: "+inf",
		}).Result()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] %s candidates", r.kind)
	}

	records, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	candidates := records[:0]
	for _, rec := range records {
		if rec.ValidTo.After(notExpiredAfter) && (filterKey == "" || rec.RedirectURI == filterKey) {
			candidates = append(candidates, rec)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates, nil
}

func (r *TokenRepo) load(ctx context.Context, ids []string) ([]*token.Record, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.recordKey(id))
	}
	records, err := mgetJSON[token.Record](ctx, r.store, keys)
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] load %s", r.kind)
	}
	for _, rec := range records {
		rec.Kind = r.kind
	}
	return records, nil
}

// Insert claims the record key with SETNX, then writes the indexes.
func (r *TokenRepo) Insert(ctx context.Context, record *token.Record) (*token.Record, error) {
	stored := record.Clone()
	stored.Kind = r.kind
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] encode %s %s", r.kind, record.ID)
	}
	created, err := r.store.client.SetNX(ctx, r.recordKey(record.ID), data, 0).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] insert %s %s", r.kind, record.ID)
	}
	if !created {
		return nil, errors.Errorf("[redisstore] %s %s already exists", r.kind, record.ID)
	}

	_, err = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, r.expiryKey(), redis.Z{Score: float64(record.ValidTo.UnixMilli()), Member: record.ID})
		pipe.SAdd(ctx, r.redirectKey(record.RedirectURI), record.ID)
		pipe.SAdd(ctx, r.tripleKey(record.ClientID, record.RedirectURI, record.Subject), record.ID)
		return nil
	})
	if err != nil {
		_ = r.store.client.Del(ctx, r.recordKey(record.ID)).Err()
		return nil, errors.Wrapf(err, "[redisstore] index %s %s", r.kind, record.ID)
	}
	return stored, nil
}

// DeleteByID reports true only to the caller whose DEL removed the key.
func (r *TokenRepo) DeleteByID(ctx context.Context, record *token.Record) (bool, error) {
	return r.remove(ctx, record)
}

func (r *TokenRepo) remove(ctx context.Context, record *token.Record) (bool, error) {
	n, err := r.store.client.Del(ctx, r.recordKey(record.ID)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "[redisstore] delete %s %s", r.kind, record.ID)
	}
	r.unindex(ctx, record)
	return n == 1, nil
}

// unindex drops index entries. Stale entries are harmless because readers
// skip ids whose record is gone, so failures are ignored.
func (r *TokenRepo) unindex(ctx context.Context, record *token.Record) {
	_, _ = r.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, r.expiryKey(), record.ID)
		pipe.SRem(ctx, r.redirectKey(record.RedirectURI), record.ID)
		pipe.SRem(ctx, r.tripleKey(record.ClientID, record.RedirectURI, record.Subject), record.ID)
		return nil
	})
}

func (r *TokenRepo) DeleteByClientRedirectSubject(ctx context.Context, clientID, redirectURI, subject string) (int, error) {
	ids, err := r.store.client.SMembers(ctx, r.tripleKey(clientID, redirectURI, subject)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "[redisstore] %s for %s", r.kind, clientID)
	}
	count := 0
	for _, id := range ids {
		removed, err := r.remove(ctx, &token.Record{ID: id, ClientID: clientID, RedirectURI: redirectURI, Subject: subject})
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	ids, err := r.store.client.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "[redisstore] expired %s", r.kind)
	}
	records, err := r.load(ctx, ids)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range records {
		if rec.ValidTo.After(before) {
			continue
		}
		removed, err := r.remove(ctx, rec)
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}
