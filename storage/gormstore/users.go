package gormstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// UserRepo stores users and their API keys in two tables.
type UserRepo struct {
	db *gorm.DB
}

var (
	_ users.Repo       = (*UserRepo)(nil)
	_ users.APIKeyRepo = (*UserRepo)(nil)
)

func (r *UserRepo) Get(ctx context.Context, userID string) (*users.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[gormstore] get user %s", userID)
	}
	return row.toUser(), nil
}

func (r *UserRepo) Upsert(ctx context.Context, user *users.User) error {
	if err := r.db.WithContext(ctx).Save(userToRow(user)).Error; err != nil {
		return errors.Wrapf(err, "[gormstore] save user %s", user.UserID)
	}
	return nil
}

// Delete removes the user and its API keys in one transaction.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&userRow{})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "[gormstore] delete user %s", userID)
		}
		if res.RowsAffected == 0 {
			return users.ErrNotFound
		}
		if err := tx.Where("user_id = ?", userID).Delete(&apiKeyRow{}).Error; err != nil {
			return errors.Wrapf(err, "[gormstore] delete api keys of %s", userID)
		}
		return nil
	})
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("user_id = ?", userID).Update("last_login_ns", toNanos(at))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "[gormstore] touch user %s", userID)
	}
	if res.RowsAffected == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) ListAPIKeys(ctx context.Context, userID string) ([]*users.APIKey, error) {
	var rows []apiKeyRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "[gormstore] list api keys of %s", userID)
	}
	keys := make([]*users.APIKey, 0, len(rows))
	for i := range rows {
		keys = append(keys, rows[i].toAPIKey())
	}
	return keys, nil
}

func (r *UserRepo) UpsertAPIKey(ctx context.Context, key *users.APIKey) error {
	if err := r.db.WithContext(ctx).Save(apiKeyToRow(key)).Error; err != nil {
		return errors.Wrapf(err, "[gormstore] save api key %s", key.GetIdentifier())
	}
	return nil
}

func (r *UserRepo) DeleteAPIKey(ctx context.Context, userID, name string) error {
	res := r.db.WithContext(ctx).Where("identifier = ?", users.APIKeyIdentifier(userID, name)).Delete(&apiKeyRow{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "[gormstore] delete api key %s", name)
	}
	if res.RowsAffected == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) UpdateAPIKeyLastUsed(ctx context.Context, userID, name string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&apiKeyRow{}).
		Where("identifier = ?", users.APIKeyIdentifier(userID, name)).
		Update("last_used_ns", toNanos(at))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "[gormstore] touch api key %s", name)
	}
	if res.RowsAffected == 0 {
		return users.ErrNotFound
	}
	return nil
}
