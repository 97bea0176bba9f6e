package gormstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// TokenRepo is the token.Repo for one kind, backed by that kind's table.
type TokenRepo struct {
	db   *gorm.DB
	kind token.Kind
}

var _ token.Repo = (*TokenRepo)(nil)

func (r *TokenRepo) table(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(tokenTables[r.kind])
}

func (r *TokenRepo) GetCandidates(ctx context.Context, filterKey string, notExpiredAfter time.Time) ([]*token.Record, error) {
	q := r.table(ctx).Where("valid_to_ns > ?", notExpiredAfter.UnixNano())
	if filterKey != "" {
		q = q.Where("redirect_uri = ?", filterKey)
	}
	var rows []tokenRow
	if err := q.Order("created_ns").Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "[gormstore] %s candidates", r.kind)
	}
	records := make([]*token.Record, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toRecord(r.kind))
	}
	return records, nil
}

func (r *TokenRepo) Insert(ctx context.Context, record *token.Record) (*token.Record, error) {
	if err := r.table(ctx).Create(tokenToRow(record)).Error; err != nil {
		return nil, errors.Wrapf(err, "[gormstore] insert %s %s", r.kind, record.ID)
	}
	return record, nil
}

// DeleteByID relies on the database reporting one affected row to exactly
// one of several concurrent deletes.
func (r *TokenRepo) DeleteByID(ctx context.Context, record *token.Record) (bool, error) {
	res := r.table(ctx).Where("id = ?", record.ID).Delete(&tokenRow{})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "[gormstore] delete %s %s", r.kind, record.ID)
	}
	return res.RowsAffected == 1, nil
}

func (r *TokenRepo) DeleteByClientRedirectSubject(ctx context.Context, clientID, redirectURI, subject string) (int, error) {
	res := r.table(ctx).
		Where("client_id = ? AND redirect_uri = ? AND subject = ?", clientID, redirectURI, subject).
		Delete(&tokenRow{})
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "[gormstore] delete %s for %s", r.kind, clientID)
	}
	return int(res.RowsAffected), nil
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res := r.table(ctx).Where("valid_to_ns <= ?", before.UnixNano()).Delete(&tokenRow{})
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "[gormstore] delete expired %s", r.kind)
	}
	return int(res.RowsAffected), nil
}
