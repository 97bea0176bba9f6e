package gormstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ClientRepo struct {
	db *gorm.DB
}

var _ clients.Repo = (*ClientRepo)(nil)

func (r *ClientRepo) Get(ctx context.Context, clientID, redirectURI string) (*clients.Client, error) {
	var row clientRow
	err := r.db.WithContext(ctx).First(&row, "identifier = ?", clients.Identifier(clientID, redirectURI)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, clients.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[gormstore] get client %s", clientID)
	}
	return row.toClient(), nil
}

func (r *ClientRepo) ListByClientID(ctx context.Context, clientID string) ([]*clients.Client, error) {
	var rows []clientRow
	if err := r.db.WithContext(ctx).Where("client_id = ?", clientID).Order("redirect_uri").Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "[gormstore] list client %s", clientID)
	}
	list := make([]*clients.Client, 0, len(rows))
	for i := range rows {
		list = append(list, rows[i].toClient())
	}
	return list, nil
}

func (r *ClientRepo) Upsert(ctx context.Context, client *clients.Client) error {
	if err := r.db.WithContext(ctx).Save(clientToRow(client)).Error; err != nil {
		return errors.Wrapf(err, "[gormstore] save client %s", client.ClientID)
	}
	return nil
}

func (r *ClientRepo) Delete(ctx context.Context, clientID, redirectURI string) error {
	res := r.db.WithContext(ctx).Where("identifier = ?", clients.Identifier(clientID, redirectURI)).Delete(&clientRow{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "[gormstore] delete client %s", clientID)
	}
	if res.RowsAffected == 0 {
		return clients.ErrNotFound
	}
	return nil
}

func (r *ClientRepo) UpdateLastUsed(ctx context.Context, clientID, redirectURI string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&clientRow{}).
		Where("identifier = ?", clients.Identifier(clientID, redirectURI)).
		Update("last_used_ns", toNanos(at))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "[gormstore] touch client %s", clientID)
	}
	if res.RowsAffected == 0 {
		return clients.ErrNotFound
	}
	return nil
}
