// Package gormstore implements the repository contracts on a relational
// database through gorm. Open uses the pure Go sqlite dialector; any other
// gorm dialector works with New.
package gormstore

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store owns the gorm handle shared by every repository it hands out.
type Store struct {
	db *gorm.DB
}

// AutoMigrate creates or updates every table used by the store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&authorizationCodeRow{},
		&accessTokenRow{},
		&refreshTokenRow{},
		&clientRow{},
		&userRow{},
		&apiKeyRow{},
	)
}

// New migrates db and wraps it.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("[gormstore.New] db is required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, errors.Wrap(err, "[gormstore.New] migrate")
	}
	return &Store{db: db}, nil
}

// Open connects to the sqlite database at dsn. Gorm diagnostics go to the
// given zerolog logger.
func Open(dsn string, zl zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: NewLogger(zl),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[gormstore.Open] %s", dsn)
	}
	return db, nil
}

// NewLogger adapts zl to gorm's logger. Only slow queries and errors are
// reported, at warn level.
func NewLogger(zl zerolog.Logger) logger.Interface {
	return logger.New(gormWriter{zl}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

type gormWriter struct {
	zl zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.zl.Warn().Str("component", "gorm").Msgf(format, args...)
}

// Tokens returns one repository per token kind.
func (s *Store) Tokens() token.Repos {
	return token.Repos{
		AuthorizationCodes: s.TokenRepo(token.KindAuthorizationCode),
		AccessTokens:       s.TokenRepo(token.KindAccessToken),
		RefreshTokens:      s.TokenRepo(token.KindRefreshToken),
	}
}

func (s *Store) TokenRepo(kind token.Kind) *TokenRepo {
	return &TokenRepo{db: s.db, kind: kind}
}

func (s *Store) Clients() *ClientRepo {
	return &ClientRepo{db: s.db}
}

// Users serves both users.Repo and users.APIKeyRepo.
func (s *Store) Users() *UserRepo {
	return &UserRepo{db: s.db}
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
