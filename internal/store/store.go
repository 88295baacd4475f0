// Package store opens the configured persistence backend.
package store

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"notesync-server/internal/config"
	"notesync-server/internal/repository"
	"notesync-server/internal/repository/couch"
	"notesync-server/internal/repository/sqlstore"
	"notesync-server/pkg/logger"

	"go.uber.org/zap"
)

// Store is an opened backend. Close releases its connections.
type Store struct {
	*repository.Repositories
	Driver string
	close  func() error
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	log := logger.WithModule("store")

	switch cfg.Driver {
	case config.DriverCouchDB:
		client, err := couch.Connect(ctx, CouchURL(cfg), cfg.Name)
		if err != nil {
			return nil, err
		}
		if err := couch.EnsureIndexes(ctx, client, cfg.Name); err != nil {
			client.Close()
			return nil, err
		}
		log.Info("connected to CouchDB",
			zap.String("host", cfg.Host),
			zap.String("port", cfg.Port),
			zap.String("database", cfg.Name),
		)
		return &Store{
			Repositories: couch.New(client, cfg.Name),
			Driver:       cfg.Driver,
			close:        client.Close,
		}, nil

	case config.DriverSQLite, config.DriverPostgres:
		db, err := sqlstore.Open(sqlstore.Config{Driver: cfg.Driver, Path: cfg.Path, DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		log.Info("opened SQL database", zap.String("driver", cfg.Driver))
		return &Store{
			Repositories: sqlstore.New(db),
			Driver:       cfg.Driver,
			close:        sqlDB.Close,
		}, nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// CouchURL builds the CouchDB server URL with basic-auth credentials.
func CouchURL(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, cfg.Port),
	}
	return u.String()
}
