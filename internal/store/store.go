// Package store holds the key/blob store the view counter persists to, with one
// adapter per backing provider.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/portfolio-views/views-server/internal/config"
)

// Store is a key addressed text store.
//
// Get reports ok == false with a nil error when the key does not exist. Set
// overwrites any existing value. Both must give up when ctx is done.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open builds the store named by c.Store and checks it can be reached.
func Open(ctx context.Context, c config.Config, logger *zap.Logger) (Store, error) {
	logger = logger.With(zap.String("store", c.Store))

	var (
		s   Store
		err error
	)
	switch c.Store {
	case "memory":
		logger.Warn("Using in-memory store, counts are lost on restart")
		return NewMemory(), nil
	case "blob":
		logger.Info("Opening blob store", zap.String("url", c.BlobURL))
		return NewBlob(c.BlobURL, c.BlobToken, nil), nil
	case "sqlite":
		logger.Info("Opening sqlite store", zap.String("path", c.SqlitePath))
		s, err = checked(OpenSqlite(ctx, c.SqlitePath))
	case "postgres":
		logger.Info("Opening postgres store", zap.String("dsn", c.CensoredConnectionString()))
		s, err = checked(OpenPostgres(ctx, c.ConnectionString()))
	case "nats":
		logger.Info("Opening nats store", zap.String("url", c.NatsURL), zap.String("bucket", c.NatsBucket))
		s, err = checked(OpenNats(ctx, c.NatsURL, c.NatsBucket))
	case "mongo":
		logger.Info("Opening mongo store", zap.String("db", c.MongoDB), zap.String("collection", c.MongoCollection))
		s, err = checked(OpenMongo(ctx, c.MongoURI, c.MongoDB, c.MongoCollection))
	default:
		return nil, fmt.Errorf("unknown store %q", c.Store)
	}
	return s, err
}

// checked keeps a failed constructor's typed nil out of the Store interface.
func checked[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
