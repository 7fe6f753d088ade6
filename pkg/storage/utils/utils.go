// Package storageutils selects and constructs a storage.Driver from configuration.
package storageutils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/ollamatrace/pkg/config"
	"github.com/papercomputeco/ollamatrace/pkg/storage"
	"github.com/papercomputeco/ollamatrace/pkg/storage/inmemory"
	"github.com/papercomputeco/ollamatrace/pkg/storage/postgres"
	"github.com/papercomputeco/ollamatrace/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	DriverType  string
	SQLitePath  string
	PostgresDSN string
	Logger      *slog.Logger
}

// NewDriver returns the driver named by DriverType. An empty type or "none"
// returns a nil driver and no error: calls are traced but not persisted.
func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	switch o.DriverType {
	case "", "none":
		return nil, nil
	case "memory":
		return inmemory.NewDriver(), nil
	case "sqlite":
		if o.Logger != nil {
			o.Logger.Debug("opening sqlite storage", "path", o.SQLitePath)
		}
		driver, err := sqlite.NewDriver(ctx, o.SQLitePath)
		if err != nil {
			return nil, err
		}
		return driver, nil
	case "postgres":
		if o.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires a dsn")
		}
		if o.Logger != nil {
			o.Logger.Debug("opening postgres storage")
		}
		driver, err := postgres.NewDriver(ctx, o.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return driver, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", o.DriverType)
	}
}

// NewDriverFromConfig builds the driver named by cfg. The SQLite path falls
// back to calls.db in the resolved .ollamatrace/ directory.
func NewDriverFromConfig(ctx context.Context, cfg config.StorageConfig, configDir string, logger *slog.Logger) (storage.Driver, error) {
	o := &NewDriverOpts{
		DriverType:  cfg.Driver,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
		Logger:      logger,
	}

	if o.DriverType == "sqlite" {
		path, err := cfg.ResolveSQLitePath(configDir)
		if err != nil {
			return nil, err
		}
		o.SQLitePath = path
	}

	return NewDriver(ctx, o)
}
