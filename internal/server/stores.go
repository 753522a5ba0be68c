package server

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/navtree/internal/config"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/infrastructure/backend"
	"github.com/jacksonlee411/navtree/modules/navigation/infrastructure/fixture"
	"github.com/jacksonlee411/navtree/modules/navigation/infrastructure/localstate"
	"github.com/jacksonlee411/navtree/modules/navigation/infrastructure/persistence"
)

var errNoPool = errors.New("server: postgres pool required")

// NewMenuStore builds the store named by cfg.MenuStore. pool may be nil unless
// the store is postgres.
func NewMenuStore(cfg config.Config, pool *pgxpool.Pool) (ports.MenuStore, error) {
	switch cfg.MenuStore {
	case config.StorePG:
		if pool == nil {
			return nil, errNoPool
		}
		return persistence.NewMenuPGStore(pool), nil
	case config.StoreMemory:
		s := NewMenuMemoryStore()
		if cfg.MenuSeedPath != "" {
			f, err := fixture.Load(cfg.MenuSeedPath)
			if err != nil {
				return nil, err
			}
			if f.TenantID == "" {
				return nil, errors.New("server: menu seed fixture needs tenant_id")
			}
			s.Seed(f.TenantID, f.Menus)
		}
		return s, nil
	case config.StoreREST:
		c, err := backend.New(cfg.MenuBackendURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("server: unknown menu store %q", cfg.MenuStore)
	}
}

func NewUIStateFactory(cfg config.Config, pool *pgxpool.Pool) (UIStateStorageFactory, error) {
	switch cfg.UIStateStore {
	case config.StorePG:
		if pool == nil {
			return nil, errNoPool
		}
		return func(tenantID string, principalID string) (ports.UIStateStorage, error) {
			return persistence.NewUIStatePGStore(pool, tenantID, principalID), nil
		}, nil
	case config.StoreFile:
		dir := cfg.UIStateDir
		return func(tenantID string, principalID string) (ports.UIStateStorage, error) {
			return localstate.NewFileStorage(dir, tenantID, principalID)
		}, nil
	default:
		return nil, fmt.Errorf("server: unknown ui state store %q", cfg.UIStateStore)
	}
}
