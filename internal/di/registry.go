package di

import (
	"context"
	"fmt"

	"github.com/byceps/byceps-sub001/internal/platform/config"
	pfirestore "github.com/byceps/byceps-sub001/internal/platform/firestore"
	"github.com/byceps/byceps-sub001/internal/repositories"
	firestorerepo "github.com/byceps/byceps-sub001/internal/repositories/firestore"
	"github.com/byceps/byceps-sub001/internal/repositories/memory"
	"github.com/byceps/byceps-sub001/internal/repositories/postgres"
)

// Store is an opened repository registry. Provider is set only for the
// firestore driver so that other Firestore-backed stores can share it.
type Store struct {
	Registry repositories.Registry
	Provider *pfirestore.Provider
}

// OpenStore opens the registry selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory, "":
		return Store{Registry: memory.NewRegistry()}, nil
	case config.StoreDriverPostgres:
		db, err := postgres.Open(ctx, cfg.Store.Postgres)
		if err != nil {
			return Store{}, fmt.Errorf("open postgres store: %w", err)
		}
		return Store{Registry: postgres.NewRegistry(db)}, nil
	case config.StoreDriverFirestore:
		provider := pfirestore.NewProvider(cfg.Store.Firestore)
		registry, err := firestorerepo.NewRegistry(provider)
		if err != nil {
			_ = provider.Close(ctx)
			return Store{}, fmt.Errorf("open firestore store: %w", err)
		}
		return Store{Registry: registry, Provider: provider}, nil
	default:
		return Store{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
