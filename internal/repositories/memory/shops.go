package memory

import (
	"context"
	"sort"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type shopRepository struct{ store *Store }

func (r *shopRepository) Insert(ctx context.Context, shop domain.Shop) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.shops[shop.ID]; ok {
			return repositories.NewConflictError("shops.insert", "shop %q exists", shop.ID)
		}
		st.shops[shop.ID] = shop
		return nil
	})
}

func (r *shopRepository) Update(ctx context.Context, shop domain.Shop) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.shops[shop.ID]; !ok {
			return repositories.NewNotFoundError("shops.update", "shop %q", shop.ID)
		}
		st.shops[shop.ID] = shop
		return nil
	})
}

func (r *shopRepository) FindByID(ctx context.Context, shopID string) (domain.Shop, error) {
	var shop domain.Shop
	err := r.store.with(ctx, func(st *state) error {
		found, ok := st.shops[shopID]
		if !ok {
			return repositories.NewNotFoundError("shops.find", "shop %q", shopID)
		}
		shop = found
		return nil
	})
	return shop, err
}

func (r *shopRepository) List(ctx context.Context) ([]domain.Shop, error) {
	var shops []domain.Shop
	err := r.store.with(ctx, func(st *state) error {
		for _, shop := range st.shops {
			shops = append(shops, shop)
		}
		return nil
	})
	sort.Slice(shops, func(i, j int) bool { return shops[i].ID < shops[j].ID })
	return shops, err
}

type brandRepository struct{ store *Store }

func (r *brandRepository) Upsert(ctx context.Context, brand domain.Brand) error {
	return r.store.with(ctx, func(st *state) error {
		st.brands[brand.ID] = brand
		return nil
	})
}

func (r *brandRepository) FindByID(ctx context.Context, brandID string) (domain.Brand, error) {
	var brand domain.Brand
	err := r.store.with(ctx, func(st *state) error {
		found, ok := st.brands[brandID]
		if !ok {
			return repositories.NewNotFoundError("brands.find", "brand %q", brandID)
		}
		brand = found
		return nil
	})
	return brand, err
}

type storefrontRepository struct{ store *Store }

func (r *storefrontRepository) Insert(ctx context.Context, storefront domain.Storefront) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.storefronts[storefront.ID]; ok {
			return repositories.NewConflictError("storefronts.insert", "storefront %q exists", storefront.ID)
		}
		st.storefronts[storefront.ID] = storefront
		return nil
	})
}

func (r *storefrontRepository) Update(ctx context.Context, storefront domain.Storefront) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.storefronts[storefront.ID]; !ok {
			return repositories.NewNotFoundError("storefronts.update", "storefront %q", storefront.ID)
		}
		st.storefronts[storefront.ID] = storefront
		return nil
	})
}

func (r *storefrontRepository) FindByID(ctx context.Context, storefrontID string) (domain.Storefront, error) {
	var storefront domain.Storefront
	err := r.store.with(ctx, func(st *state) error {
		found, ok := st.storefronts[storefrontID]
		if !ok {
			return repositories.NewNotFoundError("storefronts.find", "storefront %q", storefrontID)
		}
		storefront = found
		return nil
	})
	return storefront, err
}

func (r *storefrontRepository) ListByShop(ctx context.Context, shopID string) ([]domain.Storefront, error) {
	var storefronts []domain.Storefront
	err := r.store.with(ctx, func(st *state) error {
		for _, sf := range st.storefronts {
			if sf.ShopID == shopID {
				storefronts = append(storefronts, sf)
			}
		}
		return nil
	})
	sort.Slice(storefronts, func(i, j int) bool { return storefronts[i].ID < storefronts[j].ID })
	return storefronts, err
}

type sequenceRepository struct{ store *Store }

func (r *sequenceRepository) Insert(ctx context.Context, sequence domain.NumberSequence) error {
	return r.store.with(ctx, func(st *state) error {
		for _, existing := range st.sequences {
			if existing.ID == sequence.ID {
				return repositories.NewConflictError("sequences.insert", "sequence %q exists", sequence.ID)
			}
			if existing.ShopID == sequence.ShopID && existing.Kind == sequence.Kind && existing.Prefix == sequence.Prefix {
				return repositories.NewSequenceError("sequences.insert", repositories.SequenceErrorDuplicatePrefix,
					"prefix "+sequence.Prefix+" already used", nil)
			}
		}
		st.sequences[sequence.ID] = sequence
		return nil
	})
}

func (r *sequenceRepository) FindByID(ctx context.Context, sequenceID string) (domain.NumberSequence, error) {
	var sequence domain.NumberSequence
	err := r.store.with(ctx, func(st *state) error {
		found, ok := st.sequences[sequenceID]
		if !ok {
			return repositories.NewSequenceError("sequences.find", repositories.SequenceErrorNotFound, "sequence "+sequenceID, nil)
		}
		sequence = found
		return nil
	})
	return sequence, err
}

func (r *sequenceRepository) ListByShop(ctx context.Context, shopID string) ([]domain.NumberSequence, error) {
	var sequences []domain.NumberSequence
	err := r.store.with(ctx, func(st *state) error {
		for _, seq := range st.sequences {
			if seq.ShopID == shopID {
				sequences = append(sequences, seq)
			}
		}
		return nil
	})
	sort.Slice(sequences, func(i, j int) bool {
		if sequences[i].Kind != sequences[j].Kind {
			return sequences[i].Kind < sequences[j].Kind
		}
		return sequences[i].Prefix < sequences[j].Prefix
	})
	return sequences, err
}

func (r *sequenceRepository) Next(ctx context.Context, sequenceID string) (domain.NumberSequence, error) {
	var sequence domain.NumberSequence
	err := r.store.with(ctx, func(st *state) error {
		found, ok := st.sequences[sequenceID]
		if !ok {
			return repositories.NewSequenceError("sequences.next", repositories.SequenceErrorNotFound, "sequence "+sequenceID, nil)
		}
		found.Value++
		st.sequences[sequenceID] = found
		sequence = found
		return nil
	})
	return sequence, err
}
