package firestore

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type shopRepository struct{ r *Registry }

func (s *shopRepository) Insert(ctx context.Context, shop domain.Shop) error {
	return s.r.shops.Create(ctx, shop.ID, newShopDocument(shop))
}

func (s *shopRepository) Update(ctx context.Context, shop domain.Shop) error {
	return s.r.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.r.shops.Get(ctx, shop.ID); err != nil {
			return notFoundAs(err, "shops.update", "shop %q", shop.ID)
		}
		return s.r.shops.Set(ctx, shop.ID, newShopDocument(shop))
	})
}

func (s *shopRepository) FindByID(ctx context.Context, shopID string) (domain.Shop, error) {
	doc, err := s.r.shops.Get(ctx, shopID)
	if err != nil {
		return domain.Shop{}, notFoundAs(err, "shops.find", "shop %q", shopID)
	}
	return doc.toDomain(), nil
}

func (s *shopRepository) List(ctx context.Context) ([]domain.Shop, error) {
	docs, err := s.r.shops.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("id", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, shopDocument.toDomain), nil
}

type brandRepository struct{ r *Registry }

func (b *brandRepository) Upsert(ctx context.Context, brand domain.Brand) error {
	return b.r.brands.Set(ctx, brand.ID, newBrandDocument(brand))
}

func (b *brandRepository) FindByID(ctx context.Context, brandID string) (domain.Brand, error) {
	doc, err := b.r.brands.Get(ctx, brandID)
	if err != nil {
		return domain.Brand{}, notFoundAs(err, "brands.find", "brand %q", brandID)
	}
	return doc.toDomain(), nil
}

type storefrontRepository struct{ r *Registry }

func (s *storefrontRepository) Insert(ctx context.Context, storefront domain.Storefront) error {
	return s.r.storefronts.Create(ctx, storefront.ID, newStorefrontDocument(storefront))
}

func (s *storefrontRepository) Update(ctx context.Context, storefront domain.Storefront) error {
	return s.r.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.r.storefronts.Get(ctx, storefront.ID); err != nil {
			return notFoundAs(err, "storefronts.update", "storefront %q", storefront.ID)
		}
		return s.r.storefronts.Set(ctx, storefront.ID, newStorefrontDocument(storefront))
	})
}

func (s *storefrontRepository) FindByID(ctx context.Context, storefrontID string) (domain.Storefront, error) {
	doc, err := s.r.storefronts.Get(ctx, storefrontID)
	if err != nil {
		return domain.Storefront{}, notFoundAs(err, "storefronts.find", "storefront %q", storefrontID)
	}
	return doc.toDomain(), nil
}

func (s *storefrontRepository) ListByShop(ctx context.Context, shopID string) ([]domain.Storefront, error) {
	docs, err := s.r.storefronts.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(fieldShopID, "==", shopID)
	})
	if err != nil {
		return nil, err
	}
	storefronts := decodeAll(docs, storefrontDocument.toDomain)
	sort.Slice(storefronts, func(i, j int) bool { return storefronts[i].ID < storefronts[j].ID })
	return storefronts, nil
}

// Prefix uniqueness per shop and kind is kept by an index document keyed
// on the triple.
type sequenceRepository struct{ r *Registry }

func (s *sequenceRepository) Insert(ctx context.Context, sequence domain.NumberSequence) error {
	prefixKey := indexKey(sequence.ShopID, string(sequence.Kind), sequence.Prefix)
	return s.r.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.r.sequences.Exists(ctx, sequence.ID)
		if err != nil {
			return err
		}
		if exists {
			return repositories.NewConflictError("sequences.insert", "sequence %q exists", sequence.ID)
		}
		taken, err := s.r.prefixes.Exists(ctx, prefixKey)
		if err != nil {
			return err
		}
		if taken {
			return repositories.NewSequenceError("sequences.insert", repositories.SequenceErrorDuplicatePrefix,
				"prefix "+sequence.Prefix+" already used", nil)
		}
		if err := s.r.prefixes.Create(ctx, prefixKey, indexDocument{TargetID: sequence.ID}); err != nil {
			return err
		}
		return s.r.sequences.Create(ctx, sequence.ID, newSequenceDocument(sequence))
	})
}

func (s *sequenceRepository) find(ctx context.Context, op string, sequenceID string) (sequenceDocument, error) {
	doc, err := s.r.sequences.Get(ctx, sequenceID)
	if isNotFound(err) {
		return sequenceDocument{}, repositories.NewSequenceError(op, repositories.SequenceErrorNotFound, "sequence "+sequenceID, err)
	}
	return doc, err
}

func (s *sequenceRepository) FindByID(ctx context.Context, sequenceID string) (domain.NumberSequence, error) {
	doc, err := s.find(ctx, "sequences.find", sequenceID)
	if err != nil {
		return domain.NumberSequence{}, err
	}
	return doc.toDomain(), nil
}

func (s *sequenceRepository) ListByShop(ctx context.Context, shopID string) ([]domain.NumberSequence, error) {
	docs, err := s.r.sequences.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(fieldShopID, "==", shopID)
	})
	if err != nil {
		return nil, err
	}
	sequences := decodeAll(docs, sequenceDocument.toDomain)
	sort.Slice(sequences, func(i, j int) bool {
		if sequences[i].Kind != sequences[j].Kind {
			return sequences[i].Kind < sequences[j].Kind
		}
		return sequences[i].Prefix < sequences[j].Prefix
	})
	return sequences, nil
}

// Next reads and rewrites the sequence in one transaction; Firestore
// retries the transaction when a concurrent caller commits first.
func (s *sequenceRepository) Next(ctx context.Context, sequenceID string) (domain.NumberSequence, error) {
	var next domain.NumberSequence
	err := s.r.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := s.find(ctx, "sequences.next", sequenceID)
		if err != nil {
			return err
		}
		doc.Value++
		if err := s.r.sequences.Set(ctx, sequenceID, doc); err != nil {
			return err
		}
		next = doc.toDomain()
		return nil
	})
	return next, err
}
