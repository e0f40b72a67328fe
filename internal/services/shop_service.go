package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

// ShopServiceDeps bundles collaborators required to construct the shop service.
type ShopServiceDeps struct {
	Shops       repositories.ShopRepository
	Brands      repositories.BrandRepository
	Storefronts repositories.StorefrontRepository
	Sequences   SequenceService
	UnitOfWork  repositories.UnitOfWork
	Logger      ServiceLogger
}

type shopService struct {
	shops       repositories.ShopRepository
	brands      repositories.BrandRepository
	storefronts repositories.StorefrontRepository
	sequences   SequenceService
	unitOfWork  repositories.UnitOfWork
	logger      ServiceLogger
	errs        repositoryErrorMapping
}

var _ ShopService = (*shopService)(nil)

// NewShopService wires dependencies into a concrete ShopService implementation.
func NewShopService(deps ShopServiceDeps) (ShopService, error) {
	if deps.Shops == nil || deps.Storefronts == nil {
		return nil, errors.New("shop service: shop and storefront repositories are required")
	}
	if deps.Brands == nil {
		return nil, errors.New("shop service: brand repository is required")
	}
	if deps.Sequences == nil {
		return nil, errors.New("shop service: sequence service is required")
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	return &shopService{
		shops:       deps.Shops,
		brands:      deps.Brands,
		storefronts: deps.Storefronts,
		sequences:   deps.Sequences,
		unitOfWork:  unit,
		logger:      defaultLogger(deps.Logger),
		errs:        repositoryErrorMapping{notFound: ErrUnknownShop, conflict: ErrShopConflict, scope: "shop"},
	}, nil
}

func (s *shopService) CreateShop(ctx context.Context, cmd CreateShopCommand) (ShopSetup, error) {
	shopID := strings.TrimSpace(cmd.ShopID)
	title := strings.TrimSpace(cmd.Title)
	if shopID == "" || title == "" {
		return ShopSetup{}, fmt.Errorf("%w: shop id and title are required", ErrShopInvalidInput)
	}
	brandID := strings.TrimSpace(cmd.BrandID)
	if brandID == "" {
		return ShopSetup{}, fmt.Errorf("%w: brand id is required", ErrShopInvalidInput)
	}
	if strings.TrimSpace(cmd.OrderNumberPrefix) == "" || strings.TrimSpace(cmd.ArticleNumberPrefix) == "" {
		return ShopSetup{}, fmt.Errorf("%w: order and article number prefixes are required", ErrShopInvalidInput)
	}
	currency := cmd.Currency
	if strings.TrimSpace(currency) == "" {
		currency = "EUR"
	}
	currency, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return ShopSetup{}, fmt.Errorf("%w: %v", ErrShopInvalidInput, err)
	}

	setup := ShopSetup{
		Shop: Shop{ID: shopID, BrandID: brandID, Title: title, Currency: currency},
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.brands.FindByID(txCtx, brandID); err != nil {
			return repositoryErrorMapping{notFound: ErrUnknownBrand, scope: "shop"}.mapError(err)
		}
		if err := s.shops.Insert(txCtx, setup.Shop); err != nil {
			return s.errs.mapError(err)
		}
		orderSeq, err := s.sequences.CreateSequence(txCtx, shopID, domain.SequenceKindOrder, cmd.OrderNumberPrefix, 0)
		if err != nil {
			return err
		}
		articleSeq, err := s.sequences.CreateSequence(txCtx, shopID, domain.SequenceKindArticle, cmd.ArticleNumberPrefix, 0)
		if err != nil {
			return err
		}
		setup.OrderSequence = orderSeq
		setup.ArticleSequence = articleSeq

		if storefrontID := strings.TrimSpace(cmd.StorefrontID); storefrontID != "" {
			storefront := Storefront{ID: storefrontID, ShopID: shopID, OrderNumberSequenceID: orderSeq.ID}
			if err := s.storefronts.Insert(txCtx, storefront); err != nil {
				return s.errs.mapError(err)
			}
			setup.Storefront = &storefront
		}
		return nil
	})
	if err != nil {
		return ShopSetup{}, err
	}

	s.logger(ctx, "shop.created", map[string]any{
		"shopId":          shopID,
		"orderSequence":   setup.OrderSequence.Prefix,
		"articleSequence": setup.ArticleSequence.Prefix,
	})
	return setup, nil
}

func (s *shopService) GetShop(ctx context.Context, shopID string) (Shop, error) {
	shop, err := s.shops.FindByID(ctx, strings.TrimSpace(shopID))
	if err != nil {
		return Shop{}, s.errs.mapError(err)
	}
	return shop, nil
}

func (s *shopService) CreateBrand(ctx context.Context, brand Brand) (Brand, error) {
	brand.ID = strings.TrimSpace(brand.ID)
	if brand.ID == "" || strings.TrimSpace(brand.EmailSender.Address) == "" {
		return Brand{}, fmt.Errorf("%w: brand id and sender address are required", ErrShopInvalidInput)
	}
	if brand.DefaultLocale == "" {
		brand.DefaultLocale = "en"
	}
	if err := s.brands.Upsert(ctx, brand); err != nil {
		return Brand{}, err
	}
	return brand, nil
}

func (s *shopService) GetBrand(ctx context.Context, brandID string) (Brand, error) {
	brand, err := s.brands.FindByID(ctx, strings.TrimSpace(brandID))
	if err != nil {
		return Brand{}, repositoryErrorMapping{notFound: ErrUnknownBrand, scope: "shop"}.mapError(err)
	}
	return brand, nil
}

func (s *shopService) CreateStorefront(ctx context.Context, storefrontID string, shopID string, orderSequenceID string) (Storefront, error) {
	storefront := Storefront{
		ID:                    strings.TrimSpace(storefrontID),
		ShopID:                strings.TrimSpace(shopID),
		OrderNumberSequenceID: strings.TrimSpace(orderSequenceID),
	}
	if storefront.ID == "" || storefront.ShopID == "" || storefront.OrderNumberSequenceID == "" {
		return Storefront{}, fmt.Errorf("%w: storefront id, shop id and sequence id are required", ErrShopInvalidInput)
	}
	if _, err := s.GetShop(ctx, storefront.ShopID); err != nil {
		return Storefront{}, err
	}
	sequence, err := s.sequences.GetSequence(ctx, storefront.OrderNumberSequenceID)
	if err != nil {
		return Storefront{}, err
	}
	if sequence.ShopID != storefront.ShopID || sequence.Kind != domain.SequenceKindOrder {
		return Storefront{}, fmt.Errorf("%w: sequence %s is not an order sequence of shop %s", ErrShopInvalidInput, sequence.ID, storefront.ShopID)
	}
	if err := s.storefronts.Insert(ctx, storefront); err != nil {
		return Storefront{}, s.errs.mapError(err)
	}
	return storefront, nil
}

func (s *shopService) GetStorefront(ctx context.Context, storefrontID string) (Storefront, error) {
	storefront, err := s.storefronts.FindByID(ctx, strings.TrimSpace(storefrontID))
	if err != nil {
		return Storefront{}, repositoryErrorMapping{notFound: ErrUnknownStorefront, scope: "shop"}.mapError(err)
	}
	return storefront, nil
}

func (s *shopService) CloseStorefront(ctx context.Context, storefrontID string) (Storefront, error) {
	return s.setStorefrontClosed(ctx, storefrontID, true)
}

func (s *shopService) OpenStorefront(ctx context.Context, storefrontID string) (Storefront, error) {
	return s.setStorefrontClosed(ctx, storefrontID, false)
}

func (s *shopService) setStorefrontClosed(ctx context.Context, storefrontID string, closed bool) (Storefront, error) {
	storefront, err := s.GetStorefront(ctx, storefrontID)
	if err != nil {
		return Storefront{}, err
	}
	storefront.Closed = closed
	if err := s.storefronts.Update(ctx, storefront); err != nil {
		return Storefront{}, s.errs.mapError(err)
	}
	return storefront, nil
}
