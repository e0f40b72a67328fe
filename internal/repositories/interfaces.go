package repositories

import (
	"context"

	domain "github.com/byceps/byceps-sub001/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Shops() ShopRepository
	Brands() BrandRepository
	Storefronts() StorefrontRepository
	Sequences() SequenceRepository
	Articles() ArticleRepository
	Orders() OrderRepository
	OrderActions() OrderActionRepository
	Tickets() TicketRepository
	Badges() BadgeRepository
	Snippets() SnippetRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in a transactional boundary. Repository
// calls made with the context handed to fn join the transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ShopRepository persists shops.
type ShopRepository interface {
	Insert(ctx context.Context, shop domain.Shop) error
	Update(ctx context.Context, shop domain.Shop) error
	FindByID(ctx context.Context, shopID string) (domain.Shop, error)
	List(ctx context.Context) ([]domain.Shop, error)
}

// BrandRepository persists brands and their email sender configuration.
type BrandRepository interface {
	Upsert(ctx context.Context, brand domain.Brand) error
	FindByID(ctx context.Context, brandID string) (domain.Brand, error)
}

// StorefrontRepository persists storefronts.
type StorefrontRepository interface {
	Insert(ctx context.Context, storefront domain.Storefront) error
	Update(ctx context.Context, storefront domain.Storefront) error
	FindByID(ctx context.Context, storefrontID string) (domain.Storefront, error)
	ListByShop(ctx context.Context, shopID string) ([]domain.Storefront, error)
}

// SequenceRepository persists number sequences. Next atomically increments
// the value and returns the updated sequence; it commits on its own unless
// the context carries a transaction.
type SequenceRepository interface {
	Insert(ctx context.Context, sequence domain.NumberSequence) error
	FindByID(ctx context.Context, sequenceID string) (domain.NumberSequence, error)
	ListByShop(ctx context.Context, shopID string) ([]domain.NumberSequence, error)
	Next(ctx context.Context, sequenceID string) (domain.NumberSequence, error)
}

// ArticleListFilter narrows article listings.
type ArticleListFilter struct {
	ShopID     string
	SearchTerm string
	Pagination domain.Pagination
}

// ArticleRepository persists articles, their attachments, and stock levels.
type ArticleRepository interface {
	Insert(ctx context.Context, article domain.Article) error
	Update(ctx context.Context, article domain.Article) error
	Delete(ctx context.Context, articleID string) error
	FindByID(ctx context.Context, articleID string) (domain.Article, error)
	FindByNumber(ctx context.Context, shopID string, itemNumber string) (domain.Article, error)
	ListByShop(ctx context.Context, shopID string) ([]domain.Article, error)
	Search(ctx context.Context, filter ArticleListFilter) (domain.Page[domain.Article], error)

	// AdjustQuantity adds delta to the available quantity. A result below zero
	// must fail with an InventoryError coded InventoryErrorUnderflow and leave
	// the stock unchanged.
	AdjustQuantity(ctx context.Context, articleID string, delta int) (int, error)

	InsertAttachment(ctx context.Context, attachment domain.ArticleAttachment) error
	DeleteAttachment(ctx context.Context, attachmentID string) error
	ListAttachments(ctx context.Context, articleID string) ([]domain.ArticleAttachment, error)
}

// OrderListFilter narrows shop order listings.
type OrderListFilter struct {
	ShopID          string
	PaymentState    *domain.PaymentState
	ProcessingState domain.ProcessingState
	SearchTerm      string
	Pagination      domain.Pagination
}

// OrderRepository persists orders, their line items, and their log.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	ListByOrderer(ctx context.Context, userID string, shopID string) ([]domain.Order, error)
	ListByShop(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
	CountByPaymentState(ctx context.Context, shopID string) (map[domain.PaymentState]int, error)
	HasOrderer(ctx context.Context, userID string, shopID string) (bool, error)

	// AppendLogEntries stores entries in the given order, assigning each a
	// sequence number that keeps that order among equal timestamps.
	AppendLogEntries(ctx context.Context, entries ...domain.OrderLogEntry) error
	ListLogEntries(ctx context.Context, orderID string) ([]domain.OrderLogEntry, error)
}

// OrderActionRepository persists action registrations in their stored form.
type OrderActionRepository interface {
	Insert(ctx context.Context, action domain.StoredOrderAction) error
	Delete(ctx context.Context, actionID string) error
	FindByID(ctx context.Context, actionID string) (domain.StoredOrderAction, error)
	ListByArticle(ctx context.Context, shopID string, articleNumber string) ([]domain.StoredOrderAction, error)
}

// TicketRepository persists tickets and bundles created from orders.
type TicketRepository interface {
	InsertTickets(ctx context.Context, tickets ...domain.Ticket) error
	InsertBundle(ctx context.Context, bundle domain.TicketBundle) error
	ListTicketsByLineItem(ctx context.Context, orderNumber string, lineItemID string) ([]domain.Ticket, error)
	ListBundlesByLineItem(ctx context.Context, orderNumber string, lineItemID string) ([]domain.TicketBundle, error)
	RevokeTickets(ctx context.Context, ticketIDs ...string) error
	RevokeBundle(ctx context.Context, bundleID string) error
}

// BadgeRepository persists badge awardings.
type BadgeRepository interface {
	// InsertAwarding stores the awarding unless one exists for the same badge
	// and order line, in which case it returns the existing record and false.
	InsertAwarding(ctx context.Context, awarding domain.BadgeAwarding) (domain.BadgeAwarding, bool, error)
	ListAwardingsByUser(ctx context.Context, userID string) ([]domain.BadgeAwarding, error)
}

// SnippetRepository persists localized text fragments.
type SnippetRepository interface {
	Upsert(ctx context.Context, snippet domain.Snippet) error
	Find(ctx context.Context, key domain.SnippetKey) (domain.Snippet, error)
}
