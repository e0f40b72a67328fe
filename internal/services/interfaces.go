package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination          = domain.Pagination
	Money               = domain.Money
	Article             = domain.Article
	ArticleAttachment   = domain.ArticleAttachment
	ArticleCompilation  = domain.ArticleCompilation
	Cart                = domain.Cart
	Shop                = domain.Shop
	Brand               = domain.Brand
	Storefront          = domain.Storefront
	NumberSequence      = domain.NumberSequence
	Order               = domain.Order
	LineItem            = domain.LineItem
	Orderer             = domain.Orderer
	OrderLogEntry       = domain.OrderLogEntry
	OrderAction         = domain.OrderAction
	PaymentState        = domain.PaymentState
	Ticket              = domain.Ticket
	TicketBundle        = domain.TicketBundle
	BadgeAwarding       = domain.BadgeAwarding
	User                = domain.User
	EmailMessage        = domain.EmailMessage
	SnippetKey          = domain.SnippetKey
	ShopOrderEvent      = domain.ShopOrderEvent
	ShopOrderPlaced     = domain.ShopOrderPlaced
	ShopOrderPaid       = domain.ShopOrderPaid
	ShopOrderCanceled   = domain.ShopOrderCanceled
	OrderListFilter     = repositories.OrderListFilter
	SystemHealthReport  = domain.SystemHealthReport
)

// Actor carries who triggers an operation, in which locale, and at what
// time. A zero Now falls back to the service clock.
type Actor struct {
	ID     string
	Locale string
	Now    time.Time
}

// Ports consumed by the engine --------------------------------------------

// SnippetLookup resolves authored text fragments.
type SnippetLookup interface {
	Lookup(ctx context.Context, key SnippetKey) (string, error)
}

// Mailer accepts assembled messages for asynchronous delivery.
type Mailer interface {
	Enqueue(ctx context.Context, message EmailMessage) error
}

// Job is a unit of background work.
type Job struct {
	Name string
	Args map[string]any
}

// JobQueue hands jobs to background workers.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) (string, error)
}

// UserDirectory reads user accounts.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (User, error)
}

// EventPublisher forwards committed order events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event ShopOrderEvent) error
}

// TicketingService issues and revokes tickets for order line items.
type TicketingService interface {
	CreateTickets(ctx context.Context, order Order, item LineItem, categoryID string, quantity int, initiatorID string) ([]Ticket, error)
	RevokeTickets(ctx context.Context, order Order, item LineItem, initiatorID string) ([]Ticket, error)
	CreateTicketBundles(ctx context.Context, order Order, item LineItem, categoryID string, ticketQuantity int, bundleCount int, initiatorID string) ([]TicketBundle, error)
	RevokeTicketBundles(ctx context.Context, order Order, item LineItem, initiatorID string) ([]TicketBundle, error)
}

// BadgeService grants badges. The returned bool is false when the badge had
// already been awarded for the same order line.
type BadgeService interface {
	Award(ctx context.Context, badgeID string, recipientID string, order Order, item LineItem, initiatorID string) (BadgeAwarding, bool, error)
}

// Engine services ---------------------------------------------------------

// CreateArticleCommand describes a new article.
type CreateArticleCommand struct {
	ShopID                string
	ItemNumber            string
	Type                  domain.ArticleType
	TypeParams            map[string]any
	Description           string
	Price                 Money
	TaxRate               decimal.Decimal
	TotalQuantity         int
	MaxQuantityPerOrder   int
	ProcessingRequired    bool
	AvailableFrom         *time.Time
	AvailableUntil        *time.Time
	NotDirectlyOrderable  bool
	SeparateOrderRequired bool
}

// UpdateArticleCommand replaces the editable fields of an article. Nil
// fields keep their value.
type UpdateArticleCommand struct {
	ArticleID             string
	Description           *string
	Price                 *Money
	TaxRate               *decimal.Decimal
	MaxQuantityPerOrder   *int
	AvailableFrom         *time.Time
	AvailableUntil        *time.Time
	ClearAvailability     bool
	NotDirectlyOrderable  *bool
	SeparateOrderRequired *bool
}

// CatalogService manages articles and stock.
type CatalogService interface {
	CreateArticle(ctx context.Context, cmd CreateArticleCommand) (Article, error)
	CreateTicketArticle(ctx context.Context, cmd CreateArticleCommand, categoryID string) (Article, error)
	CreateTicketBundleArticle(ctx context.Context, cmd CreateArticleCommand, categoryID string, ticketQuantity int) (Article, error)
	UpdateArticle(ctx context.Context, cmd UpdateArticleCommand) (Article, error)
	DeleteArticle(ctx context.Context, articleID string) error
	AttachArticle(ctx context.Context, articleID string, attachedArticleID string, quantity int) (ArticleAttachment, error)
	UnattachArticle(ctx context.Context, attachmentID string) error
	IncreaseQuantity(ctx context.Context, articleID string, quantity int, commit bool) (int, error)
	DecreaseQuantity(ctx context.Context, articleID string, quantity int, commit bool) (int, error)
	FindArticle(ctx context.Context, articleID string) (*Article, error)
	GetArticle(ctx context.Context, articleID string) (Article, error)
	FindArticleByNumber(ctx context.Context, shopID string, itemNumber string) (Article, error)
	GetArticleCompilationForOrderableArticles(ctx context.Context, shopID string) (ArticleCompilation, error)
	GetArticleCompilationForSingleArticle(ctx context.Context, articleID string) (ArticleCompilation, error)
	GetArticlesForShopPaginated(ctx context.Context, shopID string, pager Pagination, searchTerm string) (domain.Page[Article], error)
}

// SequenceService allocates article and order numbers.
type SequenceService interface {
	CreateSequence(ctx context.Context, shopID string, kind domain.SequenceKind, prefix string, value int) (NumberSequence, error)
	GetSequence(ctx context.Context, sequenceID string) (NumberSequence, error)
	FindSequencesForShop(ctx context.Context, shopID string) ([]NumberSequence, error)
	GenerateArticleNumber(ctx context.Context, sequenceID string) (string, error)
	GenerateOrderNumber(ctx context.Context, sequenceID string) (string, error)
}

// CreateShopCommand sets up a shop together with its number sequences.
type CreateShopCommand struct {
	ShopID              string
	BrandID             string
	Title               string
	Currency            string
	OrderNumberPrefix   string
	ArticleNumberPrefix string
	StorefrontID        string
}

// ShopSetup is the result of CreateShop.
type ShopSetup struct {
	Shop            Shop
	OrderSequence   NumberSequence
	ArticleSequence NumberSequence
	Storefront      *Storefront
}

// ShopService administers shops, brands and storefronts.
type ShopService interface {
	CreateShop(ctx context.Context, cmd CreateShopCommand) (ShopSetup, error)
	GetShop(ctx context.Context, shopID string) (Shop, error)
	CreateBrand(ctx context.Context, brand Brand) (Brand, error)
	GetBrand(ctx context.Context, brandID string) (Brand, error)
	CreateStorefront(ctx context.Context, storefrontID string, shopID string, orderSequenceID string) (Storefront, error)
	GetStorefront(ctx context.Context, storefrontID string) (Storefront, error)
	CloseStorefront(ctx context.Context, storefrontID string) (Storefront, error)
	OpenStorefront(ctx context.Context, storefrontID string) (Storefront, error)
}

// PlaceOrderCommand places the cart through a storefront.
type PlaceOrderCommand struct {
	StorefrontID string
	Orderer      Orderer
	Cart         *Cart
	Actor        Actor
}

// MarkOrderAsPaidCommand records a payment.
type MarkOrderAsPaidCommand struct {
	OrderID           string
	PaymentMethod     string
	AdditionalLogData map[string]any
	Actor             Actor
}

// CancelOrderCommand cancels an order.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
	Actor   Actor
}

// AddOrderNoteCommand attaches a staff note to the order log.
type AddOrderNoteCommand struct {
	OrderID string
	Text    string
	Actor   Actor
}

// OrderFlagCommand toggles the invoiced or shipped flag.
type OrderFlagCommand struct {
	OrderID string
	Actor   Actor
}

// OrderService drives the order lifecycle.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, ShopOrderPlaced, error)
	MarkOrderAsPaid(ctx context.Context, cmd MarkOrderAsPaidCommand) (ShopOrderPaid, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (ShopOrderCanceled, error)
	AddNote(ctx context.Context, cmd AddOrderNoteCommand) (OrderLogEntry, error)
	SetInvoicedFlag(ctx context.Context, cmd OrderFlagCommand) (Order, error)
	UnsetInvoicedFlag(ctx context.Context, cmd OrderFlagCommand) (Order, error)
	SetShippedFlag(ctx context.Context, cmd OrderFlagCommand) (Order, error)
	UnsetShippedFlag(ctx context.Context, cmd OrderFlagCommand) (Order, error)
	DeleteOrder(ctx context.Context, orderID string) error

	GetOrder(ctx context.Context, orderID string) (Order, error)
	FindOrderByNumber(ctx context.Context, orderNumber string) (Order, error)
	ListOrdersByOrderer(ctx context.Context, userID string, shopID string) ([]Order, error)
	ListOrdersForShop(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error)
	CountOrdersByPaymentState(ctx context.Context, shopID string) (map[PaymentState]int, error)
	CountOpenOrders(ctx context.Context, shopID string) (int, error)
	HasUserPlacedOrders(ctx context.Context, userID string, shopID string) (bool, error)
	GetLogEntries(ctx context.Context, orderID string) ([]OrderLogEntry, error)
}

// RegisterOrderActionCommand binds an action to an article.
type RegisterOrderActionCommand struct {
	ShopID        string
	ArticleNumber string
	Trigger       PaymentState
	Action        domain.Action
}

// OrderActionService runs the post-payment and post-cancel side effects of
// an order and manages action registrations.
type OrderActionService interface {
	ExecuteCreationActions(ctx context.Context, order Order, initiatorID string) error
	ExecuteRevocationActions(ctx context.Context, order Order, initiatorID string) error
	RegisterAction(ctx context.Context, cmd RegisterOrderActionCommand) (OrderAction, error)
	DeleteAction(ctx context.Context, actionID string) error
	ListActionsForArticle(ctx context.Context, shopID string, articleNumber string) ([]OrderAction, error)
}

// OrderEmailService assembles and enqueues order notifications.
type OrderEmailService interface {
	AssemblePlacedEmail(ctx context.Context, order Order) (EmailMessage, error)
	AssemblePaidEmail(ctx context.Context, order Order) (EmailMessage, error)
	AssembleCanceledEmail(ctx context.Context, order Order) (EmailMessage, error)
	SendPlacedEmail(ctx context.Context, orderID string) error
	SendPaidEmail(ctx context.Context, orderID string) error
	SendCanceledEmail(ctx context.Context, orderID string) error
	ExampleMessages(ctx context.Context, shopID string, locale string) (map[string]EmailMessage, error)
}

// OrderExportService renders and stores the accounting export of an order.
type OrderExportService interface {
	ExportOrder(ctx context.Context, orderID string) ([]byte, error)
	UploadExport(ctx context.Context, orderID string) (string, error)
}

// SessionService removes login sessions.
type SessionService interface {
	RemoveAllSessions(ctx context.Context) (int, error)
	RemoveSessionsForUser(ctx context.Context, userID string) (int, error)
}

// SystemService exposes readiness information.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
