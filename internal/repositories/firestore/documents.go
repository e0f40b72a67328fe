package firestore

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/byceps/byceps-sub001/internal/domain"
)

const (
	brandsCollection           = "brands"
	shopsCollection            = "shops"
	storefrontsCollection      = "storefronts"
	sequencesCollection        = "number_sequences"
	sequencePrefixesCollection = "number_sequence_prefixes"
	articlesCollection         = "articles"
	articleNumbersCollection   = "article_numbers"
	attachmentsCollection      = "article_attachments"
	ordersCollection           = "orders"
	orderNumbersCollection     = "order_numbers"
	orderLogCountersCollection = "order_log_counters"
	logEntriesSubcollection    = "log_entries"
	orderActionsCollection     = "order_actions"
	ticketsCollection          = "tickets"
	bundlesCollection          = "ticket_bundles"
	awardingsCollection        = "badge_awardings"
	snippetsCollection         = "snippets"
)

// indexKey builds a document id from parts that may contain slashes.
func indexKey(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = url.PathEscape(part)
	}
	return strings.Join(escaped, "|")
}

type indexDocument struct {
	TargetID string `firestore:"targetId"`
}

type counterDocument struct {
	Value int64 `firestore:"value"`
}

type shopDocument struct {
	ID       string `firestore:"id"`
	BrandID  string `firestore:"brandId"`
	Title    string `firestore:"title"`
	Currency string `firestore:"currency"`
	Archived bool   `firestore:"archived"`
}

func newShopDocument(s domain.Shop) shopDocument {
	return shopDocument{ID: s.ID, BrandID: s.BrandID, Title: s.Title, Currency: s.Currency, Archived: s.Archived}
}

func (d shopDocument) toDomain() domain.Shop {
	return domain.Shop{ID: d.ID, BrandID: d.BrandID, Title: d.Title, Currency: d.Currency, Archived: d.Archived}
}

type brandDocument struct {
	ID                 string `firestore:"id"`
	Title              string `firestore:"title"`
	DefaultLocale      string `firestore:"defaultLocale"`
	EmailSenderName    string `firestore:"emailSenderName"`
	EmailSenderAddress string `firestore:"emailSenderAddress"`
}

func newBrandDocument(b domain.Brand) brandDocument {
	return brandDocument{
		ID:                 b.ID,
		Title:              b.Title,
		DefaultLocale:      b.DefaultLocale,
		EmailSenderName:    b.EmailSender.Name,
		EmailSenderAddress: b.EmailSender.Address,
	}
}

func (d brandDocument) toDomain() domain.Brand {
	return domain.Brand{
		ID:            d.ID,
		Title:         d.Title,
		DefaultLocale: d.DefaultLocale,
		EmailSender:   domain.EmailSender{Name: d.EmailSenderName, Address: d.EmailSenderAddress},
	}
}

type storefrontDocument struct {
	ID                    string `firestore:"id"`
	ShopID                string `firestore:"shopId"`
	OrderNumberSequenceID string `firestore:"orderNumberSequenceId"`
	Closed                bool   `firestore:"closed"`
}

func newStorefrontDocument(s domain.Storefront) storefrontDocument {
	return storefrontDocument{ID: s.ID, ShopID: s.ShopID, OrderNumberSequenceID: s.OrderNumberSequenceID, Closed: s.Closed}
}

func (d storefrontDocument) toDomain() domain.Storefront {
	return domain.Storefront{ID: d.ID, ShopID: d.ShopID, OrderNumberSequenceID: d.OrderNumberSequenceID, Closed: d.Closed}
}

type sequenceDocument struct {
	ID     string `firestore:"id"`
	ShopID string `firestore:"shopId"`
	Kind   string `firestore:"kind"`
	Prefix string `firestore:"prefix"`
	Value  int    `firestore:"value"`
}

func newSequenceDocument(s domain.NumberSequence) sequenceDocument {
	return sequenceDocument{ID: s.ID, ShopID: s.ShopID, Kind: string(s.Kind), Prefix: s.Prefix, Value: s.Value}
}

func (d sequenceDocument) toDomain() domain.NumberSequence {
	return domain.NumberSequence{ID: d.ID, ShopID: d.ShopID, Kind: domain.SequenceKind(d.Kind), Prefix: d.Prefix, Value: d.Value}
}

// Amounts are stored as decimal strings; Firestore doubles would round.
type articleDocument struct {
	ID                    string         `firestore:"id"`
	ShopID                string         `firestore:"shopId"`
	ItemNumber            string         `firestore:"itemNumber"`
	Type                  string         `firestore:"type"`
	TypeParams            map[string]any `firestore:"typeParams"`
	Description           string         `firestore:"description"`
	Price                 string         `firestore:"price"`
	Currency              string         `firestore:"currency"`
	TaxRate               string         `firestore:"taxRate"`
	AvailableFrom         *time.Time     `firestore:"availableFrom"`
	AvailableUntil        *time.Time     `firestore:"availableUntil"`
	TotalQuantity         int            `firestore:"totalQuantity"`
	Quantity              int            `firestore:"quantity"`
	MaxQuantityPerOrder   int            `firestore:"maxQuantityPerOrder"`
	NotDirectlyOrderable  bool           `firestore:"notDirectlyOrderable"`
	SeparateOrderRequired bool           `firestore:"separateOrderRequired"`
	ProcessingRequired    bool           `firestore:"processingRequired"`
}

func newArticleDocument(a domain.Article) articleDocument {
	return articleDocument{
		ID:                    a.ID,
		ShopID:                a.ShopID,
		ItemNumber:            a.ItemNumber,
		Type:                  string(a.Type),
		TypeParams:            maps.Clone(a.TypeParams),
		Description:           a.Description,
		Price:                 a.Price.Amount.String(),
		Currency:              a.Price.Currency,
		TaxRate:               a.TaxRate.String(),
		AvailableFrom:         a.AvailableFrom,
		AvailableUntil:        a.AvailableUntil,
		TotalQuantity:         a.TotalQuantity,
		Quantity:              a.Quantity,
		MaxQuantityPerOrder:   a.MaxQuantityPerOrder,
		NotDirectlyOrderable:  a.NotDirectlyOrderable,
		SeparateOrderRequired: a.SeparateOrderRequired,
		ProcessingRequired:    a.ProcessingRequired,
	}
}

func (d articleDocument) toDomain() (domain.Article, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return domain.Article{}, fmt.Errorf("article %s: price: %w", d.ID, err)
	}
	tax, err := decimal.NewFromString(d.TaxRate)
	if err != nil {
		return domain.Article{}, fmt.Errorf("article %s: tax rate: %w", d.ID, err)
	}
	return domain.Article{
		ID:                    d.ID,
		ShopID:                d.ShopID,
		ItemNumber:            d.ItemNumber,
		Type:                  domain.ArticleType(d.Type),
		TypeParams:            d.TypeParams,
		Description:           d.Description,
		Price:                 domain.Money{Amount: price, Currency: d.Currency},
		TaxRate:               tax,
		AvailableFrom:         d.AvailableFrom,
		AvailableUntil:        d.AvailableUntil,
		TotalQuantity:         d.TotalQuantity,
		Quantity:              d.Quantity,
		MaxQuantityPerOrder:   d.MaxQuantityPerOrder,
		NotDirectlyOrderable:  d.NotDirectlyOrderable,
		SeparateOrderRequired: d.SeparateOrderRequired,
		ProcessingRequired:    d.ProcessingRequired,
	}, nil
}

type attachmentDocument struct {
	ID                string `firestore:"id"`
	ArticleID         string `firestore:"articleId"`
	AttachedArticleID string `firestore:"attachedArticleId"`
	Quantity          int    `firestore:"quantity"`
}

type ordererDocument struct {
	UserID    string `firestore:"userId"`
	Company   string `firestore:"company"`
	FirstName string `firestore:"firstName"`
	LastName  string `firestore:"lastName"`
	Country   string `firestore:"country"`
	ZipCode   string `firestore:"zipCode"`
	City      string `firestore:"city"`
	Street    string `firestore:"street"`
}

type lineItemDocument struct {
	ID                 string         `firestore:"id"`
	ArticleID          string         `firestore:"articleId"`
	ArticleNumber      string         `firestore:"articleNumber"`
	ArticleType        string         `firestore:"articleType"`
	Description        string         `firestore:"description"`
	UnitPrice          string         `firestore:"unitPrice"`
	TaxRate            string         `firestore:"taxRate"`
	Quantity           int            `firestore:"quantity"`
	LineAmount         string         `firestore:"lineAmount"`
	ProcessingRequired bool           `firestore:"processingRequired"`
	ProcessingResult   map[string]any `firestore:"processingResult"`
}

type orderDocument struct {
	ID                    string             `firestore:"id"`
	ShopID                string             `firestore:"shopId"`
	StorefrontID          string             `firestore:"storefrontId"`
	OrderNumber           string             `firestore:"orderNumber"`
	CreatedAt             time.Time          `firestore:"createdAt"`
	Orderer               ordererDocument    `firestore:"orderer"`
	LineItems             []lineItemDocument `firestore:"lineItems"`
	Currency              string             `firestore:"currency"`
	TotalAmount           string             `firestore:"totalAmount"`
	PaymentMethod         *string            `firestore:"paymentMethod"`
	PaymentState          string             `firestore:"paymentState"`
	PaymentStateUpdatedAt *time.Time         `firestore:"paymentStateUpdatedAt"`
	PaymentStateUpdatedBy *string            `firestore:"paymentStateUpdatedBy"`
	CancellationReason    *string            `firestore:"cancellationReason"`
	InvoiceCreatedAt      *time.Time         `firestore:"invoiceCreatedAt"`
	ProcessedAt           *time.Time         `firestore:"processedAt"`
	ProcessingRequired    bool               `firestore:"processingRequired"`
}

const (
	fieldShopID       = "shopId"
	fieldOrdererID    = "orderer.userId"
	fieldPaymentState = "paymentState"
)

func newOrderDocument(o domain.Order) orderDocument {
	items := make([]lineItemDocument, len(o.LineItems))
	for i, item := range o.LineItems {
		items[i] = lineItemDocument{
			ID:                 item.ID,
			ArticleID:          item.ArticleID,
			ArticleNumber:      item.ArticleNumber,
			ArticleType:        string(item.ArticleType),
			Description:        item.Description,
			UnitPrice:          item.UnitPrice.Amount.String(),
			TaxRate:            item.TaxRate.String(),
			Quantity:           item.Quantity,
			LineAmount:         item.LineAmount.Amount.String(),
			ProcessingRequired: item.ProcessingRequired,
			ProcessingResult:   maps.Clone(item.ProcessingResult),
		}
	}
	return orderDocument{
		ID:                    o.ID,
		ShopID:                o.ShopID,
		StorefrontID:          o.StorefrontID,
		OrderNumber:           o.OrderNumber,
		CreatedAt:             o.CreatedAt,
		Orderer:               ordererDocument(o.Orderer),
		LineItems:             items,
		Currency:              o.TotalAmount.Currency,
		TotalAmount:           o.TotalAmount.Amount.String(),
		PaymentMethod:         o.PaymentMethod,
		PaymentState:          o.PaymentState.String(),
		PaymentStateUpdatedAt: o.PaymentStateUpdatedAt,
		PaymentStateUpdatedBy: o.PaymentStateUpdatedBy,
		CancellationReason:    o.CancellationReason,
		InvoiceCreatedAt:      o.InvoiceCreatedAt,
		ProcessedAt:           o.ProcessedAt,
		ProcessingRequired:    o.ProcessingRequired,
	}
}

func (d orderDocument) toDomain() (domain.Order, error) {
	state, err := domain.ParsePaymentState(d.PaymentState)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", d.OrderNumber, err)
	}
	total, err := decimal.NewFromString(d.TotalAmount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: total: %w", d.OrderNumber, err)
	}
	items := make([]domain.LineItem, len(d.LineItems))
	for i, item := range d.LineItems {
		unit, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s: line %s: unit price: %w", d.OrderNumber, item.ID, err)
		}
		tax, err := decimal.NewFromString(item.TaxRate)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s: line %s: tax rate: %w", d.OrderNumber, item.ID, err)
		}
		amount, err := decimal.NewFromString(item.LineAmount)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s: line %s: amount: %w", d.OrderNumber, item.ID, err)
		}
		items[i] = domain.LineItem{
			ID:                 item.ID,
			OrderNumber:        d.OrderNumber,
			ArticleID:          item.ArticleID,
			ArticleNumber:      item.ArticleNumber,
			ArticleType:        domain.ArticleType(item.ArticleType),
			Description:        item.Description,
			UnitPrice:          domain.Money{Amount: unit, Currency: d.Currency},
			TaxRate:            tax,
			Quantity:           item.Quantity,
			LineAmount:         domain.Money{Amount: amount, Currency: d.Currency},
			ProcessingRequired: item.ProcessingRequired,
			ProcessingResult:   item.ProcessingResult,
		}
	}
	return domain.Order{
		ID:                    d.ID,
		ShopID:                d.ShopID,
		StorefrontID:          d.StorefrontID,
		OrderNumber:           d.OrderNumber,
		CreatedAt:             d.CreatedAt,
		Orderer:               domain.Orderer(d.Orderer),
		LineItems:             items,
		TotalAmount:           domain.Money{Amount: total, Currency: d.Currency},
		PaymentMethod:         d.PaymentMethod,
		PaymentState:          state,
		PaymentStateUpdatedAt: d.PaymentStateUpdatedAt,
		PaymentStateUpdatedBy: d.PaymentStateUpdatedBy,
		CancellationReason:    d.CancellationReason,
		InvoiceCreatedAt:      d.InvoiceCreatedAt,
		ProcessedAt:           d.ProcessedAt,
		ProcessingRequired:    d.ProcessingRequired,
	}, nil
}

type logEntryDocument struct {
	ID         string         `firestore:"id"`
	OrderID    string         `firestore:"orderId"`
	OccurredAt time.Time      `firestore:"occurredAt"`
	Sequence   int64          `firestore:"sequence"`
	EventType  string         `firestore:"eventType"`
	Data       map[string]any `firestore:"data"`
}

func (d logEntryDocument) toDomain() domain.OrderLogEntry {
	return domain.OrderLogEntry{
		ID:         d.ID,
		OrderID:    d.OrderID,
		OccurredAt: d.OccurredAt,
		Sequence:   d.Sequence,
		EventType:  domain.OrderLogEventType(d.EventType),
		Data:       d.Data,
	}
}

type orderActionDocument struct {
	ID            string         `firestore:"id"`
	ShopID        string         `firestore:"shopId"`
	ArticleNumber string         `firestore:"articleNumber"`
	PaymentState  string         `firestore:"paymentState"`
	Procedure     string         `firestore:"procedure"`
	Parameters    map[string]any `firestore:"parameters"`
}

type ticketDocument struct {
	ID          string    `firestore:"id"`
	Code        string    `firestore:"code"`
	CategoryID  string    `firestore:"categoryId"`
	OwnedByID   string    `firestore:"ownedById"`
	UsedByID    *string   `firestore:"usedById"`
	BundleID    *string   `firestore:"bundleId"`
	OrderNumber string    `firestore:"orderNumber"`
	LineItemID  string    `firestore:"lineItemId"`
	Revoked     bool      `firestore:"revoked"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type bundleDocument struct {
	ID             string    `firestore:"id"`
	CategoryID     string    `firestore:"categoryId"`
	TicketQuantity int       `firestore:"ticketQuantity"`
	OwnedByID      string    `firestore:"ownedById"`
	OrderNumber    string    `firestore:"orderNumber"`
	LineItemID     string    `firestore:"lineItemId"`
	Revoked        bool      `firestore:"revoked"`
	CreatedAt      time.Time `firestore:"createdAt"`
	TicketIDs      []string  `firestore:"ticketIds"`
}

type awardingDocument struct {
	ID          string    `firestore:"id"`
	BadgeID     string    `firestore:"badgeId"`
	UserID      string    `firestore:"userId"`
	OrderNumber string    `firestore:"orderNumber"`
	LineItemID  string    `firestore:"lineItemId"`
	AwardedAt   time.Time `firestore:"awardedAt"`
}

type snippetDocument struct {
	ScopeType string `firestore:"scopeType"`
	ScopeID   string `firestore:"scopeId"`
	Name      string `firestore:"name"`
	Locale    string `firestore:"locale"`
	Body      string `firestore:"body"`
}
