package handlers

import (
	"strings"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/services"
)

type moneyPayload struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func newMoneyPayload(m domain.Money) moneyPayload {
	return moneyPayload{Amount: m.Fixed(), Currency: m.Currency}
}

type moneyRequest struct {
	Amount   string `json:"amount" validate:"required,numeric"`
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

func (m moneyRequest) toMoney() (domain.Money, error) {
	return domain.NewMoney(m.Amount, m.Currency)
}

type shopPayload struct {
	ID       string `json:"id"`
	BrandID  string `json:"brand_id"`
	Title    string `json:"title"`
	Currency string `json:"currency"`
	Archived bool   `json:"archived"`
}

func newShopPayload(shop domain.Shop) shopPayload {
	return shopPayload{
		ID:       shop.ID,
		BrandID:  shop.BrandID,
		Title:    shop.Title,
		Currency: shop.Currency,
		Archived: shop.Archived,
	}
}

type sequencePayload struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Prefix string `json:"prefix"`
	Value  int    `json:"value"`
}

func newSequencePayload(seq domain.NumberSequence) sequencePayload {
	return sequencePayload{ID: seq.ID, Kind: string(seq.Kind), Prefix: seq.Prefix, Value: seq.Value}
}

type storefrontPayload struct {
	ID                    string `json:"id"`
	ShopID                string `json:"shop_id"`
	OrderNumberSequenceID string `json:"order_number_sequence_id"`
	Closed                bool   `json:"closed"`
}

func newStorefrontPayload(sf domain.Storefront) storefrontPayload {
	return storefrontPayload{
		ID:                    sf.ID,
		ShopID:                sf.ShopID,
		OrderNumberSequenceID: sf.OrderNumberSequenceID,
		Closed:                sf.Closed,
	}
}

type articlePayload struct {
	ID                    string         `json:"id"`
	ShopID                string         `json:"shop_id"`
	ItemNumber            string         `json:"item_number"`
	Type                  string         `json:"type"`
	TypeParams            map[string]any `json:"type_params,omitempty"`
	Description           string         `json:"description"`
	Price                 moneyPayload   `json:"price"`
	TaxRate               string         `json:"tax_rate"`
	AvailableFrom         *string        `json:"available_from,omitempty"`
	AvailableUntil        *string        `json:"available_until,omitempty"`
	TotalQuantity         int            `json:"total_quantity"`
	Quantity              int            `json:"quantity"`
	MaxQuantityPerOrder   int            `json:"max_quantity_per_order"`
	NotDirectlyOrderable  bool           `json:"not_directly_orderable"`
	SeparateOrderRequired bool           `json:"separate_order_required"`
	ProcessingRequired    bool           `json:"processing_required"`
}

func newArticlePayload(a domain.Article) articlePayload {
	return articlePayload{
		ID:                    a.ID,
		ShopID:                a.ShopID,
		ItemNumber:            a.ItemNumber,
		Type:                  string(a.Type),
		TypeParams:            a.TypeParams,
		Description:           a.Description,
		Price:                 newMoneyPayload(a.Price),
		TaxRate:               a.TaxRate.String(),
		AvailableFrom:         formatTimePointer(a.AvailableFrom),
		AvailableUntil:        formatTimePointer(a.AvailableUntil),
		TotalQuantity:         a.TotalQuantity,
		Quantity:              a.Quantity,
		MaxQuantityPerOrder:   a.MaxQuantityPerOrder,
		NotDirectlyOrderable:  a.NotDirectlyOrderable,
		SeparateOrderRequired: a.SeparateOrderRequired,
		ProcessingRequired:    a.ProcessingRequired,
	}
}

type compilationItemPayload struct {
	Article       articlePayload `json:"article"`
	FixedQuantity *int           `json:"fixed_quantity,omitempty"`
}

func newCompilationPayload(c domain.ArticleCompilation) []compilationItemPayload {
	items := make([]compilationItemPayload, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, compilationItemPayload{
			Article:       newArticlePayload(item.Article),
			FixedQuantity: item.FixedQuantity,
		})
	}
	return items
}

type ordererPayload struct {
	UserID    string `json:"user_id" validate:"required"`
	Company   string `json:"company,omitempty" validate:"max=80"`
	FirstName string `json:"first_name" validate:"required,max=40"`
	LastName  string `json:"last_name" validate:"required,max=80"`
	Country   string `json:"country" validate:"required,max=60"`
	ZipCode   string `json:"zip_code" validate:"required,max=20"`
	City      string `json:"city" validate:"required,max=60"`
	Street    string `json:"street" validate:"required,max=80"`
}

func newOrdererPayload(o domain.Orderer) ordererPayload {
	return ordererPayload(o)
}

func (p ordererPayload) toOrderer() domain.Orderer {
	return domain.Orderer{
		UserID:    strings.TrimSpace(p.UserID),
		Company:   strings.TrimSpace(p.Company),
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Country:   strings.TrimSpace(p.Country),
		ZipCode:   strings.TrimSpace(p.ZipCode),
		City:      strings.TrimSpace(p.City),
		Street:    strings.TrimSpace(p.Street),
	}
}

type lineItemPayload struct {
	ID                 string         `json:"id"`
	ArticleID          string         `json:"article_id"`
	ArticleNumber      string         `json:"article_number"`
	ArticleType        string         `json:"article_type"`
	Description        string         `json:"description"`
	UnitPrice          moneyPayload   `json:"unit_price"`
	TaxRate            string         `json:"tax_rate"`
	Quantity           int            `json:"quantity"`
	LineAmount         moneyPayload   `json:"line_amount"`
	ProcessingRequired bool           `json:"processing_required"`
	ProcessingResult   map[string]any `json:"processing_result,omitempty"`
}

type orderPayload struct {
	ID                    string            `json:"id"`
	ShopID                string            `json:"shop_id"`
	StorefrontID          string            `json:"storefront_id"`
	OrderNumber           string            `json:"order_number"`
	CreatedAt             string            `json:"created_at"`
	Orderer               ordererPayload    `json:"orderer"`
	LineItems             []lineItemPayload `json:"line_items"`
	TotalAmount           moneyPayload      `json:"total_amount"`
	PaymentMethod         *string           `json:"payment_method,omitempty"`
	PaymentState          string            `json:"payment_state"`
	PaymentStateUpdatedAt *string           `json:"payment_state_updated_at,omitempty"`
	PaymentStateUpdatedBy *string           `json:"payment_state_updated_by,omitempty"`
	CancellationReason    *string           `json:"cancellation_reason,omitempty"`
	Invoiced              bool              `json:"invoiced"`
	InvoiceCreatedAt      *string           `json:"invoice_created_at,omitempty"`
	ProcessingRequired    bool              `json:"processing_required"`
	Processed             bool              `json:"processed"`
	ProcessedAt           *string           `json:"processed_at,omitempty"`
}

func newOrderPayload(order domain.Order) orderPayload {
	items := make([]lineItemPayload, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		items = append(items, lineItemPayload{
			ID:                 item.ID,
			ArticleID:          item.ArticleID,
			ArticleNumber:      item.ArticleNumber,
			ArticleType:        string(item.ArticleType),
			Description:        item.Description,
			UnitPrice:          newMoneyPayload(item.UnitPrice),
			TaxRate:            item.TaxRate.String(),
			Quantity:           item.Quantity,
			LineAmount:         newMoneyPayload(item.LineAmount),
			ProcessingRequired: item.ProcessingRequired,
			ProcessingResult:   item.ProcessingResult,
		})
	}
	return orderPayload{
		ID:                    order.ID,
		ShopID:                order.ShopID,
		StorefrontID:          order.StorefrontID,
		OrderNumber:           order.OrderNumber,
		CreatedAt:             formatTime(order.CreatedAt),
		Orderer:               newOrdererPayload(order.Orderer),
		LineItems:             items,
		TotalAmount:           newMoneyPayload(order.TotalAmount),
		PaymentMethod:         order.PaymentMethod,
		PaymentState:          order.PaymentState.String(),
		PaymentStateUpdatedAt: formatTimePointer(order.PaymentStateUpdatedAt),
		PaymentStateUpdatedBy: order.PaymentStateUpdatedBy,
		CancellationReason:    order.CancellationReason,
		Invoiced:              order.IsInvoiced(),
		InvoiceCreatedAt:      formatTimePointer(order.InvoiceCreatedAt),
		ProcessingRequired:    order.ProcessingRequired,
		Processed:             order.IsProcessed(),
		ProcessedAt:           formatTimePointer(order.ProcessedAt),
	}
}

type logEntryPayload struct {
	ID         string         `json:"id"`
	OccurredAt string         `json:"occurred_at"`
	EventType  string         `json:"event_type"`
	Data       map[string]any `json:"data,omitempty"`
}

func newLogEntryPayload(entry domain.OrderLogEntry) logEntryPayload {
	return logEntryPayload{
		ID:         entry.ID,
		OccurredAt: formatTime(entry.OccurredAt),
		EventType:  string(entry.EventType),
		Data:       entry.Data,
	}
}

type orderActionPayload struct {
	ID            string         `json:"id"`
	ShopID        string         `json:"shop_id"`
	ArticleNumber string         `json:"article_number"`
	PaymentState  string         `json:"payment_state"`
	Procedure     string         `json:"procedure"`
	Parameters    map[string]any `json:"parameters"`
}

func newOrderActionPayload(action domain.OrderAction) orderActionPayload {
	stored := action.Encode()
	return orderActionPayload{
		ID:            stored.ID,
		ShopID:        stored.ShopID,
		ArticleNumber: stored.ArticleNumber,
		PaymentState:  stored.PaymentState,
		Procedure:     stored.Procedure,
		Parameters:    stored.Parameters,
	}
}

type emailPayload struct {
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

func newEmailPayload(msg services.EmailMessage) emailPayload {
	return emailPayload{
		Sender:     msg.Sender.Format(),
		Recipients: msg.Recipients,
		Subject:    msg.Subject,
		Body:       msg.Body,
	}
}

type pagePayload[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
}

func newPagePayload[S any, T any](page domain.Page[S], convert func(S) T) pagePayload[T] {
	items := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, convert(item))
	}
	return pagePayload[T]{
		Items:   items,
		Page:    page.Page,
		PerPage: page.PerPage,
		Total:   page.Total,
		Pages:   page.Pages(),
		HasNext: page.HasNext(),
	}
}
