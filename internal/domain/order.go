package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Orderer is the snapshot of who placed an order and where they live.
type Orderer struct {
	UserID    string
	Company   string
	FirstName string
	LastName  string
	Country   string
	ZipCode   string
	City      string
	Street    string
}

// FullName joins first and last name.
func (o Orderer) FullName() string {
	switch {
	case o.FirstName == "":
		return o.LastName
	case o.LastName == "":
		return o.FirstName
	}
	return o.FirstName + " " + o.LastName
}

// LineItem is the immutable article snapshot taken when the order was placed.
type LineItem struct {
	ID                 string
	OrderNumber        string
	ArticleID          string
	ArticleNumber      string
	ArticleType        ArticleType
	Description        string
	UnitPrice          Money
	TaxRate            decimal.Decimal
	Quantity           int
	LineAmount         Money
	ProcessingRequired bool
	ProcessingResult   map[string]any
}

// Order is a placed purchase. Line items never change after placement.
type Order struct {
	ID                    string
	ShopID                string
	StorefrontID          string
	OrderNumber           string
	CreatedAt             time.Time
	Orderer               Orderer
	LineItems             []LineItem
	TotalAmount           Money
	PaymentMethod         *string
	PaymentState          PaymentState
	PaymentStateUpdatedAt *time.Time
	PaymentStateUpdatedBy *string
	CancellationReason    *string
	InvoiceCreatedAt      *time.Time
	ProcessedAt           *time.Time
	ProcessingRequired    bool
}

// IsOpen reports whether the order awaits payment.
func (o Order) IsOpen() bool { return o.PaymentState == PaymentStateOpen }

// IsPaid reports whether the order has been paid.
func (o Order) IsPaid() bool { return o.PaymentState == PaymentStatePaid }

// IsCanceled reports whether the order was canceled.
func (o Order) IsCanceled() bool { return o.PaymentState.IsCanceled() }

// IsInvoiced reports whether an invoice was created.
func (o Order) IsInvoiced() bool { return o.InvoiceCreatedAt != nil }

// IsProcessed reports whether the order was shipped/processed.
func (o Order) IsProcessed() bool { return o.ProcessedAt != nil }

// SumLineAmounts adds the line amounts; equals TotalAmount for valid orders.
func (o Order) SumLineAmounts() Money {
	total := ZeroMoney(o.TotalAmount.Currency)
	for _, item := range o.LineItems {
		total = total.Add(item.LineAmount)
	}
	return total
}

// LineItemsByDescription returns the line items sorted by description.
func (o Order) LineItemsByDescription() []LineItem {
	items := make([]LineItem, len(o.LineItems))
	copy(items, o.LineItems)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Description < items[j].Description
	})
	return items
}

// ProcessingState filters orders by their processed flag.
type ProcessingState string

const (
	ProcessingStateAny         ProcessingState = ""
	ProcessingStateUnprocessed ProcessingState = "unprocessed"
	ProcessingStateProcessed   ProcessingState = "processed"
)

// Matches applies the filter to an order. Orders that need no processing
// only match the unfiltered state.
func (p ProcessingState) Matches(order Order) bool {
	switch p {
	case ProcessingStateUnprocessed:
		return order.ProcessingRequired && order.ProcessedAt == nil
	case ProcessingStateProcessed:
		return order.ProcessingRequired && order.ProcessedAt != nil
	}
	return true
}

// OrderLogEventType names an order log entry kind.
type OrderLogEventType string

const (
	OrderLogOrderPlaced             OrderLogEventType = "order-placed"
	OrderLogOrderPaid               OrderLogEventType = "order-paid"
	OrderLogOrderCanceledBeforePaid OrderLogEventType = "order-canceled-before-paid"
	OrderLogOrderCanceledAfterPaid  OrderLogEventType = "order-canceled-after-paid"
	OrderLogNoteAdded               OrderLogEventType = "order-note-added"
	OrderLogInvoiced                OrderLogEventType = "order-invoiced"
	OrderLogInvoicedWithdrawn       OrderLogEventType = "order-invoiced-withdrawn"
	OrderLogShipped                 OrderLogEventType = "order-shipped"
	OrderLogShippedWithdrawn        OrderLogEventType = "order-shipped-withdrawn"
	OrderLogTicketCreated           OrderLogEventType = "ticket-created"
	OrderLogTicketBundleCreated     OrderLogEventType = "ticket-bundle-created"
	OrderLogTicketRevoked           OrderLogEventType = "ticket-revoked"
	OrderLogTicketBundleRevoked     OrderLogEventType = "ticket-bundle-revoked"
	OrderLogBadgeAwarded            OrderLogEventType = "badge-awarded"
	OrderLogActionFailed            OrderLogEventType = "order-action-failed"
)

// OrderLogEntry is an append-only record of something that happened to an order.
// Sequence breaks ties between entries sharing OccurredAt.
type OrderLogEntry struct {
	ID         string
	OccurredAt time.Time
	Sequence   int64
	EventType  OrderLogEventType
	OrderID    string
	Data       map[string]any
}

// SortLogEntries orders entries by time, then insertion sequence.
func SortLogEntries(entries []OrderLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].OccurredAt.Before(entries[j].OccurredAt)
		}
		return entries[i].Sequence < entries[j].Sequence
	})
}
