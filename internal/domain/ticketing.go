package domain

import "time"

// Ticket grants party entry. Tickets created for an order remember the order
// number and line item so they can be revoked on cancellation.
type Ticket struct {
	ID          string
	Code        string
	CategoryID  string
	OwnedByID   string
	UsedByID    *string
	BundleID    *string
	OrderNumber string
	LineItemID  string
	Revoked     bool
	CreatedAt   time.Time
}

// TicketBundle groups tickets bought as one unit.
type TicketBundle struct {
	ID             string
	CategoryID     string
	TicketQuantity int
	OwnedByID      string
	OrderNumber    string
	LineItemID     string
	Revoked        bool
	CreatedAt      time.Time
	TicketIDs      []string
}

// BadgeAwarding records a badge granted through an order line.
type BadgeAwarding struct {
	ID          string
	BadgeID     string
	UserID      string
	OrderNumber string
	LineItemID  string
	AwardedAt   time.Time
}
