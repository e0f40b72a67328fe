package domain

import "time"

// Event names used on the wire.
const (
	EventShopOrderPlaced   = "shop-order-placed"
	EventShopOrderPaid     = "shop-order-paid"
	EventShopOrderCanceled = "shop-order-canceled"
)

// ShopOrderEvent is implemented by the events emitted after an order
// transition commits.
type ShopOrderEvent interface {
	EventName() string
	Base() ShopOrderEventBase
}

// ShopOrderEventBase holds the fields every shop order event carries.
// Screen names are nil when the user is unknown or deleted.
type ShopOrderEventBase struct {
	OccurredAt          time.Time `json:"occurred_at"`
	InitiatorID         string    `json:"initiator_id,omitempty"`
	InitiatorScreenName *string   `json:"initiator_screen_name"`
	OrderID             string    `json:"order_id"`
	OrderNumber         string    `json:"order_number"`
	OrdererID           string    `json:"orderer_id"`
	OrdererScreenName   *string   `json:"orderer_screen_name"`
}

// ShopOrderPlaced is emitted once an order has been persisted.
type ShopOrderPlaced struct {
	ShopOrderEventBase
}

// ShopOrderPaid is emitted once an order has been marked as paid.
type ShopOrderPaid struct {
	ShopOrderEventBase
	PaymentMethod string `json:"payment_method"`
}

// ShopOrderCanceled is emitted once an order has been canceled.
type ShopOrderCanceled struct {
	ShopOrderEventBase
}

func (ShopOrderPlaced) EventName() string   { return EventShopOrderPlaced }
func (ShopOrderPaid) EventName() string     { return EventShopOrderPaid }
func (ShopOrderCanceled) EventName() string { return EventShopOrderCanceled }

func (e ShopOrderPlaced) Base() ShopOrderEventBase   { return e.ShopOrderEventBase }
func (e ShopOrderPaid) Base() ShopOrderEventBase     { return e.ShopOrderEventBase }
func (e ShopOrderCanceled) Base() ShopOrderEventBase { return e.ShopOrderEventBase }
