package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

const (
	orderMetricPlaced   = "placed"
	orderMetricPaid     = "paid"
	orderMetricCanceled = "canceled"
	orderMetricFailed   = "failed"
)

// OrderMetrics counts order lifecycle transitions per shop.
type OrderMetrics interface {
	OrderTransitioned(ctx context.Context, shopID string, transition string)
}

type noopOrderMetrics struct{}

func (noopOrderMetrics) OrderTransitioned(context.Context, string, string) {}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders         repositories.OrderRepository
	Shops          repositories.ShopRepository
	Storefronts    repositories.StorefrontRepository
	Catalog        CatalogService
	Sequences      SequenceService
	Actions        OrderActionService
	Users          UserDirectory
	Events         EventPublisher
	PaymentMethods domain.PaymentMethods
	Metrics        OrderMetrics
	Sanitize       func(string) string
	UnitOfWork     repositories.UnitOfWork
	Clock          func() time.Time
	IDGenerator    func() string
	LogIDGenerator func() string
	Logger         ServiceLogger
}

type orderService struct {
	orders         repositories.OrderRepository
	shops          repositories.ShopRepository
	storefronts    repositories.StorefrontRepository
	catalog        CatalogService
	sequences      SequenceService
	actions        OrderActionService
	users          UserDirectory
	events         EventPublisher
	paymentMethods domain.PaymentMethods
	metrics        OrderMetrics
	sanitize       func(string) string
	unitOfWork     repositories.UnitOfWork
	clock          func() time.Time
	newID          func() string
	newLogID       func() string
	logger         ServiceLogger
	errs           repositoryErrorMapping
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Shops == nil || deps.Storefronts == nil {
		return nil, errors.New("order service: shop and storefront repositories are required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog service is required")
	}
	if deps.Sequences == nil {
		return nil, errors.New("order service: sequence service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopOrderMetrics{}
	}
	sanitize := deps.Sanitize
	if sanitize == nil {
		sanitize = strings.TrimSpace
	}

	return &orderService{
		orders:         deps.Orders,
		shops:          deps.Shops,
		storefronts:    deps.Storefronts,
		catalog:        deps.Catalog,
		sequences:      deps.Sequences,
		actions:        deps.Actions,
		users:          deps.Users,
		events:         deps.Events,
		paymentMethods: deps.PaymentMethods,
		metrics:        metrics,
		sanitize:       sanitize,
		unitOfWork:     unit,
		clock:          defaultClock(deps.Clock),
		newID:          defaultIDGenerator(deps.IDGenerator, newUUID),
		newLogID:       defaultIDGenerator(deps.LogIDGenerator, newULID),
		logger:         defaultLogger(deps.Logger),
		errs:           repositoryErrorMapping{notFound: ErrUnknownOrder, conflict: ErrOrderFailed, scope: "order"},
	}, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, ShopOrderPlaced, error) {
	now := actorNow(cmd.Actor, s.clock)

	if cmd.Cart == nil || cmd.Cart.IsEmpty() {
		return Order{}, ShopOrderPlaced{}, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}
	orderer := cmd.Orderer
	orderer.UserID = strings.TrimSpace(orderer.UserID)
	if orderer.UserID == "" {
		return Order{}, ShopOrderPlaced{}, fmt.Errorf("%w: orderer user id is required", ErrOrderInvalidInput)
	}

	storefront, err := s.storefronts.FindByID(ctx, strings.TrimSpace(cmd.StorefrontID))
	if err != nil {
		return Order{}, ShopOrderPlaced{}, repositoryErrorMapping{notFound: ErrUnknownStorefront, scope: "order"}.mapError(err)
	}
	if storefront.Closed {
		return Order{}, ShopOrderPlaced{}, fmt.Errorf("%w: %s", ErrStorefrontClosed, storefront.ID)
	}
	shop, err := s.shops.FindByID(ctx, storefront.ShopID)
	if err != nil {
		return Order{}, ShopOrderPlaced{}, repositoryErrorMapping{notFound: ErrUnknownShop, scope: "order"}.mapError(err)
	}
	if cmd.Cart.Currency() != shop.Currency {
		return Order{}, ShopOrderPlaced{}, fmt.Errorf("%w: cart currency %s does not match shop currency %s", ErrOrderInvalidInput, cmd.Cart.Currency(), shop.Currency)
	}

	items := cmd.Cart.Items()
	for _, item := range items {
		article := item.Article
		if article.ShopID != shop.ID {
			return Order{}, ShopOrderPlaced{}, fmt.Errorf("%w: article %s does not belong to shop %s", ErrOrderInvalidInput, article.ItemNumber, shop.ID)
		}
		if article.MaxQuantityPerOrder > 0 && item.Quantity > article.MaxQuantityPerOrder {
			return Order{}, ShopOrderPlaced{}, fmt.Errorf("%w: at most %d of article %s per order", ErrOrderInvalidInput, article.MaxQuantityPerOrder, article.ItemNumber)
		}
	}

	orderNumber, err := s.sequences.GenerateOrderNumber(ctx, storefront.OrderNumberSequenceID)
	if err != nil {
		s.metrics.OrderTransitioned(ctx, shop.ID, orderMetricFailed)
		return Order{}, ShopOrderPlaced{}, fmt.Errorf("%w: %w", ErrOrderFailed, err)
	}

	order := s.buildOrder(shop, storefront, orderer, orderNumber, items, now)
	initiatorID := firstNonEmpty(cmd.Actor.ID, orderer.UserID)
	placedEntry := s.newLogEntry(order.ID, domain.OrderLogOrderPlaced, now, map[string]any{
		"initiator_id": initiatorID,
	})

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return err
		}
		if err := s.orders.AppendLogEntries(txCtx, placedEntry); err != nil {
			return err
		}
		for _, item := range items {
			if _, err := s.catalog.DecreaseQuantity(txCtx, item.Article.ID, item.Quantity, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.OrderTransitioned(ctx, shop.ID, orderMetricFailed)
		s.logger(ctx, "order.place.failed", map[string]any{
			"shopId":      shop.ID,
			"orderNumber": orderNumber,
			"error":       err.Error(),
		})
		return Order{}, ShopOrderPlaced{}, fmt.Errorf("%w: %w", ErrOrderFailed, err)
	}

	s.metrics.OrderTransitioned(ctx, shop.ID, orderMetricPlaced)
	s.logger(ctx, "order.placed", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"total":       order.TotalAmount.String(),
	})

	event := ShopOrderPlaced{ShopOrderEventBase: s.eventBase(ctx, order, initiatorID, now)}
	s.publishEvent(ctx, event)
	return order, event, nil
}

func (s *orderService) buildOrder(shop Shop, storefront Storefront, orderer Orderer, orderNumber string, items []domain.CartItem, now time.Time) Order {
	order := Order{
		ID:           s.newID(),
		ShopID:       shop.ID,
		StorefrontID: storefront.ID,
		OrderNumber:  orderNumber,
		CreatedAt:    now,
		Orderer:      orderer,
		LineItems:    make([]LineItem, 0, len(items)),
		TotalAmount:  domain.ZeroMoney(shop.Currency),
		PaymentState: domain.PaymentStateOpen,
	}
	for _, item := range items {
		article := item.Article
		line := LineItem{
			ID:                 s.newID(),
			OrderNumber:        orderNumber,
			ArticleID:          article.ID,
			ArticleNumber:      article.ItemNumber,
			ArticleType:        article.Type,
			Description:        article.Description,
			UnitPrice:          article.Price,
			TaxRate:            article.TaxRate,
			Quantity:           item.Quantity,
			LineAmount:         item.LineAmount(),
			ProcessingRequired: article.ProcessingRequired,
		}
		order.LineItems = append(order.LineItems, line)
		order.TotalAmount = order.TotalAmount.Add(line.LineAmount)
		if line.ProcessingRequired {
			order.ProcessingRequired = true
		}
	}
	return order
}

func (s *orderService) MarkOrderAsPaid(ctx context.Context, cmd MarkOrderAsPaidCommand) (ShopOrderPaid, error) {
	now := actorNow(cmd.Actor, s.clock)
	method := strings.TrimSpace(cmd.PaymentMethod)
	if !s.paymentMethods.Contains(method) {
		return ShopOrderPaid{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}

	var paid Order
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, strings.TrimSpace(cmd.OrderID))
		if err != nil {
			return s.errs.mapError(err)
		}
		former := order.PaymentState
		next, err := former.MarkPaid()
		if err != nil {
			return mapPaymentStateError(err)
		}

		order.PaymentState = next
		order.PaymentMethod = &method
		order.PaymentStateUpdatedAt = &now
		order.PaymentStateUpdatedBy = optionalString(cmd.Actor.ID)
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.errs.mapError(err)
		}

		data := cloneMap(cmd.AdditionalLogData)
		data = ensureMap(data)
		data["initiator_id"] = cmd.Actor.ID
		data["former_payment_state"] = former.String()
		data["payment_method"] = method
		if err := s.orders.AppendLogEntries(txCtx, s.newLogEntry(order.ID, domain.OrderLogOrderPaid, now, data)); err != nil {
			return err
		}
		paid = order
		return nil
	})
	if err != nil {
		return ShopOrderPaid{}, err
	}

	s.metrics.OrderTransitioned(ctx, paid.ShopID, orderMetricPaid)
	s.logger(ctx, "order.paid", map[string]any{
		"orderId":       paid.ID,
		"orderNumber":   paid.OrderNumber,
		"paymentMethod": method,
	})

	if s.actions != nil {
		if err := s.actions.ExecuteCreationActions(ctx, paid, cmd.Actor.ID); err != nil {
			s.logger(ctx, "order.actions.failed", map[string]any{
				"orderId": paid.ID,
				"error":   err.Error(),
			})
		}
	}

	event := ShopOrderPaid{
		ShopOrderEventBase: s.eventBase(ctx, paid, cmd.Actor.ID, now),
		PaymentMethod:      method,
	}
	s.publishEvent(ctx, event)
	return event, nil
}

func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (ShopOrderCanceled, error) {
	now := actorNow(cmd.Actor, s.clock)
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return ShopOrderCanceled{}, fmt.Errorf("%w: cancellation reason is required", ErrOrderInvalidInput)
	}

	var (
		canceled  Order
		wasPaid   bool
		eventType domain.OrderLogEventType
	)
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, strings.TrimSpace(cmd.OrderID))
		if err != nil {
			return s.errs.mapError(err)
		}
		former := order.PaymentState
		next, err := former.Cancel()
		if err != nil {
			return mapPaymentStateError(err)
		}
		wasPaid = former == domain.PaymentStatePaid
		eventType = domain.OrderLogOrderCanceledBeforePaid
		if wasPaid {
			eventType = domain.OrderLogOrderCanceledAfterPaid
		}

		order.PaymentState = next
		order.CancellationReason = &reason
		order.PaymentStateUpdatedAt = &now
		order.PaymentStateUpdatedBy = optionalString(cmd.Actor.ID)
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.errs.mapError(err)
		}

		entry := s.newLogEntry(order.ID, eventType, now, map[string]any{
			"initiator_id":         cmd.Actor.ID,
			"former_payment_state": former.String(),
			"reason":               reason,
		})
		if err := s.orders.AppendLogEntries(txCtx, entry); err != nil {
			return err
		}

		for _, item := range order.LineItems {
			if _, err := s.catalog.IncreaseQuantity(txCtx, item.ArticleID, item.Quantity, false); err != nil {
				if errors.Is(err, ErrUnknownArticle) {
					continue
				}
				return err
			}
		}
		canceled = order
		return nil
	})
	if err != nil {
		return ShopOrderCanceled{}, err
	}

	s.metrics.OrderTransitioned(ctx, canceled.ShopID, orderMetricCanceled)
	s.logger(ctx, "order.canceled", map[string]any{
		"orderId":     canceled.ID,
		"orderNumber": canceled.OrderNumber,
		"eventType":   string(eventType),
	})

	if wasPaid && s.actions != nil {
		if err := s.actions.ExecuteRevocationActions(ctx, canceled, cmd.Actor.ID); err != nil {
			s.logger(ctx, "order.actions.failed", map[string]any{
				"orderId": canceled.ID,
				"error":   err.Error(),
			})
		}
	}

	event := ShopOrderCanceled{ShopOrderEventBase: s.eventBase(ctx, canceled, cmd.Actor.ID, now)}
	s.publishEvent(ctx, event)
	return event, nil
}

func (s *orderService) AddNote(ctx context.Context, cmd AddOrderNoteCommand) (OrderLogEntry, error) {
	text := s.sanitize(cmd.Text)
	if text == "" {
		return OrderLogEntry{}, fmt.Errorf("%w: note text is required", ErrOrderInvalidInput)
	}
	now := actorNow(cmd.Actor, s.clock)

	var entry OrderLogEntry
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, strings.TrimSpace(cmd.OrderID))
		if err != nil {
			return s.errs.mapError(err)
		}
		entry = s.newLogEntry(order.ID, domain.OrderLogNoteAdded, now, map[string]any{
			"initiator_id": cmd.Actor.ID,
			"author_id":    cmd.Actor.ID,
			"text":         text,
		})
		return s.orders.AppendLogEntries(txCtx, entry)
	})
	if err != nil {
		return OrderLogEntry{}, err
	}
	return entry, nil
}

func (s *orderService) SetInvoicedFlag(ctx context.Context, cmd OrderFlagCommand) (Order, error) {
	return s.updateFlag(ctx, cmd, domain.OrderLogInvoiced, func(order *Order, now time.Time) (bool, error) {
		if order.InvoiceCreatedAt != nil {
			return false, nil
		}
		order.InvoiceCreatedAt = &now
		return true, nil
	})
}

func (s *orderService) UnsetInvoicedFlag(ctx context.Context, cmd OrderFlagCommand) (Order, error) {
	return s.updateFlag(ctx, cmd, domain.OrderLogInvoicedWithdrawn, func(order *Order, _ time.Time) (bool, error) {
		if order.InvoiceCreatedAt == nil {
			return false, nil
		}
		order.InvoiceCreatedAt = nil
		return true, nil
	})
}

func (s *orderService) SetShippedFlag(ctx context.Context, cmd OrderFlagCommand) (Order, error) {
	return s.updateFlag(ctx, cmd, domain.OrderLogShipped, func(order *Order, now time.Time) (bool, error) {
		if !order.ProcessingRequired {
			return false, fmt.Errorf("%w: order %s", ErrOrderProcessingNotRequired, order.OrderNumber)
		}
		if order.ProcessedAt != nil {
			return false, nil
		}
		order.ProcessedAt = &now
		return true, nil
	})
}

func (s *orderService) UnsetShippedFlag(ctx context.Context, cmd OrderFlagCommand) (Order, error) {
	return s.updateFlag(ctx, cmd, domain.OrderLogShippedWithdrawn, func(order *Order, _ time.Time) (bool, error) {
		if !order.ProcessingRequired {
			return false, fmt.Errorf("%w: order %s", ErrOrderProcessingNotRequired, order.OrderNumber)
		}
		if order.ProcessedAt == nil {
			return false, nil
		}
		order.ProcessedAt = nil
		return true, nil
	})
}

// updateFlag applies mutate and, if it changed the order, writes the log entry.
func (s *orderService) updateFlag(ctx context.Context, cmd OrderFlagCommand, eventType domain.OrderLogEventType, mutate func(*Order, time.Time) (bool, error)) (Order, error) {
	now := actorNow(cmd.Actor, s.clock)
	var updated Order
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, strings.TrimSpace(cmd.OrderID))
		if err != nil {
			return s.errs.mapError(err)
		}
		changed, err := mutate(&order, now)
		if err != nil {
			return err
		}
		updated = order
		if !changed {
			return nil
		}
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.errs.mapError(err)
		}
		return s.orders.AppendLogEntries(txCtx, s.newLogEntry(order.ID, eventType, now, map[string]any{
			"initiator_id": cmd.Actor.ID,
		}))
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	if err := s.orders.Delete(ctx, strings.TrimSpace(orderID)); err != nil {
		return s.errs.mapError(err)
	}
	s.logger(ctx, "order.deleted", map[string]any{"orderId": orderID})
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	order, err := s.orders.FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return Order{}, s.errs.mapError(err)
	}
	return order, nil
}

func (s *orderService) FindOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	order, err := s.orders.FindByNumber(ctx, strings.TrimSpace(orderNumber))
	if err != nil {
		return Order{}, s.errs.mapError(err)
	}
	return order, nil
}

func (s *orderService) ListOrdersByOrderer(ctx context.Context, userID string, shopID string) ([]Order, error) {
	orders, err := s.orders.ListByOrderer(ctx, strings.TrimSpace(userID), strings.TrimSpace(shopID))
	if err != nil {
		return nil, s.errs.mapError(err)
	}
	return orders, nil
}

func (s *orderService) ListOrdersForShop(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error) {
	filter.ShopID = strings.TrimSpace(filter.ShopID)
	filter.SearchTerm = strings.TrimSpace(filter.SearchTerm)
	filter.Pagination = filter.Pagination.Normalize()
	page, err := s.orders.ListByShop(ctx, filter)
	if err != nil {
		return domain.Page[Order]{}, s.errs.mapError(err)
	}
	return page, nil
}

func (s *orderService) CountOrdersByPaymentState(ctx context.Context, shopID string) (map[PaymentState]int, error) {
	counts, err := s.orders.CountByPaymentState(ctx, strings.TrimSpace(shopID))
	if err != nil {
		return nil, s.errs.mapError(err)
	}
	out := make(map[PaymentState]int, len(domain.PaymentStates()))
	for _, state := range domain.PaymentStates() {
		out[state] = 0
	}
	maps.Copy(out, counts)
	return out, nil
}

func (s *orderService) CountOpenOrders(ctx context.Context, shopID string) (int, error) {
	counts, err := s.CountOrdersByPaymentState(ctx, shopID)
	if err != nil {
		return 0, err
	}
	return counts[domain.PaymentStateOpen], nil
}

func (s *orderService) HasUserPlacedOrders(ctx context.Context, userID string, shopID string) (bool, error) {
	ok, err := s.orders.HasOrderer(ctx, strings.TrimSpace(userID), strings.TrimSpace(shopID))
	if err != nil {
		return false, s.errs.mapError(err)
	}
	return ok, nil
}

func (s *orderService) GetLogEntries(ctx context.Context, orderID string) ([]OrderLogEntry, error) {
	entries, err := s.orders.ListLogEntries(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, s.errs.mapError(err)
	}
	domain.SortLogEntries(entries)
	return entries, nil
}

func (s *orderService) newLogEntry(orderID string, eventType domain.OrderLogEventType, now time.Time, data map[string]any) OrderLogEntry {
	return OrderLogEntry{
		ID:         s.newLogID(),
		OccurredAt: now,
		EventType:  eventType,
		OrderID:    orderID,
		Data:       data,
	}
}

// eventBase resolves screen names; unknown or deleted users leave them nil.
func (s *orderService) eventBase(ctx context.Context, order Order, initiatorID string, now time.Time) domain.ShopOrderEventBase {
	return domain.ShopOrderEventBase{
		OccurredAt:          now,
		InitiatorID:         initiatorID,
		InitiatorScreenName: s.screenName(ctx, initiatorID),
		OrderID:             order.ID,
		OrderNumber:         order.OrderNumber,
		OrdererID:           order.Orderer.UserID,
		OrdererScreenName:   s.screenName(ctx, order.Orderer.UserID),
	}
}

func (s *orderService) screenName(ctx context.Context, userID string) *string {
	if s.users == nil || strings.TrimSpace(userID) == "" {
		return nil
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrUnknownUser) {
			s.logger(ctx, "order.user.lookup.failed", map[string]any{
				"userId": userID,
				"error":  err.Error(),
			})
		}
		return nil
	}
	return user.DisplayScreenName()
}

func (s *orderService) publishEvent(ctx context.Context, event ShopOrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		base := event.Base()
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"event":       event.EventName(),
			"orderId":     base.OrderID,
			"orderNumber": base.OrderNumber,
			"error":       err.Error(),
		})
	}
}

func mapPaymentStateError(err error) error {
	switch {
	case errors.Is(err, domain.ErrPaymentStateAlreadyPaid):
		return fmt.Errorf("%w: %v", ErrOrderAlreadyMarkedAsPaid, err)
	case errors.Is(err, domain.ErrPaymentStateAlreadyCanceled):
		return fmt.Errorf("%w: %v", ErrOrderAlreadyCanceled, err)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
