package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

// OrderActionServiceDeps bundles collaborators required to construct the action dispatcher.
type OrderActionServiceDeps struct {
	Actions        repositories.OrderActionRepository
	Orders         repositories.OrderRepository
	Articles       repositories.ArticleRepository
	Ticketing      TicketingService
	Badges         BadgeService
	Clock          func() time.Time
	IDGenerator    func() string
	LogIDGenerator func() string
	Logger         ServiceLogger
}

type orderActionService struct {
	actions   repositories.OrderActionRepository
	orders    repositories.OrderRepository
	articles  repositories.ArticleRepository
	ticketing TicketingService
	badges    BadgeService
	clock     func() time.Time
	newID     func() string
	newLogID  func() string
	logger    ServiceLogger
	errs      repositoryErrorMapping
}

var _ OrderActionService = (*orderActionService)(nil)

// NewOrderActionService wires the dispatcher that runs side effects of
// payment state changes.
func NewOrderActionService(deps OrderActionServiceDeps) (OrderActionService, error) {
	if deps.Actions == nil || deps.Orders == nil || deps.Articles == nil {
		return nil, errors.New("order action service: action, order and article repositories are required")
	}
	if deps.Ticketing == nil {
		return nil, errors.New("order action service: ticketing service is required")
	}
	if deps.Badges == nil {
		return nil, errors.New("order action service: badge service is required")
	}
	return &orderActionService{
		actions:   deps.Actions,
		orders:    deps.Orders,
		articles:  deps.Articles,
		ticketing: deps.Ticketing,
		badges:    deps.Badges,
		clock:     defaultClock(deps.Clock),
		newID:     defaultIDGenerator(deps.IDGenerator, newULID),
		newLogID:  defaultIDGenerator(deps.LogIDGenerator, newULID),
		logger:    defaultLogger(deps.Logger),
		errs:      repositoryErrorMapping{notFound: ErrUnknownOrderAction, conflict: ErrOrderActionInvalidInput, scope: "order action"},
	}, nil
}

func (s *orderActionService) ExecuteCreationActions(ctx context.Context, order Order, initiatorID string) error {
	return s.execute(ctx, order, initiatorID, domain.PaymentStatePaid)
}

func (s *orderActionService) ExecuteRevocationActions(ctx context.Context, order Order, initiatorID string) error {
	return s.execute(ctx, order, initiatorID, domain.PaymentStateCanceledAfterPaid)
}

// execute runs every action for every line item: first the action implied by
// the article type, then the registrations for the trigger. A failure is
// recorded on the order log and the remaining actions still run; the joined
// failures are returned.
func (s *orderActionService) execute(ctx context.Context, order Order, initiatorID string, trigger PaymentState) error {
	var failures []error
	for _, item := range order.LineItems {
		action, err := s.builtinAction(ctx, item, trigger)
		switch {
		case err != nil:
			failures = append(failures, s.recordFailure(ctx, order, item, initiatorID, "", err))
		case action != nil:
			if err := s.run(ctx, order, item, initiatorID, action); err != nil {
				failures = append(failures, s.recordFailure(ctx, order, item, initiatorID, action.ProcedureName(), err))
			}
		}

		registrations, err := s.actions.ListByArticle(ctx, order.ShopID, item.ArticleNumber)
		if err != nil {
			failures = append(failures, s.recordFailure(ctx, order, item, initiatorID, "", err))
			continue
		}
		for _, stored := range registrations {
			if stored.PaymentState != trigger.String() {
				continue
			}
			registration, err := stored.Decode()
			if err != nil {
				failures = append(failures, s.recordFailure(ctx, order, item, initiatorID, stored.Procedure, err))
				continue
			}
			if err := s.run(ctx, order, item, initiatorID, registration.Action); err != nil {
				failures = append(failures, s.recordFailure(ctx, order, item, initiatorID, stored.Procedure, err))
			}
		}
	}
	return errors.Join(failures...)
}

// builtinAction derives the action implied by the article type. Creation
// reads the category from the article, so it fails once the article is
// deleted.
func (s *orderActionService) builtinAction(ctx context.Context, item LineItem, trigger PaymentState) (domain.Action, error) {
	if item.ArticleType != domain.ArticleTypeTicket && item.ArticleType != domain.ArticleTypeTicketBundle {
		return nil, nil
	}
	if trigger == domain.PaymentStateCanceledAfterPaid {
		if item.ArticleType == domain.ArticleTypeTicket {
			return domain.RevokeTickets{}, nil
		}
		return domain.RevokeTicketBundles{}, nil
	}

	article, err := s.articles.FindByID(ctx, item.ArticleID)
	if err != nil {
		return nil, err
	}
	if item.ArticleType == domain.ArticleTypeTicket {
		params, err := article.TicketParams()
		if err != nil {
			return nil, err
		}
		return domain.CreateTickets{CategoryID: params.CategoryID}, nil
	}
	params, err := article.TicketBundleParams()
	if err != nil {
		return nil, err
	}
	return domain.CreateTicketBundles{CategoryID: params.CategoryID, TicketQuantity: params.TicketQuantity}, nil
}

func (s *orderActionService) run(ctx context.Context, order Order, item LineItem, initiatorID string, action domain.Action) error {
	switch a := action.(type) {
	case domain.CreateTickets:
		return s.createTickets(ctx, order, item, initiatorID, a)
	case domain.CreateTicketBundles:
		return s.createTicketBundles(ctx, order, item, initiatorID, a)
	case domain.RevokeTickets:
		return s.revokeTickets(ctx, order, item, initiatorID)
	case domain.RevokeTicketBundles:
		return s.revokeTicketBundles(ctx, order, item, initiatorID)
	case domain.AwardBadge:
		return s.awardBadge(ctx, order, item, initiatorID, a)
	}
	return fmt.Errorf("%w: %T", domain.ErrUnknownProcedure, action)
}

func (s *orderActionService) createTickets(ctx context.Context, order Order, item LineItem, initiatorID string, action domain.CreateTickets) error {
	tickets, err := s.ticketing.CreateTickets(ctx, order, item, action.CategoryID, item.Quantity, initiatorID)
	if err != nil {
		return err
	}
	now := s.clock()
	entries := make([]OrderLogEntry, 0, len(tickets))
	for _, ticket := range tickets {
		entries = append(entries, s.newLogEntry(order.ID, domain.OrderLogTicketCreated, now, map[string]any{
			"initiator_id":       initiatorID,
			"ticket_id":          ticket.ID,
			"ticket_code":        ticket.Code,
			"ticket_category_id": ticket.CategoryID,
			"ticket_owner_id":    ticket.OwnedByID,
		}))
	}
	return s.orders.AppendLogEntries(ctx, entries...)
}

func (s *orderActionService) createTicketBundles(ctx context.Context, order Order, item LineItem, initiatorID string, action domain.CreateTicketBundles) error {
	bundles, err := s.ticketing.CreateTicketBundles(ctx, order, item, action.CategoryID, action.TicketQuantity, item.Quantity, initiatorID)
	if err != nil {
		return err
	}
	now := s.clock()
	entries := make([]OrderLogEntry, 0, len(bundles))
	for _, bundle := range bundles {
		entries = append(entries, s.newLogEntry(order.ID, domain.OrderLogTicketBundleCreated, now, map[string]any{
			"initiator_id":                  initiatorID,
			"ticket_bundle_id":              bundle.ID,
			"ticket_bundle_category_id":     bundle.CategoryID,
			"ticket_bundle_ticket_quantity": bundle.TicketQuantity,
			"ticket_bundle_owner_id":        bundle.OwnedByID,
		}))
	}
	return s.orders.AppendLogEntries(ctx, entries...)
}

func (s *orderActionService) revokeTickets(ctx context.Context, order Order, item LineItem, initiatorID string) error {
	tickets, err := s.ticketing.RevokeTickets(ctx, order, item, initiatorID)
	if err != nil || len(tickets) == 0 {
		return err
	}
	now := s.clock()
	entries := make([]OrderLogEntry, 0, len(tickets))
	for _, ticket := range tickets {
		entries = append(entries, s.newLogEntry(order.ID, domain.OrderLogTicketRevoked, now, map[string]any{
			"initiator_id": initiatorID,
			"ticket_id":    ticket.ID,
		}))
	}
	return s.orders.AppendLogEntries(ctx, entries...)
}

func (s *orderActionService) revokeTicketBundles(ctx context.Context, order Order, item LineItem, initiatorID string) error {
	bundles, err := s.ticketing.RevokeTicketBundles(ctx, order, item, initiatorID)
	if err != nil || len(bundles) == 0 {
		return err
	}
	now := s.clock()
	var entries []OrderLogEntry
	for _, bundle := range bundles {
		for _, ticketID := range bundle.TicketIDs {
			entries = append(entries, s.newLogEntry(order.ID, domain.OrderLogTicketRevoked, now, map[string]any{
				"initiator_id":     initiatorID,
				"ticket_id":        ticketID,
				"ticket_bundle_id": bundle.ID,
			}))
		}
		entries = append(entries, s.newLogEntry(order.ID, domain.OrderLogTicketBundleRevoked, now, map[string]any{
			"initiator_id":     initiatorID,
			"ticket_bundle_id": bundle.ID,
			"ticket_ids":       append([]string(nil), bundle.TicketIDs...),
		}))
	}
	return s.orders.AppendLogEntries(ctx, entries...)
}

func (s *orderActionService) awardBadge(ctx context.Context, order Order, item LineItem, initiatorID string, action domain.AwardBadge) error {
	awarding, created, err := s.badges.Award(ctx, action.BadgeID, order.Orderer.UserID, order, item, initiatorID)
	if err != nil || !created {
		return err
	}
	return s.orders.AppendLogEntries(ctx, s.newLogEntry(order.ID, domain.OrderLogBadgeAwarded, s.clock(), map[string]any{
		"initiator_id": initiatorID,
		"awarding_id":  awarding.ID,
		"badge_id":     awarding.BadgeID,
		"recipient_id": awarding.UserID,
	}))
}

// recordFailure logs the failure and appends an order-action-failed entry.
// It returns the original error annotated with the line item.
func (s *orderActionService) recordFailure(ctx context.Context, order Order, item LineItem, initiatorID string, procedure string, cause error) error {
	s.logger(ctx, "order.action.failed", map[string]any{
		"shopId":        order.ShopID,
		"orderId":       order.ID,
		"orderNumber":   order.OrderNumber,
		"lineItemId":    item.ID,
		"articleNumber": item.ArticleNumber,
		"procedure":     procedure,
		"error":         cause.Error(),
	})
	entry := s.newLogEntry(order.ID, domain.OrderLogActionFailed, s.clock(), map[string]any{
		"initiator_id":   initiatorID,
		"line_item_id":   item.ID,
		"article_number": item.ArticleNumber,
		"procedure":      procedure,
		"error":          cause.Error(),
	})
	if err := s.orders.AppendLogEntries(ctx, entry); err != nil {
		s.logger(ctx, "order.action.failure.record.failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
	return fmt.Errorf("line item %s (%s): %w", item.ID, procedure, cause)
}

func (s *orderActionService) newLogEntry(orderID string, eventType domain.OrderLogEventType, now time.Time, data map[string]any) OrderLogEntry {
	return OrderLogEntry{
		ID:         s.newLogID(),
		OccurredAt: now,
		EventType:  eventType,
		OrderID:    orderID,
		Data:       data,
	}
}

func (s *orderActionService) RegisterAction(ctx context.Context, cmd RegisterOrderActionCommand) (OrderAction, error) {
	shopID := strings.TrimSpace(cmd.ShopID)
	articleNumber := strings.TrimSpace(cmd.ArticleNumber)
	if shopID == "" || articleNumber == "" {
		return OrderAction{}, fmt.Errorf("%w: shop id and article number are required", ErrOrderActionInvalidInput)
	}
	if cmd.Trigger != domain.PaymentStatePaid && cmd.Trigger != domain.PaymentStateCanceledAfterPaid {
		return OrderAction{}, fmt.Errorf("%w: trigger must be paid or canceled_after_paid", ErrOrderActionInvalidInput)
	}
	if cmd.Action == nil {
		return OrderAction{}, fmt.Errorf("%w: action is required", ErrOrderActionInvalidInput)
	}
	// Round-trip through the stored form so invalid parameters are rejected now.
	if _, err := domain.DecodeAction(cmd.Action.ProcedureName(), cmd.Action.Parameters()); err != nil {
		return OrderAction{}, fmt.Errorf("%w: %v", ErrOrderActionInvalidInput, err)
	}

	action := OrderAction{
		ID:            s.newID(),
		ShopID:        shopID,
		ArticleNumber: articleNumber,
		PaymentState:  cmd.Trigger,
		Action:        cmd.Action,
	}
	if err := s.actions.Insert(ctx, action.Encode()); err != nil {
		return OrderAction{}, s.errs.mapError(err)
	}
	s.logger(ctx, "order.action.registered", map[string]any{
		"actionId":      action.ID,
		"articleNumber": articleNumber,
		"procedure":     cmd.Action.ProcedureName(),
		"trigger":       cmd.Trigger.String(),
	})
	return action, nil
}

func (s *orderActionService) DeleteAction(ctx context.Context, actionID string) error {
	if err := s.actions.Delete(ctx, strings.TrimSpace(actionID)); err != nil {
		return s.errs.mapError(err)
	}
	return nil
}

// ListActionsForArticle skips registrations that no longer decode and logs them.
func (s *orderActionService) ListActionsForArticle(ctx context.Context, shopID string, articleNumber string) ([]OrderAction, error) {
	stored, err := s.actions.ListByArticle(ctx, strings.TrimSpace(shopID), strings.TrimSpace(articleNumber))
	if err != nil {
		return nil, s.errs.mapError(err)
	}
	actions := make([]OrderAction, 0, len(stored))
	for _, entry := range stored {
		action, err := entry.Decode()
		if err != nil {
			s.logger(ctx, "order.action.decode.failed", map[string]any{
				"actionId":  entry.ID,
				"procedure": entry.Procedure,
				"error":     err.Error(),
			})
			continue
		}
		actions = append(actions, action)
	}
	return actions, nil
}
