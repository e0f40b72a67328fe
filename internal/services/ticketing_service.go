package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

const ticketCodeLength = 5

// TicketingServiceDeps bundles collaborators required to construct the ticketing adapter.
type TicketingServiceDeps struct {
	Tickets       repositories.TicketRepository
	UnitOfWork    repositories.UnitOfWork
	Clock         func() time.Time
	IDGenerator   func() string
	CodeGenerator func() string
}

type ticketingService struct {
	tickets    repositories.TicketRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	newCode    func() string
}

var _ TicketingService = (*ticketingService)(nil)

// NewTicketingService returns the ticketing port backed by the ticket repository.
func NewTicketingService(deps TicketingServiceDeps) (TicketingService, error) {
	if deps.Tickets == nil {
		return nil, errors.New("ticketing service: ticket repository is required")
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	return &ticketingService{
		tickets:    deps.Tickets,
		unitOfWork: unit,
		clock:      defaultClock(deps.Clock),
		newID:      defaultIDGenerator(deps.IDGenerator, newULID),
		newCode:    defaultIDGenerator(deps.CodeGenerator, newTicketCode),
	}, nil
}

// newTicketCode takes the tail of a ULID, which is random Crockford base32.
func newTicketCode() string {
	id := ulid.Make().String()
	return id[len(id)-ticketCodeLength:]
}

func (s *ticketingService) CreateTickets(ctx context.Context, order Order, item LineItem, categoryID string, quantity int, initiatorID string) ([]Ticket, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" || quantity < 1 {
		return nil, fmt.Errorf("%w: ticket category and positive quantity are required", ErrOrderActionInvalidInput)
	}
	now := s.clock()
	owner := order.Orderer.UserID
	tickets := make([]Ticket, 0, quantity)
	for range quantity {
		tickets = append(tickets, s.newTicket(order, item, categoryID, owner, nil, now))
	}
	if err := s.tickets.InsertTickets(ctx, tickets...); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *ticketingService) newTicket(order Order, item LineItem, categoryID string, owner string, bundleID *string, now time.Time) Ticket {
	return Ticket{
		ID:          s.newID(),
		Code:        s.newCode(),
		CategoryID:  categoryID,
		OwnedByID:   owner,
		UsedByID:    valuePtr(owner),
		BundleID:    bundleID,
		OrderNumber: order.OrderNumber,
		LineItemID:  item.ID,
		CreatedAt:   now,
	}
}

func (s *ticketingService) RevokeTickets(ctx context.Context, order Order, item LineItem, initiatorID string) ([]Ticket, error) {
	tickets, err := s.tickets.ListTicketsByLineItem(ctx, order.OrderNumber, item.ID)
	if err != nil {
		return nil, err
	}
	revoked := make([]Ticket, 0, len(tickets))
	ids := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Revoked || ticket.BundleID != nil {
			continue
		}
		ticket.Revoked = true
		revoked = append(revoked, ticket)
		ids = append(ids, ticket.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.tickets.RevokeTickets(ctx, ids...); err != nil {
		return nil, err
	}
	return revoked, nil
}

func (s *ticketingService) CreateTicketBundles(ctx context.Context, order Order, item LineItem, categoryID string, ticketQuantity int, bundleCount int, initiatorID string) ([]TicketBundle, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" || ticketQuantity < 1 || bundleCount < 1 {
		return nil, fmt.Errorf("%w: ticket category, ticket quantity and bundle count are required", ErrOrderActionInvalidInput)
	}
	now := s.clock()
	owner := order.Orderer.UserID
	bundles := make([]TicketBundle, 0, bundleCount)

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		for range bundleCount {
			bundle := TicketBundle{
				ID:             s.newID(),
				CategoryID:     categoryID,
				TicketQuantity: ticketQuantity,
				OwnedByID:      owner,
				OrderNumber:    order.OrderNumber,
				LineItemID:     item.ID,
				CreatedAt:      now,
			}
			tickets := make([]Ticket, 0, ticketQuantity)
			for range ticketQuantity {
				ticket := s.newTicket(order, item, categoryID, owner, valuePtr(bundle.ID), now)
				tickets = append(tickets, ticket)
				bundle.TicketIDs = append(bundle.TicketIDs, ticket.ID)
			}
			if err := s.tickets.InsertBundle(txCtx, bundle); err != nil {
				return err
			}
			if err := s.tickets.InsertTickets(txCtx, tickets...); err != nil {
				return err
			}
			bundles = append(bundles, bundle)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bundles, nil
}

func (s *ticketingService) RevokeTicketBundles(ctx context.Context, order Order, item LineItem, initiatorID string) ([]TicketBundle, error) {
	bundles, err := s.tickets.ListBundlesByLineItem(ctx, order.OrderNumber, item.ID)
	if err != nil {
		return nil, err
	}
	var revoked []TicketBundle
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		for _, bundle := range bundles {
			if bundle.Revoked {
				continue
			}
			if err := s.tickets.RevokeBundle(txCtx, bundle.ID); err != nil {
				return err
			}
			bundle.Revoked = true
			revoked = append(revoked, bundle)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

// BadgeServiceDeps bundles collaborators required to construct the badge adapter.
type BadgeServiceDeps struct {
	Badges      repositories.BadgeRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type badgeService struct {
	badges repositories.BadgeRepository
	clock  func() time.Time
	newID  func() string
}

var _ BadgeService = (*badgeService)(nil)

// NewBadgeService returns the badge port backed by the badge repository.
func NewBadgeService(deps BadgeServiceDeps) (BadgeService, error) {
	if deps.Badges == nil {
		return nil, errors.New("badge service: badge repository is required")
	}
	return &badgeService{
		badges: deps.Badges,
		clock:  defaultClock(deps.Clock),
		newID:  defaultIDGenerator(deps.IDGenerator, newULID),
	}, nil
}

func (s *badgeService) Award(ctx context.Context, badgeID string, recipientID string, order Order, item LineItem, initiatorID string) (BadgeAwarding, bool, error) {
	badgeID = strings.TrimSpace(badgeID)
	if badgeID == "" || strings.TrimSpace(recipientID) == "" {
		return BadgeAwarding{}, false, fmt.Errorf("%w: badge and recipient are required", ErrOrderActionInvalidInput)
	}
	return s.badges.InsertAwarding(ctx, domain.BadgeAwarding{
		ID:          s.newID(),
		BadgeID:     badgeID,
		UserID:      recipientID,
		OrderNumber: order.OrderNumber,
		LineItemID:  item.ID,
		AwardedAt:   s.clock(),
	})
}
