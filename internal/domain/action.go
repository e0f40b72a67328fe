package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProcedure reports a persisted action whose procedure is not known.
var ErrUnknownProcedure = errors.New("order action: unknown procedure")

// Procedure names as persisted with an action registration.
const (
	ProcedureCreateTickets       = "create_tickets"
	ProcedureCreateTicketBundles = "create_ticket_bundles"
	ProcedureRevokeTickets       = "revoke_tickets"
	ProcedureRevokeTicketBundles = "revoke_ticket_bundles"
	ProcedureAwardBadge          = "award_badge"
)

// Action is the closed set of things that can happen to a line item on a
// payment state change.
type Action interface {
	// ProcedureName is the persisted discriminator.
	ProcedureName() string
	// Parameters is the persisted parameter map.
	Parameters() map[string]any

	isAction()
}

// CreateTickets creates one ticket per unit ordered.
type CreateTickets struct {
	CategoryID string
}

// CreateTicketBundles creates one bundle of TicketQuantity tickets per unit ordered.
type CreateTicketBundles struct {
	CategoryID     string
	TicketQuantity int
}

// RevokeTickets revokes the tickets created for the line item.
type RevokeTickets struct{}

// RevokeTicketBundles revokes the bundles created for the line item.
type RevokeTicketBundles struct{}

// AwardBadge grants a badge to the orderer once per order line.
type AwardBadge struct {
	BadgeID string
}

func (CreateTickets) ProcedureName() string       { return ProcedureCreateTickets }
func (CreateTicketBundles) ProcedureName() string { return ProcedureCreateTicketBundles }
func (RevokeTickets) ProcedureName() string       { return ProcedureRevokeTickets }
func (RevokeTicketBundles) ProcedureName() string { return ProcedureRevokeTicketBundles }
func (AwardBadge) ProcedureName() string          { return ProcedureAwardBadge }

func (a CreateTickets) Parameters() map[string]any {
	return map[string]any{"category_id": a.CategoryID}
}

func (a CreateTicketBundles) Parameters() map[string]any {
	return map[string]any{"category_id": a.CategoryID, "ticket_quantity": a.TicketQuantity}
}

func (RevokeTickets) Parameters() map[string]any       { return map[string]any{} }
func (RevokeTicketBundles) Parameters() map[string]any { return map[string]any{} }

func (a AwardBadge) Parameters() map[string]any {
	return map[string]any{"badge_id": a.BadgeID}
}

func (CreateTickets) isAction()       {}
func (CreateTicketBundles) isAction() {}
func (RevokeTickets) isAction()       {}
func (RevokeTicketBundles) isAction() {}
func (AwardBadge) isAction()          {}

// DecodeAction turns a persisted (procedure, parameters) pair into an Action.
func DecodeAction(procedure string, params map[string]any) (Action, error) {
	switch strings.TrimSpace(procedure) {
	case ProcedureCreateTickets:
		category, ok := stringParam(params, "category_id")
		if !ok {
			return nil, fmt.Errorf("order action %s: category_id missing", procedure)
		}
		return CreateTickets{CategoryID: category}, nil
	case ProcedureCreateTicketBundles:
		category, ok := stringParam(params, "category_id")
		if !ok {
			return nil, fmt.Errorf("order action %s: category_id missing", procedure)
		}
		quantity, ok := intParam(params, "ticket_quantity")
		if !ok || quantity < 1 {
			return nil, fmt.Errorf("order action %s: ticket_quantity must be positive", procedure)
		}
		return CreateTicketBundles{CategoryID: category, TicketQuantity: quantity}, nil
	case ProcedureRevokeTickets:
		return RevokeTickets{}, nil
	case ProcedureRevokeTicketBundles:
		return RevokeTicketBundles{}, nil
	case ProcedureAwardBadge:
		badge, ok := stringParam(params, "badge_id")
		if !ok {
			return nil, fmt.Errorf("order action %s: badge_id missing", procedure)
		}
		return AwardBadge{BadgeID: badge}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProcedure, procedure)
}

// OrderAction binds an action to an article number and the payment state
// that triggers it.
type OrderAction struct {
	ID            string
	ShopID        string
	ArticleNumber string
	PaymentState  PaymentState
	Action        Action
}

// StoredOrderAction is the persisted shape of an OrderAction before decoding.
type StoredOrderAction struct {
	ID            string
	ShopID        string
	ArticleNumber string
	PaymentState  string
	Procedure     string
	Parameters    map[string]any
}

// Decode validates the stored form.
func (s StoredOrderAction) Decode() (OrderAction, error) {
	state, err := ParsePaymentState(s.PaymentState)
	if err != nil {
		return OrderAction{}, err
	}
	action, err := DecodeAction(s.Procedure, s.Parameters)
	if err != nil {
		return OrderAction{}, err
	}
	return OrderAction{
		ID:            s.ID,
		ShopID:        s.ShopID,
		ArticleNumber: s.ArticleNumber,
		PaymentState:  state,
		Action:        action,
	}, nil
}

// Encode returns the persisted form.
func (a OrderAction) Encode() StoredOrderAction {
	return StoredOrderAction{
		ID:            a.ID,
		ShopID:        a.ShopID,
		ArticleNumber: a.ArticleNumber,
		PaymentState:  a.PaymentState.String(),
		Procedure:     a.Action.ProcedureName(),
		Parameters:    a.Action.Parameters(),
	}
}
