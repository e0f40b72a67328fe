package memory

import (
	"context"
	"maps"
	"sort"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type orderActionRepository struct{ store *Store }

func (r *orderActionRepository) Insert(ctx context.Context, action domain.StoredOrderAction) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.actions[action.ID]; ok {
			return repositories.NewConflictError("order_actions.insert", "action %q exists", action.ID)
		}
		action.Parameters = maps.Clone(action.Parameters)
		st.actions[action.ID] = action
		return nil
	})
}

func (r *orderActionRepository) Delete(ctx context.Context, actionID string) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.actions[actionID]; !ok {
			return repositories.NewNotFoundError("order_actions.delete", "action %q", actionID)
		}
		delete(st.actions, actionID)
		return nil
	})
}

func (r *orderActionRepository) FindByID(ctx context.Context, actionID string) (domain.StoredOrderAction, error) {
	var action domain.StoredOrderAction
	err := r.store.with(ctx, func(st *state) error {
		found, ok := st.actions[actionID]
		if !ok {
			return repositories.NewNotFoundError("order_actions.find", "action %q", actionID)
		}
		action = found
		action.Parameters = maps.Clone(found.Parameters)
		return nil
	})
	return action, err
}

func (r *orderActionRepository) ListByArticle(ctx context.Context, shopID string, articleNumber string) ([]domain.StoredOrderAction, error) {
	var actions []domain.StoredOrderAction
	err := r.store.with(ctx, func(st *state) error {
		for _, action := range st.actions {
			if action.ShopID == shopID && action.ArticleNumber == articleNumber {
				action.Parameters = maps.Clone(action.Parameters)
				actions = append(actions, action)
			}
		}
		return nil
	})
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })
	return actions, err
}

type ticketRepository struct{ store *Store }

func (r *ticketRepository) InsertTickets(ctx context.Context, tickets ...domain.Ticket) error {
	return r.store.with(ctx, func(st *state) error {
		for _, ticket := range tickets {
			if _, ok := st.tickets[ticket.ID]; ok {
				return repositories.NewConflictError("tickets.insert", "ticket %q exists", ticket.ID)
			}
		}
		for _, ticket := range tickets {
			st.tickets[ticket.ID] = ticket
		}
		return nil
	})
}

func (r *ticketRepository) InsertBundle(ctx context.Context, bundle domain.TicketBundle) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.bundles[bundle.ID]; ok {
			return repositories.NewConflictError("tickets.insert_bundle", "bundle %q exists", bundle.ID)
		}
		bundle.TicketIDs = append([]string(nil), bundle.TicketIDs...)
		st.bundles[bundle.ID] = bundle
		return nil
	})
}

func (r *ticketRepository) ListTicketsByLineItem(ctx context.Context, orderNumber string, lineItemID string) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := r.store.with(ctx, func(st *state) error {
		for _, ticket := range st.tickets {
			if ticket.OrderNumber == orderNumber && ticket.LineItemID == lineItemID {
				tickets = append(tickets, ticket)
			}
		}
		return nil
	})
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, err
}

func (r *ticketRepository) ListBundlesByLineItem(ctx context.Context, orderNumber string, lineItemID string) ([]domain.TicketBundle, error) {
	var bundles []domain.TicketBundle
	err := r.store.with(ctx, func(st *state) error {
		for _, bundle := range st.bundles {
			if bundle.OrderNumber == orderNumber && bundle.LineItemID == lineItemID {
				bundle.TicketIDs = append([]string(nil), bundle.TicketIDs...)
				bundles = append(bundles, bundle)
			}
		}
		return nil
	})
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].ID < bundles[j].ID })
	return bundles, err
}

func (r *ticketRepository) RevokeTickets(ctx context.Context, ticketIDs ...string) error {
	return r.store.with(ctx, func(st *state) error {
		for _, id := range ticketIDs {
			ticket, ok := st.tickets[id]
			if !ok {
				return repositories.NewNotFoundError("tickets.revoke", "ticket %q", id)
			}
			ticket.Revoked = true
			st.tickets[id] = ticket
		}
		return nil
	})
}

func (r *ticketRepository) RevokeBundle(ctx context.Context, bundleID string) error {
	return r.store.with(ctx, func(st *state) error {
		bundle, ok := st.bundles[bundleID]
		if !ok {
			return repositories.NewNotFoundError("tickets.revoke_bundle", "bundle %q", bundleID)
		}
		bundle.Revoked = true
		st.bundles[bundleID] = bundle
		for _, id := range bundle.TicketIDs {
			if ticket, ok := st.tickets[id]; ok {
				ticket.Revoked = true
				st.tickets[id] = ticket
			}
		}
		return nil
	})
}

type badgeRepository struct{ store *Store }

func (r *badgeRepository) InsertAwarding(ctx context.Context, awarding domain.BadgeAwarding) (domain.BadgeAwarding, bool, error) {
	result := awarding
	created := false
	err := r.store.with(ctx, func(st *state) error {
		for _, existing := range st.awardings {
			if existing.BadgeID == awarding.BadgeID && existing.OrderNumber == awarding.OrderNumber && existing.LineItemID == awarding.LineItemID {
				result = existing
				return nil
			}
		}
		st.awardings[awarding.ID] = awarding
		created = true
		return nil
	})
	return result, created, err
}

func (r *badgeRepository) ListAwardingsByUser(ctx context.Context, userID string) ([]domain.BadgeAwarding, error) {
	var awardings []domain.BadgeAwarding
	err := r.store.with(ctx, func(st *state) error {
		for _, awarding := range st.awardings {
			if awarding.UserID == userID {
				awardings = append(awardings, awarding)
			}
		}
		return nil
	})
	sort.Slice(awardings, func(i, j int) bool { return awardings[i].AwardedAt.Before(awardings[j].AwardedAt) })
	return awardings, err
}

type snippetRepository struct{ store *Store }

func (r *snippetRepository) Upsert(ctx context.Context, snippet domain.Snippet) error {
	return r.store.with(ctx, func(st *state) error {
		st.snippets[snippet.SnippetKey] = snippet
		return nil
	})
}

func (r *snippetRepository) Find(ctx context.Context, key domain.SnippetKey) (domain.Snippet, error) {
	var snippet domain.Snippet
	err := r.store.with(ctx, func(st *state) error {
		found, ok := st.snippets[key]
		if !ok {
			return repositories.NewNotFoundError("snippets.find", "snippet %s/%s/%s/%s", key.ScopeType, key.ScopeID, key.Name, key.Locale)
		}
		snippet = found
		return nil
	})
	return snippet, err
}
