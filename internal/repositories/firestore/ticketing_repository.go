package firestore

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type orderActionRepository struct{ r *Registry }

func (a *orderActionRepository) Insert(ctx context.Context, action domain.StoredOrderAction) error {
	return a.r.actions.Create(ctx, action.ID, orderActionDocument(action))
}

func (a *orderActionRepository) Delete(ctx context.Context, actionID string) error {
	return a.r.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := a.r.actions.Exists(ctx, actionID)
		if err != nil {
			return err
		}
		if !exists {
			return repositories.NewNotFoundError("order_actions.delete", "action %q", actionID)
		}
		return a.r.actions.Delete(ctx, actionID)
	})
}

func (a *orderActionRepository) FindByID(ctx context.Context, actionID string) (domain.StoredOrderAction, error) {
	doc, err := a.r.actions.Get(ctx, actionID)
	if err != nil {
		return domain.StoredOrderAction{}, notFoundAs(err, "order_actions.find", "action %q", actionID)
	}
	return domain.StoredOrderAction(doc), nil
}

func (a *orderActionRepository) ListByArticle(ctx context.Context, shopID string, articleNumber string) ([]domain.StoredOrderAction, error) {
	docs, err := a.r.actions.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(fieldShopID, "==", shopID).Where("articleNumber", "==", articleNumber)
	})
	if err != nil {
		return nil, err
	}
	actions := decodeAll(docs, func(d orderActionDocument) domain.StoredOrderAction { return domain.StoredOrderAction(d) })
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })
	return actions, nil
}

type ticketRepository struct{ r *Registry }

func lineItemQuery(orderNumber string, lineItemID string) func(firestore.Query) firestore.Query {
	return func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", orderNumber).Where("lineItemId", "==", lineItemID)
	}
}

func (t *ticketRepository) InsertTickets(ctx context.Context, tickets ...domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return t.r.RunInTx(ctx, func(ctx context.Context) error {
		for _, ticket := range tickets {
			if err := t.r.tickets.Create(ctx, ticket.ID, ticketDocument(ticket)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *ticketRepository) InsertBundle(ctx context.Context, bundle domain.TicketBundle) error {
	bundle.TicketIDs = append([]string(nil), bundle.TicketIDs...)
	return t.r.bundles.Create(ctx, bundle.ID, bundleDocument(bundle))
}

func (t *ticketRepository) ListTicketsByLineItem(ctx context.Context, orderNumber string, lineItemID string) ([]domain.Ticket, error) {
	docs, err := t.r.tickets.Query(ctx, lineItemQuery(orderNumber, lineItemID))
	if err != nil {
		return nil, err
	}
	tickets := decodeAll(docs, func(d ticketDocument) domain.Ticket { return domain.Ticket(d) })
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

func (t *ticketRepository) ListBundlesByLineItem(ctx context.Context, orderNumber string, lineItemID string) ([]domain.TicketBundle, error) {
	docs, err := t.r.bundles.Query(ctx, lineItemQuery(orderNumber, lineItemID))
	if err != nil {
		return nil, err
	}
	bundles := decodeAll(docs, func(d bundleDocument) domain.TicketBundle { return domain.TicketBundle(d) })
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].ID < bundles[j].ID })
	return bundles, nil
}

func (t *ticketRepository) RevokeTickets(ctx context.Context, ticketIDs ...string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	return t.r.RunInTx(ctx, func(ctx context.Context) error {
		docs := make([]ticketDocument, 0, len(ticketIDs))
		for _, id := range ticketIDs {
			doc, err := t.r.tickets.Get(ctx, id)
			if err != nil {
				return notFoundAs(err, "tickets.revoke", "ticket %q", id)
			}
			docs = append(docs, doc)
		}
		for _, doc := range docs {
			doc.Revoked = true
			if err := t.r.tickets.Set(ctx, doc.ID, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// RevokeBundle revokes the bundle and every ticket it lists.
func (t *ticketRepository) RevokeBundle(ctx context.Context, bundleID string) error {
	return t.r.RunInTx(ctx, func(ctx context.Context) error {
		bundle, err := t.r.bundles.Get(ctx, bundleID)
		if err != nil {
			return notFoundAs(err, "tickets.revoke_bundle", "bundle %q", bundleID)
		}
		tickets := make([]ticketDocument, 0, len(bundle.TicketIDs))
		for _, id := range bundle.TicketIDs {
			doc, err := t.r.tickets.Get(ctx, id)
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			tickets = append(tickets, doc)
		}
		bundle.Revoked = true
		if err := t.r.bundles.Set(ctx, bundleID, bundle); err != nil {
			return err
		}
		for _, doc := range tickets {
			doc.Revoked = true
			if err := t.r.tickets.Set(ctx, doc.ID, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// Awardings are keyed on (badge, order, line) so a repeated award finds
// the first one.
type badgeRepository struct{ r *Registry }

func (b *badgeRepository) InsertAwarding(ctx context.Context, awarding domain.BadgeAwarding) (domain.BadgeAwarding, bool, error) {
	key := indexKey(awarding.BadgeID, awarding.OrderNumber, awarding.LineItemID)
	result := awarding
	created := false
	err := b.r.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := b.r.awardings.Get(ctx, key)
		switch {
		case err == nil:
			result = domain.BadgeAwarding(existing)
			created = false
			return nil
		case !isNotFound(err):
			return err
		}
		result = awarding
		created = true
		return b.r.awardings.Create(ctx, key, awardingDocument(awarding))
	})
	if err != nil {
		return domain.BadgeAwarding{}, false, err
	}
	return result, created, nil
}

func (b *badgeRepository) ListAwardingsByUser(ctx context.Context, userID string) ([]domain.BadgeAwarding, error) {
	docs, err := b.r.awardings.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID)
	})
	if err != nil {
		return nil, err
	}
	awardings := decodeAll(docs, func(d awardingDocument) domain.BadgeAwarding { return domain.BadgeAwarding(d) })
	sort.Slice(awardings, func(i, j int) bool { return awardings[i].AwardedAt.Before(awardings[j].AwardedAt) })
	return awardings, nil
}

type snippetRepository struct{ r *Registry }

func snippetKey(key domain.SnippetKey) string {
	return indexKey(string(key.ScopeType), key.ScopeID, key.Name, key.Locale)
}

func (s *snippetRepository) Upsert(ctx context.Context, snippet domain.Snippet) error {
	return s.r.snippets.Set(ctx, snippetKey(snippet.SnippetKey), snippetDocument{
		ScopeType: string(snippet.ScopeType),
		ScopeID:   snippet.ScopeID,
		Name:      snippet.Name,
		Locale:    snippet.Locale,
		Body:      snippet.Body,
	})
}

func (s *snippetRepository) Find(ctx context.Context, key domain.SnippetKey) (domain.Snippet, error) {
	doc, err := s.r.snippets.Get(ctx, snippetKey(key))
	if err != nil {
		return domain.Snippet{}, notFoundAs(err, "snippets.find", "snippet %s/%s/%s/%s", key.ScopeType, key.ScopeID, key.Name, key.Locale)
	}
	return domain.Snippet{SnippetKey: key, Body: doc.Body}, nil
}
