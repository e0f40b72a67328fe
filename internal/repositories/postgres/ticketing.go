package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type orderActionRepository struct{ db *DB }

const actionColumns = `id, shop_id, article_number, payment_state, procedure, parameters`

func scanAction(row pgx.Row) (domain.StoredOrderAction, error) {
	var action domain.StoredOrderAction
	err := row.Scan(&action.ID, &action.ShopID, &action.ArticleNumber, &action.PaymentState, &action.Procedure, &action.Parameters)
	return action, err
}

func (r *orderActionRepository) Insert(ctx context.Context, action domain.StoredOrderAction) error {
	_, err := r.db.q(ctx).Exec(ctx,
		`INSERT INTO order_actions (`+actionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		action.ID, action.ShopID, action.ArticleNumber, action.PaymentState, action.Procedure, action.Parameters)
	return wrapError("order_actions.insert", err)
}

func (r *orderActionRepository) Delete(ctx context.Context, actionID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM order_actions WHERE id = $1`, actionID)
	if err != nil {
		return wrapError("order_actions.delete", err)
	}
	return notFound("order_actions.delete", tag.RowsAffected(), "action %q", actionID)
}

func (r *orderActionRepository) FindByID(ctx context.Context, actionID string) (domain.StoredOrderAction, error) {
	action, err := scanAction(r.db.q(ctx).QueryRow(ctx, `SELECT `+actionColumns+` FROM order_actions WHERE id = $1`, actionID))
	return action, wrapError("order_actions.find", err)
}

func (r *orderActionRepository) ListByArticle(ctx context.Context, shopID string, articleNumber string) ([]domain.StoredOrderAction, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+actionColumns+` FROM order_actions WHERE shop_id = $1 AND article_number = $2 ORDER BY id`,
		shopID, articleNumber)
	if err != nil {
		return nil, wrapError("order_actions.list", err)
	}
	actions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StoredOrderAction, error) { return scanAction(row) })
	return actions, wrapError("order_actions.list", err)
}

type ticketRepository struct{ db *DB }

const ticketColumns = `id, code, category_id, owned_by_id, used_by_id, bundle_id, order_number, line_item_id, revoked, created_at`

func (r *ticketRepository) InsertTickets(ctx context.Context, tickets ...domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, t := range tickets {
			batch.Queue(`INSERT INTO tickets (`+ticketColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				t.ID, t.Code, t.CategoryID, t.OwnedByID, t.UsedByID, t.BundleID, t.OrderNumber, t.LineItemID, t.Revoked, t.CreatedAt)
		}
		return wrapError("tickets.insert", r.db.q(ctx).SendBatch(ctx, batch).Close())
	})
}

func (r *ticketRepository) InsertBundle(ctx context.Context, bundle domain.TicketBundle) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO ticket_bundles (id, category_id, ticket_quantity, owned_by_id, order_number, line_item_id, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		bundle.ID, bundle.CategoryID, bundle.TicketQuantity, bundle.OwnedByID,
		bundle.OrderNumber, bundle.LineItemID, bundle.Revoked, bundle.CreatedAt)
	return wrapError("tickets.insert_bundle", err)
}

func (r *ticketRepository) ListTicketsByLineItem(ctx context.Context, orderNumber string, lineItemID string) ([]domain.Ticket, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE order_number = $1 AND line_item_id = $2 ORDER BY id`,
		orderNumber, lineItemID)
	if err != nil {
		return nil, wrapError("tickets.list", err)
	}
	tickets, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Ticket])
	return tickets, wrapError("tickets.list", err)
}

// ListBundlesByLineItem derives each bundle's ticket ids from the tickets
// table.
func (r *ticketRepository) ListBundlesByLineItem(ctx context.Context, orderNumber string, lineItemID string) ([]domain.TicketBundle, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT b.id, b.category_id, b.ticket_quantity, b.owned_by_id, b.order_number, b.line_item_id,
			b.revoked, b.created_at,
			COALESCE(array_agg(t.id ORDER BY t.id) FILTER (WHERE t.id IS NOT NULL), '{}')
		FROM ticket_bundles b
		LEFT JOIN tickets t ON t.bundle_id = b.id
		WHERE b.order_number = $1 AND b.line_item_id = $2
		GROUP BY b.id
		ORDER BY b.id`, orderNumber, lineItemID)
	if err != nil {
		return nil, wrapError("tickets.list_bundles", err)
	}
	bundles, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.TicketBundle])
	return bundles, wrapError("tickets.list_bundles", err)
}

func (r *ticketRepository) RevokeTickets(ctx context.Context, ticketIDs ...string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	tag, err := r.db.q(ctx).Exec(ctx, `UPDATE tickets SET revoked = TRUE WHERE id = ANY($1)`, ticketIDs)
	if err != nil {
		return wrapError("tickets.revoke", err)
	}
	if int(tag.RowsAffected()) != len(ticketIDs) {
		return repositories.NewNotFoundError("tickets.revoke", "%d of %d tickets unknown", len(ticketIDs)-int(tag.RowsAffected()), len(ticketIDs))
	}
	return nil
}

func (r *ticketRepository) RevokeBundle(ctx context.Context, bundleID string) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		tag, err := r.db.q(ctx).Exec(ctx, `UPDATE ticket_bundles SET revoked = TRUE WHERE id = $1`, bundleID)
		if err != nil {
			return wrapError("tickets.revoke_bundle", err)
		}
		if err := notFound("tickets.revoke_bundle", tag.RowsAffected(), "bundle %q", bundleID); err != nil {
			return err
		}
		_, err = r.db.q(ctx).Exec(ctx, `UPDATE tickets SET revoked = TRUE WHERE bundle_id = $1`, bundleID)
		return wrapError("tickets.revoke_bundle", err)
	})
}

type badgeRepository struct{ db *DB }

const awardingColumns = `id, badge_id, user_id, order_number, line_item_id, awarded_at`

// InsertAwarding relies on the (badge, order, line) unique key; a losing
// insert reads back the existing row.
func (r *badgeRepository) InsertAwarding(ctx context.Context, awarding domain.BadgeAwarding) (domain.BadgeAwarding, bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO badge_awardings (`+awardingColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT badge_awardings_line_key DO NOTHING`,
		awarding.ID, awarding.BadgeID, awarding.UserID, awarding.OrderNumber, awarding.LineItemID, awarding.AwardedAt)
	if err != nil {
		return domain.BadgeAwarding{}, false, wrapError("badges.award", err)
	}
	if tag.RowsAffected() == 1 {
		return awarding, true, nil
	}

	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+awardingColumns+` FROM badge_awardings
		WHERE badge_id = $1 AND order_number = $2 AND line_item_id = $3`,
		awarding.BadgeID, awarding.OrderNumber, awarding.LineItemID)
	if err != nil {
		return domain.BadgeAwarding{}, false, wrapError("badges.award", err)
	}
	existing, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[domain.BadgeAwarding])
	if err != nil {
		return domain.BadgeAwarding{}, false, wrapError("badges.award", err)
	}
	return existing, false, nil
}

func (r *badgeRepository) ListAwardingsByUser(ctx context.Context, userID string) ([]domain.BadgeAwarding, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+awardingColumns+` FROM badge_awardings WHERE user_id = $1 ORDER BY awarded_at`, userID)
	if err != nil {
		return nil, wrapError("badges.list", err)
	}
	awardings, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.BadgeAwarding])
	return awardings, wrapError("badges.list", err)
}

type snippetRepository struct{ db *DB }

func (r *snippetRepository) Upsert(ctx context.Context, snippet domain.Snippet) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO snippets (scope_type, scope_id, name, locale, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope_type, scope_id, name, locale) DO UPDATE SET body = EXCLUDED.body`,
		string(snippet.ScopeType), snippet.ScopeID, snippet.Name, snippet.Locale, snippet.Body)
	return wrapError("snippets.upsert", err)
}

func (r *snippetRepository) Find(ctx context.Context, key domain.SnippetKey) (domain.Snippet, error) {
	snippet := domain.Snippet{SnippetKey: key}
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT body FROM snippets
		WHERE scope_type = $1 AND scope_id = $2 AND name = $3 AND locale = $4`,
		string(key.ScopeType), key.ScopeID, key.Name, key.Locale).Scan(&snippet.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Snippet{}, repositories.NewNotFoundError("snippets.find", "snippet %s/%s/%s/%s", key.ScopeType, key.ScopeID, key.Name, key.Locale)
	}
	return snippet, wrapError("snippets.find", err)
}
