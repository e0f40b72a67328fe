package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type orderRepository struct{ db *DB }

const orderColumns = `id, shop_id, storefront_id, order_number, created_at,
	orderer_id, company, first_name, last_name, country, zip_code, city, street,
	total_amount::text, currency, payment_method, payment_state,
	payment_state_updated_at, payment_state_updated_by, cancellation_reason,
	invoice_created_at, processed_at, processing_required`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o            domain.Order
		total, state string
	)
	err := row.Scan(&o.ID, &o.ShopID, &o.StorefrontID, &o.OrderNumber, &o.CreatedAt,
		&o.Orderer.UserID, &o.Orderer.Company, &o.Orderer.FirstName, &o.Orderer.LastName,
		&o.Orderer.Country, &o.Orderer.ZipCode, &o.Orderer.City, &o.Orderer.Street,
		&total, &o.TotalAmount.Currency, &o.PaymentMethod, &state,
		&o.PaymentStateUpdatedAt, &o.PaymentStateUpdatedBy, &o.CancellationReason,
		&o.InvoiceCreatedAt, &o.ProcessedAt, &o.ProcessingRequired)
	if err != nil {
		return domain.Order{}, err
	}
	if o.TotalAmount.Amount, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("order %s: total: %w", o.ID, err)
	}
	if o.PaymentState, err = domain.ParsePaymentState(state); err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", o.ID, err)
	}
	return o, nil
}

const lineItemColumns = `order_id, id, article_id, article_number, article_type, description,
	unit_price::text, tax_rate::text, quantity, line_amount::text,
	processing_required, processing_result`

func scanLineItem(row pgx.Row, currency func(orderID string) string) (string, domain.LineItem, error) {
	var (
		orderID, articleType    string
		unitPrice, tax, lineAmt string
		item                    domain.LineItem
	)
	err := row.Scan(&orderID, &item.ID, &item.ArticleID, &item.ArticleNumber, &articleType, &item.Description,
		&unitPrice, &tax, &item.Quantity, &lineAmt,
		&item.ProcessingRequired, &item.ProcessingResult)
	if err != nil {
		return "", domain.LineItem{}, err
	}
	item.ArticleType = domain.ArticleType(articleType)
	code := currency(orderID)
	if item.UnitPrice, err = domain.NewMoney(unitPrice, code); err != nil {
		return "", domain.LineItem{}, err
	}
	if item.LineAmount, err = domain.NewMoney(lineAmt, code); err != nil {
		return "", domain.LineItem{}, err
	}
	if item.TaxRate, err = decimal.NewFromString(tax); err != nil {
		return "", domain.LineItem{}, err
	}
	return orderID, item, nil
}

// attachLineItems loads the line items of orders in one query.
func (r *orderRepository) attachLineItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+lineItemColumns+` FROM order_line_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	currency := func(orderID string) string { return orders[index[orderID]].TotalAmount.Currency }
	for rows.Next() {
		orderID, item, err := scanLineItem(rows, currency)
		if err != nil {
			return err
		}
		i := index[orderID]
		item.OrderNumber = orders[i].OrderNumber
		orders[i].LineItems = append(orders[i].LineItems, item)
	}
	return rows.Err()
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		_, err := r.db.q(ctx).Exec(ctx, `
			INSERT INTO orders (id, shop_id, storefront_id, order_number, created_at,
				orderer_id, company, first_name, last_name, country, zip_code, city, street,
				total_amount, currency, payment_method, payment_state,
				payment_state_updated_at, payment_state_updated_by, cancellation_reason,
				invoice_created_at, processed_at, processing_required)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				$14::numeric, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
			order.ID, order.ShopID, order.StorefrontID, order.OrderNumber, order.CreatedAt,
			order.Orderer.UserID, order.Orderer.Company, order.Orderer.FirstName, order.Orderer.LastName,
			order.Orderer.Country, order.Orderer.ZipCode, order.Orderer.City, order.Orderer.Street,
			order.TotalAmount.Amount.String(), order.TotalAmount.Currency, order.PaymentMethod, order.PaymentState.String(),
			order.PaymentStateUpdatedAt, order.PaymentStateUpdatedBy, order.CancellationReason,
			order.InvoiceCreatedAt, order.ProcessedAt, order.ProcessingRequired)
		if isUniqueViolation(err, "orders_order_number_key") {
			return repositories.NewConflictError("orders.insert", "order number %q taken", order.OrderNumber)
		}
		if err != nil {
			return wrapError("orders.insert", err)
		}

		batch := &pgx.Batch{}
		for i, item := range order.LineItems {
			batch.Queue(`
				INSERT INTO order_line_items (id, order_id, position, article_id, article_number, article_type,
					description, unit_price, tax_rate, quantity, line_amount, processing_required, processing_result)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11::numeric, $12, $13)`,
				item.ID, order.ID, i, item.ArticleID, item.ArticleNumber, string(item.ArticleType),
				item.Description, item.UnitPrice.Amount.String(), item.TaxRate.String(), item.Quantity,
				item.LineAmount.Amount.String(), item.ProcessingRequired, item.ProcessingResult)
		}
		if batch.Len() == 0 {
			return nil
		}
		return wrapError("orders.insert_line_items", r.db.q(ctx).SendBatch(ctx, batch).Close())
	})
}

// Update writes the mutable order state. Line items only change their
// processing result.
func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		tag, err := r.db.q(ctx).Exec(ctx, `
			UPDATE orders SET
				payment_method = $2, payment_state = $3, payment_state_updated_at = $4,
				payment_state_updated_by = $5, cancellation_reason = $6,
				invoice_created_at = $7, processed_at = $8, processing_required = $9
			WHERE id = $1`,
			order.ID, order.PaymentMethod, order.PaymentState.String(), order.PaymentStateUpdatedAt,
			order.PaymentStateUpdatedBy, order.CancellationReason,
			order.InvoiceCreatedAt, order.ProcessedAt, order.ProcessingRequired)
		if err != nil {
			return wrapError("orders.update", err)
		}
		if err := notFound("orders.update", tag.RowsAffected(), "order %q", order.ID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, item := range order.LineItems {
			batch.Queue(`UPDATE order_line_items SET processing_result = $3 WHERE id = $1 AND order_id = $2`,
				item.ID, order.ID, item.ProcessingResult)
		}
		if batch.Len() == 0 {
			return nil
		}
		return wrapError("orders.update_line_items", r.db.q(ctx).SendBatch(ctx, batch).Close())
	})
}

func (r *orderRepository) Delete(ctx context.Context, orderID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return wrapError("orders.delete", err)
	}
	return notFound("orders.delete", tag.RowsAffected(), "order %q", orderID)
}

func (r *orderRepository) findOne(ctx context.Context, op, where string, arg string) (domain.Order, error) {
	order, err := scanOrder(r.db.q(ctx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if err != nil {
		return domain.Order{}, wrapError(op, err)
	}
	orders := []domain.Order{order}
	if err := r.attachLineItems(ctx, orders); err != nil {
		return domain.Order{}, wrapError(op, err)
	}
	return orders[0], nil
}

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.findOne(ctx, "orders.find", "id = $1", orderID)
}

func (r *orderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return r.findOne(ctx, "orders.find_by_number", "order_number = $1", orderNumber)
}

func (r *orderRepository) list(ctx context.Context, op string, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapError(op, err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) { return scanOrder(row) })
	if err != nil {
		return nil, wrapError(op, err)
	}
	if err := r.attachLineItems(ctx, orders); err != nil {
		return nil, wrapError(op, err)
	}
	return orders, nil
}

func (r *orderRepository) ListByOrderer(ctx context.Context, userID string, shopID string) ([]domain.Order, error) {
	return r.list(ctx, "orders.list_by_orderer", `
		SELECT `+orderColumns+` FROM orders
		WHERE orderer_id = $1 AND ($2 = '' OR shop_id = $2)
		ORDER BY created_at DESC, order_number DESC`, userID, shopID)
}

func (r *orderRepository) ListByShop(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	pager := filter.Pagination.Normalize()
	where := []string{"shop_id = $1"}
	args := []any{filter.ShopID}
	if filter.PaymentState != nil {
		args = append(args, filter.PaymentState.String())
		where = append(where, fmt.Sprintf("payment_state = $%d", len(args)))
	}
	switch filter.ProcessingState {
	case domain.ProcessingStateUnprocessed:
		where = append(where, "processing_required AND processed_at IS NULL")
	case domain.ProcessingStateProcessed:
		where = append(where, "processing_required AND processed_at IS NOT NULL")
	}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		where = append(where, fmt.Sprintf("order_number ILIKE $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.q(ctx).QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+clause, args...).Scan(&total); err != nil {
		return domain.Page[domain.Order]{}, wrapError("orders.list_by_shop", err)
	}
	args = append(args, pager.PerPage, pager.Offset())
	orders, err := r.list(ctx, "orders.list_by_shop", fmt.Sprintf(
		`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC, order_number DESC LIMIT $%d OFFSET $%d`,
		orderColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.Page[domain.Order]{Items: orders, Page: pager.Page, PerPage: pager.PerPage, Total: total}, nil
}

func (r *orderRepository) CountByPaymentState(ctx context.Context, shopID string) (map[domain.PaymentState]int, error) {
	counts := make(map[domain.PaymentState]int, 4)
	for _, state := range domain.PaymentStates() {
		counts[state] = 0
	}
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT payment_state, count(*) FROM orders WHERE shop_id = $1 GROUP BY payment_state`, shopID)
	if err != nil {
		return nil, wrapError("orders.count_by_payment_state", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, wrapError("orders.count_by_payment_state", err)
		}
		state, err := domain.ParsePaymentState(name)
		if err != nil {
			return nil, err
		}
		counts[state] = count
	}
	return counts, wrapError("orders.count_by_payment_state", rows.Err())
}

func (r *orderRepository) HasOrderer(ctx context.Context, userID string, shopID string) (bool, error) {
	var exists bool
	err := r.db.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE orderer_id = $1 AND ($2 = '' OR shop_id = $2))`,
		userID, shopID).Scan(&exists)
	return exists, wrapError("orders.has_orderer", err)
}

// AppendLogEntries inserts entries in argument order; the serial column
// keeps that order among equal timestamps.
func (r *orderRepository) AppendLogEntries(ctx context.Context, entries ...domain.OrderLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		for _, entry := range entries {
			_, err := r.db.q(ctx).Exec(ctx, `
				INSERT INTO order_log_entries (id, order_id, occurred_at, event_type, data)
				VALUES ($1, $2, $3, $4, $5)`,
				entry.ID, entry.OrderID, entry.OccurredAt, string(entry.EventType), entry.Data)
			if hasCode(err, pgForeignKey) {
				return repositories.NewNotFoundError("orders.log.append", "order %q", entry.OrderID)
			}
			if err != nil {
				return wrapError("orders.log.append", err)
			}
		}
		return nil
	})
}

func (r *orderRepository) ListLogEntries(ctx context.Context, orderID string) ([]domain.OrderLogEntry, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT id, occurred_at, seq, event_type, order_id, data
		FROM order_log_entries WHERE order_id = $1
		ORDER BY occurred_at, seq`, orderID)
	if err != nil {
		return nil, wrapError("orders.log.list", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderLogEntry, error) {
		var (
			entry     domain.OrderLogEntry
			eventType string
		)
		err := row.Scan(&entry.ID, &entry.OccurredAt, &entry.Sequence, &eventType, &entry.OrderID, &entry.Data)
		entry.EventType = domain.OrderLogEventType(eventType)
		return entry, err
	})
	return entries, wrapError("orders.log.list", err)
}
