//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/config"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dsn := os.Getenv("SHOP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SHOP_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, config.PostgresConfig{DSN: dsn, Migrations: true, MaxConns: 8})
	require.NoError(t, err)
	_, err = db.pool.Exec(ctx, `TRUNCATE brands, shops, number_sequences, storefronts, articles,
		article_attachments, orders, order_line_items, order_log_entries, order_actions,
		ticket_bundles, tickets, badge_awardings, snippets CASCADE`)
	require.NoError(t, err)
	registry := NewRegistry(db)
	t.Cleanup(func() { _ = registry.Close(context.Background()) })
	return registry
}

func seedShop(t *testing.T, registry *Registry) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, registry.Shops().Insert(ctx, domain.Shop{ID: "lp-2024", BrandID: "lp", Title: "LAN Party 2024", Currency: "EUR"}))
	require.NoError(t, registry.Sequences().Insert(ctx, domain.NumberSequence{ID: "seq-order", ShopID: "lp-2024", Kind: domain.SequenceKindOrder, Prefix: "LP-2024-B"}))
}

func testOrder(id, number string, created time.Time) domain.Order {
	price := domain.MustMoney("10.00", "EUR")
	return domain.Order{
		ID:           id,
		ShopID:       "lp-2024",
		StorefrontID: "sf",
		OrderNumber:  number,
		CreatedAt:    created,
		Orderer:      domain.Orderer{UserID: "user-1", FirstName: "Ada", LastName: "Lovelace", Country: "DE", ZipCode: "12345", City: "Berlin", Street: "Main 1"},
		LineItems: []domain.LineItem{{
			ID: id + "-li", OrderNumber: number, ArticleID: "a1", ArticleNumber: "LP-A-00001",
			ArticleType: domain.ArticleTypeTicket, Description: "Ticket", UnitPrice: price,
			TaxRate: decimal.RequireFromString("0.19"), Quantity: 2, LineAmount: price.Mul(2),
		}},
		TotalAmount:  price.Mul(2),
		PaymentState: domain.PaymentStateOpen,
	}
}

func TestSequenceNextUnderConcurrency(t *testing.T) {
	registry := openTestRegistry(t)
	seedShop(t, registry)
	ctx := context.Background()

	var g errgroup.Group
	values := make(chan int, 20)
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			seq, err := registry.Sequences().Next(ctx, "seq-order")
			values <- seq.Value
			return err
		})
	}
	require.NoError(t, g.Wait())
	close(values)
	seen := map[int]bool{}
	for v := range values {
		seen[v] = true
	}
	assert.Len(t, seen, 20)

	err := registry.Sequences().Insert(ctx, domain.NumberSequence{ID: "dup", ShopID: "lp-2024", Kind: domain.SequenceKindOrder, Prefix: "LP-2024-B"})
	assert.True(t, repositories.IsSequenceError(err, repositories.SequenceErrorDuplicatePrefix))

	_, err = registry.Sequences().Next(ctx, "missing")
	assert.True(t, repositories.IsSequenceError(err, repositories.SequenceErrorNotFound))
}

func TestStockNeverGoesNegative(t *testing.T) {
	registry := openTestRegistry(t)
	seedShop(t, registry)
	ctx := context.Background()
	articles := registry.Articles()
	require.NoError(t, articles.Insert(ctx, domain.Article{
		ID: "a1", ShopID: "lp-2024", ItemNumber: "LP-A-00001", Type: domain.ArticleTypeTicket,
		TypeParams: map[string]any{"ticket_category_id": "cat-1"}, Description: "Ticket",
		Price: domain.MustMoney("10.00", "EUR"), TotalQuantity: 5, Quantity: 5, MaxQuantityPerOrder: 5,
	}))

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := articles.AdjustQuantity(ctx, "a1", -1)
			if repositories.IsInventoryUnderflow(err) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	article, err := articles.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, article.Quantity)
	assert.Equal(t, "cat-1", article.TypeParams["ticket_category_id"])
	assert.True(t, article.Price.Equal(domain.MustMoney("10.00", "EUR")))
}

func TestOrderRoundTripAndRollback(t *testing.T) {
	registry := openTestRegistry(t)
	seedShop(t, registry)
	ctx := context.Background()
	orders := registry.Orders()
	created := time.Date(2024, 8, 1, 18, 0, 0, 0, time.UTC)

	order := testOrder("o1", "LP-2024-B00001", created)
	require.NoError(t, orders.Insert(ctx, order))
	require.NoError(t, orders.AppendLogEntries(ctx,
		domain.OrderLogEntry{ID: "l1", OrderID: "o1", OccurredAt: created, EventType: domain.OrderLogOrderPlaced, Data: map[string]any{"initiator_id": "user-1"}},
		domain.OrderLogEntry{ID: "l2", OrderID: "o1", OccurredAt: created, EventType: domain.OrderLogNoteAdded, Data: map[string]any{"text": "hi"}},
	))

	var repoErr repositories.RepositoryError
	err := orders.Insert(ctx, testOrder("o2", "LP-2024-B00001", created))
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())

	boom := errors.New("boom")
	err = registry.RunInTx(ctx, func(txCtx context.Context) error {
		paid := order
		paid.PaymentState = domain.PaymentStatePaid
		if err := orders.Update(txCtx, paid); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	found, err := orders.FindByNumber(ctx, "LP-2024-B00001")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStateOpen, found.PaymentState)
	require.Len(t, found.LineItems, 1)
	assert.True(t, found.TotalAmount.Equal(found.SumLineAmounts()))

	entries, err := orders.ListLogEntries(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.OrderLogOrderPlaced, entries[0].EventType)
	assert.Equal(t, domain.OrderLogNoteAdded, entries[1].EventType)

	page, err := orders.ListByShop(ctx, repositories.OrderListFilter{ShopID: "lp-2024", SearchTerm: "b0000", Pagination: domain.Pagination{Page: 1, PerPage: 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	counts, err := orders.CountByPaymentState(ctx, "lp-2024")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.PaymentStateOpen])
	assert.Zero(t, counts[domain.PaymentStatePaid])

	require.NoError(t, orders.Delete(ctx, "o1"))
	entries, err = orders.ListLogEntries(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBadgeAwardingIsIdempotent(t *testing.T) {
	registry := openTestRegistry(t)
	ctx := context.Background()
	awarding := domain.BadgeAwarding{ID: "aw1", BadgeID: "b", UserID: "user-1", OrderNumber: "N1", LineItemID: "li", AwardedAt: time.Now().UTC()}

	_, created, err := registry.Badges().InsertAwarding(ctx, awarding)
	require.NoError(t, err)
	assert.True(t, created)

	awarding.ID = "aw2"
	existing, created, err := registry.Badges().InsertAwarding(ctx, awarding)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "aw1", existing.ID)
}
