package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	articles := registry.Articles()

	require.NoError(t, articles.Insert(ctx, domain.Article{ID: "a1", ShopID: "s", ItemNumber: "A-1", Quantity: 2, TotalQuantity: 2}))

	boom := errors.New("boom")
	err := registry.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := articles.AdjustQuantity(txCtx, "a1", -2); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	article, err := articles.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, article.Quantity)
}

func TestAdjustQuantityUnderflow(t *testing.T) {
	ctx := context.Background()
	articles := NewRegistry().Articles()
	require.NoError(t, articles.Insert(ctx, domain.Article{ID: "a1", ShopID: "s", ItemNumber: "A-1", Quantity: 1}))

	_, err := articles.AdjustQuantity(ctx, "a1", -2)
	require.Error(t, err)
	assert.True(t, repositories.IsInventoryUnderflow(err))

	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())

	_, err = articles.AdjustQuantity(ctx, "missing", 1)
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsNotFound())
}

func TestSequenceNextIsSerialized(t *testing.T) {
	ctx := context.Background()
	sequences := NewRegistry().Sequences()
	require.NoError(t, sequences.Insert(ctx, domain.NumberSequence{ID: "seq", ShopID: "s", Kind: domain.SequenceKindOrder, Prefix: "X-"}))

	var group errgroup.Group
	values := make(chan int, 10)
	for i := 0; i < 10; i++ {
		group.Go(func() error {
			seq, err := sequences.Next(ctx, "seq")
			values <- seq.Value
			return err
		})
	}
	require.NoError(t, group.Wait())
	close(values)

	seen := map[int]bool{}
	for v := range values {
		seen[v] = true
	}
	assert.Len(t, seen, 10)
	for i := 1; i <= 10; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func TestSequenceDuplicatePrefix(t *testing.T) {
	ctx := context.Background()
	sequences := NewRegistry().Sequences()
	require.NoError(t, sequences.Insert(ctx, domain.NumberSequence{ID: "a", ShopID: "s", Kind: domain.SequenceKindOrder, Prefix: "X-"}))

	err := sequences.Insert(ctx, domain.NumberSequence{ID: "b", ShopID: "s", Kind: domain.SequenceKindOrder, Prefix: "X-"})
	assert.True(t, repositories.IsSequenceError(err, repositories.SequenceErrorDuplicatePrefix))

	require.NoError(t, sequences.Insert(ctx, domain.NumberSequence{ID: "c", ShopID: "s", Kind: domain.SequenceKindArticle, Prefix: "X-"}))
}

func TestLogEntriesKeepInsertionOrderOnTies(t *testing.T) {
	ctx := context.Background()
	orders := NewRegistry().Orders()
	require.NoError(t, orders.Insert(ctx, domain.Order{ID: "o1", OrderNumber: "N-00001"}))

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, orders.AppendLogEntries(ctx,
		domain.OrderLogEntry{ID: "1", OrderID: "o1", OccurredAt: at, EventType: domain.OrderLogOrderPaid},
		domain.OrderLogEntry{ID: "2", OrderID: "o1", OccurredAt: at, EventType: domain.OrderLogTicketCreated},
		domain.OrderLogEntry{ID: "0", OrderID: "o1", OccurredAt: at.Add(-time.Second), EventType: domain.OrderLogOrderPlaced},
	))

	entries, err := orders.ListLogEntries(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"0", "1", "2"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})

	require.NoError(t, orders.Delete(ctx, "o1"))
	entries, err = orders.ListLogEntries(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOrderNumberUniqueness(t *testing.T) {
	ctx := context.Background()
	orders := NewRegistry().Orders()
	require.NoError(t, orders.Insert(ctx, domain.Order{ID: "o1", OrderNumber: "N-00001"}))

	err := orders.Insert(ctx, domain.Order{ID: "o2", OrderNumber: "N-00001"})
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())
}

func TestBadgeAwardingIsIdempotentPerLine(t *testing.T) {
	ctx := context.Background()
	badges := NewRegistry().Badges()

	first, created, err := badges.InsertAwarding(ctx, domain.BadgeAwarding{ID: "1", BadgeID: "b", UserID: "u", OrderNumber: "N", LineItemID: "li"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := badges.InsertAwarding(ctx, domain.BadgeAwarding{ID: "2", BadgeID: "b", UserID: "u", OrderNumber: "N", LineItemID: "li"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
}
