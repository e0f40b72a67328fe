package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleAvailabilityIsHalfOpen(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	article := Article{AvailableFrom: &from, AvailableUntil: &until}

	assert.False(t, article.IsAvailableAt(from.Add(-time.Second)))
	assert.True(t, article.IsAvailableAt(from))
	assert.True(t, article.IsAvailableAt(until.Add(-time.Nanosecond)))
	assert.False(t, article.IsAvailableAt(until))
	assert.True(t, Article{}.IsAvailableAt(until))
}

func TestArticleTypeParams(t *testing.T) {
	ticket := Article{Type: ArticleTypeTicket, TypeParams: map[string]any{"ticket_category_id": "cat-1"}}
	params, err := ticket.TicketParams()
	require.NoError(t, err)
	assert.Equal(t, "cat-1", params.CategoryID)

	bundle := Article{Type: ArticleTypeTicketBundle, TypeParams: map[string]any{
		"ticket_category_id": "cat-2",
		"ticket_quantity":    float64(5),
	}}
	bundleParams, err := bundle.TicketBundleParams()
	require.NoError(t, err)
	assert.Equal(t, TicketBundleTypeParams{CategoryID: "cat-2", TicketQuantity: 5}, bundleParams)

	_, err = bundle.TicketParams()
	assert.ErrorIs(t, err, ErrInvalidTypeParams)

	broken := Article{Type: ArticleTypeTicketBundle, TypeParams: map[string]any{"ticket_category_id": "cat-2"}}
	assert.ErrorIs(t, broken.ValidateTypeParams(), ErrInvalidTypeParams)
	assert.NoError(t, Article{Type: ArticleTypePhysical}.ValidateTypeParams())
}

func TestArticleMatchesSearch(t *testing.T) {
	article := Article{ItemNumber: "LR-08-A00003", Description: "Einzelticket, Kategorie Loge"}

	assert.True(t, article.MatchesSearch(""))
	assert.True(t, article.MatchesSearch("a00003"))
	assert.True(t, article.MatchesSearch("loge  ticket"))
	assert.False(t, article.MatchesSearch("loge sitzsack"))
}

func TestBuildOrderableCompilation(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	tshirt := Article{ID: "a1", Description: "T-Shirt", Quantity: 10}
	ticket := Article{ID: "a2", Description: "Ticket", Quantity: 3}
	sticker := Article{ID: "a3", Description: "Aufkleber", Quantity: 100, NotDirectlyOrderable: true}
	expired := Article{ID: "a4", Description: "Alt", Quantity: 5, AvailableUntil: &past}
	soldOut := Article{ID: "a5", Description: "Cap", Quantity: 0}
	separate := Article{ID: "a6", Description: "Beamer", Quantity: 1, SeparateOrderRequired: true}

	compilation := BuildOrderableCompilation(
		[]Article{ticket, tshirt, sticker, expired, soldOut, separate},
		map[string][]AttachedArticle{"a2": {{Article: sticker, Quantity: 2}}},
		now,
	)

	require.Len(t, compilation.Items, 4)
	assert.Equal(t, "a5", compilation.Items[0].Article.ID)
	assert.Equal(t, "a1", compilation.Items[1].Article.ID)
	assert.Nil(t, compilation.Items[1].FixedQuantity)
	assert.Equal(t, "a2", compilation.Items[2].Article.ID)
	assert.Equal(t, "a3", compilation.Items[3].Article.ID)
	require.NotNil(t, compilation.Items[3].FixedQuantity)
	assert.Equal(t, 2, *compilation.Items[3].FixedQuantity)
	assert.False(t, separate.IsOrderableAt(now))

	single := BuildSingleArticleCompilation(ticket, []AttachedArticle{{Article: sticker, Quantity: 2}})
	require.Len(t, single.Items, 2)
	assert.Equal(t, 1, *single.Items[0].FixedQuantity)
}
