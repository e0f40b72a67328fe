package firestore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/byceps/byceps-sub001/internal/domain"
)

func TestIndexKeyEscapesSeparators(t *testing.T) {
	assert.Equal(t, "lp-2024|order|LP%2F2024%7C", indexKey("lp-2024", "order", "LP/2024|"))
	assert.NotEqual(t, indexKey("a|b", "c"), indexKey("a", "b|c"))
}

func TestOrderDocumentKeepsExactAmounts(t *testing.T) {
	method := "bank_transfer"
	paidAt := time.Date(2024, 8, 2, 9, 0, 0, 0, time.UTC)
	unit := domain.MustMoney("0.10", "EUR")
	order := domain.Order{
		ID:          "o1",
		ShopID:      "lp-2024",
		OrderNumber: "LP-2024-B00001",
		Orderer:     domain.Orderer{UserID: "u1", FirstName: "Ada"},
		LineItems: []domain.LineItem{{
			ID: "li1", OrderNumber: "LP-2024-B00001", ArticleType: domain.ArticleTypeOther,
			UnitPrice: unit, TaxRate: decimal.RequireFromString("0.07"), Quantity: 3, LineAmount: unit.Mul(3),
			ProcessingResult: map[string]any{"ticket_ids": []any{"t1"}},
		}},
		TotalAmount:           unit.Mul(3),
		PaymentMethod:         &method,
		PaymentState:          domain.PaymentStatePaid,
		PaymentStateUpdatedAt: &paidAt,
	}

	doc := newOrderDocument(order)
	assert.Equal(t, "0.3", doc.TotalAmount)
	assert.Equal(t, "paid", doc.PaymentState)

	back, err := doc.toDomain()
	require.NoError(t, err)
	assert.True(t, back.TotalAmount.Equal(order.TotalAmount))
	assert.True(t, back.LineItems[0].TaxRate.Equal(order.LineItems[0].TaxRate))
	assert.Equal(t, order.OrderNumber, back.LineItems[0].OrderNumber)
	assert.Equal(t, domain.PaymentStatePaid, back.PaymentState)
	assert.Equal(t, order.Orderer, back.Orderer)
}

func TestOrderDocumentRejectsUnknownPaymentState(t *testing.T) {
	doc := orderDocument{OrderNumber: "N1", PaymentState: "refunded", TotalAmount: "0"}
	_, err := doc.toDomain()
	assert.Error(t, err)
}

func TestArticleDocumentRoundTrip(t *testing.T) {
	article := domain.Article{
		ID: "a1", ShopID: "lp-2024", ItemNumber: "LP-A-00001", Type: domain.ArticleTypeTicket,
		Price: domain.MustMoney("35.50", "EUR"), TaxRate: decimal.RequireFromString("0.19"),
		TotalQuantity: 10, Quantity: 4,
	}
	back, err := newArticleDocument(article).toDomain()
	require.NoError(t, err)
	assert.True(t, back.Price.Equal(article.Price))
	assert.Equal(t, 4, back.Quantity)
}
