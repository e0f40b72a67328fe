package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	cases := []struct {
		procedure string
		params    map[string]any
		want      Action
	}{
		{ProcedureCreateTickets, map[string]any{"category_id": "c1"}, CreateTickets{CategoryID: "c1"}},
		{ProcedureCreateTicketBundles, map[string]any{"category_id": "c1", "ticket_quantity": 4}, CreateTicketBundles{CategoryID: "c1", TicketQuantity: 4}},
		{ProcedureRevokeTickets, nil, RevokeTickets{}},
		{ProcedureRevokeTicketBundles, nil, RevokeTicketBundles{}},
		{ProcedureAwardBadge, map[string]any{"badge_id": "supporter"}, AwardBadge{BadgeID: "supporter"}},
	}
	for _, tc := range cases {
		got, err := DecodeAction(tc.procedure, tc.params)
		require.NoError(t, err, tc.procedure)
		assert.Equal(t, tc.want, got)

		again, err := DecodeAction(got.ProcedureName(), got.Parameters())
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestDecodeActionUnknownProcedure(t *testing.T) {
	_, err := DecodeAction("send_pizza", nil)
	assert.ErrorIs(t, err, ErrUnknownProcedure)

	_, err = StoredOrderAction{PaymentState: "paid", Procedure: "send_pizza"}.Decode()
	assert.ErrorIs(t, err, ErrUnknownProcedure)
}

func TestDecodeActionMissingParameters(t *testing.T) {
	_, err := DecodeAction(ProcedureAwardBadge, map[string]any{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownProcedure)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "AEC-01-B00005", FormatNumber("AEC-01-B", 5))
	assert.Equal(t, "X123456", FormatNumber("X", 123456))
}

func TestPaymentMethods(t *testing.T) {
	methods, err := NewPaymentMethods("paypal", " ")
	require.NoError(t, err)
	assert.True(t, methods.Contains(PaymentMethodCash))
	assert.True(t, methods.Contains("paypal"))
	assert.False(t, methods.Contains("bitcoin"))

	_, err = NewPaymentMethods("Pay Pal")
	assert.Error(t, err)

	assert.True(t, PaymentMethods{}.Contains(PaymentMethodFree))
}

func TestPaginate(t *testing.T) {
	page := Paginate([]int{1, 2, 3, 4, 5}, Pagination{Page: 2, PerPage: 2})
	assert.Equal(t, []int{3, 4}, page.Items)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages())
	assert.True(t, page.HasNext())

	beyond := Paginate([]int{1}, Pagination{Page: 3, PerPage: 2})
	assert.Empty(t, beyond.Items)
}
