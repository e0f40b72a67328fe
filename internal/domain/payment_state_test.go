package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStateMarkPaid(t *testing.T) {
	next, err := PaymentStateOpen.MarkPaid()
	require.NoError(t, err)
	assert.Equal(t, PaymentStatePaid, next)

	_, err = PaymentStatePaid.MarkPaid()
	assert.ErrorIs(t, err, ErrPaymentStateAlreadyPaid)

	for _, state := range []PaymentState{PaymentStateCanceledBeforePaid, PaymentStateCanceledAfterPaid} {
		_, err := state.MarkPaid()
		assert.ErrorIs(t, err, ErrPaymentStateAlreadyCanceled, state.String())
	}
}

func TestPaymentStateCancel(t *testing.T) {
	next, err := PaymentStateOpen.Cancel()
	require.NoError(t, err)
	assert.Equal(t, PaymentStateCanceledBeforePaid, next)

	next, err = PaymentStatePaid.Cancel()
	require.NoError(t, err)
	assert.Equal(t, PaymentStateCanceledAfterPaid, next)

	for _, state := range []PaymentState{PaymentStateCanceledBeforePaid, PaymentStateCanceledAfterPaid} {
		_, err := state.Cancel()
		assert.ErrorIs(t, err, ErrPaymentStateAlreadyCanceled, state.String())
	}
}

func TestPaymentStateStorageForm(t *testing.T) {
	for _, state := range PaymentStates() {
		parsed, err := ParsePaymentState(state.String())
		require.NoError(t, err)
		assert.Equal(t, state, parsed)
	}

	_, err := ParsePaymentState("refunded")
	assert.Error(t, err)

	var zero PaymentState
	assert.False(t, zero.IsValid())
	_, err = zero.MarshalText()
	assert.Error(t, err)
}
