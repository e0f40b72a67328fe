package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPaymentStateAlreadyPaid rejects paying an order twice.
	ErrPaymentStateAlreadyPaid = errors.New("payment state: already paid")
	// ErrPaymentStateAlreadyCanceled rejects any transition out of a canceled state.
	ErrPaymentStateAlreadyCanceled = errors.New("payment state: already canceled")
)

// PaymentState is the payment lifecycle position of an order. The zero value
// is invalid; orders start as PaymentStateOpen.
type PaymentState uint8

const (
	paymentStateInvalid PaymentState = iota
	PaymentStateOpen
	PaymentStatePaid
	PaymentStateCanceledBeforePaid
	PaymentStateCanceledAfterPaid
)

var paymentStateNames = map[PaymentState]string{
	PaymentStateOpen:               "open",
	PaymentStatePaid:               "paid",
	PaymentStateCanceledBeforePaid: "canceled_before_paid",
	PaymentStateCanceledAfterPaid:  "canceled_after_paid",
}

// PaymentStates lists every valid state in lifecycle order.
func PaymentStates() []PaymentState {
	return []PaymentState{
		PaymentStateOpen,
		PaymentStatePaid,
		PaymentStateCanceledBeforePaid,
		PaymentStateCanceledAfterPaid,
	}
}

// ParsePaymentState decodes the storage form of a payment state.
func ParsePaymentState(value string) (PaymentState, error) {
	value = strings.TrimSpace(value)
	for state, name := range paymentStateNames {
		if name == value {
			return state, nil
		}
	}
	return paymentStateInvalid, fmt.Errorf("payment state: unknown value %q", value)
}

// String returns the storage form.
func (s PaymentState) String() string {
	if name, ok := paymentStateNames[s]; ok {
		return name
	}
	return "invalid"
}

// IsValid reports whether s is one of the four lifecycle states.
func (s PaymentState) IsValid() bool {
	_, ok := paymentStateNames[s]
	return ok
}

// IsCanceled reports whether s is either canceled state.
func (s PaymentState) IsCanceled() bool {
	return s == PaymentStateCanceledBeforePaid || s == PaymentStateCanceledAfterPaid
}

// MarkPaid moves open to paid.
func (s PaymentState) MarkPaid() (PaymentState, error) {
	switch s {
	case PaymentStateOpen:
		return PaymentStatePaid, nil
	case PaymentStatePaid:
		return s, ErrPaymentStateAlreadyPaid
	case PaymentStateCanceledBeforePaid, PaymentStateCanceledAfterPaid:
		return s, ErrPaymentStateAlreadyCanceled
	}
	return s, fmt.Errorf("payment state: cannot mark %s as paid", s)
}

// Cancel moves open to canceled_before_paid and paid to canceled_after_paid.
func (s PaymentState) Cancel() (PaymentState, error) {
	switch s {
	case PaymentStateOpen:
		return PaymentStateCanceledBeforePaid, nil
	case PaymentStatePaid:
		return PaymentStateCanceledAfterPaid, nil
	case PaymentStateCanceledBeforePaid, PaymentStateCanceledAfterPaid:
		return s, ErrPaymentStateAlreadyCanceled
	}
	return s, fmt.Errorf("payment state: cannot cancel %s", s)
}

// MarshalText encodes the storage form for JSON payloads.
func (s PaymentState) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("payment state: cannot marshal %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes the storage form.
func (s *PaymentState) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
