package domain

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Built-in payment methods.
const (
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCash         = "cash"
	PaymentMethodDirectDebit  = "direct_debit"
	PaymentMethodFree         = "free"
)

var paymentMethodPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// PaymentMethods is the set of payment method names an order may record.
type PaymentMethods struct {
	names []string
}

// NewPaymentMethods returns the built-in methods plus any extras. Extras
// that are not lower_snake_case identifiers are rejected.
func NewPaymentMethods(extra ...string) (PaymentMethods, error) {
	names := []string{
		PaymentMethodBankTransfer,
		PaymentMethodCash,
		PaymentMethodDirectDebit,
		PaymentMethodFree,
	}
	for _, name := range extra {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !paymentMethodPattern.MatchString(name) {
			return PaymentMethods{}, fmt.Errorf("payment method: invalid name %q", name)
		}
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return PaymentMethods{names: names}, nil
}

// Contains reports whether name is an accepted payment method.
func (p PaymentMethods) Contains(name string) bool {
	if len(p.names) == 0 {
		defaults, _ := NewPaymentMethods()
		p = defaults
	}
	return slices.Contains(p.names, name)
}

// Names lists the accepted methods.
func (p PaymentMethods) Names() []string {
	return slices.Clone(p.names)
}
