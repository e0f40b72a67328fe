package domain

import (
	"fmt"
	"strings"
)

// Shop groups articles and orders under one currency.
type Shop struct {
	ID       string
	BrandID  string
	Title    string
	Currency string
	Archived bool
}

// EmailSender is the From identity of a brand's outgoing mail.
type EmailSender struct {
	Name    string
	Address string
}

// Format renders `Name <address>`.
func (s EmailSender) Format() string {
	if strings.TrimSpace(s.Name) == "" {
		return s.Address
	}
	return fmt.Sprintf("%s <%s>", s.Name, s.Address)
}

// Brand is the community brand a shop belongs to.
type Brand struct {
	ID            string
	Title         string
	DefaultLocale string
	EmailSender   EmailSender
}

// Storefront is the entry point through which orders are placed.
type Storefront struct {
	ID                    string
	ShopID                string
	OrderNumberSequenceID string
	Closed                bool
}

// SequenceKind distinguishes article from order number sequences.
type SequenceKind string

const (
	SequenceKindArticle SequenceKind = "article"
	SequenceKindOrder   SequenceKind = "order"
)

// ParseSequenceKind validates a serialized sequence kind.
func ParseSequenceKind(value string) (SequenceKind, error) {
	switch k := SequenceKind(strings.TrimSpace(value)); k {
	case SequenceKindArticle, SequenceKindOrder:
		return k, nil
	}
	return "", fmt.Errorf("sequence: unknown kind %q", value)
}

// NumberSequence hands out monotonically increasing numbers for a shop.
// Value holds the last assigned serial.
type NumberSequence struct {
	ID     string
	ShopID string
	Kind   SequenceKind
	Prefix string
	Value  int
}

// FormatNumber renders prefix plus the serial zero-padded to five digits.
func FormatNumber(prefix string, value int) string {
	return fmt.Sprintf("%s%05d", prefix, value)
}
