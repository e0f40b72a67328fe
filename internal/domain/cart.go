package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCartInvalidQuantity reports a cart quantity below one.
var ErrCartInvalidQuantity = errors.New("cart: quantity must be at least 1")

// CartItem is an article and the number of units ordered.
type CartItem struct {
	Article  Article
	Quantity int
}

// LineAmount is the unit price times the quantity.
func (i CartItem) LineAmount() Money {
	return i.Article.Price.Mul(i.Quantity)
}

// Cart aggregates items before an order is placed. It lives in memory only.
type Cart struct {
	currency string
	items    []CartItem
}

// NewCart returns an empty cart for the currency.
func NewCart(currency string) *Cart {
	return &Cart{currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Currency returns the cart currency.
func (c *Cart) Currency() string {
	return c.currency
}

// Add puts quantity units of the article into the cart. Adding an article
// that is already present raises that entry's quantity.
func (c *Cart) Add(article Article, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: got %d", ErrCartInvalidQuantity, quantity)
	}
	if article.Price.Currency != c.currency {
		panic(fmt.Sprintf("cart: article %s priced in %s, cart is %s", article.ItemNumber, article.Price.Currency, c.currency))
	}
	for i := range c.items {
		if c.items[i].Article.ID == article.ID {
			c.items[i].Quantity += quantity
			return nil
		}
	}
	c.items = append(c.items, CartItem{Article: article, Quantity: quantity})
	return nil
}

// AddCompilationItem adds a compilation entry for parentQuantity units of
// its parent. Attachments carry a fixed quantity per parent unit.
func (c *Cart) AddCompilationItem(item CompilationItem, parentQuantity int) error {
	quantity := parentQuantity
	if item.FixedQuantity != nil {
		quantity = *item.FixedQuantity * parentQuantity
	}
	return c.Add(item.Article, quantity)
}

// Items returns a copy of the cart entries in insertion order.
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// IsEmpty reports whether the cart holds no items.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Total sums price times quantity over all items.
func (c *Cart) Total() Money {
	total := ZeroMoney(c.currency)
	for _, item := range c.items {
		total = total.Add(item.LineAmount())
	}
	return total
}
