package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ArticleType enumerates what an article represents.
type ArticleType string

const (
	ArticleTypePhysical     ArticleType = "physical"
	ArticleTypeTicket       ArticleType = "ticket"
	ArticleTypeTicketBundle ArticleType = "ticket_bundle"
	ArticleTypeOther        ArticleType = "other"
)

// ErrInvalidTypeParams reports type params that do not fit the article type.
var ErrInvalidTypeParams = errors.New("article: invalid type params")

// ParseArticleType validates a serialized article type.
func ParseArticleType(value string) (ArticleType, error) {
	switch t := ArticleType(strings.TrimSpace(value)); t {
	case ArticleTypePhysical, ArticleTypeTicket, ArticleTypeTicketBundle, ArticleTypeOther:
		return t, nil
	}
	return "", fmt.Errorf("article: unknown type %q", value)
}

// TicketTypeParams are the decoded params of a ticket article.
type TicketTypeParams struct {
	CategoryID string
}

// TicketBundleTypeParams are the decoded params of a ticket bundle article.
type TicketBundleTypeParams struct {
	CategoryID     string
	TicketQuantity int
}

// Article is a purchasable catalog entry of a shop.
type Article struct {
	ID                    string
	ShopID                string
	ItemNumber            string
	Type                  ArticleType
	TypeParams            map[string]any
	Description           string
	Price                 Money
	TaxRate               decimal.Decimal
	AvailableFrom         *time.Time
	AvailableUntil        *time.Time
	TotalQuantity         int
	Quantity              int
	MaxQuantityPerOrder   int
	NotDirectlyOrderable  bool
	SeparateOrderRequired bool
	ProcessingRequired    bool
}

// IsAvailableAt reports whether now lies in [AvailableFrom, AvailableUntil).
func (a Article) IsAvailableAt(now time.Time) bool {
	if a.AvailableFrom != nil && now.Before(*a.AvailableFrom) {
		return false
	}
	if a.AvailableUntil != nil && !now.Before(*a.AvailableUntil) {
		return false
	}
	return true
}

// IsOrderableAt reports whether the article is listed for ordering at now.
// Stock is not considered; sold-out articles stay listed and placement
// rejects them.
func (a Article) IsOrderableAt(now time.Time) bool {
	return !a.NotDirectlyOrderable && !a.SeparateOrderRequired && a.IsAvailableAt(now)
}

// TicketParams decodes the params of a ticket article.
func (a Article) TicketParams() (TicketTypeParams, error) {
	if a.Type != ArticleTypeTicket {
		return TicketTypeParams{}, fmt.Errorf("%w: article %s is %s", ErrInvalidTypeParams, a.ItemNumber, a.Type)
	}
	category, ok := stringParam(a.TypeParams, "ticket_category_id")
	if !ok {
		return TicketTypeParams{}, fmt.Errorf("%w: ticket_category_id missing", ErrInvalidTypeParams)
	}
	return TicketTypeParams{CategoryID: category}, nil
}

// TicketBundleParams decodes the params of a ticket bundle article.
func (a Article) TicketBundleParams() (TicketBundleTypeParams, error) {
	if a.Type != ArticleTypeTicketBundle {
		return TicketBundleTypeParams{}, fmt.Errorf("%w: article %s is %s", ErrInvalidTypeParams, a.ItemNumber, a.Type)
	}
	category, ok := stringParam(a.TypeParams, "ticket_category_id")
	if !ok {
		return TicketBundleTypeParams{}, fmt.Errorf("%w: ticket_category_id missing", ErrInvalidTypeParams)
	}
	quantity, ok := intParam(a.TypeParams, "ticket_quantity")
	if !ok || quantity < 1 {
		return TicketBundleTypeParams{}, fmt.Errorf("%w: ticket_quantity must be positive", ErrInvalidTypeParams)
	}
	return TicketBundleTypeParams{CategoryID: category, TicketQuantity: quantity}, nil
}

// ValidateTypeParams checks the raw params against the article type.
func (a Article) ValidateTypeParams() error {
	switch a.Type {
	case ArticleTypeTicket:
		_, err := a.TicketParams()
		return err
	case ArticleTypeTicketBundle:
		_, err := a.TicketBundleParams()
		return err
	}
	return nil
}

// TicketTypeParamsMap encodes ticket params for storage.
func TicketTypeParamsMap(params TicketTypeParams) map[string]any {
	return map[string]any{"ticket_category_id": params.CategoryID}
}

// TicketBundleTypeParamsMap encodes ticket bundle params for storage.
func TicketBundleTypeParamsMap(params TicketBundleTypeParams) map[string]any {
	return map[string]any{
		"ticket_category_id": params.CategoryID,
		"ticket_quantity":    params.TicketQuantity,
	}
}

func stringParam(params map[string]any, key string) (string, bool) {
	raw, ok := params[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// intParam accepts the numeric shapes JSON, Firestore and Postgres decoders produce.
func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}

// ArticleAttachment attaches one article to another with a fixed quantity per unit.
type ArticleAttachment struct {
	ID                string
	ArticleID         string
	AttachedArticleID string
	Quantity          int
}

// CompilationItem is an article plus, for attachments, its fixed quantity.
type CompilationItem struct {
	Article       Article
	FixedQuantity *int
}

// ArticleCompilation is an ordered selection of articles offered together.
type ArticleCompilation struct {
	Items []CompilationItem
}

// IsEmpty reports whether the compilation holds nothing.
func (c ArticleCompilation) IsEmpty() bool {
	return len(c.Items) == 0
}

// AttachedArticle pairs an attachment with the article it refers to.
type AttachedArticle struct {
	Article  Article
	Quantity int
}

// BuildOrderableCompilation keeps the articles orderable at now, sorted by
// description, each followed by its attachments.
func BuildOrderableCompilation(articles []Article, attachments map[string][]AttachedArticle, now time.Time) ArticleCompilation {
	orderable := make([]Article, 0, len(articles))
	for _, article := range articles {
		if article.IsOrderableAt(now) {
			orderable = append(orderable, article)
		}
	}
	sort.SliceStable(orderable, func(i, j int) bool {
		return orderable[i].Description < orderable[j].Description
	})

	compilation := ArticleCompilation{Items: make([]CompilationItem, 0, len(orderable))}
	for _, article := range orderable {
		compilation.Items = append(compilation.Items, CompilationItem{Article: article})
		compilation.Items = appendAttachments(compilation.Items, attachments[article.ID])
	}
	return compilation
}

// BuildSingleArticleCompilation offers exactly one unit of the article plus its attachments.
func BuildSingleArticleCompilation(article Article, attached []AttachedArticle) ArticleCompilation {
	one := 1
	items := []CompilationItem{{Article: article, FixedQuantity: &one}}
	return ArticleCompilation{Items: appendAttachments(items, attached)}
}

func appendAttachments(items []CompilationItem, attached []AttachedArticle) []CompilationItem {
	for _, a := range attached {
		qty := a.Quantity
		items = append(items, CompilationItem{Article: a.Article, FixedQuantity: &qty})
	}
	return items
}

// MatchesSearch reports whether every whitespace separated term is a
// case-insensitive substring of the item number or the description.
func (a Article) MatchesSearch(searchTerm string) bool {
	terms := strings.Fields(strings.ToLower(searchTerm))
	number := strings.ToLower(a.ItemNumber)
	description := strings.ToLower(a.Description)
	for _, term := range terms {
		if !strings.Contains(number, term) && !strings.Contains(description, term) {
			return false
		}
	}
	return true
}
