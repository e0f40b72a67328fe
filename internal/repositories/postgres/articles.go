package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type articleRepository struct{ db *DB }

const articleColumns = `id, shop_id, item_number, type, type_params, description,
	price::text, currency, tax_rate::text, available_from, available_until,
	total_quantity, quantity, max_quantity_per_order,
	not_directly_orderable, separate_order_required, processing_required`

func scanArticle(row pgx.Row) (domain.Article, error) {
	var (
		a           domain.Article
		articleType string
		price, tax  string
		typeParams  map[string]any
	)
	err := row.Scan(&a.ID, &a.ShopID, &a.ItemNumber, &articleType, &typeParams, &a.Description,
		&price, &a.Price.Currency, &tax, &a.AvailableFrom, &a.AvailableUntil,
		&a.TotalQuantity, &a.Quantity, &a.MaxQuantityPerOrder,
		&a.NotDirectlyOrderable, &a.SeparateOrderRequired, &a.ProcessingRequired)
	if err != nil {
		return domain.Article{}, err
	}
	a.Type = domain.ArticleType(articleType)
	a.TypeParams = typeParams
	if a.Price.Amount, err = decimal.NewFromString(price); err != nil {
		return domain.Article{}, fmt.Errorf("article %s: price: %w", a.ID, err)
	}
	if a.TaxRate, err = decimal.NewFromString(tax); err != nil {
		return domain.Article{}, fmt.Errorf("article %s: tax rate: %w", a.ID, err)
	}
	return a, nil
}

func collectArticles(rows pgx.Rows) ([]domain.Article, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Article, error) { return scanArticle(row) })
}

func (r *articleRepository) Insert(ctx context.Context, a domain.Article) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO articles (id, shop_id, item_number, type, type_params, description,
			price, currency, tax_rate, available_from, available_until,
			total_quantity, quantity, max_quantity_per_order,
			not_directly_orderable, separate_order_required, processing_required)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9::numeric, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.ShopID, a.ItemNumber, string(a.Type), a.TypeParams, a.Description,
		a.Price.Amount.String(), a.Price.Currency, a.TaxRate.String(), a.AvailableFrom, a.AvailableUntil,
		a.TotalQuantity, a.Quantity, a.MaxQuantityPerOrder,
		a.NotDirectlyOrderable, a.SeparateOrderRequired, a.ProcessingRequired)
	return wrapError("articles.insert", err)
}

func (r *articleRepository) Update(ctx context.Context, a domain.Article) error {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE articles SET
			type_params = $2, description = $3, price = $4::numeric, currency = $5, tax_rate = $6::numeric,
			available_from = $7, available_until = $8, total_quantity = $9, quantity = $10,
			max_quantity_per_order = $11, not_directly_orderable = $12,
			separate_order_required = $13, processing_required = $14
		WHERE id = $1`,
		a.ID, a.TypeParams, a.Description, a.Price.Amount.String(), a.Price.Currency, a.TaxRate.String(),
		a.AvailableFrom, a.AvailableUntil, a.TotalQuantity, a.Quantity,
		a.MaxQuantityPerOrder, a.NotDirectlyOrderable,
		a.SeparateOrderRequired, a.ProcessingRequired)
	if err != nil {
		return wrapError("articles.update", err)
	}
	return notFound("articles.update", tag.RowsAffected(), "article %q", a.ID)
}

func (r *articleRepository) Delete(ctx context.Context, articleID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM articles WHERE id = $1`, articleID)
	if err != nil {
		return wrapError("articles.delete", err)
	}
	return notFound("articles.delete", tag.RowsAffected(), "article %q", articleID)
}

func (r *articleRepository) FindByID(ctx context.Context, articleID string) (domain.Article, error) {
	a, err := scanArticle(r.db.q(ctx).QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, articleID))
	return a, wrapError("articles.find", err)
}

func (r *articleRepository) FindByNumber(ctx context.Context, shopID string, itemNumber string) (domain.Article, error) {
	a, err := scanArticle(r.db.q(ctx).QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE shop_id = $1 AND item_number = $2`, shopID, itemNumber))
	return a, wrapError("articles.find_by_number", err)
}

func (r *articleRepository) ListByShop(ctx context.Context, shopID string) ([]domain.Article, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE shop_id = $1 ORDER BY item_number`, shopID)
	if err != nil {
		return nil, wrapError("articles.list", err)
	}
	articles, err := collectArticles(rows)
	return articles, wrapError("articles.list", err)
}

// Search matches every whitespace separated term against item number or
// description, case-insensitively.
func (r *articleRepository) Search(ctx context.Context, filter repositories.ArticleListFilter) (domain.Page[domain.Article], error) {
	pager := filter.Pagination.Normalize()
	where := []string{"shop_id = $1"}
	args := []any{filter.ShopID}
	for _, term := range strings.Fields(filter.SearchTerm) {
		args = append(args, "%"+escapeLike(term)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(item_number ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.q(ctx).QueryRow(ctx, `SELECT count(*) FROM articles WHERE `+clause, args...).Scan(&total); err != nil {
		return domain.Page[domain.Article]{}, wrapError("articles.search", err)
	}
	args = append(args, pager.PerPage, pager.Offset())
	rows, err := r.db.q(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM articles WHERE %s ORDER BY item_number LIMIT $%d OFFSET $%d`,
		articleColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return domain.Page[domain.Article]{}, wrapError("articles.search", err)
	}
	articles, err := collectArticles(rows)
	if err != nil {
		return domain.Page[domain.Article]{}, wrapError("articles.search", err)
	}
	return domain.Page[domain.Article]{Items: articles, Page: pager.Page, PerPage: pager.PerPage, Total: total}, nil
}

// AdjustQuantity applies delta only if the result stays non-negative.
func (r *articleRepository) AdjustQuantity(ctx context.Context, articleID string, delta int) (int, error) {
	var quantity int
	err := r.db.q(ctx).QueryRow(ctx, `
		UPDATE articles SET quantity = quantity + $2
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING quantity`, articleID, delta).Scan(&quantity)
	if err == nil {
		return quantity, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, wrapError("articles.adjust_quantity", err)
	}

	var (
		itemNumber string
		current    int
	)
	err = r.db.q(ctx).QueryRow(ctx, `SELECT item_number, quantity FROM articles WHERE id = $1`, articleID).
		Scan(&itemNumber, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repositories.NewInventoryError(repositories.InventoryErrorArticleNotFound, articleID, "article "+articleID+" not found", nil)
	}
	if err != nil {
		return 0, wrapError("articles.adjust_quantity", err)
	}
	return 0, repositories.NewInventoryError(repositories.InventoryErrorUnderflow, articleID,
		fmt.Sprintf("article %s has %d left, cannot take %d", itemNumber, current, -delta), nil)
}

func (r *articleRepository) InsertAttachment(ctx context.Context, attachment domain.ArticleAttachment) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO article_attachments (id, article_id, attached_article_id, quantity)
		VALUES ($1, $2, $3, $4)`,
		attachment.ID, attachment.ArticleID, attachment.AttachedArticleID, attachment.Quantity)
	if hasCode(err, pgForeignKey) {
		return repositories.NewNotFoundError("articles.attach", "article %q or %q", attachment.ArticleID, attachment.AttachedArticleID)
	}
	return wrapError("articles.attach", err)
}

func (r *articleRepository) DeleteAttachment(ctx context.Context, attachmentID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM article_attachments WHERE id = $1`, attachmentID)
	if err != nil {
		return wrapError("articles.unattach", err)
	}
	return notFound("articles.unattach", tag.RowsAffected(), "attachment %q", attachmentID)
}

func (r *articleRepository) ListAttachments(ctx context.Context, articleID string) ([]domain.ArticleAttachment, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT id, article_id, attached_article_id, quantity
		FROM article_attachments WHERE article_id = $1 ORDER BY id`, articleID)
	if err != nil {
		return nil, wrapError("articles.attachments", err)
	}
	attachments, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.ArticleAttachment])
	return attachments, wrapError("articles.attachments", err)
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
