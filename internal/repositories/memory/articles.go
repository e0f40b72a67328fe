package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type articleRepository struct{ store *Store }

func cloneArticle(a domain.Article) domain.Article {
	a.TypeParams = maps.Clone(a.TypeParams)
	return a
}

func (r *articleRepository) Insert(ctx context.Context, article domain.Article) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.articles[article.ID]; ok {
			return repositories.NewConflictError("articles.insert", "article %q exists", article.ID)
		}
		for _, existing := range st.articles {
			if existing.ShopID == article.ShopID && existing.ItemNumber == article.ItemNumber {
				return repositories.NewConflictError("articles.insert", "item number %q taken", article.ItemNumber)
			}
		}
		st.articles[article.ID] = cloneArticle(article)
		return nil
	})
}

func (r *articleRepository) Update(ctx context.Context, article domain.Article) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.articles[article.ID]; !ok {
			return repositories.NewNotFoundError("articles.update", "article %q", article.ID)
		}
		st.articles[article.ID] = cloneArticle(article)
		return nil
	})
}

func (r *articleRepository) Delete(ctx context.Context, articleID string) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.articles[articleID]; !ok {
			return repositories.NewNotFoundError("articles.delete", "article %q", articleID)
		}
		delete(st.articles, articleID)
		for id, attachment := range st.attachments {
			if attachment.ArticleID == articleID || attachment.AttachedArticleID == articleID {
				delete(st.attachments, id)
			}
		}
		return nil
	})
}

func (r *articleRepository) FindByID(ctx context.Context, articleID string) (domain.Article, error) {
	var article domain.Article
	err := r.store.with(ctx, func(st *state) error {
		found, ok := st.articles[articleID]
		if !ok {
			return repositories.NewNotFoundError("articles.find", "article %q", articleID)
		}
		article = cloneArticle(found)
		return nil
	})
	return article, err
}

func (r *articleRepository) FindByNumber(ctx context.Context, shopID string, itemNumber string) (domain.Article, error) {
	var article domain.Article
	err := r.store.with(ctx, func(st *state) error {
		for _, found := range st.articles {
			if found.ShopID == shopID && found.ItemNumber == itemNumber {
				article = cloneArticle(found)
				return nil
			}
		}
		return repositories.NewNotFoundError("articles.find_by_number", "article %q", itemNumber)
	})
	return article, err
}

func (r *articleRepository) ListByShop(ctx context.Context, shopID string) ([]domain.Article, error) {
	var articles []domain.Article
	err := r.store.with(ctx, func(st *state) error {
		for _, article := range st.articles {
			if article.ShopID == shopID {
				articles = append(articles, cloneArticle(article))
			}
		}
		return nil
	})
	sort.Slice(articles, func(i, j int) bool { return articles[i].ItemNumber < articles[j].ItemNumber })
	return articles, err
}

func (r *articleRepository) Search(ctx context.Context, filter repositories.ArticleListFilter) (domain.Page[domain.Article], error) {
	articles, err := r.ListByShop(ctx, filter.ShopID)
	if err != nil {
		return domain.Page[domain.Article]{}, err
	}
	matched := articles[:0]
	for _, article := range articles {
		if article.MatchesSearch(filter.SearchTerm) {
			matched = append(matched, article)
		}
	}
	return domain.Paginate(matched, filter.Pagination), nil
}

func (r *articleRepository) AdjustQuantity(ctx context.Context, articleID string, delta int) (int, error) {
	var quantity int
	err := r.store.with(ctx, func(st *state) error {
		article, ok := st.articles[articleID]
		if !ok {
			return repositories.NewInventoryError(repositories.InventoryErrorArticleNotFound, articleID, "article "+articleID+" not found", nil)
		}
		if article.Quantity+delta < 0 {
			return repositories.NewInventoryError(repositories.InventoryErrorUnderflow, articleID,
				fmt.Sprintf("article %s has %d left, cannot take %d", article.ItemNumber, article.Quantity, -delta), nil)
		}
		article.Quantity += delta
		st.articles[articleID] = article
		quantity = article.Quantity
		return nil
	})
	return quantity, err
}

func (r *articleRepository) InsertAttachment(ctx context.Context, attachment domain.ArticleAttachment) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.articles[attachment.ArticleID]; !ok {
			return repositories.NewNotFoundError("articles.attach", "article %q", attachment.ArticleID)
		}
		if _, ok := st.articles[attachment.AttachedArticleID]; !ok {
			return repositories.NewNotFoundError("articles.attach", "article %q", attachment.AttachedArticleID)
		}
		for _, existing := range st.attachments {
			if existing.ArticleID == attachment.ArticleID && existing.AttachedArticleID == attachment.AttachedArticleID {
				return repositories.NewConflictError("articles.attach", "article %q already attached", attachment.AttachedArticleID)
			}
		}
		st.attachments[attachment.ID] = attachment
		return nil
	})
}

func (r *articleRepository) DeleteAttachment(ctx context.Context, attachmentID string) error {
	return r.store.with(ctx, func(st *state) error {
		if _, ok := st.attachments[attachmentID]; !ok {
			return repositories.NewNotFoundError("articles.unattach", "attachment %q", attachmentID)
		}
		delete(st.attachments, attachmentID)
		return nil
	})
}

func (r *articleRepository) ListAttachments(ctx context.Context, articleID string) ([]domain.ArticleAttachment, error) {
	var attachments []domain.ArticleAttachment
	err := r.store.with(ctx, func(st *state) error {
		for _, attachment := range st.attachments {
			if attachment.ArticleID == articleID {
				attachments = append(attachments, attachment)
			}
		}
		return nil
	})
	sort.Slice(attachments, func(i, j int) bool { return attachments[i].ID < attachments[j].ID })
	return attachments, err
}
