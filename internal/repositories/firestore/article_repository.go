package firestore

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

type articleRepository struct{ r *Registry }

func (a *articleRepository) Insert(ctx context.Context, article domain.Article) error {
	numberKey := indexKey(article.ShopID, article.ItemNumber)
	return a.r.RunInTx(ctx, func(ctx context.Context) error {
		taken, err := a.r.articleNums.Exists(ctx, numberKey)
		if err != nil {
			return err
		}
		if taken {
			return repositories.NewConflictError("articles.insert", "item number %q taken", article.ItemNumber)
		}
		if err := a.r.articleNums.Create(ctx, numberKey, indexDocument{TargetID: article.ID}); err != nil {
			return err
		}
		return a.r.articles.Create(ctx, article.ID, newArticleDocument(article))
	})
}

func (a *articleRepository) Update(ctx context.Context, article domain.Article) error {
	return a.r.RunInTx(ctx, func(ctx context.Context) error {
		current, err := a.r.articles.Get(ctx, article.ID)
		if err != nil {
			return notFoundAs(err, "articles.update", "article %q", article.ID)
		}
		// shop and item number are fixed once issued
		article.ShopID = current.ShopID
		article.ItemNumber = current.ItemNumber
		return a.r.articles.Set(ctx, article.ID, newArticleDocument(article))
	})
}

// Delete removes the article together with attachments on either side.
func (a *articleRepository) Delete(ctx context.Context, articleID string) error {
	return a.r.RunInTx(ctx, func(ctx context.Context) error {
		current, err := a.r.articles.Get(ctx, articleID)
		if err != nil {
			return notFoundAs(err, "articles.delete", "article %q", articleID)
		}
		var attachmentIDs []string
		for _, field := range []string{"articleId", "attachedArticleId"} {
			docs, err := a.r.attachments.Query(ctx, func(q firestore.Query) firestore.Query {
				return q.Where(field, "==", articleID)
			})
			if err != nil {
				return err
			}
			for _, doc := range docs {
				attachmentIDs = append(attachmentIDs, doc.ID)
			}
		}
		for _, id := range attachmentIDs {
			if err := a.r.attachments.Delete(ctx, id); err != nil {
				return err
			}
		}
		if err := a.r.articleNums.Delete(ctx, indexKey(current.ShopID, current.ItemNumber)); err != nil {
			return err
		}
		return a.r.articles.Delete(ctx, articleID)
	})
}

func (a *articleRepository) FindByID(ctx context.Context, articleID string) (domain.Article, error) {
	doc, err := a.r.articles.Get(ctx, articleID)
	if err != nil {
		return domain.Article{}, notFoundAs(err, "articles.find", "article %q", articleID)
	}
	return doc.toDomain()
}

func (a *articleRepository) FindByNumber(ctx context.Context, shopID string, itemNumber string) (domain.Article, error) {
	index, err := a.r.articleNums.Get(ctx, indexKey(shopID, itemNumber))
	if err != nil {
		return domain.Article{}, notFoundAs(err, "articles.find_by_number", "article %q", itemNumber)
	}
	return a.FindByID(ctx, index.TargetID)
}

func (a *articleRepository) ListByShop(ctx context.Context, shopID string) ([]domain.Article, error) {
	docs, err := a.r.articles.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(fieldShopID, "==", shopID)
	})
	if err != nil {
		return nil, err
	}
	articles := make([]domain.Article, 0, len(docs))
	for _, doc := range docs {
		article, err := doc.Data.toDomain()
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	sort.Slice(articles, func(i, j int) bool { return articles[i].ItemNumber < articles[j].ItemNumber })
	return articles, nil
}

// Search filters in process; Firestore has no substring matching.
func (a *articleRepository) Search(ctx context.Context, filter repositories.ArticleListFilter) (domain.Page[domain.Article], error) {
	articles, err := a.ListByShop(ctx, filter.ShopID)
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

func (a *articleRepository) AdjustQuantity(ctx context.Context, articleID string, delta int) (int, error) {
	var quantity int
	err := a.r.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := a.r.articles.Get(ctx, articleID)
		if isNotFound(err) {
			return repositories.NewInventoryError(repositories.InventoryErrorArticleNotFound, articleID, "article "+articleID+" not found", nil)
		}
		if err != nil {
			return err
		}
		if doc.Quantity+delta < 0 {
			return repositories.NewInventoryError(repositories.InventoryErrorUnderflow, articleID,
				fmt.Sprintf("article %s has %d left, cannot take %d", doc.ItemNumber, doc.Quantity, -delta), nil)
		}
		doc.Quantity += delta
		quantity = doc.Quantity
		return a.r.articles.Set(ctx, articleID, doc)
	})
	return quantity, err
}

func (a *articleRepository) InsertAttachment(ctx context.Context, attachment domain.ArticleAttachment) error {
	return a.r.RunInTx(ctx, func(ctx context.Context) error {
		for _, id := range []string{attachment.ArticleID, attachment.AttachedArticleID} {
			exists, err := a.r.articles.Exists(ctx, id)
			if err != nil {
				return err
			}
			if !exists {
				return repositories.NewNotFoundError("articles.attach", "article %q", id)
			}
		}
		existing, err := a.r.attachments.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("articleId", "==", attachment.ArticleID).
				Where("attachedArticleId", "==", attachment.AttachedArticleID).
				Limit(1)
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return repositories.NewConflictError("articles.attach", "article %q already attached", attachment.AttachedArticleID)
		}
		return a.r.attachments.Create(ctx, attachment.ID, attachmentDocument(attachment))
	})
}

func (a *articleRepository) DeleteAttachment(ctx context.Context, attachmentID string) error {
	return a.r.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := a.r.attachments.Exists(ctx, attachmentID)
		if err != nil {
			return err
		}
		if !exists {
			return repositories.NewNotFoundError("articles.unattach", "attachment %q", attachmentID)
		}
		return a.r.attachments.Delete(ctx, attachmentID)
	})
}

func (a *articleRepository) ListAttachments(ctx context.Context, articleID string) ([]domain.ArticleAttachment, error) {
	docs, err := a.r.attachments.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("articleId", "==", articleID)
	})
	if err != nil {
		return nil, err
	}
	attachments := decodeAll(docs, func(d attachmentDocument) domain.ArticleAttachment { return domain.ArticleAttachment(d) })
	sort.Slice(attachments, func(i, j int) bool { return attachments[i].ID < attachments[j].ID })
	return attachments, nil
}
