package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Articles    repositories.ArticleRepository
	Sequences   SequenceService
	UnitOfWork  repositories.UnitOfWork
	Sanitize    func(string) string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      ServiceLogger
}

type catalogService struct {
	articles   repositories.ArticleRepository
	sequences  SequenceService
	unitOfWork repositories.UnitOfWork
	sanitize   func(string) string
	clock      func() time.Time
	newID      func() string
	logger     ServiceLogger
	errs       repositoryErrorMapping
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Articles == nil {
		return nil, errors.New("catalog service: article repository is required")
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	sanitize := deps.Sanitize
	if sanitize == nil {
		sanitize = strings.TrimSpace
	}
	return &catalogService{
		articles:   deps.Articles,
		sequences:  deps.Sequences,
		unitOfWork: unit,
		sanitize:   sanitize,
		clock:      defaultClock(deps.Clock),
		newID:      defaultIDGenerator(deps.IDGenerator, newUUID),
		logger:     defaultLogger(deps.Logger),
		errs:       repositoryErrorMapping{notFound: ErrUnknownArticle, conflict: ErrArticleConflict, scope: "article"},
	}, nil
}

func (s *catalogService) CreateArticle(ctx context.Context, cmd CreateArticleCommand) (Article, error) {
	shopID := strings.TrimSpace(cmd.ShopID)
	if shopID == "" {
		return Article{}, fmt.Errorf("%w: shop id is required", ErrArticleInvalidInput)
	}
	articleType := cmd.Type
	if articleType == "" {
		articleType = domain.ArticleTypeOther
	}
	if _, err := domain.ParseArticleType(string(articleType)); err != nil {
		return Article{}, fmt.Errorf("%w: %v", ErrArticleInvalidInput, err)
	}
	description := s.sanitize(cmd.Description)
	if description == "" {
		return Article{}, fmt.Errorf("%w: description is required", ErrArticleInvalidInput)
	}
	if cmd.Price.Currency == "" || cmd.Price.IsNegative() {
		return Article{}, fmt.Errorf("%w: price must be a non-negative amount with currency", ErrArticleInvalidInput)
	}
	if cmd.TaxRate.IsNegative() {
		return Article{}, fmt.Errorf("%w: tax rate must not be negative", ErrArticleInvalidInput)
	}
	if cmd.TotalQuantity < 0 || cmd.MaxQuantityPerOrder < 0 {
		return Article{}, fmt.Errorf("%w: quantities must not be negative", ErrArticleInvalidInput)
	}
	if cmd.AvailableFrom != nil && cmd.AvailableUntil != nil && !cmd.AvailableFrom.Before(*cmd.AvailableUntil) {
		return Article{}, fmt.Errorf("%w: available_from must precede available_until", ErrArticleInvalidInput)
	}

	article := Article{
		ID:                    s.newID(),
		ShopID:                shopID,
		ItemNumber:            strings.TrimSpace(cmd.ItemNumber),
		Type:                  articleType,
		TypeParams:            maps.Clone(cmd.TypeParams),
		Description:           description,
		Price:                 cmd.Price,
		TaxRate:               cmd.TaxRate,
		AvailableFrom:         utcPtr(cmd.AvailableFrom),
		AvailableUntil:        utcPtr(cmd.AvailableUntil),
		TotalQuantity:         cmd.TotalQuantity,
		Quantity:              cmd.TotalQuantity,
		MaxQuantityPerOrder:   cmd.MaxQuantityPerOrder,
		NotDirectlyOrderable:  cmd.NotDirectlyOrderable,
		SeparateOrderRequired: cmd.SeparateOrderRequired,
		ProcessingRequired:    cmd.ProcessingRequired,
	}
	if err := article.ValidateTypeParams(); err != nil {
		return Article{}, fmt.Errorf("%w: %v", ErrArticleInvalidInput, err)
	}

	if article.ItemNumber == "" {
		number, err := s.generateItemNumber(ctx, shopID)
		if err != nil {
			return Article{}, err
		}
		article.ItemNumber = number
	}

	if err := s.articles.Insert(ctx, article); err != nil {
		return Article{}, s.errs.mapError(err)
	}

	s.logger(ctx, "article.created", map[string]any{
		"articleId":  article.ID,
		"itemNumber": article.ItemNumber,
		"type":       string(article.Type),
	})
	return article, nil
}

func (s *catalogService) CreateTicketArticle(ctx context.Context, cmd CreateArticleCommand, categoryID string) (Article, error) {
	cmd.Type = domain.ArticleTypeTicket
	cmd.TypeParams = domain.TicketTypeParamsMap(domain.TicketTypeParams{CategoryID: strings.TrimSpace(categoryID)})
	cmd.ProcessingRequired = true
	return s.CreateArticle(ctx, cmd)
}

func (s *catalogService) CreateTicketBundleArticle(ctx context.Context, cmd CreateArticleCommand, categoryID string, ticketQuantity int) (Article, error) {
	cmd.Type = domain.ArticleTypeTicketBundle
	cmd.TypeParams = domain.TicketBundleTypeParamsMap(domain.TicketBundleTypeParams{
		CategoryID:     strings.TrimSpace(categoryID),
		TicketQuantity: ticketQuantity,
	})
	cmd.ProcessingRequired = true
	return s.CreateArticle(ctx, cmd)
}

func (s *catalogService) generateItemNumber(ctx context.Context, shopID string) (string, error) {
	if s.sequences == nil {
		return "", fmt.Errorf("%w: item number is required", ErrArticleInvalidInput)
	}
	sequences, err := s.sequences.FindSequencesForShop(ctx, shopID)
	if err != nil {
		return "", err
	}
	for _, seq := range sequences {
		if seq.Kind == domain.SequenceKindArticle {
			return s.sequences.GenerateArticleNumber(ctx, seq.ID)
		}
	}
	return "", fmt.Errorf("%w: shop %s has no article number sequence", ErrSequenceGenerationFailed, shopID)
}

func (s *catalogService) UpdateArticle(ctx context.Context, cmd UpdateArticleCommand) (Article, error) {
	var updated Article
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		article, err := s.articles.FindByID(txCtx, strings.TrimSpace(cmd.ArticleID))
		if err != nil {
			return s.errs.mapError(err)
		}
		if cmd.Description != nil {
			description := s.sanitize(*cmd.Description)
			if description == "" {
				return fmt.Errorf("%w: description is required", ErrArticleInvalidInput)
			}
			article.Description = description
		}
		if cmd.Price != nil {
			if cmd.Price.Currency != article.Price.Currency || cmd.Price.IsNegative() {
				return fmt.Errorf("%w: price must be non-negative and keep currency %s", ErrArticleInvalidInput, article.Price.Currency)
			}
			article.Price = *cmd.Price
		}
		if cmd.TaxRate != nil {
			if cmd.TaxRate.IsNegative() {
				return fmt.Errorf("%w: tax rate must not be negative", ErrArticleInvalidInput)
			}
			article.TaxRate = *cmd.TaxRate
		}
		if cmd.MaxQuantityPerOrder != nil {
			if *cmd.MaxQuantityPerOrder < 0 {
				return fmt.Errorf("%w: max quantity per order must not be negative", ErrArticleInvalidInput)
			}
			article.MaxQuantityPerOrder = *cmd.MaxQuantityPerOrder
		}
		if cmd.ClearAvailability {
			article.AvailableFrom, article.AvailableUntil = nil, nil
		}
		if cmd.AvailableFrom != nil {
			article.AvailableFrom = utcPtr(cmd.AvailableFrom)
		}
		if cmd.AvailableUntil != nil {
			article.AvailableUntil = utcPtr(cmd.AvailableUntil)
		}
		if article.AvailableFrom != nil && article.AvailableUntil != nil && !article.AvailableFrom.Before(*article.AvailableUntil) {
			return fmt.Errorf("%w: available_from must precede available_until", ErrArticleInvalidInput)
		}
		if cmd.NotDirectlyOrderable != nil {
			article.NotDirectlyOrderable = *cmd.NotDirectlyOrderable
		}
		if cmd.SeparateOrderRequired != nil {
			article.SeparateOrderRequired = *cmd.SeparateOrderRequired
		}
		if err := s.articles.Update(txCtx, article); err != nil {
			return s.errs.mapError(err)
		}
		updated = article
		return nil
	})
	if err != nil {
		return Article{}, err
	}
	return updated, nil
}

func (s *catalogService) DeleteArticle(ctx context.Context, articleID string) error {
	if err := s.articles.Delete(ctx, strings.TrimSpace(articleID)); err != nil {
		return s.errs.mapError(err)
	}
	s.logger(ctx, "article.deleted", map[string]any{"articleId": articleID})
	return nil
}

func (s *catalogService) AttachArticle(ctx context.Context, articleID string, attachedArticleID string, quantity int) (ArticleAttachment, error) {
	articleID = strings.TrimSpace(articleID)
	attachedArticleID = strings.TrimSpace(attachedArticleID)
	if articleID == "" || attachedArticleID == "" || articleID == attachedArticleID {
		return ArticleAttachment{}, fmt.Errorf("%w: two distinct articles are required", ErrArticleInvalidInput)
	}
	if quantity < 1 {
		return ArticleAttachment{}, fmt.Errorf("%w: attachment quantity must be positive", ErrArticleInvalidInput)
	}
	attachment := ArticleAttachment{
		ID:                s.newID(),
		ArticleID:         articleID,
		AttachedArticleID: attachedArticleID,
		Quantity:          quantity,
	}
	if err := s.articles.InsertAttachment(ctx, attachment); err != nil {
		return ArticleAttachment{}, s.errs.mapError(err)
	}
	return attachment, nil
}

func (s *catalogService) UnattachArticle(ctx context.Context, attachmentID string) error {
	if err := s.articles.DeleteAttachment(ctx, strings.TrimSpace(attachmentID)); err != nil {
		return s.errs.mapError(err)
	}
	return nil
}

func (s *catalogService) IncreaseQuantity(ctx context.Context, articleID string, quantity int, commit bool) (int, error) {
	if quantity < 1 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrArticleInvalidInput)
	}
	return s.adjustQuantity(ctx, articleID, quantity, commit)
}

func (s *catalogService) DecreaseQuantity(ctx context.Context, articleID string, quantity int, commit bool) (int, error) {
	if quantity < 1 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrArticleInvalidInput)
	}
	return s.adjustQuantity(ctx, articleID, -quantity, commit)
}

// adjustQuantity joins the caller's unit of work unless commit is set.
func (s *catalogService) adjustQuantity(ctx context.Context, articleID string, delta int, commit bool) (int, error) {
	var quantity int
	adjust := func(txCtx context.Context) error {
		q, err := s.articles.AdjustQuantity(txCtx, strings.TrimSpace(articleID), delta)
		if err != nil {
			if repositories.IsInventoryUnderflow(err) {
				return fmt.Errorf("%w: %v", ErrArticleQuantityUnderflow, err)
			}
			return s.errs.mapError(err)
		}
		quantity = q
		return nil
	}

	var err error
	if commit {
		err = s.unitOfWork.RunInTx(ctx, adjust)
	} else {
		err = adjust(ctx)
	}
	return quantity, err
}

// FindArticle returns nil when the article does not exist.
func (s *catalogService) FindArticle(ctx context.Context, articleID string) (*Article, error) {
	article, err := s.articles.FindByID(ctx, strings.TrimSpace(articleID))
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, nil
		}
		return nil, s.errs.mapError(err)
	}
	return &article, nil
}

func (s *catalogService) GetArticle(ctx context.Context, articleID string) (Article, error) {
	article, err := s.articles.FindByID(ctx, strings.TrimSpace(articleID))
	if err != nil {
		return Article{}, s.errs.mapError(err)
	}
	return article, nil
}

func (s *catalogService) FindArticleByNumber(ctx context.Context, shopID string, itemNumber string) (Article, error) {
	article, err := s.articles.FindByNumber(ctx, strings.TrimSpace(shopID), strings.TrimSpace(itemNumber))
	if err != nil {
		return Article{}, s.errs.mapError(err)
	}
	return article, nil
}

func (s *catalogService) GetArticleCompilationForOrderableArticles(ctx context.Context, shopID string) (ArticleCompilation, error) {
	articles, err := s.articles.ListByShop(ctx, strings.TrimSpace(shopID))
	if err != nil {
		return ArticleCompilation{}, s.errs.mapError(err)
	}
	now := s.clock()
	attachments := make(map[string][]domain.AttachedArticle)
	for _, article := range articles {
		if !article.IsOrderableAt(now) {
			continue
		}
		attached, err := s.attachedArticles(ctx, article.ID)
		if err != nil {
			return ArticleCompilation{}, err
		}
		attachments[article.ID] = attached
	}
	return domain.BuildOrderableCompilation(articles, attachments, now), nil
}

func (s *catalogService) GetArticleCompilationForSingleArticle(ctx context.Context, articleID string) (ArticleCompilation, error) {
	article, err := s.GetArticle(ctx, articleID)
	if err != nil {
		return ArticleCompilation{}, err
	}
	attached, err := s.attachedArticles(ctx, article.ID)
	if err != nil {
		return ArticleCompilation{}, err
	}
	return domain.BuildSingleArticleCompilation(article, attached), nil
}

func (s *catalogService) attachedArticles(ctx context.Context, articleID string) ([]domain.AttachedArticle, error) {
	attachments, err := s.articles.ListAttachments(ctx, articleID)
	if err != nil {
		return nil, s.errs.mapError(err)
	}
	attached := make([]domain.AttachedArticle, 0, len(attachments))
	for _, attachment := range attachments {
		article, err := s.articles.FindByID(ctx, attachment.AttachedArticleID)
		if err != nil {
			return nil, s.errs.mapError(err)
		}
		attached = append(attached, domain.AttachedArticle{Article: article, Quantity: attachment.Quantity})
	}
	return attached, nil
}

func (s *catalogService) GetArticlesForShopPaginated(ctx context.Context, shopID string, pager Pagination, searchTerm string) (domain.Page[Article], error) {
	page, err := s.articles.Search(ctx, repositories.ArticleListFilter{
		ShopID:     strings.TrimSpace(shopID),
		SearchTerm: strings.TrimSpace(searchTerm),
		Pagination: pager.Normalize(),
	})
	if err != nil {
		return domain.Page[Article]{}, s.errs.mapError(err)
	}
	return page, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
