package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

// SequenceServiceDeps bundles collaborators required to construct a sequence service instance.
type SequenceServiceDeps struct {
	Sequences   repositories.SequenceRepository
	UnitOfWork  repositories.UnitOfWork
	IDGenerator func() string
	Logger      ServiceLogger
}

type sequenceService struct {
	repo       repositories.SequenceRepository
	unitOfWork repositories.UnitOfWork
	newID      func() string
	logger     ServiceLogger
}

var _ SequenceService = (*sequenceService)(nil)

// NewSequenceService constructs a service that hands out numbers from per-shop sequences.
func NewSequenceService(deps SequenceServiceDeps) (SequenceService, error) {
	if deps.Sequences == nil {
		return nil, errors.New("sequence service: repository is required")
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	return &sequenceService{
		repo:       deps.Sequences,
		unitOfWork: unit,
		newID:      defaultIDGenerator(deps.IDGenerator, newULID),
		logger:     defaultLogger(deps.Logger),
	}, nil
}

func (s *sequenceService) CreateSequence(ctx context.Context, shopID string, kind domain.SequenceKind, prefix string, value int) (NumberSequence, error) {
	shopID = strings.TrimSpace(shopID)
	prefix = strings.TrimSpace(prefix)
	if shopID == "" || prefix == "" {
		return NumberSequence{}, fmt.Errorf("%w: shop id and prefix are required", ErrSequenceCreationFailed)
	}
	if _, err := domain.ParseSequenceKind(string(kind)); err != nil {
		return NumberSequence{}, fmt.Errorf("%w: %v", ErrSequenceCreationFailed, err)
	}
	if value < 0 {
		return NumberSequence{}, fmt.Errorf("%w: value must not be negative", ErrSequenceCreationFailed)
	}

	sequence := NumberSequence{
		ID:     s.newID(),
		ShopID: shopID,
		Kind:   kind,
		Prefix: prefix,
		Value:  value,
	}
	if err := s.repo.Insert(ctx, sequence); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return NumberSequence{}, fmt.Errorf("%w: %v", ErrSequenceCreationFailed, err)
		}
		return NumberSequence{}, err
	}
	return sequence, nil
}

func (s *sequenceService) GetSequence(ctx context.Context, sequenceID string) (NumberSequence, error) {
	sequence, err := s.repo.FindByID(ctx, strings.TrimSpace(sequenceID))
	if err != nil {
		return NumberSequence{}, s.mapGenerationError(err)
	}
	return sequence, nil
}

func (s *sequenceService) FindSequencesForShop(ctx context.Context, shopID string) ([]NumberSequence, error) {
	return s.repo.ListByShop(ctx, strings.TrimSpace(shopID))
}

func (s *sequenceService) GenerateArticleNumber(ctx context.Context, sequenceID string) (string, error) {
	return s.generate(ctx, sequenceID, domain.SequenceKindArticle)
}

func (s *sequenceService) GenerateOrderNumber(ctx context.Context, sequenceID string) (string, error) {
	return s.generate(ctx, sequenceID, domain.SequenceKindOrder)
}

// generate increments and reads the sequence in its own transaction, so a
// number is burned even if the caller's later work fails.
func (s *sequenceService) generate(ctx context.Context, sequenceID string, kind domain.SequenceKind) (string, error) {
	sequenceID = strings.TrimSpace(sequenceID)
	if sequenceID == "" {
		return "", fmt.Errorf("%w: sequence id is required", ErrSequenceGenerationFailed)
	}

	var sequence NumberSequence
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindByID(txCtx, sequenceID)
		if err != nil {
			return err
		}
		if current.Kind != kind {
			return fmt.Errorf("%w: sequence %s is a %s sequence", ErrSequenceGenerationFailed, sequenceID, current.Kind)
		}
		sequence, err = s.repo.Next(txCtx, sequenceID)
		return err
	})
	if err != nil {
		s.logger(ctx, "sequence.generate.failed", map[string]any{
			"sequenceId": sequenceID,
			"kind":       string(kind),
			"error":      err.Error(),
		})
		return "", s.mapGenerationError(err)
	}
	return domain.FormatNumber(sequence.Prefix, sequence.Value), nil
}

func (s *sequenceService) mapGenerationError(err error) error {
	if errors.Is(err, ErrSequenceGenerationFailed) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrSequenceGenerationFailed, err)
	}
	return err
}
