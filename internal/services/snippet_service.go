package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/repositories"
)

// SnippetService manages authored text fragments and resolves them for emails.
type SnippetService interface {
	SnippetLookup
	SaveSnippet(ctx context.Context, snippet domain.Snippet) (domain.Snippet, error)
}

// SnippetServiceDeps bundles collaborators required to construct the snippet service.
type SnippetServiceDeps struct {
	Snippets repositories.SnippetRepository
	Logger   ServiceLogger
}

type snippetService struct {
	snippets repositories.SnippetRepository
	logger   ServiceLogger
}

var _ SnippetService = (*snippetService)(nil)

// NewSnippetService constructs the snippet service.
func NewSnippetService(deps SnippetServiceDeps) (SnippetService, error) {
	if deps.Snippets == nil {
		return nil, errors.New("snippet service: repository is required")
	}
	return &snippetService{snippets: deps.Snippets, logger: defaultLogger(deps.Logger)}, nil
}

func (s *snippetService) Lookup(ctx context.Context, key SnippetKey) (string, error) {
	key = normalizeSnippetKey(key)
	snippet, err := s.snippets.Find(ctx, key)
	if err != nil {
		return "", repositoryErrorMapping{notFound: ErrSnippetNotFound, scope: "snippet"}.mapError(err)
	}
	return snippet.Body, nil
}

func (s *snippetService) SaveSnippet(ctx context.Context, snippet domain.Snippet) (domain.Snippet, error) {
	snippet.SnippetKey = normalizeSnippetKey(snippet.SnippetKey)
	if snippet.ScopeType != domain.SnippetScopeBrand && snippet.ScopeType != domain.SnippetScopeShop {
		return domain.Snippet{}, fmt.Errorf("%w: unknown snippet scope %q", ErrShopInvalidInput, snippet.ScopeType)
	}
	if snippet.ScopeID == "" || snippet.Name == "" || snippet.Locale == "" {
		return domain.Snippet{}, fmt.Errorf("%w: snippet scope id, name and locale are required", ErrShopInvalidInput)
	}
	if err := s.snippets.Upsert(ctx, snippet); err != nil {
		return domain.Snippet{}, err
	}
	s.logger(ctx, "snippet.saved", map[string]any{
		"scope":  string(snippet.ScopeType) + ":" + snippet.ScopeID,
		"name":   snippet.Name,
		"locale": snippet.Locale,
	})
	return snippet, nil
}

func normalizeSnippetKey(key SnippetKey) SnippetKey {
	key.ScopeType = domain.SnippetScopeType(strings.TrimSpace(string(key.ScopeType)))
	key.ScopeID = strings.TrimSpace(key.ScopeID)
	key.Name = strings.TrimSpace(key.Name)
	key.Locale = strings.ToLower(strings.TrimSpace(key.Locale))
	return key
}
