package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SessionStore holds login session tokens.
type SessionStore interface {
	DeleteAll(ctx context.Context) (int, error)
	DeleteForUser(ctx context.Context, userID string) (int, error)
}

// TokenRevoker invalidates refresh tokens issued by the identity provider.
type TokenRevoker interface {
	RevokeRefreshTokens(ctx context.Context, userID string) error
}

// SessionServiceDeps bundles collaborators required to construct the session service.
type SessionServiceDeps struct {
	Store   SessionStore
	Revoker TokenRevoker
	Logger  ServiceLogger
}

type sessionService struct {
	store   SessionStore
	revoker TokenRevoker
	logger  ServiceLogger
}

var _ SessionService = (*sessionService)(nil)

// NewSessionService constructs the session service. Revoker is optional.
func NewSessionService(deps SessionServiceDeps) (SessionService, error) {
	if deps.Store == nil {
		return nil, errors.New("session service: session store is required")
	}
	return &sessionService{
		store:   deps.Store,
		revoker: deps.Revoker,
		logger:  defaultLogger(deps.Logger),
	}, nil
}

func (s *sessionService) RemoveAllSessions(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("session service: remove all sessions: %w", err)
	}
	s.logger(ctx, "sessions.removed", map[string]any{"count": removed})
	return removed, nil
}

func (s *sessionService) RemoveSessionsForUser(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("session service: user id is required")
	}
	removed, err := s.store.DeleteForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("session service: remove sessions of %s: %w", userID, err)
	}
	if s.revoker != nil {
		if err := s.revoker.RevokeRefreshTokens(ctx, userID); err != nil {
			return removed, fmt.Errorf("session service: revoke tokens of %s: %w", userID, err)
		}
	}
	s.logger(ctx, "sessions.removed", map[string]any{"userId": userID, "count": removed})
	return removed, nil
}
