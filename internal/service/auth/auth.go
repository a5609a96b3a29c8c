package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/service/auth/bruteforce"
)

type userService interface {
	UserLookup

	CreateUser(ctx context.Context, username string, password string) (models.User, error)

	// Must return apperrors.ErrInvalidCredentials for unknown user or wrong password
	CheckCredentials(ctx context.Context, username string, password string) (models.User, error)
}

type tokenIssuer interface {
	tokenParser
	IssuePair(subjectID string, role string) (models.TokenPair, error)
}

type loginGuard interface {
	Check(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string) bruteforce.Attempt
	Clear(ctx context.Context, id string)
}

// Auth service runs registration, login and refresh flows
type AuthService struct {
	// Manager to issue and parse token pairs (access and refresh)
	tokens tokenIssuer

	// Failed logins limiter, keyed by username
	guard loginGuard

	users  userService
	logger logger.Logger
}

func NewAuthService(tokens tokenIssuer, guard loginGuard, users userService, l logger.Logger) (*AuthService, error) {
	if tokens == nil || guard == nil || users == nil {
		return nil, errors.New("tokens, guard and users must not be nil")
	}

	return &AuthService{
		tokens: tokens,
		guard:  guard,
		users:  users,
		logger: l.With("component", "auth_service"),
	}, nil
}

func (s *AuthService) Register(ctx context.Context, username string, password string) (models.TokenPair, error) {
	user, err := s.users.CreateUser(ctx, username, password)
	if err != nil {
		return models.TokenPair{}, err
	}

	return s.issue(user)
}

// Login checks the guard first, so a locked account never reaches password check
func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, error) {
	if err := s.guard.Check(ctx, username); err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.users.CheckCredentials(ctx, username, password)
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		s.guard.RecordFailure(ctx, username)
		return models.TokenPair{}, err
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't check credentials. Err: %w", err)
	}

	if !user.IsActive {
		return models.TokenPair{}, apperrors.ErrUserInactive
	}

	s.guard.Clear(ctx, username)

	return s.issue(user)
}

// Refresh exchanges valid refresh token of an active user to a new pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}
	if claims.Kind != models.TokenKindRefresh {
		return models.TokenPair{}, fmt.Errorf("%w: refresh token expected, got %s", apperrors.ErrInvalidToken, claims.Kind)
	}

	user, err := s.users.GetUserBySubject(ctx, claims.SubjectID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, fmt.Errorf("%w: subject not found", apperrors.ErrInvalidToken)
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't get user. Err: %w", err)
	case !user.IsActive:
		return models.TokenPair{}, apperrors.ErrUserInactive
	}

	return s.issue(user)
}

func (s *AuthService) issue(user models.User) (models.TokenPair, error) {
	pair, err := s.tokens.IssuePair(user.ID.String(), user.Role)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	s.logger.Debug("token pair issued", "user_id", user.ID.String())
	return pair, nil
}
