package auth

import (
	"context"

	"github.com/nkiryanov/authgate/internal/models"
)

// Resolves token subject to the user record
type UserLookup interface {
	GetUserBySubject(ctx context.Context, subjectID string) (models.User, error)
}

type tokenParser interface {
	Parse(token string) (models.Claims, error)
}

// Gate decides whether a presented credential carries a valid principal.
// It never fails: every problem means "not authenticated".
type Gate struct {
	tokens tokenParser
	users  UserLookup
}

func NewGate(tokens tokenParser, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate returns principal and true if credential is valid.
// Refresh tokens are accepted only when isRefreshOp is set.
// At most one user lookup is made.
func (g *Gate) Authenticate(ctx context.Context, credential string, isRefreshOp bool) (models.Principal, bool) {
	if credential == "" {
		return models.Principal{}, false
	}

	claims, err := g.tokens.Parse(credential)
	if err != nil {
		return models.Principal{}, false
	}

	if claims.Kind == models.TokenKindRefresh && !isRefreshOp {
		return models.Principal{}, false
	}

	user, err := g.users.GetUserBySubject(ctx, claims.SubjectID)
	if err != nil || !user.IsActive {
		return models.Principal{}, false
	}

	return models.Principal{SubjectID: claims.SubjectID, Role: claims.Role}, true
}
