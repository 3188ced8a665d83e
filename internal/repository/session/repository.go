package session

import (
	"context"

	"crystal-bloomery/internal/domain"
)

// Repository persists cart sessions across page reloads, keyed by the
// storefront session token. Transient busy flags are never stored.
type Repository interface {
	Load(ctx context.Context, token string) (*domain.CartSession, error)
	Save(ctx context.Context, token string, session *domain.CartSession) error
	Delete(ctx context.Context, token string) error
}
