package authentication

import (
	"context"
	"fmt"
	"time"
)

// RefreshToken is the stored counterpart of an issued refresh JWT. The JWT is honoured
// only while its row exists.
type RefreshToken struct {
	ID        string
	MemberID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type RefreshTokenRepository interface {
	Insert(ctx context.Context, token *RefreshToken) (err error)
	Find(ctx context.Context, id string) (token *RefreshToken, err error)
	Delete(ctx context.Context, id string) (err error)
	DeleteByMember(ctx context.Context, memberID string) (err error)
}

type RefreshTokenNotFoundError struct {
	ID string
}

func (err RefreshTokenNotFoundError) Error() string {
	return fmt.Sprintf("refresh token with id %q not found", err.ID)
}
