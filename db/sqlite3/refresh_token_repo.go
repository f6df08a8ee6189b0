package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/myboard/authentication"
)

const tableRefreshTokens = "refresh_tokens"

type RefreshTokenRepository struct {
	db *sql.DB
}

var _ authentication.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const (
	refreshTokenFieldID        = "id"
	refreshTokenFieldMemberID  = "member_id"
	refreshTokenFieldCreatedAt = "created_at"
	refreshTokenFieldExpiresAt = "expires_at"
)

func refreshTokenColumns() []string {
	return []string{
		refreshTokenFieldID,
		refreshTokenFieldMemberID,
		refreshTokenFieldCreatedAt,
		refreshTokenFieldExpiresAt,
	}
}

func scanRefreshToken(row sq.RowScanner) (*authentication.RefreshToken, error) {
	var token authentication.RefreshToken

	err := row.Scan(
		&token.ID,
		&token.MemberID,
		&token.CreatedAt,
		&token.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &token, nil
}

func (repo *RefreshTokenRepository) Insert(ctx context.Context, token *authentication.RefreshToken) error {
	q := sq.Insert(tableRefreshTokens).
		Columns(refreshTokenColumns()...).
		Values(token.ID, token.MemberID, token.CreatedAt, token.ExpiresAt)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *RefreshTokenRepository) Find(ctx context.Context, id string) (*authentication.RefreshToken, error) {
	q := sq.Select(refreshTokenColumns()...).
		From(tableRefreshTokens).
		Where(sq.Eq{refreshTokenFieldID: id})

	q = q.RunWith(repo.db)

	token, err := scanRefreshToken(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &authentication.RefreshTokenNotFoundError{ID: id}
		}

		return nil, fmt.Errorf("failed to scan refresh token: %w", err)
	}

	return token, nil
}

func (repo *RefreshTokenRepository) Delete(ctx context.Context, id string) error {
	q := sq.Delete(tableRefreshTokens).
		Where(sq.Eq{refreshTokenFieldID: id})

	q = q.RunWith(repo.db)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	return requireAffected(result, &authentication.RefreshTokenNotFoundError{ID: id})
}

func (repo *RefreshTokenRepository) DeleteByMember(ctx context.Context, memberID string) error {
	q := sq.Delete(tableRefreshTokens).
		Where(sq.Eq{refreshTokenFieldMemberID: memberID})

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	return nil
}
