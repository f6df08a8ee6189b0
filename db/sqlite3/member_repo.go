package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/myboard/authentication"
)

const tableMembers = "members"

type MemberRepository struct {
	db *sql.DB
}

var _ authentication.MemberRepository = (*MemberRepository)(nil)

func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

const (
	memberFieldID           = "id"
	memberFieldUsername     = "username"
	memberFieldPasswordHash = "password_hash"
	memberFieldName         = "name"
	memberFieldNickName     = "nick_name"
	memberFieldAge          = "age"
	memberFieldRole         = "role"
	memberFieldRegisteredAt = "registered_at"
)

func memberColumns() []string {
	return []string{
		memberFieldID,
		memberFieldUsername,
		memberFieldPasswordHash,
		memberFieldName,
		memberFieldNickName,
		memberFieldAge,
		memberFieldRole,
		memberFieldRegisteredAt,
	}
}

func scanMember(row sq.RowScanner) (*authentication.Member, error) {
	var member authentication.Member

	err := row.Scan(
		&member.ID,
		&member.Username,
		&member.PasswordHash,
		&member.Name,
		&member.NickName,
		&member.Age,
		&member.Role,
		&member.RegisteredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &member, nil
}

func (repo *MemberRepository) Insert(ctx context.Context, member *authentication.Member) error {
	q := sq.Insert(tableMembers).
		Columns(memberColumns()...).
		Values(
			member.ID,
			member.Username,
			member.PasswordHash,
			member.Name,
			member.NickName,
			member.Age,
			string(member.Role),
			member.RegisteredAt,
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: members.username") {
			return &authentication.MemberAlreadyExistsError{Username: member.Username}
		}

		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *MemberRepository) Update(ctx context.Context, member *authentication.Member) error {
	q := sq.Update(tableMembers).
		Set(memberFieldPasswordHash, member.PasswordHash).
		Set(memberFieldName, member.Name).
		Set(memberFieldNickName, member.NickName).
		Set(memberFieldAge, member.Age).
		Set(memberFieldRole, string(member.Role)).
		Where(sq.Eq{memberFieldID: member.ID})

	q = q.RunWith(repo.db)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec update: %w", err)
	}

	return requireAffected(result, &authentication.MemberNotFoundError{ID: member.ID})
}

func (repo *MemberRepository) Delete(ctx context.Context, memberID string) error {
	q := sq.Delete(tableMembers).
		Where(sq.Eq{memberFieldID: memberID})

	q = q.RunWith(repo.db)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	return requireAffected(result, &authentication.MemberNotFoundError{ID: memberID})
}

func (repo *MemberRepository) Find(ctx context.Context, memberID string) (*authentication.Member, error) {
	q := sq.Select(memberColumns()...).
		From(tableMembers).
		Where(sq.Eq{memberFieldID: memberID})

	q = q.RunWith(repo.db)

	member, err := scanMember(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &authentication.MemberNotFoundError{ID: memberID}
		}

		return nil, fmt.Errorf("failed to scan member: %w", err)
	}

	return member, nil
}

func (repo *MemberRepository) FindByUsername(ctx context.Context, username string) (*authentication.Member, error) {
	q := sq.Select(memberColumns()...).
		From(tableMembers).
		Where(sq.Eq{memberFieldUsername: username})

	q = q.RunWith(repo.db)

	member, err := scanMember(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &authentication.MemberByUsernameNotFoundError{Username: username}
		}

		return nil, fmt.Errorf("failed to scan member: %w", err)
	}

	return member, nil
}

func (repo *MemberRepository) ListUsernames(ctx context.Context) ([]string, error) {
	q := sq.Select(memberFieldUsername).From(tableMembers).RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query usernames: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	usernames := make([]string, 0)

	for rows.Next() {
		var username string

		err = rows.Scan(&username)
		if err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}

		usernames = append(usernames, username)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate usernames: %w", err)
	}

	return usernames, nil
}

// requireAffected returns notFoundErr when result touched no row.
func requireAffected(result sql.Result, notFoundErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFoundErr
	}

	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}
