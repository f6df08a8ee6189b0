package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/nasermirzaei89/myboard/discuss"
)

const tableComments = "comments"

// CommentRepository runs against the database, or against a transaction inside Transaction.
type CommentRepository struct {
	db     *sql.DB
	runner sq.StdSqlCtx
}

var _ discuss.CommentRepository = (*CommentRepository)(nil)

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db, runner: db}
}

const (
	commentFieldID        = "id"
	commentFieldPostID    = "post_id"
	commentFieldAuthorID  = "author_id"
	commentFieldParentID  = "parent_id"
	commentFieldContent   = "content"
	commentFieldRemoved   = "removed"
	commentFieldCreatedAt = "created_at"
	commentFieldUpdatedAt = "updated_at"
)

func commentColumns() []string {
	return []string{
		commentFieldID,
		commentFieldPostID,
		commentFieldAuthorID,
		commentFieldParentID,
		commentFieldContent,
		commentFieldRemoved,
		commentFieldCreatedAt,
		commentFieldUpdatedAt,
	}
}

func scanComment(row sq.RowScanner) (*discuss.Comment, error) {
	var (
		comment   discuss.Comment
		parentID  sql.NullString
		updatedAt sql.NullTime
	)

	err := row.Scan(
		&comment.ID,
		&comment.PostID,
		&comment.AuthorID,
		&parentID,
		&comment.Content,
		&comment.Removed,
		&comment.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if parentID.Valid {
		comment.ParentID = &parentID.String
	}

	if updatedAt.Valid {
		comment.UpdatedAt = &updatedAt.Time
	}

	return &comment, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: *s, Valid: true}
}

func (repo *CommentRepository) Find(ctx context.Context, id string) (*discuss.Comment, error) {
	q := sq.Select(commentColumns()...).
		From(tableComments).
		Where(sq.Eq{commentFieldID: id})

	q = q.RunWith(repo.runner)

	comment, err := scanComment(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &discuss.CommentNotFoundError{ID: id}
		}

		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}

	return comment, nil
}

func filterComments(q sq.SelectBuilder, params *discuss.ListCommentsParams) sq.SelectBuilder {
	if params == nil {
		return q
	}

	if params.PostID != "" {
		q = q.Where(sq.Eq{commentFieldPostID: params.PostID})
	}

	if params.ParentID != nil {
		q = q.Where(sq.Eq{commentFieldParentID: *params.ParentID})
	}

	if params.TopLevel {
		q = q.Where(sq.Eq{commentFieldParentID: nil})
	}

	if params.Removed != nil {
		q = q.Where(sq.Eq{commentFieldRemoved: *params.Removed})
	}

	return q
}

func (repo *CommentRepository) List(
	ctx context.Context,
	params *discuss.ListCommentsParams,
) ([]*discuss.Comment, error) {
	q := sq.Select(commentColumns()...).
		From(tableComments).
		OrderBy(commentFieldCreatedAt+" ASC", commentFieldID+" ASC")

	q = filterComments(q, params)

	q = q.RunWith(repo.runner)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	comments := make([]*discuss.Comment, 0)

	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment failed: %w", err)
		}

		comments = append(comments, comment)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return comments, nil
}

func (repo *CommentRepository) Count(ctx context.Context, params *discuss.ListCommentsParams) (int, error) {
	q := sq.Select("COUNT(*)").From(tableComments)

	q = filterComments(q, params)

	q = q.RunWith(repo.runner)

	var count int

	err := q.QueryRowContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to scan count: %w", err)
	}

	return count, nil
}

// Save inserts a comment without an id under a fresh one. Otherwise it writes the mutable
// fields; parent, post and author never change.
func (repo *CommentRepository) Save(ctx context.Context, comment *discuss.Comment) error {
	if comment.ID == "" {
		return repo.insert(ctx, comment)
	}

	q := sq.Update(tableComments).
		Set(commentFieldContent, comment.Content).
		Set(commentFieldRemoved, comment.Removed).
		Set(commentFieldUpdatedAt, nullTime(comment.UpdatedAt)).
		Where(sq.Eq{commentFieldID: comment.ID})

	q = q.RunWith(repo.runner)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec update: %w", err)
	}

	return requireAffected(result, &discuss.CommentNotFoundError{ID: comment.ID})
}

func (repo *CommentRepository) insert(ctx context.Context, comment *discuss.Comment) error {
	id := uuid.NewString()

	q := sq.Insert(tableComments).
		Columns(commentColumns()...).
		Values(
			id,
			comment.PostID,
			comment.AuthorID,
			nullString(comment.ParentID),
			comment.Content,
			comment.Removed,
			comment.CreatedAt,
			nullTime(comment.UpdatedAt),
		)

	q = q.RunWith(repo.runner)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	comment.ID = id

	return nil
}

func (repo *CommentRepository) Delete(ctx context.Context, id string) error {
	q := sq.Delete(tableComments).
		Where(sq.Eq{commentFieldID: id})

	q = q.RunWith(repo.runner)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	return requireAffected(result, &discuss.CommentNotFoundError{ID: id})
}

// Transaction runs fn against a repository bound to one transaction. A nested call joins
// the outer transaction.
func (repo *CommentRepository) Transaction(
	ctx context.Context,
	fn func(repo discuss.CommentRepository) error,
) error {
	if repo.db == nil {
		return fn(repo)
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(&CommentRepository{runner: tx})
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			slog.ErrorContext(ctx, "failed to rollback transaction", "error", rollbackErr)
		}

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
