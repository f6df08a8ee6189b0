package contents

import (
	"context"
	"fmt"
	"time"
)

type Post struct {
	ID        string
	AuthorID  string
	Title     string
	Content   string
	FilePath  string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

type PostRepository interface {
	Insert(ctx context.Context, post *Post) (err error)
	Update(ctx context.Context, post *Post) (err error)
	Delete(ctx context.Context, postID string) (err error)
	Find(ctx context.Context, postID string) (post *Post, err error)
	List(ctx context.Context, params *ListPostsParams) (posts []*Post, err error)
}

// ListPostsParams filters List. Posts come newest first.
type ListPostsParams struct {
	AuthorID string
}

type PostNotFoundError struct {
	ID string
}

func (err PostNotFoundError) Error() string {
	return fmt.Sprintf("post with id %q not found", err.ID)
}

type InvalidPostError struct {
	Field  string
	Reason string
}

func (err InvalidPostError) Error() string {
	return fmt.Sprintf("invalid post %s: %s", err.Field, err.Reason)
}
